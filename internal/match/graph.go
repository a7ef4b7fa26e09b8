package match

import (
	"sort"
	"strings"
)

// Graph is the directed compatibility graph over an item snapshot. An edge
// A -> B exists iff B satisfies a want stated by A's owner. Edges are
// directional; A -> B does not imply B -> A. The graph is rebuilt per search
// and never cached across catalog mutations.
type Graph struct {
	items map[int64]*Item
	adj   map[int64][]int64
	order []int64
}

// BuildGraph constructs the compatibility graph from an item snapshot.
// An empty snapshot or a snapshot with no stated wants yields an empty
// graph, not an error.
func BuildGraph(items []Item, criteria Criteria) *Graph {
	criteria = criteria.WithDefaults()

	g := &Graph{
		items: make(map[int64]*Item, len(items)),
		adj:   make(map[int64][]int64),
	}

	for i := range items {
		item := &items[i]
		if !matchesFilters(item, criteria) {
			continue
		}
		g.items[item.ID] = item
		g.order = append(g.order, item.ID)
	}

	// Deterministic order keeps search results stable for identical inputs.
	sort.Slice(g.order, func(i, j int) bool { return g.order[i] < g.order[j] })

	for _, fromID := range g.order {
		from := g.items[fromID]
		if len(from.Wants) == 0 {
			continue
		}
		for _, toID := range g.order {
			if toID == fromID {
				continue
			}
			to := g.items[toID]
			if to.OwnerID == from.OwnerID {
				continue
			}
			if satisfiesAny(from, to, criteria.TolerancePercent) {
				g.adj[fromID] = append(g.adj[fromID], toID)
			}
		}
	}

	return g
}

// NodeCount returns the number of items in the graph.
func (g *Graph) NodeCount() int { return len(g.items) }

// EdgeCount returns the number of compatibility edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, out := range g.adj {
		n += len(out)
	}
	return n
}

// Item returns the snapshot item for an id, or nil.
func (g *Graph) Item(id int64) *Item { return g.items[id] }

// Neighbors returns candidate wanted items for an offered item.
func (g *Graph) Neighbors(id int64) []int64 { return g.adj[id] }

func matchesFilters(item *Item, criteria Criteria) bool {
	if len(criteria.Governorates) > 0 && !containsFold(criteria.Governorates, item.Governorate) {
		return false
	}
	if len(criteria.Categories) > 0 && !containsFold(criteria.Categories, item.Category) {
		return false
	}
	return true
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// satisfiesAny reports whether candidate satisfies at least one want of the
// anchor item's owner.
func satisfiesAny(anchor, candidate *Item, tolerancePercent float64) bool {
	for _, w := range anchor.Wants {
		if satisfies(anchor, candidate, w, tolerancePercent) {
			return true
		}
	}
	return false
}

// satisfies applies the two edge conditions: category/description
// compatibility and value compatibility. An explicit min/max range on the
// want replaces the relative tolerance window.
func satisfies(anchor, candidate *Item, w Want, tolerancePercent float64) bool {
	if !categoryMatches(candidate, w) {
		return false
	}

	if w.MaxValue > 0 {
		return candidate.Value >= w.MinValue && candidate.Value <= w.MaxValue
	}
	if w.MinValue > 0 && candidate.Value < w.MinValue {
		return false
	}
	return relDelta(anchor.Value, candidate.Value) <= tolerancePercent
}

func categoryMatches(candidate *Item, w Want) bool {
	if w.Category != "" && strings.EqualFold(candidate.Category, w.Category) {
		return true
	}
	if w.Description == "" {
		return false
	}
	// Free-text containment match between the stated description and the
	// candidate's title, either direction.
	desc := strings.ToLower(w.Description)
	title := strings.ToLower(candidate.Title)
	return strings.Contains(title, desc) || strings.Contains(desc, title)
}
