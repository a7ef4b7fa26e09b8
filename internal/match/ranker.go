package match

import (
	"sort"
	"time"
)

// Rank orders candidate cycles for proposal: shorter chains first (fewer
// parties to convince), then smaller relative value imbalance, then higher
// aggregate participant trust, ties broken by the earliest-created anchor
// offer. Trust scores come from an external provider and may be empty;
// missing users score zero.
func Rank(g *Graph, cycles []Cycle, trust map[int64]float64) []Cycle {
	ranked := make([]Cycle, len(cycles))
	copy(ranked, cycles)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Length() != b.Length() {
			return a.Length() < b.Length()
		}
		if a.MaxRelDelta != b.MaxRelDelta {
			return a.MaxRelDelta < b.MaxRelDelta
		}
		ta, tb := aggregateTrust(a, trust), aggregateTrust(b, trust)
		if ta != tb {
			return ta > tb
		}
		return earliestOffer(g, a).Before(earliestOffer(g, b))
	})

	return ranked
}

// SelectDisjoint greedily keeps the highest-ranked cycles whose items do
// not overlap any already-selected cycle, so every returned cycle can be
// proposed independently.
func SelectDisjoint(ranked []Cycle) []Cycle {
	used := make(map[int64]bool)
	selected := make([]Cycle, 0, len(ranked))

	for _, c := range ranked {
		conflict := false
		for _, id := range c.ItemIDs() {
			if used[id] {
				conflict = true
				break
			}
		}
		if conflict {
			continue
		}
		for _, id := range c.ItemIDs() {
			used[id] = true
		}
		selected = append(selected, c)
	}

	return selected
}

func aggregateTrust(c Cycle, trust map[int64]float64) float64 {
	var sum float64
	for _, leg := range c.Legs {
		sum += trust[leg.UserID]
	}
	return sum
}

func earliestOffer(g *Graph, c Cycle) time.Time {
	var earliest time.Time
	for _, leg := range c.Legs {
		item := g.Item(leg.OfferedItemID)
		if item == nil {
			continue
		}
		if earliest.IsZero() || item.OfferCreatedAt.Before(earliest) {
			earliest = item.OfferCreatedAt
		}
	}
	return earliest
}
