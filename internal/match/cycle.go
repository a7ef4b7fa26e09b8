package match

import (
	"errors"
	"time"
)

// ErrItemUnavailable marks a cycle that references an item no longer present
// in the snapshot. This is how a lost reservation race surfaces to a
// re-validation: the item was taken between search and commit, so the caller
// should re-run matching rather than treat the cycle as structurally broken.
var ErrItemUnavailable = errors.New("cycle references item outside the snapshot")

// searcher holds per-invocation DFS state.
type searcher struct {
	g         *Graph
	criteria  Criteria
	deadline  time.Time
	paths     int
	truncated bool
	cycles    []Cycle

	path      []int64
	onPath    map[int64]bool
	usersSeen map[int64]bool
}

// FindCycles enumerates simple directed cycles of length 2..MaxChainLength
// in the compatibility graph. Each cycle is reported exactly once: a DFS is
// rooted at every node in ascending id order and only extends through nodes
// with a larger id, so a cycle is discovered from its smallest item id.
//
// The search is budgeted by explored path count and a wall-clock deadline;
// exhausting either truncates the result instead of failing. A graph with
// no cycles returns an empty result, not an error.
func FindCycles(g *Graph, criteria Criteria) Result {
	criteria = criteria.WithDefaults()

	s := &searcher{
		g:         g,
		criteria:  criteria,
		deadline:  time.Now().Add(criteria.Deadline),
		onPath:    make(map[int64]bool),
		usersSeen: make(map[int64]bool),
	}

	for _, start := range g.order {
		if s.exhausted() {
			break
		}
		s.path = s.path[:0]
		s.visit(start, start)
	}

	return Result{
		Cycles:        s.cycles,
		Truncated:     s.truncated,
		PathsExplored: s.paths,
	}
}

func (s *searcher) exhausted() bool {
	if s.paths >= s.criteria.MaxPaths || !time.Now().Before(s.deadline) {
		s.truncated = true
		return true
	}
	return false
}

func (s *searcher) visit(start, current int64) {
	item := s.g.Item(current)

	s.path = append(s.path, current)
	s.onPath[current] = true
	s.usersSeen[item.OwnerID] = true

	defer func() {
		s.path = s.path[:len(s.path)-1]
		delete(s.onPath, current)
		delete(s.usersSeen, item.OwnerID)
	}()

	for _, next := range s.g.Neighbors(current) {
		if s.exhausted() {
			return
		}
		s.paths++

		if next == start {
			// Closing edge back to the path's own start; exempt from the
			// reuse rule by definition.
			if len(s.path) >= MinChainLength && s.edgeWithinTolerance(current, next) {
				s.record()
			}
			continue
		}

		if len(s.path) >= s.criteria.MaxChainLength {
			continue
		}
		// Only extend through larger ids so each cycle is found once, from
		// its smallest member.
		if next < start || s.onPath[next] {
			continue
		}
		if s.usersSeen[s.g.Item(next).OwnerID] {
			continue
		}
		// A single edge past tolerance already caps the cycle's max delta
		// past tolerance; no lookahead can fix it.
		if !s.edgeWithinTolerance(current, next) {
			continue
		}

		s.visit(start, next)
	}
}

func (s *searcher) edgeWithinTolerance(from, to int64) bool {
	return relDelta(s.g.Item(from).Value, s.g.Item(to).Value) <= s.criteria.TolerancePercent
}

// record materializes the current path as a cycle.
func (s *searcher) record() {
	k := len(s.path)
	legs := make([]Leg, k)

	var total, maxDelta int64
	var maxRel float64

	for i, id := range s.path {
		item := s.g.Item(id)
		wanted := s.path[(i+1)%k]

		legs[i] = Leg{
			UserID:        item.OwnerID,
			OfferedItemID: id,
			WantedItemID:  wanted,
		}

		total += item.Value
		delta := absDelta(item.Value, s.g.Item(wanted).Value)
		if delta > maxDelta {
			maxDelta = delta
		}
		if rel := relDelta(item.Value, s.g.Item(wanted).Value); rel > maxRel {
			maxRel = rel
		}
	}

	s.cycles = append(s.cycles, Cycle{
		Legs:           legs,
		TotalValue:     total,
		ValueImbalance: maxDelta,
		MaxRelDelta:    maxRel,
	})
}

// ValidateCycle re-checks the structural invariants of a cycle against a
// graph snapshot. It is the defensive gate between search output and chain
// persistence: a violation here must abort the proposal, never be stored.
func ValidateCycle(g *Graph, c Cycle, criteria Criteria) error {
	criteria = criteria.WithDefaults()

	k := c.Length()
	if k < MinChainLength {
		return errCycle("cycle shorter than two legs")
	}
	if k > criteria.MaxChainLength {
		return errCycle("cycle exceeds max chain length")
	}

	itemsSeen := make(map[int64]bool, k)
	usersSeen := make(map[int64]bool, k)

	for _, leg := range c.Legs {
		item := g.Item(leg.OfferedItemID)
		if item == nil {
			return ErrItemUnavailable
		}
		if item.OwnerID != leg.UserID {
			return errCycle("leg user does not own the offered item")
		}
		if itemsSeen[leg.OfferedItemID] {
			return errCycle("item appears twice in cycle")
		}
		if usersSeen[leg.UserID] {
			return errCycle("user appears twice in cycle")
		}
		itemsSeen[leg.OfferedItemID] = true
		usersSeen[leg.UserID] = true
	}

	for i, leg := range c.Legs {
		next := c.Legs[(i+1)%k]
		if leg.WantedItemID != next.OfferedItemID {
			return errCycle("wanted item does not close onto the next leg")
		}
		offered := g.Item(leg.OfferedItemID)
		wanted := g.Item(leg.WantedItemID)
		if !satisfiesAny(offered, wanted, criteria.TolerancePercent) {
			return errCycle("wanted item does not satisfy the leg owner's request")
		}
		if relDelta(offered.Value, wanted.Value) > criteria.TolerancePercent {
			return errCycle("edge value delta exceeds tolerance")
		}
	}

	return nil
}

type cycleError string

func (e cycleError) Error() string { return string(e) }

func errCycle(msg string) error { return cycleError(msg) }
