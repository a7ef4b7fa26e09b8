package match

// FindDirect is the fast path for the common reciprocal-swap case: for each
// item of the anchor offer, scan candidates the anchor's owner wants whose
// own owner reciprocally wants the anchor item, without running the full
// cycle search. Results use the same Cycle shape with k=2 so they compose
// uniformly with the ranker.
func FindDirect(g *Graph, anchorOfferID int64, criteria Criteria) Result {
	criteria = criteria.WithDefaults()

	var cycles []Cycle
	for _, anchorID := range g.order {
		anchor := g.Item(anchorID)
		if anchor.OfferID != anchorOfferID {
			continue
		}
		for _, candID := range g.Neighbors(anchorID) {
			cand := g.Item(candID)
			if !satisfiesAny(cand, anchor, criteria.TolerancePercent) {
				continue
			}
			rel := relDelta(anchor.Value, cand.Value)
			if rel > criteria.TolerancePercent {
				continue
			}
			cycles = append(cycles, Cycle{
				Legs: []Leg{
					{UserID: anchor.OwnerID, OfferedItemID: anchorID, WantedItemID: candID},
					{UserID: cand.OwnerID, OfferedItemID: candID, WantedItemID: anchorID},
				},
				TotalValue:     anchor.Value + cand.Value,
				ValueImbalance: absDelta(anchor.Value, cand.Value),
				MaxRelDelta:    rel,
			})
		}
	}

	return Result{Cycles: cycles, PathsExplored: len(cycles)}
}
