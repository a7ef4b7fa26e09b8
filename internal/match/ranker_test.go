package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rankedFixture(t *testing.T) (*Graph, []Cycle) {
	t.Helper()

	// A 3-ring plus a reciprocal 2-swap over separate items.
	items := append(threeParty(),
		testItem(4, 40, "PlayStation 5", "consoles", 30000, Want{Category: "tablets"}),
		testItem(5, 50, "iPad Pro", "tablets", 31000, Want{Category: "consoles"}),
	)

	criteria := Criteria{TolerancePercent: 40}
	g := BuildGraph(items, criteria)
	result := FindCycles(g, criteria)
	require.Len(t, result.Cycles, 2)
	return g, result.Cycles
}

func TestRankShorterChainsFirst(t *testing.T) {
	g, cycles := rankedFixture(t)

	ranked := Rank(g, cycles, nil)

	assert.Equal(t, 2, ranked[0].Length())
	assert.Equal(t, 3, ranked[1].Length())
}

func TestRankByImbalanceWithinSameLength(t *testing.T) {
	items := []Item{
		testItem(1, 10, "iPhone 13", "phones", 35000, Want{Category: "laptops"}),
		testItem(2, 20, "MacBook Air", "laptops", 37000, Want{Description: "iphone"}),
		testItem(3, 30, "Pixel 9", "phones", 30000, Want{Category: "tablets"}),
		testItem(4, 40, "iPad Pro", "tablets", 40000, Want{Description: "pixel"}),
	}

	criteria := Criteria{TolerancePercent: 40}
	g := BuildGraph(items, criteria)
	result := FindCycles(g, criteria)
	require.Len(t, result.Cycles, 2)

	ranked := Rank(g, result.Cycles, nil)

	// 35k/37k swap (~5%) outranks the 30k/40k swap (25%).
	assert.Equal(t, int64(1), ranked[0].Legs[0].OfferedItemID)
	assert.Equal(t, int64(3), ranked[1].Legs[0].OfferedItemID)
}

func TestRankTrustTiebreaker(t *testing.T) {
	items := []Item{
		testItem(1, 10, "iPhone 13", "phones", 35000, Want{Category: "laptops"}),
		testItem(2, 20, "MacBook Air", "laptops", 35000, Want{Description: "iphone"}),
		testItem(3, 30, "Pixel 9", "phones", 35000, Want{Category: "tablets"}),
		testItem(4, 40, "iPad Pro", "tablets", 35000, Want{Description: "pixel"}),
	}

	criteria := Criteria{TolerancePercent: 15}
	g := BuildGraph(items, criteria)
	result := FindCycles(g, criteria)
	require.Len(t, result.Cycles, 2)

	trust := map[int64]float64{30: 4.8, 40: 4.9}
	ranked := Rank(g, result.Cycles, trust)

	assert.Equal(t, int64(3), ranked[0].Legs[0].OfferedItemID,
		"higher aggregate trust wins when length and imbalance tie")
}

func TestRankIdempotent(t *testing.T) {
	g, cycles := rankedFixture(t)

	first := Rank(g, cycles, nil)
	second := Rank(g, cycles, nil)

	assert.Equal(t, first, second)
}

func TestSelectDisjoint(t *testing.T) {
	items := []Item{
		testItem(1, 10, "iPhone 13", "phones", 35000, Want{Category: "laptops"}),
		testItem(2, 20, "MacBook Air", "laptops", 36000, Want{Category: "phones", Description: "any phone"}),
		testItem(3, 30, "Pixel 9", "phones", 35500, Want{Category: "laptops"}),
	}

	criteria := Criteria{TolerancePercent: 15}
	g := BuildGraph(items, criteria)
	result := FindCycles(g, criteria)

	// Item 2 can swap with either phone; both 2-cycles share it.
	require.Len(t, result.Cycles, 2)

	ranked := Rank(g, result.Cycles, nil)
	selected := SelectDisjoint(ranked)

	require.Len(t, selected, 1)
	assert.Equal(t, ranked[0], selected[0])

	used := make(map[int64]bool)
	for _, c := range selected {
		for _, id := range c.ItemIDs() {
			assert.False(t, used[id], "item appears in two selected cycles")
			used[id] = true
		}
	}
}
