package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// threeParty builds the iPhone/MacBook/Camera ring: A wants B's MacBook,
// B wants C's camera, C wants A's iPhone.
func threeParty() []Item {
	return []Item{
		testItem(1, 10, "iPhone 13", "phones", 35000, Want{Category: "laptops"}),
		testItem(2, 20, "MacBook Pro", "laptops", 55000, Want{Category: "cameras"}),
		testItem(3, 30, "Canon Camera", "cameras", 45000, Want{Category: "phones"}),
	}
}

func TestFindCyclesThreeParty(t *testing.T) {
	g := BuildGraph(threeParty(), Criteria{TolerancePercent: 40})
	result := FindCycles(g, Criteria{TolerancePercent: 40})

	require.Len(t, result.Cycles, 1)
	c := result.Cycles[0]

	assert.Equal(t, 3, c.Length())
	assert.Equal(t, int64(135000), c.TotalValue)
	assert.False(t, result.Truncated)

	assert.Equal(t, []Leg{
		{UserID: 10, OfferedItemID: 1, WantedItemID: 2},
		{UserID: 20, OfferedItemID: 2, WantedItemID: 3},
		{UserID: 30, OfferedItemID: 3, WantedItemID: 1},
	}, c.Legs)
}

func TestFindCyclesClosureProperty(t *testing.T) {
	items := append(threeParty(),
		testItem(4, 40, "PlayStation 5", "consoles", 30000, Want{Category: "phones"}),
		testItem(5, 50, "Nikon Camera", "cameras", 46000, Want{Category: "consoles"}),
	)

	g := BuildGraph(items, Criteria{TolerancePercent: 50, MaxChainLength: 5})
	result := FindCycles(g, Criteria{TolerancePercent: 50, MaxChainLength: 5})

	require.NotEmpty(t, result.Cycles)
	for _, c := range result.Cycles {
		k := c.Length()
		seenItems := make(map[int64]bool)
		seenUsers := make(map[int64]bool)
		for i, leg := range c.Legs {
			assert.Equal(t, c.Legs[(i+1)%k].OfferedItemID, leg.WantedItemID,
				"wanted item must be the next leg's offered item")
			assert.False(t, seenItems[leg.OfferedItemID], "item reused in cycle")
			assert.False(t, seenUsers[leg.UserID], "user reused in cycle")
			seenItems[leg.OfferedItemID] = true
			seenUsers[leg.UserID] = true
		}
	}
}

func TestFindCyclesNoCyclesIsEmptyNotError(t *testing.T) {
	items := []Item{
		testItem(1, 10, "iPhone 13", "phones", 35000, Want{Category: "laptops"}),
		testItem(2, 20, "MacBook Pro", "laptops", 36000),
	}

	g := BuildGraph(items, Criteria{TolerancePercent: 15})
	result := FindCycles(g, Criteria{TolerancePercent: 15})

	assert.Empty(t, result.Cycles)
	assert.False(t, result.Truncated)
}

func TestFindCyclesTwoPartyToleranceScenario(t *testing.T) {
	// A: iPhone 35k, wants a MacBook in 50k..60k. B: MacBook 55k, wants an iPhone.
	items := []Item{
		testItem(1, 10, "iPhone 13", "phones", 35000,
			Want{Description: "macbook pro", MinValue: 50000, MaxValue: 60000}),
		testItem(2, 20, "MacBook Pro", "laptops", 55000, Want{Description: "iphone"}),
	}

	// At 15% the 20k delta (~36%) fails tolerance: no cycle.
	g := BuildGraph(items, Criteria{TolerancePercent: 15})
	result := FindCycles(g, Criteria{TolerancePercent: 15})
	assert.Empty(t, result.Cycles)

	// At 40% the swap passes.
	g = BuildGraph(items, Criteria{TolerancePercent: 40})
	result = FindCycles(g, Criteria{TolerancePercent: 40})
	require.Len(t, result.Cycles, 1)

	c := result.Cycles[0]
	assert.Equal(t, 2, c.Length())
	assert.Equal(t, int64(90000), c.TotalValue)
	assert.Equal(t, int64(20000), c.ValueImbalance)
}

func TestFindCyclesEachCycleReportedOnce(t *testing.T) {
	g := BuildGraph(threeParty(), Criteria{TolerancePercent: 40})
	result := FindCycles(g, Criteria{TolerancePercent: 40})

	// The ring must not be reported once per rotation.
	assert.Len(t, result.Cycles, 1)
}

func TestFindCyclesMaxChainLength(t *testing.T) {
	g := BuildGraph(threeParty(), Criteria{TolerancePercent: 40, MaxChainLength: 2})
	result := FindCycles(g, Criteria{TolerancePercent: 40, MaxChainLength: 2})

	assert.Empty(t, result.Cycles, "a 3-ring must not surface when the cap is 2")
}

func TestFindCyclesBudgetTruncation(t *testing.T) {
	// Dense graph: many users all wanting each other's category.
	var items []Item
	for i := int64(1); i <= 12; i++ {
		items = append(items, testItem(i, i*10, "Gadget", "gadgets", 10000, Want{Category: "gadgets"}))
	}

	criteria := Criteria{TolerancePercent: 15, MaxChainLength: 5, MaxPaths: 20}
	g := BuildGraph(items, criteria)
	result := FindCycles(g, criteria)

	assert.True(t, result.Truncated)
	assert.LessOrEqual(t, result.PathsExplored, 21)
}

func TestFindCyclesDeterministic(t *testing.T) {
	items := append(threeParty(),
		testItem(4, 40, "PlayStation 5", "consoles", 30000, Want{Category: "phones"}),
	)
	criteria := Criteria{TolerancePercent: 50}

	first := FindCycles(BuildGraph(items, criteria), criteria)
	second := FindCycles(BuildGraph(items, criteria), criteria)

	assert.Equal(t, first.Cycles, second.Cycles)
}

func TestValidateCycle(t *testing.T) {
	criteria := Criteria{TolerancePercent: 40}
	g := BuildGraph(threeParty(), criteria)
	result := FindCycles(g, criteria)
	require.Len(t, result.Cycles, 1)

	valid := result.Cycles[0]
	assert.NoError(t, ValidateCycle(g, valid, criteria))

	broken := valid
	broken.Legs = []Leg{valid.Legs[0], valid.Legs[1], {UserID: 30, OfferedItemID: 3, WantedItemID: 2}}
	assert.Error(t, ValidateCycle(g, broken, criteria), "non-closing wanted item")

	dupItem := valid
	dupItem.Legs = []Leg{valid.Legs[0], valid.Legs[1], {UserID: 30, OfferedItemID: 1, WantedItemID: 1}}
	assert.Error(t, ValidateCycle(g, dupItem, criteria), "duplicate item")

	unknown := valid
	unknown.Legs = []Leg{valid.Legs[0], {UserID: 99, OfferedItemID: 99, WantedItemID: 1}}
	assert.ErrorIs(t, ValidateCycle(g, unknown, criteria), ErrItemUnavailable,
		"item outside snapshot must be distinguishable from a structural defect")

	assert.Error(t, ValidateCycle(g, valid, Criteria{TolerancePercent: 5}),
		"imbalance beyond tolerance must be rejected")

	short := Cycle{Legs: []Leg{valid.Legs[0]}}
	assert.Error(t, ValidateCycle(g, short, criteria))
}
