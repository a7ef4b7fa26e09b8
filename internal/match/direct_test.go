package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindDirectReciprocalSwap(t *testing.T) {
	items := []Item{
		testItem(1, 10, "iPhone 13", "phones", 35000,
			Want{Description: "macbook pro", MinValue: 50000, MaxValue: 60000}),
		testItem(2, 20, "MacBook Pro", "laptops", 55000, Want{Description: "iphone"}),
	}

	criteria := Criteria{TolerancePercent: 40}
	g := BuildGraph(items, criteria)

	result := FindDirect(g, items[0].OfferID, criteria)

	require.Len(t, result.Cycles, 1)
	c := result.Cycles[0]
	assert.Equal(t, 2, c.Length())
	assert.Equal(t, int64(90000), c.TotalValue)
	assert.Equal(t, int64(20000), c.ValueImbalance)
	assert.Equal(t, Leg{UserID: 10, OfferedItemID: 1, WantedItemID: 2}, c.Legs[0])
	assert.Equal(t, Leg{UserID: 20, OfferedItemID: 2, WantedItemID: 1}, c.Legs[1])
}

func TestFindDirectExcludedByTolerance(t *testing.T) {
	items := []Item{
		testItem(1, 10, "iPhone 13", "phones", 35000,
			Want{Description: "macbook pro", MinValue: 50000, MaxValue: 60000}),
		testItem(2, 20, "MacBook Pro", "laptops", 55000, Want{Description: "iphone"}),
	}

	criteria := Criteria{TolerancePercent: 15}
	g := BuildGraph(items, criteria)

	result := FindDirect(g, items[0].OfferID, criteria)

	assert.Empty(t, result.Cycles, "a 20k delta on 55k exceeds 15% tolerance")
}

func TestFindDirectNoReciprocity(t *testing.T) {
	items := []Item{
		testItem(1, 10, "iPhone 13", "phones", 35000, Want{Category: "laptops"}),
		testItem(2, 20, "MacBook Pro", "laptops", 36000, Want{Category: "cameras"}),
	}

	criteria := Criteria{TolerancePercent: 15}
	g := BuildGraph(items, criteria)

	result := FindDirect(g, items[0].OfferID, criteria)

	assert.Empty(t, result.Cycles, "one-directional interest is not a swap")
}

func TestFindDirectIgnoresOtherOffers(t *testing.T) {
	items := []Item{
		testItem(1, 10, "iPhone 13", "phones", 35000, Want{Category: "laptops"}),
		testItem(2, 20, "MacBook Air", "laptops", 36000, Want{Category: "phones"}),
		testItem(3, 30, "Pixel 9", "phones", 35500, Want{Category: "laptops"}),
	}

	criteria := Criteria{TolerancePercent: 15}
	g := BuildGraph(items, criteria)

	result := FindDirect(g, items[2].OfferID, criteria)

	require.Len(t, result.Cycles, 1)
	assert.Equal(t, int64(3), result.Cycles[0].Legs[0].OfferedItemID,
		"only the anchor offer's items may start a direct match")
}

func TestFindDirectComposesWithRanker(t *testing.T) {
	items := []Item{
		testItem(1, 10, "iPhone 13", "phones", 35000, Want{Category: "laptops"}),
		testItem(2, 20, "MacBook Air", "laptops", 36000, Want{Category: "phones"}),
		testItem(3, 30, "ThinkPad", "laptops", 38000, Want{Category: "phones"}),
	}

	criteria := Criteria{TolerancePercent: 15}
	g := BuildGraph(items, criteria)

	result := FindDirect(g, items[0].OfferID, criteria)
	require.Len(t, result.Cycles, 2)

	ranked := Rank(g, result.Cycles, nil)
	assert.Equal(t, int64(2), ranked[0].Legs[1].OfferedItemID,
		"closer-valued swap ranks first")
}
