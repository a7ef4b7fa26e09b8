package match

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testItem(id, owner int64, title, category string, value int64, wants ...Want) Item {
	return Item{
		ID:             id,
		OwnerID:        owner,
		Title:          title,
		Category:       category,
		Value:          value,
		OfferID:        id * 100,
		OfferCreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(id) * time.Hour),
		Wants:          wants,
	}
}

func TestBuildGraphEmptySnapshot(t *testing.T) {
	g := BuildGraph(nil, Criteria{})
	assert.Equal(t, 0, g.NodeCount())
	assert.Equal(t, 0, g.EdgeCount())
}

func TestBuildGraphNoWants(t *testing.T) {
	items := []Item{
		testItem(1, 10, "iPhone 13", "electronics", 35000),
		testItem(2, 20, "MacBook Pro", "electronics", 55000),
	}

	g := BuildGraph(items, Criteria{})

	assert.Equal(t, 2, g.NodeCount())
	assert.Equal(t, 0, g.EdgeCount())
}

func TestBuildGraphCategoryEdge(t *testing.T) {
	items := []Item{
		testItem(1, 10, "iPhone 13", "electronics", 50000, Want{Category: "electronics"}),
		testItem(2, 20, "MacBook Pro", "electronics", 55000),
	}

	g := BuildGraph(items, Criteria{TolerancePercent: 15})

	assert.Equal(t, []int64{2}, g.Neighbors(1))
	assert.Empty(t, g.Neighbors(2))
}

func TestBuildGraphEdgesAreDirectional(t *testing.T) {
	items := []Item{
		testItem(1, 10, "iPhone 13", "phones", 50000, Want{Category: "laptops"}),
		testItem(2, 20, "MacBook Pro", "laptops", 55000, Want{Category: "cameras"}),
	}

	g := BuildGraph(items, Criteria{TolerancePercent: 15})

	assert.Equal(t, []int64{2}, g.Neighbors(1))
	assert.Empty(t, g.Neighbors(2), "A->B must not imply B->A")
}

func TestBuildGraphDescriptionContainment(t *testing.T) {
	items := []Item{
		testItem(1, 10, "iPhone 13", "phones", 50000, Want{Description: "macbook pro"}),
		testItem(2, 20, "MacBook Pro 2021", "laptops", 55000),
	}

	g := BuildGraph(items, Criteria{TolerancePercent: 15})

	assert.Equal(t, []int64{2}, g.Neighbors(1))
}

func TestBuildGraphValueTolerance(t *testing.T) {
	items := []Item{
		testItem(1, 10, "iPhone 13", "electronics", 35000, Want{Category: "electronics"}),
		testItem(2, 20, "MacBook Pro", "electronics", 55000),
	}

	// 35k vs 55k is ~36% apart; outside 15%, inside 40%.
	g := BuildGraph(items, Criteria{TolerancePercent: 15})
	assert.Empty(t, g.Neighbors(1))

	g = BuildGraph(items, Criteria{TolerancePercent: 40})
	assert.Equal(t, []int64{2}, g.Neighbors(1))
}

func TestBuildGraphExplicitRangeOverridesTolerance(t *testing.T) {
	items := []Item{
		testItem(1, 10, "iPhone 13", "electronics", 35000,
			Want{Category: "electronics", MinValue: 50000, MaxValue: 60000}),
		testItem(2, 20, "MacBook Pro", "electronics", 55000),
		testItem(3, 30, "Old Camera", "electronics", 48000),
	}

	g := BuildGraph(items, Criteria{TolerancePercent: 15})

	// 55k is in [50k, 60k]; 48k is not, even though it is closer to 35k.
	assert.Equal(t, []int64{2}, g.Neighbors(1))
}

func TestBuildGraphExcludesOwnItems(t *testing.T) {
	items := []Item{
		testItem(1, 10, "iPhone 13", "electronics", 50000, Want{Category: "electronics"}),
		testItem(2, 10, "iPad", "electronics", 52000),
	}

	g := BuildGraph(items, Criteria{TolerancePercent: 15})

	assert.Empty(t, g.Neighbors(1), "owner must not match their own items")
}

func TestBuildGraphFilters(t *testing.T) {
	a := testItem(1, 10, "iPhone 13", "electronics", 50000, Want{Category: "electronics"})
	a.Governorate = "cairo"
	b := testItem(2, 20, "MacBook Pro", "electronics", 55000)
	b.Governorate = "giza"

	g := BuildGraph([]Item{a, b}, Criteria{TolerancePercent: 15, Governorates: []string{"cairo"}})
	assert.Equal(t, 1, g.NodeCount())

	g = BuildGraph([]Item{a, b}, Criteria{TolerancePercent: 15, Categories: []string{"furniture"}})
	assert.Equal(t, 0, g.NodeCount())
}

func TestCriteriaWithDefaults(t *testing.T) {
	c := Criteria{}.WithDefaults()
	assert.Equal(t, DefaultMaxChainLength, c.MaxChainLength)
	assert.Equal(t, DefaultTolerancePercent, c.TolerancePercent)

	c = Criteria{MaxChainLength: 1}.WithDefaults()
	assert.Equal(t, MinChainLength, c.MaxChainLength,
		"a chain length below the 2-party minimum clamps up, not to the default")

	c = Criteria{MaxChainLength: 3}.WithDefaults()
	assert.Equal(t, 3, c.MaxChainLength)
}

func TestWantValidate(t *testing.T) {
	assert.NoError(t, Want{Category: "electronics"}.Validate())
	assert.NoError(t, Want{Description: "macbook", MinValue: 100, MaxValue: 200}.Validate())
	assert.Error(t, Want{}.Validate())
	assert.Error(t, Want{Category: "x", MinValue: 200, MaxValue: 100}.Validate())
	assert.Error(t, Want{Category: "x", MinValue: -1}.Validate())
}
