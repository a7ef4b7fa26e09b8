package service

import (
	"testing"

	"barter-service/internal/match"
	"barter-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParticipantsFromCycle(t *testing.T) {
	cycle := match.Cycle{
		Legs: []match.Leg{
			{UserID: 10, OfferedItemID: 1, WantedItemID: 2},
			{UserID: 20, OfferedItemID: 2, WantedItemID: 3},
			{UserID: 30, OfferedItemID: 3, WantedItemID: 1},
		},
		TotalValue: 135000,
	}

	participants := participantsFromCycle(cycle)

	require.Len(t, participants, 3)
	for i, p := range participants {
		assert.Equal(t, i+1, p.Position, "positions must be a contiguous 1..k sequence")
		assert.Equal(t, models.ParticipantStatusPending, p.Status)
		assert.Equal(t, cycle.Legs[i].UserID, p.UserID)
		assert.Equal(t, cycle.Legs[i].OfferedItemID, p.OfferedItemID)
		assert.Equal(t, cycle.Legs[i].WantedItemID, p.WantedItemID)
	}

	// Each leg's wanted item is the next position's offered item.
	k := len(participants)
	for i, p := range participants {
		assert.Equal(t, participants[(i+1)%k].OfferedItemID, p.WantedItemID)
	}
}

func TestParticipantDataMirrorsParticipants(t *testing.T) {
	participants := []models.BarterParticipant{
		{UserID: 10, OfferedItemID: 1, WantedItemID: 2, Position: 1},
		{UserID: 20, OfferedItemID: 2, WantedItemID: 1, Position: 2},
	}

	data := participantData(participants)

	require.Len(t, data, 2)
	assert.Equal(t, int64(10), data[0].UserID)
	assert.Equal(t, int64(2), data[0].WantedItemID)
	assert.Equal(t, 2, data[1].Position)
}

func TestClassifyCycleErrorLostRaceIsStaleItem(t *testing.T) {
	// A and B swap; a concurrent chain reserves B's MacBook, so the loser's
	// fresh snapshot no longer contains item 2.
	cycle := match.Cycle{
		Legs: []match.Leg{
			{UserID: 10, OfferedItemID: 1, WantedItemID: 2},
			{UserID: 20, OfferedItemID: 2, WantedItemID: 1},
		},
	}
	snapshot := []match.Item{
		{ID: 1, OwnerID: 10, Title: "iPhone 13", Category: "phones", Value: 35000,
			Wants: []match.Want{{Category: "laptops"}}},
	}

	criteria := match.Criteria{TolerancePercent: 40}
	graph := match.BuildGraph(snapshot, criteria)

	err := match.ValidateCycle(graph, cycle, criteria)
	require.Error(t, err)

	classified := classifyCycleError(err)
	assert.ErrorIs(t, classified, models.ErrStaleItem,
		"losing a reservation race must tell the caller to re-run matching")
	assert.NotErrorIs(t, classified, models.ErrChainInvariant)
}

func TestClassifyCycleErrorStructuralDefectIsInvariant(t *testing.T) {
	snapshot := []match.Item{
		{ID: 1, OwnerID: 10, Title: "iPhone 13", Category: "phones", Value: 35000,
			Wants: []match.Want{{Category: "laptops"}}},
		{ID: 2, OwnerID: 20, Title: "MacBook Pro", Category: "laptops", Value: 36000,
			Wants: []match.Want{{Category: "phones"}}},
	}

	// Both items are present but the ring does not close.
	broken := match.Cycle{
		Legs: []match.Leg{
			{UserID: 10, OfferedItemID: 1, WantedItemID: 2},
			{UserID: 20, OfferedItemID: 2, WantedItemID: 2},
		},
	}

	criteria := match.Criteria{TolerancePercent: 40}
	graph := match.BuildGraph(snapshot, criteria)

	err := match.ValidateCycle(graph, broken, criteria)
	require.Error(t, err)

	classified := classifyCycleError(err)
	assert.ErrorIs(t, classified, models.ErrChainInvariant)
	assert.NotErrorIs(t, classified, models.ErrStaleItem)
}

func TestNewBaseEvent(t *testing.T) {
	event := newBaseEvent(models.EventTypeChainProposed)

	assert.Equal(t, models.EventTypeChainProposed, event.EventType)
	assert.NotEmpty(t, event.EventID)
	assert.False(t, event.Timestamp.IsZero())

	other := newBaseEvent(models.EventTypeChainProposed)
	assert.NotEqual(t, event.EventID, other.EventID)
}
