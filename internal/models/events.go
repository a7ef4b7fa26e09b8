package models

import "time"

// Event types
const (
	EventTypeChainProposed       = "CHAIN_PROPOSED"
	EventTypeParticipantAccepted = "PARTICIPANT_ACCEPTED"
	EventTypeChainActivated      = "CHAIN_ACTIVATED"
	EventTypeChainCancelled      = "CHAIN_CANCELLED"
	EventTypeChainExpired        = "CHAIN_EXPIRED"
	EventTypeChainCompleted      = "CHAIN_COMPLETED"
	EventTypeSettlementConfirmed = "SETTLEMENT_CONFIRMED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// ParticipantData represents one chain position in events
type ParticipantData struct {
	UserID        int64 `json:"user_id"`
	OfferedItemID int64 `json:"offered_item_id"`
	WantedItemID  int64 `json:"wanted_item_id"`
	Position      int   `json:"position"`
}

// ChainProposedEvent published when a chain is created and its items reserved
type ChainProposedEvent struct {
	BaseEvent
	ChainID      int64             `json:"chain_id"`
	CreatedByID  int64             `json:"created_by_id"`
	TotalValue   int64             `json:"total_value"`
	ExpiresAt    time.Time         `json:"expires_at"`
	Participants []ParticipantData `json:"participants"`
}

// ParticipantAcceptedEvent published when one participant accepts
type ParticipantAcceptedEvent struct {
	BaseEvent
	ChainID       int64 `json:"chain_id"`
	UserID        int64 `json:"user_id"`
	AcceptedCount int   `json:"accepted_count"`
	TotalCount    int   `json:"total_count"`
}

// ChainActivatedEvent published when every participant has accepted
type ChainActivatedEvent struct {
	BaseEvent
	ChainID    int64 `json:"chain_id"`
	TotalValue int64 `json:"total_value"`
}

// ChainCancelledEvent published when a chain is cancelled (compensation)
type ChainCancelledEvent struct {
	BaseEvent
	ChainID       int64   `json:"chain_id"`
	Reason        string  `json:"reason"`
	ReleasedItems []int64 `json:"released_items"`
}

// ChainExpiredEvent published by the expiry sweep
type ChainExpiredEvent struct {
	BaseEvent
	ChainID       int64   `json:"chain_id"`
	ReleasedItems []int64 `json:"released_items"`
}

// ChainCompletedEvent published once external settlement confirms the exchange
type ChainCompletedEvent struct {
	BaseEvent
	ChainID int64 `json:"chain_id"`
}

// SettlementConfirmedEvent consumed from the settlement service
type SettlementConfirmedEvent struct {
	BaseEvent
	ChainID int64  `json:"chain_id"`
	TxRef   string `json:"tx_ref"`
}
