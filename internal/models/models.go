package models

import (
	"errors"
	"time"
)

// BarterItem represents an item listed for exchange
type BarterItem struct {
	ID             int64     `db:"id" json:"id"`
	OwnerID        int64     `db:"owner_id" json:"owner_id"`
	Title          string    `db:"title" json:"title"`
	Category       string    `db:"category" json:"category"`
	EstimatedValue int64     `db:"estimated_value" json:"estimated_value"`
	Status         string    `db:"status" json:"status"`
	ChainID        *int64    `db:"chain_id" json:"chain_id,omitempty"`
	Governorate    string    `db:"governorate" json:"governorate,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// BarterOffer represents a user's statement of exchange intent
type BarterOffer struct {
	ID          int64      `db:"id" json:"id"`
	UserID      int64      `db:"user_id" json:"user_id"`
	RecipientID *int64     `db:"recipient_id" json:"recipient_id,omitempty"`
	Status      string     `db:"status" json:"status"`
	ExpiresAt   *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// OfferItem links an offer to one item of its offered bundle
type OfferItem struct {
	ID      int64 `db:"id" json:"id"`
	OfferID int64 `db:"offer_id" json:"offer_id"`
	ItemID  int64 `db:"item_id" json:"item_id"`
}

// ItemRequest describes what an offer's owner wants in return
type ItemRequest struct {
	ID          int64  `db:"id" json:"id"`
	OfferID     int64  `db:"offer_id" json:"offer_id"`
	Category    string `db:"category" json:"category"`
	Description string `db:"description" json:"description,omitempty"`
	MinValue    int64  `db:"min_value" json:"min_value"`
	MaxValue    int64  `db:"max_value" json:"max_value"`
}

// BarterChain is the persisted realization of a selected exchange cycle
type BarterChain struct {
	ID               int64     `db:"id" json:"id"`
	Status           string    `db:"status" json:"status"`
	TotalValue       int64     `db:"total_value" json:"total_value"`
	ParticipantCount int       `db:"participant_count" json:"participant_count"`
	CreatedByID      int64     `db:"created_by_id" json:"created_by_id"`
	IdempotencyKey   string    `db:"idempotency_key" json:"idempotency_key,omitempty"`
	ExpiresAt        time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// BarterParticipant is one position in a chain. Positions are a contiguous
// cyclic 1..k sequence: the participant at position i receives the item
// offered by the participant at position i+1 (mod k).
type BarterParticipant struct {
	ID            int64      `db:"id" json:"id"`
	ChainID       int64      `db:"chain_id" json:"chain_id"`
	UserID        int64      `db:"user_id" json:"user_id"`
	OfferedItemID int64      `db:"offered_item_id" json:"offered_item_id"`
	WantedItemID  int64      `db:"wanted_item_id" json:"wanted_item_id"`
	Position      int        `db:"position" json:"position"`
	Status        string     `db:"status" json:"status"`
	RespondedAt   *time.Time `db:"responded_at" json:"responded_at,omitempty"`
}

// Item statuses
const (
	ItemStatusAvailable = "available"
	ItemStatusReserved  = "reserved"
	ItemStatusExchanged = "exchanged"
	ItemStatusWithdrawn = "withdrawn"
)

// Offer statuses
const (
	OfferStatusPending   = "PENDING"
	OfferStatusAccepted  = "ACCEPTED"
	OfferStatusRejected  = "REJECTED"
	OfferStatusExpired   = "EXPIRED"
	OfferStatusCompleted = "COMPLETED"
	OfferStatusCancelled = "CANCELLED"
)

// Chain statuses
const (
	ChainStatusProposed          = "PROPOSED"
	ChainStatusPartiallyAccepted = "PARTIALLY_ACCEPTED"
	ChainStatusActive            = "ACTIVE"
	ChainStatusCompleted         = "COMPLETED"
	ChainStatusCancelled         = "CANCELLED"
	ChainStatusExpired           = "EXPIRED"
)

// Participant statuses
const (
	ParticipantStatusPending  = "PENDING"
	ParticipantStatusAccepted = "ACCEPTED"
	ParticipantStatusRejected = "REJECTED"
)

// Domain errors surfaced to the API layer
var (
	// ErrStaleItem means an item selected by search was no longer available at
	// commit time; the caller should re-run matching, not retry the same chain.
	ErrStaleItem = errors.New("item no longer available")

	ErrValidation        = errors.New("invalid input")
	ErrChainNotFound     = errors.New("chain not found")
	ErrOfferNotFound     = errors.New("offer not found")
	ErrNotParticipant    = errors.New("user is not a participant of this chain")
	ErrAlreadyResponded  = errors.New("participant has already responded")
	ErrInvalidTransition = errors.New("chain is not in a respondable state")

	// ErrChainInvariant is a defensive check failing between search and commit;
	// it aborts proposeChain entirely and is never persisted.
	ErrChainInvariant = errors.New("chain invariant violation")
)

// ChainStats aggregates counts for the stats endpoint
type ChainStats struct {
	ProposedChains  int64 `db:"proposed_chains" json:"proposed_chains"`
	ActiveChains    int64 `db:"active_chains" json:"active_chains"`
	CompletedChains int64 `db:"completed_chains" json:"completed_chains"`
	CancelledChains int64 `db:"cancelled_chains" json:"cancelled_chains"`
	ExpiredChains   int64 `db:"expired_chains" json:"expired_chains"`
	AvailableItems  int64 `db:"available_items" json:"available_items"`
	ReservedItems   int64 `db:"reserved_items" json:"reserved_items"`
	ExchangedItems  int64 `db:"exchanged_items" json:"exchanged_items"`
}

// ProcessedEvent for consumer idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
