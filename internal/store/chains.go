package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"barter-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreateChainTx persists a chain, its participants and the reservation of
// every offered item in one transaction. Either the whole chain commits or
// nothing does; losing a reservation race surfaces models.ErrStaleItem.
func (s *Store) CreateChainTx(ctx context.Context, chain *models.BarterChain, participants []models.BarterParticipant) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = tx.GetContext(ctx, chain, `
		INSERT INTO barter_chains (status, total_value, participant_count, created_by_id, idempotency_key, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`,
		chain.Status, chain.TotalValue, chain.ParticipantCount,
		chain.CreatedByID, chain.IdempotencyKey, chain.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to create chain: %w", err)
	}

	itemIDs := make([]int64, len(participants))
	for i := range participants {
		p := &participants[i]
		p.ChainID = chain.ID
		itemIDs[i] = p.OfferedItemID

		err = tx.GetContext(ctx, &p.ID, `
			INSERT INTO barter_participants (chain_id, user_id, offered_item_id, wanted_item_id, position, status)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`,
			p.ChainID, p.UserID, p.OfferedItemID, p.WantedItemID, p.Position, p.Status)
		if err != nil {
			return fmt.Errorf("failed to create participant: %w", err)
		}
	}

	if err := reserveItems(ctx, tx, itemIDs, chain.ID); err != nil {
		return err
	}

	if err := updateOffersForChain(ctx, tx, chain.ID, models.OfferStatusAccepted); err != nil {
		return err
	}

	return tx.Commit()
}

// GetChainByID retrieves a chain by ID
func (s *Store) GetChainByID(ctx context.Context, id int64) (*models.BarterChain, error) {
	var chain models.BarterChain
	err := s.db.GetContext(ctx, &chain, "SELECT * FROM barter_chains WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, models.ErrChainNotFound
	}
	if err != nil {
		return nil, err
	}
	return &chain, nil
}

// GetChainByIdempotencyKey retrieves a chain by idempotency key
func (s *Store) GetChainByIdempotencyKey(ctx context.Context, key string) (*models.BarterChain, error) {
	var chain models.BarterChain
	err := s.db.GetContext(ctx, &chain, "SELECT * FROM barter_chains WHERE idempotency_key = $1", key)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &chain, nil
}

// GetParticipantsByChainID retrieves a chain's participants in position order
func (s *Store) GetParticipantsByChainID(ctx context.Context, chainID int64) ([]models.BarterParticipant, error) {
	var participants []models.BarterParticipant
	err := s.db.SelectContext(ctx, &participants,
		"SELECT * FROM barter_participants WHERE chain_id = $1 ORDER BY position", chainID)
	return participants, err
}

// AcceptParticipantTx records one participant's acceptance. The chain row is
// locked so concurrent responses serialize; when the last pending participant
// accepts, the chain moves to ACTIVE in the same transaction.
func (s *Store) AcceptParticipantTx(ctx context.Context, chainID, userID int64) (*models.BarterChain, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var chain models.BarterChain
	err = tx.GetContext(ctx, &chain,
		"SELECT * FROM barter_chains WHERE id = $1 FOR UPDATE", chainID)
	if err == sql.ErrNoRows {
		return nil, models.ErrChainNotFound
	}
	if err != nil {
		return nil, err
	}

	if chain.Status != models.ChainStatusProposed && chain.Status != models.ChainStatusPartiallyAccepted {
		return nil, models.ErrInvalidTransition
	}

	if err := respond(ctx, tx, chainID, userID, models.ParticipantStatusAccepted); err != nil {
		return nil, err
	}

	var pending int
	err = tx.GetContext(ctx, &pending,
		"SELECT COUNT(*) FROM barter_participants WHERE chain_id = $1 AND status = $2",
		chainID, models.ParticipantStatusPending)
	if err != nil {
		return nil, err
	}

	newStatus := models.ChainStatusPartiallyAccepted
	if pending == 0 {
		newStatus = models.ChainStatusActive
	}

	if err := updateChainStatus(ctx, tx, chainID, newStatus); err != nil {
		return nil, err
	}
	chain.Status = newStatus

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &chain, nil
}

// RejectParticipantTx records a rejection, cancels the chain and releases
// every item reservation in the same transaction. Returns the released ids.
func (s *Store) RejectParticipantTx(ctx context.Context, chainID, userID int64) (*models.BarterChain, []int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	var chain models.BarterChain
	err = tx.GetContext(ctx, &chain,
		"SELECT * FROM barter_chains WHERE id = $1 FOR UPDATE", chainID)
	if err == sql.ErrNoRows {
		return nil, nil, models.ErrChainNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	if chain.Status != models.ChainStatusProposed && chain.Status != models.ChainStatusPartiallyAccepted {
		return nil, nil, models.ErrInvalidTransition
	}

	if err := respond(ctx, tx, chainID, userID, models.ParticipantStatusRejected); err != nil {
		return nil, nil, err
	}

	if err := updateChainStatus(ctx, tx, chainID, models.ChainStatusCancelled); err != nil {
		return nil, nil, err
	}
	chain.Status = models.ChainStatusCancelled

	if err := updateOffersForChain(ctx, tx, chainID, models.OfferStatusPending); err != nil {
		return nil, nil, err
	}

	released, err := releaseItems(ctx, tx, chainID)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return &chain, released, nil
}

// CancelChainTx cancels a chain on behalf of its creator and releases its
// reservations.
func (s *Store) CancelChainTx(ctx context.Context, chainID int64, reason string) ([]int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var status string
	err = tx.GetContext(ctx, &status,
		"SELECT status FROM barter_chains WHERE id = $1 FOR UPDATE", chainID)
	if err == sql.ErrNoRows {
		return nil, models.ErrChainNotFound
	}
	if err != nil {
		return nil, err
	}

	if status != models.ChainStatusProposed && status != models.ChainStatusPartiallyAccepted {
		return nil, models.ErrInvalidTransition
	}

	if err := updateChainStatus(ctx, tx, chainID, models.ChainStatusCancelled); err != nil {
		return nil, err
	}

	if err := updateOffersForChain(ctx, tx, chainID, models.OfferStatusPending); err != nil {
		return nil, err
	}

	released, err := releaseItems(ctx, tx, chainID)
	if err != nil {
		return nil, err
	}

	return released, tx.Commit()
}

// ExpiredChain pairs an expired chain id with the item ids it released.
type ExpiredChain struct {
	ChainID       int64
	ReleasedItems []int64
}

// ExpireStaleChainsTx transitions every PROPOSED or PARTIALLY_ACCEPTED chain
// whose deadline has passed to EXPIRED and releases its reservations, each
// chain in its own transaction so one failure does not hold back the sweep.
func (s *Store) ExpireStaleChainsTx(ctx context.Context, now time.Time) ([]ExpiredChain, error) {
	var ids []int64
	err := s.db.SelectContext(ctx, &ids, `
		SELECT id FROM barter_chains
		WHERE expires_at < $1 AND status IN ($2, $3)
		ORDER BY id`,
		now, models.ChainStatusProposed, models.ChainStatusPartiallyAccepted)
	if err != nil {
		return nil, err
	}

	var expired []ExpiredChain
	for _, id := range ids {
		released, err := s.expireChainTx(ctx, id, now)
		if err != nil {
			return expired, err
		}
		if released == nil {
			// Lost a race with an accept/reject; the chain resolved itself.
			continue
		}
		expired = append(expired, ExpiredChain{ChainID: id, ReleasedItems: released})
	}
	return expired, nil
}

func (s *Store) expireChainTx(ctx context.Context, chainID int64, now time.Time) ([]int64, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var chain models.BarterChain
	err = tx.GetContext(ctx, &chain,
		"SELECT * FROM barter_chains WHERE id = $1 FOR UPDATE", chainID)
	if err != nil {
		return nil, err
	}

	if !chain.ExpiresAt.Before(now) ||
		(chain.Status != models.ChainStatusProposed && chain.Status != models.ChainStatusPartiallyAccepted) {
		return nil, nil
	}

	if err := updateChainStatus(ctx, tx, chainID, models.ChainStatusExpired); err != nil {
		return nil, err
	}

	if err := updateOffersForChain(ctx, tx, chainID, models.OfferStatusPending); err != nil {
		return nil, err
	}

	released, err := releaseItems(ctx, tx, chainID)
	if err != nil {
		return nil, err
	}
	if released == nil {
		released = []int64{}
	}

	return released, tx.Commit()
}

// CompleteChainTx finalizes an ACTIVE chain once settlement is confirmed:
// the chain becomes COMPLETED and its items leave the catalog as exchanged.
func (s *Store) CompleteChainTx(ctx context.Context, chainID int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var status string
	err = tx.GetContext(ctx, &status,
		"SELECT status FROM barter_chains WHERE id = $1 FOR UPDATE", chainID)
	if err == sql.ErrNoRows {
		return models.ErrChainNotFound
	}
	if err != nil {
		return err
	}

	if status != models.ChainStatusActive {
		return models.ErrInvalidTransition
	}

	if err := updateChainStatus(ctx, tx, chainID, models.ChainStatusCompleted); err != nil {
		return err
	}

	if err := updateOffersForChain(ctx, tx, chainID, models.OfferStatusCompleted); err != nil {
		return err
	}

	if err := exchangeItems(ctx, tx, chainID); err != nil {
		return err
	}

	return tx.Commit()
}

// GetChainStats aggregates chain and item counts for the stats endpoint
func (s *Store) GetChainStats(ctx context.Context) (*models.ChainStats, error) {
	var stats models.ChainStats
	err := s.db.GetContext(ctx, &stats, `
		SELECT
			COUNT(*) FILTER (WHERE c.status IN ('PROPOSED', 'PARTIALLY_ACCEPTED')) AS proposed_chains,
			COUNT(*) FILTER (WHERE c.status = 'ACTIVE')    AS active_chains,
			COUNT(*) FILTER (WHERE c.status = 'COMPLETED') AS completed_chains,
			COUNT(*) FILTER (WHERE c.status = 'CANCELLED') AS cancelled_chains,
			COUNT(*) FILTER (WHERE c.status = 'EXPIRED')   AS expired_chains,
			(SELECT COUNT(*) FROM barter_items WHERE status = 'available') AS available_items,
			(SELECT COUNT(*) FROM barter_items WHERE status = 'reserved')  AS reserved_items,
			(SELECT COUNT(*) FROM barter_items WHERE status = 'exchanged') AS exchanged_items
		FROM barter_chains c`)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func respond(ctx context.Context, tx *sqlx.Tx, chainID, userID int64, status string) error {
	var current string
	err := tx.GetContext(ctx, &current,
		"SELECT status FROM barter_participants WHERE chain_id = $1 AND user_id = $2 FOR UPDATE",
		chainID, userID)
	if err == sql.ErrNoRows {
		return models.ErrNotParticipant
	}
	if err != nil {
		return err
	}
	if current != models.ParticipantStatusPending {
		return models.ErrAlreadyResponded
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE barter_participants
		SET status = $1, responded_at = NOW()
		WHERE chain_id = $2 AND user_id = $3`,
		status, chainID, userID)
	return err
}

func updateChainStatus(ctx context.Context, tx *sqlx.Tx, chainID int64, status string) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE barter_chains SET status = $1, updated_at = NOW() WHERE id = $2",
		status, chainID)
	return err
}
