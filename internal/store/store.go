package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"barter-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// GetItemByID retrieves a barter item by ID
func (s *Store) GetItemByID(ctx context.Context, id int64) (*models.BarterItem, error) {
	var item models.BarterItem
	err := s.db.GetContext(ctx, &item, "SELECT * FROM barter_items WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("item not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// GetItemsByIDs retrieves multiple barter items by IDs
func (s *Store) GetItemsByIDs(ctx context.Context, ids []int64) ([]models.BarterItem, error) {
	if len(ids) == 0 {
		return []models.BarterItem{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM barter_items WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var items []models.BarterItem
	err = s.db.SelectContext(ctx, &items, query, args...)
	return items, err
}

// GetAvailableItems retrieves all currently barterable items
func (s *Store) GetAvailableItems(ctx context.Context) ([]models.BarterItem, error) {
	var items []models.BarterItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM barter_items WHERE status = $1 ORDER BY id", models.ItemStatusAvailable)
	return items, err
}

// ReserveItemsTx reserves a set of items for a chain in a single transaction.
// Every item row is locked FOR UPDATE and must still be available; if any
// item has been taken by a concurrent chain the whole reservation fails with
// models.ErrStaleItem and nothing is written.
func (s *Store) ReserveItemsTx(ctx context.Context, itemIDs []int64, chainID int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := reserveItems(ctx, tx, itemIDs, chainID); err != nil {
		return err
	}

	return tx.Commit()
}

// reserveItems locks and reserves items inside an existing transaction.
func reserveItems(ctx context.Context, tx *sqlx.Tx, itemIDs []int64, chainID int64) error {
	query, args, err := sqlx.In(
		"SELECT id, status FROM barter_items WHERE id IN (?) ORDER BY id FOR UPDATE", itemIDs)
	if err != nil {
		return err
	}
	query = tx.Rebind(query)

	var rows []struct {
		ID     int64  `db:"id"`
		Status string `db:"status"`
	}
	if err := tx.SelectContext(ctx, &rows, query, args...); err != nil {
		return fmt.Errorf("failed to lock items: %w", err)
	}

	if len(rows) != len(itemIDs) {
		return fmt.Errorf("%w: item missing from catalog", models.ErrStaleItem)
	}
	for _, row := range rows {
		if row.Status != models.ItemStatusAvailable {
			return fmt.Errorf("%w: item %d is %s", models.ErrStaleItem, row.ID, row.Status)
		}
	}

	query, args, err = sqlx.In(
		"UPDATE barter_items SET status = ?, chain_id = ?, updated_at = NOW() WHERE id IN (?)",
		models.ItemStatusReserved, chainID, itemIDs)
	if err != nil {
		return err
	}
	query = tx.Rebind(query)

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to reserve items: %w", err)
	}
	return nil
}

// releaseItems returns a chain's reserved items to available inside an
// existing transaction and reports which item ids were released.
func releaseItems(ctx context.Context, tx *sqlx.Tx, chainID int64) ([]int64, error) {
	var ids []int64
	err := tx.SelectContext(ctx, &ids, `
		UPDATE barter_items
		SET status = $1, chain_id = NULL, updated_at = NOW()
		WHERE chain_id = $2 AND status = $3
		RETURNING id`,
		models.ItemStatusAvailable, chainID, models.ItemStatusReserved)
	if err != nil {
		return nil, fmt.Errorf("failed to release items: %w", err)
	}
	return ids, nil
}

// updateOffersForChain moves the offers whose items are folded into a chain
// through the offer lifecycle alongside the chain itself. Must run while the
// chain's items still carry its chain_id, so on release paths it comes
// before releaseItems.
func updateOffersForChain(ctx context.Context, tx *sqlx.Tx, chainID int64, status string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE barter_offers SET status = $1, updated_at = NOW()
		WHERE id IN (
			SELECT oi.offer_id
			FROM offer_items oi
			JOIN barter_items bi ON bi.id = oi.item_id
			WHERE bi.chain_id = $2
		)`,
		status, chainID)
	if err != nil {
		return fmt.Errorf("failed to update offers for chain: %w", err)
	}
	return nil
}

// exchangeItems marks a chain's reserved items as exchanged inside an
// existing transaction (terminal state, item leaves the catalog).
func exchangeItems(ctx context.Context, tx *sqlx.Tx, chainID int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE barter_items
		SET status = $1, updated_at = NOW()
		WHERE chain_id = $2 AND status = $3`,
		models.ItemStatusExchanged, chainID, models.ItemStatusReserved)
	if err != nil {
		return fmt.Errorf("failed to mark items exchanged: %w", err)
	}
	return nil
}

// inRebind expands an IN (?) query and rebinds it for postgres
func inRebind(db *sqlx.DB, query string, ids []int64) (string, []interface{}, error) {
	q, args, err := sqlx.In(query, ids)
	if err != nil {
		return "", nil, err
	}
	return db.Rebind(q), args, nil
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
