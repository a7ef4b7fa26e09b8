package store

import (
	"context"
	"database/sql"
	"time"

	"barter-service/internal/models"
)

// GetOfferByID retrieves an offer by ID
func (s *Store) GetOfferByID(ctx context.Context, id int64) (*models.BarterOffer, error) {
	var offer models.BarterOffer
	err := s.db.GetContext(ctx, &offer, "SELECT * FROM barter_offers WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, models.ErrOfferNotFound
	}
	if err != nil {
		return nil, err
	}
	return &offer, nil
}

// ListActiveOffers retrieves all pending, non-expired offers
func (s *Store) ListActiveOffers(ctx context.Context, now time.Time) ([]models.BarterOffer, error) {
	var offers []models.BarterOffer
	err := s.db.SelectContext(ctx, &offers, `
		SELECT * FROM barter_offers
		WHERE status = $1 AND (expires_at IS NULL OR expires_at > $2)
		ORDER BY created_at`,
		models.OfferStatusPending, now)
	return offers, err
}

// GetOfferItems retrieves the bundle rows of a set of offers
func (s *Store) GetOfferItems(ctx context.Context, offerIDs []int64) ([]models.OfferItem, error) {
	if len(offerIDs) == 0 {
		return []models.OfferItem{}, nil
	}
	query, args, err := inRebind(s.db, "SELECT * FROM offer_items WHERE offer_id IN (?) ORDER BY id", offerIDs)
	if err != nil {
		return nil, err
	}
	var items []models.OfferItem
	err = s.db.SelectContext(ctx, &items, query, args...)
	return items, err
}

// GetItemRequests retrieves the want rows of a set of offers
func (s *Store) GetItemRequests(ctx context.Context, offerIDs []int64) ([]models.ItemRequest, error) {
	if len(offerIDs) == 0 {
		return []models.ItemRequest{}, nil
	}
	query, args, err := inRebind(s.db, "SELECT * FROM item_requests WHERE offer_id IN (?) ORDER BY id", offerIDs)
	if err != nil {
		return nil, err
	}
	var requests []models.ItemRequest
	err = s.db.SelectContext(ctx, &requests, query, args...)
	return requests, err
}
