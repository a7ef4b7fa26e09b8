package service

import (
	"context"
	"fmt"
	"time"

	"barter-service/internal/match"
	"barter-service/internal/models"
	"barter-service/internal/redisclient"
	"barter-service/internal/store"
	"barter-service/internal/util"

	"go.uber.org/zap"
)

// CatalogClient supplies immutable item snapshots to the matching engine.
// Search works only on snapshots; every mutation of item availability goes
// through the chain lifecycle, never through search.
type CatalogClient struct {
	store  *store.Store
	redis  *redisclient.Client
	logger *zap.Logger
}

// NewCatalogClient creates a new catalog client
func NewCatalogClient(store *store.Store, redis *redisclient.Client) *CatalogClient {
	return &CatalogClient{
		store:  store,
		redis:  redis,
		logger: util.GetLogger(),
	}
}

// Snapshot loads every available item attached to an active offer, together
// with the offer's stated wants. Offers carrying a malformed request are
// rejected here, before graph construction ever sees them.
func (cc *CatalogClient) Snapshot(ctx context.Context) ([]match.Item, error) {
	ctx, span := util.StartSpan(ctx, "CatalogClient.Snapshot")
	defer span.End()

	now := time.Now()

	offers, err := cc.store.ListActiveOffers(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list active offers: %w", err)
	}
	if len(offers) == 0 {
		return nil, nil
	}

	offerIDs := make([]int64, len(offers))
	for i, o := range offers {
		offerIDs[i] = o.ID
	}

	offerItems, err := cc.store.GetOfferItems(ctx, offerIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load offer bundles: %w", err)
	}

	requests, err := cc.store.GetItemRequests(ctx, offerIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load item requests: %w", err)
	}

	itemIDs := make([]int64, 0, len(offerItems))
	for _, oi := range offerItems {
		itemIDs = append(itemIDs, oi.ItemID)
	}
	items, err := cc.store.GetItemsByIDs(ctx, itemIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load items: %w", err)
	}

	snapshot, skipped := AssembleSnapshot(offers, offerItems, items, requests)
	if skipped > 0 {
		cc.logger.Warn("Skipped offers with malformed requests", zap.Int("count", skipped))
	}
	return snapshot, nil
}

// TrustScores fetches ranking-tiebreaker trust scores for the owners in a
// snapshot. Failures degrade to an empty map; trust is optional.
func (cc *CatalogClient) TrustScores(ctx context.Context, snapshot []match.Item) map[int64]float64 {
	seen := make(map[int64]bool)
	var userIDs []int64
	for _, item := range snapshot {
		if !seen[item.OwnerID] {
			seen[item.OwnerID] = true
			userIDs = append(userIDs, item.OwnerID)
		}
	}

	scores, err := cc.redis.GetTrustScores(ctx, userIDs)
	if err != nil {
		cc.logger.Warn("Trust score lookup failed, ranking without trust", zap.Error(err))
		return map[int64]float64{}
	}
	return scores
}

// AssembleSnapshot joins offers, bundles, items and requests into match
// inputs. Offers whose requests fail validation are dropped; items that are
// not available are dropped. Returns the snapshot and the number of offers
// skipped as malformed.
func AssembleSnapshot(
	offers []models.BarterOffer,
	offerItems []models.OfferItem,
	items []models.BarterItem,
	requests []models.ItemRequest,
) ([]match.Item, int) {
	itemsByID := make(map[int64]*models.BarterItem, len(items))
	for i := range items {
		itemsByID[items[i].ID] = &items[i]
	}

	wantsByOffer := make(map[int64][]match.Want)
	malformed := make(map[int64]bool)
	for _, r := range requests {
		w := match.Want{
			Category:    r.Category,
			Description: r.Description,
			MinValue:    r.MinValue,
			MaxValue:    r.MaxValue,
		}
		if err := w.Validate(); err != nil {
			malformed[r.OfferID] = true
			continue
		}
		wantsByOffer[r.OfferID] = append(wantsByOffer[r.OfferID], w)
	}

	offersByID := make(map[int64]*models.BarterOffer, len(offers))
	for i := range offers {
		offersByID[offers[i].ID] = &offers[i]
	}

	var snapshot []match.Item
	skipped := 0
	counted := make(map[int64]bool)

	for _, oi := range offerItems {
		offer := offersByID[oi.OfferID]
		if offer == nil {
			continue
		}
		if malformed[oi.OfferID] {
			if !counted[oi.OfferID] {
				counted[oi.OfferID] = true
				skipped++
			}
			continue
		}
		item := itemsByID[oi.ItemID]
		if item == nil || item.Status != models.ItemStatusAvailable {
			continue
		}

		snapshot = append(snapshot, match.Item{
			ID:             item.ID,
			OwnerID:        item.OwnerID,
			Title:          item.Title,
			Category:       item.Category,
			Value:          item.EstimatedValue,
			Governorate:    item.Governorate,
			OfferID:        offer.ID,
			OfferCreatedAt: offer.CreatedAt,
			Wants:          wantsByOffer[oi.OfferID],
		})
	}

	return snapshot, skipped
}
