package service

import (
	"context"
	"fmt"
	"time"

	"barter-service/config"
	"barter-service/internal/match"
	"barter-service/internal/models"
	"barter-service/internal/store"
	"barter-service/internal/util"

	"go.uber.org/zap"
)

// MatcherService runs barter match searches. Search is a pure function of
// the catalog snapshot and the criteria: identical inputs rank identically.
type MatcherService struct {
	store    *store.Store
	catalog  *CatalogClient
	defaults match.Criteria
	logger   *zap.Logger
}

// NewMatcherService creates a new matcher service
func NewMatcherService(store *store.Store, catalog *CatalogClient, cfg config.MatchingConfig) *MatcherService {
	return &MatcherService{
		store:   store,
		catalog: catalog,
		defaults: match.Criteria{
			MaxChainLength:   cfg.MaxChainLength,
			TolerancePercent: cfg.TolerancePercent,
			MaxPaths:         cfg.SearchMaxPaths,
			Deadline:         time.Duration(cfg.SearchDeadlineMillis) * time.Millisecond,
		},
		logger: util.GetLogger(),
	}
}

// SearchCriteria is the caller-facing subset of match criteria
type SearchCriteria struct {
	MaxChainLength    int      `json:"max_chain_length,omitempty"`
	ValueTolerancePct float64  `json:"value_tolerance_percent,omitempty"`
	GovernorateFilter []string `json:"governorate_filter,omitempty"`
	CategoryFilter    []string `json:"category_filter,omitempty"`
}

// MatchResponse carries ranked cycles plus search budget metadata
type MatchResponse struct {
	OfferID       int64         `json:"offer_id"`
	Cycles        []match.Cycle `json:"cycles"`
	Truncated     bool          `json:"truncated"`
	PathsExplored int           `json:"paths_explored"`
}

func (ms *MatcherService) criteria(sc SearchCriteria) match.Criteria {
	c := ms.defaults
	if sc.MaxChainLength > 0 {
		c.MaxChainLength = sc.MaxChainLength
	}
	if sc.ValueTolerancePct > 0 {
		c.TolerancePercent = sc.ValueTolerancePct
	}
	c.Governorates = sc.GovernorateFilter
	c.Categories = sc.CategoryFilter
	return c.WithDefaults()
}

// FindMatches discovers, ranks and packs exchange cycles involving the
// anchor offer's items. Zero candidates is an empty result, not an error;
// a truncated search surfaces as metadata alongside the results.
func (ms *MatcherService) FindMatches(ctx context.Context, offerID int64, sc SearchCriteria) (*MatchResponse, error) {
	ctx, span := util.StartSpan(ctx, "MatcherService.FindMatches")
	defer span.End()

	start := time.Now()
	defer func() {
		util.MatchSearchLatency.Observe(time.Since(start).Seconds())
	}()
	util.MatchSearchesTotal.WithLabelValues("cycle").Inc()

	criteria := ms.criteria(sc)

	graph, snapshot, err := ms.loadGraph(ctx, offerID, criteria)
	if err != nil {
		return nil, err
	}

	result := match.FindCycles(graph, criteria)
	if result.Truncated {
		util.MatchSearchesTruncated.Inc()
		ms.logger.Warn("Match search truncated by budget",
			zap.Int64("offer_id", offerID),
			zap.Int("paths_explored", result.PathsExplored))
	}

	cycles := filterByOffer(graph, result.Cycles, offerID)
	util.CyclesFoundTotal.Add(float64(len(cycles)))

	trust := ms.catalog.TrustScores(ctx, snapshot)
	ranked := match.SelectDisjoint(match.Rank(graph, cycles, trust))

	return &MatchResponse{
		OfferID:       offerID,
		Cycles:        ranked,
		Truncated:     result.Truncated,
		PathsExplored: result.PathsExplored,
	}, nil
}

// FindDirectMatches runs the reciprocal 2-party fast path for an offer.
func (ms *MatcherService) FindDirectMatches(ctx context.Context, offerID int64, sc SearchCriteria) (*MatchResponse, error) {
	ctx, span := util.StartSpan(ctx, "MatcherService.FindDirectMatches")
	defer span.End()

	util.MatchSearchesTotal.WithLabelValues("direct").Inc()

	criteria := ms.criteria(sc)
	criteria.MaxChainLength = match.MinChainLength

	graph, snapshot, err := ms.loadGraph(ctx, offerID, criteria)
	if err != nil {
		return nil, err
	}

	result := match.FindDirect(graph, offerID, criteria)
	util.CyclesFoundTotal.Add(float64(len(result.Cycles)))

	trust := ms.catalog.TrustScores(ctx, snapshot)
	ranked := match.Rank(graph, result.Cycles, trust)

	return &MatchResponse{
		OfferID:       offerID,
		Cycles:        ranked,
		Truncated:     result.Truncated,
		PathsExplored: result.PathsExplored,
	}, nil
}

// GetStats returns aggregate chain and item counts
func (ms *MatcherService) GetStats(ctx context.Context) (*models.ChainStats, error) {
	return ms.store.GetChainStats(ctx)
}

func (ms *MatcherService) loadGraph(ctx context.Context, offerID int64, criteria match.Criteria) (*match.Graph, []match.Item, error) {
	offer, err := ms.store.GetOfferByID(ctx, offerID)
	if err != nil {
		return nil, nil, err
	}
	if offer.Status != models.OfferStatusPending {
		return nil, nil, fmt.Errorf("%w: offer %d is %s", models.ErrValidation, offerID, offer.Status)
	}

	snapshot, err := ms.catalog.Snapshot(ctx)
	if err != nil {
		return nil, nil, err
	}

	return match.BuildGraph(snapshot, criteria), snapshot, nil
}

// filterByOffer keeps cycles that trade at least one item of the anchor offer.
func filterByOffer(g *match.Graph, cycles []match.Cycle, offerID int64) []match.Cycle {
	var kept []match.Cycle
	for _, c := range cycles {
		for _, leg := range c.Legs {
			item := g.Item(leg.OfferedItemID)
			if item != nil && item.OfferID == offerID {
				kept = append(kept, c)
				break
			}
		}
	}
	return kept
}
