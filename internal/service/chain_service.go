package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"barter-service/config"
	"barter-service/internal/broker"
	"barter-service/internal/match"
	"barter-service/internal/models"
	"barter-service/internal/redisclient"
	"barter-service/internal/store"
	"barter-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ChainService drives the barter chain state machine: proposal with atomic
// item reservation, per-participant acceptance, rejection cascades, expiry
// and settlement-confirmed completion.
type ChainService struct {
	store          *store.Store
	redis          *redisclient.Client
	catalog        *CatalogClient
	eventPublisher *broker.EventPublisher
	chainTTL       time.Duration
	tolerance      float64
	maxChainLength int
	logger         *zap.Logger
}

// NewChainService creates a new chain service
func NewChainService(
	store *store.Store,
	redis *redisclient.Client,
	catalog *CatalogClient,
	eventPublisher *broker.EventPublisher,
	cfg config.MatchingConfig,
) *ChainService {
	return &ChainService{
		store:          store,
		redis:          redis,
		catalog:        catalog,
		eventPublisher: eventPublisher,
		chainTTL:       time.Duration(cfg.ChainTTLHours) * time.Hour,
		tolerance:      cfg.TolerancePercent,
		maxChainLength: cfg.MaxChainLength,
		logger:         util.GetLogger(),
	}
}

// ProposeChainRequest carries a selected cycle into the lifecycle
type ProposeChainRequest struct {
	Cycle            match.Cycle `json:"cycle" binding:"required"`
	CreatedByID      int64       `json:"created_by_id" binding:"required"`
	TolerancePercent float64     `json:"tolerance_percent,omitempty"`
	IdempotencyKey   string      `json:"idempotency_key,omitempty"`
}

// ProposeChain converts a selected cycle into a persisted chain. The cycle
// is re-validated against a fresh catalog snapshot and every item is
// reserved at commit time: of two proposals racing over the same item,
// exactly one commits and the loser gets models.ErrStaleItem.
func (cs *ChainService) ProposeChain(ctx context.Context, req *ProposeChainRequest) (*models.BarterChain, error) {
	ctx, span := util.StartSpan(ctx, "ChainService.ProposeChain")
	defer span.End()

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.New().String()
	}

	existing, err := cs.store.GetChainByIdempotencyKey(ctx, req.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}
	if existing != nil {
		cs.logger.Info("Duplicate chain proposal",
			zap.String("idempotency_key", req.IdempotencyKey),
			zap.Int64("chain_id", existing.ID))
		return existing, nil
	}

	if err := cs.ValidateCycle(ctx, req.Cycle, req.TolerancePercent); err != nil {
		return nil, err
	}

	participants := participantsFromCycle(req.Cycle)

	chain := &models.BarterChain{
		Status:           models.ChainStatusProposed,
		TotalValue:       req.Cycle.TotalValue,
		ParticipantCount: len(participants),
		CreatedByID:      req.CreatedByID,
		IdempotencyKey:   req.IdempotencyKey,
		ExpiresAt:        time.Now().Add(cs.chainTTL),
	}

	itemIDs := req.Cycle.ItemIDs()

	start := time.Now()
	defer func() {
		util.ReservationLatency.Observe(time.Since(start).Seconds())
	}()

	// Fast-path hold in Redis rejects doomed proposals before touching the
	// database; the database transaction stays the source of truth.
	held, err := cs.redis.ReserveItems(ctx, itemIDs, req.IdempotencyKey, cs.chainTTL)
	if err != nil {
		cs.logger.Warn("Redis item hold failed, relying on database reservation", zap.Error(err))
	} else if !held {
		util.ReservationFailuresTotal.WithLabelValues("fast_path_conflict").Inc()
		return nil, fmt.Errorf("%w: concurrent proposal holds these items", models.ErrStaleItem)
	}

	if err := cs.store.CreateChainTx(ctx, chain, participants); err != nil {
		cs.releaseHolds(ctx, itemIDs, req.IdempotencyKey)
		if errors.Is(err, models.ErrStaleItem) {
			util.ReservationFailuresTotal.WithLabelValues("stale_item").Inc()
			return nil, err
		}
		util.ReservationFailuresTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to persist chain: %w", err)
	}

	util.ChainsProposedTotal.Inc()
	cs.logger.Info("Chain proposed",
		zap.Int64("chain_id", chain.ID),
		zap.Int("participants", len(participants)),
		zap.Int64("total_value", chain.TotalValue))

	event := &models.ChainProposedEvent{
		BaseEvent:    newBaseEvent(models.EventTypeChainProposed),
		ChainID:      chain.ID,
		CreatedByID:  chain.CreatedByID,
		TotalValue:   chain.TotalValue,
		ExpiresAt:    chain.ExpiresAt,
		Participants: participantData(participants),
	}
	if err := cs.eventPublisher.PublishChainProposed(ctx, event); err != nil {
		cs.logger.Error("Failed to publish ChainProposed event", zap.Error(err))
	}

	return chain, nil
}

// ValidateCycle re-checks a cycle's invariants against a fresh snapshot.
// Structural violations are chain invariant errors and abort the proposal;
// they are never persisted.
func (cs *ChainService) ValidateCycle(ctx context.Context, cycle match.Cycle, tolerancePercent float64) error {
	if tolerancePercent <= 0 {
		tolerancePercent = cs.tolerance
	}

	snapshot, err := cs.catalog.Snapshot(ctx)
	if err != nil {
		return err
	}

	criteria := match.Criteria{
		MaxChainLength:   cs.maxChainLength,
		TolerancePercent: tolerancePercent,
	}
	graph := match.BuildGraph(snapshot, criteria)

	if err := match.ValidateCycle(graph, cycle, criteria); err != nil {
		return classifyCycleError(err)
	}
	return nil
}

// classifyCycleError separates a lost reservation race from a genuine
// structural defect. An item that left the snapshot means a concurrent chain
// took it and the caller should re-run matching; anything else means the
// cycle itself is broken and must not be retried.
func classifyCycleError(err error) error {
	if errors.Is(err, match.ErrItemUnavailable) {
		return fmt.Errorf("%w: %v", models.ErrStaleItem, err)
	}
	return fmt.Errorf("%w: %v", models.ErrChainInvariant, err)
}

// AcceptParticipant records one participant's acceptance; when the last one
// accepts the chain becomes ACTIVE.
func (cs *ChainService) AcceptParticipant(ctx context.Context, chainID, userID int64) (*models.BarterChain, error) {
	ctx, span := util.StartSpan(ctx, "ChainService.AcceptParticipant")
	defer span.End()

	chain, err := cs.store.AcceptParticipantTx(ctx, chainID, userID)
	if err != nil {
		return nil, err
	}

	participants, err := cs.store.GetParticipantsByChainID(ctx, chainID)
	if err != nil {
		return chain, err
	}
	accepted := 0
	for _, p := range participants {
		if p.Status == models.ParticipantStatusAccepted {
			accepted++
		}
	}

	cs.logger.Info("Participant accepted",
		zap.Int64("chain_id", chainID),
		zap.Int64("user_id", userID),
		zap.String("chain_status", chain.Status))

	acceptedEvent := &models.ParticipantAcceptedEvent{
		BaseEvent:     newBaseEvent(models.EventTypeParticipantAccepted),
		ChainID:       chainID,
		UserID:        userID,
		AcceptedCount: accepted,
		TotalCount:    len(participants),
	}
	if err := cs.eventPublisher.PublishParticipantAccepted(ctx, acceptedEvent); err != nil {
		cs.logger.Error("Failed to publish ParticipantAccepted event", zap.Error(err))
	}

	if chain.Status == models.ChainStatusActive {
		util.ChainsActivatedTotal.Inc()
		activatedEvent := &models.ChainActivatedEvent{
			BaseEvent:  newBaseEvent(models.EventTypeChainActivated),
			ChainID:    chainID,
			TotalValue: chain.TotalValue,
		}
		if err := cs.eventPublisher.PublishChainActivated(ctx, activatedEvent); err != nil {
			cs.logger.Error("Failed to publish ChainActivated event", zap.Error(err))
		}
	}

	return chain, nil
}

// RejectParticipant records a rejection. Any single rejection cancels the
// whole chain and releases every reservation in the same transaction.
func (cs *ChainService) RejectParticipant(ctx context.Context, chainID, userID int64) (*models.BarterChain, error) {
	ctx, span := util.StartSpan(ctx, "ChainService.RejectParticipant")
	defer span.End()

	chain, released, err := cs.store.RejectParticipantTx(ctx, chainID, userID)
	if err != nil {
		return nil, err
	}

	cs.releaseHolds(ctx, released, chain.IdempotencyKey)
	util.ChainsCancelledTotal.WithLabelValues("participant_rejected").Inc()

	cs.logger.Info("Chain cancelled by rejection",
		zap.Int64("chain_id", chainID),
		zap.Int64("user_id", userID),
		zap.Int64s("released_items", released))

	event := &models.ChainCancelledEvent{
		BaseEvent:     newBaseEvent(models.EventTypeChainCancelled),
		ChainID:       chainID,
		Reason:        "participant rejected",
		ReleasedItems: released,
	}
	if err := cs.eventPublisher.PublishChainCancelled(ctx, event); err != nil {
		cs.logger.Error("Failed to publish ChainCancelled event", zap.Error(err))
	}

	return chain, nil
}

// CancelChain lets the creator withdraw a chain that has not activated yet.
func (cs *ChainService) CancelChain(ctx context.Context, chainID, userID int64) error {
	ctx, span := util.StartSpan(ctx, "ChainService.CancelChain")
	defer span.End()

	chain, err := cs.store.GetChainByID(ctx, chainID)
	if err != nil {
		return err
	}
	if chain.CreatedByID != userID {
		return fmt.Errorf("%w: only the creator may withdraw a chain", models.ErrValidation)
	}

	released, err := cs.store.CancelChainTx(ctx, chainID, "creator withdrew")
	if err != nil {
		return err
	}

	cs.releaseHolds(ctx, released, chain.IdempotencyKey)
	util.ChainsCancelledTotal.WithLabelValues("creator_withdrew").Inc()

	event := &models.ChainCancelledEvent{
		BaseEvent:     newBaseEvent(models.EventTypeChainCancelled),
		ChainID:       chainID,
		Reason:        "creator withdrew",
		ReleasedItems: released,
	}
	if err := cs.eventPublisher.PublishChainCancelled(ctx, event); err != nil {
		cs.logger.Error("Failed to publish ChainCancelled event", zap.Error(err))
	}
	return nil
}

// GetChain retrieves a chain with its participants
func (cs *ChainService) GetChain(ctx context.Context, chainID int64) (*models.BarterChain, []models.BarterParticipant, error) {
	chain, err := cs.store.GetChainByID(ctx, chainID)
	if err != nil {
		return nil, nil, err
	}
	participants, err := cs.store.GetParticipantsByChainID(ctx, chainID)
	if err != nil {
		return nil, nil, err
	}
	return chain, participants, nil
}

// ExpireStaleChains sweeps chains whose deadline passed while still awaiting
// acceptance. It runs from a periodic worker and is safe to run concurrently
// with user-triggered operations: each chain transitions under a row lock.
func (cs *ChainService) ExpireStaleChains(ctx context.Context) (int, error) {
	ctx, span := util.StartSpan(ctx, "ChainService.ExpireStaleChains")
	defer span.End()

	expired, err := cs.store.ExpireStaleChainsTx(ctx, time.Now())
	if err != nil && len(expired) == 0 {
		return 0, err
	}

	for _, e := range expired {
		util.ChainsExpiredTotal.Inc()
		cs.logger.Info("Chain expired",
			zap.Int64("chain_id", e.ChainID),
			zap.Int64s("released_items", e.ReleasedItems))

		if chain, getErr := cs.store.GetChainByID(ctx, e.ChainID); getErr == nil {
			cs.releaseHolds(ctx, e.ReleasedItems, chain.IdempotencyKey)
		}

		event := &models.ChainExpiredEvent{
			BaseEvent:     newBaseEvent(models.EventTypeChainExpired),
			ChainID:       e.ChainID,
			ReleasedItems: e.ReleasedItems,
		}
		if pubErr := cs.eventPublisher.PublishChainExpired(ctx, event); pubErr != nil {
			cs.logger.Error("Failed to publish ChainExpired event", zap.Error(pubErr))
		}
	}

	return len(expired), err
}

// HandleSettlementConfirmed completes an ACTIVE chain once the external
// settlement service confirms the exchange. Consumed from Kafka; processed
// events are tracked so redelivery is harmless.
func (cs *ChainService) HandleSettlementConfirmed(ctx context.Context, event *models.SettlementConfirmedEvent) error {
	ctx, span := util.StartSpan(ctx, "ChainService.HandleSettlementConfirmed")
	defer span.End()

	processed, err := cs.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		cs.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	if err := cs.store.CompleteChainTx(ctx, event.ChainID); err != nil {
		return fmt.Errorf("failed to complete chain %d: %w", event.ChainID, err)
	}

	util.ChainsCompletedTotal.Inc()
	cs.logger.Info("Chain completed",
		zap.Int64("chain_id", event.ChainID),
		zap.String("tx_ref", event.TxRef))

	completedEvent := &models.ChainCompletedEvent{
		BaseEvent: newBaseEvent(models.EventTypeChainCompleted),
		ChainID:   event.ChainID,
	}
	if err := cs.eventPublisher.PublishChainCompleted(ctx, completedEvent); err != nil {
		cs.logger.Error("Failed to publish ChainCompleted event", zap.Error(err))
	}

	if err := cs.store.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		cs.logger.Error("Failed to mark event processed", zap.Error(err))
	}

	return nil
}

func (cs *ChainService) releaseHolds(ctx context.Context, itemIDs []int64, chainKey string) {
	if len(itemIDs) == 0 || chainKey == "" {
		return
	}
	if err := cs.redis.ReleaseItems(ctx, itemIDs, chainKey); err != nil {
		cs.logger.Warn("Failed to release Redis item holds; TTL will reap them",
			zap.Error(err))
	}
}

// participantsFromCycle maps cycle legs onto ordered participant records
// with the contiguous cyclic 1..k positions the chain invariants require.
func participantsFromCycle(cycle match.Cycle) []models.BarterParticipant {
	participants := make([]models.BarterParticipant, len(cycle.Legs))
	for i, leg := range cycle.Legs {
		participants[i] = models.BarterParticipant{
			UserID:        leg.UserID,
			OfferedItemID: leg.OfferedItemID,
			WantedItemID:  leg.WantedItemID,
			Position:      i + 1,
			Status:        models.ParticipantStatusPending,
		}
	}
	return participants
}

func participantData(participants []models.BarterParticipant) []models.ParticipantData {
	data := make([]models.ParticipantData, len(participants))
	for i, p := range participants {
		data[i] = models.ParticipantData{
			UserID:        p.UserID,
			OfferedItemID: p.OfferedItemID,
			WantedItemID:  p.WantedItemID,
			Position:      p.Position,
		}
	}
	return data
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}
