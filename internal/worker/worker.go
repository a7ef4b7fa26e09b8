package worker

import (
	"context"
	"time"

	"barter-service/internal/broker"
	"barter-service/internal/redisclient"
	"barter-service/internal/service"
	"barter-service/internal/util"

	"go.uber.org/zap"
)

const expirySweepLock = "chain-expiry-sweep"

// ExpiryWorker periodically sweeps stale chains. A Redis lock keeps multiple
// replicas from sweeping at once; the sweep itself is also safe to run
// concurrently with user-triggered accept/reject operations.
type ExpiryWorker struct {
	chainService *service.ChainService
	redis        *redisclient.Client
	interval     time.Duration
	done         chan struct{}
	logger       *zap.Logger
}

// NewExpiryWorker creates a new expiry worker
func NewExpiryWorker(chainService *service.ChainService, redis *redisclient.Client, interval time.Duration) *ExpiryWorker {
	return &ExpiryWorker{
		chainService: chainService,
		redis:        redis,
		interval:     interval,
		done:         make(chan struct{}),
		logger:       util.GetLogger(),
	}
}

// Start runs the sweep loop until the context is cancelled
func (w *ExpiryWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting expiry worker", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Expiry worker context cancelled, stopping")
			return ctx.Err()
		case <-w.done:
			return nil
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// Stop stops the worker
func (w *ExpiryWorker) Stop() {
	close(w.done)
}

func (w *ExpiryWorker) sweep(ctx context.Context) {
	acquired, err := w.redis.AcquireLock(ctx, expirySweepLock, w.interval)
	if err != nil {
		w.logger.Warn("Sweep lock unavailable, sweeping anyway", zap.Error(err))
	} else if !acquired {
		return
	} else {
		defer func() {
			if err := w.redis.ReleaseLock(ctx, expirySweepLock); err != nil {
				w.logger.Warn("Failed to release sweep lock", zap.Error(err))
			}
		}()
	}

	expired, err := w.chainService.ExpireStaleChains(ctx)
	if err != nil {
		w.logger.Error("Expiry sweep failed", zap.Error(err))
		return
	}
	if expired > 0 {
		w.logger.Info("Expiry sweep finished", zap.Int("expired_chains", expired))
	}
}

// SettlementWorker consumes settlement confirmations from Kafka and drives
// ACTIVE chains to COMPLETED.
type SettlementWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewSettlementWorker creates a new settlement worker
func NewSettlementWorker(consumer *broker.Consumer, chainService *service.ChainService) *SettlementWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnSettlementConfirmed(chainService.HandleSettlementConfirmed)

	return &SettlementWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
	}
}

// Start starts the worker
func (w *SettlementWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting settlement worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *SettlementWorker) Stop() error {
	w.logger.Info("Stopping settlement worker")
	return w.consumer.Close()
}
