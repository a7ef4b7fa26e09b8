package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"barter-service/internal/models"
	"barter-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing chain lifecycle events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func chainKey(chainID int64) string {
	return fmt.Sprintf("chain-%d", chainID)
}

// PublishChainProposed publishes ChainProposed event
func (ep *EventPublisher) PublishChainProposed(ctx context.Context, event *models.ChainProposedEvent) error {
	return ep.producer.PublishEvent(ctx, chainKey(event.ChainID), event)
}

// PublishParticipantAccepted publishes ParticipantAccepted event
func (ep *EventPublisher) PublishParticipantAccepted(ctx context.Context, event *models.ParticipantAcceptedEvent) error {
	return ep.producer.PublishEvent(ctx, chainKey(event.ChainID), event)
}

// PublishChainActivated publishes ChainActivated event
func (ep *EventPublisher) PublishChainActivated(ctx context.Context, event *models.ChainActivatedEvent) error {
	return ep.producer.PublishEvent(ctx, chainKey(event.ChainID), event)
}

// PublishChainCancelled publishes ChainCancelled event
func (ep *EventPublisher) PublishChainCancelled(ctx context.Context, event *models.ChainCancelledEvent) error {
	return ep.producer.PublishEvent(ctx, chainKey(event.ChainID), event)
}

// PublishChainExpired publishes ChainExpired event
func (ep *EventPublisher) PublishChainExpired(ctx context.Context, event *models.ChainExpiredEvent) error {
	return ep.producer.PublishEvent(ctx, chainKey(event.ChainID), event)
}

// PublishChainCompleted publishes ChainCompleted event
func (ep *EventPublisher) PublishChainCompleted(ctx context.Context, event *models.ChainCompletedEvent) error {
	return ep.producer.PublishEvent(ctx, chainKey(event.ChainID), event)
}

// EventHandler routes incoming events to registered handlers
type EventHandler struct {
	onSettlementConfirmed func(context.Context, *models.SettlementConfirmedEvent) error
	logger                *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnSettlementConfirmed registers a handler for SettlementConfirmed events
func (eh *EventHandler) OnSettlementConfirmed(handler func(context.Context, *models.SettlementConfirmedEvent) error) {
	eh.onSettlementConfirmed = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeSettlementConfirmed:
		if eh.onSettlementConfirmed != nil {
			var event models.SettlementConfirmedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal SettlementConfirmed event: %w", err)
			}
			return eh.onSettlementConfirmed(ctx, &event)
		}

	default:
		// Events this service publishes come back on the same topic; skip them.
	}

	return nil
}
