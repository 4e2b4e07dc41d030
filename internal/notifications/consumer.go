package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/curiomarket/curio-backend/pkg/enums"
	"github.com/curiomarket/curio-backend/pkg/logger"
	"github.com/curiomarket/curio-backend/pkg/outbox"
	"github.com/curiomarket/curio-backend/pkg/outbox/payloads"
)

// ConsumerName scopes the Redis dedupe keys for this worker.
const ConsumerName = "email-notifications"

type dedupe interface {
	CheckAndMarkProcessed(ctx context.Context, consumer, eventID string) (bool, error)
	Delete(ctx context.Context, consumer, eventID string) error
}

type dispatcher interface {
	Handles(eventType enums.OutboxEventType) bool
	Dispatch(ctx context.Context, payload any) error
}

// Consumer reads relayed outbox events and sends the matching e-mail.
type Consumer struct {
	subscription *pubsub.Subscriber
	idempotency  dedupe
	dispatch     dispatcher
	logg         *logger.Logger
}

// NewConsumer builds the notification consumer.
func NewConsumer(subscription *pubsub.Subscriber, manager dedupe, d dispatcher, logg *logger.Logger) (*Consumer, error) {
	if subscription == nil {
		return nil, fmt.Errorf("notification subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if d == nil {
		return nil, fmt.Errorf("dispatcher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{subscription: subscription, idempotency: manager, dispatch: d, logg: logg}, nil
}

// Run receives until ctx is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg.ID, msg.Attributes, msg.Data) {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// process handles one delivery and reports whether it should be redelivered.
// Undecodable messages are acked so they do not loop forever.
func (c *Consumer) process(ctx context.Context, messageID string, attrs map[string]string, data []byte) bool {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": messageID,
		"event_type": attrs["event_type"],
	})

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return false
	}
	eventType, err := enums.ParseOutboxEventType(envelope.EventType)
	if err != nil {
		c.logg.Warn(logCtx, "unknown event type")
		return false
	}
	if !c.dispatch.Handles(eventType) {
		c.logg.Debug(logCtx, "event has no notification")
		return false
	}
	if envelope.EventID == "" {
		c.logg.Warn(logCtx, "event id missing")
		return false
	}
	logCtx = c.logg.WithField(logCtx, "event_id", envelope.EventID)

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, ConsumerName, envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return true
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return false
	}

	payload, err := payloads.Decode(eventType, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to parse payload", err)
		return false
	}
	if err := c.dispatch.Dispatch(logCtx, payload); err != nil {
		c.logg.Error(logCtx, "notification delivery failed", err)
		if derr := c.idempotency.Delete(ctx, ConsumerName, envelope.EventID); derr != nil {
			c.logg.Error(logCtx, "failed to clear idempotency mark", derr)
		}
		return true
	}
	c.logg.Info(logCtx, "notification sent")
	return false
}
