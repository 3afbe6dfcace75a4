package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/IBM/sarama"
)

// EventHandler receives the type and data of a decoded CloudEvent.
type EventHandler interface {
	HandleEvent(ctx context.Context, eventType string, data []byte) error
}

// Inbox deduplicates deliveries by event id. An event is marked only after
// its handler succeeded, so a crash in between redelivers it; handlers must
// tolerate seeing an event twice.
type Inbox interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

type cloudEvent struct {
	SpecVersion string          `json:"specversion"`
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Source      string          `json:"source"`
	Data        json.RawMessage `json:"data"`
}

// CloudEventHandler adapts an EventHandler to the consumer. Messages that are
// not CloudEvents are logged and skipped; they would fail the same way on
// every redelivery.
type CloudEventHandler struct {
	Handler EventHandler
	Inbox   Inbox
	Logger  *slog.Logger
}

func (h CloudEventHandler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	logger := h.logger().With(slog.String("topic", msg.Topic), slog.Int64("offset", msg.Offset))
	var evt cloudEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil || evt.ID == "" || evt.Type == "" {
		logger.Error("dropping message that is not a cloud event")
		return nil
	}
	logger = logger.With(slog.String("event_id", evt.ID), slog.String("event_type", evt.Type))

	if h.Inbox != nil {
		seen, err := h.Inbox.Seen(ctx, evt.ID)
		if err != nil {
			return err
		}
		if seen {
			logger.Debug("skipping redelivered event")
			return nil
		}
	}
	if err := h.Handler.HandleEvent(ctx, evt.Type, evt.Data); err != nil {
		return err
	}
	if h.Inbox != nil {
		// the effect is committed; a lost mark only costs a redelivery
		if err := h.Inbox.Mark(context.WithoutCancel(ctx), evt.ID); err != nil {
			logger.Warn("inbox mark failed", slog.String("error", err.Error()))
		}
	}
	return nil
}

func (h CloudEventHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
