package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	appoutbox "staykeeper/internal/app/outbox"
)

// Store is the relay side of an outbox.
type Store interface {
	Claim(ctx context.Context, workerID string) (*appoutbox.Claimed, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error
}

type Producer interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

// Worker publishes outbox records as CloudEvents. Delivery is at least once:
// a record is marked sent only after the producer acknowledged it, and the
// event id is the record id so consumers can drop redeliveries.
type Worker struct {
	Store       Store
	Producer    Producer
	Interval    time.Duration
	TopicPrefix string
	Source      string
	ID          string
	Backoff     []time.Duration
	Logger      *slog.Logger

	wake chan struct{}
}

var ErrWorkerNotConfigured = errors.New("outbox: worker missing dependencies")

// Wake asks the worker to poll now instead of waiting for the next tick.
// It never blocks.
func (w *Worker) Wake() {
	if w.wake == nil {
		return
	}
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Prepare must be called before Wake is wired to a flush hook.
func (w *Worker) Prepare() {
	if w.wake == nil {
		w.wake = make(chan struct{}, 1)
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
}

func (w *Worker) Run(ctx context.Context) error {
	if w.Store == nil || w.Producer == nil {
		return ErrWorkerNotConfigured
	}
	w.Prepare()
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-w.wake:
		}
		if err := w.Drain(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger().Warn("outbox relay failed", slog.String("error", err.Error()))
		}
	}
}

// Drain publishes every record that is due and returns at the first store
// error.
func (w *Worker) Drain(ctx context.Context) error {
	for {
		processed, err := w.processOnce(ctx)
		if err != nil || !processed {
			return err
		}
	}
}

func (w *Worker) processOnce(ctx context.Context) (bool, error) {
	rec, err := w.Store.Claim(ctx, w.workerID())
	if err != nil || rec == nil {
		return false, err
	}
	logger := w.logger().With(slog.String("event_id", rec.ID), slog.String("event", rec.Name))
	topic := w.topicFor(rec.Name)
	payload, headers, err := w.formatPayload(rec)
	if err != nil {
		logger.Error("outbox record is not valid json", slog.String("error", err.Error()))
		return true, w.Store.MarkFailed(ctx, rec.ID, w.nextRetry(rec.Attempts), err.Error())
	}
	if err := w.Producer.Publish(ctx, topic, rec.Aggregate, payload, headers); err != nil {
		logger.Warn("publish failed",
			slog.String("topic", topic),
			slog.Int("attempts", rec.Attempts+1),
			slog.String("error", err.Error()),
		)
		return true, w.Store.MarkFailed(ctx, rec.ID, w.nextRetry(rec.Attempts), err.Error())
	}
	logger.Debug("event published", slog.String("topic", topic))
	return true, w.Store.MarkSent(ctx, rec.ID)
}

func (w *Worker) formatPayload(rec *appoutbox.Claimed) ([]byte, map[string]string, error) {
	var data json.RawMessage
	if err := json.Unmarshal(rec.Payload, &data); err != nil {
		return nil, nil, err
	}
	evt := map[string]any{
		"specversion":     "1.0",
		"id":              rec.ID,
		"type":            rec.Name + ".v1",
		"source":          w.source(),
		"subject":         rec.Aggregate,
		"time":            rec.OccurredAt.UTC(),
		"datacontenttype": "application/json",
		"data":            data,
	}
	if trace, ok := rec.Headers["traceparent"]; ok {
		evt["traceparent"] = trace
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, nil, err
	}
	headers := map[string]string{
		"content-type": "application/cloudevents+json",
		"ce-id":        rec.ID,
		"ce-type":      rec.Name + ".v1",
	}
	for k, v := range rec.Headers {
		headers[k] = v
	}
	return payload, headers, nil
}

// topicFor maps "booking.confirmed" to "<prefix>booking.events.v1".
func (w *Worker) topicFor(name string) string {
	base := name
	if idx := strings.IndexRune(name, '.'); idx > 0 {
		base = name[:idx]
	}
	topic := base + ".events.v1"
	if w.TopicPrefix != "" {
		topic = w.TopicPrefix + topic
	}
	return topic
}

func (w *Worker) workerID() string {
	if w.ID != "" {
		return w.ID
	}
	return uuid.NewString()
}

func (w *Worker) interval() time.Duration {
	if w.Interval <= 0 {
		return 500 * time.Millisecond
	}
	return w.Interval
}

func (w *Worker) nextRetry(attempts int) time.Time {
	if attempts < len(w.Backoff) {
		return time.Now().Add(w.Backoff[attempts])
	}
	if len(w.Backoff) > 0 {
		return time.Now().Add(w.Backoff[len(w.Backoff)-1])
	}
	return time.Now().Add(5 * time.Second)
}

func (w *Worker) source() string {
	if w.Source != "" {
		return w.Source
	}
	return "app://staykeeper"
}

func (w *Worker) logger() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}

// TopicFor exposes the routing rule to consumers that subscribe by event name.
func TopicFor(prefix, eventName string) string {
	return (&Worker{TopicPrefix: prefix}).topicFor(eventName)
}
