package kafka

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
)

type MessageHandler interface {
	Handle(ctx context.Context, msg *sarama.ConsumerMessage) error
}

// Consumer runs a consumer group. A message is marked only after the handler
// accepted it; failures are retried in place so the committed offset never
// skips an unprocessed message.
type Consumer struct {
	group        sarama.ConsumerGroup
	handler      MessageHandler
	logger       *slog.Logger
	retryBackoff time.Duration
}

func NewConsumer(brokers []string, groupID string, cfg *sarama.Config, handler MessageHandler, logger *slog.Logger, retryBackoff time.Duration) (*Consumer, error) {
	if cfg == nil {
		cfg = NewConfig("staykeeper")
	}
	cfg.Version = sarama.V2_5_0_0
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	if logger == nil {
		logger = slog.Default()
	}
	if retryBackoff <= 0 {
		retryBackoff = time.Second
	}
	g, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, err
	}
	return &Consumer{group: g, handler: handler, logger: logger, retryBackoff: retryBackoff}, nil
}

func (c *Consumer) Run(ctx context.Context, topics []string) error {
	h := consumerGroupHandler{handler: c.handler, logger: c.logger, backoff: c.retryBackoff}
	for {
		if err := c.group.Consume(ctx, topics, h); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *Consumer) Close() error {
	return c.group.Close()
}

type consumerGroupHandler struct {
	handler MessageHandler
	logger  *slog.Logger
	backoff time.Duration
}

func (h consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h consumerGroupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		if !h.handle(sess.Context(), message) {
			return nil
		}
		sess.MarkMessage(message, "")
	}
	return nil
}

// handle retries until the handler succeeds or the session ends. It reports
// whether the message may be marked.
func (h consumerGroupHandler) handle(ctx context.Context, msg *sarama.ConsumerMessage) bool {
	for attempt := 1; ; attempt++ {
		err := h.handler.Handle(ctx, msg)
		if err == nil {
			return true
		}
		h.logger.Warn("message handling failed",
			slog.String("topic", msg.Topic),
			slog.Int("partition", int(msg.Partition)),
			slog.Int64("offset", msg.Offset),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(h.backoff):
		}
	}
}
