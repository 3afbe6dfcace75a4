package middleware

import (
	"context"
	"log/slog"

	"staykeeper/internal/app/commands"
	"staykeeper/internal/app/outbox"
)

// OutboxFlush wakes the relay once a command has committed. The records are
// already durable at that point, so a failed flush is logged and the relay
// picks them up on its next poll.
func OutboxFlush(box outbox.Outbox, logger *slog.Logger) CommandMiddleware {
	if box == nil {
		panic("middleware: outbox required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := nextFn(ctx, cmd)
			if err != nil {
				return nil, err
			}
			if err := box.Flush(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("outbox flush failed", "command", cmd.Key(), "error", err)
			}
			return res, nil
		})
	}
}
