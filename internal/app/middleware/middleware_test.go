package middleware_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staykeeper/internal/app/commands"
	"staykeeper/internal/app/middleware"
	appoutbox "staykeeper/internal/app/outbox"
	"staykeeper/internal/app/uow"
	"staykeeper/internal/domain/shared/errs"
	"staykeeper/internal/infra/storage/memory"
)

type reserve struct {
	Listing string `validate:"required"`
	Guests  int    `validate:"gte=1"`
	IdemKey string
	Actor   string
}

func (reserve) Key() string              { return "test.reserve" }
func (c reserve) IdempotencyKey() string { return c.IdemKey }
func (reserve) ResultPrototype() any     { return new(reservation) }
func (c reserve) ActorID() string        { return c.Actor }

type reservation struct {
	ID string `json:"id"`
}

type busFunc func(ctx context.Context, cmd commands.Command) (any, error)

func (f busFunc) Dispatch(ctx context.Context, cmd commands.Command) (any, error) {
	return f(ctx, cmd)
}

func TestChainRunsOutermostFirst(t *testing.T) {
	var order []string
	tag := func(name string) middleware.CommandMiddleware {
		return func(next commands.Bus) commands.Bus {
			return busFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
				order = append(order, name)
				return next.Dispatch(ctx, cmd)
			})
		}
	}
	base := busFunc(func(context.Context, commands.Command) (any, error) {
		order = append(order, "handler")
		return nil, nil
	})

	_, err := middleware.ChainCommands(base, tag("a"), tag("b")).Dispatch(context.Background(), reserve{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "handler"}, order)
}

func TestIdempotencyReplaysResult(t *testing.T) {
	calls := 0
	base := busFunc(func(context.Context, commands.Command) (any, error) {
		calls++
		return &reservation{ID: "r-1"}, nil
	})
	bus := middleware.ChainCommands(base, middleware.Idempotency(memory.NewIdempotencyStore(time.Hour), nil))
	cmd := reserve{Listing: "l", Guests: 1, IdemKey: "k-1"}

	first, err := bus.Dispatch(context.Background(), cmd)
	require.NoError(t, err)
	second, err := bus.Dispatch(context.Background(), cmd)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)

	cmd.IdemKey = ""
	_, err = bus.Dispatch(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "unkeyed commands always run")
}

func TestIdempotencyKeysAreScopedByActor(t *testing.T) {
	calls := 0
	base := busFunc(func(_ context.Context, cmd commands.Command) (any, error) {
		calls++
		return &reservation{ID: cmd.(reserve).Actor}, nil
	})
	bus := middleware.ChainCommands(base, middleware.Idempotency(memory.NewIdempotencyStore(time.Hour), nil))

	first, err := bus.Dispatch(context.Background(), reserve{IdemKey: "shared", Actor: "guest-1"})
	require.NoError(t, err)
	second, err := bus.Dispatch(context.Background(), reserve{IdemKey: "shared", Actor: "guest-2"})
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	assert.Equal(t, &reservation{ID: "guest-1"}, first)
	assert.Equal(t, &reservation{ID: "guest-2"}, second)
}

func TestIdempotencyReplaysErrorKind(t *testing.T) {
	calls := 0
	base := busFunc(func(context.Context, commands.Command) (any, error) {
		calls++
		return nil, errs.Conflict("listing taken")
	})
	bus := middleware.ChainCommands(base, middleware.Idempotency(memory.NewIdempotencyStore(time.Hour), nil))
	cmd := reserve{IdemKey: "k-2"}

	_, err := bus.Dispatch(context.Background(), cmd)
	require.ErrorIs(t, err, errs.ErrConflict)
	_, err = bus.Dispatch(context.Background(), cmd)

	assert.ErrorIs(t, err, errs.ErrConflict)
	assert.EqualError(t, err, "listing taken")
	assert.Equal(t, 1, calls)
}

func TestIdempotencyDoesNotStoreRetryableFailures(t *testing.T) {
	calls := 0
	base := busFunc(func(context.Context, commands.Command) (any, error) {
		calls++
		if calls == 1 {
			return nil, errs.Unavailable("store down")
		}
		return &reservation{ID: "r-2"}, nil
	})
	bus := middleware.ChainCommands(base, middleware.Idempotency(memory.NewIdempotencyStore(time.Hour), nil))
	cmd := reserve{IdemKey: "k-3"}

	_, err := bus.Dispatch(context.Background(), cmd)
	assert.ErrorIs(t, err, errs.ErrUnavailable)
	res, err := bus.Dispatch(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, &reservation{ID: "r-2"}, res)
}

func TestValidationAndAuthorization(t *testing.T) {
	reached := false
	base := busFunc(func(context.Context, commands.Command) (any, error) {
		reached = true
		return nil, nil
	})
	bus := middleware.ChainCommands(base,
		middleware.Validation(middleware.NewStructValidator()),
		middleware.Authorization(middleware.ActorAuthorizer{}),
	)

	_, err := bus.Dispatch(context.Background(), reserve{Actor: "guest-1"})
	assert.ErrorIs(t, err, errs.ErrValidation)
	assert.Contains(t, err.Error(), "Guests must be at least 1")
	assert.Contains(t, err.Error(), "Listing is required")

	_, err = bus.Dispatch(context.Background(), reserve{Listing: "l", Guests: 1})
	assert.ErrorIs(t, err, middleware.ErrActorRequired)
	assert.False(t, reached)

	_, err = bus.Dispatch(context.Background(), reserve{Listing: "l", Guests: 1, Actor: "guest-1"})
	require.NoError(t, err)
	assert.True(t, reached)
}

func TestTransactionRollsBackOnError(t *testing.T) {
	store := memory.NewStore()
	box := memory.NewOutbox(store)
	failing := errors.New("boom")
	base := busFunc(func(ctx context.Context, _ commands.Command) (any, error) {
		_, ok := uow.FromContext(ctx)
		require.True(t, ok)
		require.NoError(t, box.Add(ctx, appoutbox.EventRecord{ID: "evt-1", Name: "booking.created"}))
		return nil, failing
	})
	bus := middleware.ChainCommands(base, middleware.Transaction(store, nil, time.Second))

	_, err := bus.Dispatch(context.Background(), reserve{})
	assert.ErrorIs(t, err, failing)

	pending, err := box.Pending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
}

type brokenOutbox struct{ flushes int }

func (b *brokenOutbox) Add(context.Context, appoutbox.EventRecord) error { return nil }
func (b *brokenOutbox) Flush(context.Context) error {
	b.flushes++
	return errors.New("relay offline")
}

func TestOutboxFlushFailureKeepsResult(t *testing.T) {
	box := &brokenOutbox{}
	base := busFunc(func(context.Context, commands.Command) (any, error) {
		return &reservation{ID: "r-3"}, nil
	})
	bus := middleware.ChainCommands(base, middleware.OutboxFlush(box, nil))

	res, err := bus.Dispatch(context.Background(), reserve{})
	require.NoError(t, err)
	assert.Equal(t, &reservation{ID: "r-3"}, res)
	assert.Equal(t, 1, box.flushes)
}
