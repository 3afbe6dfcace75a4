package middleware

import (
	"context"
	"strings"

	"staykeeper/internal/app/commands"
	"staykeeper/internal/app/queries"
	"staykeeper/internal/domain/shared/errs"
)

type Authorizer interface {
	Authorize(ctx context.Context, message any) error
}

// Actor is implemented by messages issued on behalf of a user.
type Actor interface {
	ActorID() string
}

// Internal marks messages that may run without an actor, such as those
// dispatched by event consumers.
type Internal interface {
	Internal() bool
}

var ErrActorRequired = errs.Forbidden("middleware: authenticated actor required")

// ActorAuthorizer rejects user-facing messages that arrive without an actor.
// Ownership checks stay with the handlers, which know the aggregates.
type ActorAuthorizer struct{}

func (ActorAuthorizer) Authorize(_ context.Context, message any) error {
	actor, ok := message.(Actor)
	if !ok {
		return nil
	}
	if strings.TrimSpace(actor.ActorID()) != "" {
		return nil
	}
	if in, ok := message.(Internal); ok && in.Internal() {
		return nil
	}
	return ErrActorRequired
}

func Authorization(a Authorizer) CommandMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := a.Authorize(ctx, cmd); err != nil {
				return nil, err
			}
			return nextFn(ctx, cmd)
		})
	}
}

func QueryAuthorization(a Authorizer) QueryMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next queries.Bus) queries.Bus {
		nextFn := wrapQuery(next)
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := a.Authorize(ctx, q); err != nil {
				return nil, err
			}
			return nextFn(ctx, q)
		})
	}
}
