package middleware

import (
	"context"
	"time"

	"staykeeper/internal/app/commands"
	"staykeeper/internal/app/uow"
	"staykeeper/internal/domain/shared/errs"
)

type TxOptionsProvider func(cmd commands.Command) uow.TxOptions

// Transaction runs each command inside its own unit of work. A positive
// timeout bounds the whole unit, lock acquisition and commit included, and a
// timeout surfaces as errs.ErrUnavailable.
func Transaction(factory uow.UoWFactory, optsProvider TxOptionsProvider, timeout time.Duration) CommandMiddleware {
	if factory == nil {
		panic("middleware: uow factory required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if _, ok := uow.FromContext(ctx); ok {
				return nextFn(ctx, cmd)
			}
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			opts := uow.TxOptions{}
			if optsProvider != nil {
				opts = optsProvider(cmd)
			}
			unit, err := factory.Begin(ctx, opts)
			if err != nil {
				return nil, errs.FromContext(err)
			}
			execCtx := uow.Bind(ctx, unit)
			committed := false
			defer func() {
				if !committed {
					_ = unit.Rollback(execCtx)
				}
			}()

			res, err := nextFn(execCtx, cmd)
			if err != nil {
				return nil, errs.FromContext(err)
			}
			if err := unit.Commit(execCtx); err != nil {
				return nil, errs.FromContext(err)
			}
			committed = true
			return res, nil
		})
	}
}
