package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"

	"staykeeper/internal/domain/shared/errs"
)

const codeWriteConflict = 112

// translate maps driver failures onto the engine's error kinds. Anything it
// does not recognise is returned untouched.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return errs.FromContext(err)
	case isWriteConflict(err):
		return errs.Wrap(errs.ErrConflict, "mongo: write conflict", err)
	case mongo.IsTimeout(err), mongo.IsNetworkError(err):
		return errs.Wrap(errs.ErrUnavailable, "mongo: store unavailable", err)
	}
	return err
}

func isWriteConflict(err error) bool {
	var se mongo.ServerError
	if !errors.As(err, &se) {
		return false
	}
	return se.HasErrorCode(codeWriteConflict) || se.HasErrorLabel("TransientTransactionError")
}
