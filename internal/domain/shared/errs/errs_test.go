package errs

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindMatching(t *testing.T) {
	errTooLate := Validation("booking: too late")
	wrapped := fmt.Errorf("handler: %w", errTooLate)

	assert.ErrorIs(t, wrapped, errTooLate)
	assert.ErrorIs(t, wrapped, ErrValidation)
	assert.NotErrorIs(t, wrapped, ErrConflict)
	assert.Equal(t, ErrValidation, KindOf(wrapped))
	assert.Nil(t, KindOf(errors.New("plain")))
}

func TestFromContextMarksTimeoutsRetryable(t *testing.T) {
	err := FromContext(fmt.Errorf("find: %w", context.DeadlineExceeded))

	assert.True(t, Retryable(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, Retryable(FromContext(errors.New("boom"))))
	assert.NoError(t, FromContext(nil))
}

func TestKindByNameRoundTrip(t *testing.T) {
	err := New(KindByName(KindOf(Conflict("dup")).Error()), "dup")

	assert.ErrorIs(t, err, ErrConflict)
	assert.Nil(t, KindByName("teapot"))
}
