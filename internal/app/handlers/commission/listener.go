package commission

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"staykeeper/internal/app/commands"
	"staykeeper/internal/app/dto"
	domainbooking "staykeeper/internal/domain/booking"
	"staykeeper/internal/domain/shared/errs"
)

// BookingConfirmedListener derives a commission whenever a booking.confirmed
// event arrives. Redelivered events end in a conflict, which counts as done.
type BookingConfirmedListener struct {
	Commands commands.Bus
	Logger   *slog.Logger
}

func (l *BookingConfirmedListener) HandleEvent(ctx context.Context, eventType string, data []byte) error {
	if !strings.HasPrefix(eventType, domainbooking.EventConfirmed) {
		return nil
	}
	var payload domainbooking.BookingConfirmed
	if err := json.Unmarshal(data, &payload); err != nil {
		// a malformed payload will never succeed; drop it
		l.log().Error("discarding malformed booking.confirmed event", "err", err)
		return nil
	}
	if payload.BookingID == "" {
		l.log().Error("discarding booking.confirmed event without booking id")
		return nil
	}

	_, err := commands.Dispatch[CreateCommissionCommand, *dto.Commission](ctx, l.Commands, CreateCommissionCommand{
		BookingID:    string(payload.BookingID),
		InternalCall: true,
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errs.ErrConflict):
		l.log().Debug("commission already exists", "booking_id", payload.BookingID)
		return nil
	case errors.Is(err, errs.ErrValidation), errors.Is(err, errs.ErrNotFound):
		l.log().Warn("commission not created", "booking_id", payload.BookingID, "err", err)
		return nil
	}
	return err
}

func (l *BookingConfirmedListener) log() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}
