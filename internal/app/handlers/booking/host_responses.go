package booking

import (
	"context"
	"log/slog"
	"strings"

	"staykeeper/internal/app/clock"
	"staykeeper/internal/app/commands"
	"staykeeper/internal/app/dto"
	handlersupport "staykeeper/internal/app/handlers/support"
	"staykeeper/internal/app/outbox"
	"staykeeper/internal/domain/availability"
	domainbooking "staykeeper/internal/domain/booking"
	domainuser "staykeeper/internal/domain/user"
)

const (
	confirmBookingKey = "booking.confirm"
	rejectBookingKey  = "booking.reject"
)

type ConfirmBookingCommand struct {
	BookingID string `validate:"required"`
	HostID    string `validate:"required"`
	Message   string
}

func (c ConfirmBookingCommand) Key() string { return confirmBookingKey }

func (c ConfirmBookingCommand) ActorID() string { return c.HostID }

type RejectBookingCommand struct {
	BookingID string `validate:"required"`
	HostID    string `validate:"required"`
	Message   string
}

func (c RejectBookingCommand) Key() string { return rejectBookingKey }

func (c RejectBookingCommand) ActorID() string { return c.HostID }

// ConfirmBookingHandler accepts a pending request. The dates are re-checked
// under the listing lock because another request may have been confirmed
// since this one was made. It never creates the commission transaction.
type ConfirmBookingHandler struct {
	Outbox  outbox.Outbox
	Encoder outbox.EventEncoder
	Clock   clock.Clock
	Logger  *slog.Logger
}

func (h *ConfirmBookingHandler) Handle(ctx context.Context, cmd ConfirmBookingCommand) (*dto.BookingStatus, error) {
	unit, err := handlersupport.ActiveUnit(ctx)
	if err != nil {
		return nil, err
	}
	booking, err := unit.Bookings().ByID(ctx, domainbooking.BookingID(strings.TrimSpace(cmd.BookingID)))
	if err != nil {
		return nil, err
	}
	actor := domainuser.ID(strings.TrimSpace(cmd.HostID))
	if err := booking.CanConfirm(actor); err != nil {
		return nil, err
	}

	oracle := availability.Oracle{Bookings: unit.Bookings()}
	err = oracle.Reserve(ctx, booking.ListingID, booking.Range, booking.ID, func(ctx context.Context) error {
		if err := booking.Confirm(actor, cmd.Message, clock.OrSystem(h.Clock).Now()); err != nil {
			return err
		}
		return persist(ctx, unit.Bookings(), h.Outbox, h.Encoder, booking)
	})
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("booking confirmation refused", "booking_id", booking.ID, "listing_id", booking.ListingID, "error", err)
		}
		return nil, err
	}

	if h.Logger != nil {
		h.Logger.Info("booking confirmed", "booking_id", booking.ID, "host_id", booking.HostID, "listing_id", booking.ListingID)
	}
	result := dto.MapBookingStatus(booking)
	return &result, nil
}

type RejectBookingHandler struct {
	Outbox  outbox.Outbox
	Encoder outbox.EventEncoder
	Clock   clock.Clock
	Logger  *slog.Logger
}

func (h *RejectBookingHandler) Handle(ctx context.Context, cmd RejectBookingCommand) (*dto.BookingStatus, error) {
	unit, err := handlersupport.ActiveUnit(ctx)
	if err != nil {
		return nil, err
	}
	booking, err := unit.Bookings().ByID(ctx, domainbooking.BookingID(strings.TrimSpace(cmd.BookingID)))
	if err != nil {
		return nil, err
	}
	if err := booking.Reject(domainuser.ID(strings.TrimSpace(cmd.HostID)), cmd.Message, clock.OrSystem(h.Clock).Now()); err != nil {
		return nil, err
	}
	if err := persist(ctx, unit.Bookings(), h.Outbox, h.Encoder, booking); err != nil {
		return nil, err
	}

	if h.Logger != nil {
		h.Logger.Info("booking rejected", "booking_id", booking.ID, "host_id", booking.HostID, "listing_id", booking.ListingID)
	}
	result := dto.MapBookingStatus(booking)
	return &result, nil
}

var _ commands.Handler[ConfirmBookingCommand, *dto.BookingStatus] = (*ConfirmBookingHandler)(nil)
var _ commands.Handler[RejectBookingCommand, *dto.BookingStatus] = (*RejectBookingHandler)(nil)
