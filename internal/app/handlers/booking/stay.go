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
	domainbooking "staykeeper/internal/domain/booking"
	domainuser "staykeeper/internal/domain/user"
)

const (
	cancelBookingKey       = "booking.cancel"
	checkInKey             = "booking.check_in"
	checkOutKey            = "booking.check_out"
	updatePaymentStatusKey = "booking.payment_status"
)

type CancelBookingCommand struct {
	BookingID string `validate:"required"`
	ActorIDV  string `validate:"required"`
	Reason    string
}

func (c CancelBookingCommand) Key() string { return cancelBookingKey }

func (c CancelBookingCommand) ActorID() string { return c.ActorIDV }

type CheckInCommand struct {
	BookingID string `validate:"required"`
	ActorIDV  string `validate:"required"`
}

func (c CheckInCommand) Key() string { return checkInKey }

func (c CheckInCommand) ActorID() string { return c.ActorIDV }

type CheckOutCommand struct {
	BookingID string `validate:"required"`
	ActorIDV  string `validate:"required"`
}

func (c CheckOutCommand) Key() string { return checkOutKey }

func (c CheckOutCommand) ActorID() string { return c.ActorIDV }

// UpdatePaymentStatusCommand is issued by the payment collaborator, not by a
// guest or host.
type UpdatePaymentStatusCommand struct {
	BookingID string `validate:"required"`
	Status    string `validate:"required,oneof=pending completed refunded failed"`
}

func (c UpdatePaymentStatusCommand) Key() string { return updatePaymentStatusKey }

type CancelBookingHandler struct {
	Outbox  outbox.Outbox
	Encoder outbox.EventEncoder
	Clock   clock.Clock
	Logger  *slog.Logger
}

func (h *CancelBookingHandler) Handle(ctx context.Context, cmd CancelBookingCommand) (*dto.CancellationResult, error) {
	var result *dto.CancellationResult
	err := mutate(ctx, cmd.BookingID, h.Outbox, h.Encoder, func(b *domainbooking.Booking) error {
		refund, err := b.Cancel(domainuser.ID(strings.TrimSpace(cmd.ActorIDV)), cmd.Reason, clock.OrSystem(h.Clock).Now())
		if err != nil {
			return err
		}
		result = &dto.CancellationResult{
			BookingStatus: dto.MapBookingStatus(b),
			CancelledBy:   string(b.Cancellation.By),
			Refund:        dto.MapMoney(refund),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if h.Logger != nil {
		h.Logger.Info("booking cancelled", "booking_id", result.BookingID, "cancelled_by", result.CancelledBy, "refund", result.Refund.Amount)
	}
	return result, nil
}

type CheckInHandler struct {
	Outbox  outbox.Outbox
	Encoder outbox.EventEncoder
	Clock   clock.Clock
	Logger  *slog.Logger
}

func (h *CheckInHandler) Handle(ctx context.Context, cmd CheckInCommand) (*dto.BookingStatus, error) {
	var result dto.BookingStatus
	err := mutate(ctx, cmd.BookingID, h.Outbox, h.Encoder, func(b *domainbooking.Booking) error {
		if err := b.CheckIn(domainuser.ID(strings.TrimSpace(cmd.ActorIDV)), clock.OrSystem(h.Clock).Now()); err != nil {
			return err
		}
		result = dto.MapBookingStatus(b)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if h.Logger != nil {
		h.Logger.Info("guest checked in", "booking_id", result.BookingID, "actor_id", cmd.ActorIDV)
	}
	return &result, nil
}

type CheckOutHandler struct {
	Outbox  outbox.Outbox
	Encoder outbox.EventEncoder
	Clock   clock.Clock
	Logger  *slog.Logger
}

func (h *CheckOutHandler) Handle(ctx context.Context, cmd CheckOutCommand) (*dto.BookingStatus, error) {
	var result dto.BookingStatus
	err := mutate(ctx, cmd.BookingID, h.Outbox, h.Encoder, func(b *domainbooking.Booking) error {
		if err := b.CheckOut(domainuser.ID(strings.TrimSpace(cmd.ActorIDV)), clock.OrSystem(h.Clock).Now()); err != nil {
			return err
		}
		result = dto.MapBookingStatus(b)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if h.Logger != nil {
		h.Logger.Info("guest checked out", "booking_id", result.BookingID, "actor_id", cmd.ActorIDV)
	}
	return &result, nil
}

type UpdatePaymentStatusHandler struct {
	Outbox  outbox.Outbox
	Encoder outbox.EventEncoder
	Clock   clock.Clock
	Logger  *slog.Logger
}

func (h *UpdatePaymentStatusHandler) Handle(ctx context.Context, cmd UpdatePaymentStatusCommand) (*dto.Booking, error) {
	var result dto.Booking
	err := mutate(ctx, cmd.BookingID, h.Outbox, h.Encoder, func(b *domainbooking.Booking) error {
		if err := b.RecordPayment(domainbooking.PaymentStatus(strings.ToLower(strings.TrimSpace(cmd.Status))), clock.OrSystem(h.Clock).Now()); err != nil {
			return err
		}
		result = dto.MapBooking(b)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if h.Logger != nil {
		h.Logger.Info("booking payment status updated", "booking_id", result.ID, "payment_status", result.PaymentStatus)
	}
	return &result, nil
}

// mutate loads a booking from the active unit, applies fn and persists the
// result together with its events.
func mutate(ctx context.Context, id string, box outbox.Outbox, enc outbox.EventEncoder, fn func(*domainbooking.Booking) error) error {
	unit, err := handlersupport.ActiveUnit(ctx)
	if err != nil {
		return err
	}
	booking, err := unit.Bookings().ByID(ctx, domainbooking.BookingID(strings.TrimSpace(id)))
	if err != nil {
		return err
	}
	if err := fn(booking); err != nil {
		return err
	}
	return persist(ctx, unit.Bookings(), box, enc, booking)
}

var _ commands.Handler[CancelBookingCommand, *dto.CancellationResult] = (*CancelBookingHandler)(nil)
var _ commands.Handler[CheckInCommand, *dto.BookingStatus] = (*CheckInHandler)(nil)
var _ commands.Handler[CheckOutCommand, *dto.BookingStatus] = (*CheckOutHandler)(nil)
var _ commands.Handler[UpdatePaymentStatusCommand, *dto.Booking] = (*UpdatePaymentStatusHandler)(nil)
