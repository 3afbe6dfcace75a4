package commission

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"staykeeper/internal/app/clock"
	"staykeeper/internal/app/commands"
	"staykeeper/internal/app/dto"
	handlersupport "staykeeper/internal/app/handlers/support"
	"staykeeper/internal/app/outbox"
	"staykeeper/internal/app/uow"
	domainbooking "staykeeper/internal/domain/booking"
	domaincommission "staykeeper/internal/domain/commission"
	"staykeeper/internal/domain/shared/errs"
	domainuser "staykeeper/internal/domain/user"
)

const (
	createCommissionKey     = "commission.create"
	payCommissionKey        = "commission.pay"
	failCommissionKey       = "commission.fail"
	transitionCommissionKey = "commission.transition"
)

var (
	ErrHostAccountRequired = errs.Forbidden("commission: account is not a host")
	ErrNotBookingHost      = errs.Forbidden("commission: only the host of record may request the commission")
	ErrUnknownAction       = errs.Validation("commission: unknown transition action")
)

// CreateCommissionCommand derives the platform commission for a confirmed
// booking. Event consumers set Internal and leave the actor empty.
type CreateCommissionCommand struct {
	BookingID    string `validate:"required"`
	ActorIDV     string
	InternalCall bool
}

func (c CreateCommissionCommand) Key() string { return createCommissionKey }

func (c CreateCommissionCommand) ActorID() string { return c.ActorIDV }

func (c CreateCommissionCommand) Internal() bool { return c.InternalCall }

type PayCommissionCommand struct {
	TransactionID string `validate:"required"`
	HostID        string `validate:"required"`
	Method        string `validate:"required,max=64"`
	IntentID      string `validate:"max=255"`
	Provider      string `validate:"max=64"`
}

func (c PayCommissionCommand) Key() string { return payCommissionKey }

func (c PayCommissionCommand) ActorID() string { return c.HostID }

// FailCommissionCommand is reported by the payment collaborator.
type FailCommissionCommand struct {
	TransactionID string `validate:"required"`
	Reason        string `validate:"required,max=2000"`
}

func (c FailCommissionCommand) Key() string { return failCommissionKey }

type TransitionAction string

const (
	ActionProcessing TransitionAction = "processing"
	ActionComplete   TransitionAction = "complete"
	ActionCancel     TransitionAction = "cancel"
	ActionRefund     TransitionAction = "refund"
)

// TransitionCommissionCommand moves a transaction along the remaining
// lifecycle edges on behalf of the payment collaborator.
type TransitionCommissionCommand struct {
	TransactionID string           `validate:"required"`
	Action        TransitionAction `validate:"required,oneof=processing complete cancel refund"`
}

func (c TransitionCommissionCommand) Key() string { return transitionCommissionKey }

type CreateCommissionHandler struct {
	Rate     domaincommission.Rate
	DueAfter time.Duration
	Outbox   outbox.Outbox
	Encoder  outbox.EventEncoder
	Clock    clock.Clock
	Logger   *slog.Logger
}

func (h *CreateCommissionHandler) Handle(ctx context.Context, cmd CreateCommissionCommand) (*dto.Commission, error) {
	unit, err := handlersupport.ActiveUnit(ctx)
	if err != nil {
		return nil, err
	}
	booking, err := unit.Bookings().ByID(ctx, domainbooking.BookingID(strings.TrimSpace(cmd.BookingID)))
	if err != nil {
		return nil, err
	}
	if !cmd.InternalCall {
		actor := domainuser.ID(strings.TrimSpace(cmd.ActorIDV))
		if string(actor) != string(booking.HostID) {
			return nil, ErrNotBookingHost
		}
		if err := requireHost(ctx, unit, actor); err != nil {
			return nil, err
		}
	}

	// The unique index on booking id is the real guard; this lookup only
	// gives the common case a clean answer without a failed insert.
	if _, err := unit.Commissions().ByBooking(ctx, booking.ID); err == nil {
		return nil, domaincommission.ErrAlreadyExists
	} else if !errs.IsNotFound(err) {
		return nil, err
	}

	now := clock.OrSystem(h.Clock).Now()
	tx, err := domaincommission.Derive(domaincommission.DeriveParams{
		ID:        domaincommission.ID(uuid.NewString()),
		Reference: newReference(now),
		Booking:   booking,
		Rate:      h.Rate,
		DueAfter:  h.DueAfter,
		Now:       now,
	})
	if err != nil {
		return nil, err
	}
	if err := unit.Commissions().Insert(ctx, tx); err != nil {
		return nil, err
	}
	if err := outbox.RecordDomainEvents(ctx, h.Outbox, h.Encoder, tx.Drain()); err != nil {
		return nil, err
	}

	if h.Logger != nil {
		h.Logger.Info("commission created",
			"transaction_id", tx.ID,
			"reference", tx.Reference,
			"booking_id", tx.BookingID,
			"host_id", tx.HostID,
			"commission", tx.Commission.String())
	}
	result := dto.MapCommission(tx)
	return &result, nil
}

// newReference builds TXN-<yyyymmdd>-<12 hex>; the random part comes from a
// v4 UUID.
func newReference(now time.Time) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("TXN-%s-%s", now.UTC().Format("20060102"), strings.ToUpper(raw[:12]))
}

type PayCommissionHandler struct {
	Outbox  outbox.Outbox
	Encoder outbox.EventEncoder
	Clock   clock.Clock
	Logger  *slog.Logger
}

func (h *PayCommissionHandler) Handle(ctx context.Context, cmd PayCommissionCommand) (*dto.Commission, error) {
	unit, err := handlersupport.ActiveUnit(ctx)
	if err != nil {
		return nil, err
	}
	actor := domainuser.ID(strings.TrimSpace(cmd.HostID))
	if err := requireHost(ctx, unit, actor); err != nil {
		return nil, err
	}
	tx, err := mutate(ctx, unit, cmd.TransactionID, h.Outbox, h.Encoder, func(tx *domaincommission.Transaction) error {
		return tx.Pay(actor, domaincommission.PaymentDetails{
			Method:   cmd.Method,
			IntentID: strings.TrimSpace(cmd.IntentID),
			Provider: strings.TrimSpace(cmd.Provider),
		}, clock.OrSystem(h.Clock).Now())
	})
	if err != nil {
		return nil, err
	}
	if h.Logger != nil {
		h.Logger.Info("commission paid", "transaction_id", tx.ID, "host_id", tx.HostID, "method", tx.Payment.Method)
	}
	result := dto.MapCommission(tx)
	return &result, nil
}

type FailCommissionHandler struct {
	Outbox  outbox.Outbox
	Encoder outbox.EventEncoder
	Clock   clock.Clock
	Logger  *slog.Logger
}

func (h *FailCommissionHandler) Handle(ctx context.Context, cmd FailCommissionCommand) (*dto.Commission, error) {
	unit, err := handlersupport.ActiveUnit(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := mutate(ctx, unit, cmd.TransactionID, h.Outbox, h.Encoder, func(tx *domaincommission.Transaction) error {
		return tx.Fail(cmd.Reason, clock.OrSystem(h.Clock).Now())
	})
	if err != nil {
		return nil, err
	}
	if h.Logger != nil {
		h.Logger.Warn("commission payment failed", "transaction_id", tx.ID, "booking_id", tx.BookingID, "reason", tx.FailureReason)
	}
	result := dto.MapCommission(tx)
	return &result, nil
}

type TransitionCommissionHandler struct {
	Outbox  outbox.Outbox
	Encoder outbox.EventEncoder
	Clock   clock.Clock
	Logger  *slog.Logger
}

func (h *TransitionCommissionHandler) Handle(ctx context.Context, cmd TransitionCommissionCommand) (*dto.Commission, error) {
	unit, err := handlersupport.ActiveUnit(ctx)
	if err != nil {
		return nil, err
	}
	now := clock.OrSystem(h.Clock).Now()
	tx, err := mutate(ctx, unit, cmd.TransactionID, h.Outbox, h.Encoder, func(tx *domaincommission.Transaction) error {
		switch TransitionAction(strings.ToLower(strings.TrimSpace(string(cmd.Action)))) {
		case ActionProcessing:
			return tx.MarkProcessing(now)
		case ActionComplete:
			return tx.Complete(now)
		case ActionCancel:
			return tx.Cancel(now)
		case ActionRefund:
			return tx.Refund(now)
		}
		return ErrUnknownAction
	})
	if err != nil {
		return nil, err
	}
	if h.Logger != nil {
		h.Logger.Info("commission status changed", "transaction_id", tx.ID, "status", tx.Status)
	}
	result := dto.MapCommission(tx)
	return &result, nil
}

func mutate(ctx context.Context, unit uow.UnitOfWork, id string, box outbox.Outbox, enc outbox.EventEncoder, fn func(*domaincommission.Transaction) error) (*domaincommission.Transaction, error) {
	tx, err := unit.Commissions().ByID(ctx, domaincommission.ID(strings.TrimSpace(id)))
	if err != nil {
		return nil, err
	}
	if err := fn(tx); err != nil {
		return nil, err
	}
	if err := unit.Commissions().Save(ctx, tx); err != nil {
		return nil, err
	}
	if err := outbox.RecordDomainEvents(ctx, box, enc, tx.Drain()); err != nil {
		return nil, err
	}
	return tx, nil
}

// requireHost asks the identity directory whether actor may act as a host.
func requireHost(ctx context.Context, unit uow.UnitOfWork, actor domainuser.ID) error {
	kind, err := unit.Users().UserType(ctx, actor)
	if err != nil {
		if errs.IsNotFound(err) {
			return ErrHostAccountRequired
		}
		return err
	}
	if !kind.CanHost() {
		return ErrHostAccountRequired
	}
	return nil
}

var _ commands.Handler[CreateCommissionCommand, *dto.Commission] = (*CreateCommissionHandler)(nil)
var _ commands.Handler[PayCommissionCommand, *dto.Commission] = (*PayCommissionHandler)(nil)
var _ commands.Handler[FailCommissionCommand, *dto.Commission] = (*FailCommissionHandler)(nil)
var _ commands.Handler[TransitionCommissionCommand, *dto.Commission] = (*TransitionCommissionHandler)(nil)
