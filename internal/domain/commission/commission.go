// Package commission derives and tracks the platform's share of confirmed bookings.
package commission

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"staykeeper/internal/domain/booking"
	"staykeeper/internal/domain/listings"
	"staykeeper/internal/domain/shared/errs"
	"staykeeper/internal/domain/shared/events"
	"staykeeper/internal/domain/shared/money"
	"staykeeper/internal/domain/user"
)

var (
	ErrNotFound          = errs.NotFound("commission: transaction not found")
	ErrAlreadyExists     = errs.Conflict("commission: transaction already exists for booking")
	ErrConcurrentUpdate  = errs.Conflict("commission: concurrent update detected")
	ErrBookingNotReady   = errs.Validation("commission: booking must be confirmed")
	ErrInvalidRate       = errs.Validation("commission: rate must be between 0 and 100")
	ErrInvalidAmount     = errs.Validation("commission: booking amount must be positive")
	ErrReasonRequired    = errs.Validation("commission: failure reason is required")
	ErrMethodRequired    = errs.Validation("commission: payment method is required")
	ErrInvalidTransition = errs.Validation("commission: transition not allowed from current status")
	ErrTerminal          = errs.Conflict("commission: transaction is already settled")
	ErrNotOwner          = errs.Forbidden("commission: only the owning host may pay")
)

// DefaultDueAfter is the grace period between check-out and payment.
const DefaultDueAfter = 7 * 24 * time.Hour

type ID string

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusCompleted:  {StatusRefunded},
}

func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled, StatusRefunded:
		return s, nil
	}
	return "", errs.Validationf("commission: unknown status %q", raw)
}

// CanTransition reports whether from → to is part of the lifecycle.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal statuses have no outgoing transitions besides the refund path.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// Rate is a percentage of the booking total.
type Rate struct {
	pct decimal.Decimal
}

// DefaultRate is used when no rate is configured.
var DefaultRate = Rate{pct: decimal.NewFromInt(15)}

func NewRate(pct decimal.Decimal) (Rate, error) {
	if pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
		return Rate{}, ErrInvalidRate
	}
	return Rate{pct: pct}, nil
}

func ParseRate(raw string) (Rate, error) {
	pct, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return Rate{}, fmt.Errorf("%w: %v", ErrInvalidRate, err)
	}
	return NewRate(pct)
}

func (r Rate) Percent() decimal.Decimal { return r.pct }
func (r Rate) String() string           { return r.pct.String() }

// Split is the commission and the host's remainder for an amount.
type Split struct {
	Gross      money.Money
	Rate       Rate
	Commission money.Money
	Net        money.Money
}

// Quote splits amount at rate without persisting anything.
func Quote(amount money.Money, rate Rate) (Split, error) {
	if amount.Amount <= 0 {
		return Split{}, ErrInvalidAmount
	}
	return split(amount, rate)
}

func split(amount money.Money, rate Rate) (Split, error) {
	fee := amount.Percent(rate.pct)
	net, err := amount.Sub(fee)
	if err != nil {
		return Split{}, err
	}
	return Split{Gross: amount, Rate: rate, Commission: fee, Net: net}, nil
}

// PaymentDetails describe how the host settled the commission.
type PaymentDetails struct {
	Method   string
	IntentID string
	Provider string
}

type Transaction struct {
	ID            ID
	Reference     string
	BookingID     booking.BookingID
	HostID        listings.HostID
	GuestID       user.ID
	BookingAmount money.Money
	Rate          Rate
	Commission    money.Money
	NetAmount     money.Money
	Status        Status
	Description   string
	DueAt         time.Time
	Payment       PaymentDetails
	CompletedAt   *time.Time
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Version       int64
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id ID) (*Transaction, error)
	ByBooking(ctx context.Context, bookingID booking.BookingID) (*Transaction, error)
	// Insert fails with ErrAlreadyExists when the booking already has a transaction.
	Insert(ctx context.Context, tx *Transaction) error
	Save(ctx context.Context, tx *Transaction) error
	ListByHost(ctx context.Context, hostID listings.HostID, status Status) ([]*Transaction, error)
	Totals(ctx context.Context, filter TotalsFilter) (Totals, error)
}

// TotalsFilter scopes Totals. An empty HostID covers every host and zero
// bounds leave the creation window open.
type TotalsFilter struct {
	HostID   listings.HostID
	Currency string
	From     time.Time
	To       time.Time
}

func (f TotalsFilter) Matches(tx *Transaction) bool {
	if f.HostID != "" && tx.HostID != f.HostID {
		return false
	}
	if tx.Commission.Currency != f.Currency {
		return false
	}
	if !f.From.IsZero() && tx.CreatedAt.Before(f.From) {
		return false
	}
	return f.To.IsZero() || tx.CreatedAt.Before(f.To)
}

// Totals sums transactions in minor units. Transactions, Gross, Commission
// and Net skip cancelled, failed and refunded ones.
type Totals struct {
	Transactions int
	Gross        int64
	Commission   int64
	Net          int64
	Collected    int64 // commission of completed transactions
	Pending      int64 // commission still pending or processing
	PaidOut      int64 // net of completed transactions
}

// EarningStatuses are the statuses Totals counts as earned.
func EarningStatuses() []Status {
	return []Status{StatusPending, StatusProcessing, StatusCompleted}
}

// OpenStatuses are the statuses whose commission is still owed.
func OpenStatuses() []Status {
	return []Status{StatusPending, StatusProcessing}
}

// Add folds one transaction into the totals.
func (t *Totals) Add(tx *Transaction) {
	switch tx.Status {
	case StatusPending, StatusProcessing:
		t.Pending += tx.Commission.Amount
	case StatusCompleted:
		t.Collected += tx.Commission.Amount
		t.PaidOut += tx.NetAmount.Amount
	default:
		return
	}
	t.Transactions++
	t.Gross += tx.BookingAmount.Amount
	t.Commission += tx.Commission.Amount
	t.Net += tx.NetAmount.Amount
}

type DeriveParams struct {
	ID        ID
	Reference string
	Booking   *booking.Booking
	Rate      Rate
	DueAfter  time.Duration
	Now       time.Time
}

// Derive computes the pending transaction for a confirmed booking. Uniqueness
// per booking is enforced by the repository.
func Derive(p DeriveParams) (*Transaction, error) {
	b := p.Booking
	if b.State.Status() != booking.StatusConfirmed {
		return nil, ErrBookingNotReady
	}
	if b.Price.Total.IsNegative() {
		return nil, ErrInvalidAmount
	}
	parts, err := split(b.Price.Total, p.Rate)
	if err != nil {
		return nil, err
	}
	dueAfter := p.DueAfter
	if dueAfter <= 0 {
		dueAfter = DefaultDueAfter
	}
	now := p.Now.UTC()
	tx := &Transaction{
		ID:            p.ID,
		Reference:     p.Reference,
		BookingID:     b.ID,
		HostID:        b.HostID,
		GuestID:       b.GuestID,
		BookingAmount: parts.Gross,
		Rate:          parts.Rate,
		Commission:    parts.Commission,
		NetAmount:     parts.Net,
		Status:        StatusPending,
		Description:   fmt.Sprintf("Platform commission for booking %s", b.ID),
		DueAt:         b.Range.CheckOut.Add(dueAfter),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	tx.Record(Created{
		TransactionID: tx.ID,
		Reference:     tx.Reference,
		BookingID:     tx.BookingID,
		HostID:        tx.HostID,
		Commission:    tx.Commission,
		DueAt:         tx.DueAt,
		At:            now,
	})
	return tx, nil
}

func (t *Transaction) transition(to Status, now time.Time) error {
	if !CanTransition(t.Status, to) {
		if t.Status.Terminal() {
			return ErrTerminal
		}
		return ErrInvalidTransition
	}
	from := t.Status
	t.Status = to
	t.UpdatedAt = now.UTC()
	t.Record(StatusChanged{TransactionID: t.ID, BookingID: t.BookingID, From: from, To: to, At: t.UpdatedAt})
	return nil
}

// MarkProcessing records that a payment attempt is in flight.
func (t *Transaction) MarkProcessing(now time.Time) error {
	return t.transition(StatusProcessing, now)
}

// Pay settles a pending commission on behalf of the owning host.
func (t *Transaction) Pay(actor user.ID, details PaymentDetails, now time.Time) error {
	if string(actor) != string(t.HostID) {
		return ErrNotOwner
	}
	details.Method = strings.TrimSpace(details.Method)
	if details.Method == "" {
		return ErrMethodRequired
	}
	switch {
	case t.Status == StatusCompleted || t.Status.Terminal():
		return ErrTerminal
	case t.Status != StatusPending:
		return ErrInvalidTransition
	}
	if err := t.transition(StatusCompleted, now); err != nil {
		return err
	}
	completed := t.UpdatedAt
	t.CompletedAt = &completed
	t.Payment = details
	return nil
}

// Complete settles a processing commission once the provider reports success.
func (t *Transaction) Complete(now time.Time) error {
	if t.Status != StatusProcessing {
		return ErrInvalidTransition
	}
	if err := t.transition(StatusCompleted, now); err != nil {
		return err
	}
	completed := t.UpdatedAt
	t.CompletedAt = &completed
	return nil
}

func (t *Transaction) Fail(reason string, now time.Time) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrReasonRequired
	}
	if err := t.transition(StatusFailed, now); err != nil {
		return err
	}
	t.FailureReason = reason
	return nil
}

func (t *Transaction) Cancel(now time.Time) error {
	return t.transition(StatusCancelled, now)
}

func (t *Transaction) Refund(now time.Time) error {
	return t.transition(StatusRefunded, now)
}

// Clone returns a copy without pending events.
func (t *Transaction) Clone() *Transaction {
	c := *t
	c.EventRecorder = events.EventRecorder{}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	return &c
}
