package booking

import (
	"context"
	"strings"
	"time"

	"staykeeper/internal/domain/listings"
	"staykeeper/internal/domain/pricing"
	"staykeeper/internal/domain/shared/daterange"
	"staykeeper/internal/domain/shared/errs"
	"staykeeper/internal/domain/shared/events"
	"staykeeper/internal/domain/shared/money"
	"staykeeper/internal/domain/user"
)

var (
	ErrBookingNotFound  = errs.NotFound("booking: not found")
	ErrInvalidGuests    = errs.Validation("booking: guests count is outside the listing limits")
	ErrGuestRequired    = errs.Validation("booking: guest id required")
	ErrNotPending       = errs.Validation("booking: booking is not awaiting a host response")
	ErrAlreadyConfirmed = errs.Validation("booking: booking already confirmed")
	ErrNotConfirmed     = errs.Validation("booking: booking must be confirmed")
	ErrAlreadyCheckedIn = errs.Validation("booking: guest already checked in")
	ErrNotCheckedIn     = errs.Validation("booking: guest has not checked in")
	ErrInvalidPayment   = errs.Validation("booking: invalid payment status")
	ErrClosed           = errs.Conflict("booking: booking is already closed")
	ErrUnavailable      = errs.Conflict("booking: listing unavailable for selected dates")
	ErrConcurrentUpdate = errs.Conflict("booking: concurrent update detected")
	ErrNotHost          = errs.Forbidden("booking: only the host of record may respond")
	ErrNotParticipant   = errs.Forbidden("booking: actor is neither guest nor host of record")
	ErrSelfBooking      = errs.Validation("booking: hosts cannot book their own listing")
	ErrResponseTooLong  = errs.Validation("booking: message is too long")
)

const (
	maxMessageLength     = 2000
	defaultRejectMessage = "declined by host"
)

type BookingID string

// Party identifies which side of the booking acted.
type Party string

const (
	PartyGuest Party = "guest"
	PartyHost  Party = "host"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentRefunded  PaymentStatus = "refunded"
	PaymentFailed    PaymentStatus = "failed"
)

func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentPending, PaymentCompleted, PaymentRefunded, PaymentFailed:
		return true
	}
	return false
}

// Cancellation is recorded once, when the booking leaves the active states.
type Cancellation struct {
	By     Party
	Reason string
	Refund money.Money
	At     time.Time
}

// HostResponse is the host's message attached to a confirm or reject.
type HostResponse struct {
	Message string
	At      time.Time
}

type Booking struct {
	ID              BookingID
	ListingID       listings.ListingID
	GuestID         user.ID
	HostID          listings.HostID
	Range           daterange.DateRange
	Guests          int
	Price           pricing.Breakdown
	Policy          listings.CancellationPolicy
	State           State
	PaymentStatus   PaymentStatus
	SpecialRequests string
	HostResponse    *HostResponse
	Cancellation    *Cancellation
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Version         int64
	events.EventRecorder
}

// ListFilter narrows guest and host listings.
type ListFilter struct {
	Status Status
	Limit  int
	Offset int
}

type Repository interface {
	ByID(ctx context.Context, id BookingID) (*Booking, error)
	Save(ctx context.Context, booking *Booking) error
	// LockListing serializes writers of the same listing until the surrounding
	// unit of work ends.
	LockListing(ctx context.Context, id listings.ListingID) error
	// Occupying returns bookings in an occupying status whose range overlaps dr,
	// skipping exclude when it is set.
	Occupying(ctx context.Context, id listings.ListingID, dr daterange.DateRange, exclude BookingID) ([]*Booking, error)
	ListByGuest(ctx context.Context, guestID user.ID, filter ListFilter) ([]*Booking, error)
	ListByHost(ctx context.Context, hostID listings.HostID, filter ListFilter) ([]*Booking, error)
	// ListByListing orders by check-in, latest first.
	ListByListing(ctx context.Context, id listings.ListingID, filter ListFilter) ([]*Booking, error)
	// Upcoming returns confirmed stays of the host starting on or after from,
	// soonest first.
	Upcoming(ctx context.Context, hostID listings.HostID, from time.Time, limit int) ([]*Booking, error)
	ListingTotals(ctx context.Context, id listings.ListingID, currency string) (ListingTotals, error)
}

// ListingTotals counts a listing's bookings. Completed and Revenue only
// cover bookings priced in the requested currency.
type ListingTotals struct {
	Bookings  int
	Confirmed int // confirmed or completed
	Completed int
	Revenue   int64
}

// Add folds one booking into the totals.
func (t *ListingTotals) Add(b *Booking, currency string) {
	t.Bookings++
	switch b.State.Status() {
	case StatusConfirmed:
		t.Confirmed++
	case StatusCompleted:
		t.Confirmed++
		if b.Price.Total.Currency == currency {
			t.Completed++
			t.Revenue += b.Price.Total.Amount
		}
	}
}

type CreateParams struct {
	ID              BookingID
	Listing         *listings.Listing
	GuestID         user.ID
	Range           daterange.DateRange
	Guests          int
	Price           pricing.Breakdown
	SpecialRequests string
	CreatedAt       time.Time
}

// NewBooking builds a booking awaiting the host. Availability is checked by
// the caller inside the same unit of work that persists the result.
func NewBooking(params CreateParams) (*Booking, error) {
	l := params.Listing
	if strings.TrimSpace(string(params.GuestID)) == "" {
		return nil, ErrGuestRequired
	}
	if !l.Published {
		return nil, listings.ErrNotPublished
	}
	if string(params.GuestID) == string(l.Host) {
		return nil, ErrSelfBooking
	}
	if !l.AcceptsGuests(params.Guests) {
		return nil, ErrInvalidGuests
	}
	if err := ValidateDateRange(params.Range, params.CreatedAt); err != nil {
		return nil, err
	}
	requests := strings.TrimSpace(params.SpecialRequests)
	if len(requests) > maxMessageLength {
		return nil, ErrResponseTooLong
	}
	now := params.CreatedAt.UTC()
	b := &Booking{
		ID:              params.ID,
		ListingID:       l.ID,
		GuestID:         params.GuestID,
		HostID:          l.Host,
		Range:           params.Range,
		Guests:          params.Guests,
		Price:           params.Price,
		Policy:          l.CancellationPolicy,
		State:           StateAwaitingHost,
		PaymentStatus:   PaymentPending,
		SpecialRequests: requests,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	b.Record(BookingRequested{
		BookingID: b.ID,
		ListingID: b.ListingID,
		GuestID:   b.GuestID,
		HostID:    b.HostID,
		CheckIn:   b.Range.CheckIn,
		CheckOut:  b.Range.CheckOut,
		Guests:    b.Guests,
		Total:     b.Price.Total,
		At:        now,
	})
	return b, nil
}

// PartyOf returns the side actor is on, or false for strangers.
func (b *Booking) PartyOf(actor user.ID) (Party, bool) {
	switch {
	case actor == "":
		return "", false
	case actor == b.GuestID:
		return PartyGuest, true
	case string(actor) == string(b.HostID):
		return PartyHost, true
	}
	return "", false
}

func (b *Booking) IsParticipant(actor user.ID) bool {
	_, ok := b.PartyOf(actor)
	return ok
}

func (b *Booking) Occupies() bool {
	return b.State.Occupies()
}

// CanConfirm runs every confirm guard except availability, which needs the store.
func (b *Booking) CanConfirm(actor user.ID) error {
	if string(actor) != string(b.HostID) {
		return ErrNotHost
	}
	if b.State.Terminal() {
		return ErrClosed
	}
	if b.State != StateAwaitingHost {
		return ErrAlreadyConfirmed
	}
	return nil
}

func (b *Booking) Confirm(actor user.ID, message string, now time.Time) error {
	if err := b.CanConfirm(actor); err != nil {
		return err
	}
	response, err := newHostResponse(message, now)
	if err != nil {
		return err
	}
	b.State = StateConfirmed
	b.HostResponse = response
	b.UpdatedAt = now.UTC()
	b.Record(BookingConfirmed{
		BookingID: b.ID,
		ListingID: b.ListingID,
		HostID:    b.HostID,
		CheckIn:   b.Range.CheckIn,
		CheckOut:  b.Range.CheckOut,
		Total:     b.Price.Total,
		At:        b.UpdatedAt,
	})
	return nil
}

func (b *Booking) Reject(actor user.ID, message string, now time.Time) error {
	if string(actor) != string(b.HostID) {
		return ErrNotHost
	}
	if b.State.Terminal() {
		return ErrClosed
	}
	if b.State != StateAwaitingHost {
		return ErrNotPending
	}
	if strings.TrimSpace(message) == "" {
		message = defaultRejectMessage
	}
	response, err := newHostResponse(message, now)
	if err != nil {
		return err
	}
	b.State = cancelledFrom(b.State)
	b.HostResponse = response
	b.Cancellation = &Cancellation{
		By:     PartyHost,
		Reason: response.Message,
		Refund: money.Zero(b.Price.Total.Currency),
		At:     response.At,
	}
	b.UpdatedAt = response.At
	b.Record(BookingRejected{BookingID: b.ID, ListingID: b.ListingID, Reason: response.Message, At: b.UpdatedAt})
	return nil
}

// Cancel always succeeds for an active booking; the refund may be zero.
func (b *Booking) Cancel(actor user.ID, reason string, now time.Time) (money.Money, error) {
	party, ok := b.PartyOf(actor)
	if !ok {
		return money.Money{}, ErrNotParticipant
	}
	if b.State.Terminal() {
		return money.Money{}, ErrClosed
	}
	reason = strings.TrimSpace(reason)
	if len(reason) > maxMessageLength {
		return money.Money{}, ErrResponseTooLong
	}
	now = now.UTC()
	days := daterange.DaysUntil(b.Range.CheckIn, now)
	refund := RefundFor(b.Policy, days, b.Price.Total)

	b.State = cancelledFrom(b.State)
	b.Cancellation = &Cancellation{By: party, Reason: reason, Refund: refund, At: now}
	b.UpdatedAt = now
	b.Record(BookingCancelled{
		BookingID:        b.ID,
		ListingID:        b.ListingID,
		By:               party,
		Reason:           reason,
		DaysUntilCheckIn: days,
		Refund:           refund,
		At:               now,
	})
	return refund, nil
}

func (b *Booking) CheckIn(actor user.ID, now time.Time) error {
	if !b.IsParticipant(actor) {
		return ErrNotParticipant
	}
	switch {
	case b.State.Terminal():
		return ErrClosed
	case b.State == StateCheckedIn:
		return ErrAlreadyCheckedIn
	case b.State != StateConfirmed:
		return ErrNotConfirmed
	}
	if daterange.DaysUntil(b.Range.CheckIn, now) > 0 {
		return ErrCheckInTooEarly
	}
	b.State = StateCheckedIn
	b.UpdatedAt = now.UTC()
	b.Record(CheckInCompleted{BookingID: b.ID, ListingID: b.ListingID, At: b.UpdatedAt})
	return nil
}

func (b *Booking) CheckOut(actor user.ID, now time.Time) error {
	if !b.IsParticipant(actor) {
		return ErrNotParticipant
	}
	if b.State.Terminal() {
		return ErrClosed
	}
	if b.State != StateCheckedIn {
		return ErrNotCheckedIn
	}
	b.State = StateCompleted
	b.UpdatedAt = now.UTC()
	b.Record(CheckOutCompleted{BookingID: b.ID, ListingID: b.ListingID, At: b.UpdatedAt})
	return nil
}

// RecordPayment stores the status reported by the payment collaborator.
func (b *Booking) RecordPayment(status PaymentStatus, now time.Time) error {
	if !status.Valid() {
		return ErrInvalidPayment
	}
	b.PaymentStatus = status
	b.UpdatedAt = now.UTC()
	b.Record(PaymentStatusChanged{BookingID: b.ID, Status: status, At: b.UpdatedAt})
	return nil
}

func newHostResponse(message string, now time.Time) (*HostResponse, error) {
	message = strings.TrimSpace(message)
	if len(message) > maxMessageLength {
		return nil, ErrResponseTooLong
	}
	return &HostResponse{Message: message, At: now.UTC()}, nil
}

// Clone returns a deep copy without pending events.
func (b *Booking) Clone() *Booking {
	c := *b
	c.EventRecorder = events.EventRecorder{}
	if b.HostResponse != nil {
		hr := *b.HostResponse
		c.HostResponse = &hr
	}
	if b.Cancellation != nil {
		cn := *b.Cancellation
		c.Cancellation = &cn
	}
	return &c
}
