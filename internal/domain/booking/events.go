package booking

import (
	"time"

	"staykeeper/internal/domain/listings"
	"staykeeper/internal/domain/shared/money"
	"staykeeper/internal/domain/user"
)

const (
	EventRequested      = "booking.requested"
	EventConfirmed      = "booking.confirmed"
	EventRejected       = "booking.rejected"
	EventCancelled      = "booking.cancelled"
	EventCheckedIn      = "booking.checked_in"
	EventCheckedOut     = "booking.checked_out"
	EventPaymentChanged = "booking.payment_changed"
)

type BookingRequested struct {
	BookingID BookingID          `json:"booking_id"`
	ListingID listings.ListingID `json:"listing_id"`
	GuestID   user.ID            `json:"guest_id"`
	HostID    listings.HostID    `json:"host_id"`
	CheckIn   time.Time          `json:"check_in"`
	CheckOut  time.Time          `json:"check_out"`
	Guests    int                `json:"guests"`
	Total     money.Money        `json:"total"`
	At        time.Time          `json:"at"`
}

func (e BookingRequested) EventName() string     { return EventRequested }
func (e BookingRequested) AggregateID() string   { return string(e.BookingID) }
func (e BookingRequested) OccurredAt() time.Time { return e.At }

type BookingConfirmed struct {
	BookingID BookingID          `json:"booking_id"`
	ListingID listings.ListingID `json:"listing_id"`
	HostID    listings.HostID    `json:"host_id"`
	CheckIn   time.Time          `json:"check_in"`
	CheckOut  time.Time          `json:"check_out"`
	Total     money.Money        `json:"total"`
	At        time.Time          `json:"at"`
}

func (e BookingConfirmed) EventName() string     { return EventConfirmed }
func (e BookingConfirmed) AggregateID() string   { return string(e.BookingID) }
func (e BookingConfirmed) OccurredAt() time.Time { return e.At }

type BookingRejected struct {
	BookingID BookingID          `json:"booking_id"`
	ListingID listings.ListingID `json:"listing_id"`
	Reason    string             `json:"reason"`
	At        time.Time          `json:"at"`
}

func (e BookingRejected) EventName() string     { return EventRejected }
func (e BookingRejected) AggregateID() string   { return string(e.BookingID) }
func (e BookingRejected) OccurredAt() time.Time { return e.At }

type BookingCancelled struct {
	BookingID        BookingID          `json:"booking_id"`
	ListingID        listings.ListingID `json:"listing_id"`
	By               Party              `json:"by"`
	Reason           string             `json:"reason"`
	DaysUntilCheckIn int                `json:"days_until_check_in"`
	Refund           money.Money        `json:"refund"`
	At               time.Time          `json:"at"`
}

func (e BookingCancelled) EventName() string     { return EventCancelled }
func (e BookingCancelled) AggregateID() string   { return string(e.BookingID) }
func (e BookingCancelled) OccurredAt() time.Time { return e.At }

type CheckInCompleted struct {
	BookingID BookingID          `json:"booking_id"`
	ListingID listings.ListingID `json:"listing_id"`
	At        time.Time          `json:"at"`
}

func (e CheckInCompleted) EventName() string     { return EventCheckedIn }
func (e CheckInCompleted) AggregateID() string   { return string(e.BookingID) }
func (e CheckInCompleted) OccurredAt() time.Time { return e.At }

type CheckOutCompleted struct {
	BookingID BookingID          `json:"booking_id"`
	ListingID listings.ListingID `json:"listing_id"`
	At        time.Time          `json:"at"`
}

func (e CheckOutCompleted) EventName() string     { return EventCheckedOut }
func (e CheckOutCompleted) AggregateID() string   { return string(e.BookingID) }
func (e CheckOutCompleted) OccurredAt() time.Time { return e.At }

type PaymentStatusChanged struct {
	BookingID BookingID     `json:"booking_id"`
	Status    PaymentStatus `json:"status"`
	At        time.Time     `json:"at"`
}

func (e PaymentStatusChanged) EventName() string     { return EventPaymentChanged }
func (e PaymentStatusChanged) AggregateID() string   { return string(e.BookingID) }
func (e PaymentStatusChanged) OccurredAt() time.Time { return e.At }
