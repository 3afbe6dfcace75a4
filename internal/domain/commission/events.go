package commission

import (
	"time"

	"staykeeper/internal/domain/booking"
	"staykeeper/internal/domain/listings"
	"staykeeper/internal/domain/shared/money"
)

const (
	EventCreated       = "commission.created"
	EventStatusChanged = "commission.status_changed"
)

type Created struct {
	TransactionID ID                `json:"transaction_id"`
	Reference     string            `json:"reference"`
	BookingID     booking.BookingID `json:"booking_id"`
	HostID        listings.HostID   `json:"host_id"`
	Commission    money.Money       `json:"commission"`
	DueAt         time.Time         `json:"due_at"`
	At            time.Time         `json:"at"`
}

func (e Created) EventName() string     { return EventCreated }
func (e Created) AggregateID() string   { return string(e.TransactionID) }
func (e Created) OccurredAt() time.Time { return e.At }

type StatusChanged struct {
	TransactionID ID                `json:"transaction_id"`
	BookingID     booking.BookingID `json:"booking_id"`
	From          Status            `json:"from"`
	To            Status            `json:"to"`
	At            time.Time         `json:"at"`
}

func (e StatusChanged) EventName() string     { return EventStatusChanged }
func (e StatusChanged) AggregateID() string   { return string(e.TransactionID) }
func (e StatusChanged) OccurredAt() time.Time { return e.At }
