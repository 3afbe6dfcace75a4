package dto

import (
	"time"

	domaincommission "staykeeper/internal/domain/commission"
)

type Commission struct {
	ID              string     `json:"id"`
	Reference       string     `json:"reference"`
	BookingID       string     `json:"booking_id"`
	HostID          string     `json:"host_id"`
	GuestID         string     `json:"guest_id"`
	BookingAmount   MoneyDTO   `json:"booking_amount"`
	Rate            string     `json:"rate"`
	Commission      MoneyDTO   `json:"commission"`
	NetAmount       MoneyDTO   `json:"net_amount"`
	Status          string     `json:"status"`
	Description     string     `json:"description"`
	DueAt           time.Time  `json:"due_at"`
	PaymentMethod   string     `json:"payment_method,omitempty"`
	PaymentIntentID string     `json:"payment_intent_id,omitempty"`
	PaymentProvider string     `json:"payment_provider,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	FailureReason   string     `json:"failure_reason,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

type CommissionCollection struct {
	Items []Commission `json:"items"`
}

type CommissionPreview struct {
	BookingAmount MoneyDTO `json:"booking_amount"`
	Rate          string   `json:"rate"`
	Commission    MoneyDTO `json:"commission"`
	NetAmount     MoneyDTO `json:"net_amount"`
}

type CommissionRate struct {
	Rate string `json:"rate"`
}

type PendingCommissions struct {
	HostID string   `json:"host_id"`
	Count  int      `json:"count"`
	Total  MoneyDTO `json:"total"`
}

func MapCommission(tx *domaincommission.Transaction) Commission {
	return Commission{
		ID:              string(tx.ID),
		Reference:       tx.Reference,
		BookingID:       string(tx.BookingID),
		HostID:          string(tx.HostID),
		GuestID:         string(tx.GuestID),
		BookingAmount:   MapMoney(tx.BookingAmount),
		Rate:            tx.Rate.String(),
		Commission:      MapMoney(tx.Commission),
		NetAmount:       MapMoney(tx.NetAmount),
		Status:          string(tx.Status),
		Description:     tx.Description,
		DueAt:           tx.DueAt,
		PaymentMethod:   tx.Payment.Method,
		PaymentIntentID: tx.Payment.IntentID,
		PaymentProvider: tx.Payment.Provider,
		CompletedAt:     tx.CompletedAt,
		FailureReason:   tx.FailureReason,
		CreatedAt:       tx.CreatedAt,
	}
}

func MapSplit(split domaincommission.Split) CommissionPreview {
	return CommissionPreview{
		BookingAmount: MapMoney(split.Gross),
		Rate:          split.Rate.String(),
		Commission:    MapMoney(split.Commission),
		NetAmount:     MapMoney(split.Net),
	}
}

type HostEarnings struct {
	HostID            string   `json:"host_id"`
	TotalBookings     int      `json:"total_bookings"`
	GrossEarnings     MoneyDTO `json:"total_gross_earnings"`
	CommissionCharged MoneyDTO `json:"total_commission"`
	NetEarnings       MoneyDTO `json:"total_net_earnings"`
	PendingCommission MoneyDTO `json:"pending_commission"`
	PayoutsReceived   MoneyDTO `json:"total_payouts_received"`
	CommissionRate    string   `json:"commission_rate"`
}

type PlatformRevenue struct {
	From                 *time.Time `json:"from,omitempty"`
	To                   *time.Time `json:"to,omitempty"`
	TotalTransactions    int        `json:"total_transactions"`
	CommissionsEarned    MoneyDTO   `json:"total_commissions_earned"`
	CommissionsCollected MoneyDTO   `json:"total_commissions_collected"`
	CommissionsPending   MoneyDTO   `json:"total_commissions_pending"`
	CommissionRate       string     `json:"commission_rate"`
}
