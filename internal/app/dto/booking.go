package dto

import (
	"time"

	domainbooking "staykeeper/internal/domain/booking"
	domainpricing "staykeeper/internal/domain/pricing"
	"staykeeper/internal/domain/shared/money"
)

type MoneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type PriceBreakdown struct {
	Nights   int      `json:"nights"`
	Nightly  MoneyDTO `json:"nightly"`
	Base     MoneyDTO `json:"base"`
	Cleaning MoneyDTO `json:"cleaning"`
	Service  MoneyDTO `json:"service"`
	Discount MoneyDTO `json:"discount"`
	Total    MoneyDTO `json:"total"`
}

type HostResponse struct {
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

type Cancellation struct {
	By     string    `json:"by"`
	Reason string    `json:"reason,omitempty"`
	Refund MoneyDTO  `json:"refund"`
	At     time.Time `json:"at"`
}

type Booking struct {
	ID                 string         `json:"id"`
	ListingID          string         `json:"listing_id"`
	GuestID            string         `json:"guest_id"`
	HostID             string         `json:"host_id"`
	CheckIn            time.Time      `json:"check_in"`
	CheckOut           time.Time      `json:"check_out"`
	Guests             int            `json:"guests"`
	Status             string         `json:"status"`
	Stage              string         `json:"stage"`
	PaymentStatus      string         `json:"payment_status"`
	CancellationPolicy string         `json:"cancellation_policy"`
	Price              PriceBreakdown `json:"price"`
	SpecialRequests    string         `json:"special_requests,omitempty"`
	HostResponse       *HostResponse  `json:"host_response,omitempty"`
	Cancellation       *Cancellation  `json:"cancellation,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

type BookingCollection struct {
	Items  []Booking `json:"items"`
	Limit  int       `json:"limit"`
	Offset int       `json:"offset"`
}

type BookingStatus struct {
	BookingID string `json:"booking_id"`
	Status    string `json:"status"`
	Stage     string `json:"stage"`
}

type CancellationResult struct {
	BookingStatus
	CancelledBy string   `json:"cancelled_by"`
	Refund      MoneyDTO `json:"refund"`
}

func MapMoney(value money.Money) MoneyDTO {
	return MoneyDTO{
		Amount:   value.Amount,
		Currency: value.Currency,
	}
}

func MapPrice(p domainpricing.Breakdown) PriceBreakdown {
	return PriceBreakdown{
		Nights:   p.Nights,
		Nightly:  MapMoney(p.Nightly),
		Base:     MapMoney(p.Base),
		Cleaning: MapMoney(p.Cleaning),
		Service:  MapMoney(p.Service),
		Discount: MapMoney(p.Discount),
		Total:    MapMoney(p.Total),
	}
}

func MapBookingStatus(b *domainbooking.Booking) BookingStatus {
	return BookingStatus{
		BookingID: string(b.ID),
		Status:    string(b.State.Status()),
		Stage:     string(b.State.Stage()),
	}
}

func MapBooking(b *domainbooking.Booking) Booking {
	out := Booking{
		ID:                 string(b.ID),
		ListingID:          string(b.ListingID),
		GuestID:            string(b.GuestID),
		HostID:             string(b.HostID),
		CheckIn:            b.Range.CheckIn,
		CheckOut:           b.Range.CheckOut,
		Guests:             b.Guests,
		Status:             string(b.State.Status()),
		Stage:              string(b.State.Stage()),
		PaymentStatus:      string(b.PaymentStatus),
		CancellationPolicy: string(b.Policy),
		Price:              MapPrice(b.Price),
		SpecialRequests:    b.SpecialRequests,
		CreatedAt:          b.CreatedAt,
		UpdatedAt:          b.UpdatedAt,
	}
	if b.HostResponse != nil {
		out.HostResponse = &HostResponse{Message: b.HostResponse.Message, At: b.HostResponse.At}
	}
	if b.Cancellation != nil {
		out.Cancellation = &Cancellation{
			By:     string(b.Cancellation.By),
			Reason: b.Cancellation.Reason,
			Refund: MapMoney(b.Cancellation.Refund),
			At:     b.Cancellation.At,
		}
	}
	return out
}

func MapBookings(items []*domainbooking.Booking, limit, offset int) BookingCollection {
	out := BookingCollection{Items: make([]Booking, 0, len(items)), Limit: limit, Offset: offset}
	for _, b := range items {
		out.Items = append(out.Items, MapBooking(b))
	}
	return out
}

// ListingStats reports a listing's booking history and how much of the
// window ahead is already booked.
type ListingStats struct {
	ListingID           string    `json:"listing_id"`
	TotalBookings       int       `json:"total_bookings"`
	ConfirmedBookings   int       `json:"confirmed_bookings"`
	CompletedBookings   int       `json:"completed_bookings"`
	TotalRevenue        MoneyDTO  `json:"total_revenue"`
	AverageBookingValue MoneyDTO  `json:"average_booking_value"`
	OccupancyRate       string    `json:"occupancy_rate"`
	BookedNights        int       `json:"booked_nights"`
	WindowStart         time.Time `json:"window_start"`
	WindowEnd           time.Time `json:"window_end"`
}
