package booking

import (
	"context"
	"strings"
	"time"

	"staykeeper/internal/app/clock"
	"staykeeper/internal/app/dto"
	handlersupport "staykeeper/internal/app/handlers/support"
	"staykeeper/internal/app/policies"
	"staykeeper/internal/app/queries"
	"staykeeper/internal/app/uow"
	domainbooking "staykeeper/internal/domain/booking"
	domainlistings "staykeeper/internal/domain/listings"
	"staykeeper/internal/domain/shared/daterange"
	"staykeeper/internal/domain/shared/errs"
	"staykeeper/internal/domain/shared/money"
	domainuser "staykeeper/internal/domain/user"
)

const (
	getBookingKey        = "booking.get"
	listGuestBookingsKey = "booking.list_guest"
	listHostBookingsKey  = "booking.list_host"
	previewPricingKey    = "booking.preview_pricing"
	listListingKey       = "booking.list_listing"
	listingStatsKey      = "booking.listing_stats"
	upcomingKey          = "booking.upcoming"

	// DefaultStatsWindowDays is how far ahead occupancy looks by default.
	DefaultStatsWindowDays = 30
	DefaultUpcomingLimit   = 10
)

var ErrNotListingHost = errs.Forbidden("booking: listing belongs to another host")

type GetBookingQuery struct {
	BookingID string `validate:"required"`
	ActorIDV  string `validate:"required"`
}

func (q GetBookingQuery) Key() string { return getBookingKey }

func (q GetBookingQuery) ActorID() string { return q.ActorIDV }

type ListGuestBookingsQuery struct {
	GuestID string `validate:"required"`
	Status  string
	Limit   int
	Offset  int
}

func (q ListGuestBookingsQuery) Key() string { return listGuestBookingsKey }

func (q ListGuestBookingsQuery) ActorID() string { return q.GuestID }

type ListHostBookingsQuery struct {
	HostID string `validate:"required"`
	Status string
	Limit  int
	Offset int
}

func (q ListHostBookingsQuery) Key() string { return listHostBookingsKey }

func (q ListHostBookingsQuery) ActorID() string { return q.HostID }

type ListListingBookingsQuery struct {
	HostID    string `validate:"required"`
	ListingID string `validate:"required"`
	Status    string
	Limit     int
	Offset    int
}

func (q ListListingBookingsQuery) Key() string { return listListingKey }

func (q ListListingBookingsQuery) ActorID() string { return q.HostID }

type ListingStatsQuery struct {
	HostID    string `validate:"required"`
	ListingID string `validate:"required"`
	Days      int    `validate:"gte=0,lte=365"`
}

func (q ListingStatsQuery) Key() string { return listingStatsKey }

func (q ListingStatsQuery) ActorID() string { return q.HostID }

type UpcomingBookingsQuery struct {
	HostID string `validate:"required"`
	Limit  int    `validate:"gte=0,lte=100"`
}

func (q UpcomingBookingsQuery) Key() string { return upcomingKey }

func (q UpcomingBookingsQuery) ActorID() string { return q.HostID }

type PreviewPricingQuery struct {
	ListingID    string    `validate:"required"`
	CheckIn      time.Time `validate:"required"`
	CheckOut     time.Time `validate:"required"`
	DiscountCode string    `validate:"max=64"`
}

func (q PreviewPricingQuery) Key() string { return previewPricingKey }

// GetBookingHandler only reveals a booking to its guest or host.
type GetBookingHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetBookingHandler) Handle(ctx context.Context, q GetBookingQuery) (dto.Booking, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Booking{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	booking, err := unit.Bookings().ByID(execCtx, domainbooking.BookingID(strings.TrimSpace(q.BookingID)))
	if err != nil {
		return dto.Booking{}, err
	}
	if !booking.IsParticipant(domainuser.ID(strings.TrimSpace(q.ActorIDV))) {
		return dto.Booking{}, domainbooking.ErrNotParticipant
	}
	return dto.MapBooking(booking), nil
}

type ListGuestBookingsHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListGuestBookingsHandler) Handle(ctx context.Context, q ListGuestBookingsQuery) (dto.BookingCollection, error) {
	filter, err := listFilter(q.Status, q.Limit, q.Offset)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	items, err := unit.Bookings().ListByGuest(execCtx, domainuser.ID(strings.TrimSpace(q.GuestID)), filter)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	return dto.MapBookings(items, filter.Limit, filter.Offset), nil
}

type ListHostBookingsHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListHostBookingsHandler) Handle(ctx context.Context, q ListHostBookingsQuery) (dto.BookingCollection, error) {
	filter, err := listFilter(q.Status, q.Limit, q.Offset)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	items, err := unit.Bookings().ListByHost(execCtx, domainlistings.HostID(strings.TrimSpace(q.HostID)), filter)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	return dto.MapBookings(items, filter.Limit, filter.Offset), nil
}

type ListListingBookingsHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListListingBookingsHandler) Handle(ctx context.Context, q ListListingBookingsQuery) (dto.BookingCollection, error) {
	filter, err := listFilter(q.Status, q.Limit, q.Offset)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	listing, err := ownedListing(execCtx, unit, q.HostID, q.ListingID)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	items, err := unit.Bookings().ListByListing(execCtx, listing.ID, filter)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	return dto.MapBookings(items, filter.Limit, filter.Offset), nil
}

// ListingStatsHandler reports lifetime counts and revenue in the listing's
// currency, plus occupancy over the next Days days starting today.
type ListingStatsHandler struct {
	UoWFactory uow.UoWFactory
	Clock      clock.Clock
}

func (h *ListingStatsHandler) Handle(ctx context.Context, q ListingStatsQuery) (dto.ListingStats, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.ListingStats{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	listing, err := ownedListing(execCtx, unit, q.HostID, q.ListingID)
	if err != nil {
		return dto.ListingStats{}, err
	}
	currency := listing.NightlyRate.Currency
	if currency == "" {
		currency = money.DefaultCurrency
	}
	totals, err := unit.Bookings().ListingTotals(execCtx, listing.ID, currency)
	if err != nil {
		return dto.ListingStats{}, err
	}

	days := q.Days
	if days == 0 {
		days = DefaultStatsWindowDays
	}
	start := daterange.Midnight(clock.OrSystem(h.Clock).Now())
	window := daterange.DateRange{CheckIn: start, CheckOut: start.AddDate(0, 0, days)}
	stays, err := unit.Bookings().Occupying(execCtx, listing.ID, window, "")
	if err != nil {
		return dto.ListingStats{}, err
	}
	nights, rate := domainbooking.Occupancy(stays, window)

	revenue := money.Money{Amount: totals.Revenue, Currency: currency}
	return dto.ListingStats{
		ListingID:           string(listing.ID),
		TotalBookings:       totals.Bookings,
		ConfirmedBookings:   totals.Confirmed,
		CompletedBookings:   totals.Completed,
		TotalRevenue:        dto.MapMoney(revenue),
		AverageBookingValue: dto.MapMoney(revenue.Divide(int64(totals.Completed))),
		OccupancyRate:       rate.StringFixed(2),
		BookedNights:        nights,
		WindowStart:         window.CheckIn,
		WindowEnd:           window.CheckOut,
	}, nil
}

// UpcomingBookingsHandler lists confirmed stays checking in today or later.
type UpcomingBookingsHandler struct {
	UoWFactory uow.UoWFactory
	Clock      clock.Clock
}

func (h *UpcomingBookingsHandler) Handle(ctx context.Context, q UpcomingBookingsQuery) (dto.BookingCollection, error) {
	limit := q.Limit
	if limit == 0 {
		limit = DefaultUpcomingLimit
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	from := daterange.Midnight(clock.OrSystem(h.Clock).Now())
	items, err := unit.Bookings().Upcoming(execCtx, domainlistings.HostID(strings.TrimSpace(q.HostID)), from, limit)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	return dto.MapBookings(items, limit, 0), nil
}

func ownedListing(ctx context.Context, unit uow.UnitOfWork, hostID, listingID string) (*domainlistings.Listing, error) {
	listing, err := unit.Listings().ByID(ctx, domainlistings.ListingID(strings.TrimSpace(listingID)))
	if err != nil {
		return nil, err
	}
	if string(listing.Host) != strings.TrimSpace(hostID) {
		return nil, ErrNotListingHost
	}
	return listing, nil
}

func listFilter(status string, limit, offset int) (domainbooking.ListFilter, error) {
	parsed, err := domainbooking.ParseStatus(status)
	if err != nil {
		return domainbooking.ListFilter{}, err
	}
	limit, offset = handlersupport.ClampPage(limit, offset)
	return domainbooking.ListFilter{Status: parsed, Limit: limit, Offset: offset}, nil
}

// PreviewPricingHandler quotes a stay without checking availability.
type PreviewPricingHandler struct {
	UoWFactory uow.UoWFactory
	Discounts  policies.DiscountPort
}

func (h *PreviewPricingHandler) Handle(ctx context.Context, q PreviewPricingQuery) (dto.PricePreview, error) {
	dr, err := daterange.NewDates(q.CheckIn, q.CheckOut)
	if err != nil {
		return dto.PricePreview{}, err
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.PricePreview{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	listing, err := unit.Listings().ByID(execCtx, domainlistings.ListingID(strings.TrimSpace(q.ListingID)))
	if err != nil {
		return dto.PricePreview{}, err
	}
	price, err := quote(execCtx, h.Discounts, listing, dr, q.DiscountCode)
	if err != nil {
		return dto.PricePreview{}, err
	}
	return dto.PricePreview{
		ListingID: string(listing.ID),
		CheckIn:   dr.CheckIn,
		CheckOut:  dr.CheckOut,
		Price:     dto.MapPrice(price),
	}, nil
}

var _ queries.Handler[GetBookingQuery, dto.Booking] = (*GetBookingHandler)(nil)
var _ queries.Handler[ListGuestBookingsQuery, dto.BookingCollection] = (*ListGuestBookingsHandler)(nil)
var _ queries.Handler[ListHostBookingsQuery, dto.BookingCollection] = (*ListHostBookingsHandler)(nil)
var _ queries.Handler[PreviewPricingQuery, dto.PricePreview] = (*PreviewPricingHandler)(nil)
var _ queries.Handler[ListListingBookingsQuery, dto.BookingCollection] = (*ListListingBookingsHandler)(nil)
var _ queries.Handler[ListingStatsQuery, dto.ListingStats] = (*ListingStatsHandler)(nil)
var _ queries.Handler[UpcomingBookingsQuery, dto.BookingCollection] = (*UpcomingBookingsHandler)(nil)
