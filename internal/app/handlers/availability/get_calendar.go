package availability

import (
	"context"
	"strings"
	"time"

	"staykeeper/internal/app/dto"
	handlersupport "staykeeper/internal/app/handlers/support"
	"staykeeper/internal/app/queries"
	"staykeeper/internal/app/uow"
	domainavailability "staykeeper/internal/domain/availability"
	domainbooking "staykeeper/internal/domain/booking"
	domainlistings "staykeeper/internal/domain/listings"
	"staykeeper/internal/domain/shared/daterange"
)

const (
	getCalendarKey     = "availability.calendar"
	getAvailabilityKey = "availability.check"
)

type GetCalendarQuery struct {
	ListingID string    `validate:"required"`
	From      time.Time `validate:"required"`
	To        time.Time `validate:"required"`
}

func (q GetCalendarQuery) Key() string { return getCalendarKey }

type GetAvailabilityQuery struct {
	ListingID string    `validate:"required"`
	CheckIn   time.Time `validate:"required"`
	CheckOut  time.Time `validate:"required"`
	// ExcludeBookingID ignores one booking, as a host does when re-checking
	// the request in front of them.
	ExcludeBookingID string
}

func (q GetAvailabilityQuery) Key() string { return getAvailabilityKey }

type GetCalendarHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetCalendarHandler) Handle(ctx context.Context, q GetCalendarQuery) (dto.Calendar, error) {
	window, err := daterange.NewDates(q.From, q.To)
	if err != nil {
		return dto.Calendar{}, err
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Calendar{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	listing, err := unit.Listings().ByID(execCtx, domainlistings.ListingID(strings.TrimSpace(q.ListingID)))
	if err != nil {
		return dto.Calendar{}, err
	}
	calendar, err := domainavailability.Oracle{Bookings: unit.Bookings()}.Calendar(execCtx, listing.ID, window)
	if err != nil {
		return dto.Calendar{}, err
	}
	return dto.MapCalendar(calendar), nil
}

// GetAvailabilityHandler answers a point-in-time question; the answer is not
// a reservation.
type GetAvailabilityHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetAvailabilityHandler) Handle(ctx context.Context, q GetAvailabilityQuery) (dto.Availability, error) {
	dr, err := daterange.NewDates(q.CheckIn, q.CheckOut)
	if err != nil {
		return dto.Availability{}, err
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Availability{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	listing, err := unit.Listings().ByID(execCtx, domainlistings.ListingID(strings.TrimSpace(q.ListingID)))
	if err != nil {
		return dto.Availability{}, err
	}
	ok, err := domainavailability.Oracle{Bookings: unit.Bookings()}.
		IsAvailable(execCtx, listing.ID, dr, domainbooking.BookingID(strings.TrimSpace(q.ExcludeBookingID)))
	if err != nil {
		return dto.Availability{}, err
	}
	return dto.Availability{
		ListingID: string(listing.ID),
		CheckIn:   dr.CheckIn,
		CheckOut:  dr.CheckOut,
		Nights:    dr.Nights(),
		Available: ok,
	}, nil
}

var _ queries.Handler[GetCalendarQuery, dto.Calendar] = (*GetCalendarHandler)(nil)
var _ queries.Handler[GetAvailabilityQuery, dto.Availability] = (*GetAvailabilityHandler)(nil)
