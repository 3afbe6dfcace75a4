package availability

import (
	"context"

	"staykeeper/internal/domain/booking"
	"staykeeper/internal/domain/listings"
	"staykeeper/internal/domain/shared/daterange"
	"staykeeper/internal/domain/shared/errs"
)

var ErrCalendarWindow = errs.Validation("availability: calendar window must not exceed 366 days")

const maxCalendarNights = 366

// Oracle answers availability questions against the bookings visible to the
// current unit of work.
type Oracle struct {
	Bookings booking.Repository
}

// IsAvailable reports whether no pending or confirmed booking other than
// exclude overlaps dr.
func (o Oracle) IsAvailable(ctx context.Context, id listings.ListingID, dr daterange.DateRange, exclude booking.BookingID) (bool, error) {
	if err := dr.Validate(); err != nil {
		return false, err
	}
	taken, err := o.Bookings.Occupying(ctx, id, dr, exclude)
	if err != nil {
		return false, err
	}
	for _, b := range taken {
		if b.ID != exclude && b.Occupies() && b.Range.Overlaps(dr) {
			return false, nil
		}
	}
	return true, nil
}

// Reserve locks the listing, checks dr and runs write while the lock is held.
// It must be called inside a unit of work so the lock and the write commit
// together; write is skipped when the dates are taken.
func (o Oracle) Reserve(ctx context.Context, id listings.ListingID, dr daterange.DateRange, exclude booking.BookingID, write func(context.Context) error) error {
	if err := o.Bookings.LockListing(ctx, id); err != nil {
		return err
	}
	ok, err := o.IsAvailable(ctx, id, dr, exclude)
	if err != nil {
		return err
	}
	if !ok {
		return booking.ErrUnavailable
	}
	return write(ctx)
}

// Calendar returns the occupied blocks of a listing inside window.
func (o Oracle) Calendar(ctx context.Context, id listings.ListingID, window daterange.DateRange) (Calendar, error) {
	if err := window.Validate(); err != nil {
		return Calendar{}, err
	}
	if window.Nights() > maxCalendarNights {
		return Calendar{}, ErrCalendarWindow
	}
	taken, err := o.Bookings.Occupying(ctx, id, window, "")
	if err != nil {
		return Calendar{}, err
	}
	return NewCalendar(id, window, taken), nil
}
