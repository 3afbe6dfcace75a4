package booking

import (
	"time"

	"staykeeper/internal/domain/shared/daterange"
	"staykeeper/internal/domain/shared/errs"
)

var (
	ErrCheckInInPast   = errs.Validation("booking: check-in date must be in the future")
	ErrCheckInTooEarly = errs.Validation("booking: cannot check in before the check-in date")
	ErrStayTooLong     = errs.Validation("booking: stay exceeds the maximum length")
)

const MaxNightsPerBooking = 365

// ValidateDateRange checks a requested stay. Dates are UTC calendar days, so
// the earliest bookable check-in is tomorrow.
func ValidateDateRange(dr daterange.DateRange, now time.Time) error {
	if err := dr.Validate(); err != nil {
		return err
	}
	if !dr.CheckIn.After(now.UTC()) {
		return ErrCheckInInPast
	}
	if dr.Nights() > MaxNightsPerBooking {
		return ErrStayTooLong
	}
	return nil
}
