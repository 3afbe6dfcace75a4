package daterange

import (
	"math"
	"time"

	"staykeeper/internal/domain/shared/errs"
)

var (
	ErrInvalidRange = errs.Validation("daterange: check-out must be after check-in")
)

const day = 24 * time.Hour

// DateRange represents a half-open interval [checkIn, checkOut).
type DateRange struct {
	CheckIn  time.Time
	CheckOut time.Time
}

// New builds a validated range from raw instants, keeping them as given (UTC).
func New(checkIn, checkOut time.Time) (DateRange, error) {
	dr := DateRange{CheckIn: checkIn.UTC(), CheckOut: checkOut.UTC()}
	if err := dr.Validate(); err != nil {
		return DateRange{}, err
	}
	return dr, nil
}

// NewDates builds a range of calendar dates, truncating both ends to 00:00 UTC.
func NewDates(checkIn, checkOut time.Time) (DateRange, error) {
	return New(Midnight(checkIn), Midnight(checkOut))
}

func (dr DateRange) Validate() error {
	if dr.CheckOut.IsZero() || dr.CheckIn.IsZero() {
		return ErrInvalidRange
	}
	if !dr.CheckOut.After(dr.CheckIn) {
		return ErrInvalidRange
	}
	return nil
}

// Nights counts started 24h periods, so a partial day is billed as a night.
func (dr DateRange) Nights() int {
	return int(math.Ceil(float64(dr.CheckOut.Sub(dr.CheckIn)) / float64(day)))
}

func (dr DateRange) Overlaps(other DateRange) bool {
	return dr.CheckIn.Before(other.CheckOut) && other.CheckIn.Before(dr.CheckOut)
}

func (dr DateRange) Contains(other DateRange) bool {
	return !other.CheckIn.Before(dr.CheckIn) && !other.CheckOut.After(dr.CheckOut)
}

func (dr DateRange) ContainsDate(t time.Time) bool {
	t = t.UTC()
	return !t.Before(dr.CheckIn) && t.Before(dr.CheckOut)
}

func (dr DateRange) Adjacent(other DateRange) bool {
	return dr.CheckOut.Equal(other.CheckIn) || dr.CheckIn.Equal(other.CheckOut)
}

func (dr DateRange) Merge(other DateRange) (DateRange, bool) {
	if !(dr.Overlaps(other) || dr.Adjacent(other)) {
		return DateRange{}, false
	}
	start := dr.CheckIn
	if other.CheckIn.Before(start) {
		start = other.CheckIn
	}
	end := dr.CheckOut
	if other.CheckOut.After(end) {
		end = other.CheckOut
	}
	return DateRange{CheckIn: start, CheckOut: end}, true
}

// Clip returns the part of dr that falls inside window.
func (dr DateRange) Clip(window DateRange) (DateRange, bool) {
	if !dr.Overlaps(window) {
		return DateRange{}, false
	}
	out := dr
	if out.CheckIn.Before(window.CheckIn) {
		out.CheckIn = window.CheckIn
	}
	if out.CheckOut.After(window.CheckOut) {
		out.CheckOut = window.CheckOut
	}
	return out, true
}

// Midnight truncates t to the start of its UTC calendar day.
func Midnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysUntil is ceil((t - now) / 24h). It is positive while t lies in the
// future, zero on the instant itself, and negative afterwards.
func DaysUntil(t, now time.Time) int {
	return int(math.Ceil(float64(t.Sub(now)) / float64(day)))
}
