package booking

import (
	"github.com/shopspring/decimal"

	"staykeeper/internal/domain/shared/daterange"
)

var hundred = decimal.NewFromInt(100)

// Occupancy counts the nights confirmed stays hold inside window and the
// percentage of the window they cover, capped at 100.
func Occupancy(stays []*Booking, window daterange.DateRange) (int, decimal.Decimal) {
	total := window.Nights()
	if total <= 0 {
		return 0, decimal.Zero
	}
	nights := 0
	for _, b := range stays {
		if b.State.Status() != StatusConfirmed {
			continue
		}
		if clipped, ok := b.Range.Clip(window); ok {
			nights += clipped.Nights()
		}
	}
	nights = min(nights, total)
	rate := decimal.NewFromInt(int64(nights)).Mul(hundred).Div(decimal.NewFromInt(int64(total))).Round(2)
	return nights, rate
}
