package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"staykeeper/internal/domain/pricing"
	"staykeeper/internal/domain/shared/daterange"
	"staykeeper/internal/domain/shared/money"
)

func stayFor(id string, from, to int, state State, total int64) *Booking {
	return &Booking{
		ID:    BookingID(id),
		Range: daterange.DateRange{CheckIn: day(from), CheckOut: day(to)},
		State: state,
		Price: pricingTotal(total),
	}
}

func pricingTotal(amount int64) pricing.Breakdown {
	return pricing.Breakdown{Total: money.Must(amount, "USD")}
}

func TestOccupancyClipsToWindowAndSkipsPending(t *testing.T) {
	window := daterange.DateRange{CheckIn: day(1), CheckOut: day(31)}
	stays := []*Booking{
		stayFor("a", 1, 4, StateConfirmed, 0),
		stayFor("b", 28, 33, StateCheckedIn, 0),
		stayFor("c", 10, 12, StateAwaitingHost, 0),
	}
	nights, rate := Occupancy(stays, window)
	assert.Equal(t, 6, nights)
	assert.Equal(t, "20", rate.String())

	nights, rate = Occupancy(stays, daterange.DateRange{CheckIn: day(1), CheckOut: day(4)})
	assert.Equal(t, 3, nights)
	assert.Equal(t, "100", rate.String())

	nights, rate = Occupancy(nil, window)
	assert.Zero(t, nights)
	assert.True(t, rate.IsZero())
}

func TestListingTotalsCountsRevenueInCurrency(t *testing.T) {
	var totals ListingTotals
	totals.Add(stayFor("a", 1, 3, StateCompleted, 30000), "USD")
	totals.Add(stayFor("b", 4, 6, StateConfirmed, 20000), "USD")
	totals.Add(stayFor("c", 7, 9, StateCancelledConfirmed, 25000), "USD")
	eur := stayFor("d", 10, 12, StateCompleted, 9000)
	eur.Price.Total = money.Must(9000, "EUR")
	totals.Add(eur, "USD")

	assert.Equal(t, ListingTotals{Bookings: 4, Confirmed: 3, Completed: 1, Revenue: 30000}, totals)
}
