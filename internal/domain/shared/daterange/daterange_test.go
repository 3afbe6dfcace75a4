package daterange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestOverlapsIsHalfOpen(t *testing.T) {
	a := DateRange{CheckIn: date(2026, 7, 1), CheckOut: date(2026, 7, 5)}

	assert.True(t, a.Overlaps(DateRange{CheckIn: date(2026, 7, 4), CheckOut: date(2026, 7, 8)}))
	assert.True(t, a.Overlaps(DateRange{CheckIn: date(2026, 6, 1), CheckOut: date(2026, 8, 1)}))
	assert.False(t, a.Overlaps(DateRange{CheckIn: date(2026, 7, 5), CheckOut: date(2026, 7, 8)}), "back-to-back stays share the turnover day")
	assert.False(t, a.Overlaps(DateRange{CheckIn: date(2026, 6, 28), CheckOut: date(2026, 7, 1)}))
}

func TestNightsRoundsPartialDaysUp(t *testing.T) {
	dr, err := New(date(2026, 7, 1), date(2026, 7, 4))
	require.NoError(t, err)
	assert.Equal(t, 3, dr.Nights())

	dr, err = New(date(2026, 7, 1), date(2026, 7, 3).Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, dr.Nights())
}

func TestNewRejectsEmptyAndInvertedRanges(t *testing.T) {
	_, err := New(date(2026, 7, 4), date(2026, 7, 4))
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = New(date(2026, 7, 4), date(2026, 7, 1))
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = NewDates(date(2026, 7, 4).Add(3*time.Hour), date(2026, 7, 4).Add(20*time.Hour))
	assert.ErrorIs(t, err, ErrInvalidRange, "same calendar date after truncation")
}

func TestDaysUntil(t *testing.T) {
	checkIn := date(2026, 7, 10)

	assert.Equal(t, 6, DaysUntil(checkIn, date(2026, 7, 4)))
	assert.Equal(t, 1, DaysUntil(checkIn, date(2026, 7, 9).Add(18*time.Hour)))
	assert.Equal(t, 0, DaysUntil(checkIn, checkIn))
	assert.Equal(t, 0, DaysUntil(checkIn, checkIn.Add(5*time.Hour)))
	assert.Equal(t, -1, DaysUntil(checkIn, checkIn.Add(30*time.Hour)))
}

func TestClipAndMerge(t *testing.T) {
	stay := DateRange{CheckIn: date(2026, 7, 1), CheckOut: date(2026, 7, 10)}
	window := DateRange{CheckIn: date(2026, 7, 5), CheckOut: date(2026, 7, 20)}

	clipped, ok := stay.Clip(window)
	require.True(t, ok)
	assert.Equal(t, date(2026, 7, 5), clipped.CheckIn)
	assert.Equal(t, date(2026, 7, 10), clipped.CheckOut)

	merged, ok := stay.Merge(DateRange{CheckIn: date(2026, 7, 10), CheckOut: date(2026, 7, 12)})
	require.True(t, ok)
	assert.Equal(t, date(2026, 7, 12), merged.CheckOut)
}
