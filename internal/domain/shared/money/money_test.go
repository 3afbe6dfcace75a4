package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staykeeper/internal/domain/shared/errs"
)

func TestPercentRoundsToMinorUnit(t *testing.T) {
	tests := []struct {
		name   string
		amount int64
		pct    string
		want   int64
	}{
		{name: "service fee", amount: 30000, pct: "3", want: 900},
		{name: "half up", amount: 150, pct: "3", want: 5},
		{name: "half refund", amount: 20001, pct: "50", want: 10001},
		{name: "fractional rate", amount: 10000, pct: "12.5", want: 1250},
		{name: "zero", amount: 0, pct: "15", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Must(tt.amount, "usd").Percent(decimal.RequireFromString(tt.pct))
			assert.Equal(t, tt.want, got.Amount)
			assert.Equal(t, "USD", got.Currency)
		})
	}
}

func TestArithmeticRejectsCurrencyMismatch(t *testing.T) {
	_, err := Must(100, "USD").Add(Must(100, "EUR"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
	assert.ErrorIs(t, err, errs.ErrValidation)

	_, err = New(1, "US")
	assert.ErrorIs(t, err, ErrInvalidCurrency)
}

func TestFloorZeroAndDecimal(t *testing.T) {
	assert.Equal(t, int64(0), Must(-5, "USD").FloorZero().Amount)
	assert.Equal(t, int64(7), Must(7, "USD").FloorZero().Amount)
	assert.Equal(t, "329.00 USD", Must(32900, "USD").String())

	m, err := FromDecimal(decimal.RequireFromString("12.345"), "usd")
	require.NoError(t, err)
	assert.Equal(t, int64(1235), m.Amount)
}

func TestDivideRoundsHalfAwayFromZero(t *testing.T) {
	assert.Equal(t, int64(3333), Must(10000, "USD").Divide(3).Amount)
	assert.Equal(t, int64(5), Must(9, "USD").Divide(2).Amount)
	assert.Equal(t, Zero("USD"), Must(100, "USD").Divide(0))
}
