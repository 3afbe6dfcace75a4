package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staykeeper/internal/domain/shared/errs"
	"staykeeper/internal/domain/shared/money"
)

func usd(major int64) money.Money {
	return money.Must(major*100, "USD")
}

func TestCalculateThreeNights(t *testing.T) {
	got, err := Calculate(Input{NightlyRate: usd(100), CleaningFee: usd(20), Nights: 3})
	require.NoError(t, err)

	assert.Equal(t, usd(300), got.Base)
	assert.Equal(t, usd(20), got.Cleaning)
	assert.Equal(t, usd(9), got.Service)
	assert.Equal(t, usd(0), got.Discount)
	assert.Equal(t, usd(329), got.Total)
}

func TestCalculateFloorsTotalAtZero(t *testing.T) {
	got, err := Calculate(Input{NightlyRate: usd(100), Nights: 1, Discount: usd(1000)})
	require.NoError(t, err)

	assert.Equal(t, usd(100), got.Base)
	assert.Equal(t, usd(3), got.Service)
	assert.Equal(t, usd(1000), got.Discount)
	assert.Equal(t, int64(0), got.Total.Amount)
}

func TestCalculateServiceFeeIgnoresCleaning(t *testing.T) {
	got, err := Calculate(Input{NightlyRate: usd(50), CleaningFee: usd(500), Nights: 2})
	require.NoError(t, err)
	assert.Equal(t, usd(3), got.Service)
}

func TestCalculateRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want error
	}{
		{name: "zero rate", in: Input{NightlyRate: usd(0), Nights: 1}, want: ErrNightlyRate},
		{name: "no nights", in: Input{NightlyRate: usd(10), Nights: 0}, want: ErrNights},
		{name: "negative fee", in: Input{NightlyRate: usd(10), Nights: 1, CleaningFee: usd(-1)}, want: ErrNegativeComponent},
		{name: "currency", in: Input{NightlyRate: money.Money{Amount: 10}, Nights: 1}, want: ErrCurrencyUnset},
		{name: "mixed currencies", in: Input{NightlyRate: usd(10), Nights: 1, CleaningFee: money.Must(5, "EUR")}, want: money.ErrCurrencyMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Calculate(tt.in)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, errs.ErrValidation)
		})
	}
}
