package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"staykeeper/internal/domain/listings"
	"staykeeper/internal/domain/shared/money"
)

func TestRefundForModeratePolicy(t *testing.T) {
	total := money.Must(20000, "USD")

	assert.Equal(t, int64(20000), RefundFor(listings.PolicyModerate, 6, total).Amount)
	assert.Equal(t, int64(10000), RefundFor(listings.PolicyModerate, 3, total).Amount)
	assert.Equal(t, int64(0), RefundFor(listings.PolicyModerate, 0, total).Amount)
}

func TestRefundPercentSchedule(t *testing.T) {
	tests := []struct {
		policy listings.CancellationPolicy
		days   int
		want   int64
	}{
		{listings.PolicyFlexible, 1, 100},
		{listings.PolicyFlexible, 0, 0},
		{listings.PolicyModerate, 5, 100},
		{listings.PolicyModerate, 4, 50},
		{listings.PolicyModerate, 1, 50},
		{listings.PolicyStrict, 7, 100},
		{listings.PolicyStrict, 6, 50},
		{listings.PolicyStrict, 1, 50},
		{listings.PolicyStrict, 0, 0},
		{listings.PolicySuperStrict, 30, 50},
		{listings.PolicySuperStrict, 29, 0},
		{listings.PolicySuperStrict, 365, 50},
		{listings.PolicyFlexible, -3, 0},
		{listings.CancellationPolicy("lenient"), 100, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			assert.Equal(t, tt.want, RefundPercent(tt.policy, tt.days), "days=%d", tt.days)
		})
	}
}
