package booking

import (
	"github.com/shopspring/decimal"

	"staykeeper/internal/domain/listings"
	"staykeeper/internal/domain/shared/money"
)

type refundTier struct {
	minDays int
	percent int64
}

// Tiers are ordered from the most generous window down.
var refundSchedules = map[listings.CancellationPolicy][]refundTier{
	listings.PolicyFlexible:    {{minDays: 1, percent: 100}},
	listings.PolicyModerate:    {{minDays: 5, percent: 100}, {minDays: 1, percent: 50}},
	listings.PolicyStrict:      {{minDays: 7, percent: 100}, {minDays: 1, percent: 50}},
	listings.PolicySuperStrict: {{minDays: 30, percent: 50}},
}

// RefundPercent returns the share of the total refunded when cancelling
// daysUntilCheckIn days ahead. Unknown policies refund nothing.
func RefundPercent(policy listings.CancellationPolicy, daysUntilCheckIn int) int64 {
	for _, tier := range refundSchedules[policy] {
		if daysUntilCheckIn >= tier.minDays {
			return clampPercent(tier.percent)
		}
	}
	return 0
}

// RefundFor evaluates the policy against the booking total.
func RefundFor(policy listings.CancellationPolicy, daysUntilCheckIn int, total money.Money) money.Money {
	return percentOf(total, RefundPercent(policy, daysUntilCheckIn))
}

func percentOf(total money.Money, percent int64) money.Money {
	if percent <= 0 {
		return money.Money{Amount: 0, Currency: total.Currency}
	}
	return total.Percent(decimal.NewFromInt(percent))
}

func clampPercent(p int64) int64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
