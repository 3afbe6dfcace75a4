package booking

import (
	"context"
	"strings"

	"staykeeper/internal/app/policies"
	domainlistings "staykeeper/internal/domain/listings"
	domainpricing "staykeeper/internal/domain/pricing"
	"staykeeper/internal/domain/shared/daterange"
	"staykeeper/internal/domain/shared/errs"
	"staykeeper/internal/domain/shared/money"
)

var ErrDiscountsDisabled = errs.Validation("booking: discount codes are not accepted")

// quote prices dr for listing, resolving code through discounts when given.
func quote(ctx context.Context, discounts policies.DiscountPort, listing *domainlistings.Listing, dr daterange.DateRange, code string) (domainpricing.Breakdown, error) {
	discount := money.Zero(listing.Currency())
	if strings.TrimSpace(code) != "" {
		if discounts == nil {
			return domainpricing.Breakdown{}, ErrDiscountsDisabled
		}
		var err error
		discount, err = discounts.Discount(ctx, listing, code, listing.NightlyRate.Multiply(int64(dr.Nights())))
		if err != nil {
			return domainpricing.Breakdown{}, err
		}
	}
	return domainpricing.Calculate(domainpricing.Input{
		NightlyRate: listing.NightlyRate,
		CleaningFee: listing.CleaningFee,
		Nights:      dr.Nights(),
		Discount:    discount,
	})
}
