package policies

import (
	"context"

	domainlistings "staykeeper/internal/domain/listings"
	"staykeeper/internal/domain/shared/money"
)

// DiscountPort resolves promotional codes into an absolute discount for a
// listing. An unknown code is a validation error; an empty code is no discount.
type DiscountPort interface {
	Discount(ctx context.Context, listing *domainlistings.Listing, code string, base money.Money) (money.Money, error)
}
