package pricing

import (
	"github.com/shopspring/decimal"

	"staykeeper/internal/domain/shared/errs"
	"staykeeper/internal/domain/shared/money"
)

var (
	ErrNightlyRate       = errs.Validation("pricing: nightly rate must be positive")
	ErrNights            = errs.Validation("pricing: at least one night is required")
	ErrNegativeComponent = errs.Validation("pricing: cleaning fee and discount cannot be negative")
	ErrCurrencyUnset     = errs.Validation("pricing: currency must be defined")
)

// ServiceFeePercent is charged on the base amount only.
var ServiceFeePercent = decimal.NewFromInt(3)

type Input struct {
	NightlyRate money.Money
	CleaningFee money.Money
	Nights      int
	Discount    money.Money
}

// Breakdown is the priced stay, frozen onto a booking when it is created.
type Breakdown struct {
	Nights   int
	Nightly  money.Money
	Base     money.Money
	Cleaning money.Money
	Service  money.Money
	Discount money.Money
	Total    money.Money
}

// Calculate prices a stay. The total is floored at zero when the discount
// exceeds the other components.
func Calculate(in Input) (Breakdown, error) {
	currency := in.NightlyRate.Currency
	if currency == "" {
		return Breakdown{}, ErrCurrencyUnset
	}
	if in.NightlyRate.Amount <= 0 {
		return Breakdown{}, ErrNightlyRate
	}
	if in.Nights < 1 {
		return Breakdown{}, ErrNights
	}
	cleaning := normalize(in.CleaningFee, currency)
	discount := normalize(in.Discount, currency)
	if cleaning.IsNegative() || discount.IsNegative() {
		return Breakdown{}, ErrNegativeComponent
	}

	base := in.NightlyRate.Multiply(int64(in.Nights))
	service := base.Percent(ServiceFeePercent)

	total, err := base.Add(cleaning)
	if err != nil {
		return Breakdown{}, err
	}
	if total, err = total.Add(service); err != nil {
		return Breakdown{}, err
	}
	if total, err = total.Sub(discount); err != nil {
		return Breakdown{}, err
	}

	return Breakdown{
		Nights:   in.Nights,
		Nightly:  in.NightlyRate,
		Base:     base,
		Cleaning: cleaning,
		Service:  service,
		Discount: discount,
		Total:    total.FloorZero(),
	}, nil
}

func normalize(m money.Money, currency string) money.Money {
	if m.Currency == "" {
		m.Currency = currency
	}
	return m
}
