package money

import (
	"strings"

	"github.com/shopspring/decimal"

	"staykeeper/internal/domain/shared/errs"
)

var (
	ErrInvalidCurrency  = errs.Validation("money: invalid currency code")
	ErrCurrencyMismatch = errs.Validation("money: currency mismatch")
)

// DefaultCurrency is used when a listing does not declare one.
const DefaultCurrency = "USD"

var hundred = decimal.NewFromInt(100)

// Money keeps amounts in integer minor units (cents) to avoid floating point issues.
type Money struct {
	Amount   int64
	Currency string
}

// New constructs a Money value validating minimal invariants.
func New(amount int64, currency string) (Money, error) {
	if len(currency) != 3 {
		return Money{}, ErrInvalidCurrency
	}
	currency = strings.ToUpper(currency)
	return Money{Amount: amount, Currency: currency}, nil
}

// Must creates Money and panics if validation fails; useful in tests and fixtures.
func Must(amount int64, currency string) Money {
	m, err := New(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns an empty amount in the given currency.
func Zero(currency string) Money {
	return Money{Currency: strings.ToUpper(currency)}
}

// Add adds two money values ensuring currencies match.
func (m Money) Add(other Money) (Money, error) {
	if err := m.ensureSameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}, nil
}

// Sub subtracts other from the receiver.
func (m Money) Sub(other Money) (Money, error) {
	if err := m.ensureSameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}, nil
}

// Multiply multiplies the amount by the provided factor.
func (m Money) Multiply(times int64) Money {
	return Money{Amount: m.Amount * times, Currency: m.Currency}
}

// Divide splits the amount into n equal shares rounded half away from zero.
// A non-positive n yields zero.
func (m Money) Divide(n int64) Money {
	if n <= 0 {
		return Money{Currency: m.Currency}
	}
	share := decimal.NewFromInt(m.Amount).Div(decimal.NewFromInt(n)).Round(0)
	return Money{Amount: share.IntPart(), Currency: m.Currency}
}

// Percent returns pct percent of the amount, rounded half away from zero to the
// minor unit.
func (m Money) Percent(pct decimal.Decimal) Money {
	share := decimal.NewFromInt(m.Amount).Mul(pct).Div(hundred).Round(0)
	return Money{Amount: share.IntPart(), Currency: m.Currency}
}

// FloorZero clamps negative amounts to zero.
func (m Money) FloorZero() Money {
	if m.Amount < 0 {
		return Money{Currency: m.Currency}
	}
	return m
}

// IsZero returns true if the amount equals zero.
func (m Money) IsZero() bool {
	return m.Amount == 0
}

func (m Money) IsNegative() bool {
	return m.Amount < 0
}

// Decimal renders the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Amount, -2)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(2) + " " + m.Currency
}

// FromDecimal converts a major-unit amount such as 129.99 into Money.
func FromDecimal(amount decimal.Decimal, currency string) (Money, error) {
	return New(amount.Shift(2).Round(0).IntPart(), currency)
}

func (m Money) ensureSameCurrency(other Money) error {
	if m.Currency == "" || other.Currency == "" {
		return ErrInvalidCurrency
	}
	if m.Currency != other.Currency {
		return ErrCurrencyMismatch
	}
	return nil
}
