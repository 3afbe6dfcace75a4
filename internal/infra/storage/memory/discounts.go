package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"staykeeper/internal/app/policies"
	domainlistings "staykeeper/internal/domain/listings"
	"staykeeper/internal/domain/shared/errs"
	"staykeeper/internal/domain/shared/money"
)

var ErrUnknownDiscount = errs.Validation("discount: unknown or expired code")

// DiscountRule is either a percentage of the base amount or a fixed amount
// in the listing currency. Listings restricts the rule when non-empty.
type DiscountRule struct {
	Percent  decimal.Decimal
	Amount   int64
	Listings []domainlistings.ListingID
}

// DiscountTable is a static code table used for local runs and tests.
type DiscountTable struct {
	mu    sync.RWMutex
	rules map[string]DiscountRule
}

func NewDiscountTable() *DiscountTable {
	return &DiscountTable{rules: make(map[string]DiscountRule)}
}

func (t *DiscountTable) Put(code string, rule DiscountRule) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rules[normalizeCode(code)] = rule
}

func (t *DiscountTable) Discount(_ context.Context, listing *domainlistings.Listing, code string, base money.Money) (money.Money, error) {
	code = normalizeCode(code)
	if code == "" {
		return money.Zero(base.Currency), nil
	}
	t.mu.RLock()
	rule, ok := t.rules[code]
	t.mu.RUnlock()
	if !ok || !rule.appliesTo(listing.ID) {
		return money.Money{}, ErrUnknownDiscount
	}
	if rule.Amount > 0 {
		return money.New(rule.Amount, base.Currency)
	}
	return base.Percent(rule.Percent), nil
}

func (r DiscountRule) appliesTo(id domainlistings.ListingID) bool {
	if len(r.Listings) == 0 {
		return true
	}
	for _, l := range r.Listings {
		if l == id {
			return true
		}
	}
	return false
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

var _ policies.DiscountPort = (*DiscountTable)(nil)
