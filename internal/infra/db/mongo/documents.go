package mongo

import (
	"time"

	"staykeeper/internal/domain/pricing"
	"staykeeper/internal/domain/shared/money"
)

type moneyDocument struct {
	Amount   int64  `bson:"amount"`
	Currency string `bson:"currency"`
}

func newMoneyDocument(m money.Money) moneyDocument {
	return moneyDocument{Amount: m.Amount, Currency: m.Currency}
}

func (d moneyDocument) toMoney() money.Money {
	return money.Money{Amount: d.Amount, Currency: d.Currency}
}

type priceDocument struct {
	Nights   int           `bson:"nights"`
	Nightly  moneyDocument `bson:"nightly"`
	Base     moneyDocument `bson:"base"`
	Cleaning moneyDocument `bson:"cleaning"`
	Service  moneyDocument `bson:"service"`
	Discount moneyDocument `bson:"discount"`
	Total    moneyDocument `bson:"total"`
}

func newPriceDocument(b pricing.Breakdown) priceDocument {
	return priceDocument{
		Nights:   b.Nights,
		Nightly:  newMoneyDocument(b.Nightly),
		Base:     newMoneyDocument(b.Base),
		Cleaning: newMoneyDocument(b.Cleaning),
		Service:  newMoneyDocument(b.Service),
		Discount: newMoneyDocument(b.Discount),
		Total:    newMoneyDocument(b.Total),
	}
}

func (d priceDocument) toBreakdown() pricing.Breakdown {
	return pricing.Breakdown{
		Nights:   d.Nights,
		Nightly:  d.Nightly.toMoney(),
		Base:     d.Base.toMoney(),
		Cleaning: d.Cleaning.toMoney(),
		Service:  d.Service.toMoney(),
		Discount: d.Discount.toMoney(),
		Total:    d.Total.toMoney(),
	}
}

type rangeDocument struct {
	CheckIn  int64 `bson:"check_in"`
	CheckOut int64 `bson:"check_out"`
}

func timestampToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func optionalTimestamp(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

func optionalTime(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := timestampToTime(*ms)
	return &t
}
