package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/shopspring/decimal"

	"staykeeper/internal/app/uow"
	"staykeeper/internal/domain/listings"
	"staykeeper/internal/domain/shared/money"
	"staykeeper/internal/domain/user"
	"staykeeper/internal/infra/storage/memory"
)

type listingFixture struct {
	ID                 string `json:"id"`
	Host               string `json:"host"`
	Title              string `json:"title"`
	Currency           string `json:"currency"`
	NightlyRateCents   int64  `json:"nightly_rate_cents"`
	CleaningFeeCents   int64  `json:"cleaning_fee_cents"`
	MaxGuests          int    `json:"max_guests"`
	CancellationPolicy string `json:"cancellation_policy"`
	Published          bool   `json:"published"`
}

type userFixture struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Type  string `json:"type"`
}

type discountFixture struct {
	Code     string   `json:"code"`
	Percent  string   `json:"percent"`
	Amount   int64    `json:"amount_cents"`
	Listings []string `json:"listings"`
}

// readFixtures decodes a JSON array from path. A missing or empty file is
// not an error.
func readFixtures[T any](path string, logger *slog.Logger) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("fixtures file not found, skipping", "path", path)
			return nil, nil
		}
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	if len(data) == 0 {
		logger.Warn("fixtures file empty", "path", path)
		return nil, nil
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	return out, nil
}

func loadListingFixtures(ctx context.Context, factory uow.UoWFactory, path string, logger *slog.Logger) error {
	fixtures, err := readFixtures[listingFixture](path, logger)
	if err != nil || len(fixtures) == 0 {
		return err
	}
	for _, fx := range fixtures {
		listing, err := fx.toListing()
		if err != nil {
			logger.Error("fixture invalid", "listing_id", fx.ID, "error", err)
			continue
		}
		err = uow.Run(ctx, factory, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
			return unit.Listings().Save(ctx, listing)
		})
		if err != nil {
			logger.Error("cannot store fixture listing", "listing_id", fx.ID, "error", err)
			continue
		}
		logger.Info("listing fixture imported", "listing_id", listing.ID)
	}
	return nil
}

func (fx listingFixture) toListing() (*listings.Listing, error) {
	currency := fx.Currency
	if currency == "" {
		currency = money.DefaultCurrency
	}
	rate, err := money.New(fx.NightlyRateCents, currency)
	if err != nil {
		return nil, err
	}
	fee, err := money.New(fx.CleaningFeeCents, currency)
	if err != nil {
		return nil, err
	}
	policy, err := listings.ParsePolicy(fx.CancellationPolicy)
	if err != nil {
		return nil, err
	}
	l := &listings.Listing{
		ID:                 listings.ListingID(fx.ID),
		Host:               listings.HostID(fx.Host),
		Title:              fx.Title,
		NightlyRate:        rate,
		CleaningFee:        fee,
		MaxGuests:          fx.MaxGuests,
		CancellationPolicy: policy,
		Published:          fx.Published,
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return l, nil
}

func loadUserFixtures(ctx context.Context, factory uow.UoWFactory, path string, logger *slog.Logger) error {
	fixtures, err := readFixtures[userFixture](path, logger)
	if err != nil || len(fixtures) == 0 {
		return err
	}
	for _, fx := range fixtures {
		kind, err := user.ParseType(fx.Type)
		if err != nil {
			logger.Error("fixture invalid", "user_id", fx.ID, "error", err)
			continue
		}
		u := &user.User{ID: user.ID(fx.ID), Name: fx.Name, Email: fx.Email, Type: kind}
		err = uow.Run(ctx, factory, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
			return unit.Users().Save(ctx, u)
		})
		if err != nil {
			logger.Error("cannot store fixture user", "user_id", fx.ID, "error", err)
			continue
		}
		logger.Info("user fixture imported", "user_id", u.ID)
	}
	return nil
}

func loadDiscountFixtures(path string, table *memory.DiscountTable, logger *slog.Logger) error {
	fixtures, err := readFixtures[discountFixture](path, logger)
	if err != nil {
		return err
	}
	for _, fx := range fixtures {
		rule := memory.DiscountRule{Amount: fx.Amount}
		if fx.Percent != "" {
			pct, err := decimal.NewFromString(fx.Percent)
			if err != nil {
				logger.Error("fixture invalid", "discount_code", fx.Code, "error", err)
				continue
			}
			rule.Percent = pct
		}
		for _, id := range fx.Listings {
			rule.Listings = append(rule.Listings, listings.ListingID(id))
		}
		table.Put(fx.Code, rule)
	}
	logger.Info("discount fixtures imported", "count", len(fixtures))
	return nil
}
