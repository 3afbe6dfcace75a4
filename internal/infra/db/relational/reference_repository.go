package relational

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"staykeeper/internal/domain/listings"
	"staykeeper/internal/domain/shared/money"
	"staykeeper/internal/domain/user"
)

type ListingRepository struct {
	db *gorm.DB
}

func NewListingRepository(db *gorm.DB) *ListingRepository {
	return &ListingRepository{db: db}
}

func (r *ListingRepository) ByID(ctx context.Context, id listings.ListingID) (*listings.Listing, error) {
	var row listingRow
	if err := r.db.WithContext(ctx).Where("id = ?", string(id)).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, listings.ErrListingNotFound
		}
		return nil, translate(err)
	}
	return row.toListing(), nil
}

func (r *ListingRepository) Save(ctx context.Context, l *listings.Listing) error {
	if err := l.Validate(); err != nil {
		return err
	}
	row := listingRow{
		ID:          string(l.ID),
		HostID:      string(l.Host),
		Title:       l.Title,
		NightlyRate: l.NightlyRate.Amount,
		CleaningFee: l.CleaningFee.Amount,
		Currency:    l.Currency(),
		MaxGuests:   l.MaxGuests,
		Policy:      string(l.CancellationPolicy),
		Published:   l.Published,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
	return translate(err)
}

type listingRow struct {
	ID          string `gorm:"column:id;primaryKey"`
	HostID      string `gorm:"column:host_id"`
	Title       string `gorm:"column:title"`
	NightlyRate int64  `gorm:"column:nightly_rate"`
	CleaningFee int64  `gorm:"column:cleaning_fee"`
	Currency    string `gorm:"column:currency"`
	MaxGuests   int    `gorm:"column:max_guests"`
	Policy      string `gorm:"column:cancellation_policy"`
	Published   bool   `gorm:"column:published"`
}

func (listingRow) TableName() string { return "listings" }

func (r listingRow) toListing() *listings.Listing {
	return &listings.Listing{
		ID:                 listings.ListingID(r.ID),
		Host:               listings.HostID(r.HostID),
		Title:              r.Title,
		NightlyRate:        money.Money{Amount: r.NightlyRate, Currency: r.Currency},
		CleaningFee:        money.Money{Amount: r.CleaningFee, Currency: r.Currency},
		MaxGuests:          r.MaxGuests,
		CancellationPolicy: listings.CancellationPolicy(r.Policy),
		Published:          r.Published,
	}
}

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) UserType(ctx context.Context, id user.ID) (user.Type, error) {
	var row userRow
	if err := r.db.WithContext(ctx).Select("id", "type").Where("id = ?", string(id)).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", user.ErrNotFound
		}
		return "", translate(err)
	}
	return user.ParseType(row.Type)
}

func (r *UserRepository) Save(ctx context.Context, u *user.User) error {
	t, err := user.ParseType(string(u.Type))
	if err != nil {
		return err
	}
	row := userRow{ID: string(u.ID), Name: u.Name, Email: u.Email, Type: string(t)}
	return translate(r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error)
}

type userRow struct {
	ID    string `gorm:"column:id;primaryKey"`
	Name  string `gorm:"column:name"`
	Email string `gorm:"column:email"`
	Type  string `gorm:"column:type"`
}

func (userRow) TableName() string { return "users" }

var (
	_ listings.Repository = (*ListingRepository)(nil)
	_ user.Repository     = (*UserRepository)(nil)
)
