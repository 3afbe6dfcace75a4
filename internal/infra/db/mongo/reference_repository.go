package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"staykeeper/internal/domain/listings"
	"staykeeper/internal/domain/user"
)

// Listings and users are owned by other services; these collections hold the
// local snapshot the engine reads.
const (
	collectionListings = "ref_listing"
	collectionUsers    = "ref_user"
)

type ListingRepository struct {
	col *mongo.Collection
}

func NewListingRepository(db *mongo.Database) *ListingRepository {
	return &ListingRepository{col: db.Collection(collectionListings)}
}

func (r *ListingRepository) ByID(ctx context.Context, id listings.ListingID) (*listings.Listing, error) {
	var doc listingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, listings.ErrListingNotFound
		}
		return nil, translate(err)
	}
	return doc.toListing(), nil
}

func (r *ListingRepository) Save(ctx context.Context, l *listings.Listing) error {
	if err := l.Validate(); err != nil {
		return err
	}
	doc := listingDocument{
		ID:          string(l.ID),
		HostID:      string(l.Host),
		Title:       l.Title,
		NightlyRate: newMoneyDocument(l.NightlyRate),
		CleaningFee: newMoneyDocument(l.CleaningFee),
		MaxGuests:   l.MaxGuests,
		Policy:      string(l.CancellationPolicy),
		Published:   l.Published,
	}
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return translate(err)
}

type listingDocument struct {
	ID          string        `bson:"_id"`
	HostID      string        `bson:"host_id"`
	Title       string        `bson:"title"`
	NightlyRate moneyDocument `bson:"nightly_rate"`
	CleaningFee moneyDocument `bson:"cleaning_fee"`
	MaxGuests   int           `bson:"max_guests"`
	Policy      string        `bson:"cancellation_policy"`
	Published   bool          `bson:"published"`
}

func (d listingDocument) toListing() *listings.Listing {
	return &listings.Listing{
		ID:                 listings.ListingID(d.ID),
		Host:               listings.HostID(d.HostID),
		Title:              d.Title,
		NightlyRate:        d.NightlyRate.toMoney(),
		CleaningFee:        d.CleaningFee.toMoney(),
		MaxGuests:          d.MaxGuests,
		CancellationPolicy: listings.CancellationPolicy(d.Policy),
		Published:          d.Published,
	}
}

type UserRepository struct {
	col *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{col: db.Collection(collectionUsers)}
}

func (r *UserRepository) UserType(ctx context.Context, id user.ID) (user.Type, error) {
	var doc userDocument
	opts := options.FindOne().SetProjection(bson.M{"type": 1})
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", user.ErrNotFound
		}
		return "", translate(err)
	}
	return user.ParseType(doc.Type)
}

func (r *UserRepository) Save(ctx context.Context, u *user.User) error {
	t, err := user.ParseType(string(u.Type))
	if err != nil {
		return err
	}
	doc := userDocument{ID: string(u.ID), Name: u.Name, Email: u.Email, Type: string(t)}
	_, err = r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return translate(err)
}

type userDocument struct {
	ID    string `bson:"_id"`
	Name  string `bson:"name,omitempty"`
	Email string `bson:"email,omitempty"`
	Type  string `bson:"type"`
}

var (
	_ listings.Repository = (*ListingRepository)(nil)
	_ user.Repository     = (*UserRepository)(nil)
)
