package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainbooking "staykeeper/internal/domain/booking"
	"staykeeper/internal/domain/listings"
	"staykeeper/internal/domain/shared/daterange"
	"staykeeper/internal/domain/user"
)

const (
	collectionBookings     = "agg_booking"
	collectionListingLocks = "listing_locks"
)

type BookingRepository struct {
	col   *mongo.Collection
	locks *mongo.Collection
}

func NewBookingRepository(db *mongo.Database) *BookingRepository {
	return &BookingRepository{
		col:   db.Collection(collectionBookings),
		locks: db.Collection(collectionListingLocks),
	}
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	var doc bookingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainbooking.ErrBookingNotFound
		}
		return nil, translate(err)
	}
	return doc.toAggregate()
}

// Save upserts on (_id, version). A stale version either matches nothing or
// collides with the existing _id, and both surface as ErrConcurrentUpdate.
func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	doc := newBookingDocument(b)
	filter := bson.M{"_id": doc.ID, "version": b.Version}
	doc.Version = b.Version + 1
	update := bson.M{"$set": doc}
	opts := options.Update().SetUpsert(true)
	res, err := r.col.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainbooking.ErrConcurrentUpdate
		}
		return translate(err)
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return domainbooking.ErrConcurrentUpdate
	}
	b.Version = doc.Version
	return nil
}

// LockListing bumps a per-listing counter inside the session transaction.
// A second transaction touching the same listing hits a write conflict and
// is aborted by the server.
func (r *BookingRepository) LockListing(ctx context.Context, id listings.ListingID) error {
	_, err := r.locks.UpdateOne(ctx,
		bson.M{"_id": string(id)},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.Update().SetUpsert(true),
	)
	return translate(err)
}

func (r *BookingRepository) Occupying(ctx context.Context, id listings.ListingID, dr daterange.DateRange, exclude domainbooking.BookingID) ([]*domainbooking.Booking, error) {
	statuses := make([]string, 0, 2)
	for _, s := range domainbooking.OccupyingStatuses() {
		statuses = append(statuses, string(s))
	}
	filter := bson.M{
		"listing_id":      string(id),
		"status":          bson.M{"$in": statuses},
		"range.check_in":  bson.M{"$lt": dr.CheckOut.UnixMilli()},
		"range.check_out": bson.M{"$gt": dr.CheckIn.UnixMilli()},
	}
	if exclude != "" {
		filter["_id"] = bson.M{"$ne": string(exclude)}
	}
	opts := options.Find().SetSort(bson.D{{Key: "range.check_in", Value: 1}})
	return r.find(ctx, filter, opts)
}

func (r *BookingRepository) ListByGuest(ctx context.Context, guestID user.ID, filter domainbooking.ListFilter) ([]*domainbooking.Booking, error) {
	return r.list(ctx, bson.M{"guest_id": string(guestID)}, filter)
}

func (r *BookingRepository) ListByHost(ctx context.Context, hostID listings.HostID, filter domainbooking.ListFilter) ([]*domainbooking.Booking, error) {
	return r.list(ctx, bson.M{"host_id": string(hostID)}, filter)
}

func (r *BookingRepository) ListByListing(ctx context.Context, id listings.ListingID, filter domainbooking.ListFilter) ([]*domainbooking.Booking, error) {
	return r.page(ctx, bson.M{"listing_id": string(id)}, filter, "range.check_in")
}

func (r *BookingRepository) Upcoming(ctx context.Context, hostID listings.HostID, from time.Time, limit int) ([]*domainbooking.Booking, error) {
	filter := bson.M{
		"host_id":        string(hostID),
		"status":         string(domainbooking.StatusConfirmed),
		"range.check_in": bson.M{"$gte": from.UnixMilli()},
	}
	opts := options.Find().SetSort(bson.D{{Key: "range.check_in", Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.find(ctx, filter, opts)
}

type listingTotalsDocument struct {
	Bookings  int   `bson:"bookings"`
	Confirmed int   `bson:"confirmed"`
	Completed int   `bson:"completed"`
	Revenue   int64 `bson:"revenue"`
}

func (r *BookingRepository) ListingTotals(ctx context.Context, id listings.ListingID, currency string) (domainbooking.ListingTotals, error) {
	booked := []string{string(domainbooking.StatusConfirmed), string(domainbooking.StatusCompleted)}
	earned := bson.M{"$and": bson.A{
		bson.M{"$eq": bson.A{"$status", string(domainbooking.StatusCompleted)}},
		bson.M{"$eq": bson.A{"$price.total.currency", currency}},
	}}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"listing_id": string(id)}}},
		{{Key: "$group", Value: bson.M{
			"_id":       nil,
			"bookings":  bson.M{"$sum": 1},
			"confirmed": bson.M{"$sum": bson.M{"$cond": bson.A{bson.M{"$in": bson.A{"$status", booked}}, 1, 0}}},
			"completed": bson.M{"$sum": bson.M{"$cond": bson.A{earned, 1, 0}}},
			"revenue":   bson.M{"$sum": bson.M{"$cond": bson.A{earned, "$price.total.amount", 0}}},
		}}},
	}
	var doc listingTotalsDocument
	if err := aggregateOne(ctx, r.col, pipeline, &doc); err != nil {
		return domainbooking.ListingTotals{}, err
	}
	return domainbooking.ListingTotals(doc), nil
}

func (r *BookingRepository) list(ctx context.Context, query bson.M, filter domainbooking.ListFilter) ([]*domainbooking.Booking, error) {
	return r.page(ctx, query, filter, "created_at")
}

// page sorts descending on field.
func (r *BookingRepository) page(ctx context.Context, query bson.M, filter domainbooking.ListFilter, field string) ([]*domainbooking.Booking, error) {
	if filter.Status != "" {
		query["status"] = string(filter.Status)
	}
	opts := options.Find().SetSort(bson.D{{Key: field, Value: -1}, {Key: "_id", Value: 1}})
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	return r.find(ctx, query, opts)
}

func (r *BookingRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domainbooking.Booking, error) {
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, translate(err)
	}
	defer cur.Close(ctx)
	var out []*domainbooking.Booking
	for cur.Next(ctx) {
		var doc bookingDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		b, err := doc.toAggregate()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, translate(cur.Err())
}

// aggregateOne decodes the single result of a $group pipeline. No matching
// documents leaves out untouched.
func aggregateOne(ctx context.Context, col *mongo.Collection, pipeline mongo.Pipeline, out any) error {
	cur, err := col.Aggregate(ctx, pipeline)
	if err != nil {
		return translate(err)
	}
	defer cur.Close(ctx)
	if cur.Next(ctx) {
		if err := cur.Decode(out); err != nil {
			return err
		}
	}
	return translate(cur.Err())
}

type bookingDocument struct {
	ID              string                `bson:"_id"`
	ListingID       string                `bson:"listing_id"`
	GuestID         string                `bson:"guest_id"`
	HostID          string                `bson:"host_id"`
	Range           rangeDocument         `bson:"range"`
	Guests          int                   `bson:"guests"`
	Price           priceDocument         `bson:"price"`
	Policy          string                `bson:"policy"`
	Status          string                `bson:"status"`
	Stage           string                `bson:"stage"`
	PaymentStatus   string                `bson:"payment_status"`
	SpecialRequests string                `bson:"special_requests,omitempty"`
	HostResponse    *responseDocument     `bson:"host_response,omitempty"`
	Cancellation    *cancellationDocument `bson:"cancellation,omitempty"`
	CreatedAt       int64                 `bson:"created_at"`
	UpdatedAt       int64                 `bson:"updated_at"`
	Version         int64                 `bson:"version"`
}

type responseDocument struct {
	Message string `bson:"message"`
	At      int64  `bson:"at"`
}

type cancellationDocument struct {
	By     string        `bson:"by"`
	Reason string        `bson:"reason,omitempty"`
	Refund moneyDocument `bson:"refund"`
	At     int64         `bson:"at"`
}

func newBookingDocument(b *domainbooking.Booking) bookingDocument {
	doc := bookingDocument{
		ID:              string(b.ID),
		ListingID:       string(b.ListingID),
		GuestID:         string(b.GuestID),
		HostID:          string(b.HostID),
		Range:           rangeDocument{CheckIn: b.Range.CheckIn.UnixMilli(), CheckOut: b.Range.CheckOut.UnixMilli()},
		Guests:          b.Guests,
		Price:           newPriceDocument(b.Price),
		Policy:          string(b.Policy),
		Status:          string(b.State.Status()),
		Stage:           string(b.State.Stage()),
		PaymentStatus:   string(b.PaymentStatus),
		SpecialRequests: b.SpecialRequests,
		CreatedAt:       b.CreatedAt.UnixMilli(),
		UpdatedAt:       b.UpdatedAt.UnixMilli(),
		Version:         b.Version,
	}
	if b.HostResponse != nil {
		doc.HostResponse = &responseDocument{Message: b.HostResponse.Message, At: b.HostResponse.At.UnixMilli()}
	}
	if b.Cancellation != nil {
		doc.Cancellation = &cancellationDocument{
			By:     string(b.Cancellation.By),
			Reason: b.Cancellation.Reason,
			Refund: newMoneyDocument(b.Cancellation.Refund),
			At:     b.Cancellation.At.UnixMilli(),
		}
	}
	return doc
}

func (d bookingDocument) toAggregate() (*domainbooking.Booking, error) {
	state, err := domainbooking.StateOf(domainbooking.Status(d.Status), domainbooking.Stage(d.Stage))
	if err != nil {
		return nil, err
	}
	agg := &domainbooking.Booking{
		ID:              domainbooking.BookingID(d.ID),
		ListingID:       listings.ListingID(d.ListingID),
		GuestID:         user.ID(d.GuestID),
		HostID:          listings.HostID(d.HostID),
		Range:           daterange.DateRange{CheckIn: timestampToTime(d.Range.CheckIn), CheckOut: timestampToTime(d.Range.CheckOut)},
		Guests:          d.Guests,
		Price:           d.Price.toBreakdown(),
		Policy:          listings.CancellationPolicy(d.Policy),
		State:           state,
		PaymentStatus:   domainbooking.PaymentStatus(d.PaymentStatus),
		SpecialRequests: d.SpecialRequests,
		CreatedAt:       timestampToTime(d.CreatedAt),
		UpdatedAt:       timestampToTime(d.UpdatedAt),
		Version:         d.Version,
	}
	if d.HostResponse != nil {
		agg.HostResponse = &domainbooking.HostResponse{Message: d.HostResponse.Message, At: timestampToTime(d.HostResponse.At)}
	}
	if d.Cancellation != nil {
		agg.Cancellation = &domainbooking.Cancellation{
			By:     domainbooking.Party(d.Cancellation.By),
			Reason: d.Cancellation.Reason,
			Refund: d.Cancellation.Refund.toMoney(),
			At:     timestampToTime(d.Cancellation.At),
		}
	}
	return agg, nil
}

var _ domainbooking.Repository = (*BookingRepository)(nil)
