package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainbooking "staykeeper/internal/domain/booking"
	domaincommission "staykeeper/internal/domain/commission"
	"staykeeper/internal/domain/listings"
	"staykeeper/internal/domain/user"
)

const collectionCommissions = "agg_commission"

type CommissionRepository struct {
	col *mongo.Collection
}

func NewCommissionRepository(db *mongo.Database) *CommissionRepository {
	return &CommissionRepository{col: db.Collection(collectionCommissions)}
}

func (r *CommissionRepository) ByID(ctx context.Context, id domaincommission.ID) (*domaincommission.Transaction, error) {
	return r.findOne(ctx, bson.M{"_id": string(id)})
}

func (r *CommissionRepository) ByBooking(ctx context.Context, bookingID domainbooking.BookingID) (*domaincommission.Transaction, error) {
	return r.findOne(ctx, bson.M{"booking_id": string(bookingID)})
}

// Insert relies on the unique booking_id and reference indexes created by
// EnsureIndexes.
func (r *CommissionRepository) Insert(ctx context.Context, tx *domaincommission.Transaction) error {
	doc := newCommissionDocument(tx)
	doc.Version = 1
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domaincommission.ErrAlreadyExists
		}
		return translate(err)
	}
	tx.Version = 1
	return nil
}

func (r *CommissionRepository) Save(ctx context.Context, tx *domaincommission.Transaction) error {
	doc := newCommissionDocument(tx)
	doc.Version = tx.Version + 1
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": doc.ID, "version": tx.Version}, bson.M{"$set": doc})
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		if _, err := r.ByID(ctx, tx.ID); err != nil {
			return err
		}
		return domaincommission.ErrConcurrentUpdate
	}
	tx.Version = doc.Version
	return nil
}

func (r *CommissionRepository) ListByHost(ctx context.Context, hostID listings.HostID, status domaincommission.Status) ([]*domaincommission.Transaction, error) {
	filter := bson.M{"host_id": string(hostID)}
	if status != "" {
		filter["status"] = string(status)
	}
	cur, err := r.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, translate(err)
	}
	defer cur.Close(ctx)
	var out []*domaincommission.Transaction
	for cur.Next(ctx) {
		var doc commissionDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		tx, err := doc.toAggregate()
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, translate(cur.Err())
}

type commissionTotalsDocument struct {
	Transactions int   `bson:"transactions"`
	Gross        int64 `bson:"gross"`
	Commission   int64 `bson:"commission"`
	Net          int64 `bson:"net"`
	Collected    int64 `bson:"collected"`
	Pending      int64 `bson:"pending"`
	PaidOut      int64 `bson:"paid_out"`
}

func (r *CommissionRepository) Totals(ctx context.Context, filter domaincommission.TotalsFilter) (domaincommission.Totals, error) {
	match := bson.M{"commission.currency": filter.Currency}
	if filter.HostID != "" {
		match["host_id"] = string(filter.HostID)
	}
	created := bson.M{}
	if !filter.From.IsZero() {
		created["$gte"] = filter.From.UnixMilli()
	}
	if !filter.To.IsZero() {
		created["$lt"] = filter.To.UnixMilli()
	}
	if len(created) > 0 {
		match["created_at"] = created
	}
	sumWhen := func(statuses []domaincommission.Status, field any) bson.M {
		names := make(bson.A, 0, len(statuses))
		for _, s := range statuses {
			names = append(names, string(s))
		}
		return bson.M{"$sum": bson.M{"$cond": bson.A{bson.M{"$in": bson.A{"$status", names}}, field, 0}}}
	}
	earning := domaincommission.EarningStatuses()
	completed := []domaincommission.Status{domaincommission.StatusCompleted}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id":          nil,
			"transactions": sumWhen(earning, 1),
			"gross":        sumWhen(earning, "$booking_amount.amount"),
			"commission":   sumWhen(earning, "$commission.amount"),
			"net":          sumWhen(earning, "$net_amount.amount"),
			"collected":    sumWhen(completed, "$commission.amount"),
			"pending":      sumWhen(domaincommission.OpenStatuses(), "$commission.amount"),
			"paid_out":     sumWhen(completed, "$net_amount.amount"),
		}}},
	}
	var doc commissionTotalsDocument
	if err := aggregateOne(ctx, r.col, pipeline, &doc); err != nil {
		return domaincommission.Totals{}, err
	}
	return domaincommission.Totals(doc), nil
}

func (r *CommissionRepository) findOne(ctx context.Context, filter bson.M) (*domaincommission.Transaction, error) {
	var doc commissionDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domaincommission.ErrNotFound
		}
		return nil, translate(err)
	}
	return doc.toAggregate()
}

type commissionDocument struct {
	ID              string        `bson:"_id"`
	Reference       string        `bson:"reference"`
	BookingID       string        `bson:"booking_id"`
	HostID          string        `bson:"host_id"`
	GuestID         string        `bson:"guest_id"`
	BookingAmount   moneyDocument `bson:"booking_amount"`
	Rate            string        `bson:"rate"`
	Commission      moneyDocument `bson:"commission"`
	NetAmount       moneyDocument `bson:"net_amount"`
	Status          string        `bson:"status"`
	Description     string        `bson:"description"`
	DueAt           int64         `bson:"due_at"`
	PaymentMethod   string        `bson:"payment_method,omitempty"`
	PaymentIntentID string        `bson:"payment_intent_id,omitempty"`
	PaymentProvider string        `bson:"payment_provider,omitempty"`
	CompletedAt     *int64        `bson:"completed_at,omitempty"`
	FailureReason   string        `bson:"failure_reason,omitempty"`
	CreatedAt       int64         `bson:"created_at"`
	UpdatedAt       int64         `bson:"updated_at"`
	Version         int64         `bson:"version"`
}

func newCommissionDocument(tx *domaincommission.Transaction) commissionDocument {
	return commissionDocument{
		ID:              string(tx.ID),
		Reference:       tx.Reference,
		BookingID:       string(tx.BookingID),
		HostID:          string(tx.HostID),
		GuestID:         string(tx.GuestID),
		BookingAmount:   newMoneyDocument(tx.BookingAmount),
		Rate:            tx.Rate.String(),
		Commission:      newMoneyDocument(tx.Commission),
		NetAmount:       newMoneyDocument(tx.NetAmount),
		Status:          string(tx.Status),
		Description:     tx.Description,
		DueAt:           tx.DueAt.UnixMilli(),
		PaymentMethod:   tx.Payment.Method,
		PaymentIntentID: tx.Payment.IntentID,
		PaymentProvider: tx.Payment.Provider,
		CompletedAt:     optionalTimestamp(tx.CompletedAt),
		FailureReason:   tx.FailureReason,
		CreatedAt:       tx.CreatedAt.UnixMilli(),
		UpdatedAt:       tx.UpdatedAt.UnixMilli(),
		Version:         tx.Version,
	}
}

func (d commissionDocument) toAggregate() (*domaincommission.Transaction, error) {
	rate, err := domaincommission.ParseRate(d.Rate)
	if err != nil {
		return nil, err
	}
	status, err := domaincommission.ParseStatus(d.Status)
	if err != nil {
		return nil, err
	}
	return &domaincommission.Transaction{
		ID:            domaincommission.ID(d.ID),
		Reference:     d.Reference,
		BookingID:     domainbooking.BookingID(d.BookingID),
		HostID:        listings.HostID(d.HostID),
		GuestID:       user.ID(d.GuestID),
		BookingAmount: d.BookingAmount.toMoney(),
		Rate:          rate,
		Commission:    d.Commission.toMoney(),
		NetAmount:     d.NetAmount.toMoney(),
		Status:        status,
		Description:   d.Description,
		DueAt:         timestampToTime(d.DueAt),
		Payment: domaincommission.PaymentDetails{
			Method:   d.PaymentMethod,
			IntentID: d.PaymentIntentID,
			Provider: d.PaymentProvider,
		},
		CompletedAt:   optionalTime(d.CompletedAt),
		FailureReason: d.FailureReason,
		CreatedAt:     timestampToTime(d.CreatedAt),
		UpdatedAt:     timestampToTime(d.UpdatedAt),
		Version:       d.Version,
	}, nil
}

var _ domaincommission.Repository = (*CommissionRepository)(nil)
