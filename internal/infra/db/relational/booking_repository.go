package relational

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domainbooking "staykeeper/internal/domain/booking"
	"staykeeper/internal/domain/listings"
	"staykeeper/internal/domain/pricing"
	"staykeeper/internal/domain/shared/daterange"
	"staykeeper/internal/domain/shared/money"
	"staykeeper/internal/domain/user"
)

type BookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	var row bookingRow
	if err := r.db.WithContext(ctx).Where("id = ?", string(id)).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainbooking.ErrBookingNotFound
		}
		return nil, translate(err)
	}
	return row.toAggregate()
}

// Save inserts new bookings and otherwise updates on (id, version). The
// PostgreSQL exclusion constraint backs the overlap check made by callers.
func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	row := newBookingRow(b)
	row.Version = b.Version + 1
	db := r.db.WithContext(ctx)
	if b.Version == 0 {
		if err := db.Create(&row).Error; err != nil {
			return saveBookingError(err)
		}
		b.Version = row.Version
		return nil
	}
	res := db.Model(&bookingRow{}).
		Where("id = ? AND version = ?", row.ID, b.Version).
		Select("*").
		Updates(&row)
	if res.Error != nil {
		return saveBookingError(res.Error)
	}
	if res.RowsAffected == 0 {
		return domainbooking.ErrConcurrentUpdate
	}
	b.Version = row.Version
	return nil
}

func saveBookingError(err error) error {
	switch {
	case isOverlap(err):
		return domainbooking.ErrUnavailable
	case isDuplicate(err):
		return domainbooking.ErrConcurrentUpdate
	}
	return translate(err)
}

// LockListing upserts the listing's lock row, which holds a row lock until
// the transaction ends. SQLite needs nothing more than its single connection.
func (r *BookingRepository) LockListing(ctx context.Context, id listings.ListingID) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "listing_id"}},
			DoUpdates: clause.Assignments(map[string]any{"seq": gorm.Expr("listing_locks.seq + 1")}),
		}).
		Create(&listingLockRow{ListingID: string(id), Seq: 1}).Error
	return translate(err)
}

func (r *BookingRepository) Occupying(ctx context.Context, id listings.ListingID, dr daterange.DateRange, exclude domainbooking.BookingID) ([]*domainbooking.Booking, error) {
	statuses := make([]string, 0, 2)
	for _, s := range domainbooking.OccupyingStatuses() {
		statuses = append(statuses, string(s))
	}
	q := r.db.WithContext(ctx).
		Where("listing_id = ? AND status IN ?", string(id), statuses).
		Where("check_in < ? AND check_out > ?", dr.CheckOut.UTC(), dr.CheckIn.UTC())
	if exclude != "" {
		q = q.Where("id <> ?", string(exclude))
	}
	return findBookings(q.Order("check_in ASC"))
}

func (r *BookingRepository) ListByGuest(ctx context.Context, guestID user.ID, filter domainbooking.ListFilter) ([]*domainbooking.Booking, error) {
	return r.list(r.db.WithContext(ctx).Where("guest_id = ?", string(guestID)), filter)
}

func (r *BookingRepository) ListByHost(ctx context.Context, hostID listings.HostID, filter domainbooking.ListFilter) ([]*domainbooking.Booking, error) {
	return r.list(r.db.WithContext(ctx).Where("host_id = ?", string(hostID)), filter)
}

func (r *BookingRepository) ListByListing(ctx context.Context, id listings.ListingID, filter domainbooking.ListFilter) ([]*domainbooking.Booking, error) {
	q := r.db.WithContext(ctx).Where("listing_id = ?", string(id))
	return r.page(q, filter, "check_in DESC")
}

func (r *BookingRepository) Upcoming(ctx context.Context, hostID listings.HostID, from time.Time, limit int) ([]*domainbooking.Booking, error) {
	q := r.db.WithContext(ctx).
		Where("host_id = ? AND status = ? AND check_in >= ?", string(hostID), string(domainbooking.StatusConfirmed), from.UTC()).
		Order("check_in ASC").Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return findBookings(q)
}

type listingTotalsRow struct {
	Bookings  int64
	Confirmed int64
	Completed int64
	Revenue   int64
}

func (r *BookingRepository) ListingTotals(ctx context.Context, id listings.ListingID, currency string) (domainbooking.ListingTotals, error) {
	booked := []string{string(domainbooking.StatusConfirmed), string(domainbooking.StatusCompleted)}
	completed := string(domainbooking.StatusCompleted)
	var row listingTotalsRow
	err := r.db.WithContext(ctx).Model(&bookingRow{}).
		Select(`COUNT(*) AS bookings,
			COUNT(CASE WHEN status IN ? THEN 1 END) AS confirmed,
			COUNT(CASE WHEN status = ? AND currency = ? THEN 1 END) AS completed,
			CAST(COALESCE(SUM(CASE WHEN status = ? AND currency = ? THEN total_amount END), 0) AS BIGINT) AS revenue`,
			booked, completed, currency, completed, currency).
		Where("listing_id = ?", string(id)).
		Scan(&row).Error
	if err != nil {
		return domainbooking.ListingTotals{}, translate(err)
	}
	return domainbooking.ListingTotals{
		Bookings:  int(row.Bookings),
		Confirmed: int(row.Confirmed),
		Completed: int(row.Completed),
		Revenue:   row.Revenue,
	}, nil
}

func (r *BookingRepository) list(q *gorm.DB, filter domainbooking.ListFilter) ([]*domainbooking.Booking, error) {
	return r.page(q, filter, "created_at DESC")
}

func (r *BookingRepository) page(q *gorm.DB, filter domainbooking.ListFilter, order string) ([]*domainbooking.Booking, error) {
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	q = q.Order(order).Order("id ASC")
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	return findBookings(q)
}

func findBookings(q *gorm.DB) ([]*domainbooking.Booking, error) {
	var rows []bookingRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	out := make([]*domainbooking.Booking, 0, len(rows))
	for _, row := range rows {
		b, err := row.toAggregate()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

type listingLockRow struct {
	ListingID string `gorm:"column:listing_id;primaryKey"`
	Seq       int64  `gorm:"column:seq"`
}

func (listingLockRow) TableName() string { return "listing_locks" }

type bookingRow struct {
	ID                  string     `gorm:"column:id;primaryKey"`
	ListingID           string     `gorm:"column:listing_id"`
	GuestID             string     `gorm:"column:guest_id"`
	HostID              string     `gorm:"column:host_id"`
	CheckIn             time.Time  `gorm:"column:check_in"`
	CheckOut            time.Time  `gorm:"column:check_out"`
	Guests              int        `gorm:"column:guests"`
	Nights              int        `gorm:"column:nights"`
	Currency            string     `gorm:"column:currency"`
	NightlyAmount       int64      `gorm:"column:nightly_amount"`
	BaseAmount          int64      `gorm:"column:base_amount"`
	CleaningAmount      int64      `gorm:"column:cleaning_amount"`
	ServiceAmount       int64      `gorm:"column:service_amount"`
	DiscountAmount      int64      `gorm:"column:discount_amount"`
	TotalAmount         int64      `gorm:"column:total_amount"`
	Policy              string     `gorm:"column:policy"`
	Status              string     `gorm:"column:status"`
	Stage               string     `gorm:"column:stage"`
	PaymentStatus       string     `gorm:"column:payment_status"`
	SpecialRequests     string     `gorm:"column:special_requests"`
	HostResponseMessage *string    `gorm:"column:host_response_message"`
	HostResponseAt      *time.Time `gorm:"column:host_response_at"`
	CancelledBy         *string    `gorm:"column:cancelled_by"`
	CancelReason        *string    `gorm:"column:cancel_reason"`
	RefundAmount        *int64     `gorm:"column:refund_amount"`
	CancelledAt         *time.Time `gorm:"column:cancelled_at"`
	CreatedAt           time.Time  `gorm:"column:created_at;autoCreateTime:false"`
	UpdatedAt           time.Time  `gorm:"column:updated_at;autoUpdateTime:false"`
	Version             int64      `gorm:"column:version"`
}

func (bookingRow) TableName() string { return "bookings" }

func newBookingRow(b *domainbooking.Booking) bookingRow {
	row := bookingRow{
		ID:              string(b.ID),
		ListingID:       string(b.ListingID),
		GuestID:         string(b.GuestID),
		HostID:          string(b.HostID),
		CheckIn:         b.Range.CheckIn.UTC(),
		CheckOut:        b.Range.CheckOut.UTC(),
		Guests:          b.Guests,
		Nights:          b.Price.Nights,
		Currency:        b.Price.Total.Currency,
		NightlyAmount:   b.Price.Nightly.Amount,
		BaseAmount:      b.Price.Base.Amount,
		CleaningAmount:  b.Price.Cleaning.Amount,
		ServiceAmount:   b.Price.Service.Amount,
		DiscountAmount:  b.Price.Discount.Amount,
		TotalAmount:     b.Price.Total.Amount,
		Policy:          string(b.Policy),
		Status:          string(b.State.Status()),
		Stage:           string(b.State.Stage()),
		PaymentStatus:   string(b.PaymentStatus),
		SpecialRequests: b.SpecialRequests,
		CreatedAt:       b.CreatedAt.UTC(),
		UpdatedAt:       b.UpdatedAt.UTC(),
		Version:         b.Version,
	}
	if row.Currency == "" {
		row.Currency = money.DefaultCurrency
	}
	if b.HostResponse != nil {
		msg, at := b.HostResponse.Message, b.HostResponse.At.UTC()
		row.HostResponseMessage, row.HostResponseAt = &msg, &at
	}
	if c := b.Cancellation; c != nil {
		by, reason, refund, at := string(c.By), c.Reason, c.Refund.Amount, c.At.UTC()
		row.CancelledBy, row.CancelReason, row.RefundAmount, row.CancelledAt = &by, &reason, &refund, &at
	}
	return row
}

func (r bookingRow) toAggregate() (*domainbooking.Booking, error) {
	state, err := domainbooking.StateOf(domainbooking.Status(r.Status), domainbooking.Stage(r.Stage))
	if err != nil {
		return nil, err
	}
	m := func(amount int64) money.Money { return money.Money{Amount: amount, Currency: r.Currency} }
	b := &domainbooking.Booking{
		ID:        domainbooking.BookingID(r.ID),
		ListingID: listings.ListingID(r.ListingID),
		GuestID:   user.ID(r.GuestID),
		HostID:    listings.HostID(r.HostID),
		Range:     daterange.DateRange{CheckIn: r.CheckIn.UTC(), CheckOut: r.CheckOut.UTC()},
		Guests:    r.Guests,
		Price: pricing.Breakdown{
			Nights:   r.Nights,
			Nightly:  m(r.NightlyAmount),
			Base:     m(r.BaseAmount),
			Cleaning: m(r.CleaningAmount),
			Service:  m(r.ServiceAmount),
			Discount: m(r.DiscountAmount),
			Total:    m(r.TotalAmount),
		},
		Policy:          listings.CancellationPolicy(r.Policy),
		State:           state,
		PaymentStatus:   domainbooking.PaymentStatus(r.PaymentStatus),
		SpecialRequests: r.SpecialRequests,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
		Version:         r.Version,
	}
	if r.HostResponseMessage != nil && r.HostResponseAt != nil {
		b.HostResponse = &domainbooking.HostResponse{Message: *r.HostResponseMessage, At: r.HostResponseAt.UTC()}
	}
	if r.CancelledBy != nil && r.CancelledAt != nil {
		c := &domainbooking.Cancellation{By: domainbooking.Party(*r.CancelledBy), At: r.CancelledAt.UTC()}
		if r.CancelReason != nil {
			c.Reason = *r.CancelReason
		}
		if r.RefundAmount != nil {
			c.Refund = m(*r.RefundAmount)
		}
		b.Cancellation = c
	}
	return b, nil
}

var _ domainbooking.Repository = (*BookingRepository)(nil)
