package relational

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	domainbooking "staykeeper/internal/domain/booking"
	domaincommission "staykeeper/internal/domain/commission"
	"staykeeper/internal/domain/listings"
	"staykeeper/internal/domain/shared/money"
	"staykeeper/internal/domain/user"
)

type CommissionRepository struct {
	db *gorm.DB
}

func NewCommissionRepository(db *gorm.DB) *CommissionRepository {
	return &CommissionRepository{db: db}
}

func (r *CommissionRepository) ByID(ctx context.Context, id domaincommission.ID) (*domaincommission.Transaction, error) {
	return r.take(r.db.WithContext(ctx).Where("id = ?", string(id)))
}

func (r *CommissionRepository) ByBooking(ctx context.Context, bookingID domainbooking.BookingID) (*domaincommission.Transaction, error) {
	return r.take(r.db.WithContext(ctx).Where("booking_id = ?", string(bookingID)))
}

func (r *CommissionRepository) Insert(ctx context.Context, tx *domaincommission.Transaction) error {
	row := newCommissionRow(tx)
	row.Version = 1
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isDuplicate(err) {
			return domaincommission.ErrAlreadyExists
		}
		return translate(err)
	}
	tx.Version = 1
	return nil
}

func (r *CommissionRepository) Save(ctx context.Context, tx *domaincommission.Transaction) error {
	row := newCommissionRow(tx)
	row.Version = tx.Version + 1
	res := r.db.WithContext(ctx).Model(&commissionRow{}).
		Where("id = ? AND version = ?", row.ID, tx.Version).
		Select("*").
		Updates(&row)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := r.ByID(ctx, tx.ID); err != nil {
			return err
		}
		return domaincommission.ErrConcurrentUpdate
	}
	tx.Version = row.Version
	return nil
}

func (r *CommissionRepository) ListByHost(ctx context.Context, hostID listings.HostID, status domaincommission.Status) ([]*domaincommission.Transaction, error) {
	q := r.db.WithContext(ctx).Where("host_id = ?", string(hostID))
	if status != "" {
		q = q.Where("status = ?", string(status))
	}
	var rows []commissionRow
	if err := q.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	out := make([]*domaincommission.Transaction, 0, len(rows))
	for _, row := range rows {
		tx, err := row.toAggregate()
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

type commissionTotalsRow struct {
	Transactions int64
	Gross        int64
	Commission   int64
	Net          int64
	Collected    int64
	Pending      int64
	PaidOut      int64
}

func (r *CommissionRepository) Totals(ctx context.Context, filter domaincommission.TotalsFilter) (domaincommission.Totals, error) {
	earning := statusNames(domaincommission.EarningStatuses())
	open := statusNames(domaincommission.OpenStatuses())
	completed := string(domaincommission.StatusCompleted)
	q := r.db.WithContext(ctx).Model(&commissionRow{}).
		Select(`COUNT(CASE WHEN status IN ? THEN 1 END) AS transactions,
			CAST(COALESCE(SUM(CASE WHEN status IN ? THEN booking_amount END), 0) AS BIGINT) AS gross,
			CAST(COALESCE(SUM(CASE WHEN status IN ? THEN commission_amount END), 0) AS BIGINT) AS commission,
			CAST(COALESCE(SUM(CASE WHEN status IN ? THEN net_amount END), 0) AS BIGINT) AS net,
			CAST(COALESCE(SUM(CASE WHEN status = ? THEN commission_amount END), 0) AS BIGINT) AS collected,
			CAST(COALESCE(SUM(CASE WHEN status IN ? THEN commission_amount END), 0) AS BIGINT) AS pending,
			CAST(COALESCE(SUM(CASE WHEN status = ? THEN net_amount END), 0) AS BIGINT) AS paid_out`,
			earning, earning, earning, earning, completed, open, completed).
		Where("currency = ?", filter.Currency)
	if filter.HostID != "" {
		q = q.Where("host_id = ?", string(filter.HostID))
	}
	if !filter.From.IsZero() {
		q = q.Where("created_at >= ?", filter.From.UTC())
	}
	if !filter.To.IsZero() {
		q = q.Where("created_at < ?", filter.To.UTC())
	}
	var row commissionTotalsRow
	if err := q.Scan(&row).Error; err != nil {
		return domaincommission.Totals{}, translate(err)
	}
	return domaincommission.Totals{
		Transactions: int(row.Transactions),
		Gross:        row.Gross,
		Commission:   row.Commission,
		Net:          row.Net,
		Collected:    row.Collected,
		Pending:      row.Pending,
		PaidOut:      row.PaidOut,
	}, nil
}

func statusNames(statuses []domaincommission.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func (r *CommissionRepository) take(q *gorm.DB) (*domaincommission.Transaction, error) {
	var row commissionRow
	if err := q.Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domaincommission.ErrNotFound
		}
		return nil, translate(err)
	}
	return row.toAggregate()
}

type commissionRow struct {
	ID               string     `gorm:"column:id;primaryKey"`
	Reference        string     `gorm:"column:reference"`
	BookingID        string     `gorm:"column:booking_id"`
	HostID           string     `gorm:"column:host_id"`
	GuestID          string     `gorm:"column:guest_id"`
	Currency         string     `gorm:"column:currency"`
	BookingAmount    int64      `gorm:"column:booking_amount"`
	Rate             string     `gorm:"column:rate"`
	CommissionAmount int64      `gorm:"column:commission_amount"`
	NetAmount        int64      `gorm:"column:net_amount"`
	Status           string     `gorm:"column:status"`
	Description      string     `gorm:"column:description"`
	DueAt            time.Time  `gorm:"column:due_at"`
	PaymentMethod    string     `gorm:"column:payment_method"`
	PaymentIntentID  string     `gorm:"column:payment_intent_id"`
	PaymentProvider  string     `gorm:"column:payment_provider"`
	CompletedAt      *time.Time `gorm:"column:completed_at"`
	FailureReason    string     `gorm:"column:failure_reason"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime:false"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime:false"`
	Version          int64      `gorm:"column:version"`
}

func (commissionRow) TableName() string { return "commissions" }

func newCommissionRow(tx *domaincommission.Transaction) commissionRow {
	row := commissionRow{
		ID:               string(tx.ID),
		Reference:        tx.Reference,
		BookingID:        string(tx.BookingID),
		HostID:           string(tx.HostID),
		GuestID:          string(tx.GuestID),
		Currency:         tx.BookingAmount.Currency,
		BookingAmount:    tx.BookingAmount.Amount,
		Rate:             tx.Rate.String(),
		CommissionAmount: tx.Commission.Amount,
		NetAmount:        tx.NetAmount.Amount,
		Status:           string(tx.Status),
		Description:      tx.Description,
		DueAt:            tx.DueAt.UTC(),
		PaymentMethod:    tx.Payment.Method,
		PaymentIntentID:  tx.Payment.IntentID,
		PaymentProvider:  tx.Payment.Provider,
		FailureReason:    tx.FailureReason,
		CreatedAt:        tx.CreatedAt.UTC(),
		UpdatedAt:        tx.UpdatedAt.UTC(),
		Version:          tx.Version,
	}
	if tx.CompletedAt != nil {
		at := tx.CompletedAt.UTC()
		row.CompletedAt = &at
	}
	return row
}

func (r commissionRow) toAggregate() (*domaincommission.Transaction, error) {
	rate, err := domaincommission.ParseRate(r.Rate)
	if err != nil {
		return nil, err
	}
	status, err := domaincommission.ParseStatus(r.Status)
	if err != nil {
		return nil, err
	}
	m := func(amount int64) money.Money { return money.Money{Amount: amount, Currency: r.Currency} }
	tx := &domaincommission.Transaction{
		ID:            domaincommission.ID(r.ID),
		Reference:     r.Reference,
		BookingID:     domainbooking.BookingID(r.BookingID),
		HostID:        listings.HostID(r.HostID),
		GuestID:       user.ID(r.GuestID),
		BookingAmount: m(r.BookingAmount),
		Rate:          rate,
		Commission:    m(r.CommissionAmount),
		NetAmount:     m(r.NetAmount),
		Status:        status,
		Description:   r.Description,
		DueAt:         r.DueAt.UTC(),
		Payment: domaincommission.PaymentDetails{
			Method:   r.PaymentMethod,
			IntentID: r.PaymentIntentID,
			Provider: r.PaymentProvider,
		},
		FailureReason: r.FailureReason,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
		Version:       r.Version,
	}
	if r.CompletedAt != nil {
		at := r.CompletedAt.UTC()
		tx.CompletedAt = &at
	}
	return tx, nil
}

var _ domaincommission.Repository = (*CommissionRepository)(nil)
