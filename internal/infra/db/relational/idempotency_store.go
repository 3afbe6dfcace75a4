package relational

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"staykeeper/internal/app/middleware"
)

// IdempotencyStore keeps command outcomes. Records older than the TTL read as
// absent; Purge deletes them.
type IdempotencyStore struct {
	db  *gorm.DB
	ttl time.Duration
}

func NewIdempotencyStore(db *DB, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{db: db.Gorm, ttl: ttl}
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	q := s.db.WithContext(ctx).Where("key = ?", key)
	if s.ttl > 0 {
		q = q.Where("created_at > ?", time.Now().UTC().Add(-s.ttl))
	}
	var row idempotencyRow
	if err := q.Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return middleware.IdempotencyRecord{}, false, nil
		}
		return middleware.IdempotencyRecord{}, false, translate(err)
	}
	return middleware.IdempotencyRecord{
		Key:        row.Key,
		Payload:    row.Payload,
		Error:      row.Error,
		ErrorKind:  row.ErrorKind,
		OccurredAt: row.OccurredAt.UTC(),
	}, true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	row := idempotencyRow{
		Key:        rec.Key,
		Payload:    rec.Payload,
		Error:      rec.Error,
		ErrorKind:  rec.ErrorKind,
		OccurredAt: rec.OccurredAt.UTC(),
		CreatedAt:  time.Now().UTC(),
	}
	return translate(s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error)
}

// Purge removes expired records and reports how many were deleted.
func (s *IdempotencyStore) Purge(ctx context.Context) (int64, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Where("created_at <= ?", time.Now().UTC().Add(-s.ttl)).Delete(&idempotencyRow{})
	return res.RowsAffected, translate(res.Error)
}

type idempotencyRow struct {
	Key        string    `gorm:"column:key;primaryKey"`
	Payload    []byte    `gorm:"column:payload"`
	Error      string    `gorm:"column:error"`
	ErrorKind  string    `gorm:"column:error_kind"`
	OccurredAt time.Time `gorm:"column:occurred_at"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime:false"`
}

func (idempotencyRow) TableName() string { return "app_idempotency" }

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
