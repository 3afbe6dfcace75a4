package relational

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	appoutbox "staykeeper/internal/app/outbox"
)

const (
	outboxNew     = "NEW"
	outboxClaimed = "CLAIMED"
	outboxSent    = "SENT"
	outboxFailed  = "FAILED"

	defaultClaimTimeout = time.Minute
)

// OutboxStore writes event records in the caller's transaction and serves
// them to the relay worker afterwards.
type OutboxStore struct {
	db *gorm.DB
	// ClaimTimeout hands a claimed record to another worker when the first
	// one never reported back.
	ClaimTimeout time.Duration
	wake         func()
}

func NewOutboxStore(db *DB) *OutboxStore {
	return &OutboxStore{db: db.Gorm, ClaimTimeout: defaultClaimTimeout}
}

// OnFlush registers a callback run after each committed command.
func (s *OutboxStore) OnFlush(fn func()) {
	s.wake = fn
}

func (s *OutboxStore) Add(ctx context.Context, record appoutbox.EventRecord) error {
	headers, err := json.Marshal(record.Headers)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	row := outboxRow{
		ID:            record.ID,
		Name:          record.Name,
		Payload:       record.Payload,
		OccurredAt:    record.OccurredAt.UTC(),
		Aggregate:     record.Aggregate,
		Headers:       string(headers),
		State:         outboxNew,
		NextAttemptAt: now,
		CreatedAt:     now,
	}
	return translate(conn(ctx, s.db).Create(&row).Error)
}

func (s *OutboxStore) Flush(context.Context) error {
	if s.wake != nil {
		s.wake()
	}
	return nil
}

func (s *OutboxStore) Claim(ctx context.Context, workerID string) (*appoutbox.Claimed, error) {
	now := time.Now().UTC()
	timeout := s.ClaimTimeout
	if timeout <= 0 {
		timeout = defaultClaimTimeout
	}
	var claimed *appoutbox.Claimed
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row outboxRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("(state IN ? AND next_attempt_at <= ?) OR (state = ? AND claimed_at < ?)",
				[]string{outboxNew, outboxFailed}, now, outboxClaimed, now.Add(-timeout)).
			Order("created_at ASC").
			Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		err = tx.Model(&outboxRow{}).Where("id = ?", row.ID).Updates(map[string]any{
			"state":      outboxClaimed,
			"claimed_by": workerID,
			"claimed_at": now,
		}).Error
		if err != nil {
			return err
		}
		claimed, err = row.toClaimed()
		return err
	})
	return claimed, translate(err)
}

func (s *OutboxStore) MarkSent(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Model(&outboxRow{}).Where("id = ?", id).Updates(map[string]any{
		"state":   outboxSent,
		"sent_at": time.Now().UTC(),
	}).Error
	return translate(err)
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	err := s.db.WithContext(ctx).Model(&outboxRow{}).Where("id = ?", id).Updates(map[string]any{
		"state":           outboxFailed,
		"next_attempt_at": next.UTC(),
		"last_error":      errMsg,
		"attempts":        gorm.Expr("attempts + 1"),
	}).Error
	return translate(err)
}

type outboxRow struct {
	ID            string     `gorm:"column:id;primaryKey"`
	Name          string     `gorm:"column:name"`
	Payload       []byte     `gorm:"column:payload"`
	OccurredAt    time.Time  `gorm:"column:occurred_at"`
	Aggregate     string     `gorm:"column:aggregate"`
	Headers       string     `gorm:"column:headers"`
	State         string     `gorm:"column:state"`
	Attempts      int        `gorm:"column:attempts"`
	NextAttemptAt time.Time  `gorm:"column:next_attempt_at"`
	ClaimedBy     string     `gorm:"column:claimed_by"`
	ClaimedAt     *time.Time `gorm:"column:claimed_at"`
	SentAt        *time.Time `gorm:"column:sent_at"`
	LastError     string     `gorm:"column:last_error"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime:false"`
}

func (outboxRow) TableName() string { return "app_outbox" }

func (r outboxRow) toClaimed() (*appoutbox.Claimed, error) {
	headers := map[string]string{}
	if r.Headers != "" {
		if err := json.Unmarshal([]byte(r.Headers), &headers); err != nil {
			return nil, err
		}
	}
	return &appoutbox.Claimed{
		EventRecord: appoutbox.EventRecord{
			ID:         r.ID,
			Name:       r.Name,
			Payload:    r.Payload,
			OccurredAt: r.OccurredAt.UTC(),
			Aggregate:  r.Aggregate,
			Headers:    headers,
		},
		Attempts: r.Attempts,
	}, nil
}

var _ appoutbox.Outbox = (*OutboxStore)(nil)
