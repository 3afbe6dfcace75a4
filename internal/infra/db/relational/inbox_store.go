package relational

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InboxStore records consumed event ids per consumer so redelivered
// messages are skipped.
type InboxStore struct {
	db       *gorm.DB
	consumer string
}

func NewInboxStore(db *DB, consumer string) *InboxStore {
	return &InboxStore{db: db.Gorm, consumer: consumer}
}

func (s *InboxStore) Seen(ctx context.Context, eventID string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&inboxRow{}).
		Where("event_id = ? AND consumer = ?", eventID, s.consumer).
		Count(&n).Error
	if err != nil {
		return false, translate(err)
	}
	return n > 0, nil
}

// Mark records eventID as processed. Marking twice is not an error.
func (s *InboxStore) Mark(ctx context.Context, eventID string) error {
	row := inboxRow{EventID: eventID, Consumer: s.consumer, ReceivedAt: time.Now().UTC()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
	return translate(err)
}

type inboxRow struct {
	EventID    string    `gorm:"column:event_id;primaryKey"`
	Consumer   string    `gorm:"column:consumer;primaryKey"`
	ReceivedAt time.Time `gorm:"column:received_at"`
}

func (inboxRow) TableName() string { return "app_inbox" }
