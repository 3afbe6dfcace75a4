package memory

import (
	"context"
	"time"

	appoutbox "staykeeper/internal/app/outbox"
)

type outboxState string

const (
	outboxNew     outboxState = "NEW"
	outboxClaimed outboxState = "CLAIMED"
	outboxSent    outboxState = "SENT"
	outboxFailed  outboxState = "FAILED"
)

type outboxEntry struct {
	record    appoutbox.EventRecord
	state     outboxState
	attempts  int
	next      time.Time
	claimedBy string
	lastError string
}

// Outbox keeps event records next to the aggregates, so a rolled back unit
// drops its events too. It also serves as the relay worker's store.
type Outbox struct {
	store *Store
	wake  func()
}

func NewOutbox(store *Store) *Outbox {
	return &Outbox{store: store}
}

// OnFlush registers a callback run after each committed command.
func (o *Outbox) OnFlush(fn func()) {
	o.wake = fn
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	return o.store.within(ctx, func(s *state) error {
		s.outbox = append(s.outbox, outboxEntry{record: record, state: outboxNew, next: time.Now().UTC()})
		return nil
	})
}

func (o *Outbox) Flush(context.Context) error {
	if o.wake != nil {
		o.wake()
	}
	return nil
}

func (o *Outbox) Claim(ctx context.Context, workerID string) (*appoutbox.Claimed, error) {
	var claimed *appoutbox.Claimed
	now := time.Now().UTC()
	err := o.store.within(ctx, func(s *state) error {
		for i := range s.outbox {
			e := &s.outbox[i]
			if (e.state != outboxNew && e.state != outboxFailed) || e.next.After(now) {
				continue
			}
			e.state = outboxClaimed
			e.claimedBy = workerID
			claimed = &appoutbox.Claimed{EventRecord: e.record, Attempts: e.attempts}
			return nil
		}
		return nil
	})
	return claimed, err
}

func (o *Outbox) MarkSent(ctx context.Context, id string) error {
	return o.update(ctx, id, func(e *outboxEntry) {
		e.state = outboxSent
	})
}

func (o *Outbox) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	return o.update(ctx, id, func(e *outboxEntry) {
		e.state = outboxFailed
		e.next = next
		e.lastError = errMsg
		e.attempts++
	})
}

// Pending returns records not yet delivered, oldest first.
func (o *Outbox) Pending(ctx context.Context) ([]appoutbox.EventRecord, error) {
	var out []appoutbox.EventRecord
	err := o.store.within(ctx, func(s *state) error {
		for _, e := range s.outbox {
			if e.state != outboxSent {
				out = append(out, e.record)
			}
		}
		return nil
	})
	return out, err
}

func (o *Outbox) update(ctx context.Context, id string, fn func(*outboxEntry)) error {
	return o.store.within(ctx, func(s *state) error {
		for i := range s.outbox {
			if s.outbox[i].record.ID == id {
				fn(&s.outbox[i])
				return nil
			}
		}
		return nil
	})
}

var _ appoutbox.Outbox = (*Outbox)(nil)
