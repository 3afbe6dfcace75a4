// Package events holds the facts aggregates record while they change.
package events

import "time"

// DomainEvent is published through the outbox after the owning unit of work
// commits.
type DomainEvent interface {
	EventName() string
	AggregateID() string
	OccurredAt() time.Time
}

// EventRecorder is embedded in aggregates. Events stay pending until the
// handler drains them into the outbox.
type EventRecorder struct {
	pending []DomainEvent
}

func (r *EventRecorder) Record(e DomainEvent) {
	if e != nil {
		r.pending = append(r.pending, e)
	}
}

// PendingEvents returns a copy; the recorder keeps its events.
func (r *EventRecorder) PendingEvents() []DomainEvent {
	return append([]DomainEvent(nil), r.pending...)
}

func (r *EventRecorder) ClearEvents() { r.pending = nil }

func (r *EventRecorder) Drain() []DomainEvent {
	out := r.pending
	r.pending = nil
	return out
}
