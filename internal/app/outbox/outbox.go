package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"staykeeper/internal/domain/shared/events"
)

type EventRecord struct {
	ID         string
	Name       string
	Payload    []byte
	OccurredAt time.Time
	Aggregate  string
	Headers    map[string]string
}

// Claimed is a record handed to a relay worker together with its delivery
// attempts so far.
type Claimed struct {
	EventRecord
	Attempts int
}

// Outbox stores event records in the caller's unit of work. Flush is called
// once the unit committed.
type Outbox interface {
	Add(ctx context.Context, record EventRecord) error
	Flush(ctx context.Context) error
}

type EventEncoder interface {
	Encode(ev events.DomainEvent) (EventRecord, error)
}

// JSONEventEncoder marshals the event itself as the payload. Records carry
// the aggregate kind ("booking", "commission") as a header so consumers can
// route without decoding.
type JSONEventEncoder struct {
	IDGenerator func() string
}

func (e JSONEventEncoder) Encode(ev events.DomainEvent) (EventRecord, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return EventRecord{}, fmt.Errorf("outbox: encode %s: %w", ev.EventName(), err)
	}
	newID := e.IDGenerator
	if newID == nil {
		newID = uuid.NewString
	}
	name := ev.EventName()
	kind, _, _ := strings.Cut(name, ".")
	return EventRecord{
		ID:         newID(),
		Name:       name,
		Payload:    payload,
		OccurredAt: ev.OccurredAt().UTC(),
		Aggregate:  ev.AggregateID(),
		Headers:    map[string]string{HeaderAggregateType: kind},
	}, nil
}

// HeaderAggregateType names the aggregate kind in EventRecord.Headers.
const HeaderAggregateType = "aggregate-type"

// RecordDomainEvents encodes every event before adding any, so an encoding
// failure leaves the outbox untouched.
func RecordDomainEvents(ctx context.Context, box Outbox, encoder EventEncoder, evs []events.DomainEvent) error {
	if box == nil || len(evs) == 0 {
		return nil
	}
	if encoder == nil {
		encoder = JSONEventEncoder{}
	}
	records := make([]EventRecord, 0, len(evs))
	for _, ev := range evs {
		rec, err := encoder.Encode(ev)
		if err != nil {
			return err
		}
		records = append(records, rec)
	}
	for _, rec := range records {
		if err := box.Add(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}
