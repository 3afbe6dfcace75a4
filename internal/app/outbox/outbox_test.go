package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staykeeper/internal/domain/shared/events"
)

type stayBooked struct {
	BookingID string    `json:"booking_id"`
	At        time.Time `json:"at"`
}

func (e stayBooked) EventName() string     { return "booking.created" }
func (e stayBooked) AggregateID() string   { return e.BookingID }
func (e stayBooked) OccurredAt() time.Time { return e.At }

type unencodable struct{ stayBooked }

func (unencodable) MarshalJSON() ([]byte, error) { return nil, errors.New("nope") }

type recordingOutbox struct{ records []EventRecord }

func (r *recordingOutbox) Add(_ context.Context, rec EventRecord) error {
	r.records = append(r.records, rec)
	return nil
}
func (r *recordingOutbox) Flush(context.Context) error { return nil }

func TestJSONEventEncoder(t *testing.T) {
	at := time.Date(2026, 7, 1, 9, 0, 0, 0, time.FixedZone("WEST", 3600))
	rec, err := JSONEventEncoder{IDGenerator: func() string { return "evt-1" }}.Encode(stayBooked{BookingID: "b-1", At: at})
	require.NoError(t, err)

	assert.Equal(t, "evt-1", rec.ID)
	assert.Equal(t, "booking.created", rec.Name)
	assert.Equal(t, "b-1", rec.Aggregate)
	assert.Equal(t, time.UTC, rec.OccurredAt.Location())
	assert.Equal(t, "booking", rec.Headers[HeaderAggregateType])

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Payload, &payload))
	assert.Equal(t, "b-1", payload["booking_id"])
}

func TestRecordDomainEventsIsAllOrNothing(t *testing.T) {
	box := &recordingOutbox{}
	evs := []events.DomainEvent{
		stayBooked{BookingID: "b-1"},
		unencodable{stayBooked{BookingID: "b-2"}},
	}

	err := RecordDomainEvents(context.Background(), box, nil, evs)

	assert.Error(t, err)
	assert.Empty(t, box.records)

	require.NoError(t, RecordDomainEvents(context.Background(), box, nil, evs[:1]))
	assert.Len(t, box.records, 1)
}
