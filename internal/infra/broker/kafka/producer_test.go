package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSendsKeyedMessage(t *testing.T) {
	cfg := NewConfig("test")
	cfg.Producer.Return.Successes = true
	sp := mocks.NewSyncProducer(t, cfg)
	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if string(val) != `{"id":"evt-1"}` {
			return errors.New("unexpected payload " + string(val))
		}
		return nil
	})
	p := &Producer{sync: sp}

	err := p.Publish(context.Background(), "booking.events.v1", "b-1", []byte(`{"id":"evt-1"}`), map[string]string{"ce-type": "booking.created.v1", "content-type": "application/cloudevents+json"})
	require.NoError(t, err)
	require.NoError(t, p.Close())
}

func TestPublishWrapsBrokerError(t *testing.T) {
	sp := mocks.NewSyncProducer(t, NewConfig("test"))
	sp.ExpectSendMessageAndFail(sarama.ErrNotLeaderForPartition)
	p := &Producer{sync: sp}

	err := p.Publish(context.Background(), "booking.events.v1", "", []byte("{}"), nil)

	assert.ErrorIs(t, err, sarama.ErrNotLeaderForPartition)
	assert.Contains(t, err.Error(), "booking.events.v1")
	require.NoError(t, p.Close())
}

func TestPublishHonorsCancelledContext(t *testing.T) {
	p := &Producer{sync: mocks.NewSyncProducer(t, NewConfig("test"))}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, p.Publish(ctx, "t", "k", nil, nil), context.Canceled)
	require.NoError(t, p.Close())
}

func TestRecordHeadersAreSorted(t *testing.T) {
	hs := recordHeaders(map[string]string{"b": "2", "a": "1"})
	require.Len(t, hs, 2)
	assert.Equal(t, "a", string(hs[0].Key))
	assert.Equal(t, "2", string(hs[1].Value))
	assert.Nil(t, recordHeaders(nil))
}
