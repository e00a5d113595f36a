package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hotel-reservation/internal/config"
	"github.com/iliyamo/hotel-reservation/internal/logging"
	q "github.com/iliyamo/hotel-reservation/internal/queue"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestKafkaPublisherFlushesOnClose(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w, 4, logging.Discard())
	ctx := context.Background()

	require.NoError(t, p.Publish(ctx, q.BookingEvent{EventID: "e1", Type: q.EventCreated, ReferenceCode: "BKG-1"}))
	require.NoError(t, p.Publish(ctx, q.BookingEvent{EventID: "e2", Type: q.EventConfirmed, ReferenceCode: "BKG-1"}))
	require.NoError(t, p.Close())

	w.mu.Lock()
	defer w.mu.Unlock()
	require.Len(t, w.msgs, 2)
	assert.True(t, w.closed)
	assert.Equal(t, "BKG-1", string(w.msgs[0].Key))

	var ev q.BookingEvent
	require.NoError(t, json.Unmarshal(w.msgs[1].Value, &ev))
	assert.Equal(t, q.EventConfirmed, ev.Type)
}

func TestNewSelectsBus(t *testing.T) {
	log := logging.Discard()
	assert.IsType(t, q.Nop{}, New(config.EventsConfig{Bus: "none"}, log))
	assert.IsType(t, &RabbitPublisher{}, New(config.EventsConfig{Bus: "rabbitmq", RabbitURL: "amqp://x", RabbitQueue: "b"}, log))

	kp := New(config.EventsConfig{Bus: "kafka", KafkaBrokers: []string{"localhost:9092"}, KafkaTopic: "t"}, log)
	assert.IsType(t, &KafkaPublisher{}, kp)
	require.NoError(t, kp.Close())
}
