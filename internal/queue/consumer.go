package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// AuditLog appends one line per booking event to a file.
type AuditLog struct {
	mu   sync.Mutex
	path string
}

// NewAuditLog writes to path (e.g. logs/booking.log), creating its
// directory on first write.
func NewAuditLog(path string) *AuditLog { return &AuditLog{path: path} }

// Handle decodes a message body and appends it to the log.
func (a *AuditLog) Handle(body []byte) error {
	var ev BookingEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" || (ev.ReferenceCode == "" && ev.Type != EventRoomStatus) {
		return errors.New("event without type or reference")
	}
	return a.Append(ev)
}

// Append writes ev as a single human-friendly line.
func (a *AuditLog) Append(ev BookingEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("[%s] %s | reference=%s | reservation_id=%d | room_id=%d | guest_id=%d | status=%s | prev=%s | check_in=%s | check_out=%s | total=%d cents\n",
		ev.OccurredAt, ev.Type, ev.ReferenceCode, ev.ReservationID, ev.RoomID, ev.GuestID, ev.Status, ev.PrevStatus,
		ev.CheckIn, ev.CheckOut, ev.TotalCents)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// StartRabbitConsumer consumes queueName from the broker at url until ctx
// is cancelled, reconnecting with exponential backoff.  Messages that
// cannot be handled are rejected without requeue to avoid tight loops.
func StartRabbitConsumer(ctx context.Context, url, queueName string, audit *AuditLog, log *logrus.Logger) {
	backoff := time.Second
	for ctx.Err() == nil {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.WithError(err).Warnf("booking-consumer: dial failed, retrying in %s", backoff)
			if !sleep(ctx, backoff) {
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if err := consumeLoop(ctx, conn, queueName, audit, log); err != nil {
			log.WithError(err).Warn("booking-consumer: consume loop ended, reconnecting")
		}
		_ = conn.Close()
		if !sleep(ctx, 2*time.Second) {
			return
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, queueName string, audit *AuditLog, log *logrus.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.WithError(err).Warn("booking-consumer: set QoS failed")
	}
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := audit.Handle(d.Body); err != nil {
				log.WithError(err).Warn("booking-consumer: handle message failed")
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// StartKafkaConsumer reads topic as consumer group "booking-audit" and
// commits each offset only after the event has been written.
func StartKafkaConsumer(ctx context.Context, brokers []string, topic string, audit *AuditLog, log *logrus.Logger) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        "booking-audit",
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
	})
	defer r.Close()

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.WithError(err).Warn("booking-consumer: kafka fetch failed")
			if !sleep(ctx, 2*time.Second) {
				return
			}
			continue
		}
		if err := audit.Handle(m.Value); err != nil {
			log.WithError(err).WithField("offset", m.Offset).Warn("booking-consumer: handle message failed")
		}
		if err := r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			log.WithError(err).Warn("booking-consumer: kafka commit failed")
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
