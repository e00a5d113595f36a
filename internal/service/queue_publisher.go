// Package service publishes booking lifecycle events to the
// configured message bus.  Errors are logged and returned so callers can
// ignore failures without interrupting the main request flow.
package service

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/hotel-reservation/internal/config"
	q "github.com/iliyamo/hotel-reservation/internal/queue"
)

// New returns the publisher selected by cfg.Bus.  Unknown or "none" buses
// get a no-op publisher.
func New(cfg config.EventsConfig, log *logrus.Logger) q.Publisher {
	switch cfg.Bus {
	case "rabbitmq":
		return NewRabbitPublisher(cfg.RabbitURL, cfg.RabbitQueue, log)
	case "kafka":
		return NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, 256, log)
	}
	return q.Nop{}
}

// RabbitPublisher sends each event as a persistent message on a durable
// queue.  A connection is dialled per publish; lifecycle events are rare
// enough that a pooled channel is not worth its reconnect handling.
type RabbitPublisher struct {
	url   string
	queue string
	log   *logrus.Logger
}

func NewRabbitPublisher(url, queue string, log *logrus.Logger) *RabbitPublisher {
	return &RabbitPublisher{url: url, queue: queue, log: log}
}

// Publish sends ev to the queue.  The queue is declared on every call
// (idempotent) so a fresh broker works without provisioning.
func (p *RabbitPublisher) Publish(ctx context.Context, ev q.BookingEvent) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.WithError(err).Warn("rabbitmq: dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.WithError(err).Warn("rabbitmq: channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		p.queue, // name
		true,    // durable
		false,   // autoDelete
		false,   // exclusive
		false,   // noWait
		nil,     // args
	); err != nil {
		p.log.WithError(err).Warn("rabbitmq: queue declare failed")
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.EventID,
		Type:         ev.Type,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		p.log.WithError(err).Warn("rabbitmq: publish failed")
		return err
	}
	return nil
}

func (p *RabbitPublisher) Close() error { return nil }

// kafkaWriter is the part of *kafka.Writer the publisher uses.
type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher queues events on a buffered inbox drained by a single
// goroutine, keyed by reference code so one booking's events stay ordered
// within a partition.
type KafkaPublisher struct {
	w     kafkaWriter
	inbox chan kafka.Message
	done  chan struct{}
	log   *logrus.Logger
}

func NewKafkaPublisher(brokers []string, topic string, buf int, log *logrus.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}
	return newKafkaPublisher(w, buf, log)
}

func newKafkaPublisher(w kafkaWriter, buf int, log *logrus.Logger) *KafkaPublisher {
	p := &KafkaPublisher{w: w, inbox: make(chan kafka.Message, buf), done: make(chan struct{}), log: log}
	go p.run()
	return p
}

func (p *KafkaPublisher) run() {
	defer close(p.done)
	for m := range p.inbox {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := p.w.WriteMessages(ctx, m); err != nil {
			p.log.WithError(err).WithField("key", string(m.Key)).Warn("kafka: write failed")
		}
		cancel()
	}
}

// Publish enqueues ev.  It fails only when the inbox is full or ctx ends
// first; delivery errors are logged by the writer goroutine.
func (p *KafkaPublisher) Publish(ctx context.Context, ev q.BookingEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	m := kafka.Message{
		Key:   []byte(ev.ReferenceCode),
		Value: body,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
			{Key: "event_id", Value: []byte(ev.EventID)},
		},
	}
	select {
	case p.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes pending messages and closes the writer.
func (p *KafkaPublisher) Close() error {
	close(p.inbox)
	<-p.done
	return p.w.Close()
}
