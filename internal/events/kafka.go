package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(topic string, brokers ...string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(e.OrderCode), // order code for ordering
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s event: %w", e.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops events when no broker is configured.
type NopPublisher struct {
	log *slog.Logger
}

func NewNopPublisher(log *slog.Logger) *NopPublisher {
	return &NopPublisher{log: log}
}

func (p *NopPublisher) Publish(ctx context.Context, e Event) error {
	p.log.DebugContext(ctx, "event dropped, no broker configured", "type", e.Type, "order_code", e.OrderCode)
	return nil
}

func (p *NopPublisher) Close() error { return nil }

// CartInvalidator drops cached server carts.
type CartInvalidator interface {
	InvalidateUser(ctx context.Context, userID int64)
}

// Listener consumes order events written by any storefront instance and
// drops the cached cart of the ordering user, whose server cart the backend
// has emptied. Every instance reads the whole topic under its own consumer
// group, since an in-process cache is only reachable from its own instance.
type Listener struct {
	reader *kafka.Reader
	carts  CartInvalidator
	log    *slog.Logger
}

// ListenerGroup is the consumer group of the listener on one instance.
func ListenerGroup(instanceID string) string {
	return "storefront-cart-cache-" + instanceID
}

// NewListener starts at the end of the topic the first time an instance id is
// seen. Orders placed before the instance existed cannot be in its cache.
func NewListener(carts CartInvalidator, log *slog.Logger, instanceID, topic string, brokers ...string) *Listener {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     ListenerGroup(instanceID),
		StartOffset: kafka.LastOffset,
		MaxBytes:    10e6, // 10MB
	})
	return &Listener{reader: reader, carts: carts, log: log}
}

func (l *Listener) Run(ctx context.Context) {
	for {
		m, err := l.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			l.log.Warn("error reading order event", "error", err)
			continue
		}
		l.handle(ctx, m)
	}
}

func (l *Listener) handle(ctx context.Context, m kafka.Message) {
	var e Event
	if err := json.Unmarshal(m.Value, &e); err != nil {
		l.log.WarnContext(ctx, "error parsing order event", "offset", m.Offset, "error", err)
		return
	}
	if e.Type != OrderCreated || e.UserID == 0 {
		return
	}
	l.carts.InvalidateUser(ctx, e.UserID)
}

func (l *Listener) Close() {
	if err := l.reader.Close(); err != nil {
		l.log.Warn("error closing reader", "error", err)
	}
}
