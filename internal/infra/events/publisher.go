// Package events publishes order ledger facts to Kafka.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"settlement/internal/domain/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

const (
	TopicOrdersCreated   = "orders.created"
	TopicOrdersFinalized = "orders.finalized"
	TopicOrdersStored    = "orders.stored"
)

const producerName = "settlement-api"

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // external_order_ref
	Payload       json.RawMessage `json:"payload"`
}

func TopicFor(t model.OrderEventType) (string, error) {
	switch t {
	case model.OrderEventCreated:
		return TopicOrdersCreated, nil
	case model.OrderEventFinalized:
		return TopicOrdersFinalized, nil
	case model.OrderEventStored:
		return TopicOrdersStored, nil
	}
	return "", fmt.Errorf("unknown event type %q", t)
}

func NewEnvelope(evt model.OrderEvent) (Envelope, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal payload: %w", err)
	}
	occurred := evt.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     string(evt.Type),
		EventVersion:  1,
		OccurredAt:    occurred,
		Producer:      producerName,
		CorrelationID: evt.ExternalOrderRef,
		Payload:       payload,
	}, nil
}

var (
	ErrQueueFull = errors.New("event queue full")
	ErrClosed    = errors.New("publisher closed")
)

const (
	defaultQueueSize = 256
	writeTimeout     = 10 * time.Second
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisherはキューに積むだけで返る。書き込みは裏のgoroutine
type KafkaPublisher struct {
	w     messageWriter
	log   zerolog.Logger
	inbox chan kafka.Message
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

// トピックはメッセージ毎に指定する
func NewKafkaPublisher(brokers []string, log zerolog.Logger) *KafkaPublisher {
	l := log.With().Str("component", "events").Logger()
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
		Async:                  true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				l.Error().Err(err).Int("messages", len(msgs)).Msg("kafka write failed")
			}
		},
	}
	return newKafkaPublisher(w, log, defaultQueueSize)
}

func newKafkaPublisher(w messageWriter, log zerolog.Logger, queueSize int) *KafkaPublisher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	p := &KafkaPublisher{
		w:     w,
		log:   log.With().Str("component", "events").Logger(),
		inbox: make(chan kafka.Message, queueSize),
		done:  make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *KafkaPublisher) run() {
	defer close(p.done)
	for msg := range p.inbox {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := p.w.WriteMessages(ctx, msg)
		cancel()
		if err != nil {
			p.log.Error().Err(err).Str("topic", msg.Topic).Str("order_ref", string(msg.Key)).Msg("publish event failed")
			continue
		}
		p.log.Debug().Str("topic", msg.Topic).Str("order_ref", string(msg.Key)).Msg("event published")
	}
}

// キューが一杯なら待たずに ErrQueueFull
func (p *KafkaPublisher) Publish(ctx context.Context, evt model.OrderEvent) error {
	topic, err := TopicFor(evt.Type)
	if err != nil {
		return err
	}
	env, err := NewEnvelope(evt)
	if err != nil {
		return err
	}
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	// 同じ注文は同じパーティションへ
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(evt.ExternalOrderRef),
		Value: value,
		Time:  env.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(env.EventType)},
			{Key: "event_id", Value: []byte(env.EventID)},
		},
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.inbox <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("publish %s: %w", topic, ErrQueueFull)
	}
}

// 残りを書き切ってから閉じる
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.inbox)
	p.mu.Unlock()

	<-p.done
	return p.w.Close()
}

// KAFKA_BROKERS 未設定時
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(log zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: log.With().Str("component", "events").Logger()}
}

func (p *LogPublisher) Publish(_ context.Context, evt model.OrderEvent) error {
	topic, err := TopicFor(evt.Type)
	if err != nil {
		return err
	}
	p.log.Info().
		Str("topic", topic).
		Str("order_ref", evt.ExternalOrderRef).
		Int64("order_id", evt.OrderID).
		Str("status", string(evt.Status)).
		Msg("event not published (no brokers)")
	return nil
}

func (p *LogPublisher) Close() error { return nil }
