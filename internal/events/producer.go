// Package events publishes request lifecycle events to Kafka.
// Events are best-effort: the service layer logs a failed publish and
// moves on, it never fails the user-facing operation over it.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"github.com/errandly/backend/internal/domain"
)

// Type tags the lifecycle change an event describes.
type Type string

const (
	TypeRequestCreated   Type = "request.created"
	TypeRequestAccepted  Type = "request.accepted"
	TypeRequestCompleted Type = "request.completed"
)

// Envelope is the wire shape of every published event.
type Envelope struct {
	ID        uuid.UUID      `json:"id"`
	Type      Type           `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Request   domain.Request `json:"request"`
}

// Producer publishes lifecycle events to a single Kafka topic using a
// synchronous producer, so a returned nil means the brokers acked.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

// NewProducer connects a sync producer to the given brokers.
func NewProducer(brokers []string, topic string) (*Producer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true
	cfg.Producer.Compression = sarama.CompressionSnappy

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("events.NewProducer: %w", err)
	}

	return &Producer{producer: producer, topic: topic}, nil
}

// Close shuts the underlying producer down.
func (p *Producer) Close() error {
	return p.producer.Close()
}

// RequestCreated publishes a request.created event.
func (p *Producer) RequestCreated(request domain.Request) error {
	return p.publish(TypeRequestCreated, request)
}

// RequestAccepted publishes a request.accepted event.
func (p *Producer) RequestAccepted(request domain.Request) error {
	return p.publish(TypeRequestAccepted, request)
}

// RequestCompleted publishes a request.completed event.
func (p *Producer) RequestCompleted(request domain.Request) error {
	return p.publish(TypeRequestCompleted, request)
}

func (p *Producer) publish(eventType Type, request domain.Request) error {
	event := Envelope{
		ID:        uuid.New(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Request:   request,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events.Producer: marshal %s: %w", eventType, err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.topic,
		// Key by request id so all events for one request land in the
		// same partition, preserving lifecycle order for consumers.
		Key:   sarama.StringEncoder(request.ID.String()),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(eventType)},
			{Key: []byte("timestamp"), Value: []byte(event.Timestamp.Format(time.RFC3339))},
		},
	}

	if _, _, err := p.producer.SendMessage(message); err != nil {
		return fmt.Errorf("events.Producer: send %s: %w", eventType, err)
	}
	return nil
}
