package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"refwallet/events"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const sourceService = "refwallet"

// EventEnvelope wraps an event payload for the wire
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Timestamp     time.Time       `json:"timestamp"`
	SourceService string          `json:"source_service"`
	Payload       json.RawMessage `json:"payload"`
}

// MessagePublisher sends raw bytes to a subject
type MessagePublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// NATSEventPublisher forwards committed ledger events to NATS
type NATSEventPublisher struct {
	client  MessagePublisher
	timeout time.Duration
	now     func() time.Time
}

// NewNATSEventPublisher creates a new NATS event publisher
func NewNATSEventPublisher(client MessagePublisher) *NATSEventPublisher {
	return &NATSEventPublisher{
		client:  client,
		timeout: 5 * time.Second,
		now:     time.Now,
	}
}

// NewEnvelope serializes an event into an envelope with a fresh event id
func (p *NATSEventPublisher) NewEnvelope(event events.Event) (*EventEnvelope, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	return &EventEnvelope{
		EventID:       uuid.New().String(),
		EventType:     string(event.Type()),
		Timestamp:     p.now().UTC(),
		SourceService: sourceService,
		Payload:       payload,
	}, nil
}

// Forward publishes an event to the subject for its type
func (p *NATSEventPublisher) Forward(ctx context.Context, event events.Event) error {
	envelope, err := p.NewEnvelope(event)
	if err != nil {
		return err
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	subject := SubjectFor(event.Type())
	if err := p.client.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish event to NATS: %w", err)
	}

	log.WithFields(log.Fields{
		"eventType": event.Type(),
		"eventId":   envelope.EventID,
		"subject":   subject,
	}).Debug("Successfully published event to NATS")

	return nil
}

// Attach subscribes the publisher to every event type on the bus.
// Publish failures are logged; the ledger is already committed.
func (p *NATSEventPublisher) Attach(bus *events.Bus) {
	bus.SubscribeAll(func(ctx context.Context, event events.Event) {
		if err := p.Forward(ctx, event); err != nil {
			log.WithError(err).WithField("eventType", event.Type()).Error("Failed to forward event to NATS")
		}
	})
}
