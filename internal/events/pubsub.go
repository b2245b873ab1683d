package events

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/mauv0809/rating-ladder/internal/metrics"
)

var _ Publisher = (*PubSub)(nil)

// PubSub publishes events to Google Cloud Pub/Sub, one topic per event type.
type PubSub struct {
	client  *pubsub.Client
	metrics metrics.Metrics
}

// NewPubSub connects to Pub/Sub in projectID.
func NewPubSub(ctx context.Context, projectID string, metrics metrics.Metrics) (*PubSub, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}
	return &PubSub{client: client, metrics: metrics}, nil
}

func (p *PubSub) Publish(ctx context.Context, eventType EventType, payload any) error {
	data, err := Encode(payload)
	if err != nil {
		log.Error("MessagePack marshal error", "error", err, "type", eventType)
		return err
	}
	message := &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event_id":   uuid.NewString(),
			"event_type": string(eventType),
		},
	}
	result := p.client.Topic(string(eventType)).Publish(ctx, message)
	serverID, err := result.Get(ctx)
	if err != nil {
		log.Error("Failed to publish message", "error", err, "topic", eventType)
		return fmt.Errorf("failed to publish %s: %w", eventType, err)
	}
	p.metrics.IncEventsPublished(string(eventType))
	log.Debug("Published event", "topic", eventType, "serverID", serverID)
	return nil
}

func (p *PubSub) Close() error {
	return p.client.Close()
}
