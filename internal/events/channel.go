package events

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/mauv0809/rating-ladder/internal/metrics"
)

var _ Publisher = (*Channel)(nil)

// Channel is an in-process event bus on watermill's gochannel. Messages
// published before anyone subscribes are dropped.
type Channel struct {
	bus     *gochannel.GoChannel
	metrics metrics.Metrics
}

// NewChannel creates an in-process bus.
func NewChannel(logger watermill.LoggerAdapter, metrics metrics.Metrics) *Channel {
	return &Channel{
		bus:     gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger),
		metrics: metrics,
	}
}

func (c *Channel) Publish(ctx context.Context, eventType EventType, payload any) error {
	data, err := Encode(payload)
	if err != nil {
		return err
	}
	msg := message.NewMessage(uuid.NewString(), data)
	msg.Metadata.Set("event_type", string(eventType))
	msg.SetContext(ctx)

	if err := c.bus.Publish(string(eventType), msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", eventType, err)
	}
	c.metrics.IncEventsPublished(string(eventType))
	return nil
}

// Subscribe streams events of one type until ctx ends or the bus closes.
// Consumers must Ack each message.
func (c *Channel) Subscribe(ctx context.Context, eventType EventType) (<-chan *message.Message, error) {
	return c.bus.Subscribe(ctx, string(eventType))
}

func (c *Channel) Close() error {
	return c.bus.Close()
}
