package events

import (
	"context"

	"github.com/charmbracelet/log"
)

var _ Publisher = Noop{}

// Noop drops every event.
type Noop struct{}

// NewNoop returns a publisher that discards events.
func NewNoop() Noop {
	return Noop{}
}

func (Noop) Publish(ctx context.Context, eventType EventType, payload any) error {
	log.Debug("Dropping event", "type", eventType)
	return nil
}

func (Noop) Close() error {
	return nil
}
