package events

import (
	"context"
	"sync"
)

var _ Publisher = (*Mock)(nil)

// Mock is a mock implementation of Publisher for testing.
// It is safe for concurrent use.
type Mock struct {
	mu sync.Mutex

	PublishFunc func(ctx context.Context, eventType EventType, payload any) error

	PublishCalls []PublishCall
	Closed       bool
}

// PublishCall holds the arguments for a call to Publish.
type PublishCall struct {
	Type    EventType
	Payload any
}

// NewMock creates a new mock Publisher.
func NewMock() *Mock {
	return &Mock{}
}

// Publish records the call and executes the mock function if provided.
func (m *Mock) Publish(ctx context.Context, eventType EventType, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PublishCalls = append(m.PublishCalls, PublishCall{Type: eventType, Payload: payload})
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, eventType, payload)
	}
	return nil
}

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// Calls returns the recorded calls of one event type.
func (m *Mock) Calls(eventType EventType) []PublishCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []PublishCall
	for _, c := range m.PublishCalls {
		if c.Type == eventType {
			out = append(out, c)
		}
	}
	return out
}
