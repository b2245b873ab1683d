package metrics

import "sync"

var _ Metrics = (*Mock)(nil)

// Mock is a mock implementation of the Metrics interface for testing.
// It is safe for concurrent use.
type Mock struct {
	mu                    sync.Mutex
	registrations         map[string]int
	conflicts             int
	retries               int
	undos                 int
	registrationDurations []float64
	webhookResponses      map[int]int
	commands              map[string]int
	messagesSent          int
	messagesFailed        int
	eventsPublished       map[string]int
	poolTotal             int32
	poolIdle              int32
	poolAcquired          int32
	startupTime           float64
}

// NewMock creates a new mock instance.
func NewMock() *Mock {
	return &Mock{
		registrations:         make(map[string]int),
		registrationDurations: make([]float64, 0),
		webhookResponses:      make(map[int]int),
		commands:              make(map[string]int),
		eventsPublished:       make(map[string]int),
	}
}

func (m *Mock) IncRegistrations(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registrations[result]++
}

func (m *Mock) IncConflicts() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conflicts++
}

func (m *Mock) IncRetries() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries++
}

func (m *Mock) IncUndos() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.undos++
}

func (m *Mock) ObserveRegistrationDuration(duration float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registrationDurations = append(m.registrationDurations, duration)
}

func (m *Mock) IncWebhookResponses(code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.webhookResponses[code]++
}

func (m *Mock) IncCommands(command string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands[command]++
}

func (m *Mock) IncMessagesSent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messagesSent++
}

func (m *Mock) IncMessagesFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messagesFailed++
}

func (m *Mock) IncEventsPublished(eventType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventsPublished[eventType]++
}

func (m *Mock) SetPoolStats(total, idle, acquired int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.poolTotal, m.poolIdle, m.poolAcquired = total, idle, acquired
}

func (m *Mock) SetStartupTime(duration float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startupTime = duration
}

// Registrations returns how often IncRegistrations was called with result.
func (m *Mock) Registrations(result string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registrations[result]
}

// Conflicts returns the number of times IncConflicts was called.
func (m *Mock) Conflicts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conflicts
}

// Retries returns the number of times IncRetries was called.
func (m *Mock) Retries() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retries
}

// Undos returns the number of times IncUndos was called.
func (m *Mock) Undos() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.undos
}

// RegistrationDurations returns every observed registration duration.
func (m *Mock) RegistrationDurations() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.registrationDurations...)
}

// WebhookResponses returns how many responses carried code.
func (m *Mock) WebhookResponses(code int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.webhookResponses[code]
}

// Commands returns how often command was handled.
func (m *Mock) Commands(command string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commands[command]
}

// MessagesSent returns the number of times IncMessagesSent was called.
func (m *Mock) MessagesSent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.messagesSent
}

// MessagesFailed returns the number of times IncMessagesFailed was called.
func (m *Mock) MessagesFailed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.messagesFailed
}

// EventsPublished returns how often an event of eventType was published.
func (m *Mock) EventsPublished(eventType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.eventsPublished[eventType]
}

// PoolStats returns the last pool gauges.
func (m *Mock) PoolStats() (total, idle, acquired int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.poolTotal, m.poolIdle, m.poolAcquired
}
