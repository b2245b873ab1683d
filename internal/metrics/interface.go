package metrics

// Metrics defines the interface for collecting application metrics.
// This decouples the application from the specific metrics implementation (e.g., Prometheus).
type Metrics interface {
	IncRegistrations(result string)
	IncConflicts()
	IncRetries()
	IncUndos()
	ObserveRegistrationDuration(duration float64)
	IncWebhookResponses(code int)
	IncCommands(command string)
	IncMessagesSent()
	IncMessagesFailed()
	IncEventsPublished(eventType string)
	SetPoolStats(total, idle, acquired int32)
	SetStartupTime(duration float64)
}
