package metrics

import "github.com/prometheus/client_golang/prometheus"

// Service holds all the Prometheus metrics for the application.
// By defining them all in one place, we ensure consistency in naming and labeling.
type Service struct {
	Registrations        *prometheus.CounterVec
	Conflicts            prometheus.Counter
	Retries              prometheus.Counter
	Undos                prometheus.Counter
	RegistrationDuration prometheus.Histogram
	WebhookResponses     *prometheus.CounterVec
	Commands             *prometheus.CounterVec
	MessagesSent         prometheus.Counter
	MessagesFailed       prometheus.Counter
	EventsPublished      *prometheus.CounterVec
	PoolConnections      *prometheus.GaugeVec
	StartupTimeSeconds   prometheus.Gauge
}
