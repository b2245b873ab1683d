package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ Metrics = (*Service)(nil)

// NewMetricsHandler returns an http.Handler for the given Gatherer.
// If no gatherer is provided, it uses the default one.
func NewMetricsHandler(gatherer ...prometheus.Gatherer) http.Handler {
	gath := prometheus.DefaultGatherer
	if len(gatherer) > 0 {
		gath = gatherer[0]
	}
	return promhttp.HandlerFor(gath, promhttp.HandlerOpts{})
}

// NewService creates and registers the Prometheus metrics.
// If no registerer is provided, it uses the default Prometheus registerer.
func NewService(registerer ...prometheus.Registerer) *Service {
	reg := prometheus.DefaultRegisterer
	if len(registerer) > 0 {
		reg = registerer[0]
	}

	s := &Service{
		Registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ladder_registrations_total",
			Help: "Match registrations by outcome (created, duplicate, invalid, conflict, unavailable).",
		}, []string{"result"}),
		Conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ladder_rating_conflicts_total",
			Help: "Optimistic lock conflicts seen while updating rating records.",
		}),
		Retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ladder_rating_retries_total",
			Help: "Transactions re-run after a conflict.",
		}),
		Undos: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ladder_matches_undone_total",
			Help: "Matches reverted by an admin.",
		}),
		RegistrationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ladder_registration_duration_seconds",
			Help:    "The duration of match registration including retries.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		WebhookResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ladder_webhook_responses_total",
			Help: "Webhook responses by status code.",
		}, []string{"code"}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ladder_commands_total",
			Help: "Chat commands handled by name.",
		}, []string{"command"}),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ladder_slack_messages_sent_total",
			Help: "The total number of Slack messages successfully sent.",
		}),
		MessagesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ladder_slack_messages_failed_total",
			Help: "The total number of Slack messages that failed to send.",
		}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ladder_events_published_total",
			Help: "Domain events published by type.",
		}, []string{"type"}),
		PoolConnections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ladder_pool_connections",
			Help: "Database pool connections by state.",
		}, []string{"state"}),
		StartupTimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ladder_startup_duration_seconds",
			Help: "The duration of the application startup in seconds.",
		}),
	}

	reg.MustRegister(
		s.Registrations,
		s.Conflicts,
		s.Retries,
		s.Undos,
		s.RegistrationDuration,
		s.WebhookResponses,
		s.Commands,
		s.MessagesSent,
		s.MessagesFailed,
		s.EventsPublished,
		s.PoolConnections,
		s.StartupTimeSeconds,
	)

	return s
}

func (s *Service) IncRegistrations(result string) {
	s.Registrations.WithLabelValues(result).Inc()
}

func (s *Service) IncConflicts() {
	s.Conflicts.Inc()
}

func (s *Service) IncRetries() {
	s.Retries.Inc()
}

func (s *Service) IncUndos() {
	s.Undos.Inc()
}

func (s *Service) ObserveRegistrationDuration(duration float64) {
	s.RegistrationDuration.Observe(duration)
}

func (s *Service) IncWebhookResponses(code int) {
	s.WebhookResponses.WithLabelValues(strconv.Itoa(code)).Inc()
}

func (s *Service) IncCommands(command string) {
	s.Commands.WithLabelValues(command).Inc()
}

func (s *Service) IncMessagesSent() {
	s.MessagesSent.Inc()
}

func (s *Service) IncMessagesFailed() {
	s.MessagesFailed.Inc()
}

func (s *Service) IncEventsPublished(eventType string) {
	s.EventsPublished.WithLabelValues(eventType).Inc()
}

func (s *Service) SetPoolStats(total, idle, acquired int32) {
	s.PoolConnections.WithLabelValues("total").Set(float64(total))
	s.PoolConnections.WithLabelValues("idle").Set(float64(idle))
	s.PoolConnections.WithLabelValues("acquired").Set(float64(acquired))
}

func (s *Service) SetStartupTime(duration float64) {
	s.StartupTimeSeconds.Set(duration)
}
