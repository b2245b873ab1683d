package http

import (
	"net/http"

	"github.com/mauv0809/rating-ladder/internal/rating"
)

func NewServer(service rating.Service, pool PoolInspector, metricsHandler http.Handler) *Server {
	server := &Server{
		Service:        service,
		Pool:           pool,
		MetricsHandler: metricsHandler,
		Router:         http.NewServeMux(),
	}

	server.routes()
	return server
}

func (s *Server) routes() {
	// All handlers are wrapped with middleware using the Chain helper.
	// e.g. Chain(s.MyHandler(), paramsMiddleware, authMiddleware)
	s.Router.Handle("/metrics", s.MetricsHandler)
	s.Router.Handle("/health", Chain(s.HealthCheckHandler(), paramsMiddleware))
	s.Router.Handle("/pool", Chain(s.PoolStatsHandler(), paramsMiddleware))
	s.Router.Handle("/rankings", Chain(s.RankingsHandler(), paramsMiddleware))
	s.Router.Handle("/matches", Chain(s.ListMatchesHandler(), paramsMiddleware))
	s.Router.Handle("/participants", Chain(s.ParticipantHandler(), paramsMiddleware))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}
