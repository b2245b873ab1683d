package http

import (
	"context"
	"net/http"

	"github.com/mauv0809/rating-ladder/internal/database"
	"github.com/mauv0809/rating-ladder/internal/rating"
)

// PoolInspector is the slice of the connection pool the admin server reports on.
type PoolInspector interface {
	HealthCheck(ctx context.Context) error
	Stat() database.PoolStat
}

type Server struct {
	Service        rating.Service
	Pool           PoolInspector
	MetricsHandler http.Handler
	Router         *http.ServeMux
}
