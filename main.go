package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/charmbracelet/log"
	"github.com/mauv0809/rating-ladder/internal/config"
	"github.com/mauv0809/rating-ladder/internal/database"
	"github.com/mauv0809/rating-ladder/internal/dispatch"
	"github.com/mauv0809/rating-ladder/internal/events"
	server "github.com/mauv0809/rating-ladder/internal/http"
	"github.com/mauv0809/rating-ladder/internal/messenger"
	"github.com/mauv0809/rating-ladder/internal/metrics"
	"github.com/mauv0809/rating-ladder/internal/rating"
	"github.com/mauv0809/rating-ladder/internal/webhook"
	"golang.org/x/sync/errgroup"
)

const (
	poolMaintenanceInterval = 30 * time.Second
	shutdownTimeout         = 30 * time.Second
)

func main() {
	// Start profiling timer
	startTime := time.Now()
	cfg := config.Load()
	configureLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, dbTeardown, err := database.Connect(ctx, cfg.Database.Options(), cfg.Database.Pool())
	if err != nil {
		log.Fatalf("Failed to initialize database: %s", err)
	}
	defer func() {
		log.Info("Closing database connection")
		dbTeardown()
	}()
	dbInitDuration := time.Since(startTime)
	log.Info("Database initialization time recorded", "duration_ms", dbInitDuration.Milliseconds())

	metricsSvc := metrics.NewService()
	metricsHandler := metrics.NewMetricsHandler()

	registrar := rating.NewRegistrar(
		rating.New(pool),
		cfg.Elo.Engine(),
		cfg.Retry,
		metricsSvc,
		rating.Config{DefaultRating: cfg.Elo.DefaultRating},
	)

	var chat messenger.Messenger
	if cfg.Slack.Token != "" {
		chat = messenger.NewSlack(cfg.Slack.Token, metricsSvc)
	} else {
		log.Warn("SLACK_BOT_TOKEN not set, replies are only recorded in memory")
		chat = messenger.NewRecorder()
	}

	publisher, err := newPublisher(ctx, cfg, metricsSvc)
	if err != nil {
		log.Fatalf("Failed to initialize event publisher: %s", err)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error("Failed to close event publisher", "error", err)
		}
	}()

	dispatcher := dispatch.New(registrar, chat, publisher, metricsSvc,
		dispatch.WithRankingLimit(cfg.RankingLimit))

	listener := webhook.New(cfg.Webhook, webhook.WithMetrics(metricsSvc))
	listener.SetCallback(dispatcher.Handle)
	if err := listener.Start(); err != nil {
		log.Fatalf("Failed to start webhook listener: %s", err)
	}
	defer listener.Stop()

	s := server.NewServer(registrar, pool, metricsHandler)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// --- Record startup time ---
	startupDuration := time.Since(startTime)
	metricsSvc.SetStartupTime(startupDuration.Seconds())
	log.Info("Startup time recorded", "duration_ms", startupDuration.Milliseconds())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		maintainPool(gctx, pool, metricsSvc)
		return nil
	})
	if ch, ok := publisher.(*events.Channel); ok {
		g.Go(func() error {
			return logEvents(gctx, ch)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutdown signal received")
		listener.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Server shutdown failed", "error", err)
			return err
		}
		log.Info("Server gracefully stopped")
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("Server error", "error", err)
	}
	log.Info("Server process shutting down")
}

func configureLogging(cfg config.Config) {
	if cfg.LogFormat == "json" {
		log.SetFormatter(log.JSONFormatter)
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn("Unknown log level, using info", "level", cfg.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

// newPublisher publishes to Pub/Sub when a GCP project is configured and to an
// in-process channel otherwise.
func newPublisher(ctx context.Context, cfg config.Config, m metrics.Metrics) (events.Publisher, error) {
	if cfg.ProjectID != "" {
		return events.NewPubSub(ctx, cfg.ProjectID, m)
	}
	log.Info("GCP_PROJECT not set, publishing events in-process")
	return events.NewChannel(events.NewLogAdapter(log.Default()), m), nil
}

// maintainPool prunes expired connections and exports pool occupancy until ctx ends.
func maintainPool(ctx context.Context, pool *database.Pool, m metrics.Metrics) {
	ticker := time.NewTicker(poolMaintenanceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			destroyed, err := pool.Prune(ctx)
			if err != nil {
				log.Warn("Pool maintenance failed", "error", err)
			}
			stat := pool.Stat()
			m.SetPoolStats(stat.Total, stat.Idle, stat.Acquired)
			if destroyed > 0 {
				log.Debug("Pruned idle connections", "destroyed", destroyed, "total", stat.Total)
			}
		}
	}
}

// logEvents writes every in-process event to the log.
func logEvents(ctx context.Context, ch *events.Channel) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, eventType := range []events.EventType{
		events.EventMatchRegistered,
		events.EventMatchUndone,
		events.EventParticipantEnrolled,
	} {
		msgs, err := ch.Subscribe(ctx, eventType)
		if err != nil {
			return err
		}
		g.Go(func() error {
			for msg := range msgs {
				logEvent(eventType, msg)
				msg.Ack()
			}
			return nil
		})
	}
	return g.Wait()
}

func logEvent(eventType events.EventType, msg *message.Message) {
	var payload map[string]any
	if err := events.Decode(msg.Payload, &payload); err != nil {
		log.Warn("Failed to decode event", "type", eventType, "id", msg.UUID, "error", err)
		return
	}
	log.Info("Event published", "type", eventType, "id", msg.UUID, "payload", payload)
}
