package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/rating-ladder/internal/config"
	"github.com/mauv0809/rating-ladder/internal/database"
	"github.com/mauv0809/rating-ladder/internal/metrics"
	"github.com/mauv0809/rating-ladder/internal/rating"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

const (
	groupID     = "C-SEED"
	numPlayers  = 8
	numMatches  = 500
	concurrency = 8
)

// The seeder fills a ladder with players and random results through the same
// registrar the server uses. Keys are derived from the match index, so
// rerunning it only applies matches that are missing.
func main() {
	log.Info("Starting database seeder...")
	cfg := config.Load()
	ctx := context.Background()

	poolCfg := cfg.Database.Pool()
	if poolCfg.MaxSize < concurrency {
		poolCfg.MaxSize = concurrency
	}
	pool, teardown, err := database.Connect(ctx, cfg.Database.Options(), poolCfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %s", err)
	}
	defer teardown()

	retryCfg := cfg.Retry
	retryCfg.MaxRetries = 20
	registrar := rating.NewRegistrar(rating.New(pool), cfg.Elo.Engine(), retryCfg,
		metrics.NewService(prometheus.NewRegistry()), rating.Config{DefaultRating: cfg.Elo.DefaultRating})

	players := make([]string, numPlayers)
	for i := range players {
		players[i] = fmt.Sprintf("seed-player-%d", i+1)
		if _, _, err := registrar.Enroll(ctx, groupID, players[i]); err != nil {
			log.Fatalf("Failed to enroll %s: %s", players[i], err)
		}
	}
	log.Info("Ensured seed players exist.", "group", groupID, "players", numPlayers)

	log.Info("Preparing to register matches...", "total", numMatches, "concurrency", concurrency)
	startTime := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	var created, duplicates int64
	results := make(chan bool, numMatches)
	for i := 0; i < numMatches; i++ {
		g.Go(func() error {
			a := rand.IntN(numPlayers)
			b := (a + 1 + rand.IntN(numPlayers-1)) % numPlayers
			res, err := registrar.Register(gctx, rating.Outcome{
				GroupID:        groupID,
				ParticipantA:   players[a],
				ParticipantB:   players[b],
				ScoreA:         rand.IntN(7),
				ScoreB:         rand.IntN(7),
				IdempotencyKey: fmt.Sprintf("%s_seed_%d", groupID, i),
			})
			if err != nil {
				if errors.Is(err, rating.ErrConflict) {
					log.Warn("Gave up on match after repeated conflicts", "index", i)
					return nil
				}
				return fmt.Errorf("match %d: %w", i, err)
			}
			results <- res.Duplicate
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatalf("Failed to register matches: %s", err)
	}
	close(results)
	for dup := range results {
		if dup {
			duplicates++
		} else {
			created++
		}
	}

	log.Info("Successfully seeded matches.", "created", created, "duplicates", duplicates, "duration", time.Since(startTime))
}
