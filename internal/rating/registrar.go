package rating

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/rating-ladder/internal/elo"
	"github.com/mauv0809/rating-ladder/internal/metrics"
	"github.com/mauv0809/rating-ladder/internal/retry"
)

var _ Service = (*Registrar)(nil)

// Registrar applies match outcomes to the ladder exactly once per idempotency key.
type Registrar struct {
	store   Store
	engine  elo.Engine
	retry   retry.Config
	metrics metrics.Metrics
	cfg     Config
	now     func() time.Time
}

// NewRegistrar wires the store, the rating engine and the conflict retry policy.
func NewRegistrar(store Store, engine elo.Engine, retryCfg retry.Config, metrics metrics.Metrics, cfg Config) *Registrar {
	if cfg.DefaultRating == 0 {
		cfg.DefaultRating = elo.DefaultRating
	}
	return &Registrar{
		store:   store,
		engine:  engine,
		retry:   retryCfg,
		metrics: metrics,
		cfg:     cfg,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Register applies one outcome. The whole transaction is re-run from scratch
// when a rating record moved underneath it.
func (r *Registrar) Register(ctx context.Context, o Outcome) (*MatchResult, error) {
	start := time.Now()
	defer func() {
		r.metrics.ObserveRegistrationDuration(time.Since(start).Seconds())
	}()

	if err := Validate(o); err != nil {
		r.metrics.IncRegistrations(resultInvalid)
		return nil, err
	}

	var (
		result   *MatchResult
		attempts int
	)
	err := retry.Run(ctx, r.retry, isConflict, func(ctx context.Context) error {
		attempts++
		res, err := r.registerOnce(ctx, o)
		if err != nil {
			if isConflict(err) {
				r.metrics.IncConflicts()
			}
			return err
		}
		result = res
		return nil
	}, retry.WithOnRetry(r.logRetry("register", o.IdempotencyKey)))
	if err != nil {
		err = classify(err)
		r.metrics.IncRegistrations(resultLabel(err))
		log.Error("Failed to register match", "key", o.IdempotencyKey, "group", o.GroupID, "attempts", attempts, "error", err)
		return nil, err
	}

	result.Attempts = attempts
	if result.Duplicate {
		r.metrics.IncRegistrations(resultDuplicate)
		log.Info("Match already registered", "key", o.IdempotencyKey, "match_id", result.Match.ID)
	} else {
		r.metrics.IncRegistrations(resultCreated)
		log.Info("Match registered", "key", o.IdempotencyKey, "match_id", result.Match.ID,
			"a", o.ParticipantA, "b", o.ParticipantB,
			"delta_a", result.Match.DeltaA(), "delta_b", result.Match.DeltaB(), "attempts", attempts)
	}
	return result, nil
}

func (r *Registrar) registerOnce(ctx context.Context, o Outcome) (*MatchResult, error) {
	uow, err := r.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Close()

	existing, err := uow.MatchByIdempotencyKey(ctx, o.IdempotencyKey)
	if err == nil {
		return &MatchResult{Match: existing, Duplicate: true}, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	a, err := uow.RatingRecord(ctx, o.GroupID, o.ParticipantA)
	if err != nil {
		return nil, participantError(err)
	}
	b, err := uow.RatingRecord(ctx, o.GroupID, o.ParticipantB)
	if err != nil {
		return nil, participantError(err)
	}
	versionA, versionB := a.Version, b.Version

	res := r.engine.Compute(a.CurrentRating, b.CurrentRating, o.ScoreA, o.ScoreB)
	match := &MatchRecord{
		GroupID:        o.GroupID,
		ParticipantA:   o.ParticipantA,
		ParticipantB:   o.ParticipantB,
		ScoreA:         o.ScoreA,
		ScoreB:         o.ScoreB,
		RatingABefore:  a.CurrentRating,
		RatingBBefore:  b.CurrentRating,
		RatingAAfter:   res.NewA,
		RatingBAfter:   res.NewB,
		IdempotencyKey: o.IdempotencyKey,
		CreatedAt:      r.now(),
	}

	applyResult(a, res.NewA, o.ScoreA, o.ScoreB)
	applyResult(b, res.NewB, o.ScoreB, o.ScoreA)
	if err := uow.UpdateRatingRecord(ctx, a, versionA); err != nil {
		return nil, err
	}
	if err := uow.UpdateRatingRecord(ctx, b, versionB); err != nil {
		return nil, err
	}

	if err := uow.InsertMatch(ctx, match); err != nil {
		if errors.Is(err, ErrDuplicate) {
			uow.Close()
			return r.existingMatch(ctx, o.IdempotencyKey)
		}
		return nil, err
	}

	err = uow.InsertHistory(ctx,
		HistoryEntry{MatchID: match.ID, ParticipantID: o.ParticipantA, RatingBefore: match.RatingABefore, RatingAfter: match.RatingAAfter, Delta: match.DeltaA(), CreatedAt: match.CreatedAt},
		HistoryEntry{MatchID: match.ID, ParticipantID: o.ParticipantB, RatingBefore: match.RatingBBefore, RatingAfter: match.RatingBAfter, Delta: match.DeltaB(), CreatedAt: match.CreatedAt},
	)
	if err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}
	return &MatchResult{Match: match}, nil
}

// existingMatch reads back a match whose key was claimed by a concurrent registration.
func (r *Registrar) existingMatch(ctx context.Context, key string) (*MatchResult, error) {
	uow, err := r.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Close()

	m, err := uow.MatchByIdempotencyKey(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// The other writer rolled back; go around again.
			return nil, fmt.Errorf("%w: idempotency key %s vanished", ErrConflict, key)
		}
		return nil, err
	}
	return &MatchResult{Match: m, Duplicate: true}, nil
}

// Enroll adds a participant to a group's ladder at the default rating.
func (r *Registrar) Enroll(ctx context.Context, groupID, participantID string) (*RatingRecord, bool, error) {
	if groupID == "" || participantID == "" {
		return nil, false, fmt.Errorf("%w: group and participant are required", ErrValidation)
	}

	uow, err := r.store.Begin(ctx)
	if err != nil {
		return nil, false, classify(err)
	}
	defer uow.Close()

	created, err := uow.InsertRatingRecord(ctx, &RatingRecord{
		GroupID:       groupID,
		ParticipantID: participantID,
		CurrentRating: r.engine.Clamp(r.cfg.DefaultRating),
	})
	if err != nil {
		return nil, false, classify(err)
	}
	rec, err := uow.RatingRecord(ctx, groupID, participantID)
	if err != nil {
		return nil, false, classify(err)
	}
	if err := uow.Commit(); err != nil {
		return nil, false, classify(err)
	}
	if created {
		log.Info("Participant enrolled", "group", groupID, "participant", participantID, "rating", rec.CurrentRating)
	}
	return rec, created, nil
}

// Undo reverts the most recent active match in the group.
func (r *Registrar) Undo(ctx context.Context, groupID, requestedBy string) (*MatchRecord, error) {
	if groupID == "" {
		return nil, fmt.Errorf("%w: group is required", ErrValidation)
	}

	var undone *MatchRecord
	err := retry.Run(ctx, r.retry, isConflict, func(ctx context.Context) error {
		m, err := r.undoOnce(ctx, groupID, requestedBy)
		if err != nil {
			if isConflict(err) {
				r.metrics.IncConflicts()
			}
			return err
		}
		undone = m
		return nil
	}, retry.WithOnRetry(r.logRetry("undo", groupID)))
	if err != nil {
		err = classify(err)
		if !errors.Is(err, ErrNotFound) {
			log.Error("Failed to undo match", "group", groupID, "error", err)
		}
		return nil, err
	}

	r.metrics.IncUndos()
	log.Info("Match undone", "group", groupID, "match_id", undone.ID, "by", requestedBy)
	return undone, nil
}

func (r *Registrar) undoOnce(ctx context.Context, groupID, requestedBy string) (*MatchRecord, error) {
	uow, err := r.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer uow.Close()

	m, err := uow.LatestMatch(ctx, groupID)
	if err != nil {
		return nil, err
	}
	a, err := uow.RatingRecord(ctx, groupID, m.ParticipantA)
	if err != nil {
		return nil, err
	}
	b, err := uow.RatingRecord(ctx, groupID, m.ParticipantB)
	if err != nil {
		return nil, err
	}
	versionA, versionB := a.Version, b.Version

	r.revertResult(a, m.DeltaA(), m.ScoreA, m.ScoreB)
	r.revertResult(b, m.DeltaB(), m.ScoreB, m.ScoreA)
	if err := uow.UpdateRatingRecord(ctx, a, versionA); err != nil {
		return nil, err
	}
	if err := uow.UpdateRatingRecord(ctx, b, versionB); err != nil {
		return nil, err
	}

	// The match keeps its two history rows; the undo lives on the match record.
	at := r.now()
	if err := uow.MarkUndone(ctx, m.ID, requestedBy, at); err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}

	m.IsUndone = true
	m.UndoneAt = &at
	m.UndoneBy = &requestedBy
	return m, nil
}

// Rankings returns the top of a group's ladder.
func (r *Registrar) Rankings(ctx context.Context, groupID string, limit int) ([]RatingRecord, error) {
	if limit <= 0 {
		limit = DefaultRankingLimit
	}
	records, err := r.store.Rankings(ctx, groupID, limit)
	if err != nil {
		return nil, classify(err)
	}
	return records, nil
}

// Matches returns a group's most recent matches, newest first.
func (r *Registrar) Matches(ctx context.Context, groupID string, limit int) ([]MatchRecord, error) {
	if limit <= 0 {
		limit = DefaultRankingLimit
	}
	matches, err := r.store.Matches(ctx, groupID, limit)
	if err != nil {
		return nil, classify(err)
	}
	return matches, nil
}

// Participant returns one participant's standing.
func (r *Registrar) Participant(ctx context.Context, groupID, participantID string) (*RatingRecord, error) {
	rec, err := r.store.Participant(ctx, groupID, participantID)
	if err != nil {
		return nil, classify(err)
	}
	return rec, nil
}

func (r *Registrar) logRetry(op, key string) func(int, time.Duration, error) {
	return func(attempt int, delay time.Duration, err error) {
		r.metrics.IncRetries()
		log.Warn("Rating conflict, retrying", "op", op, "key", key, "attempt", attempt, "delay", delay, "error", err)
	}
}

func applyResult(rec *RatingRecord, newRating, own, other int) {
	rec.CurrentRating = newRating
	rec.MatchesPlayed++
	switch {
	case own > other:
		rec.MatchesWon++
	case own < other:
		rec.MatchesLost++
	}
}

func (r *Registrar) revertResult(rec *RatingRecord, delta, own, other int) {
	rec.CurrentRating = r.engine.Clamp(rec.CurrentRating - delta)
	if rec.MatchesPlayed > 0 {
		rec.MatchesPlayed--
	}
	switch {
	case own > other && rec.MatchesWon > 0:
		rec.MatchesWon--
	case own < other && rec.MatchesLost > 0:
		rec.MatchesLost--
	}
}

func isConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func participantError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: unknown participant: %w", ErrValidation, err)
	}
	return err
}

// classify maps anything that is not a domain error to ErrUnavailable.
func classify(err error) error {
	switch {
	case errors.Is(err, ErrConflict), errors.Is(err, ErrValidation),
		errors.Is(err, ErrNotFound), errors.Is(err, ErrUnavailable):
		return err
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

const (
	resultCreated     = "created"
	resultDuplicate   = "duplicate"
	resultInvalid     = "invalid"
	resultConflict    = "conflict"
	resultUnavailable = "unavailable"
)

func resultLabel(err error) string {
	switch {
	case errors.Is(err, ErrConflict):
		return resultConflict
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound):
		return resultInvalid
	}
	return resultUnavailable
}
