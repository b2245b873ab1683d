package rating

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mauv0809/rating-ladder/internal/database"
	"github.com/uptrace/bun"
)

// store is the bun-backed Store. Every unit of work runs on its own pooled connection.
type store struct {
	pool *database.Pool
	now  func() time.Time
}

// New creates a Store over the connection pool.
func New(pool *database.Pool) Store {
	return &store{
		pool: pool,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *store) Begin(ctx context.Context) (UnitOfWork, error) {
	tx, err := database.Begin(ctx, s.pool)
	if err != nil {
		return nil, err
	}
	return &unitOfWork{tx: tx, db: tx.Bun(), now: s.now}, nil
}

func (s *store) Rankings(ctx context.Context, groupID string, limit int) ([]RatingRecord, error) {
	var records []RatingRecord
	err := s.read(ctx, func(db bun.Tx) error {
		return db.NewSelect().
			Model(&records).
			Where("group_id = ?", groupID).
			OrderExpr("current_rating DESC, matches_played DESC, participant_id ASC").
			Limit(limit).
			Scan(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load rankings for %s: %w", groupID, err)
	}
	return records, nil
}

func (s *store) Matches(ctx context.Context, groupID string, limit int) ([]MatchRecord, error) {
	var matches []MatchRecord
	err := s.read(ctx, func(db bun.Tx) error {
		return db.NewSelect().
			Model(&matches).
			Where("group_id = ?", groupID).
			OrderExpr("id DESC").
			Limit(limit).
			Scan(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load matches for %s: %w", groupID, err)
	}
	return matches, nil
}

func (s *store) Participant(ctx context.Context, groupID, participantID string) (*RatingRecord, error) {
	var rec *RatingRecord
	err := s.read(ctx, func(db bun.Tx) error {
		var err error
		rec, err = selectRatingRecord(ctx, db, groupID, participantID)
		return err
	})
	return rec, err
}

// read runs fn in a transaction that is always rolled back.
func (s *store) read(ctx context.Context, fn func(db bun.Tx) error) error {
	tx, err := database.Begin(ctx, s.pool)
	if err != nil {
		return err
	}
	defer tx.Close()
	return fn(tx.Bun())
}

type unitOfWork struct {
	tx  *database.Tx
	db  bun.Tx
	now func() time.Time
}

func (u *unitOfWork) MatchByIdempotencyKey(ctx context.Context, key string) (*MatchRecord, error) {
	m := new(MatchRecord)
	err := u.db.NewSelect().
		Model(m).
		Where("idempotency_key = ?", key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to look up idempotency key: %w", err)
	}
	return m, nil
}

func (u *unitOfWork) LatestMatch(ctx context.Context, groupID string) (*MatchRecord, error) {
	m := new(MatchRecord)
	err := u.db.NewSelect().
		Model(m).
		Where("group_id = ?", groupID).
		Where("is_undone = ?", false).
		OrderExpr("id DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load latest match: %w", err)
	}
	return m, nil
}

func (u *unitOfWork) RatingRecord(ctx context.Context, groupID, participantID string) (*RatingRecord, error) {
	return selectRatingRecord(ctx, u.db, groupID, participantID)
}

func (u *unitOfWork) InsertRatingRecord(ctx context.Context, rec *RatingRecord) (bool, error) {
	res, err := u.db.ExecContext(ctx, `
		INSERT INTO rating_records
			(group_id, participant_id, current_rating, matches_played, matches_won, matches_lost, version, updated_at)
		VALUES (?, ?, ?, 0, 0, 0, 0, ?)
		ON CONFLICT (group_id, participant_id) DO NOTHING`,
		rec.GroupID, rec.ParticipantID, rec.CurrentRating, u.now(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert rating record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

func (u *unitOfWork) UpdateRatingRecord(ctx context.Context, rec *RatingRecord, expectedVersion int64) error {
	now := u.now()
	res, err := u.db.ExecContext(ctx, `
		UPDATE rating_records
		SET current_rating = ?, matches_played = ?, matches_won = ?, matches_lost = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		rec.CurrentRating, rec.MatchesPlayed, rec.MatchesWon, rec.MatchesLost,
		now, rec.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update rating record %d: %w", rec.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: rating record %d moved past version %d", ErrConflict, rec.ID, expectedVersion)
	}
	rec.Version = expectedVersion + 1
	rec.UpdatedAt = now
	return nil
}

func (u *unitOfWork) InsertMatch(ctx context.Context, m *MatchRecord) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = u.now()
	}
	err := u.db.QueryRowContext(ctx, `
		INSERT INTO match_records
			(group_id, participant_a, participant_b, score_a, score_b,
			 rating_a_before, rating_b_before, rating_a_after, rating_b_after,
			 idempotency_key, created_at, is_undone)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING id`,
		m.GroupID, m.ParticipantA, m.ParticipantB, m.ScoreA, m.ScoreB,
		m.RatingABefore, m.RatingBBefore, m.RatingAAfter, m.RatingBAfter,
		m.IdempotencyKey, m.CreatedAt, false,
	).Scan(&m.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert match: %w", err)
	}
	return nil
}

func (u *unitOfWork) MarkUndone(ctx context.Context, matchID int64, by string, at time.Time) error {
	res, err := u.db.ExecContext(ctx, `
		UPDATE match_records
		SET is_undone = ?, undone_at = ?, undone_by = ?
		WHERE id = ? AND is_undone = ?`,
		true, at, by, matchID, false,
	)
	if err != nil {
		return fmt.Errorf("failed to mark match %d undone: %w", matchID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: match %d already undone", ErrConflict, matchID)
	}
	return nil
}

func (u *unitOfWork) InsertHistory(ctx context.Context, entries ...HistoryEntry) error {
	for _, e := range entries {
		if e.CreatedAt.IsZero() {
			e.CreatedAt = u.now()
		}
		_, err := u.db.ExecContext(ctx, `
			INSERT INTO rating_history (match_id, participant_id, rating_before, rating_after, delta, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			e.MatchID, e.ParticipantID, e.RatingBefore, e.RatingAfter, e.Delta, e.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert history for %s: %w", e.ParticipantID, err)
		}
	}
	return nil
}

func (u *unitOfWork) Commit() error {
	return u.tx.Commit()
}

func (u *unitOfWork) Close() error {
	return u.tx.Close()
}

func selectRatingRecord(ctx context.Context, db bun.Tx, groupID, participantID string) (*RatingRecord, error) {
	rec := new(RatingRecord)
	err := db.NewSelect().
		Model(rec).
		Where("group_id = ?", groupID).
		Where("participant_id = ?", participantID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("participant %s in %s: %w", participantID, groupID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load rating record: %w", err)
	}
	return rec, nil
}
