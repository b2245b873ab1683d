package rating

import (
	"context"
	"time"
)

// Service is the ladder API used by the dispatcher and the admin server.
type Service interface {
	Register(ctx context.Context, outcome Outcome) (*MatchResult, error)
	Enroll(ctx context.Context, groupID, participantID string) (*RatingRecord, bool, error)
	Undo(ctx context.Context, groupID, requestedBy string) (*MatchRecord, error)
	Rankings(ctx context.Context, groupID string, limit int) ([]RatingRecord, error)
	Matches(ctx context.Context, groupID string, limit int) ([]MatchRecord, error)
	Participant(ctx context.Context, groupID, participantID string) (*RatingRecord, error)
}

// Store opens units of work and serves read-only queries.
type Store interface {
	Begin(ctx context.Context) (UnitOfWork, error)
	Rankings(ctx context.Context, groupID string, limit int) ([]RatingRecord, error)
	Matches(ctx context.Context, groupID string, limit int) ([]MatchRecord, error)
	Participant(ctx context.Context, groupID, participantID string) (*RatingRecord, error)
}

// UnitOfWork is the set of reads and writes performed inside one transaction.
// Lookups return ErrNotFound when nothing matches.
type UnitOfWork interface {
	MatchByIdempotencyKey(ctx context.Context, key string) (*MatchRecord, error)
	LatestMatch(ctx context.Context, groupID string) (*MatchRecord, error)
	RatingRecord(ctx context.Context, groupID, participantID string) (*RatingRecord, error)
	// InsertRatingRecord reports false when the participant was already enrolled.
	InsertRatingRecord(ctx context.Context, rec *RatingRecord) (bool, error)
	// UpdateRatingRecord writes rec only if the stored version still equals
	// expectedVersion, and bumps the version. It returns ErrConflict otherwise.
	UpdateRatingRecord(ctx context.Context, rec *RatingRecord, expectedVersion int64) error
	// InsertMatch sets m.ID, or returns ErrDuplicate when the idempotency key exists.
	InsertMatch(ctx context.Context, m *MatchRecord) error
	MarkUndone(ctx context.Context, matchID int64, by string, at time.Time) error
	InsertHistory(ctx context.Context, entries ...HistoryEntry) error
	Commit() error
	Close() error
}
