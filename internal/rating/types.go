package rating

import (
	"time"

	"github.com/uptrace/bun"
)

// RatingRecord is one participant's standing within a group.
type RatingRecord struct {
	bun.BaseModel `bun:"table:rating_records,alias:rr"`

	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	GroupID       string    `bun:"group_id,notnull" json:"group_id"`
	ParticipantID string    `bun:"participant_id,notnull" json:"participant_id"`
	CurrentRating int       `bun:"current_rating,notnull" json:"current_rating"`
	MatchesPlayed int       `bun:"matches_played,notnull" json:"matches_played"`
	MatchesWon    int       `bun:"matches_won,notnull" json:"matches_won"`
	MatchesLost   int       `bun:"matches_lost,notnull" json:"matches_lost"`
	Version       int64     `bun:"version,notnull" json:"version"`
	UpdatedAt     time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

// MatchRecord is the immutable record of one registered outcome.
type MatchRecord struct {
	bun.BaseModel `bun:"table:match_records,alias:mr"`

	ID             int64      `bun:"id,pk,autoincrement" json:"id"`
	GroupID        string     `bun:"group_id,notnull" json:"group_id"`
	ParticipantA   string     `bun:"participant_a,notnull" json:"participant_a"`
	ParticipantB   string     `bun:"participant_b,notnull" json:"participant_b"`
	ScoreA         int        `bun:"score_a,notnull" json:"score_a"`
	ScoreB         int        `bun:"score_b,notnull" json:"score_b"`
	RatingABefore  int        `bun:"rating_a_before,notnull" json:"rating_a_before"`
	RatingBBefore  int        `bun:"rating_b_before,notnull" json:"rating_b_before"`
	RatingAAfter   int        `bun:"rating_a_after,notnull" json:"rating_a_after"`
	RatingBAfter   int        `bun:"rating_b_after,notnull" json:"rating_b_after"`
	IdempotencyKey string     `bun:"idempotency_key,notnull,unique" json:"idempotency_key"`
	CreatedAt      time.Time  `bun:"created_at,notnull" json:"created_at"`
	IsUndone       bool       `bun:"is_undone,notnull" json:"is_undone"`
	UndoneAt       *time.Time `bun:"undone_at" json:"undone_at,omitempty"`
	UndoneBy       *string    `bun:"undone_by" json:"undone_by,omitempty"`
}

// DeltaA is the rating change applied to participant A.
func (m *MatchRecord) DeltaA() int {
	return m.RatingAAfter - m.RatingABefore
}

// DeltaB is the rating change applied to participant B.
func (m *MatchRecord) DeltaB() int {
	return m.RatingBAfter - m.RatingBBefore
}

// HistoryEntry is an append-only audit row of one rating change.
type HistoryEntry struct {
	bun.BaseModel `bun:"table:rating_history,alias:rh"`

	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	MatchID       int64     `bun:"match_id,notnull" json:"match_id"`
	ParticipantID string    `bun:"participant_id,notnull" json:"participant_id"`
	RatingBefore  int       `bun:"rating_before,notnull" json:"rating_before"`
	RatingAfter   int       `bun:"rating_after,notnull" json:"rating_after"`
	Delta         int       `bun:"delta,notnull" json:"delta"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
}

// Outcome is a match result to register.
type Outcome struct {
	GroupID        string `validate:"required,notblank"`
	ParticipantA   string `validate:"required,notblank"`
	ParticipantB   string `validate:"required,notblank,nefield=ParticipantA"`
	ScoreA         int    `validate:"gte=0"`
	ScoreB         int    `validate:"gte=0"`
	EventID        string
	IdempotencyKey string `validate:"required,max=255"`
}

// MatchResult is what Register returns. Duplicate is set when the idempotency
// key had already been applied and Match is the earlier record.
type MatchResult struct {
	Match     *MatchRecord
	Duplicate bool
	Attempts  int
}

// Config tunes the registrar.
type Config struct {
	DefaultRating int
}

// MaxIdempotencyKeyLength bounds keys to the width of the unique column.
const MaxIdempotencyKeyLength = 255

// DefaultRankingLimit is used when a caller asks for a non-positive limit.
const DefaultRankingLimit = 10
