package events

import (
	"context"
	"time"
)

// EventType names a domain event. It doubles as the topic name.
type EventType string

const (
	EventMatchRegistered     EventType = "match-registered"
	EventMatchUndone         EventType = "match-undone"
	EventParticipantEnrolled EventType = "participant-enrolled"
)

// Publisher fans domain events out to whoever listens.
type Publisher interface {
	Publish(ctx context.Context, eventType EventType, payload any) error
	Close() error
}

// MatchRegistered is published after a new match commits.
type MatchRegistered struct {
	MatchID        int64     `msgpack:"match_id"`
	GroupID        string    `msgpack:"group_id"`
	ParticipantA   string    `msgpack:"participant_a"`
	ParticipantB   string    `msgpack:"participant_b"`
	ScoreA         int       `msgpack:"score_a"`
	ScoreB         int       `msgpack:"score_b"`
	DeltaA         int       `msgpack:"delta_a"`
	DeltaB         int       `msgpack:"delta_b"`
	IdempotencyKey string    `msgpack:"idempotency_key"`
	RegisteredAt   time.Time `msgpack:"registered_at"`
}

// MatchUndone is published after an admin reverts a match.
type MatchUndone struct {
	MatchID  int64     `msgpack:"match_id"`
	GroupID  string    `msgpack:"group_id"`
	UndoneBy string    `msgpack:"undone_by"`
	UndoneAt time.Time `msgpack:"undone_at"`
}

// ParticipantEnrolled is published when someone joins a ladder.
type ParticipantEnrolled struct {
	GroupID       string `msgpack:"group_id"`
	ParticipantID string `msgpack:"participant_id"`
	Rating        int    `msgpack:"rating"`
}
