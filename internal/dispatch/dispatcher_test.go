package dispatch

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/mauv0809/rating-ladder/internal/events"
	"github.com/mauv0809/rating-ladder/internal/messenger"
	"github.com/mauv0809/rating-ladder/internal/metrics"
	"github.com/mauv0809/rating-ladder/internal/rating"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	d         *Dispatcher
	service   *rating.MockService
	recorder  *messenger.Recorder
	publisher *events.Mock
	metrics   *metrics.Mock
}

func newFixture() *fixture {
	f := &fixture{
		service:   rating.NewMockService(),
		recorder:  messenger.NewRecorder(),
		publisher: events.NewMock(),
		metrics:   metrics.NewMock(),
	}
	f.d = New(f.service, f.recorder, f.publisher, f.metrics, WithTimeout(5*time.Second))
	return f
}

func messageEvent(user, text, ts string) []byte {
	return []byte(fmt.Sprintf(`{
		"token": "tok",
		"team_id": "T1",
		"api_app_id": "A1",
		"type": "event_callback",
		"event_id": "Ev1",
		"event_time": 1700000000,
		"event": {"type": "message", "channel": "C1", "channel_type": "channel", "user": %q, "text": %q, "ts": %q}
	}`, user, text, ts))
}

func mentionEvent(user, text, ts string) []byte {
	return []byte(fmt.Sprintf(`{
		"token": "tok",
		"team_id": "T1",
		"api_app_id": "A1",
		"type": "event_callback",
		"event_id": "Ev2",
		"event_time": 1700000000,
		"event": {"type": "app_mention", "channel": "C1", "user": %q, "text": %q, "ts": %q}
	}`, user, text, ts))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "C1_1700000000.000100", Key("C1", "1700000000.000100"))
}

func TestHandle_EnvelopeHandling(t *testing.T) {
	f := newFixture()

	assert.True(t, f.d.Handle([]byte(`{"token":"tok","challenge":"abc","type":"url_verification"}`)))
	assert.False(t, f.d.Handle([]byte(`not json`)))
	assert.True(t, f.d.Handle([]byte(`{"type":"event_callback","event":{"type":"something_new"}}`)))
	assert.True(t, f.d.Handle([]byte(`{"type":"app_rate_limited"}`)))

	assert.Empty(t, f.service.RegisterCalls)
	assert.Empty(t, f.recorder.Messages())
}

func TestHandle_MatchRegisters(t *testing.T) {
	f := newFixture()
	f.service.RegisterFunc = func(ctx context.Context, o rating.Outcome) (*rating.MatchResult, error) {
		return &rating.MatchResult{Match: &rating.MatchRecord{
			ID: 11, GroupID: o.GroupID, ParticipantA: o.ParticipantA, ParticipantB: o.ParticipantB,
			ScoreA: o.ScoreA, ScoreB: o.ScoreB, IdempotencyKey: o.IdempotencyKey,
			RatingABefore: 1500, RatingAAfter: 1516, RatingBBefore: 1500, RatingBAfter: 1484,
		}, Attempts: 1}, nil
	}

	ok := f.d.Handle(messageEvent("U9", "!match <@U1> <@U2|bob> 3 1", "1700.0001"))
	require.True(t, ok)

	require.Len(t, f.service.RegisterCalls, 1)
	o := f.service.RegisterCalls[0]
	assert.Equal(t, rating.Outcome{
		GroupID: "C1", ParticipantA: "U1", ParticipantB: "U2", ScoreA: 3, ScoreB: 1,
		EventID: "1700.0001", IdempotencyKey: "C1_1700.0001",
	}, o)

	assert.Equal(t, []string{messenger.ReactionPending, messenger.ReactionSuccess}, f.recorder.Emojis("C1", "1700.0001"))
	msgs := f.recorder.Messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, "Match #11 recorded")

	published := f.publisher.Calls(events.EventMatchRegistered)
	require.Len(t, published, 1)
	payload := published[0].Payload.(events.MatchRegistered)
	assert.Equal(t, int64(11), payload.MatchID)
	assert.Equal(t, 16, payload.DeltaA)
	assert.Equal(t, 1, f.metrics.Commands("match"))
}

func TestHandle_DuplicateMatchIsNotPublished(t *testing.T) {
	f := newFixture()
	f.service.RegisterFunc = func(ctx context.Context, o rating.Outcome) (*rating.MatchResult, error) {
		return &rating.MatchResult{Match: &rating.MatchRecord{ID: 11}, Duplicate: true}, nil
	}

	require.True(t, f.d.Handle(messageEvent("U9", "!match <@U1> <@U2> 3 1", "1700.0001")))
	assert.Empty(t, f.publisher.PublishCalls)
	assert.Equal(t, "This match was already recorded (#11).", f.recorder.Messages()[0].Text)
	assert.Equal(t, []string{messenger.ReactionPending, messenger.ReactionSuccess}, f.recorder.Emojis("C1", "1700.0001"))
}

func TestHandle_MatchUsageErrors(t *testing.T) {
	for _, text := range []string{
		"!match",
		"!match <@U1> <@U2> 3",
		"!match U1 U2 3 1",
		"!match <@U1> <@U2> three 1",
	} {
		t.Run(text, func(t *testing.T) {
			f := newFixture()
			require.True(t, f.d.Handle(messageEvent("U9", text, "1.1")))
			assert.Empty(t, f.service.RegisterCalls)
			assert.Equal(t, []string{messenger.ReactionFailure}, f.recorder.Emojis("C1", "1.1"))
			assert.Equal(t, matchUsage, f.recorder.Messages()[0].Text)
		})
	}
}

func TestHandle_MatchErrorsAreReported(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		reply string
	}{
		{"unknown participant", fmt.Errorf("%w: unknown participant: %w", rating.ErrValidation, rating.ErrNotFound), "Both players need to !join the ladder before playing."},
		{"self match", fmt.Errorf("%w: a participant cannot play against themselves", rating.ErrValidation), "That result can't be recorded: a participant cannot play against themselves."},
		{"conflict", rating.ErrConflict, "The ladder is busy right now. Please try again in a moment."},
		{"storage", fmt.Errorf("%w: disk full", rating.ErrUnavailable), "Something went wrong while saving. Please try again later."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.service.RegisterFunc = func(ctx context.Context, o rating.Outcome) (*rating.MatchResult, error) {
				return nil, tt.err
			}

			assert.True(t, f.d.Handle(messageEvent("U9", "!match <@U1> <@U2> 3 1", "2.2")))
			assert.Equal(t, []string{messenger.ReactionPending, messenger.ReactionFailure}, f.recorder.Emojis("C1", "2.2"))
			assert.Equal(t, tt.reply, f.recorder.Messages()[0].Text)
			assert.Empty(t, f.publisher.PublishCalls)
		})
	}
}

func TestHandle_IgnoresBotsAndChatter(t *testing.T) {
	f := newFixture()

	bot := []byte(`{"type":"event_callback","event":{"type":"message","channel":"C1","bot_id":"B1","text":"!match <@U1> <@U2> 1 0","ts":"3.3"}}`)
	edited := []byte(`{"type":"event_callback","event":{"type":"message","subtype":"message_changed","channel":"C1","text":"!join","ts":"3.4"}}`)

	assert.True(t, f.d.Handle(bot))
	assert.True(t, f.d.Handle(edited))
	assert.True(t, f.d.Handle(messageEvent("U1", "good game everyone", "3.5")))

	assert.Empty(t, f.service.RegisterCalls)
	assert.Empty(t, f.service.EnrollCalls)
	assert.Empty(t, f.recorder.Messages())
}

func TestHandle_MentionRanking(t *testing.T) {
	f := newFixture()
	f.service.RankingsFunc = func(ctx context.Context, groupID string, limit int) ([]rating.RatingRecord, error) {
		return []rating.RatingRecord{{ParticipantID: "U1", CurrentRating: 1516}}, nil
	}

	require.True(t, f.d.Handle(mentionEvent("U1", "<@UBOT> ranking", "4.4")))
	require.Len(t, f.service.RankingsCalls, 1)
	assert.Equal(t, "C1", f.service.RankingsCalls[0].GroupID)
	assert.Equal(t, rating.DefaultRankingLimit, f.service.RankingsCalls[0].Limit)

	msgs := f.recorder.Messages()
	require.Len(t, msgs, 1)
	assert.NotEmpty(t, msgs[0].Blocks)
	assert.Equal(t, 1, f.metrics.Commands("ranking"))
}

func TestHandle_Join(t *testing.T) {
	f := newFixture()
	f.service.EnrollFunc = func(ctx context.Context, groupID, participantID string) (*rating.RatingRecord, bool, error) {
		return &rating.RatingRecord{GroupID: groupID, ParticipantID: participantID, CurrentRating: 1500}, true, nil
	}

	require.True(t, f.d.Handle(messageEvent("U5", "!join", "5.5")))
	require.Len(t, f.service.EnrollCalls, 1)
	assert.Equal(t, "U5", f.service.EnrollCalls[0].ParticipantID)
	assert.Contains(t, f.recorder.Messages()[0].Text, "Welcome to the ladder")
	assert.Len(t, f.publisher.Calls(events.EventParticipantEnrolled), 1)
}

func TestHandle_UndoRequiresAdmin(t *testing.T) {
	f := newFixture()

	require.True(t, f.d.Handle(messageEvent("U5", "!undo", "6.6")))
	assert.Empty(t, f.service.UndoCalls)
	assert.Equal(t, "Only channel admins can undo matches.", f.recorder.Messages()[0].Text)
	assert.Equal(t, []string{messenger.ReactionFailure}, f.recorder.Emojis("C1", "6.6"))
}

func TestHandle_UndoByAdmin(t *testing.T) {
	f := newFixture()
	f.recorder.SetMemberStatus("UADMIN", messenger.StatusAdministrator)
	f.service.UndoFunc = func(ctx context.Context, groupID, requestedBy string) (*rating.MatchRecord, error) {
		at := time.Now()
		return &rating.MatchRecord{ID: 4, GroupID: groupID, ParticipantA: "U1", ParticipantB: "U2", RatingABefore: 1500, RatingBBefore: 1500, IsUndone: true, UndoneAt: &at}, nil
	}

	require.True(t, f.d.Handle(messageEvent("UADMIN", "!undo", "7.7")))
	require.Len(t, f.service.UndoCalls, 1)
	assert.Equal(t, "UADMIN", f.service.UndoCalls[0].RequestedBy)
	assert.Contains(t, f.recorder.Messages()[0].Text, "Match #4")
	assert.Equal(t, []string{messenger.ReactionSuccess}, f.recorder.Emojis("C1", "7.7"))

	undone := f.publisher.Calls(events.EventMatchUndone)
	require.Len(t, undone, 1)
	assert.Equal(t, "UADMIN", undone[0].Payload.(events.MatchUndone).UndoneBy)
}

func TestHandle_UndoNothing(t *testing.T) {
	f := newFixture()
	f.recorder.SetMemberStatus("UOWNER", messenger.StatusCreator)

	require.True(t, f.d.Handle(messageEvent("UOWNER", "!undo", "8.8")))
	assert.Equal(t, "There is no match to undo.", f.recorder.Messages()[0].Text)
	assert.Empty(t, f.publisher.PublishCalls)
}

func TestHandle_HelpAndUnknown(t *testing.T) {
	f := newFixture()

	require.True(t, f.d.Handle(messageEvent("U1", "!help", "9.1")))
	require.True(t, f.d.Handle(messageEvent("U1", "!dance", "9.2")))

	msgs := f.recorder.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, messenger.HelpText, msgs[0].Text)
	assert.Contains(t, msgs[1].Text, "Unknown command")
	assert.Equal(t, 1, f.metrics.Commands("unknown"))
}

func TestParseMention(t *testing.T) {
	tests := []struct {
		in   string
		id   string
		isOK bool
	}{
		{"<@U123>", "U123", true},
		{"<@U123|alice>", "U123", true},
		{"<@>", "", false},
		{"@U123", "", false},
		{"<#C123>", "", false},
	}
	for _, tt := range tests {
		id, ok := parseMention(tt.in)
		assert.Equal(t, tt.isOK, ok, tt.in)
		assert.Equal(t, tt.id, id, tt.in)
	}
}
