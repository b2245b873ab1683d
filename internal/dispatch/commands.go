package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/rating-ladder/internal/events"
	"github.com/mauv0809/rating-ladder/internal/messenger"
	"github.com/mauv0809/rating-ladder/internal/rating"
)

const matchUsage = "Usage: !match @player1 @player2 <score1> <score2>"

var errUsage = errors.New(matchUsage)

// parseCommand splits "!name arg..." into a lower-cased name and its arguments.
func parseCommand(text string) (string, []string) {
	fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(text), CommandPrefix))
	if len(fields) == 0 {
		return "", nil
	}
	return strings.ToLower(fields[0]), fields[1:]
}

// parseMention extracts the user id from <@U123> or <@U123|name>.
func parseMention(s string) (string, bool) {
	if !strings.HasPrefix(s, "<@") || !strings.HasSuffix(s, ">") {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(s, "<@"), ">")
	id, _, _ = strings.Cut(id, "|")
	return id, id != ""
}

// parseOutcome reads "<@A> <@B> scoreA scoreB".
func parseOutcome(msg chatMessage, args []string) (rating.Outcome, error) {
	if len(args) != 4 {
		return rating.Outcome{}, errUsage
	}
	a, okA := parseMention(args[0])
	b, okB := parseMention(args[1])
	if !okA || !okB {
		return rating.Outcome{}, errUsage
	}
	scoreA, errA := strconv.Atoi(args[2])
	scoreB, errB := strconv.Atoi(args[3])
	if errA != nil || errB != nil {
		return rating.Outcome{}, errUsage
	}
	return rating.Outcome{
		GroupID:        msg.channel,
		ParticipantA:   a,
		ParticipantB:   b,
		ScoreA:         scoreA,
		ScoreB:         scoreB,
		EventID:        msg.ts,
		IdempotencyKey: Key(msg.channel, msg.ts),
	}, nil
}

func (d *Dispatcher) match(ctx context.Context, msg chatMessage, args []string) {
	outcome, err := parseOutcome(msg, args)
	if err != nil {
		d.react(ctx, msg, messenger.ReactionFailure)
		d.reply(ctx, msg, matchUsage)
		return
	}

	d.react(ctx, msg, messenger.ReactionPending)
	res, err := d.service.Register(ctx, outcome)
	if err != nil {
		log.Warn("Match registration failed", "key", outcome.IdempotencyKey, "error", err)
		d.react(ctx, msg, messenger.ReactionFailure)
		d.reply(ctx, msg, errorReply(err))
		return
	}

	d.react(ctx, msg, messenger.ReactionSuccess)
	d.reply(ctx, msg, messenger.FormatMatchResult(res))
	if res.Duplicate {
		return
	}
	m := res.Match
	d.publish(ctx, events.EventMatchRegistered, events.MatchRegistered{
		MatchID:        m.ID,
		GroupID:        m.GroupID,
		ParticipantA:   m.ParticipantA,
		ParticipantB:   m.ParticipantB,
		ScoreA:         m.ScoreA,
		ScoreB:         m.ScoreB,
		DeltaA:         m.DeltaA(),
		DeltaB:         m.DeltaB(),
		IdempotencyKey: m.IdempotencyKey,
		RegisteredAt:   m.CreatedAt,
	})
}

func (d *Dispatcher) join(ctx context.Context, msg chatMessage) {
	rec, created, err := d.service.Enroll(ctx, msg.channel, msg.user)
	if err != nil {
		d.react(ctx, msg, messenger.ReactionFailure)
		d.reply(ctx, msg, errorReply(err))
		return
	}
	d.reply(ctx, msg, messenger.FormatEnrolled(rec, created))
	if created {
		d.publish(ctx, events.EventParticipantEnrolled, events.ParticipantEnrolled{
			GroupID:       rec.GroupID,
			ParticipantID: rec.ParticipantID,
			Rating:        rec.CurrentRating,
		})
	}
}

func (d *Dispatcher) ranking(ctx context.Context, msg chatMessage) {
	records, err := d.service.Rankings(ctx, msg.channel, d.rankingLimit)
	if err != nil {
		d.reply(ctx, msg, errorReply(err))
		return
	}
	if _, err := d.messenger.Post(ctx, msg.channel, messenger.FormatRankings(records)); err != nil {
		log.Error("Failed to post rankings", "channel", msg.channel, "error", err)
	}
}

func (d *Dispatcher) undo(ctx context.Context, msg chatMessage) {
	member, err := d.messenger.GetChatMember(ctx, msg.channel, msg.user)
	if err != nil {
		log.Error("Failed to check admin status", "user", msg.user, "error", err)
		d.react(ctx, msg, messenger.ReactionFailure)
		d.reply(ctx, msg, "Could not verify your permissions. Please try again later.")
		return
	}
	if !member.IsAdmin() {
		d.react(ctx, msg, messenger.ReactionFailure)
		d.reply(ctx, msg, "Only channel admins can undo matches.")
		return
	}

	m, err := d.service.Undo(ctx, msg.channel, msg.user)
	if err != nil {
		d.react(ctx, msg, messenger.ReactionFailure)
		if errors.Is(err, rating.ErrNotFound) {
			d.reply(ctx, msg, "There is no match to undo.")
			return
		}
		d.reply(ctx, msg, errorReply(err))
		return
	}

	d.react(ctx, msg, messenger.ReactionSuccess)
	d.reply(ctx, msg, messenger.FormatUndo(m))
	undoneAt := m.CreatedAt
	if m.UndoneAt != nil {
		undoneAt = *m.UndoneAt
	}
	d.publish(ctx, events.EventMatchUndone, events.MatchUndone{
		MatchID:  m.ID,
		GroupID:  m.GroupID,
		UndoneBy: msg.user,
		UndoneAt: undoneAt,
	})
}

// errorReply turns a rating error into a chat message.
func errorReply(err error) string {
	switch {
	case errors.Is(err, rating.ErrValidation) && errors.Is(err, rating.ErrNotFound):
		return "Both players need to !join the ladder before playing."
	case errors.Is(err, rating.ErrValidation):
		return fmt.Sprintf("That result can't be recorded: %s.", validationDetail(err))
	case errors.Is(err, rating.ErrConflict):
		return "The ladder is busy right now. Please try again in a moment."
	default:
		return "Something went wrong while saving. Please try again later."
	}
}

func validationDetail(err error) string {
	msg := err.Error()
	prefix := rating.ErrValidation.Error() + ": "
	return strings.TrimPrefix(msg, prefix)
}
