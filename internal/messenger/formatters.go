package messenger

import (
	"fmt"
	"strings"

	"github.com/mauv0809/rating-ladder/internal/rating"
	"github.com/slack-go/slack"
)

// Mention renders a user id as a Slack mention.
func Mention(userID string) string {
	return "<@" + userID + ">"
}

// FormatRankings renders the top of a ladder.
func FormatRankings(records []rating.RatingRecord) slack.Message {
	blocks := make([]slack.Block, 0, len(records)+1)

	headerText := slack.NewTextBlockObject("plain_text", ":trophy: Ladder :trophy:", true, false)
	blocks = append(blocks, slack.NewHeaderBlock(headerText))

	if len(records) == 0 {
		blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("plain_text", "Nobody has joined yet. Type !join to enter the ladder.", true, false), nil, nil))
		msg := slack.NewBlockMessage(blocks...)
		msg.Text = "Ladder is empty"
		return msg
	}

	var fallback strings.Builder
	for i, rec := range records {
		rank := i + 1
		var medal string
		switch rank {
		case 1:
			medal = ":first_place_medal:"
		case 2:
			medal = ":second_place_medal:"
		case 3:
			medal = ":third_place_medal:"
		}

		line := fmt.Sprintf("%d. %s %s *%d*\n> Played: %d | Won: %d | Lost: %d",
			rank,
			medal,
			Mention(rec.ParticipantID),
			rec.CurrentRating,
			rec.MatchesPlayed,
			rec.MatchesWon,
			rec.MatchesLost,
		)
		blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("mrkdwn", line, false, false), nil, nil))
		fmt.Fprintf(&fallback, "%d. %s %d\n", rank, Mention(rec.ParticipantID), rec.CurrentRating)
	}

	msg := slack.NewBlockMessage(blocks...)
	msg.Text = fallback.String()
	return msg
}

// FormatMatchResult describes a registered (or already registered) match.
func FormatMatchResult(res *rating.MatchResult) string {
	m := res.Match
	if res.Duplicate {
		return fmt.Sprintf("This match was already recorded (#%d).", m.ID)
	}
	return fmt.Sprintf("Match #%d recorded: %s %d - %d %s\n%s %d → %d (%s)\n%s %d → %d (%s)",
		m.ID,
		Mention(m.ParticipantA), m.ScoreA, m.ScoreB, Mention(m.ParticipantB),
		Mention(m.ParticipantA), m.RatingABefore, m.RatingAAfter, signed(m.DeltaA()),
		Mention(m.ParticipantB), m.RatingBBefore, m.RatingBAfter, signed(m.DeltaB()),
	)
}

// FormatUndo describes a reverted match.
func FormatUndo(m *rating.MatchRecord) string {
	return fmt.Sprintf("Match #%d between %s and %s was undone. Ratings restored to %d and %d.",
		m.ID, Mention(m.ParticipantA), Mention(m.ParticipantB), m.RatingABefore, m.RatingBBefore)
}

// FormatEnrolled greets a participant joining the ladder.
func FormatEnrolled(rec *rating.RatingRecord, created bool) string {
	if !created {
		return fmt.Sprintf("%s is already on the ladder with a rating of %d.", Mention(rec.ParticipantID), rec.CurrentRating)
	}
	return fmt.Sprintf("Welcome to the ladder, %s! Starting rating: %d.", Mention(rec.ParticipantID), rec.CurrentRating)
}

// HelpText lists the chat commands.
const HelpText = "*Ladder commands*\n" +
	"`!match @player1 @player2 <score1> <score2>` record a match result\n" +
	"`!join` join this channel's ladder\n" +
	"`!ranking` show the top 10\n" +
	"`!undo` revert the last match (admins only)\n" +
	"`!help` show this message"

func signed(n int) string {
	if n > 0 {
		return fmt.Sprintf("+%d", n)
	}
	return fmt.Sprintf("%d", n)
}
