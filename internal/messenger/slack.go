package messenger

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/rating-ladder/internal/metrics"
	"github.com/slack-go/slack"
)

// slackClient is an interface that contains the methods from the slack.Client that we use.
// This allows for easy mocking in tests.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	AddReactionContext(ctx context.Context, name string, item slack.ItemRef) error
	GetUserInfoContext(ctx context.Context, user string) (*slack.User, error)
}

var _ Messenger = (*Slack)(nil)

// Slack sends messages and reactions through the Slack Web API.
type Slack struct {
	api     slackClient
	metrics metrics.Metrics
	timeout time.Duration
}

// NewSlack creates a Slack messenger authenticated with a bot token.
func NewSlack(token string, metrics metrics.Metrics) *Slack {
	return NewSlackWithAPI(slack.New(token), metrics)
}

// NewSlackWithAPI creates a Slack messenger with a specific client instance.
// Useful for tests that need to intercept API calls.
func NewSlackWithAPI(api slackClient, metrics metrics.Metrics) *Slack {
	return &Slack{
		api:     api,
		metrics: metrics,
		timeout: 10 * time.Second,
	}
}

func (s *Slack) Send(ctx context.Context, chatID, text string) (string, error) {
	return s.post(ctx, chatID, slack.MsgOptionText(text, false))
}

func (s *Slack) Post(ctx context.Context, chatID string, msg slack.Message) (string, error) {
	return s.post(ctx, chatID,
		slack.MsgOptionBlocks(msg.Blocks.BlockSet...),
		slack.MsgOptionText(msg.Text, false),
	)
}

func (s *Slack) post(ctx context.Context, chatID string, options ...slack.MsgOption) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	channelID, timestamp, err := s.api.PostMessageContext(ctx, chatID, options...)
	if err != nil {
		s.metrics.IncMessagesFailed()
		log.Error("Failed to send Slack message", "error", err, "channel", chatID)
		return "", fmt.Errorf("failed to post message: %w", err)
	}

	s.metrics.IncMessagesSent()
	log.Debug("Successfully sent Slack message", "channel", channelID, "timestamp", timestamp)
	return timestamp, nil
}

func (s *Slack) React(ctx context.Context, chatID, messageID, emoji string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.api.AddReactionContext(ctx, emoji, slack.NewRefToMessage(chatID, messageID)); err != nil {
		log.Warn("Failed to add reaction", "error", err, "channel", chatID, "ts", messageID, "emoji", emoji)
		return fmt.Errorf("failed to add reaction %s: %w", emoji, err)
	}
	return nil
}

// GetChatMember maps workspace roles onto member statuses. Slack has no
// per-channel admins, so chatID is ignored.
func (s *Slack) GetChatMember(ctx context.Context, chatID, userID string) (Member, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		return Member{}, fmt.Errorf("failed to look up user %s: %w", userID, err)
	}

	m := Member{UserID: user.ID, Name: user.Name, Status: StatusMember}
	switch {
	case user.IsOwner || user.IsPrimaryOwner:
		m.Status = StatusCreator
	case user.IsAdmin:
		m.Status = StatusAdministrator
	}
	return m, nil
}
