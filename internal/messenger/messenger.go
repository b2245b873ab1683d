package messenger

import (
	"context"

	"github.com/slack-go/slack"
)

// Member statuses reported by GetChatMember.
const (
	StatusCreator       = "creator"
	StatusAdministrator = "administrator"
	StatusMember        = "member"
)

// Reactions used to acknowledge commands.
const (
	ReactionPending = "hourglass_flowing_sand"
	ReactionSuccess = "+1"
	ReactionFailure = "-1"
)

// Member is a chat participant as seen by the messaging platform.
type Member struct {
	UserID string
	Name   string
	Status string
}

// IsAdmin reports whether the member may run privileged commands.
func (m Member) IsAdmin() bool {
	return m.Status == StatusAdministrator || m.Status == StatusCreator
}

// Messenger is the outbound side of the chat integration.
// This decouples the rest of the application from the specific provider (e.g., Slack).
type Messenger interface {
	// Send posts plain text and returns the new message id.
	Send(ctx context.Context, chatID, text string) (string, error)
	// Post sends a block message and returns the new message id.
	Post(ctx context.Context, chatID string, msg slack.Message) (string, error)
	React(ctx context.Context, chatID, messageID, emoji string) error
	GetChatMember(ctx context.Context, chatID, userID string) (Member, error)
}
