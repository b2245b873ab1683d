package messenger

import (
	"context"
	"fmt"
	"sync"

	"github.com/slack-go/slack"
)

var _ Messenger = (*Recorder)(nil)

// SentMessage is one recorded Send or Post.
type SentMessage struct {
	ChatID    string
	MessageID string
	Text      string
	Blocks    []slack.Block
}

// Reaction is one recorded React call.
type Reaction struct {
	ChatID    string
	MessageID string
	Emoji     string
}

// Recorder is an in-memory Messenger for tests and local runs.
// It is safe for concurrent use.
type Recorder struct {
	mu        sync.Mutex
	seq       int
	messages  []SentMessage
	reactions []Reaction
	statuses  map[string]string

	// SendErr, when set, is returned by Send and Post.
	SendErr error
}

// NewRecorder creates an empty Recorder. Unknown users are plain members.
func NewRecorder() *Recorder {
	return &Recorder{statuses: make(map[string]string)}
}

// SetMemberStatus sets the status GetChatMember reports for userID.
func (r *Recorder) SetMemberStatus(userID, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[userID] = status
}

func (r *Recorder) Send(ctx context.Context, chatID, text string) (string, error) {
	return r.record(SentMessage{ChatID: chatID, Text: text})
}

func (r *Recorder) Post(ctx context.Context, chatID string, msg slack.Message) (string, error) {
	return r.record(SentMessage{ChatID: chatID, Text: msg.Text, Blocks: msg.Blocks.BlockSet})
}

func (r *Recorder) record(m SentMessage) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.SendErr != nil {
		return "", r.SendErr
	}
	r.seq++
	m.MessageID = fmt.Sprintf("1700000000.%06d", r.seq)
	r.messages = append(r.messages, m)
	return m.MessageID, nil
}

func (r *Recorder) React(ctx context.Context, chatID, messageID, emoji string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reactions = append(r.reactions, Reaction{ChatID: chatID, MessageID: messageID, Emoji: emoji})
	return nil
}

func (r *Recorder) GetChatMember(ctx context.Context, chatID, userID string) (Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	status, ok := r.statuses[userID]
	if !ok {
		status = StatusMember
	}
	return Member{UserID: userID, Status: status}, nil
}

// Messages returns every message sent so far.
func (r *Recorder) Messages() []SentMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]SentMessage(nil), r.messages...)
}

// Reactions returns every reaction added so far.
func (r *Recorder) Reactions() []Reaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Reaction(nil), r.reactions...)
}

// Emojis returns the emojis added to one message, in order.
func (r *Recorder) Emojis(chatID, messageID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, re := range r.reactions {
		if re.ChatID == chatID && re.MessageID == messageID {
			out = append(out, re.Emoji)
		}
	}
	return out
}

// Reset clears all recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = nil
	r.reactions = nil
}
