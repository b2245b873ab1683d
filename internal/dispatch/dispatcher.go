// Package dispatch turns Slack Events API deliveries into ladder commands.
package dispatch

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/rating-ladder/internal/events"
	"github.com/mauv0809/rating-ladder/internal/messenger"
	"github.com/mauv0809/rating-ladder/internal/metrics"
	"github.com/mauv0809/rating-ladder/internal/rating"
	"github.com/slack-go/slack/slackevents"
)

// CommandPrefix starts every text command.
const CommandPrefix = "!"

// Dispatcher is the webhook callback. It decodes events, runs commands and
// reports outcomes back to the chat.
type Dispatcher struct {
	service      rating.Service
	messenger    messenger.Messenger
	publisher    events.Publisher
	metrics      metrics.Metrics
	timeout      time.Duration
	rankingLimit int
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithTimeout bounds the work done for a single event.
func WithTimeout(d time.Duration) Option {
	return func(dp *Dispatcher) {
		dp.timeout = d
	}
}

// WithRankingLimit sets how many participants !ranking shows.
func WithRankingLimit(n int) Option {
	return func(dp *Dispatcher) {
		dp.rankingLimit = n
	}
}

// New creates a Dispatcher.
func New(service rating.Service, m messenger.Messenger, publisher events.Publisher, metrics metrics.Metrics, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		service:      service,
		messenger:    m,
		publisher:    publisher,
		metrics:      metrics,
		timeout:      25 * time.Second,
		rankingLimit: rating.DefaultRankingLimit,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Key derives the idempotency key of a chat-triggered registration.
func Key(groupID, eventID string) string {
	return groupID + "_" + eventID
}

// chatMessage is the part of a message or mention event commands need.
type chatMessage struct {
	channel string
	user    string
	ts      string
	text    string
}

// Handle processes one webhook body. It returns false only when the body is
// not JSON; domain failures are reported in the chat.
func (d *Dispatcher) Handle(body []byte) bool {
	ev, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		if json.Valid(body) {
			log.Debug("Ignoring unsupported event", "error", err)
			return true
		}
		log.Warn("Failed to decode webhook body", "error", err)
		return false
	}

	switch ev.Type {
	case slackevents.URLVerification:
		log.Info("Received URL verification challenge")
		return true
	case slackevents.CallbackEvent:
	default:
		log.Debug("Ignoring event", "type", ev.Type)
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	switch inner := ev.InnerEvent.Data.(type) {
	case *slackevents.MessageEvent:
		if inner.SubType != "" || inner.BotID != "" {
			return true
		}
		text := strings.TrimSpace(inner.Text)
		if !strings.HasPrefix(text, CommandPrefix) {
			return true
		}
		d.run(ctx, chatMessage{channel: inner.Channel, user: inner.User, ts: inner.TimeStamp, text: text})
	case *slackevents.AppMentionEvent:
		if inner.BotID != "" {
			return true
		}
		text := stripMention(inner.Text)
		if !strings.HasPrefix(text, CommandPrefix) {
			text = CommandPrefix + text
		}
		d.run(ctx, chatMessage{channel: inner.Channel, user: inner.User, ts: inner.TimeStamp, text: text})
	default:
		log.Debug("Ignoring inner event", "type", ev.InnerEvent.Type)
	}
	return true
}

func (d *Dispatcher) run(ctx context.Context, msg chatMessage) {
	name, args := parseCommand(msg.text)
	if name == "" {
		return
	}
	log.Info("Handling command", "command", name, "channel", msg.channel, "user", msg.user, "ts", msg.ts)

	switch name {
	case "match":
		d.match(ctx, msg, args)
	case "join":
		d.join(ctx, msg)
	case "ranking", "rankings", "leaderboard":
		name = "ranking"
		d.ranking(ctx, msg)
	case "undo":
		d.undo(ctx, msg)
	case "help":
		d.reply(ctx, msg, messenger.HelpText)
	default:
		name = "unknown"
		d.reply(ctx, msg, "Unknown command. Type !help for the list of commands.")
	}
	d.metrics.IncCommands(name)
}

func (d *Dispatcher) reply(ctx context.Context, msg chatMessage, text string) {
	if _, err := d.messenger.Send(ctx, msg.channel, text); err != nil {
		log.Error("Failed to reply", "channel", msg.channel, "error", err)
	}
}

func (d *Dispatcher) react(ctx context.Context, msg chatMessage, emoji string) {
	if err := d.messenger.React(ctx, msg.channel, msg.ts, emoji); err != nil {
		log.Warn("Failed to react", "channel", msg.channel, "ts", msg.ts, "emoji", emoji, "error", err)
	}
}

func (d *Dispatcher) publish(ctx context.Context, eventType events.EventType, payload any) {
	if err := d.publisher.Publish(ctx, eventType, payload); err != nil {
		log.Error("Failed to publish event", "type", eventType, "error", err)
	}
}

func stripMention(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "<@") {
		if end := strings.Index(text, ">"); end >= 0 {
			text = text[end+1:]
		}
	}
	return strings.TrimSpace(text)
}
