// Package collector solicits and collects one answer per question per
// member over the chat gateway.
//
// For freeform and rating questions it sends the prompt and suspends until
// the member replies in the same channel or the wait times out. For
// habit-checklist questions it walks the habits one at a time, attaching
// yes/no reaction affordances and waiting for the member to pick one. Every
// habit is attempted regardless of earlier outcomes; a timeout or fault on
// one habit only leaves that habit's value absent.
package collector

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/journalpipe/journalpipe/internal/gateway"
	"github.com/journalpipe/journalpipe/internal/models"
	"github.com/journalpipe/journalpipe/internal/recurrence"
)

// Reaction affordances attached to each habit message.
const (
	ReactionDone    = "✅"
	ReactionSkipped = "❌"
)

// DefaultTimeout is the deployment-wide wait window for replies and reactions.
const DefaultTimeout = 5 * time.Minute

// NoResponseNotice is sent when a member lets a question's wait expire.
const NoResponseNotice = "No response recorded for that one — moving on."

// Opts holds configuration options for the Collector.
type Opts struct {
	Timeout time.Duration
	Now     func() time.Time
}

// Option defines a configuration option for the Collector.
type Option func(*Opts)

// WithTimeout overrides the reply wait window.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) {
		o.Timeout = d
	}
}

// WithClock overrides the time source (used in tests).
func WithClock(now func() time.Time) Option {
	return func(o *Opts) {
		o.Now = now
	}
}

// Collector drives the per-question interaction state machine.
type Collector struct {
	gw      gateway.Gateway
	tracker *recurrence.Tracker
	timeout time.Duration
	now     func() time.Time
}

// New creates a Collector over the given gateway and recurrence tracker.
func New(gw gateway.Gateway, tracker *recurrence.Tracker, opts ...Option) *Collector {
	cfg := Opts{Timeout: DefaultTimeout, Now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Collector{gw: gw, tracker: tracker, timeout: cfg.Timeout, now: cfg.Now}
}

// Collect asks one member one question in the given channel and returns the
// structured answer. A missing reply is recorded as an absent response, never
// as an error; collection faults are isolated at habit granularity. A fully
// answered non-daily question updates the recurrence tracker.
func (c *Collector) Collect(ctx context.Context, channelID string, member gateway.Member, q models.Question) models.Answer {
	answer := models.Answer{
		QuestionID:   q.ID,
		QuestionText: q.Text,
		Frequency:    q.Frequency,
	}

	slog.Debug("Collector asking question", "question_id", q.ID, "type", q.Type, "member", member.ID, "channel", channelID)
	if _, err := c.gw.Send(ctx, channelID, q.Text); err != nil {
		slog.Error("Collector failed to send prompt", "error", err, "question_id", q.ID, "member", member.ID)
		if q.Type == models.QuestionTypeHabits {
			answer.Habits = absentHabits(q.Habits)
		}
		return answer
	}

	switch q.Type {
	case models.QuestionTypeHabits:
		answer.Habits = c.collectHabits(ctx, channelID, member, q)
	default:
		answer.Text = c.collectText(ctx, channelID, member, q)
	}

	if answer.Complete() {
		c.tracker.MarkAsked(q.ID, q.Frequency, c.now())
	}
	return answer
}

// collectText waits for a free-text reply from the member in the channel.
// On timeout it emits the user-visible no-response notice and returns nil.
func (c *Collector) collectText(ctx context.Context, channelID string, member gateway.Member, q models.Question) *string {
	filter := gateway.MessageFilter{ChannelID: channelID, AuthorID: member.ID}
	msg, err := c.gw.AwaitMessage(ctx, filter, c.timeout)
	if err != nil {
		if errors.Is(err, gateway.ErrWaitTimeout) {
			slog.Info("Collector question timed out", "question_id", q.ID, "member", member.ID)
			c.notifyNoResponse(ctx, channelID)
		} else {
			slog.Error("Collector message wait failed", "error", err, "question_id", q.ID, "member", member.ID)
		}
		return nil
	}

	slog.Debug("Collector captured reply", "question_id", q.ID, "member", member.ID, "length", len(msg.Text))
	text := msg.Text
	return &text
}

// collectHabits asks each habit of a habit-checklist question in order. Each
// habit's outcome is recorded independently; any fault while soliciting one
// habit leaves that habit absent and moves on to the next.
func (c *Collector) collectHabits(ctx context.Context, channelID string, member gateway.Member, q models.Question) map[string]*string {
	results := make(map[string]*string, len(q.Habits))
	for _, habit := range q.Habits {
		results[habit.Name] = c.collectHabit(ctx, channelID, member, q, habit)
	}
	return results
}

func (c *Collector) collectHabit(ctx context.Context, channelID string, member gateway.Member, q models.Question, habit models.Habit) *string {
	msgID, err := c.gw.Send(ctx, channelID, habit.Name)
	if err != nil {
		slog.Error("Collector failed to send habit prompt", "error", err, "question_id", q.ID, "habit", habit.Name)
		return nil
	}
	for _, emoji := range []string{ReactionDone, ReactionSkipped} {
		if err := c.gw.React(ctx, channelID, msgID, emoji); err != nil {
			slog.Error("Collector failed to attach reaction", "error", err, "habit", habit.Name, "emoji", emoji)
			return nil
		}
	}

	filter := gateway.ReactionFilter{
		MessageID: msgID,
		AuthorID:  member.ID,
		Emojis:    []string{ReactionDone, ReactionSkipped},
	}
	reaction, err := c.gw.AwaitReaction(ctx, filter, c.timeout)
	if err != nil {
		if errors.Is(err, gateway.ErrWaitTimeout) {
			slog.Info("Collector habit timed out", "question_id", q.ID, "habit", habit.Name, "member", member.ID)
		} else {
			slog.Error("Collector habit wait failed", "error", err, "question_id", q.ID, "habit", habit.Name, "member", member.ID)
		}
		return nil
	}

	value := models.HabitSkipped
	if reaction.Emoji == ReactionDone {
		value = models.HabitDone
	}
	slog.Debug("Collector captured habit check", "question_id", q.ID, "habit", habit.Name, "value", value)
	return &value
}

func (c *Collector) notifyNoResponse(ctx context.Context, channelID string) {
	if _, err := c.gw.Send(ctx, channelID, NoResponseNotice); err != nil {
		slog.Error("Collector failed to send no-response notice", "error", err, "channel", channelID)
	}
}

func absentHabits(habits []models.Habit) map[string]*string {
	m := make(map[string]*string, len(habits))
	for _, h := range habits {
		m[h.Name] = nil
	}
	return m
}
