// Package session drives one full daily journaling run.
//
// A run walks guilds, resolves the configured journaling channel in each,
// and interviews every non-automated member serially: greeting, one question
// at a time through the collector, then finalize, persist, archive, and a
// completion notice. Faults are isolated at member granularity; a broken
// guild or member never stops the rest of the run.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/journalpipe/journalpipe/internal/archive"
	"github.com/journalpipe/journalpipe/internal/collector"
	"github.com/journalpipe/journalpipe/internal/gateway"
	"github.com/journalpipe/journalpipe/internal/journal"
	"github.com/journalpipe/journalpipe/internal/models"
	"github.com/journalpipe/journalpipe/internal/recurrence"
	"github.com/journalpipe/journalpipe/internal/store"
)

// DefaultChannelName is the journaling channel resolved in each guild.
const DefaultChannelName = "echoes"

// User-visible session messages.
const (
	GreetingTemplate         = "Hey %s! It's time to fill out your daily journal. Let's get started!"
	CompletionNotice         = "All done! Your daily journal has been saved."
	CompletionNoticeNoUpload = "All done! Your journal was saved locally, but archiving it failed. We'll keep the local copy."
)

// Opts holds configuration options for the Orchestrator.
type Opts struct {
	ChannelName string
	Location    *time.Location
	Now         func() time.Time
}

// Option defines a configuration option for the Orchestrator.
type Option func(*Opts)

// WithChannelName overrides the journaling channel name.
func WithChannelName(name string) Option {
	return func(o *Opts) {
		o.ChannelName = name
	}
}

// WithLocation sets the time zone used to derive the calendar day.
func WithLocation(loc *time.Location) Option {
	return func(o *Opts) {
		o.Location = loc
	}
}

// WithClock overrides the time source (used in tests).
func WithClock(now func() time.Time) Option {
	return func(o *Opts) {
		o.Now = now
	}
}

// Orchestrator owns the collaborators of a daily run. All state is passed in
// explicitly; nothing is ambient.
type Orchestrator struct {
	gw          gateway.Gateway
	questions   []models.Question
	tracker     *recurrence.Tracker
	collector   *collector.Collector
	entries     store.Store
	archiver    archive.Archiver
	channelName string
	loc         *time.Location
	now         func() time.Time
}

// New creates an Orchestrator over the given collaborators.
func New(gw gateway.Gateway, questions []models.Question, tracker *recurrence.Tracker, col *collector.Collector, entries store.Store, archiver archive.Archiver, opts ...Option) *Orchestrator {
	cfg := Opts{ChannelName: DefaultChannelName, Location: time.UTC, Now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	if archiver == nil {
		archiver = archive.NopArchiver{}
	}
	return &Orchestrator{
		gw:          gw,
		questions:   questions,
		tracker:     tracker,
		collector:   col,
		entries:     entries,
		archiver:    archiver,
		channelName: cfg.ChannelName,
		loc:         cfg.Location,
		now:         cfg.Now,
	}
}

// Run executes one daily journaling pass across all reachable guilds.
func (o *Orchestrator) Run(ctx context.Context) error {
	today := o.now().In(o.loc)
	slog.Info("Starting daily journaling run", "date", models.EntryDate(today), "channel", o.channelName)

	guilds, err := o.gw.Guilds(ctx)
	if err != nil {
		slog.Error("Failed to enumerate guilds", "error", err)
		return fmt.Errorf("failed to enumerate guilds: %w", err)
	}

	due := recurrence.SelectForToday(o.questions, o.tracker, today)
	slog.Info("Questions due today", "count", len(due))

	for _, guild := range guilds {
		o.runGuild(ctx, guild, due, today)
	}

	slog.Info("Daily journaling run finished", "guilds", len(guilds))
	return nil
}

// runGuild interviews every member of one guild. A missing journaling
// channel skips the guild without affecting the others.
func (o *Orchestrator) runGuild(ctx context.Context, guild gateway.Guild, due []models.Question, today time.Time) {
	slog.Info("Processing guild", "guild", guild.Name)

	channel, err := o.gw.ResolveChannel(ctx, guild.ID, o.channelName)
	if err != nil {
		slog.Error("Failed to resolve journaling channel", "error", err, "guild", guild.Name, "channel", o.channelName)
		return
	}
	if channel == nil {
		slog.Error("Journaling channel not found in guild", "guild", guild.Name, "channel", o.channelName)
		return
	}

	members, err := o.gw.Members(ctx, guild.ID)
	if err != nil {
		slog.Error("Failed to list guild members", "error", err, "guild", guild.Name)
		return
	}

	for _, member := range members {
		if member.Bot {
			continue
		}
		if err := o.runMemberSession(ctx, channel.ID, member, due, today); err != nil {
			slog.Error("Member session failed, continuing with next member", "error", err, "member", member.ID, "guild", guild.Name)
		}
	}
}

// runMemberSession interviews one member and persists the finalized entry.
// A panic inside the question loop is recovered into an error so one broken
// session cannot take down the run.
func (o *Orchestrator) runMemberSession(ctx context.Context, channelID string, member gateway.Member, due []models.Question, today time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("member session panicked: %v", r)
		}
	}()

	slog.Info("Processing member", "member", member.ID, "name", member.Name)
	entry := journal.NewEntry(member.ID, today)

	greeting := fmt.Sprintf(GreetingTemplate, displayName(member))
	if _, err := o.gw.Send(ctx, channelID, greeting); err != nil {
		return fmt.Errorf("failed to greet member %s: %w", member.ID, err)
	}

	for _, q := range due {
		answer := o.collector.Collect(ctx, channelID, member, q)
		journal.Append(entry, answer)
	}

	journal.Finalize(entry)

	notice := CompletionNotice
	if err := o.entries.SaveEntry(ctx, *entry); err != nil {
		slog.Error("Failed to persist journal entry", "error", err, "member", member.ID, "date", entry.Date)
	} else if err := o.archiveEntry(ctx, entry); err != nil {
		slog.Warn("Archive upload failed, downgrading completion notice", "error", err, "member", member.ID)
		notice = CompletionNoticeNoUpload
	}

	if _, err := o.gw.Send(ctx, channelID, notice); err != nil {
		slog.Error("Failed to send completion notice", "error", err, "member", member.ID)
	}

	slog.Info("Member session complete", "member", member.ID, "answers", len(entry.Entries), "incomplete", entry.Incomplete)
	return nil
}

func (o *Orchestrator) archiveEntry(ctx context.Context, entry *models.JournalEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry for archive: %w", err)
	}
	return o.archiver.Upload(ctx, entry.OwnerID, entry.Date, payload)
}

func displayName(m gateway.Member) string {
	if m.Name != "" {
		return m.Name
	}
	return m.ID
}
