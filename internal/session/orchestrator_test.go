package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/journalpipe/journalpipe/internal/collector"
	"github.com/journalpipe/journalpipe/internal/gateway"
	"github.com/journalpipe/journalpipe/internal/journal"
	"github.com/journalpipe/journalpipe/internal/models"
	"github.com/journalpipe/journalpipe/internal/recurrence"
	"github.com/journalpipe/journalpipe/internal/store"
	"github.com/journalpipe/journalpipe/internal/testutil"
)

var fixedNow = time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func testQuestions() []models.Question {
	return []models.Question{
		{ID: "mood", Text: "How are you feeling today?", Type: models.QuestionTypeFreeform, Frequency: models.FrequencyDaily},
		{ID: "habits", Text: "Habit check!", Type: models.QuestionTypeHabits, Frequency: models.FrequencyDaily,
			Habits: []models.Habit{{Name: "Exercise"}, {Name: "Reading"}}},
	}
}

func newOrchestrator(t *testing.T, gw *testutil.FakeGateway, questions []models.Question) (*Orchestrator, *store.FileStore) {
	t.Helper()
	dir := t.TempDir()
	tracker := recurrence.NewTracker(filepath.Join(dir, "question_timestamps.json"))
	entries, err := store.NewFileStore(filepath.Join(dir, "entries"))
	if err != nil {
		t.Fatalf("failed to create file store: %v", err)
	}
	col := collector.New(gw, tracker, collector.WithClock(clock))
	o := New(gw, questions, tracker, col, entries, nil, WithClock(clock))
	return o, entries
}

func TestRunPersistsEntriesForMembers(t *testing.T) {
	gw := testutil.NewFakeGateway()
	gw.AddGuild("g1", "Journal Club", "echoes",
		gateway.Member{ID: "alice", Name: "Alice"},
		gateway.Member{ID: "bot", Name: "JournalPipe", Bot: true},
		gateway.Member{ID: "carol", Name: "Carol"},
	)
	channelID := "g1/echoes"

	gw.ScriptReply(channelID, "alice", "Feeling great")
	gw.ScriptReply(channelID, "carol", "A bit tired")
	gw.ReactionsByPrompt["Exercise"] = collector.ReactionDone
	gw.ReactionsByPrompt["Reading"] = collector.ReactionSkipped

	o, entries := newOrchestrator(t, gw, testQuestions())
	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	date := models.EntryDate(fixedNow)
	for _, owner := range []string{"alice", "carol"} {
		entry, err := entries.GetEntry(context.Background(), owner, date)
		if err != nil {
			t.Fatalf("failed to load entry for %s: %v", owner, err)
		}
		if entry == nil {
			t.Fatalf("no entry persisted for %s", owner)
		}
		if len(entry.Entries) != 2 {
			t.Errorf("entry for %s has %d answers, want 2", owner, len(entry.Entries))
		}
		if entry.Incomplete != journal.EntryComplete {
			t.Errorf("entry for %s marked incomplete %q", owner, entry.Incomplete)
		}
	}

	if entry, _ := entries.GetEntry(context.Background(), "bot", date); entry != nil {
		t.Error("automated member should not have an entry")
	}

	texts := gw.SentTexts()
	wantFirst := fmt.Sprintf(GreetingTemplate, "Alice")
	if len(texts) == 0 || texts[0] != wantFirst {
		t.Errorf("first message = %q, want greeting %q", texts, wantFirst)
	}
	if texts[len(texts)-1] != CompletionNotice {
		t.Errorf("last message = %q, want completion notice", texts[len(texts)-1])
	}
}

func TestRunRecordsIncompleteEntryOnTimeout(t *testing.T) {
	gw := testutil.NewFakeGateway()
	gw.AddGuild("g1", "Journal Club", "echoes", gateway.Member{ID: "alice", Name: "Alice"})

	// No reply scripted: the freeform question times out.
	questions := testQuestions()[:1]
	o, entries := newOrchestrator(t, gw, questions)
	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	entry, err := entries.GetEntry(context.Background(), "alice", models.EntryDate(fixedNow))
	if err != nil || entry == nil {
		t.Fatalf("expected persisted entry, got %v, %v", entry, err)
	}
	if entry.Incomplete != journal.EntryIncomplete {
		t.Errorf("entry incomplete = %q, want %q", entry.Incomplete, journal.EntryIncomplete)
	}
	if entry.Entries[0].Text != nil {
		t.Errorf("timed-out answer should be absent, got %q", *entry.Entries[0].Text)
	}
}

func TestRunIsolatesMemberFaults(t *testing.T) {
	gw := testutil.NewFakeGateway()
	gw.AddGuild("g1", "Journal Club", "echoes",
		gateway.Member{ID: "alice", Name: "Alice"},
		gateway.Member{ID: "carol", Name: "Carol"},
	)
	channelID := "g1/echoes"

	// Alice's greeting fails; her session aborts but Carol's proceeds.
	gw.SendErrFor[fmt.Sprintf(GreetingTemplate, "Alice")] = errors.New("gateway unavailable")
	gw.ScriptReply(channelID, "carol", "Doing fine")

	questions := testQuestions()[:1]
	o, entries := newOrchestrator(t, gw, questions)
	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	date := models.EntryDate(fixedNow)
	if entry, _ := entries.GetEntry(context.Background(), "alice", date); entry != nil {
		t.Error("aborted session should not persist an entry")
	}
	entry, err := entries.GetEntry(context.Background(), "carol", date)
	if err != nil || entry == nil {
		t.Fatalf("expected entry for carol, got %v, %v", entry, err)
	}
	if got := *entry.Entries[0].Text; got != "Doing fine" {
		t.Errorf("carol's answer = %q", got)
	}
}

func TestRunSkipsGuildWithoutJournalChannel(t *testing.T) {
	gw := testutil.NewFakeGateway()
	gw.AddGuild("g1", "No Journal Here", "general", gateway.Member{ID: "alice", Name: "Alice"})
	gw.AddGuild("g2", "Journal Club", "echoes", gateway.Member{ID: "carol", Name: "Carol"})
	gw.ScriptReply("g2/echoes", "carol", "Present")

	questions := testQuestions()[:1]
	o, entries := newOrchestrator(t, gw, questions)
	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	date := models.EntryDate(fixedNow)
	if entry, _ := entries.GetEntry(context.Background(), "alice", date); entry != nil {
		t.Error("guild without the journaling channel should be skipped")
	}
	if entry, _ := entries.GetEntry(context.Background(), "carol", date); entry == nil {
		t.Error("expected entry from the guild that has the channel")
	}
}

func TestRunGuildsFailure(t *testing.T) {
	gw := testutil.NewFakeGateway()
	gw.GuildsErr = errors.New("connection reset")

	o, _ := newOrchestrator(t, gw, testQuestions())
	if err := o.Run(context.Background()); err == nil {
		t.Fatal("expected error when guild enumeration fails")
	}
}

type failingArchiver struct{}

func (failingArchiver) Upload(ctx context.Context, ownerID, date string, payload []byte) error {
	return fmt.Errorf("%w: unexpected status 503", models.ErrArchiveUpload)
}

func TestRunDowngradesNoticeOnArchiveFailure(t *testing.T) {
	gw := testutil.NewFakeGateway()
	gw.AddGuild("g1", "Journal Club", "echoes", gateway.Member{ID: "alice", Name: "Alice"})
	gw.ScriptReply("g1/echoes", "alice", "Good")

	dir := t.TempDir()
	tracker := recurrence.NewTracker(filepath.Join(dir, "question_timestamps.json"))
	entries, err := store.NewFileStore(filepath.Join(dir, "entries"))
	if err != nil {
		t.Fatalf("failed to create file store: %v", err)
	}
	col := collector.New(gw, tracker, collector.WithClock(clock))
	o := New(gw, testQuestions()[:1], tracker, col, entries, failingArchiver{}, WithClock(clock))

	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	// Entry is still persisted locally.
	entry, err := entries.GetEntry(context.Background(), "alice", models.EntryDate(fixedNow))
	if err != nil || entry == nil {
		t.Fatalf("expected persisted entry, got %v, %v", entry, err)
	}

	texts := gw.SentTexts()
	if texts[len(texts)-1] != CompletionNoticeNoUpload {
		t.Errorf("last message = %q, want downgraded notice", texts[len(texts)-1])
	}
}

func TestRunHonorsCustomChannelName(t *testing.T) {
	gw := testutil.NewFakeGateway()
	gw.AddGuild("g1", "Journal Club", "diary", gateway.Member{ID: "alice", Name: "Alice"})
	gw.ScriptReply("g1/diary", "alice", "Hello")

	dir := t.TempDir()
	tracker := recurrence.NewTracker(filepath.Join(dir, "question_timestamps.json"))
	entries, err := store.NewFileStore(filepath.Join(dir, "entries"))
	if err != nil {
		t.Fatalf("failed to create file store: %v", err)
	}
	col := collector.New(gw, tracker, collector.WithClock(clock))
	o := New(gw, testQuestions()[:1], tracker, col, entries, nil, WithClock(clock), WithChannelName("diary"))

	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if entry, _ := entries.GetEntry(context.Background(), "alice", models.EntryDate(fixedNow)); entry == nil {
		t.Error("expected entry collected over the custom channel")
	}
}
