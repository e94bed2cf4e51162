package collector

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/journalpipe/journalpipe/internal/gateway"
	"github.com/journalpipe/journalpipe/internal/models"
	"github.com/journalpipe/journalpipe/internal/recurrence"
	"github.com/journalpipe/journalpipe/internal/testutil"
)

var (
	today  = time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	alice  = gateway.Member{ID: "alice", Name: "alice"}
	chanID = "g1/echoes"
)

func newTestCollector(t *testing.T, fake *testutil.FakeGateway) (*Collector, *recurrence.Tracker) {
	t.Helper()
	tracker := recurrence.NewTracker(filepath.Join(t.TempDir(), "ts.json"))
	col := New(fake, tracker, WithTimeout(time.Second), WithClock(func() time.Time { return today }))
	return col, tracker
}

func TestCollectFreeformAnswered(t *testing.T) {
	fake := testutil.NewFakeGateway()
	fake.ScriptReply(chanID, alice.ID, "slept eight hours, felt great")
	col, tracker := newTestCollector(t, fake)

	q := models.Question{ID: "sleep", Text: "How did you sleep?", Type: models.QuestionTypeFreeform, Frequency: models.FrequencyWeekly}
	answer := col.Collect(context.Background(), chanID, alice, q)

	if answer.Text == nil || *answer.Text != "slept eight hours, felt great" {
		t.Fatalf("expected captured reply, got %+v", answer)
	}
	if answer.QuestionID != "sleep" || answer.QuestionText != q.Text {
		t.Errorf("answer metadata wrong: %+v", answer)
	}
	if got := fake.SentTexts(); len(got) != 1 || got[0] != q.Text {
		t.Errorf("expected only the prompt to be sent, got %v", got)
	}
	// A successful non-daily answer updates the recurrence tracker.
	if tracker.IsDue("sleep", models.FrequencyWeekly, today) {
		t.Error("expected question to be marked asked after a successful answer")
	}
}

func TestCollectFreeformTimeout(t *testing.T) {
	fake := testutil.NewFakeGateway()
	col, tracker := newTestCollector(t, fake)

	q := models.Question{ID: "sleep", Text: "How did you sleep?", Type: models.QuestionTypeFreeform, Frequency: models.FrequencyWeekly}
	answer := col.Collect(context.Background(), chanID, alice, q)

	if answer.Text != nil {
		t.Fatalf("expected absent response on timeout, got %q", *answer.Text)
	}
	sent := fake.SentTexts()
	if len(sent) != 2 || sent[1] != NoResponseNotice {
		t.Errorf("expected a no-response notice after the prompt, got %v", sent)
	}
	// Timeouts do not mark the question asked.
	if !tracker.IsDue("sleep", models.FrequencyWeekly, today) {
		t.Error("a timed-out question must remain due")
	}
}

func TestCollectHabitsAll(t *testing.T) {
	fake := testutil.NewFakeGateway()
	fake.ReactionsByPrompt["Exercise"] = ReactionDone
	fake.ReactionsByPrompt["Meditate"] = ReactionSkipped
	col, tracker := newTestCollector(t, fake)

	q := models.Question{
		ID: "habits", Text: "Habit check", Type: models.QuestionTypeHabits, Frequency: models.FrequencyWeekly,
		Habits: []models.Habit{{Name: "Exercise"}, {Name: "Meditate"}},
	}
	answer := col.Collect(context.Background(), chanID, alice, q)

	if v := answer.Habits["Exercise"]; v == nil || *v != models.HabitDone {
		t.Errorf("Exercise = %v, want yes", v)
	}
	if v := answer.Habits["Meditate"]; v == nil || *v != models.HabitSkipped {
		t.Errorf("Meditate = %v, want no", v)
	}
	// Both affordances attached to each habit message.
	if len(fake.Reacted) != 4 {
		t.Errorf("expected 4 attached reactions, got %d", len(fake.Reacted))
	}
	if tracker.IsDue("habits", models.FrequencyWeekly, today) {
		t.Error("expected fully answered habit question to be marked asked")
	}
}

func TestCollectHabitIsolationOnTimeout(t *testing.T) {
	fake := testutil.NewFakeGateway()
	// Exercise never gets a reaction; Meditate does.
	fake.ReactionsByPrompt["Meditate"] = ReactionDone
	col, tracker := newTestCollector(t, fake)

	q := models.Question{
		ID: "habits", Text: "Habit check", Type: models.QuestionTypeHabits, Frequency: models.FrequencyWeekly,
		Habits: []models.Habit{{Name: "Exercise"}, {Name: "Meditate"}},
	}
	answer := col.Collect(context.Background(), chanID, alice, q)

	if v, ok := answer.Habits["Exercise"]; !ok || v != nil {
		t.Errorf("timed-out habit must be recorded absent, got %v (present=%v)", v, ok)
	}
	if v := answer.Habits["Meditate"]; v == nil || *v != models.HabitDone {
		t.Errorf("later habit must still be attempted and captured, got %v", v)
	}
	// A partial habit answer is not a successful collection.
	if !tracker.IsDue("habits", models.FrequencyWeekly, today) {
		t.Error("a partially answered question must remain due")
	}
}

func TestCollectHabitIsolationOnFault(t *testing.T) {
	fake := testutil.NewFakeGateway()
	fake.ReactionWaitErrFor["Exercise"] = errors.New("gateway hiccup")
	fake.ReactionsByPrompt["Meditate"] = ReactionSkipped
	col, _ := newTestCollector(t, fake)

	q := models.Question{
		ID: "habits", Text: "Habit check", Type: models.QuestionTypeHabits, Frequency: models.FrequencyDaily,
		Habits: []models.Habit{{Name: "Exercise"}, {Name: "Meditate"}},
	}
	answer := col.Collect(context.Background(), chanID, alice, q)

	if v, ok := answer.Habits["Exercise"]; !ok || v != nil {
		t.Errorf("faulted habit must be recorded absent, got %v (present=%v)", v, ok)
	}
	if v := answer.Habits["Meditate"]; v == nil || *v != models.HabitSkipped {
		t.Errorf("fault on one habit must not abort the rest, got %v", v)
	}
}

func TestCollectPromptSendFailure(t *testing.T) {
	fake := testutil.NewFakeGateway()
	fake.SendErrFor["How did you sleep?"] = errors.New("connection reset")
	col, _ := newTestCollector(t, fake)

	q := models.Question{ID: "sleep", Text: "How did you sleep?", Type: models.QuestionTypeFreeform, Frequency: models.FrequencyDaily}
	answer := col.Collect(context.Background(), chanID, alice, q)

	if answer.Text != nil {
		t.Errorf("expected absent response when the prompt cannot be sent, got %+v", answer)
	}
}
