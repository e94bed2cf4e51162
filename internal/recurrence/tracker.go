// Package recurrence tracks when each non-daily question was last asked and
// decides which catalog questions are due on a given day.
//
// State lives in a small JSON document keyed by frequency class and question
// id. The store is best-effort: a missing or corrupt file reinitializes to an
// empty structure, and a failed write is logged without interrupting the
// caller's workflow.
package recurrence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/journalpipe/journalpipe/internal/models"
)

// DefaultDirPermissions defines the default permissions for state directories
const DefaultDirPermissions = 0o755

// state is the on-disk schema: last_asked.<frequency>.<question_id> = RFC3339.
type state struct {
	LastAsked map[models.Frequency]map[string]string `json:"last_asked"`
}

// freshState returns an empty structure covering every non-daily frequency class.
func freshState() state {
	return state{LastAsked: map[models.Frequency]map[string]string{
		models.FrequencyWeekly:       {},
		models.FrequencyBiweekly:     {},
		models.FrequencyTwiceMonthly: {},
		models.FrequencyMonthly:      {},
	}}
}

// Tracker persists per-question last-asked timestamps. It assumes a single
// process with sequential access; writes are atomic with respect to crashes.
type Tracker struct {
	path string
	st   state
}

// NewTracker loads the recurrence state at path. It never fails: a missing
// or corrupt file is replaced by a fresh empty structure.
func NewTracker(path string) *Tracker {
	t := &Tracker{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("Recurrence state unreadable, reinitializing", "error", err, "path", path)
		} else {
			slog.Debug("Recurrence state not found, starting fresh", "path", path)
		}
		t.st = freshState()
		t.save()
		return t
	}

	if err := json.Unmarshal(data, &t.st); err != nil || t.st.LastAsked == nil {
		slog.Warn("Recurrence state corrupt, reinitializing", "error", err, "path", path)
		t.st = freshState()
		t.save()
		return t
	}

	slog.Debug("Recurrence state loaded", "path", path, "classes", len(t.st.LastAsked))
	return t
}

// IsDue reports whether a question should be asked on the given day. Daily
// questions are always due; otherwise a question is due when it was never
// asked or when at least its frequency's interval of days has elapsed.
// Unknown frequencies have a zero-day interval and are always due.
func (t *Tracker) IsDue(questionID string, freq models.Frequency, today time.Time) bool {
	if freq == models.FrequencyDaily {
		return true
	}

	class, ok := t.st.LastAsked[freq]
	if !ok {
		return true
	}
	raw, ok := class[questionID]
	if !ok {
		return true
	}

	lastAsked, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		slog.Warn("Unparseable last-asked timestamp, treating question as due", "error", err, "question_id", questionID, "frequency", freq)
		return true
	}

	elapsed := int(today.Sub(lastAsked).Hours() / 24)
	return elapsed >= freq.IntervalDays()
}

// MarkAsked records when as the new last-asked timestamp for the question.
// Daily questions are a no-op. Persistence is best-effort: write failures
// are logged and never surfaced to the caller.
func (t *Tracker) MarkAsked(questionID string, freq models.Frequency, when time.Time) {
	if freq == models.FrequencyDaily {
		return
	}

	if t.st.LastAsked == nil {
		t.st = freshState()
	}
	if t.st.LastAsked[freq] == nil {
		t.st.LastAsked[freq] = map[string]string{}
	}
	t.st.LastAsked[freq][questionID] = when.Format(time.RFC3339)
	slog.Debug("Recurrence timestamp updated", "question_id", questionID, "frequency", freq, "when", when)
	t.save()
}

// save writes the state atomically: the document lands in a temp file that
// is renamed over the old one, so a crash mid-write cannot corrupt the store.
func (t *Tracker) save() {
	data, err := json.MarshalIndent(t.st, "", "  ")
	if err != nil {
		slog.Error("Failed to marshal recurrence state", "error", err)
		return
	}

	dir := filepath.Dir(t.path)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create recurrence state directory", "error", err, "dir", dir)
		return
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(t.path)+".tmp-*")
	if err != nil {
		slog.Error("Failed to create temp recurrence state file", "error", err, "dir", dir)
		return
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		slog.Error("Failed to write recurrence state", "error", err, "path", tmpName)
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		slog.Error("Failed to close recurrence state file", "error", err, "path", tmpName)
		return
	}
	if err := os.Rename(tmpName, t.path); err != nil {
		os.Remove(tmpName)
		slog.Error("Failed to replace recurrence state file", "error", err, "path", t.path)
		return
	}
	slog.Debug("Recurrence state saved", "path", t.path)
}

// SelectForToday filters the catalog down to the questions due today,
// preserving catalog order.
func SelectForToday(questions []models.Question, tracker *Tracker, today time.Time) []models.Question {
	due := make([]models.Question, 0, len(questions))
	for _, q := range questions {
		if tracker.IsDue(q.ID, q.Frequency, today) {
			due = append(due, q)
		} else {
			slog.Debug("Question not due today", "question_id", q.ID, "frequency", q.Frequency)
		}
	}
	slog.Debug("Selected questions for today", "due", len(due), "catalog", len(questions))
	return due
}

// String implements fmt.Stringer for debug logging.
func (t *Tracker) String() string {
	return fmt.Sprintf("recurrence.Tracker(%s)", t.path)
}
