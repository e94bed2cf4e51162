// Package models defines the core data structures for JournalPipe.
//
// It includes the question catalog types, collected answers, and the daily
// journal entry shared across modules.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// QuestionType defines how an answer for a question is collected.
type QuestionType string

const (
	// QuestionTypeFreeform collects a free-text reply.
	QuestionTypeFreeform QuestionType = "freeform"
	// QuestionTypeRating collects a reply interpreted as a rating.
	QuestionTypeRating QuestionType = "rating"
	// QuestionTypeHabits collects one yes/no reaction per habit.
	QuestionTypeHabits QuestionType = "habit-checklist"
)

// Frequency defines how often a question is asked.
type Frequency string

const (
	FrequencyDaily        Frequency = "daily"
	FrequencyWeekly       Frequency = "weekly"
	FrequencyBiweekly     Frequency = "biweekly"
	FrequencyTwiceMonthly Frequency = "twice-monthly"
	FrequencyMonthly      Frequency = "monthly"
)

// Habit check values recorded in a habit-checklist answer.
const (
	HabitDone    = "yes"
	HabitSkipped = "no"
)

// DateLayout is the calendar-day format used in entry dates and filenames.
const DateLayout = "2006-01-02"

// Validation constants for catalog input.
const (
	// MaxQuestionTextLength defines the maximum allowed length for question text
	MaxQuestionTextLength = 4096
)

// Error variables for better error handling and testability
var (
	ErrCatalogNotFound     = errors.New("question catalog not found")
	ErrCatalogMalformed    = errors.New("question catalog is malformed")
	ErrMissingQuestionID   = errors.New("question id is required")
	ErrMissingQuestionText = errors.New("question text is required")
	ErrMissingQuestionType = errors.New("question type is required")
	ErrInvalidQuestionType = errors.New("invalid question type")
	ErrQuestionTextTooLong = errors.New("question text exceeds maximum length")
	ErrMissingHabits       = errors.New("habit-checklist questions require at least one habit")
	ErrArchiveUpload       = errors.New("archive upload failed")
)

// IsValidQuestionType checks if the given question type is supported.
func IsValidQuestionType(qt QuestionType) bool {
	switch qt {
	case QuestionTypeFreeform, QuestionTypeRating, QuestionTypeHabits:
		return true
	default:
		return false
	}
}

// IntervalDays returns the minimum number of elapsed days before a question
// of this frequency becomes due again. Daily and unknown frequencies map to
// zero, which makes them always due.
func (f Frequency) IntervalDays() int {
	switch f {
	case FrequencyWeekly:
		return 7
	case FrequencyBiweekly:
		return 14
	case FrequencyTwiceMonthly:
		return 15
	case FrequencyMonthly:
		return 30
	default:
		return 0
	}
}

// Habit is one yes/no sub-item of a habit-checklist question.
type Habit struct {
	Name string `json:"name" yaml:"name"`
}

// Question is a single catalog entry. Questions are immutable once loaded.
type Question struct {
	ID        string       `json:"id" yaml:"id"`
	Text      string       `json:"text" yaml:"text"`
	Type      QuestionType `json:"type" yaml:"type"`
	Frequency Frequency    `json:"frequency,omitempty" yaml:"frequency"`
	Habits    []Habit      `json:"habits,omitempty" yaml:"habits"`
}

// Validate performs validation on a catalog question.
func (q *Question) Validate() error {
	if q.ID == "" {
		return ErrMissingQuestionID
	}
	if q.Text == "" {
		return ErrMissingQuestionText
	}
	if q.Type == "" {
		return ErrMissingQuestionType
	}
	if !IsValidQuestionType(q.Type) {
		return fmt.Errorf("%w: %q", ErrInvalidQuestionType, q.Type)
	}
	if len(q.Text) > MaxQuestionTextLength {
		return ErrQuestionTextTooLong
	}
	if q.Type == QuestionTypeHabits && len(q.Habits) == 0 {
		return ErrMissingHabits
	}
	return nil
}

// Answer holds the outcome of asking one member one question. For freeform
// and rating questions Text carries the reply; for habit-checklist questions
// Habits maps each habit name to "yes", "no", or nil when that habit's
// reaction never arrived. A nil Text on a non-habit answer means the member
// did not reply before the timeout.
type Answer struct {
	QuestionID   string
	QuestionText string
	Text         *string
	Habits       map[string]*string
	Frequency    Frequency
}

// Complete reports whether the answer has no absent parts: a non-nil Text,
// or a habit map with a recorded value for every habit.
func (a Answer) Complete() bool {
	if a.Habits != nil {
		for _, v := range a.Habits {
			if v == nil {
				return false
			}
		}
		return true
	}
	return a.Text != nil
}

// answerJSON is the wire form of an Answer: response is a string, an object
// of habit values, or null.
type answerJSON struct {
	QuestionID   string          `json:"question_id"`
	QuestionText string          `json:"question"`
	Response     json.RawMessage `json:"response"`
	Frequency    Frequency       `json:"frequency,omitempty"`
}

// MarshalJSON encodes the response field as a string, a habit map, or null.
func (a Answer) MarshalJSON() ([]byte, error) {
	out := answerJSON{
		QuestionID:   a.QuestionID,
		QuestionText: a.QuestionText,
		Frequency:    a.Frequency,
	}
	var response interface{}
	switch {
	case a.Habits != nil:
		response = a.Habits
	case a.Text != nil:
		response = *a.Text
	default:
		response = nil
	}
	raw, err := json.Marshal(response)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal answer response: %w", err)
	}
	out.Response = raw
	return json.Marshal(out)
}

// UnmarshalJSON decodes the polymorphic response field back into Text or
// Habits depending on its JSON shape.
func (a *Answer) UnmarshalJSON(data []byte) error {
	var in answerJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	a.QuestionID = in.QuestionID
	a.QuestionText = in.QuestionText
	a.Frequency = in.Frequency
	a.Text = nil
	a.Habits = nil
	if len(in.Response) == 0 || string(in.Response) == "null" {
		return nil
	}
	if in.Response[0] == '{' {
		habits := make(map[string]*string)
		if err := json.Unmarshal(in.Response, &habits); err != nil {
			return fmt.Errorf("failed to unmarshal habit response: %w", err)
		}
		a.Habits = habits
		return nil
	}
	var text string
	if err := json.Unmarshal(in.Response, &text); err != nil {
		return fmt.Errorf("failed to unmarshal text response: %w", err)
	}
	a.Text = &text
	return nil
}

// JournalEntry is one member's record for one calendar day. The Incomplete
// field is "yes" when any answer (or any habit value inside an answer) is
// absent, "no" otherwise; it is computed once when the entry is finalized.
type JournalEntry struct {
	OwnerID    string   `json:"owner_id"`
	Date       string   `json:"date"`
	Entries    []Answer `json:"entries"`
	Incomplete string   `json:"partial_incomplete"`
}

// EntryDate formats a calendar day in the entry date layout.
func EntryDate(t time.Time) string {
	return t.Format(DateLayout)
}
