package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidDate     = errors.New("date must be a real YYYY-MM-DD calendar date")
	ErrNoteTooLong     = errors.New("note is too long (max 250 chars)")
	ErrMissingHabitID  = errors.New("habit id is required")
)

const (
	DateLayout = "2006-01-02"
	MaxNoteLen = 250
)

// HabitCompletion IDs are device-local; sync keys completions on
// (HabitID, Date), never on ID.
type HabitCompletion struct {
	ID          string    `json:"id" db:"id"`
	HabitID     string    `json:"habitId" db:"habit_id"`
	Date        string    `json:"date" db:"date"`
	CompletedAt time.Time `json:"completedAt" db:"completed_at"`
	Note        string    `json:"note,omitempty" db:"note"`
}

type CompletionKey struct {
	HabitID string
	Date    string
}

func (c *HabitCompletion) Key() CompletionKey {
	return CompletionKey{HabitID: c.HabitID, Date: c.Date}
}

func ValidDate(s string) bool {
	t, err := time.Parse(DateLayout, s)
	return err == nil && t.Format(DateLayout) == s
}

func NewHabitCompletion(habitID, date, note string) (*HabitCompletion, error) {
	c := &HabitCompletion{
		ID:          uuid.NewString(),
		HabitID:     habitID,
		Date:        date,
		CompletedAt: time.Now().UTC(),
		Note:        note,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *HabitCompletion) Validate() error {
	if strings.TrimSpace(c.HabitID) == "" {
		return ErrMissingHabitID
	}
	if !ValidDate(c.Date) {
		return ErrInvalidDate
	}
	if len(c.Note) > MaxNoteLen {
		return ErrNoteTooLong
	}
	return nil
}
