package domain

import (
	"errors"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrHabitNameEmpty   = errors.New("habit name cannot be empty")
	ErrHabitNameTooLong = errors.New("habit name is too long (max 100 chars)")
	ErrHabitDescTooLong = errors.New("habit description is too long (max 500 chars)")
	ErrInvalidColor     = errors.New("invalid color format (must be #RRGGBB)")
	ErrInvalidFrequency = errors.New("invalid frequency kind")
	ErrInvalidWeekdays  = errors.New("invalid target days (must be 0-6)")
	ErrMissingWeekdays  = errors.New("specific_days frequency requires at least one target day")
	ErrInvalidTarget    = errors.New("target count must be between 1 and 7")
	ErrInvalidReminder  = errors.New("invalid reminder format (must be HH:MM 24h)")
	ErrCategoryTooLong  = errors.New("category is too long (max 50 chars)")
	ErrHabitArchived    = errors.New("cannot update an archived habit")
)

var (
	colorRegex    = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
	reminderRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
)

const (
	FreqDaily        = "daily"
	FreqWeekdays     = "weekdays"
	FreqWeekends     = "weekends"
	FreqSpecificDays = "specific_days"
	FreqXPerWeek     = "x_per_week"

	DefaultIcon  = "target"
	DefaultColor = "#6366f1"

	MaxNameLen     = 100
	MaxDescLen     = 500
	MaxCategoryLen = 50
)

// Habit IDs are stable across devices; the snapshot merge keys on them.
type Habit struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Description  string    `json:"description,omitempty" db:"description"`
	Icon         string    `json:"icon" db:"icon"`
	Color        string    `json:"color" db:"color"`
	Frequency    string    `json:"frequency" db:"frequency"`
	TargetDays   []int     `json:"targetDays,omitempty" db:"-"`
	TargetCount  int       `json:"targetCount,omitempty" db:"target_count"`
	ReminderTime *string   `json:"reminderTime,omitempty" db:"reminder_time"`
	Category     string    `json:"category,omitempty" db:"category"`
	SortOrder    int       `json:"sortOrder" db:"sort_order"`
	IsArchived   bool      `json:"isArchived" db:"is_archived"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

type HabitInput struct {
	Name         string
	Description  string
	Icon         string
	Color        string
	Frequency    string
	TargetDays   []int
	TargetCount  int
	ReminderTime string
	Category     string
}

func normalizeWeekdays(days []int) []int {
	if len(days) == 0 {
		return nil
	}

	seen := make(map[int]bool)
	var unique []int
	for _, d := range days {
		if !seen[d] {
			seen[d] = true
			unique = append(unique, d)
		}
	}

	sort.Ints(unique)
	return unique
}

func validateHabitInput(in HabitInput) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return ErrHabitNameEmpty
	}
	if len(name) > MaxNameLen {
		return ErrHabitNameTooLong
	}
	if len(strings.TrimSpace(in.Description)) > MaxDescLen {
		return ErrHabitDescTooLong
	}
	if len(in.Category) > MaxCategoryLen {
		return ErrCategoryTooLong
	}

	if in.Color != "" && !colorRegex.MatchString(in.Color) {
		return ErrInvalidColor
	}

	if in.ReminderTime != "" && !reminderRegex.MatchString(in.ReminderTime) {
		return ErrInvalidReminder
	}

	for _, d := range in.TargetDays {
		if d < 0 || d > 6 {
			return ErrInvalidWeekdays
		}
	}

	switch in.Frequency {
	case FreqDaily, FreqWeekdays, FreqWeekends:
	case FreqSpecificDays:
		if len(in.TargetDays) == 0 {
			return ErrMissingWeekdays
		}
	case FreqXPerWeek:
		if in.TargetCount < 1 || in.TargetCount > 7 {
			return ErrInvalidTarget
		}
	default:
		return ErrInvalidFrequency
	}

	return nil
}

func NewHabit(in HabitInput) (*Habit, error) {
	if err := validateHabitInput(in); err != nil {
		return nil, err
	}

	if in.Icon == "" {
		in.Icon = DefaultIcon
	}
	if in.Color == "" {
		in.Color = DefaultColor
	}

	var remPtr *string
	if in.ReminderTime != "" {
		remPtr = &in.ReminderTime
	}

	now := time.Now().UTC()

	return &Habit{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(in.Name),
		Description:  strings.TrimSpace(in.Description),
		Icon:         in.Icon,
		Color:        in.Color,
		Frequency:    in.Frequency,
		TargetDays:   normalizeWeekdays(in.TargetDays),
		TargetCount:  in.TargetCount,
		ReminderTime: remPtr,
		Category:     strings.TrimSpace(in.Category),
		SortOrder:    0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (h *Habit) Update(in HabitInput) error {
	if h.IsArchived {
		return ErrHabitArchived
	}

	if err := validateHabitInput(in); err != nil {
		return err
	}

	if in.Icon == "" {
		in.Icon = DefaultIcon
	}
	if in.Color == "" {
		in.Color = DefaultColor
	}

	var remPtr *string
	if in.ReminderTime != "" {
		remPtr = &in.ReminderTime
	}

	h.Name = strings.TrimSpace(in.Name)
	h.Description = strings.TrimSpace(in.Description)
	h.Icon = in.Icon
	h.Color = in.Color
	h.Frequency = in.Frequency
	h.TargetDays = normalizeWeekdays(in.TargetDays)
	h.TargetCount = in.TargetCount
	h.ReminderTime = remPtr
	h.Category = strings.TrimSpace(in.Category)
	h.UpdatedAt = time.Now().UTC()

	return nil
}

func (h *Habit) ChangePosition(newOrder int) error {
	if h.IsArchived {
		return ErrHabitArchived
	}

	h.SortOrder = newOrder
	h.UpdatedAt = time.Now().UTC()
	return nil
}

// Archive propagates through the snapshot merge; a hard delete does not.
func (h *Habit) Archive() {
	if h.IsArchived {
		return
	}
	h.IsArchived = true
	h.UpdatedAt = time.Now().UTC()
}

func (h *Habit) Restore() {
	if !h.IsArchived {
		return
	}
	h.IsArchived = false
	h.UpdatedAt = time.Now().UTC()
}
