package domain

import (
	"errors"
	"time"
)

var (
	ErrInvalidTheme     = errors.New("invalid theme (must be light, dark, or system)")
	ErrInvalidWeekStart = errors.New("invalid week start (must be 0 or 1)")
	ErrInvalidView      = errors.New("invalid default view (must be today, week, or month)")
)

const (
	ThemeLight  = "light"
	ThemeDark   = "dark"
	ThemeSystem = "system"

	ViewToday = "today"
	ViewWeek  = "week"
	ViewMonth = "month"

SettingsID = "user_settings"
)

// UserSettings is a singleton, created with defaults on first access.
type UserSettings struct {
	ID                 string     `json:"id" db:"id"`
	Theme              string     `json:"theme" db:"theme"`
	WeekStartsOn       int        `json:"weekStartsOn" db:"week_starts_on"`
	ShowStreaks        bool       `json:"showStreaks" db:"show_streaks"`
	ShowCompletionRate bool       `json:"showCompletionRate" db:"show_completion_rate"`
	DefaultView        string     `json:"defaultView" db:"default_view"`
	SyncEnabled        bool       `json:"syncEnabled" db:"sync_enabled"`
	LastSyncedAt       *time.Time `json:"lastSyncedAt,omitempty" db:"last_synced_at"`
	CreatedAt          time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt          time.Time  `json:"updatedAt" db:"updated_at"`
}

func DefaultSettings() *UserSettings {
	now := time.Now().UTC()
	return &UserSettings{
		ID:                 SettingsID,
		Theme:              ThemeSystem,
		WeekStartsOn:       0,
		ShowStreaks:        true,
		ShowCompletionRate: true,
		DefaultView:        ViewToday,
		SyncEnabled:        false,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func (s *UserSettings) Validate() error {
	switch s.Theme {
	case ThemeLight, ThemeDark, ThemeSystem:
	default:
		return ErrInvalidTheme
	}

	if s.WeekStartsOn != 0 && s.WeekStartsOn != 1 {
		return ErrInvalidWeekStart
	}

	switch s.DefaultView {
	case ViewToday, ViewWeek, ViewMonth:
	default:
		return ErrInvalidView
	}

	return nil
}
