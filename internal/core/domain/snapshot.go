package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	AppName       = "HabitFlow"
	ExportVersion = "1.0"
)

type Snapshot struct {
	Version    string       `json:"version"`
	ExportedAt time.Time    `json:"exportedAt"`
	App        string       `json:"app"`
	Data       SnapshotData `json:"data"`
}

type SnapshotData struct {
	Habits      []*Habit           `json:"habits"`
	Completions []*HabitCompletion `json:"completions"`
	Settings    *UserSettings      `json:"settings"`
}

type MergeResult struct {
	HabitsUpdated    int  `json:"habitsUpdated"`
	CompletionsAdded int  `json:"completionsAdded"`
	SettingsUpdated  bool `json:"settingsUpdated"`
}

func (r MergeResult) HasChanges() bool {
	return r.HabitsUpdated > 0 || r.CompletionsAdded > 0 || r.SettingsUpdated
}

// ValidationError lists every violation found, each prefixed with its field path.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("snapshot validation failed: %s", strings.Join(e.Issues, "; "))
}

type snapshotValidator struct {
	issues []string
}

func (v *snapshotValidator) addf(path string, format string, args ...interface{}) {
	v.issues = append(v.issues, path+": "+fmt.Sprintf(format, args...))
}

func (v *snapshotValidator) check(path string, err error) {
	if err != nil {
		v.issues = append(v.issues, path+": "+err.Error())
	}
}

func (s *Snapshot) Validate() error {
	v := &snapshotValidator{}

	if s.Version == "" {
		v.addf("version", "is required")
	}
	if s.App != AppName {
		v.addf("app", "unknown application identifier %q", s.App)
	}
	if s.ExportedAt.IsZero() {
		v.addf("exportedAt", "is required")
	}

	for i, h := range s.Data.Habits {
		path := fmt.Sprintf("data.habits[%d]", i)
		if h == nil {
			v.addf(path, "is null")
			continue
		}
		if h.ID == "" {
			v.addf(path+".id", "is required")
		}
		v.check(path, validateHabitInput(HabitInput{
			Name:        h.Name,
			Description: h.Description,
			Icon:        h.Icon,
			Color:       h.Color,
			Frequency:   h.Frequency,
			TargetDays:  h.TargetDays,
			TargetCount: h.TargetCount,
			ReminderTime: func() string {
				if h.ReminderTime != nil {
					return *h.ReminderTime
				}
				return ""
			}(),
			Category: h.Category,
		}))
	}

	for i, c := range s.Data.Completions {
		path := fmt.Sprintf("data.completions[%d]", i)
		if c == nil {
			v.addf(path, "is null")
			continue
		}
		if c.ID == "" {
			v.addf(path+".id", "is required")
		}
		v.check(path, c.Validate())
	}

	if s.Data.Settings == nil {
		v.addf("data.settings", "is required")
	} else {
		v.check("data.settings", s.Data.Settings.Validate())
	}

	if len(v.issues) > 0 {
		return &ValidationError{Issues: v.issues}
	}
	return nil
}
