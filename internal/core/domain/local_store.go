package domain

import (
	"context"
	"errors"
)

var (
	ErrHabitNotFound      = errors.New("habit not found")
	ErrCompletionNotFound = errors.New("completion not found")
)

type LocalStore interface {
	ListHabits(ctx context.Context) ([]*Habit, error)
	GetHabit(ctx context.Context, id string) (*Habit, error)
	PutHabit(ctx context.Context, habit *Habit) error

	// DeleteHabit removes a habit and cascades to its completions in one transaction.
	DeleteHabit(ctx context.Context, id string) error

	ListCompletions(ctx context.Context) ([]*HabitCompletion, error)
	ListCompletionsByHabit(ctx context.Context, habitID string) ([]*HabitCompletion, error)

	// FindCompletion looks a completion up by its (habitID, date) key.
	FindCompletion(ctx context.Context, habitID, date string) (*HabitCompletion, error)
	PutCompletion(ctx context.Context, completion *HabitCompletion) error
	DeleteCompletion(ctx context.Context, id string) error

	// GetSettings returns the settings singleton, creating defaults on first access.
	GetSettings(ctx context.Context) (*UserSettings, error)
	PutSettings(ctx context.Context, settings *UserSettings) error

	// ReplaceAll atomically clears and repopulates all three tables from the snapshot.
	ReplaceAll(ctx context.Context, snap *Snapshot) error

	ClearAll(ctx context.Context) error
}
