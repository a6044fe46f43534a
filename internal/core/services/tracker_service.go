package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/habitflow/sync-engine/internal/core/domain"
	"github.com/habitflow/sync-engine/internal/core/workers"
)

// TrackerService writes locally first, then fans out to the propagation
// paths. Neither path can fail the local write.
type TrackerService struct {
	store       domain.LocalStore
	scheduler   *workers.PushScheduler
	completions *CompletionSyncService
}

func NewTrackerService(store domain.LocalStore, scheduler *workers.PushScheduler, completions *CompletionSyncService) *TrackerService {
	return &TrackerService{
		store:       store,
		scheduler:   scheduler,
		completions: completions,
	}
}

func (s *TrackerService) CreateHabit(ctx context.Context, in domain.HabitInput) (*domain.Habit, error) {
	habit, err := domain.NewHabit(in)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.ListHabits(ctx)
	if err != nil {
		return nil, fmt.Errorf("tracker: list habits: %w", err)
	}
	habit.SortOrder = len(existing)

	if err := s.store.PutHabit(ctx, habit); err != nil {
		return nil, fmt.Errorf("tracker: store habit: %w", err)
	}

	s.scheduler.Schedule()
	return habit, nil
}

func (s *TrackerService) UpdateHabit(ctx context.Context, id string, in domain.HabitInput) (*domain.Habit, error) {
	habit, err := s.store.GetHabit(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := habit.Update(in); err != nil {
		return nil, err
	}

	if err := s.store.PutHabit(ctx, habit); err != nil {
		return nil, fmt.Errorf("tracker: store habit: %w", err)
	}

	s.scheduler.Schedule()
	return habit, nil
}

func (s *TrackerService) ArchiveHabit(ctx context.Context, id string) error {
	habit, err := s.store.GetHabit(ctx, id)
	if err != nil {
		return err
	}

	habit.Archive()
	if err := s.store.PutHabit(ctx, habit); err != nil {
		return fmt.Errorf("tracker: store habit: %w", err)
	}

	s.scheduler.Schedule()
	return nil
}

func (s *TrackerService) RestoreHabit(ctx context.Context, id string) error {
	habit, err := s.store.GetHabit(ctx, id)
	if err != nil {
		return err
	}

	habit.Restore()
	if err := s.store.PutHabit(ctx, habit); err != nil {
		return fmt.Errorf("tracker: store habit: %w", err)
	}

	s.scheduler.Schedule()
	return nil
}

func (s *TrackerService) ReorderHabit(ctx context.Context, id string, newOrder int) error {
	habit, err := s.store.GetHabit(ctx, id)
	if err != nil {
		return err
	}

	if err := habit.ChangePosition(newOrder); err != nil {
		return err
	}

	if err := s.store.PutHabit(ctx, habit); err != nil {
		return fmt.Errorf("tracker: store habit: %w", err)
	}

	s.scheduler.Schedule()
	return nil
}

// DeleteHabit does not propagate through the snapshot merge; archive does.
func (s *TrackerService) DeleteHabit(ctx context.Context, id string) error {
	if err := s.store.DeleteHabit(ctx, id); err != nil {
		return err
	}

	s.scheduler.Schedule()
	return nil
}

func (s *TrackerService) ListHabits(ctx context.Context) ([]*domain.Habit, error) {
	return s.store.ListHabits(ctx)
}

func (s *TrackerService) ToggleCompletion(ctx context.Context, habitID, date, note string) (bool, *domain.HabitCompletion, error) {
	existing, err := s.store.FindCompletion(ctx, habitID, date)
	if err != nil && !errors.Is(err, domain.ErrCompletionNotFound) {
		return false, nil, err
	}

	if existing != nil {
		if err := s.store.DeleteCompletion(ctx, existing.ID); err != nil {
			return false, nil, fmt.Errorf("tracker: delete completion: %w", err)
		}

		s.scheduler.Schedule()
		s.completions.DeleteAsync(habitID, date, existing.ID)
		return false, nil, nil
	}

	completion, err := domain.NewHabitCompletion(habitID, date, note)
	if err != nil {
		return false, nil, err
	}

	if err := s.store.PutCompletion(ctx, completion); err != nil {
		return false, nil, fmt.Errorf("tracker: store completion: %w", err)
	}

	s.scheduler.Schedule()
	s.completions.PushAsync(completion)
	return true, completion, nil
}

func (s *TrackerService) SetCompletionNote(ctx context.Context, habitID, date, note string) error {
	completion, err := s.store.FindCompletion(ctx, habitID, date)
	if err != nil {
		return err
	}

	if len(note) > domain.MaxNoteLen {
		return domain.ErrNoteTooLong
	}

	completion.Note = note
	if err := s.store.PutCompletion(ctx, completion); err != nil {
		return fmt.Errorf("tracker: store completion: %w", err)
	}

	s.scheduler.Schedule()
	s.completions.PushAsync(completion)
	return nil
}

func (s *TrackerService) GetSettings(ctx context.Context) (*domain.UserSettings, error) {
	return s.store.GetSettings(ctx)
}

// SettingsInput fields left nil keep the current value.
type SettingsInput struct {
	Theme              *string
	WeekStartsOn       *int
	ShowStreaks        *bool
	ShowCompletionRate *bool
	DefaultView        *string
	SyncEnabled        *bool
}

func (s *TrackerService) UpdateSettings(ctx context.Context, in SettingsInput) (*domain.UserSettings, error) {
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return nil, err
	}

	if in.Theme != nil {
		settings.Theme = *in.Theme
	}
	if in.WeekStartsOn != nil {
		settings.WeekStartsOn = *in.WeekStartsOn
	}
	if in.ShowStreaks != nil {
		settings.ShowStreaks = *in.ShowStreaks
	}
	if in.ShowCompletionRate != nil {
		settings.ShowCompletionRate = *in.ShowCompletionRate
	}
	if in.DefaultView != nil {
		settings.DefaultView = *in.DefaultView
	}
	if in.SyncEnabled != nil {
		settings.SyncEnabled = *in.SyncEnabled
	}
	settings.UpdatedAt = time.Now().UTC()

	if err := settings.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.PutSettings(ctx, settings); err != nil {
		return nil, fmt.Errorf("tracker: store settings: %w", err)
	}

	s.scheduler.Schedule()
	return settings, nil
}
