package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/habitflow/sync-engine/internal/adapters/localstore"
	"github.com/habitflow/sync-engine/internal/adapters/remote"
	"github.com/habitflow/sync-engine/internal/core/domain"
	"github.com/habitflow/sync-engine/internal/core/services"
	"github.com/habitflow/sync-engine/internal/core/workers"
)

type trackerFixture struct {
	store       *localstore.MemoryStore
	remote      *remote.MemoryCompletionStore
	snapshots   *remote.MemorySnapshotStore
	scheduler   *workers.PushScheduler
	tracker     *services.TrackerService
}

func newTrackerFixture(t *testing.T, user *domain.SyncUser) *trackerFixture {
	t.Helper()

	store := localstore.NewMemoryStore()
	completionStore := remote.NewMemoryCompletionStore()
	snapshotStore := remote.NewMemorySnapshotStore()
	auth := newFakeAuth(user)

	syncSvc := services.NewSnapshotSyncService(auth, snapshotStore, services.NewExportService(store))
	scheduler := workers.NewPushSchedulerWithDelay(auth, syncSvc, 10*time.Millisecond)
	t.Cleanup(scheduler.Cancel)

	completionSvc := services.NewCompletionSyncService(auth, completionStore)

	return &trackerFixture{
		store:     store,
		remote:    completionStore,
		snapshots: snapshotStore,
		scheduler: scheduler,
		tracker:   services.NewTrackerService(store, scheduler, completionSvc),
	}
}

func TestTrackerService_Habits(t *testing.T) {
	ctx := context.Background()

	t.Run("Create appends sort order", func(t *testing.T) {
		f := newTrackerFixture(t, nil)

		first, err := f.tracker.CreateHabit(ctx, domain.HabitInput{Name: "One", Frequency: domain.FreqDaily})
		require.NoError(t, err)
		second, err := f.tracker.CreateHabit(ctx, domain.HabitInput{Name: "Two", Frequency: domain.FreqDaily})
		require.NoError(t, err)

		assert.Equal(t, 0, first.SortOrder)
		assert.Equal(t, 1, second.SortOrder)
	})

	t.Run("Delete cascades to completions", func(t *testing.T) {
		f := newTrackerFixture(t, nil)

		habit, err := f.tracker.CreateHabit(ctx, domain.HabitInput{Name: "Gym", Frequency: domain.FreqDaily})
		require.NoError(t, err)

		done, _, err := f.tracker.ToggleCompletion(ctx, habit.ID, "2025-06-01", "")
		require.NoError(t, err)
		require.True(t, done)

		require.NoError(t, f.tracker.DeleteHabit(ctx, habit.ID))

		completions, err := f.store.ListCompletions(ctx)
		require.NoError(t, err)
		assert.Empty(t, completions)
	})

	t.Run("Archive then update is rejected", func(t *testing.T) {
		f := newTrackerFixture(t, nil)

		habit, err := f.tracker.CreateHabit(ctx, domain.HabitInput{Name: "Gym", Frequency: domain.FreqDaily})
		require.NoError(t, err)
		require.NoError(t, f.tracker.ArchiveHabit(ctx, habit.ID))

		_, err = f.tracker.UpdateHabit(ctx, habit.ID, domain.HabitInput{Name: "Nope", Frequency: domain.FreqDaily})
		assert.ErrorIs(t, err, domain.ErrHabitArchived)
	})
}

func TestTrackerService_ToggleCompletion(t *testing.T) {
	ctx := context.Background()

	t.Run("Toggle on creates, toggle off deletes", func(t *testing.T) {
		f := newTrackerFixture(t, nil)

		habit, err := f.tracker.CreateHabit(ctx, domain.HabitInput{Name: "Gym", Frequency: domain.FreqDaily})
		require.NoError(t, err)

		done, completion, err := f.tracker.ToggleCompletion(ctx, habit.ID, "2025-06-01", "")
		require.NoError(t, err)
		assert.True(t, done)
		require.NotNil(t, completion)

		// Same key again: at most one completion per (habit, date).
		done, _, err = f.tracker.ToggleCompletion(ctx, habit.ID, "2025-06-01", "")
		require.NoError(t, err)
		assert.False(t, done)

		completions, err := f.store.ListCompletions(ctx)
		require.NoError(t, err)
		assert.Empty(t, completions)
	})

	t.Run("Toggle propagates through the incremental channel when signed in", func(t *testing.T) {
		f := newTrackerFixture(t, testUser)

		habit, err := f.tracker.CreateHabit(ctx, domain.HabitInput{Name: "Gym", Frequency: domain.FreqDaily})
		require.NoError(t, err)

		_, completion, err := f.tracker.ToggleCompletion(ctx, habit.ID, "2025-06-01", "")
		require.NoError(t, err)

		assert.Eventually(t, func() bool {
			rec, err := f.remote.Find(ctx, testUser.ID, habit.ID, "2025-06-01")
			return err == nil && rec.LocalID == completion.ID
		}, time.Second, 5*time.Millisecond, "fire-and-forget push should land remotely")

		_, _, err = f.tracker.ToggleCompletion(ctx, habit.ID, "2025-06-01", "")
		require.NoError(t, err)

		assert.Eventually(t, func() bool {
			_, err := f.remote.Find(ctx, testUser.ID, habit.ID, "2025-06-01")
			return err != nil
		}, time.Second, 5*time.Millisecond, "toggle-off must delete the remote record")
	})

	t.Run("Mutations trigger a debounced snapshot push", func(t *testing.T) {
		f := newTrackerFixture(t, testUser)

		_, err := f.tracker.CreateHabit(ctx, domain.HabitInput{Name: "Gym", Frequency: domain.FreqDaily})
		require.NoError(t, err)

		assert.Eventually(t, func() bool {
			_, err := f.snapshots.Fetch(ctx, testUser.ID)
			return err == nil
		}, time.Second, 5*time.Millisecond)
	})
}

func TestTrackerService_Notes(t *testing.T) {
	ctx := context.Background()
	f := newTrackerFixture(t, nil)

	habit, err := f.tracker.CreateHabit(ctx, domain.HabitInput{Name: "Gym", Frequency: domain.FreqDaily})
	require.NoError(t, err)

	_, _, err = f.tracker.ToggleCompletion(ctx, habit.ID, "2025-06-01", "")
	require.NoError(t, err)

	require.NoError(t, f.tracker.SetCompletionNote(ctx, habit.ID, "2025-06-01", "leg day"))

	stored, err := f.store.FindCompletion(ctx, habit.ID, "2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, "leg day", stored.Note)
}

func TestTrackerService_Settings(t *testing.T) {
	ctx := context.Background()
	f := newTrackerFixture(t, nil)

	t.Run("First access creates defaults", func(t *testing.T) {
		settings, err := f.tracker.GetSettings(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.SettingsID, settings.ID)
		assert.Equal(t, domain.ThemeSystem, settings.Theme)
	})

	t.Run("Partial update keeps unspecified fields", func(t *testing.T) {
		theme := domain.ThemeDark
		updated, err := f.tracker.UpdateSettings(ctx, services.SettingsInput{Theme: &theme})
		require.NoError(t, err)

		assert.Equal(t, domain.ThemeDark, updated.Theme)
		assert.True(t, updated.ShowStreaks)
	})

	t.Run("Error: Invalid theme rejected", func(t *testing.T) {
		theme := "neon"
		_, err := f.tracker.UpdateSettings(ctx, services.SettingsInput{Theme: &theme})
		assert.ErrorIs(t, err, domain.ErrInvalidTheme)
	})
}
