package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/habitflow/sync-engine/internal/adapters/remote"
	"github.com/habitflow/sync-engine/internal/core/domain"
	"github.com/habitflow/sync-engine/internal/core/services"
)

func newCompletion(t *testing.T, habitID, date string) *domain.HabitCompletion {
	t.Helper()
	c, err := domain.NewHabitCompletion(habitID, date, "")
	require.NoError(t, err)
	return c
}

func TestCompletionSyncService_PushCompletion(t *testing.T) {
	ctx := context.Background()

	t.Run("Creates when no remote record exists", func(t *testing.T) {
		store := remote.NewMemoryCompletionStore()
		svc := services.NewCompletionSyncService(newFakeAuth(testUser), store)
		c := newCompletion(t, "h1", "2025-06-01")

		require.NoError(t, svc.PushCompletion(ctx, testUser.ID, c))

		rec, err := store.Find(ctx, testUser.ID, "h1", "2025-06-01")
		require.NoError(t, err)
		assert.Equal(t, c.ID, rec.LocalID)
	})

	t.Run("Updates when the composite key already exists", func(t *testing.T) {
		store := remote.NewMemoryCompletionStore()
		svc := services.NewCompletionSyncService(newFakeAuth(testUser), store)

		first := newCompletion(t, "h1", "2025-06-01")
		require.NoError(t, svc.PushCompletion(ctx, testUser.ID, first))

		second := newCompletion(t, "h1", "2025-06-01")
		second.Note = "second push"
		require.NoError(t, svc.PushCompletion(ctx, testUser.ID, second))

		rec, err := store.Find(ctx, testUser.ID, "h1", "2025-06-01")
		require.NoError(t, err)
		assert.Equal(t, "second push", rec.Note)
		assert.Equal(t, second.ID, rec.LocalID)
	})

	t.Run("Uniqueness race on create is swallowed", func(t *testing.T) {
		store := new(MockCompletionStore)
		store.On("Find", ctx, testUser.ID, "h1", "2025-06-01").Return(nil, domain.ErrRemoteNotFound)
		store.On("Create", ctx, mock.AnythingOfType("*domain.RemoteCompletion")).Return(domain.ErrDuplicateCompletion)

		svc := services.NewCompletionSyncService(newFakeAuth(testUser), store)

		err := svc.PushCompletion(ctx, testUser.ID, newCompletion(t, "h1", "2025-06-01"))
		assert.NoError(t, err, "losing the create race is recovered via the feed, not surfaced")
	})

	t.Run("Error: Transport failure propagates", func(t *testing.T) {
		store := new(MockCompletionStore)
		store.On("Find", ctx, testUser.ID, "h1", "2025-06-01").Return(nil, errors.New("timeout"))

		svc := services.NewCompletionSyncService(newFakeAuth(testUser), store)

		err := svc.PushCompletion(ctx, testUser.ID, newCompletion(t, "h1", "2025-06-01"))
		assert.ErrorContains(t, err, "timeout")
	})
}

func TestCompletionSyncService_DeleteCompletion(t *testing.T) {
	ctx := context.Background()

	t.Run("Deletes existing remote record", func(t *testing.T) {
		store := remote.NewMemoryCompletionStore()
		svc := services.NewCompletionSyncService(newFakeAuth(testUser), store)

		c := newCompletion(t, "h1", "2025-06-01")
		require.NoError(t, svc.PushCompletion(ctx, testUser.ID, c))

		require.NoError(t, svc.DeleteCompletion(ctx, testUser.ID, "h1", "2025-06-01", c.ID))

		_, err := store.Find(ctx, testUser.ID, "h1", "2025-06-01")
		assert.ErrorIs(t, err, domain.ErrRemoteNotFound)
	})

	t.Run("Already deleted remotely: treated as satisfied", func(t *testing.T) {
		store := remote.NewMemoryCompletionStore()
		svc := services.NewCompletionSyncService(newFakeAuth(testUser), store)

		err := svc.DeleteCompletion(ctx, testUser.ID, "h1", "2025-06-01", "some-local-id")
		assert.NoError(t, err)
	})
}

func TestCompletionSyncService_Subscribe(t *testing.T) {
	ctx := context.Background()

	t.Run("Self-echo within TTL is suppressed, foreign events delivered", func(t *testing.T) {
		store := remote.NewMemoryCompletionStore()
		svc := services.NewCompletionSyncService(newFakeAuth(testUser), store)

		var received []domain.CompletionEvent
		unsub, err := svc.Subscribe(ctx, testUser.ID, func(ev domain.CompletionEvent) {
			received = append(received, ev)
		})
		require.NoError(t, err)
		defer unsub()

		// This device's own push: the feed event carries our local ID
		// and must be dropped.
		mine := newCompletion(t, "h1", "2025-06-01")
		require.NoError(t, svc.PushCompletion(ctx, testUser.ID, mine))
		assert.Empty(t, received)

		// Another device's push for the same owner: different local ID,
		// must come through.
		other := &domain.RemoteCompletion{
			OwnerID:     testUser.ID,
			HabitID:     "h2",
			Date:        "2025-06-01",
			CompletedAt: time.Now().UTC(),
			LocalID:     "other-device-id",
		}
		require.NoError(t, store.Create(ctx, other))

		require.Len(t, received, 1)
		assert.Equal(t, domain.ActionCreate, received[0].Action)
		assert.Equal(t, "h2", received[0].Record.HabitID)
	})

	t.Run("Events for other owners are dropped", func(t *testing.T) {
		store := remote.NewMemoryCompletionStore()
		svc := services.NewCompletionSyncService(newFakeAuth(testUser), store)

		var received []domain.CompletionEvent
		unsub, err := svc.Subscribe(ctx, testUser.ID, func(ev domain.CompletionEvent) {
			received = append(received, ev)
		})
		require.NoError(t, err)
		defer unsub()

		foreign := &domain.RemoteCompletion{
			OwnerID:     "someone-else",
			HabitID:     "h1",
			Date:        "2025-06-01",
			CompletedAt: time.Now().UTC(),
			LocalID:     "foreign-id",
		}
		require.NoError(t, store.Create(ctx, foreign))

		assert.Empty(t, received)
	})

	t.Run("Unsubscribe stops delivery", func(t *testing.T) {
		store := remote.NewMemoryCompletionStore()
		svc := services.NewCompletionSyncService(newFakeAuth(testUser), store)

		var received int
		unsub, err := svc.Subscribe(ctx, testUser.ID, func(ev domain.CompletionEvent) {
			received++
		})
		require.NoError(t, err)
		unsub()

		rec := &domain.RemoteCompletion{
			OwnerID: testUser.ID, HabitID: "h1", Date: "2025-06-01",
			CompletedAt: time.Now().UTC(), LocalID: "x",
		}
		require.NoError(t, store.Create(ctx, rec))

		assert.Zero(t, received)
	})
}

func TestCompletionSyncService_PullAllCompletions(t *testing.T) {
	ctx := context.Background()

	t.Run("Returns owner's records", func(t *testing.T) {
		store := remote.NewMemoryCompletionStore()
		svc := services.NewCompletionSyncService(newFakeAuth(testUser), store)

		require.NoError(t, store.Create(ctx, &domain.RemoteCompletion{
			OwnerID: testUser.ID, HabitID: "h1", Date: "2025-06-01",
			CompletedAt: time.Now().UTC(), LocalID: "a",
		}))
		require.NoError(t, store.Create(ctx, &domain.RemoteCompletion{
			OwnerID: "other", HabitID: "h1", Date: "2025-06-01",
			CompletedAt: time.Now().UTC(), LocalID: "b",
		}))

		records := svc.PullAllCompletions(ctx, testUser.ID)
		require.Len(t, records, 1)
		assert.Equal(t, testUser.ID, records[0].OwnerID)
	})

	t.Run("Failure yields empty list, never an error", func(t *testing.T) {
		store := new(MockCompletionStore)
		store.On("ListByOwner", ctx, testUser.ID).Return(nil, errors.New("network down"))

		svc := services.NewCompletionSyncService(newFakeAuth(testUser), store)

		assert.Empty(t, svc.PullAllCompletions(ctx, testUser.ID))
	})
}
