package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/habitflow/sync-engine/internal/core/domain"
)

// RealtimeSyncService keeps the completion feed subscribed while a user is
// signed in, with a catch-up path for reconnects.
type RealtimeSyncService struct {
	auth        domain.AuthProvider
	completions *CompletionSyncService
	snapshots   *SnapshotSyncService
	store       domain.LocalStore

	OnRemoteChange func()

	mu          sync.Mutex
	unsubscribe func()
	unsubAuth   func()
}

func NewRealtimeSyncService(
	auth domain.AuthProvider,
	completions *CompletionSyncService,
	snapshots *SnapshotSyncService,
	store domain.LocalStore,
) *RealtimeSyncService {
	return &RealtimeSyncService{
		auth:        auth,
		completions: completions,
		snapshots:   snapshots,
		store:       store,
	}
}

func (s *RealtimeSyncService) Start(ctx context.Context) error {
	user, err := s.auth.GetUser(ctx)
	if err != nil {
		return fmt.Errorf("realtime sync: resolve user: %w", err)
	}
	if user != nil {
		if err := s.subscribe(ctx, user.ID); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.unsubAuth = s.auth.OnAuthChange(func(u *domain.SyncUser) {
		if u != nil {
			if err := s.subscribe(ctx, u.ID); err != nil {
				log.Printf("[realtime-sync] subscribe on sign-in failed: %v", err)
			}
		} else {
			s.Unsubscribe()
		}
	})
	s.mu.Unlock()

	return nil
}

func (s *RealtimeSyncService) subscribe(ctx context.Context, ownerID string) error {
	s.mu.Lock()
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.mu.Unlock()

	unsub, err := s.completions.Subscribe(ctx, ownerID, func(ev domain.CompletionEvent) {
		if err := s.applyEvent(context.Background(), ev); err != nil {
			log.Printf("[realtime-sync] failed to apply remote change: %v", err)
			return
		}
		s.notify()
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.unsubscribe = unsub
	s.mu.Unlock()

	log.Println("[realtime-sync] subscribed to completion changes")
	return nil
}

func (s *RealtimeSyncService) Unsubscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
		log.Println("[realtime-sync] unsubscribed from completion changes")
	}
}

func (s *RealtimeSyncService) Stop() {
	s.Unsubscribe()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unsubAuth != nil {
		s.unsubAuth()
		s.unsubAuth = nil
	}
}

// applyEvent matches on the (habitID, date) key and keeps the existing
// local ID when a row is already there.
func (s *RealtimeSyncService) applyEvent(ctx context.Context, ev domain.CompletionEvent) error {
	local, err := s.store.FindCompletion(ctx, ev.Record.HabitID, ev.Record.Date)
	if err != nil && !errors.Is(err, domain.ErrCompletionNotFound) {
		return err
	}

	if ev.Action == domain.ActionDelete {
		if local == nil {
			return nil
		}
		return s.store.DeleteCompletion(ctx, local.ID)
	}

	completion := &domain.HabitCompletion{
		ID:          ev.Record.LocalID,
		HabitID:     ev.Record.HabitID,
		Date:        ev.Record.Date,
		CompletedAt: ev.Record.CompletedAt,
		Note:        ev.Record.Note,
	}
	if local != nil {
		completion.ID = local.ID
	}

	return s.store.PutCompletion(ctx, completion)
}

func (s *RealtimeSyncService) Reconnect(ctx context.Context) {
	log.Println("[realtime-sync] back online, running catch-up sync")

	user, err := s.auth.GetUser(ctx)
	if err != nil || user == nil {
		return
	}

	for _, rec := range s.completions.PullAllCompletions(ctx, user.ID) {
		ev := domain.CompletionEvent{Action: domain.ActionUpdate, Record: *rec}
		if err := s.applyEvent(ctx, ev); err != nil {
			log.Printf("[realtime-sync] catch-up apply failed for habit %s on %s: %v", rec.HabitID, rec.Date, err)
		}
	}

	if _, err := s.snapshots.Sync(ctx); err != nil {
		log.Printf("[realtime-sync] catch-up sync failed: %v", err)
		return
	}

	s.notify()
}

func (s *RealtimeSyncService) notify() {
	if s.OnRemoteChange != nil {
		s.OnRemoteChange()
	}
}
