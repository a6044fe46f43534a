package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/habitflow/sync-engine/internal/core/domain"
)

type CompletionSyncService struct {
	auth   domain.AuthProvider
	remote domain.RemoteCompletionStore
	echoes *echoSet
}

func NewCompletionSyncService(auth domain.AuthProvider, remote domain.RemoteCompletionStore) *CompletionSyncService {
	return &CompletionSyncService{
		auth:   auth,
		remote: remote,
		echoes: newEchoSet(EchoTTL),
	}
}

func (s *CompletionSyncService) PushCompletion(ctx context.Context, ownerID string, c *domain.HabitCompletion) error {
	rec := &domain.RemoteCompletion{
		OwnerID:     ownerID,
		HabitID:     c.HabitID,
		Date:        c.Date,
		CompletedAt: c.CompletedAt,
		Note:        c.Note,
		LocalID:     c.ID,
	}

	// Mark before the network call so the echo arrives after the mark.
	s.echoes.Mark(c.ID)

	_, err := s.remote.Find(ctx, ownerID, c.HabitID, c.Date)
	switch {
	case err == nil:
		if err := s.remote.Update(ctx, rec); err != nil {
			return fmt.Errorf("completion sync: update: %w", err)
		}
		return nil
	case errors.Is(err, domain.ErrRemoteNotFound):
		if err := s.remote.Create(ctx, rec); err != nil {
			if errors.Is(err, domain.ErrDuplicateCompletion) {
				log.Printf("[completion-sync] create race for habit %s on %s, other device wins", c.HabitID, c.Date)
				return nil
			}
			return fmt.Errorf("completion sync: create: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("completion sync: find: %w", err)
	}
}

func (s *CompletionSyncService) DeleteCompletion(ctx context.Context, ownerID, habitID, date, localID string) error {
	s.echoes.Mark(localID)

	if err := s.remote.Delete(ctx, ownerID, habitID, date); err != nil {
		if errors.Is(err, domain.ErrRemoteNotFound) {
			return nil
		}
		return fmt.Errorf("completion sync: delete: %w", err)
	}
	return nil
}

func (s *CompletionSyncService) Subscribe(ctx context.Context, ownerID string, fn func(ev domain.CompletionEvent)) (func(), error) {
	unsubscribe, err := s.remote.Subscribe(ctx, ownerID, func(ev domain.CompletionEvent) {
		if ev.Record.OwnerID != ownerID {
			return
		}
		if s.echoes.Contains(ev.Record.LocalID) {
			log.Printf("[completion-sync] suppressed self-echo for %s", ev.Record.LocalID)
			return
		}
		fn(ev)
	})
	if err != nil {
		return nil, fmt.Errorf("completion sync: subscribe: %w", err)
	}
	return unsubscribe, nil
}

func (s *CompletionSyncService) PullAllCompletions(ctx context.Context, ownerID string) []*domain.RemoteCompletion {
	records, err := s.remote.ListByOwner(ctx, ownerID)
	if err != nil {
		log.Printf("[completion-sync] pull all failed: %v", err)
		return nil
	}
	return records
}

func (s *CompletionSyncService) PushAsync(c *domain.HabitCompletion) {
	completion := *c
	go func() {
		ctx := context.Background()
		user, err := s.auth.GetUser(ctx)
		if err != nil || user == nil {
			return
		}
		if err := s.PushCompletion(ctx, user.ID, &completion); err != nil {
			log.Printf("[completion-sync] background push failed: %v", err)
		}
	}()
}

func (s *CompletionSyncService) DeleteAsync(habitID, date, localID string) {
	go func() {
		ctx := context.Background()
		user, err := s.auth.GetUser(ctx)
		if err != nil || user == nil {
			return
		}
		if err := s.DeleteCompletion(ctx, user.ID, habitID, date, localID); err != nil {
			log.Printf("[completion-sync] background delete failed: %v", err)
		}
	}()
}
