package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/habitflow/sync-engine/internal/core/domain"
)

// SnapshotSyncService merges only on pull; push uploads local state as-is.
type SnapshotSyncService struct {
	auth   domain.AuthProvider
	remote domain.RemoteSnapshotStore
	export *ExportService
}

func NewSnapshotSyncService(auth domain.AuthProvider, remote domain.RemoteSnapshotStore, export *ExportService) *SnapshotSyncService {
	return &SnapshotSyncService{
		auth:   auth,
		remote: remote,
		export: export,
	}
}

// Pull returns (nil, nil) when there is no signed-in user or no remote snapshot yet.
func (s *SnapshotSyncService) Pull(ctx context.Context) (*domain.MergeResult, error) {
	user, err := s.auth.GetUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync pull: resolve user: %w", err)
	}
	if user == nil {
		return nil, nil
	}

	record, err := s.remote.Fetch(ctx, user.ID)
	if err != nil {
		if errors.Is(err, domain.ErrRemoteNotFound) {
			log.Println("[sync] no remote snapshot found, first sync")
			return nil, nil
		}
		return nil, fmt.Errorf("sync pull: fetch remote snapshot: %w", err)
	}

	if record.Payload == nil {
		return nil, fmt.Errorf("sync pull: remote snapshot has empty payload")
	}
	if err := record.Payload.Validate(); err != nil {
		return nil, fmt.Errorf("sync pull: remote snapshot rejected: %w", err)
	}

	local, err := s.export.BuildSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync pull: build local snapshot: %w", err)
	}

	merged, result := MergeSnapshots(local, record.Payload)

	if result.HasChanges() {
		if err := s.export.Apply(ctx, merged); err != nil {
			return nil, fmt.Errorf("sync pull: apply merged snapshot: %w", err)
		}
		log.Printf("[sync] pull applied changes: habits=%d completions=%d settings=%t",
			result.HabitsUpdated, result.CompletionsAdded, result.SettingsUpdated)
	} else {
		log.Println("[sync] pull: local already up to date")
	}

	return &result, nil
}

func (s *SnapshotSyncService) Push(ctx context.Context) error {
	user, err := s.auth.GetUser(ctx)
	if err != nil {
		return fmt.Errorf("sync push: resolve user: %w", err)
	}
	if user == nil {
		return nil
	}

	snap, err := s.export.BuildSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("sync push: build local snapshot: %w", err)
	}

	record := &domain.SnapshotRecord{
		OwnerID:    user.ID,
		Payload:    snap,
		ExportedAt: snap.ExportedAt,
	}

	if err := s.remote.Upsert(ctx, record); err != nil {
		return fmt.Errorf("sync push: upsert remote snapshot: %w", err)
	}

	log.Printf("[sync] push complete: habits=%d completions=%d",
		len(snap.Data.Habits), len(snap.Data.Completions))
	return nil
}

// Sync pulls, then unconditionally pushes the post-merge state.
func (s *SnapshotSyncService) Sync(ctx context.Context) (*domain.MergeResult, error) {
	result, err := s.Pull(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.Push(ctx); err != nil {
		return result, err
	}

	return result, nil
}
