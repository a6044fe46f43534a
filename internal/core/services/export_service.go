package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/habitflow/sync-engine/internal/core/domain"
)

const MaxImportSize = 10 * 1024 * 1024

// ExportService shares one document format between export files and the
// sync wire.
type ExportService struct {
	store domain.LocalStore
}

func NewExportService(store domain.LocalStore) *ExportService {
	return &ExportService{store: store}
}

func (s *ExportService) BuildSnapshot(ctx context.Context) (*domain.Snapshot, error) {
	habits, err := s.store.ListHabits(ctx)
	if err != nil {
		return nil, fmt.Errorf("export: list habits: %w", err)
	}

	completions, err := s.store.ListCompletions(ctx)
	if err != nil {
		return nil, fmt.Errorf("export: list completions: %w", err)
	}

	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("export: get settings: %w", err)
	}

	return &domain.Snapshot{
		Version:    domain.ExportVersion,
		ExportedAt: time.Now().UTC(),
		App:        domain.AppName,
		Data: domain.SnapshotData{
			Habits:      habits,
			Completions: completions,
			Settings:    settings,
		},
	}, nil
}

func ParseSnapshot(raw []byte) (*domain.Snapshot, error) {
	if len(raw) > MaxImportSize {
		return nil, fmt.Errorf("import document too large (max %d bytes)", MaxImportSize)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("import document is not valid JSON: %w", err)
	}

	if err := snap.Validate(); err != nil {
		return nil, err
	}

	return &snap, nil
}

func (s *ExportService) Apply(ctx context.Context, snap *domain.Snapshot) error {
	if err := s.store.ReplaceAll(ctx, snap); err != nil {
		return fmt.Errorf("export: apply snapshot: %w", err)
	}
	return nil
}

func (s *ExportService) Import(ctx context.Context, raw []byte) (*domain.Snapshot, error) {
	snap, err := ParseSnapshot(raw)
	if err != nil {
		return nil, err
	}
	if err := s.Apply(ctx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *ExportService) ClearAll(ctx context.Context) error {
	return s.store.ClearAll(ctx)
}
