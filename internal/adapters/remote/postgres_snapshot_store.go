package remote

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/habitflow/sync-engine/internal/core/domain"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const snapshotSchema = `
CREATE TABLE IF NOT EXISTS sync_snapshots (
    owner_id    TEXT PRIMARY KEY,
    payload     JSONB NOT NULL,
    exported_at TIMESTAMPTZ NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

type PostgresSnapshotStore struct {
	db *sqlx.DB
}

func NewPostgresSnapshotStore(db *sqlx.DB) *PostgresSnapshotStore {
	return &PostgresSnapshotStore{db: db}
}

func (s *PostgresSnapshotStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, snapshotSchema); err != nil {
		return fmt.Errorf("snapshot store: ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresSnapshotStore) Fetch(ctx context.Context, ownerID string) (*domain.SnapshotRecord, error) {
	query := `SELECT payload, exported_at FROM sync_snapshots WHERE owner_id = $1`

	var rec domain.SnapshotRecord
	var payload []byte

	err := s.db.QueryRowContext(ctx, query, ownerID).Scan(&payload, &rec.ExportedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRemoteNotFound
		}
		return nil, fmt.Errorf("snapshot store: fetch: %w", err)
	}

	rec.OwnerID = ownerID
	if err := json.Unmarshal(payload, &rec.Payload); err != nil {
		return nil, fmt.Errorf("snapshot store: decode payload: %w", err)
	}

	return &rec, nil
}

func (s *PostgresSnapshotStore) Upsert(ctx context.Context, record *domain.SnapshotRecord) error {
	payload, err := json.Marshal(record.Payload)
	if err != nil {
		return fmt.Errorf("snapshot store: encode payload: %w", err)
	}

	query := `
        INSERT INTO sync_snapshots (owner_id, payload, exported_at, updated_at)
        VALUES ($1, $2, $3, NOW())
        ON CONFLICT (owner_id) DO UPDATE SET
            payload = excluded.payload,
            exported_at = excluded.exported_at,
            updated_at = NOW()`

	if _, err := s.db.ExecContext(ctx, query, record.OwnerID, payload, record.ExportedAt); err != nil {
		return fmt.Errorf("snapshot store: upsert: %w", err)
	}
	return nil
}

var _ domain.RemoteSnapshotStore = (*PostgresSnapshotStore)(nil)
