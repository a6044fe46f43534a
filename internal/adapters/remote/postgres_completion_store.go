package remote

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/habitflow/sync-engine/internal/core/domain"
)

const completionSchema = `
CREATE TABLE IF NOT EXISTS sync_completions (
    owner_id     TEXT NOT NULL,
    habit_id     TEXT NOT NULL,
    date         TEXT NOT NULL,
    completed_at TIMESTAMPTZ NOT NULL,
    note         TEXT NOT NULL DEFAULT '',
    local_id     TEXT NOT NULL,
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (owner_id, habit_id, date)
);
`

func completionChannel(ownerID string) string {
	return "habitflow:completions:" + ownerID
}

// isUniqueViolation recognizes a 23505 from either Postgres driver in use
// (pgx stdlib or lib/pq).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

type PostgresCompletionStore struct {
	db  *sqlx.DB
	rdb *redis.Client
}

func NewPostgresCompletionStore(db *sqlx.DB, rdb *redis.Client) *PostgresCompletionStore {
	return &PostgresCompletionStore{db: db, rdb: rdb}
}

func (s *PostgresCompletionStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, completionSchema); err != nil {
		return fmt.Errorf("completion store: ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresCompletionStore) Find(ctx context.Context, ownerID, habitID, date string) (*domain.RemoteCompletion, error) {
	query := `
        SELECT owner_id, habit_id, date, completed_at, note, local_id
        FROM sync_completions
        WHERE owner_id = $1 AND habit_id = $2 AND date = $3`

	var rec domain.RemoteCompletion
	err := s.db.GetContext(ctx, &rec, query, ownerID, habitID, date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRemoteNotFound
		}
		return nil, fmt.Errorf("completion store: find: %w", err)
	}
	return &rec, nil
}

func (s *PostgresCompletionStore) Create(ctx context.Context, rec *domain.RemoteCompletion) error {
	query := `
        INSERT INTO sync_completions (owner_id, habit_id, date, completed_at, note, local_id)
        VALUES (:owner_id, :habit_id, :date, :completed_at, :note, :local_id)`

	if _, err := s.db.NamedExecContext(ctx, query, rec); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateCompletion
		}
		return fmt.Errorf("completion store: create: %w", err)
	}

	s.publish(ctx, domain.CompletionEvent{Action: domain.ActionCreate, Record: *rec})
	return nil
}

func (s *PostgresCompletionStore) Update(ctx context.Context, rec *domain.RemoteCompletion) error {
	query := `
        UPDATE sync_completions
        SET completed_at = :completed_at, note = :note, local_id = :local_id, updated_at = NOW()
        WHERE owner_id = :owner_id AND habit_id = :habit_id AND date = :date`

	res, err := s.db.NamedExecContext(ctx, query, rec)
	if err != nil {
		return fmt.Errorf("completion store: update: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrRemoteNotFound
	}

	s.publish(ctx, domain.CompletionEvent{Action: domain.ActionUpdate, Record: *rec})
	return nil
}

func (s *PostgresCompletionStore) Delete(ctx context.Context, ownerID, habitID, date string) error {
	// RETURNING recovers the row so the event still carries its local_id tag.
	query := `
        DELETE FROM sync_completions
        WHERE owner_id = $1 AND habit_id = $2 AND date = $3
        RETURNING owner_id, habit_id, date, completed_at, note, local_id`

	var rec domain.RemoteCompletion
	err := s.db.GetContext(ctx, &rec, query, ownerID, habitID, date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrRemoteNotFound
		}
		return fmt.Errorf("completion store: delete: %w", err)
	}

	s.publish(ctx, domain.CompletionEvent{Action: domain.ActionDelete, Record: rec})
	return nil
}

func (s *PostgresCompletionStore) ListByOwner(ctx context.Context, ownerID string) ([]*domain.RemoteCompletion, error) {
	query := `
        SELECT owner_id, habit_id, date, completed_at, note, local_id
        FROM sync_completions
        WHERE owner_id = $1
        ORDER BY date ASC, habit_id ASC`

	records := []*domain.RemoteCompletion{}
	if err := s.db.SelectContext(ctx, &records, query, ownerID); err != nil {
		return nil, fmt.Errorf("completion store: list by owner: %w", err)
	}
	return records, nil
}

func (s *PostgresCompletionStore) Subscribe(ctx context.Context, ownerID string, fn func(ev domain.CompletionEvent)) (func(), error) {
	sub := s.rdb.Subscribe(ctx, completionChannel(ownerID))

	// Confirm the subscription on the wire before returning.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("completion store: subscribe: %w", err)
	}

	go func() {
		for msg := range sub.Channel() {
			var ev domain.CompletionEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Printf("[completion-store] dropping malformed feed message: %v", err)
				continue
			}
			fn(ev)
		}
	}()

	return func() {
		if err := sub.Close(); err != nil {
			log.Printf("[completion-store] close subscription: %v", err)
		}
	}, nil
}

func (s *PostgresCompletionStore) publish(ctx context.Context, ev domain.CompletionEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[completion-store] encode event: %v", err)
		return
	}
	if err := s.rdb.Publish(ctx, completionChannel(ev.Record.OwnerID), payload).Err(); err != nil {
		log.Printf("[completion-store] publish event: %v", err)
	}
}

var _ domain.RemoteCompletionStore = (*PostgresCompletionStore)(nil)
