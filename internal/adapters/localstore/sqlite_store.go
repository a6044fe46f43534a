package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"

	"github.com/habitflow/sync-engine/internal/core/domain"

	_ "modernc.org/sqlite"
)

// The unique (habit_id, date) index mirrors the remote constraint.
const schema = `
CREATE TABLE IF NOT EXISTS habits (
    id            TEXT PRIMARY KEY,
    name          TEXT NOT NULL,
    description   TEXT NOT NULL DEFAULT '',
    icon          TEXT NOT NULL,
    color         TEXT NOT NULL,
    frequency     TEXT NOT NULL,
    target_days   TEXT NOT NULL DEFAULT '[]',
    target_count  INTEGER NOT NULL DEFAULT 0,
    reminder_time TEXT,
    category      TEXT NOT NULL DEFAULT '',
    sort_order    INTEGER NOT NULL DEFAULT 0,
    is_archived   INTEGER NOT NULL DEFAULT 0,
    created_at    TIMESTAMP NOT NULL,
    updated_at    TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS completions (
    id           TEXT PRIMARY KEY,
    habit_id     TEXT NOT NULL REFERENCES habits(id) ON DELETE CASCADE,
    date         TEXT NOT NULL,
    completed_at TIMESTAMP NOT NULL,
    note         TEXT NOT NULL DEFAULT ''
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_completions_habit_date
    ON completions(habit_id, date);

CREATE TABLE IF NOT EXISTS settings (
    id                   TEXT PRIMARY KEY,
    theme                TEXT NOT NULL,
    week_starts_on       INTEGER NOT NULL,
    show_streaks         INTEGER NOT NULL,
    show_completion_rate INTEGER NOT NULL,
    default_view         TEXT NOT NULL,
    sync_enabled         INTEGER NOT NULL,
    last_synced_at       TIMESTAMP,
    created_at           TIMESTAMP NOT NULL,
    updated_at           TIMESTAMP NOT NULL
);
`

type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens the database at path, creating it and applying the
// schema if needed. Pass ":memory:" for an ephemeral store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("sqlite: create data directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}

	// A single connection avoids SQLITE_BUSY under concurrent readers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) scanHabit(row scannable) (*domain.Habit, error) {
	var h domain.Habit
	var targetDaysJSON string
	var isArchived int

	err := row.Scan(
		&h.ID, &h.Name, &h.Description, &h.Icon, &h.Color,
		&h.Frequency, &targetDaysJSON, &h.TargetCount, &h.ReminderTime,
		&h.Category, &h.SortOrder, &isArchived, &h.CreatedAt, &h.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	h.IsArchived = isArchived != 0
	if err := json.Unmarshal([]byte(targetDaysJSON), &h.TargetDays); err != nil {
		return nil, fmt.Errorf("sqlite: unmarshal target days: %w", err)
	}

	return &h, nil
}

type scannable interface {
	Scan(dest ...interface{}) error
}

const habitColumns = `id, name, description, icon, color, frequency, target_days,
    target_count, reminder_time, category, sort_order, is_archived, created_at, updated_at`

func (s *SQLiteStore) ListHabits(ctx context.Context) ([]*domain.Habit, error) {
	query := `SELECT ` + habitColumns + ` FROM habits ORDER BY sort_order ASC, created_at ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list habits: %w", err)
	}
	defer rows.Close()

	var habits []*domain.Habit
	for rows.Next() {
		h, err := s.scanHabit(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan habit: %w", err)
		}
		habits = append(habits, h)
	}
	return habits, rows.Err()
}

func (s *SQLiteStore) GetHabit(ctx context.Context, id string) (*domain.Habit, error) {
	query := `SELECT ` + habitColumns + ` FROM habits WHERE id = ?`

	h, err := s.scanHabit(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrHabitNotFound
		}
		return nil, fmt.Errorf("sqlite: get habit: %w", err)
	}
	return h, nil
}

func (s *SQLiteStore) PutHabit(ctx context.Context, h *domain.Habit) error {
	targetDaysJSON, err := json.Marshal(h.TargetDays)
	if err != nil {
		return fmt.Errorf("sqlite: marshal target days: %w", err)
	}

	query := `
        INSERT INTO habits (` + habitColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            name=excluded.name, description=excluded.description,
            icon=excluded.icon, color=excluded.color,
            frequency=excluded.frequency, target_days=excluded.target_days,
            target_count=excluded.target_count, reminder_time=excluded.reminder_time,
            category=excluded.category, sort_order=excluded.sort_order,
            is_archived=excluded.is_archived, updated_at=excluded.updated_at`

	isArchived := 0
	if h.IsArchived {
		isArchived = 1
	}

	_, err = s.db.ExecContext(ctx, query,
		h.ID, h.Name, h.Description, h.Icon, h.Color,
		h.Frequency, string(targetDaysJSON), h.TargetCount, h.ReminderTime,
		h.Category, h.SortOrder, isArchived, h.CreatedAt, h.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upsert habit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteHabit(ctx context.Context, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin delete: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM completions WHERE habit_id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: cascade completions: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM habits WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: delete habit: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrHabitNotFound
	}

	return tx.Commit()
}

const completionColumns = `id, habit_id, date, completed_at, note`

func (s *SQLiteStore) scanCompletion(row scannable) (*domain.HabitCompletion, error) {
	var c domain.HabitCompletion
	err := row.Scan(&c.ID, &c.HabitID, &c.Date, &c.CompletedAt, &c.Note)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *SQLiteStore) ListCompletions(ctx context.Context) ([]*domain.HabitCompletion, error) {
	query := `SELECT ` + completionColumns + ` FROM completions ORDER BY date ASC, habit_id ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list completions: %w", err)
	}
	defer rows.Close()

	var completions []*domain.HabitCompletion
	for rows.Next() {
		c, err := s.scanCompletion(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan completion: %w", err)
		}
		completions = append(completions, c)
	}
	return completions, rows.Err()
}

func (s *SQLiteStore) ListCompletionsByHabit(ctx context.Context, habitID string) ([]*domain.HabitCompletion, error) {
	query := `SELECT ` + completionColumns + ` FROM completions WHERE habit_id = ? ORDER BY date ASC`

	rows, err := s.db.QueryContext(ctx, query, habitID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list completions by habit: %w", err)
	}
	defer rows.Close()

	var completions []*domain.HabitCompletion
	for rows.Next() {
		c, err := s.scanCompletion(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan completion: %w", err)
		}
		completions = append(completions, c)
	}
	return completions, rows.Err()
}

func (s *SQLiteStore) FindCompletion(ctx context.Context, habitID, date string) (*domain.HabitCompletion, error) {
	query := `SELECT ` + completionColumns + ` FROM completions WHERE habit_id = ? AND date = ?`

	c, err := s.scanCompletion(s.db.QueryRowContext(ctx, query, habitID, date))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCompletionNotFound
		}
		return nil, fmt.Errorf("sqlite: find completion: %w", err)
	}
	return c, nil
}

func (s *SQLiteStore) PutCompletion(ctx context.Context, c *domain.HabitCompletion) error {
	query := `
        INSERT INTO completions (` + completionColumns + `)
        VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            completed_at=excluded.completed_at, note=excluded.note`

	_, err := s.db.ExecContext(ctx, query, c.ID, c.HabitID, c.Date, c.CompletedAt, c.Note)
	if err != nil {
		return fmt.Errorf("sqlite: upsert completion: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteCompletion(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM completions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: delete completion: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrCompletionNotFound
	}
	return nil
}

func (s *SQLiteStore) GetSettings(ctx context.Context) (*domain.UserSettings, error) {
	query := `
        SELECT id, theme, week_starts_on, show_streaks, show_completion_rate,
               default_view, sync_enabled, last_synced_at, created_at, updated_at
        FROM settings WHERE id = ?`

	var st domain.UserSettings
	var showStreaks, showRate, syncEnabled int

	err := s.db.QueryRowContext(ctx, query, domain.SettingsID).Scan(
		&st.ID, &st.Theme, &st.WeekStartsOn, &showStreaks, &showRate,
		&st.DefaultView, &syncEnabled, &st.LastSyncedAt, &st.CreatedAt, &st.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		defaults := domain.DefaultSettings()
		if err := s.PutSettings(ctx, defaults); err != nil {
			return nil, err
		}
		return defaults, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get settings: %w", err)
	}

	st.ShowStreaks = showStreaks != 0
	st.ShowCompletionRate = showRate != 0
	st.SyncEnabled = syncEnabled != 0
	return &st, nil
}

func (s *SQLiteStore) PutSettings(ctx context.Context, st *domain.UserSettings) error {
	query := `
        INSERT INTO settings (
            id, theme, week_starts_on, show_streaks, show_completion_rate,
            default_view, sync_enabled, last_synced_at, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            theme=excluded.theme, week_starts_on=excluded.week_starts_on,
            show_streaks=excluded.show_streaks,
            show_completion_rate=excluded.show_completion_rate,
            default_view=excluded.default_view, sync_enabled=excluded.sync_enabled,
            last_synced_at=excluded.last_synced_at, updated_at=excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		st.ID, st.Theme, st.WeekStartsOn, boolToInt(st.ShowStreaks), boolToInt(st.ShowCompletionRate),
		st.DefaultView, boolToInt(st.SyncEnabled), st.LastSyncedAt, st.CreatedAt, st.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upsert settings: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ReplaceAll(ctx context.Context, snap *domain.Snapshot) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin replace: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"completions", "habits", "settings"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("sqlite: clear %s: %w", table, err)
		}
	}

	for _, h := range snap.Data.Habits {
		targetDaysJSON, err := json.Marshal(h.TargetDays)
		if err != nil {
			return fmt.Errorf("sqlite: marshal target days: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO habits (`+habitColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			h.ID, h.Name, h.Description, h.Icon, h.Color,
			h.Frequency, string(targetDaysJSON), h.TargetCount, h.ReminderTime,
			h.Category, h.SortOrder, boolToInt(h.IsArchived), h.CreatedAt, h.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("sqlite: insert habit %s: %w", h.ID, err)
		}
	}

	for _, c := range snap.Data.Completions {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO completions (`+completionColumns+`) VALUES (?, ?, ?, ?, ?)`,
			c.ID, c.HabitID, c.Date, c.CompletedAt, c.Note,
		)
		if err != nil {
			return fmt.Errorf("sqlite: insert completion %s: %w", c.ID, err)
		}
	}

	st := snap.Data.Settings
	_, err = tx.ExecContext(ctx,
		`INSERT INTO settings (
            id, theme, week_starts_on, show_streaks, show_completion_rate,
            default_view, sync_enabled, last_synced_at, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.ID, st.Theme, st.WeekStartsOn, boolToInt(st.ShowStreaks), boolToInt(st.ShowCompletionRate),
		st.DefaultView, boolToInt(st.SyncEnabled), st.LastSyncedAt, st.CreatedAt, st.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert settings: %w", err)
	}

	return tx.Commit()
}

func (s *SQLiteStore) ClearAll(ctx context.Context) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin clear: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"completions", "habits", "settings"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("sqlite: clear %s: %w", table, err)
		}
	}

	return tx.Commit()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ domain.LocalStore = (*SQLiteStore)(nil)
