package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// DefaultDBPath returns the default database location,
// ~/.config/workfeed/state.db.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "state.db")
	}
	return filepath.Join(home, ".config", "workfeed", "state.db")
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating state directory %s: %w", dir, err)
		}
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// GetSetting returns the stored value for key and whether it exists.
func (s *SQLiteStore) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.GetContext(ctx, &value, "SELECT value FROM settings WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading setting %q: %w", key, err)
	}
	return value, true, nil
}

// SetSetting stores or replaces the value for key.
func (s *SQLiteStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("writing setting %q: %w", key, err)
	}
	return nil
}

// DeleteSetting removes key, ignoring absence.
func (s *SQLiteStore) DeleteSetting(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key); err != nil {
		return fmt.Errorf("deleting setting %q: %w", key, err)
	}
	return nil
}

// PinnedIDs returns pinned notification ids, oldest pin first.
func (s *SQLiteStore) PinnedIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids, "SELECT id FROM pinned ORDER BY pinned_at, id")
	if err != nil {
		return nil, fmt.Errorf("reading pinned ids: %w", err)
	}
	return ids, nil
}

// AddPin records a pinned notification id.
func (s *SQLiteStore) AddPin(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO pinned (id) VALUES (?)", id)
	if err != nil {
		return fmt.Errorf("adding pin %q: %w", id, err)
	}
	return nil
}

// RemovePin removes a pinned notification id, ignoring absence.
func (s *SQLiteStore) RemovePin(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM pinned WHERE id = ?", id); err != nil {
		return fmt.Errorf("removing pin %q: %w", id, err)
	}
	return nil
}

// Baseline returns the repo -> last-seen-commit-SHA map.
func (s *SQLiteStore) Baseline(ctx context.Context) (map[string]string, error) {
	rows := []struct {
		Repo string `db:"repo"`
		SHA  string `db:"sha"`
	}{}
	if err := s.db.SelectContext(ctx, &rows, "SELECT repo, sha FROM commit_baseline"); err != nil {
		return nil, fmt.Errorf("reading commit baseline: %w", err)
	}

	baseline := make(map[string]string, len(rows))
	for _, r := range rows {
		baseline[r.Repo] = r.SHA
	}
	return baseline, nil
}

// ReplaceBaseline replaces the baseline wholesale in one transaction.
func (s *SQLiteStore) ReplaceBaseline(ctx context.Context, baseline map[string]string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning baseline transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM commit_baseline"); err != nil {
		return fmt.Errorf("clearing commit baseline: %w", err)
	}
	for repo, sha := range baseline {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO commit_baseline (repo, sha) VALUES (?, ?)", repo, sha); err != nil {
			return fmt.Errorf("writing baseline for %s: %w", repo, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing baseline: %w", err)
	}
	return nil
}

// ClearBaseline drops the baseline entirely.
func (s *SQLiteStore) ClearBaseline(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM commit_baseline"); err != nil {
		return fmt.Errorf("clearing commit baseline: %w", err)
	}
	return nil
}
