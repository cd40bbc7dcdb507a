package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps snapshots in a local SQLite database, the device-local
// persistence option for embedded deployments.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("snapshot: sqlite path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open sqlite: %w", err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS ask_snapshots (
  user_key TEXT PRIMARY KEY,
  version INTEGER NOT NULL,
  payload TEXT NOT NULL,
  updated_at TEXT NOT NULL
);`)
	if err != nil {
		return fmt.Errorf("snapshot: migrate: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Load(ctx context.Context, userKey string) (Snapshot, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM ask_snapshots WHERE user_key = ?`, safeKey(userKey)).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: load: %w", err)
	}
	return decode([]byte(payload))
}

func (s *SQLiteStore) Save(ctx context.Context, userKey string, snap Snapshot) error {
	data, err := encode(snap)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx, `
INSERT INTO ask_snapshots (user_key, version, payload, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (user_key)
DO UPDATE SET version=excluded.version, payload=excluded.payload, updated_at=excluded.updated_at`,
		safeKey(userKey), SchemaVersion, string(data), now)
	if err != nil {
		return fmt.Errorf("snapshot: save: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, userKey string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM ask_snapshots WHERE user_key = ?`, safeKey(userKey))
	return err
}
