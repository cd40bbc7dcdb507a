package seed

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/jackc/pgx/v5/stdlib"

	"askpurposely/internal/scenario"
)

// PostgresStore serves the shared pool from a Postgres table. Rows stay
// visible to every session until marked consumed; Take itself claims nothing.
type PostgresStore struct {
	db *sql.DB

	schemaOnce sync.Once
	schemaErr  error

	// consumedCache remembers ids already marked consumed so repeated
	// Consume calls for the same item skip the UPDATE round-trip.
	consumedCache *lru.Cache[string, struct{}]
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	cache, err := lru.New[string, struct{}](4096)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db, consumedCache: cache}, nil
}

func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PostgresStore) ensureSchema() error {
	if s == nil || s.db == nil {
		return nil
	}
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.Exec(`
CREATE TABLE IF NOT EXISTS seed_scenarios (
  id TEXT PRIMARY KEY,
  question TEXT NOT NULL,
  perspective TEXT NOT NULL,
  tags TEXT NOT NULL DEFAULT '[]',
  created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
  consumed_at TIMESTAMP WITH TIME ZONE
);
CREATE INDEX IF NOT EXISTS idx_seed_scenarios_available ON seed_scenarios (created_at) WHERE consumed_at IS NULL;
`)
	})
	return s.schemaErr
}

// Take fetches up to n unconsumed rows, oldest first. Any failure is treated
// as pool exhaustion and logged, never returned.
func (s *PostgresStore) Take(ctx context.Context, userID string, n int) []scenario.Raw {
	if s == nil || n <= 0 {
		return nil
	}
	if err := s.ensureSchema(); err != nil {
		log.Printf("seed: schema: %v", err)
		return nil
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, question, perspective, tags, created_at
FROM seed_scenarios
WHERE consumed_at IS NULL
ORDER BY created_at ASC
LIMIT $1`, n)
	if err != nil {
		log.Printf("seed: take for %s: %v", userID, err)
		return nil
	}
	defer rows.Close()

	out := make([]scenario.Raw, 0, n)
	for rows.Next() {
		var (
			id, question, perspective, tagsJSON string
			createdAt                           time.Time
		)
		if err := rows.Scan(&id, &question, &perspective, &tagsJSON, &createdAt); err != nil {
			continue
		}
		var tags []any
		_ = json.Unmarshal([]byte(tagsJSON), &tags)
		out = append(out, scenario.Raw{
			"id":          id,
			"question":    question,
			"perspective": perspective,
			"tags":        tags,
			"created_at":  createdAt.Format(time.RFC3339Nano),
		})
	}
	return out
}

// Consume marks rows consumed. Best effort; a failed UPDATE is logged and the
// ids stay eligible for a later retry by whoever takes them next.
func (s *PostgresStore) Consume(ctx context.Context, ids []string) {
	if s == nil || len(ids) == 0 {
		return
	}
	if err := s.ensureSchema(); err != nil {
		log.Printf("seed: schema: %v", err)
		return
	}
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, done := s.consumedCache.Get(id); done {
			continue
		}
		if _, err := s.db.ExecContext(ctx,
			`UPDATE seed_scenarios SET consumed_at = NOW() WHERE id = $1 AND consumed_at IS NULL`, id); err != nil {
			log.Printf("seed: consume %s: %v", id, err)
			continue
		}
		s.consumedCache.Add(id, struct{}{})
	}
}

// Add stocks the pool. Used by operational seeding (cmd/api -seed-file).
func (s *PostgresStore) Add(ctx context.Context, items []scenario.Scenario) error {
	if s == nil || len(items) == 0 {
		return nil
	}
	if err := s.ensureSchema(); err != nil {
		return err
	}
	for _, item := range items {
		tags, _ := json.Marshal(item.Tags)
		if _, err := s.db.ExecContext(ctx, `
INSERT INTO seed_scenarios (id, question, perspective, tags, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO NOTHING`,
			item.ID, item.Question, item.Perspective, string(tags), item.CreatedAt); err != nil {
			return err
		}
	}
	return nil
}
