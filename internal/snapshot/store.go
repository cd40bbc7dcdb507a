// Package snapshot persists per-user queue state across reloads.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"askpurposely/internal/scenario"
)

// SchemaVersion gates rehydration: blobs written by an incompatible shape of
// this struct are treated as absent rather than decoded.
const SchemaVersion = 1

var ErrNotFound = errors.New("snapshot: not found")

// Snapshot is the persisted {current, queue} blob. Items are stored in raw
// form and re-normalized on rehydration so stale blobs degrade to dropped
// items, never to a broken queue.
type Snapshot struct {
	Version int            `json:"version"`
	Current scenario.Raw   `json:"current"`
	Queue   []scenario.Raw `json:"queue"`
}

// Store is write-mostly persistence for snapshots, read once per session at
// construction time. Keys are user ids (or an anonymous fallback id).
type Store interface {
	Load(ctx context.Context, userKey string) (Snapshot, error)
	Save(ctx context.Context, userKey string, snap Snapshot) error
	Delete(ctx context.Context, userKey string) error
}

// encode stamps the schema version and serializes.
func encode(snap Snapshot) ([]byte, error) {
	snap.Version = SchemaVersion
	return json.MarshalIndent(snap, "", "  ")
}

// decode rejects version mismatches as not-found.
func decode(data []byte) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: decode: %w", err)
	}
	if snap.Version != SchemaVersion {
		return Snapshot{}, ErrNotFound
	}
	return snap, nil
}

// safeKey flattens a user key into a filesystem/object friendly token.
func safeKey(userKey string) string {
	userKey = strings.TrimSpace(userKey)
	if userKey == "" {
		return "anonymous"
	}
	var b strings.Builder
	for _, r := range strings.ToLower(userKey) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('.')
		}
	}
	return b.String()
}
