package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore keeps one JSON file per user under a directory. Writes go through
// a temp file and rename so a crash mid-write never corrupts the last good
// snapshot.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("snapshot: dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot: mkdir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(userKey string) string {
	return filepath.Join(s.dir, safeKey(userKey)+".json")
}

func (s *FileStore) Load(_ context.Context, userKey string) (Snapshot, error) {
	data, err := os.ReadFile(s.path(userKey))
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, err
	}
	return decode(data)
}

func (s *FileStore) Save(_ context.Context, userKey string, snap Snapshot) error {
	data, err := encode(snap)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, ".snapshot-tmp-*")
	if err != nil {
		return fmt.Errorf("snapshot: temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()
	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("snapshot: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("snapshot: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("snapshot: close: %w", err)
	}
	if err := os.Rename(tmpName, s.path(userKey)); err != nil {
		return fmt.Errorf("snapshot: rename: %w", err)
	}
	return nil
}

func (s *FileStore) Delete(_ context.Context, userKey string) error {
	err := os.Remove(s.path(userKey))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
