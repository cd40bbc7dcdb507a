package seed

import (
	"context"
	"sync"

	"askpurposely/internal/scenario"
)

// MemoryStore is an in-process pool used for local runs and tests.
type MemoryStore struct {
	mu       sync.Mutex
	items    []scenario.Raw
	consumed map[string]struct{}

	// TakeCalls and Consumed record collaborator traffic for assertions.
	TakeCalls    int
	ConsumedIDs  []string
	FailNextTake bool
}

func NewMemoryStore(items ...scenario.Raw) *MemoryStore {
	return &MemoryStore{
		items:    append([]scenario.Raw(nil), items...),
		consumed: make(map[string]struct{}),
	}
}

// Push appends items to the back of the pool (oldest stay in front).
func (s *MemoryStore) Push(items ...scenario.Raw) {
	s.mu.Lock()
	s.items = append(s.items, items...)
	s.mu.Unlock()
}

func (s *MemoryStore) Take(_ context.Context, _ string, n int) []scenario.Raw {
	if s == nil || n <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TakeCalls++
	if s.FailNextTake {
		s.FailNextTake = false
		return nil
	}
	out := make([]scenario.Raw, 0, n)
	rest := s.items[:0]
	for _, item := range s.items {
		id, _ := item["id"].(string)
		if _, used := s.consumed[id]; used && id != "" {
			continue
		}
		if len(out) < n {
			out = append(out, item)
			continue
		}
		rest = append(rest, item)
	}
	s.items = rest
	return out
}

func (s *MemoryStore) Consume(_ context.Context, ids []string) {
	if s == nil || len(ids) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if id == "" {
			continue
		}
		s.consumed[id] = struct{}{}
		s.ConsumedIDs = append(s.ConsumedIDs, id)
	}
}
