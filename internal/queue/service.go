// Package queue owns the per-session scenario queue: current item, pending
// buffer, dedup, background refill and snapshot persistence.
package queue

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"askpurposely/internal/generator"
	"askpurposely/internal/scenario"
	"askpurposely/internal/seed"
	"askpurposely/internal/snapshot"
)

const (
	persistTimeout = 5 * time.Second
	consumeTimeout = 10 * time.Second
)

// Service owns QueueServiceState for one user session. All mutations go
// through its operations; collaborator I/O happens outside the state lock
// and every post-I/O continuation rechecks for teardown.
type Service struct {
	cfg    Config
	userID string
	seeds  seed.Source
	gen    generator.Generator
	store  snapshot.Store // nil disables persistence

	mu      sync.Mutex
	st      State
	seen    *lru.Cache[string, struct{}]
	subs    map[int]chan State
	nextSub int
	closed  bool

	// opMu serializes the user-facing operations so a double-tap cannot
	// race two queue pops; the UI debounce is a secondary guard.
	opMu sync.Mutex

	// flight collapses overlapping refills so the generator is never asked
	// twice for the same top-up.
	flight singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc
}

// New builds a service for one user session and rehydrates any persisted
// snapshot. The given ctx only bounds the hydration read.
func New(ctx context.Context, userID string, seeds seed.Source, gen generator.Generator, store snapshot.Store, cfg Config) *Service {
	cfg = cfg.withDefaults()
	if strings.TrimSpace(userID) == "" {
		userID = "anonymous"
	}
	seen, _ := lru.New[string, struct{}](cfg.SeenCapacity)
	bgCtx, cancel := context.WithCancel(context.Background())
	s := &Service{
		cfg:    cfg,
		userID: userID,
		seeds:  seeds,
		gen:    gen,
		store:  store,
		seen:   seen,
		subs:   make(map[int]chan State),
		st:     State{Status: StatusLoading, Queue: []scenario.Scenario{}},
		ctx:    bgCtx,
		cancel: cancel,
	}
	s.hydrate(ctx)
	return s
}

func (s *Service) UserID() string { return s.userID }

// State returns a copy of the current state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.clone()
}

// Subscribe registers for state updates. The channel is primed with the
// current state; the returned func unsubscribes. Slow consumers lose the
// oldest update, never block the service.
func (s *Service) Subscribe() (<-chan State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan State, 8)
	s.subs[id] = ch
	ch <- s.st.clone()
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
}

// Close tears the session down: background work is canceled, subscribers are
// closed, and any late collaborator response is discarded unapplied.
func (s *Service) Close() {
	s.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, sub := range s.subs {
		delete(s.subs, id)
		close(sub)
	}
}

// LoadInitial is the session entry point. It prefers pool seeds, falls back
// to generating a single item fast so the user sees content as soon as
// possible, and always leaves a background top-up running.
func (s *Service) LoadInitial(ctx context.Context, count int) {
	if count <= 0 {
		count = s.cfg.SeedBatch
	}
	s.mu.Lock()
	if s.st.Current != nil {
		// Rehydrated session: content is already on screen.
		s.setStatusLocked(StatusIdle, "")
		s.mu.Unlock()
		s.kickEnsure()
		return
	}
	s.setStatusLocked(StatusLoading, "")
	s.mu.Unlock()

	s.enqueue(s.seeds.Take(ctx, s.userID, count))
	if _, ok := s.swapInHead(); ok {
		s.persist()
		s.kickEnsure()
		return
	}

	// Pool exhausted: one generated item beats waiting for a full batch.
	raws, err := s.generate(ctx, 1)
	if err != nil {
		log.Printf("queue: initial generate for %s: %v", s.userID, err)
	} else {
		s.enqueue(raws)
	}
	if _, ok := s.swapInHead(); ok {
		s.persist()
		s.kickEnsure()
		return
	}

	if err := s.Ensure(ctx, 1); err != nil {
		log.Printf("queue: initial refill for %s: %v", s.userID, err)
	}
	if _, ok := s.swapInHead(); ok {
		s.persist()
		s.kickEnsure()
		return
	}

	s.mu.Lock()
	s.setStatusLocked(StatusError, ErrNoScenarios)
	s.mu.Unlock()
}

// Ensure tops the queue up to min. Overlapping calls collapse into the one
// already in flight, so refill requests are never duplicated to the
// generator. The in-flight latch clears even when the refill fails.
func (s *Service) Ensure(ctx context.Context, min int) error {
	_, err, _ := s.flight.Do("refill", func() (any, error) {
		return nil, s.refill(ctx, min)
	})
	return err
}

func (s *Service) refill(ctx context.Context, min int) error {
	s.mu.Lock()
	need := min - len(s.st.Queue)
	s.mu.Unlock()
	if need <= 0 {
		return nil
	}
	defer s.persist()

	batch := s.cfg.SeedBatch
	if need > batch {
		batch = need
	}
	s.enqueue(s.seeds.Take(ctx, s.userID, batch))

	s.mu.Lock()
	shortfall := min - len(s.st.Queue)
	s.mu.Unlock()
	if shortfall <= 0 {
		return nil
	}
	raws, err := s.generate(ctx, shortfall)
	if err != nil {
		return err
	}
	s.enqueue(raws)
	return nil
}

// Advance shows the next scenario: pop the head, or refill-and-pop when the
// queue is empty. When nothing can be produced the current item stays put so
// the user can simply retry.
func (s *Service) Advance(ctx context.Context) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if prev, ok := s.swapInHead(); ok {
		s.consumeAsync(prev)
		s.persist()
		s.kickEnsure()
		return
	}

	s.mu.Lock()
	hadCurrent := s.st.Current != nil
	s.setStatusLocked(StatusLoading, "")
	s.mu.Unlock()

	if err := s.Ensure(ctx, 1); err != nil {
		log.Printf("queue: advance refill for %s: %v", s.userID, err)
	}
	if prev, ok := s.swapInHead(); ok {
		s.consumeAsync(prev)
		s.persist()
		s.kickEnsure()
		return
	}

	s.mu.Lock()
	if hadCurrent {
		s.setStatusLocked(StatusIdle, "")
	} else {
		s.setStatusLocked(StatusError, ErrNoScenarios)
	}
	s.mu.Unlock()
}

// AskCustom generates a perspective for the user's own question. The literal
// question always wins over whatever echo the generator returns. On failure
// the previous current stays displayable.
func (s *Service) AskCustom(ctx context.Context, question string) {
	question = strings.TrimSpace(question)
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if question == "" {
		s.mu.Lock()
		s.setStatusLocked(StatusError, "question is required")
		s.mu.Unlock()
		return
	}
	s.mu.Lock()
	s.setStatusLocked(StatusLoading, "")
	s.mu.Unlock()

	genCtx, cancel := context.WithTimeout(ctx, s.cfg.GenerateTimeout)
	raw, err := s.gen.PerspectiveFor(genCtx, question)
	cancel()
	if err != nil {
		s.mu.Lock()
		s.setStatusLocked(StatusError, err.Error())
		s.mu.Unlock()
		return
	}
	if raw == nil {
		raw = scenario.Raw{}
	}
	raw["question"] = question
	delete(raw, "hash")
	sc, err := scenario.Normalize(raw)
	if err != nil {
		s.mu.Lock()
		s.setStatusLocked(StatusError, err.Error())
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	prev := s.st.Current
	s.dropQueuedLocked(sc.Hash)
	s.seen.Add(sc.Hash, struct{}{})
	if prev != nil {
		s.setStatusLocked(StatusSwapping, "")
	}
	s.st.Current = &sc
	s.setStatusLocked(StatusIdle, "")
	s.mu.Unlock()

	s.consumeAsync(prev)
	s.persist()
}

// ---------------------------------------------------------------------------
// internals
// ---------------------------------------------------------------------------

func (s *Service) hydrate(ctx context.Context) {
	if s.store == nil {
		return
	}
	snap, err := s.store.Load(ctx, s.userID)
	if err != nil {
		if !errors.Is(err, snapshot.ErrNotFound) {
			log.Printf("queue: hydrate %s: %v", s.userID, err)
		}
		return
	}
	if snap.Current != nil {
		if cur, err := scenario.Normalize(snap.Current); err == nil {
			s.st.Current = &cur
			s.st.Status = StatusIdle
			s.seen.Add(cur.Hash, struct{}{})
		}
	}
	for _, raw := range snap.Queue {
		sc, err := scenario.Normalize(raw)
		if err != nil {
			log.Printf("queue: hydrate %s: drop item: %v", s.userID, err)
			continue
		}
		if s.isDuplicateLocked(sc.Hash) {
			continue
		}
		s.seen.Add(sc.Hash, struct{}{})
		s.st.Queue = append(s.st.Queue, sc)
	}
}

// enqueue normalizes and appends non-duplicate items. Invalid payloads are
// dropped per item; the rest of the batch goes through.
func (s *Service) enqueue(raws []scenario.Raw) int {
	if len(raws) == 0 {
		return 0
	}
	normalized := make([]scenario.Scenario, 0, len(raws))
	for _, raw := range raws {
		sc, err := scenario.Normalize(raw)
		if err != nil {
			log.Printf("queue: drop invalid item: %v", err)
			continue
		}
		normalized = append(normalized, sc)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0
	}
	added := 0
	for _, sc := range normalized {
		if s.isDuplicateLocked(sc.Hash) {
			continue
		}
		s.seen.Add(sc.Hash, struct{}{})
		s.st.Queue = append(s.st.Queue, sc)
		added++
	}
	if added > 0 {
		s.emitLocked()
	}
	return added
}

// isDuplicateLocked checks the recency set plus the live queue and current;
// the live items matter because the recency set is bounded and may have
// evicted an old hash that is still on screen.
func (s *Service) isDuplicateLocked(hash string) bool {
	if _, seen := s.seen.Get(hash); seen {
		return true
	}
	if s.st.Current != nil && s.st.Current.Hash == hash {
		return true
	}
	for _, item := range s.st.Queue {
		if item.Hash == hash {
			return true
		}
	}
	return false
}

func (s *Service) dropQueuedLocked(hash string) {
	kept := s.st.Queue[:0]
	for _, item := range s.st.Queue {
		if item.Hash != hash {
			kept = append(kept, item)
		}
	}
	s.st.Queue = kept
}

// swapInHead pops the queue head into current. Emits the swapping transition
// when a previous current existed.
func (s *Service) swapInHead() (prev *scenario.Scenario, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || len(s.st.Queue) == 0 {
		return nil, false
	}
	prev = s.st.Current
	next := s.st.Queue[0]
	s.st.Queue = append([]scenario.Scenario(nil), s.st.Queue[1:]...)
	if prev != nil {
		s.setStatusLocked(StatusSwapping, "")
	}
	s.st.Current = &next
	s.setStatusLocked(StatusIdle, "")
	return prev, true
}

func (s *Service) setStatusLocked(status Status, msg string) {
	if status != StatusError {
		msg = ""
	}
	if s.st.Status == status && s.st.Err == msg {
		return
	}
	s.st.Status = status
	s.st.Err = msg
	s.emitLocked()
}

// emitLocked fans the state out without ever blocking: a full subscriber
// loses its oldest update.
func (s *Service) emitLocked() {
	st := s.st.clone()
	for _, sub := range s.subs {
		select {
		case sub <- st:
			continue
		default:
		}
		select {
		case <-sub:
		default:
		}
		select {
		case sub <- st:
		default:
		}
	}
}

func (s *Service) generate(ctx context.Context, n int) ([]scenario.Raw, error) {
	genCtx, cancel := context.WithTimeout(ctx, s.cfg.GenerateTimeout)
	defer cancel()
	return s.gen.Scenarios(genCtx, n)
}

func (s *Service) kickEnsure() {
	go func() {
		if err := s.Ensure(s.ctx, s.cfg.MinQueue); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("queue: background refill for %s: %v", s.userID, err)
		}
	}()
}

// consumeAsync marks the previous current as used, fire and forget.
func (s *Service) consumeAsync(prev *scenario.Scenario) {
	if prev == nil {
		return
	}
	id := prev.ID
	go func() {
		ctx, cancel := context.WithTimeout(s.ctx, consumeTimeout)
		defer cancel()
		s.seeds.Consume(ctx, []string{id})
	}()
}

// persist snapshots {current, queue} best effort; failures are logged and
// never surfaced, a lost snapshot only costs the next session a refetch.
func (s *Service) persist() {
	if s.store == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	snap := snapshot.Snapshot{Queue: make([]scenario.Raw, 0, len(s.st.Queue))}
	if s.st.Current != nil {
		snap.Current = s.st.Current.Raw()
	}
	for _, item := range s.st.Queue {
		snap.Queue = append(snap.Queue, item.Raw())
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(s.ctx, persistTimeout)
	defer cancel()
	if err := s.store.Save(ctx, s.userID, snap); err != nil {
		log.Printf("queue: persist %s: %v", s.userID, err)
	}
}
