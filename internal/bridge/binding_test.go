package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"askpurposely/internal/generator"
	"askpurposely/internal/queue"
	"askpurposely/internal/scenario"
	"askpurposely/internal/seed"
	"askpurposely/internal/snapshot"
)

func rawScenario(id, question string) scenario.Raw {
	return scenario.Raw{
		"id":          id,
		"question":    question,
		"perspective": "A steady perspective long enough to pass validation for " + id + ".",
	}
}

func testService(t *testing.T, queued ...scenario.Raw) *queue.Service {
	t.Helper()
	store, err := snapshot.NewFileStore(t.TempDir())
	require.NoError(t, err)
	snap := snapshot.Snapshot{
		Current: rawScenario("cur", "Should I mention my ex on a second date?"),
		Queue:   queued,
	}
	require.NoError(t, store.Save(context.Background(), "u1", snap))
	svc := queue.New(context.Background(), "u1", seed.NewMemoryStore(), generator.NewFake(), store, queue.Config{MinQueue: 1})
	t.Cleanup(svc.Close)
	return svc
}

func TestSeeMoreDebounceCollapsesTaps(t *testing.T) {
	svc := testService(t,
		rawScenario("q1", "Queue question one, long enough to validate?"),
		rawScenario("q2", "Queue question two, long enough to validate?"),
	)
	b := NewBinding(svc, 200*time.Millisecond)

	first := b.SeeMore(context.Background())
	second := b.SeeMore(context.Background())

	// The second tap landed inside the debounce window: same item.
	assert.Equal(t, "q1", first.Current.ID)
	assert.Equal(t, "q1", second.Current.ID)

	time.Sleep(250 * time.Millisecond)
	third := b.SeeMore(context.Background())
	assert.Equal(t, "q2", third.Current.ID)
}

func TestUIStateMapping(t *testing.T) {
	empty := toUIState(queue.State{Status: queue.StatusLoading})
	assert.True(t, empty.IsLoading)
	assert.False(t, empty.IsSwapping)
	assert.Nil(t, empty.Error)
	assert.Equal(t, "", empty.Current.ID)
	assert.NotNil(t, empty.Current.Tags)

	sc, err := scenario.Normalize(rawScenario("s1", "A question of acceptable length here?"))
	require.NoError(t, err)
	withErr := toUIState(queue.State{Current: &sc, Status: queue.StatusError, Err: "boom"})
	assert.False(t, withErr.IsLoading)
	require.NotNil(t, withErr.Error)
	assert.Equal(t, "boom", *withErr.Error)
	assert.Equal(t, "s1", withErr.Current.ID)
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	pool := seed.NewMemoryStore(
		rawScenario("seed-1", "Pool question one, long enough to validate?"),
		rawScenario("seed-2", "Pool question two, long enough to validate?"),
	)
	registry := NewRegistry(func(ctx context.Context, userID string) *queue.Service {
		return queue.New(ctx, userID, pool, generator.NewFake(), nil, queue.Config{MinQueue: 1})
	}, time.Millisecond)
	t.Cleanup(registry.CloseAll)
	return NewHandler(registry)
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path string, body any) (*httptest.ResponseRecorder, UIState) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	var state UIState
	if rec.Code == http.StatusOK {
		_ = json.Unmarshal(rec.Body.Bytes(), &state)
	}
	return rec, state
}

func TestHTTPSessionFlow(t *testing.T) {
	h := newTestHandler(t)
	mux := http.NewServeMux()
	h.Register(mux)

	rec, state := doJSON(t, mux, http.MethodPost, "/api/ask/session", map[string]any{"user_id": "u1", "count": 2})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "seed-1", state.Current.ID)
	assert.False(t, state.IsLoading)

	rec, state = doJSON(t, mux, http.MethodGet, "/api/ask/current?user_id=u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "seed-1", state.Current.ID)

	rec, state = doJSON(t, mux, http.MethodPost, "/api/ask/see-more", map[string]any{"user_id": "u1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "seed-2", state.Current.ID)

	rec, _ = doJSON(t, mux, http.MethodDelete, "/api/ask/session?user_id=u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doJSON(t, mux, http.MethodGet, "/api/ask/current?user_id=u1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegistryCreateDoesNotBlockOtherUsers(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	var mu sync.Mutex
	counts := map[string]int{}
	registry := NewRegistry(func(ctx context.Context, userID string) *queue.Service {
		mu.Lock()
		counts[userID]++
		mu.Unlock()
		if userID == "slow" {
			started <- struct{}{}
			<-release
		}
		return queue.New(ctx, userID, seed.NewMemoryStore(), generator.NewFake(), nil, queue.Config{MinQueue: 1})
	}, time.Millisecond)
	t.Cleanup(registry.CloseAll)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			registry.GetOrCreate(context.Background(), "slow")
		}()
	}
	<-started

	// Another user's creation must complete while "slow" is still hydrating.
	done := make(chan struct{})
	go func() {
		registry.GetOrCreate(context.Background(), "fast")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("creation for another user blocked behind slow hydration")
	}

	close(release)
	wg.Wait()
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, counts["slow"])
	assert.Equal(t, 1, counts["fast"])
}

func TestHTTPValidation(t *testing.T) {
	h := newTestHandler(t)
	mux := http.NewServeMux()
	h.Register(mux)

	rec, _ := doJSON(t, mux, http.MethodPost, "/api/ask/session", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doJSON(t, mux, http.MethodPost, "/api/ask/see-more", map[string]any{"user_id": "ghost"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	_, _ = doJSON(t, mux, http.MethodPost, "/api/ask/session", map[string]any{"user_id": "u2"})
	rec, _ = doJSON(t, mux, http.MethodPost, "/api/ask/custom", map[string]any{"user_id": "u2"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
