// Package bridge adapts queue services to a UI-consumable shape: flattened
// state flags, debounced actions, and per-user session lifecycle.
package bridge

import (
	"context"
	"sync"
	"time"

	"askpurposely/internal/queue"
)

// DefaultDebounce collapses rapid repeated "see more" taps into one advance.
const DefaultDebounce = 350 * time.Millisecond

// UIScenario is the safe display shape; zero-valued when nothing is loaded.
type UIScenario struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Tags     []string `json:"tags"`
}

// UIState is what the UI binds to.
type UIState struct {
	Current    UIScenario `json:"current"`
	IsLoading  bool       `json:"isLoading"`
	IsSwapping bool       `json:"isSwapping"`
	Error      *string    `json:"error"`
}

func toUIState(st queue.State) UIState {
	out := UIState{
		Current:    UIScenario{Tags: []string{}},
		IsLoading:  st.Status == queue.StatusLoading || st.Current == nil,
		IsSwapping: st.Status == queue.StatusSwapping,
	}
	if st.Current != nil {
		out.Current = UIScenario{
			ID:       st.Current.ID,
			Question: st.Current.Question,
			Answer:   st.Current.Perspective,
			Tags:     append([]string{}, st.Current.Tags...),
		}
	}
	if st.Status == queue.StatusError {
		msg := st.Err
		out.Error = &msg
		out.IsLoading = false
	}
	return out
}

// Binding wraps one user's queue service for the UI layer.
type Binding struct {
	svc      *queue.Service
	debounce time.Duration

	mu          sync.Mutex
	lastSeeMore time.Time
}

func NewBinding(svc *queue.Service, debounce time.Duration) *Binding {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Binding{svc: svc, debounce: debounce}
}

// State returns the current UI state.
func (b *Binding) State() UIState {
	return toUIState(b.svc.State())
}

// SeeMore advances to the next scenario. Calls landing within the debounce
// window of the previous one are dropped, returning the state as-is, so fast
// repeated taps collapse into a single queue pop.
func (b *Binding) SeeMore(ctx context.Context) UIState {
	b.mu.Lock()
	now := time.Now()
	if now.Sub(b.lastSeeMore) < b.debounce {
		b.mu.Unlock()
		return b.State()
	}
	b.lastSeeMore = now
	b.mu.Unlock()

	b.svc.Advance(ctx)
	return b.State()
}

// AskCustom requests a perspective for the user's own question.
func (b *Binding) AskCustom(ctx context.Context, question string) UIState {
	b.svc.AskCustom(ctx, question)
	return b.State()
}

// Refresh reconciles with the backing sources: instant paint from whatever
// is already hydrated, then a load/top-up pass.
func (b *Binding) Refresh(ctx context.Context, count int) UIState {
	b.svc.LoadInitial(ctx, count)
	return b.State()
}

// Subscribe streams UI states. The returned func unsubscribes.
func (b *Binding) Subscribe() (<-chan UIState, func()) {
	states, unsubscribe := b.svc.Subscribe()
	out := make(chan UIState, 8)
	go func() {
		defer close(out)
		for st := range states {
			select {
			case out <- toUIState(st):
			default:
				// Slow consumer; drop the oldest.
				select {
				case <-out:
				default:
				}
				select {
				case out <- toUIState(st):
				default:
				}
			}
		}
	}()
	return out, unsubscribe
}

// Close tears down the session and cancels in-flight background work.
func (b *Binding) Close() {
	b.svc.Close()
}
