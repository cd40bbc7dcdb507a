package generator

import (
	"context"
	"fmt"
	"sync"

	"askpurposely/internal/scenario"
)

// Fake returns deterministic scenarios for offline runs and tests.
// Calls are recorded so tests can assert on collaborator traffic.
type Fake struct {
	mu            sync.Mutex
	seq           int
	ScenarioCalls int
	CustomCalls   int

	// Queue of canned responses; when empty, synthetic content is produced.
	Canned []scenario.Raw
	// Err makes every call fail hard, mimicking quota/auth errors.
	Err error
	// Block, when non-nil, is waited on before returning (races in tests).
	Block chan struct{}
}

func NewFake() *Fake { return &Fake{} }

func (f *Fake) Scenarios(ctx context.Context, n int) ([]scenario.Raw, error) {
	f.mu.Lock()
	f.ScenarioCalls++
	block := f.Block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	out := make([]scenario.Raw, 0, n)
	for i := 0; i < n; i++ {
		if len(f.Canned) > 0 {
			out = append(out, f.Canned[0])
			f.Canned = f.Canned[1:]
			continue
		}
		f.seq++
		out = append(out, scenario.Raw{
			"question":    fmt.Sprintf("Fake dilemma number %d: should I bring up exclusivity yet?", f.seq),
			"perspective": fmt.Sprintf("Synthetic perspective %d: name what you want plainly and listen for a plain answer.", f.seq),
			"tags":        []any{"fake"},
		})
	}
	return out, nil
}

func (f *Fake) PerspectiveFor(ctx context.Context, question string) (scenario.Raw, error) {
	f.mu.Lock()
	f.CustomCalls++
	block := f.Block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	if len(f.Canned) > 0 {
		item := f.Canned[0]
		f.Canned = f.Canned[1:]
		return item, nil
	}
	f.seq++
	return scenario.Raw{
		"question":    question,
		"perspective": fmt.Sprintf("Synthetic perspective %d: there is rarely one right move, but there is an honest one.", f.seq),
		"tags":        []any{"fake"},
	}, nil
}
