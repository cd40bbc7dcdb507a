package queue

import (
	"time"

	"askpurposely/internal/scenario"
)

// Status is the service's user-visible phase.
type Status string

const (
	// StatusIdle: current is valid and displayable.
	StatusIdle Status = "idle"
	// StatusLoading: no displayable current yet, or a blocking fetch runs.
	StatusLoading Status = "loading"
	// StatusSwapping: a valid current is being replaced; never an empty UI.
	StatusSwapping Status = "swapping"
	// StatusError: user-actionable failure; current keeps its last value.
	StatusError Status = "error"
)

// ErrNoScenarios is the exhaustion condition: every source was tried and
// nothing is displayable. The UI renders a distinct retry affordance for it.
const ErrNoScenarios = "no_scenarios"

// State is a snapshot of the queue service. Current is only nil before the
// very first content has ever been fetched.
type State struct {
	Current *scenario.Scenario
	Queue   []scenario.Scenario
	Status  Status
	Err     string
}

func (s State) clone() State {
	out := s
	out.Queue = append([]scenario.Scenario(nil), s.Queue...)
	if s.Current != nil {
		cur := *s.Current
		out.Current = &cur
	}
	return out
}

// Config tunes the queue service. Zero values pick the defaults.
type Config struct {
	// MinQueue is the low-water mark for background refill.
	MinQueue int
	// SeedBatch is the minimum pool fetch size per refill attempt.
	SeedBatch int
	// SeenCapacity bounds the recency set used for dedup.
	SeenCapacity int
	// GenerateTimeout bounds every Generator call issued by the service.
	GenerateTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MinQueue <= 0 {
		c.MinQueue = 3
	}
	if c.SeedBatch <= 0 {
		c.SeedBatch = 6
	}
	if c.SeenCapacity <= 0 {
		c.SeenCapacity = 50
	}
	if c.GenerateTimeout <= 0 {
		c.GenerateTimeout = 30 * time.Second
	}
	return c
}
