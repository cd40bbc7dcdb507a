// Package generator talks to the AI backend that writes new scenarios.
package generator

import (
	"context"
	"errors"

	"askpurposely/internal/scenario"
)

// ErrBadResponse signals a response the model produced but we could not use.
var ErrBadResponse = errors.New("generator: unusable model response")

// Generator produces new scenario content on demand. Both calls are slow
// (seconds) and may fail hard on network/auth/quota problems; those errors
// propagate to the caller.
type Generator interface {
	// Scenarios requests n new scenarios. May return fewer than n.
	Scenarios(ctx context.Context, n int) ([]scenario.Raw, error)

	// PerspectiveFor requests a single tailored perspective for a
	// user-authored question.
	PerspectiveFor(ctx context.Context, question string) (scenario.Raw, error)
}
