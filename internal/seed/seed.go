// Package seed provides access to the shared pool of pre-generated scenarios.
// Any session may take items from the pool; consumption marking is an
// optimization that keeps the same item from being shown to many sessions.
package seed

import (
	"context"

	"askpurposely/internal/scenario"
)

// Source is pull-style access to the shared scenario pool.
type Source interface {
	// Take fetches up to n available items, oldest first. It never returns
	// an error to callers: any fetch failure behaves like an exhausted pool
	// (empty slice).
	Take(ctx context.Context, userID string, n int) []scenario.Raw

	// Consume marks the given ids as used, best effort. Failures are
	// swallowed internally.
	Consume(ctx context.Context, ids []string)
}
