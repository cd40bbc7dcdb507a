package seed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"askpurposely/internal/scenario"
)

func rawItem(id string) scenario.Raw {
	return scenario.Raw{
		"id":          id,
		"question":    "How soon is too soon to meet the parents?",
		"perspective": "There is no universal clock; match the pace you are both comfortable naming out loud.",
	}
}

func TestMemoryStoreTakeOldestFirst(t *testing.T) {
	s := NewMemoryStore(rawItem("a"), rawItem("b"), rawItem("c"))
	got := s.Take(context.Background(), "u1", 2)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0]["id"])
	assert.Equal(t, "b", got[1]["id"])

	rest := s.Take(context.Background(), "u1", 5)
	require.Len(t, rest, 1)
	assert.Equal(t, "c", rest[0]["id"])
}

func TestMemoryStoreConsumedNeverHandedOut(t *testing.T) {
	s := NewMemoryStore(rawItem("a"), rawItem("b"))
	s.Consume(context.Background(), []string{"a"})
	got := s.Take(context.Background(), "u1", 5)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0]["id"])
	assert.Equal(t, []string{"a"}, s.ConsumedIDs)
}

func TestMemoryStoreFailedTakeLooksExhausted(t *testing.T) {
	s := NewMemoryStore(rawItem("a"))
	s.FailNextTake = true
	assert.Empty(t, s.Take(context.Background(), "u1", 3))
	// Failure is transient; pool contents survive.
	assert.Len(t, s.Take(context.Background(), "u1", 3), 1)
}
