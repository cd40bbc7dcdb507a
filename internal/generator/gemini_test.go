package generator

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBatchBareArray(t *testing.T) {
	items, err := decodeBatch(json.RawMessage(`[{"question":"q1"},{"question":"q2"}]`))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "q1", items[0]["question"])
}

func TestDecodeBatchWrapperObject(t *testing.T) {
	items, err := decodeBatch(json.RawMessage(`{"scenarios":[{"question":"q1"}]}`))
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestDecodeBatchGarbage(t *testing.T) {
	_, err := decodeBatch(json.RawMessage(`"not json we can use"`))
	assert.ErrorIs(t, err, ErrBadResponse)
}

func TestDecodeSingleObjectOrArray(t *testing.T) {
	item, err := decodeSingle(json.RawMessage(`{"question":"q"}`))
	require.NoError(t, err)
	assert.Equal(t, "q", item["question"])

	item, err = decodeSingle(json.RawMessage(`[{"question":"first"},{"question":"second"}]`))
	require.NoError(t, err)
	assert.Equal(t, "first", item["question"])

	_, err = decodeSingle(json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrBadResponse)
}

func TestBucketDisabledNeverBlocks(t *testing.T) {
	var b *bucket
	require.NoError(t, b.acquire(context.Background()))
}

func TestBucketBurstThenContextCancel(t *testing.T) {
	b := newBucket(0.001, 2)
	defer b.stop()
	require.NoError(t, b.acquire(context.Background()))
	require.NoError(t, b.acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, b.acquire(ctx))
}
