package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryIdempotencyStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryIdempotencyStore(20 * time.Millisecond)

	seen, err := store.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, store.Add(ctx, "evt-1"))
	seen, _ = store.Contains(ctx, "evt-1")
	assert.True(t, seen)
	assert.Equal(t, 1, store.Len())

	time.Sleep(30 * time.Millisecond)
	seen, _ = store.Contains(ctx, "evt-1")
	assert.False(t, seen)
	assert.Equal(t, 0, store.Len())
}

func TestRedisIdempotencyStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	store := NewRedisIdempotencyStore(client, "search:events:", time.Hour)

	seen, err := store.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, store.Add(ctx, "evt-1"))
	seen, err = store.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, seen)
	assert.True(t, mr.Exists("search:events:evt-1"))

	mr.FastForward(2 * time.Hour)
	seen, _ = store.Contains(ctx, "evt-1")
	assert.False(t, seen)

	mr.Close()
	_, err = store.Contains(ctx, "evt-2")
	assert.Error(t, err)
}

type failingStore struct{}

func (failingStore) Contains(context.Context, string) (bool, error) { return false, errors.New("down") }
func (failingStore) Add(context.Context, string) error              { return errors.New("down") }

func TestIdempotentHandler(t *testing.T) {
	ctx := context.Background()
	calls := 0
	inner := func(context.Context, *Event) error {
		calls++
		return nil
	}

	h := IdempotentHandler(NewMemoryIdempotencyStore(time.Minute), inner, discardLogger())
	ev := &Event{EventID: "evt-1"}

	require.NoError(t, h(ctx, ev))
	assert.ErrorIs(t, h(ctx, ev), ErrDuplicateEvent)
	assert.Equal(t, 1, calls)

	require.NoError(t, h(ctx, &Event{}))
	require.NoError(t, h(ctx, &Event{}))
	assert.Equal(t, 3, calls)
}

func TestIdempotentHandler_FailedInnerNotRecorded(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryIdempotencyStore(time.Minute)
	h := IdempotentHandler(store, func(context.Context, *Event) error { return errors.New("boom") }, discardLogger())

	assert.Error(t, h(ctx, &Event{EventID: "evt-1"}))
	assert.Equal(t, 0, store.Len())
}

func TestIdempotentHandler_StoreFailureStillProcesses(t *testing.T) {
	calls := 0
	h := IdempotentHandler(failingStore{}, func(context.Context, *Event) error {
		calls++
		return nil
	}, discardLogger())

	require.NoError(t, h(context.Background(), &Event{EventID: "evt-1"}))
	assert.Equal(t, 1, calls)
}
