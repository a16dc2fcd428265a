package cmi

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"coursebridge/database/dbtest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetThenGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewStore(dbtest.New(t))

	require.NoError(t, s.Set(ctx, "r1", "cmi.core.lesson_status", "incomplete"))
	v, ok, err := s.Get(ctx, "r1", "cmi.core.lesson_status")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "incomplete", v)

	// overwrite is an upsert, not a second row
	require.NoError(t, s.Set(ctx, "r1", "cmi.core.lesson_status", "completed"))
	v, _, err = s.Get(ctx, "r1", "cmi.core.lesson_status")
	require.NoError(t, err)
	assert.Equal(t, "completed", v)

	snap, err := s.Snapshot(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, snap, 1)
}

func TestGetMissingKeyIsEmpty(t *testing.T) {
	s := NewStore(dbtest.New(t))
	v, ok, err := s.Get(context.Background(), "r1", "never.written")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, v)
}

func TestEntriesAreScopedByRegistration(t *testing.T) {
	ctx := context.Background()
	s := NewStore(dbtest.New(t))

	require.NoError(t, s.Set(ctx, "r1", "k", "one"))
	require.NoError(t, s.Set(ctx, "r2", "k", "two"))

	v1, _, _ := s.Get(ctx, "r1", "k")
	v2, _, _ := s.Get(ctx, "r2", "k")
	assert.Equal(t, "one", v1)
	assert.Equal(t, "two", v2)

	require.NoError(t, s.DeleteForRegistrations(ctx, []string{"r1"}))
	_, ok, _ := s.Get(ctx, "r1", "k")
	assert.False(t, ok)
	_, ok, _ = s.Get(ctx, "r2", "k")
	assert.True(t, ok)
}

func TestSetManyBatch(t *testing.T) {
	ctx := context.Background()
	s := NewStore(dbtest.New(t))

	require.NoError(t, s.Set(ctx, "r1", "a", "old"))
	require.NoError(t, s.SetMany(ctx, "r1", map[string]string{"a": "new", "b": "2", "c": "3"}))

	snap, err := s.Snapshot(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "new", "b": "2", "c": "3"}, snap)

	assert.Error(t, s.SetMany(ctx, "r1", map[string]string{"": "x"}))
}

func TestConcurrentWritesDistinctKeys(t *testing.T) {
	ctx := context.Background()
	s := NewStore(dbtest.New(t))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Set(ctx, "r1", fmt.Sprintf("k%d", i), fmt.Sprint(i)))
		}(i)
	}
	wg.Wait()

	snap, err := s.Snapshot(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, snap, 10)
}
