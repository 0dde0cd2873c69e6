package sun

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bingomanatee/multiverse/pkg/multiverse"
)

func testSchema(t *testing.T) *multiverse.LocalSchema {
	t.Helper()
	s := multiverse.NewLocalSchema("users")
	require.NoError(t, s.Add("name", &multiverse.FieldDef{Type: multiverse.FieldString}))
	require.NoError(t, s.Add("score", &multiverse.FieldDef{Type: multiverse.FieldNumber}))
	return s
}

func TestMemorySunCRUD(t *testing.T) {
	s := NewMemorySun("users", testSchema(t), 10)
	ctx := context.Background()

	assert.Equal(t, "users", s.Name())
	assert.Equal(t, 10, s.BatchSize())
	assert.False(t, s.IsAsync())

	_, found, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Set(ctx, "a", multiverse.Record{"name": "Alice", "score": 1}))

	rec, found, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Alice", rec["name"])

	has, err := s.Has(ctx, "a")
	require.NoError(t, err)
	assert.True(t, has)

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, s.Delete(ctx, "a"))
	has, err = s.Has(ctx, "a")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestMemorySunCloneIsolation(t *testing.T) {
	s := NewMemorySun("users", testSchema(t), 0)
	ctx := context.Background()

	original := multiverse.Record{"name": "Alice", "nested": multiverse.Record{"x": 1}}
	require.NoError(t, s.Set(ctx, "a", original))

	// Mutating the input after Set must not affect the stored record.
	original["name"] = "Mallory"
	rec, _, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Alice", rec["name"])

	// Mutating a fetched record must not affect the stored one either.
	rec["nested"].(multiverse.Record)["x"] = 99
	again, _, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, again["nested"].(multiverse.Record)["x"])
}

func TestMemorySunBatchOps(t *testing.T) {
	s := NewMemorySun("users", testSchema(t), 0)
	ctx := context.Background()

	require.NoError(t, s.SetMany(ctx, map[string]multiverse.Record{
		"a": {"name": "Alice"},
		"b": {"name": "Bob"},
		"c": {"name": "Cara"},
	}))

	recs, err := s.GetMany(ctx, []string{"a", "c", "ghost"})
	require.NoError(t, err)
	assert.Len(t, recs, 2)
	assert.Equal(t, "Cara", recs["c"]["name"])

	found, err := s.Find(ctx, func(rec multiverse.Record) bool {
		return rec["name"] == "Bob"
	})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "b", found[0].Key)
}

func TestMemorySunCursor(t *testing.T) {
	s := NewMemorySun("users", testSchema(t), 0)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Set(ctx, fmt.Sprintf("k%d", i), multiverse.Record{"score": i}))
	}

	cursor, err := s.Values(ctx)
	require.NoError(t, err)
	defer cursor.Close()

	var keys []string
	for {
		batch, done, err := cursor.Next(ctx, 2)
		require.NoError(t, err)
		for _, kr := range batch {
			keys = append(keys, kr.Key)
		}
		if done {
			break
		}
	}
	assert.Equal(t, []string{"k0", "k1", "k2", "k3", "k4"}, keys)
}

func TestMemorySunCursorSkipsDeleted(t *testing.T) {
	s := NewMemorySun("users", testSchema(t), 0)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", multiverse.Record{"score": 1}))
	require.NoError(t, s.Set(ctx, "b", multiverse.Record{"score": 2}))

	cursor, err := s.Values(ctx)
	require.NoError(t, err)
	defer cursor.Close()

	require.NoError(t, s.Delete(ctx, "b"))

	batch, done, err := cursor.Next(ctx, 10)
	require.NoError(t, err)
	assert.True(t, done)
	require.Len(t, batch, 1)
	assert.Equal(t, "a", batch[0].Key)
}

func TestMemorySunMutate(t *testing.T) {
	s := NewMemorySun("users", testSchema(t), 0)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "a", multiverse.Record{"score": 1}))

	t.Run("set", func(t *testing.T) {
		rec, err := s.Mutate(ctx, "a", func(rec multiverse.Record, found bool) (multiverse.Record, multiverse.MutateAction) {
			require.True(t, found)
			rec["score"] = 2
			return rec, multiverse.MutateSet
		})
		require.NoError(t, err)
		assert.Equal(t, 2, rec["score"])
	})

	t.Run("noop", func(t *testing.T) {
		rec, err := s.Mutate(ctx, "a", func(rec multiverse.Record, found bool) (multiverse.Record, multiverse.MutateAction) {
			rec["score"] = 999
			return rec, multiverse.MutateNoop
		})
		require.NoError(t, err)
		assert.Equal(t, 2, rec["score"])
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := s.Mutate(ctx, "ghost", func(rec multiverse.Record, found bool) (multiverse.Record, multiverse.MutateAction) {
			assert.False(t, found)
			assert.Nil(t, rec)
			return multiverse.Record{"score": 0}, multiverse.MutateSet
		})
		require.NoError(t, err)
		has, err := s.Has(ctx, "ghost")
		require.NoError(t, err)
		assert.True(t, has)
	})

	t.Run("delete", func(t *testing.T) {
		rec, err := s.Mutate(ctx, "a", func(rec multiverse.Record, found bool) (multiverse.Record, multiverse.MutateAction) {
			return nil, multiverse.MutateDelete
		})
		require.NoError(t, err)
		assert.Nil(t, rec)
		has, err := s.Has(ctx, "a")
		require.NoError(t, err)
		assert.False(t, has)
	})

	t.Run("set with nil record", func(t *testing.T) {
		_, err := s.Mutate(ctx, "ghost", func(rec multiverse.Record, found bool) (multiverse.Record, multiverse.MutateAction) {
			return nil, multiverse.MutateSet
		})
		assert.Error(t, err)
	})
}

func TestMemorySunContextCancellation(t *testing.T) {
	s := NewMemorySun("users", testSchema(t), 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := s.Get(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, s.Set(ctx, "a", multiverse.Record{}), context.Canceled)
}
