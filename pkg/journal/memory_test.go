package journal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bingomanatee/multiverse/pkg/multiverse"
)

func TestMemoryJournal(t *testing.T) {
	j := NewMemoryJournal()
	ctx := context.Background()

	entry := &multiverse.TransportEntry{
		Stream:     "stream-1",
		Collection: "users",
		From:       "flatland",
		To:         "deepspace",
		Keys:       []string{"a", "b"},
		Count:      2,
		Timestamp:  time.Now().UTC(),
	}
	require.NoError(t, j.Record(ctx, entry))

	entries := j.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "stream-1", entries[0].Stream)
	assert.Equal(t, 2, entries[0].Count)

	// Entries returns a copy; callers cannot alter the journal.
	entries[0].Stream = "tampered"
	assert.Equal(t, "stream-1", j.Entries()[0].Stream)

	assert.NoError(t, j.Close())
}

func TestMemoryJournalCancelledContext(t *testing.T) {
	j := NewMemoryJournal()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := j.Record(ctx, &multiverse.TransportEntry{Stream: "s"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, j.Entries())
}

func TestNewFromConfig(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		j, err := New(multiverse.JournalConfig{Type: "none"}, nil)
		require.NoError(t, err)
		assert.Nil(t, j)
	})

	t.Run("memory", func(t *testing.T) {
		j, err := New(multiverse.JournalConfig{Type: "memory"}, nil)
		require.NoError(t, err)
		assert.IsType(t, &MemoryJournal{}, j)
	})

	t.Run("kafka requires brokers", func(t *testing.T) {
		_, err := New(multiverse.JournalConfig{Type: "kafka"}, nil)
		assert.Error(t, err)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := New(multiverse.JournalConfig{Type: "pigeon"}, nil)
		assert.Error(t, err)
	})
}
