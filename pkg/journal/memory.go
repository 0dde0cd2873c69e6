// Package journal provides transport journal backends. A journal receives
// one entry per transport flush and is the durable audit trail of which
// records moved between universes.
package journal

import (
	"context"
	"sync"

	"github.com/bingomanatee/multiverse/pkg/multiverse"
)

// MemoryJournal accumulates entries in memory. Intended for tests and demos.
type MemoryJournal struct {
	mu      sync.Mutex
	entries []multiverse.TransportEntry
}

var _ multiverse.Journal = (*MemoryJournal)(nil)

// NewMemoryJournal creates an empty in-memory journal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

// Record appends a copy of the entry.
func (j *MemoryJournal) Record(ctx context.Context, entry *multiverse.TransportEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, *entry)
	return nil
}

// Entries returns a copy of everything recorded so far.
func (j *MemoryJournal) Entries() []multiverse.TransportEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]multiverse.TransportEntry, len(j.entries))
	copy(out, j.entries)
	return out
}

// Close is a no-op.
func (j *MemoryJournal) Close() error { return nil }
