// Package sun provides storage adapters ("suns") implementing the
// multiverse Collection interface. Each sun binds one collection of one
// universe to a concrete backend: in-process memory, Redis, DynamoDB, or
// MySQL. Backends self-register with the factory so deployments can be
// assembled from configuration alone.
package sun

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/bingomanatee/multiverse/pkg/multiverse"
)

// MemorySun is a synchronous in-process collection. Records are deep-copied
// on the way in and out, so callers can never alias stored state. It is the
// reference implementation of the Collection contract and the default
// backend for tests and demos.
type MemorySun struct {
	name      string
	schema    *multiverse.LocalSchema
	batchSize int

	mu      sync.RWMutex
	records map[string]multiverse.Record
}

// NewMemorySun creates an empty memory-backed collection. A batchSize of
// zero defers to the transport engine's default.
func NewMemorySun(name string, schema *multiverse.LocalSchema, batchSize int) *MemorySun {
	return &MemorySun{
		name:      name,
		schema:    schema,
		batchSize: batchSize,
		records:   make(map[string]multiverse.Record),
	}
}

// Name returns the collection name.
func (s *MemorySun) Name() string { return s.name }

// Schema returns the local schema for this collection's records.
func (s *MemorySun) Schema() *multiverse.LocalSchema { return s.schema }

// BatchSize returns the preferred transport flush threshold.
func (s *MemorySun) BatchSize() int { return s.batchSize }

// IsAsync reports false: memory operations complete inline.
func (s *MemorySun) IsAsync() bool { return false }

// Get returns a deep copy of the record stored under key.
func (s *MemorySun) Get(ctx context.Context, key string) (multiverse.Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key]
	if !ok {
		return nil, false, nil
	}
	return multiverse.CloneRecord(rec), true, nil
}

// Set stores a deep copy of the record under key.
func (s *MemorySun) Set(ctx context.Context, key string, rec multiverse.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = multiverse.CloneRecord(rec)
	return nil
}

// Has reports whether a record exists under key.
func (s *MemorySun) Has(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[key]
	return ok, nil
}

// Delete removes the record under key. Deleting an absent key is a no-op.
func (s *MemorySun) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

// Count returns the number of stored records.
func (s *MemorySun) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// GetMany returns deep copies of the requested records that exist.
func (s *MemorySun) GetMany(ctx context.Context, keys []string) (map[string]multiverse.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]multiverse.Record, len(keys))
	for _, key := range keys {
		if rec, ok := s.records[key]; ok {
			out[key] = multiverse.CloneRecord(rec)
		}
	}
	return out, nil
}

// SetMany stores deep copies of a batch of records.
func (s *MemorySun) SetMany(ctx context.Context, recs map[string]multiverse.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, rec := range recs {
		s.records[key] = multiverse.CloneRecord(rec)
	}
	return nil
}

// Find returns matching records in key order.
func (s *MemorySun) Find(ctx context.Context, match func(rec multiverse.Record) bool) ([]multiverse.KeyedRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []multiverse.KeyedRecord
	for _, key := range s.sortedKeysLocked() {
		if match(s.records[key]) {
			out = append(out, multiverse.KeyedRecord{Key: key, Record: multiverse.CloneRecord(s.records[key])})
		}
	}
	return out, nil
}

// Mutate applies a copy-on-write update: the callback receives an owned deep
// copy and decides the outcome through its MutateAction.
func (s *MemorySun) Mutate(ctx context.Context, key string, fn multiverse.MutateFunc) (multiverse.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, found := s.records[key]
	result, action := fn(multiverse.CloneRecord(stored), found)
	switch action {
	case multiverse.MutateSet:
		if result == nil {
			return nil, fmt.Errorf("mutate of %q returned MutateSet with a nil record", key)
		}
		s.records[key] = multiverse.CloneRecord(result)
		return multiverse.CloneRecord(result), nil
	case multiverse.MutateDelete:
		delete(s.records, key)
		return nil, nil
	case multiverse.MutateNoop:
		if !found {
			return nil, nil
		}
		return multiverse.CloneRecord(stored), nil
	default:
		return nil, fmt.Errorf("mutate of %q returned unknown action %d", key, action)
	}
}

// Values opens a cursor over a sorted-key snapshot. Records written after
// the cursor opens are not observed.
func (s *MemorySun) Values(ctx context.Context) (multiverse.Cursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &memoryCursor{sun: s, keys: s.sortedKeysLocked()}, nil
}

func (s *MemorySun) sortedKeysLocked() []string {
	keys := make([]string, 0, len(s.records))
	for key := range s.records {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

type memoryCursor struct {
	sun  *MemorySun
	keys []string
	pos  int
}

func (c *memoryCursor) Next(ctx context.Context, batchSize int) ([]multiverse.KeyedRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if batchSize <= 0 {
		batchSize = multiverse.DefaultBatchSize
	}
	if c.pos >= len(c.keys) {
		return nil, true, nil
	}

	end := c.pos + batchSize
	if end > len(c.keys) {
		end = len(c.keys)
	}

	c.sun.mu.RLock()
	defer c.sun.mu.RUnlock()
	out := make([]multiverse.KeyedRecord, 0, end-c.pos)
	for _, key := range c.keys[c.pos:end] {
		// Keys deleted since the snapshot are skipped, not errors.
		if rec, ok := c.sun.records[key]; ok {
			out = append(out, multiverse.KeyedRecord{Key: key, Record: multiverse.CloneRecord(rec)})
		}
	}
	c.pos = end
	return out, c.pos >= len(c.keys), nil
}

func (c *memoryCursor) Close() error {
	c.pos = len(c.keys)
	return nil
}

// memoryFactory builds memory suns from configuration.
type memoryFactory struct{}

func (f *memoryFactory) Type() string { return "memory" }

func (f *memoryFactory) Validate(cfg multiverse.SunConfig) error {
	if cfg.Type != "memory" {
		return fmt.Errorf("invalid type for memory factory: %s", cfg.Type)
	}
	return nil
}

func (f *memoryFactory) Create(cfg multiverse.SunConfig, schema *multiverse.LocalSchema, deps Deps) (multiverse.Collection, error) {
	return NewMemorySun(cfg.Collection, schema, cfg.BatchSize), nil
}

func init() {
	RegisterFactory(&memoryFactory{})
}
