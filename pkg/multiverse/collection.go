package multiverse

import "context"

// DefaultBatchSize is the flush threshold used when neither the transport
// options nor the destination collection declare one.
const DefaultBatchSize = 30

// MutateAction tells a collection what to do with the record a MutateFunc
// returned.
type MutateAction int

const (
	// MutateNoop leaves the stored record untouched.
	MutateNoop MutateAction = iota

	// MutateSet stores the returned record under the key.
	MutateSet

	// MutateDelete removes the key.
	MutateDelete
)

// MutateFunc receives an owned deep copy of the stored record (nil when the
// key is absent, with found false) and returns the replacement value plus
// the action to take. The callback may modify its copy freely; the stored
// record changes only when MutateSet is returned.
type MutateFunc func(rec Record, found bool) (Record, MutateAction)

// Cursor is a pull-based iterator over a collection's records. Next returns
// up to batchSize records and reports whether the source is exhausted.
// Cancellation is the caller's context; after cancellation Next returns the
// context's error.
type Cursor interface {
	Next(ctx context.Context, batchSize int) ([]KeyedRecord, bool, error)

	// Close releases any resources held by the cursor. Safe to call more
	// than once.
	Close() error
}

// Collection is the capability interface storage adapters ("suns")
// implement. Each collection holds the records of one record type within one
// universe and carries the local schema those records are shaped by.
//
// Get reports absence through its boolean, never through an error: "nothing
// stored here" is a valid outcome, while the error return is reserved for
// storage failures.
type Collection interface {
	// Name is the collection name, shared across universes for one record type.
	Name() string

	// Schema is the local schema describing this collection's record shape.
	Schema() *LocalSchema

	// BatchSize is the preferred flush threshold for batched transport into
	// this collection. Zero means use the engine default.
	BatchSize() int

	// IsAsync reports whether operations may be deferred by the backing
	// store. The transport engine halts streams on the first error for
	// synchronous destinations and keeps going for asynchronous ones.
	IsAsync() bool

	Get(ctx context.Context, key string) (Record, bool, error)
	Set(ctx context.Context, key string, rec Record) error
	Has(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	Count(ctx context.Context) (int, error)

	// GetMany returns the subset of the requested keys that exist.
	GetMany(ctx context.Context, keys []string) (map[string]Record, error)

	// SetMany stores a batch of records. Used by transport flushes.
	SetMany(ctx context.Context, recs map[string]Record) error

	// Find returns the records matching the predicate, in key order where
	// the backend can provide one.
	Find(ctx context.Context, match func(rec Record) bool) ([]KeyedRecord, error)

	// Mutate applies a copy-on-write update to one key.
	// Returns the stored record after the mutation, or nil when deleted.
	Mutate(ctx context.Context, key string, fn MutateFunc) (Record, error)

	// Values opens a cursor over the whole collection.
	Values(ctx context.Context) (Cursor, error)
}
