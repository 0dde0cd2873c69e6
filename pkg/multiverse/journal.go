package multiverse

import (
	"context"
	"time"
)

// TransportEntry records one completed transport flush: which records moved,
// between which universes, and under which stream.
type TransportEntry struct {
	// Stream is the ID of the transport call that produced the flush.
	Stream string `json:"stream"`

	// Collection is the collection name the records belong to.
	Collection string `json:"collection"`

	// From and To are the source and destination universe names.
	From string `json:"from"`
	To   string `json:"to"`

	// Keys are the record keys written by the flush.
	Keys []string `json:"keys"`

	// Count is len(Keys), carried separately for consumers that drop keys.
	Count int `json:"count"`

	// Timestamp is when the flush completed.
	Timestamp time.Time `json:"timestamp"`
}

// Journal receives an entry for every successful transport flush. Journal
// failures are logged and never fail the transport that produced them.
type Journal interface {
	Record(ctx context.Context, entry *TransportEntry) error
	Close() error
}
