package multiverse

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// TransportRequest names the two endpoints of a transport: the same-named
// collection in a source and a destination universe.
type TransportRequest struct {
	// Collection is the collection name present in both universes.
	Collection string

	// From and To are the source and destination universe names.
	From string
	To   string
}

// TransportEvent reports progress on a streaming transport. Successful
// flushes carry Current (records in this flush) and Total (cumulative
// records flushed); failures carry Err with Current zero.
type TransportEvent struct {
	// Stream identifies the TransportAll call that produced the event.
	Stream string

	// Total is the cumulative number of records flushed so far.
	Total int

	// Current is the number of records in this flush, zero on errors.
	Current int

	// Err is the translation or flush error, nil on progress events.
	Err error
}

// TransportListener receives progress and error events from a streaming
// transport. Events are delivered one at a time; listeners must not block
// for long.
type TransportListener func(event TransportEvent)

// TransportOptions tunes a TransportAll call.
type TransportOptions struct {
	// BatchSize overrides the flush threshold. Zero falls back to the
	// destination collection's BatchSize, then to DefaultBatchSize.
	BatchSize int

	// FlushRate caps flushes per second. Zero means unlimited.
	FlushRate int

	// Listener receives progress and error events. May be nil.
	Listener TransportListener
}

// Transport moves one record by key from the source universe's collection to
// the destination universe's same-named collection, translating through the
// shared universal schema.
//
// A missing source record is a soft failure: it is logged at Warn and the
// call returns nil without writing, since "nothing to transport" is a valid
// outcome for stale or raced keys.
func (m *Multiverse) Transport(ctx context.Context, key string, req TransportRequest) error {
	src, dst, err := m.resolve(req)
	if err != nil {
		return err
	}

	rec, found, err := src.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("transport: reading %q from %s/%s: %w", key, req.From, req.Collection, err)
	}
	if !found {
		m.log.Warn("record not found for transport",
			zap.String("key", key),
			zap.String("collection", req.Collection),
			zap.String("from", req.From),
			zap.String("to", req.To))
		return nil
	}

	local, err := m.translate(rec, src, dst, req)
	if err != nil {
		return err
	}
	if err := dst.Set(ctx, key, local); err != nil {
		return fmt.Errorf("transport: writing %q to %s/%s: %w", key, req.To, req.Collection, err)
	}

	m.journalFlush(ctx, uuid.NewString(), req, []string{key})
	return nil
}

// TransportMany moves a set of records by key. Missing keys are logged and
// skipped. Translation failures abort the call before anything is written
// when the destination is synchronous; for asynchronous destinations the
// failing records are skipped and the first error is returned after the
// batch is written.
func (m *Multiverse) TransportMany(ctx context.Context, keys []string, req TransportRequest) error {
	src, dst, err := m.resolve(req)
	if err != nil {
		return err
	}

	records, err := src.GetMany(ctx, keys)
	if err != nil {
		return fmt.Errorf("transport: reading %d keys from %s/%s: %w", len(keys), req.From, req.Collection, err)
	}

	out := make(map[string]Record, len(records))
	written := make([]string, 0, len(records))
	var firstErr error
	for _, key := range keys {
		rec, ok := records[key]
		if !ok {
			m.log.Warn("record not found for transport",
				zap.String("key", key),
				zap.String("collection", req.Collection),
				zap.String("from", req.From))
			continue
		}
		local, err := m.translate(rec, src, dst, req)
		if err != nil {
			if !dst.IsAsync() {
				return err
			}
			if firstErr == nil {
				firstErr = err
			}
			m.log.Warn("skipping untranslatable record",
				zap.String("key", key),
				zap.String("collection", req.Collection),
				zap.Error(err))
			continue
		}
		out[key] = local
		written = append(written, key)
	}

	if len(out) > 0 {
		if err := dst.SetMany(ctx, out); err != nil {
			return fmt.Errorf("transport: writing %d records to %s/%s: %w", len(out), req.To, req.Collection, err)
		}
		m.journalFlush(ctx, uuid.NewString(), req, written)
	}
	return firstErr
}

// TransportAll streams every record of the source collection into the
// destination, flushing batches of translated records as they accumulate.
//
// Batches flush in source-cursor order. For a synchronous destination any
// translation or flush error terminates the stream; the returned error is
// that failure. For an asynchronous destination flushes are fired without
// waiting for completion, per-record errors only surface through the
// listener, and completion is gated on every in-flight flush finishing.
// Cancel the context to terminate early; no further batches are read or
// flushed after cancellation.
func (m *Multiverse) TransportAll(ctx context.Context, req TransportRequest, opts TransportOptions) error {
	src, dst, err := m.resolve(req)
	if err != nil {
		return err
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = dst.BatchSize()
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	cursor, err := src.Values(ctx)
	if err != nil {
		return fmt.Errorf("transport: opening cursor on %s/%s: %w", req.From, req.Collection, err)
	}
	defer cursor.Close()

	var limiter *rate.Limiter
	if opts.FlushRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.FlushRate), 1)
	}

	stream := newTransportStream(m, req, uuid.NewString(), opts.Listener, dst.IsAsync())
	defer stream.wait()

	pending := make(map[string]Record, batchSize)
	order := make([]string, 0, batchSize)

	for {
		batch, done, err := cursor.Next(ctx, batchSize)
		if err != nil {
			return err
		}

		for _, kr := range batch {
			local, err := m.translate(kr.Record, src, dst, req)
			if err != nil {
				stream.emitError(err)
				if !stream.async {
					return err
				}
				continue
			}
			pending[kr.Key] = local
			order = append(order, kr.Key)

			if len(pending) >= batchSize {
				if err := stream.flush(ctx, dst, pending, order, limiter); err != nil {
					return err
				}
				pending = make(map[string]Record, batchSize)
				order = make([]string, 0, batchSize)
			}
		}

		if done {
			break
		}
	}

	if len(pending) > 0 {
		if err := stream.flush(ctx, dst, pending, order, limiter); err != nil {
			return err
		}
	}
	return nil
}

// resolve locates both endpoints of a transport request.
func (m *Multiverse) resolve(req TransportRequest) (src, dst Collection, err error) {
	if src, err = m.collection(req.From, req.Collection); err != nil {
		return nil, nil, err
	}
	if dst, err = m.collection(req.To, req.Collection); err != nil {
		return nil, nil, err
	}
	return src, dst, nil
}

// translate carries one record source-local -> universal -> destination-local.
func (m *Multiverse) translate(rec Record, src, dst Collection, req TransportRequest) (Record, error) {
	univ, err := m.translator.ToUniversal(rec, src.Schema(), req.From)
	if err != nil {
		return nil, err
	}
	return m.translator.ToLocal(univ, dst.Schema(), req.To)
}

// journalFlush records a completed flush. Journal failures never fail the
// transport that produced them.
func (m *Multiverse) journalFlush(ctx context.Context, stream string, req TransportRequest, keys []string) {
	if m.journal == nil || len(keys) == 0 {
		return
	}
	entry := &TransportEntry{
		Stream:     stream,
		Collection: req.Collection,
		From:       req.From,
		To:         req.To,
		Keys:       keys,
		Count:      len(keys),
		Timestamp:  time.Now().UTC(),
	}
	if err := m.journal.Record(ctx, entry); err != nil {
		m.log.Warn("transport journal write failed",
			zap.String("stream", stream),
			zap.String("collection", req.Collection),
			zap.Error(err))
	}
}

// transportStream holds the shared state of one TransportAll call: the
// cumulative total, the in-flight flush gate, and event serialization.
type transportStream struct {
	mv       *Multiverse
	req      TransportRequest
	id       string
	listener TransportListener
	async    bool

	wg sync.WaitGroup

	mu    sync.Mutex
	total int
}

func newTransportStream(mv *Multiverse, req TransportRequest, id string, listener TransportListener, async bool) *transportStream {
	return &transportStream{mv: mv, req: req, id: id, listener: listener, async: async}
}

// flush writes one batch to the destination. Synchronous destinations are
// written inline and any error halts the stream; asynchronous destinations
// are written on a goroutine without waiting, so several flushes may be in
// flight while the cursor keeps producing.
func (s *transportStream) flush(ctx context.Context, dst Collection, chunk map[string]Record, keys []string, limiter *rate.Limiter) error {
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
	}

	if !s.async {
		return s.write(ctx, dst, chunk, keys)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// Errors on async flushes surface through the listener only; the
		// stream keeps consuming the cursor.
		_ = s.write(ctx, dst, chunk, keys)
	}()
	return nil
}

func (s *transportStream) write(ctx context.Context, dst Collection, chunk map[string]Record, keys []string) error {
	if err := dst.SetMany(ctx, chunk); err != nil {
		s.emitError(err)
		return err
	}

	s.mu.Lock()
	s.total += len(chunk)
	event := TransportEvent{Stream: s.id, Total: s.total, Current: len(chunk)}
	if s.listener != nil {
		s.listener(event)
	}
	s.mu.Unlock()

	s.mv.journalFlush(ctx, s.id, s.req, keys)
	return nil
}

func (s *transportStream) emitError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		s.listener(TransportEvent{Stream: s.id, Total: s.total, Err: err})
	}
}

// wait blocks until every in-flight async flush has completed. Called before
// TransportAll returns so completion is never signaled with flushes
// outstanding.
func (s *transportStream) wait() {
	s.wg.Wait()
}
