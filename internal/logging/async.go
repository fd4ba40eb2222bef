package logging

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// AsyncSink decouples log emission from log writing. Records queue into a
// bounded buffer and a background goroutine hands them to the wrapped handler.
// The power arbiter polls Pending before sleep so no records are lost when the
// processor stops.
type AsyncSink struct {
	inner slog.Handler
	queue chan queuedRecord

	pending atomic.Int64

	mu      sync.Mutex
	started bool
	done    chan struct{}
}

type queuedRecord struct {
	handler slog.Handler
	record  slog.Record
}

// NewAsyncSink wraps inner with a buffered writer. size bounds the backlog;
// when the buffer is full the record is written synchronously instead of
// being dropped.
func NewAsyncSink(inner slog.Handler, size int) *AsyncSink {
	if size <= 0 {
		size = 64
	}
	return &AsyncSink{
		inner: inner,
		queue: make(chan queuedRecord, size),
	}
}

// Start launches the background writer.
func (s *AsyncSink) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.done = make(chan struct{})
	go s.run(s.done)
}

// Stop drains outstanding records and stops the writer.
func (s *AsyncSink) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	done := s.done
	s.mu.Unlock()

	close(s.queue)
	<-done
}

// Pending reports the number of records not yet written.
func (s *AsyncSink) Pending() int {
	return int(s.pending.Load())
}

// Flush blocks until the backlog is empty or ctx expires.
func (s *AsyncSink) Flush(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if s.Pending() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *AsyncSink) run(done chan struct{}) {
	defer close(done)
	for item := range s.queue {
		_ = item.handler.Handle(context.Background(), item.record)
		s.pending.Add(-1)
	}
}

// enqueue buffers the record against the given terminal handler, falling back
// to a synchronous write when the sink is stopped or the buffer is full.
func (s *AsyncSink) enqueue(ctx context.Context, handler slog.Handler, record slog.Record) error {
	// The send happens under the mutex so Stop cannot close the queue
	// between the started check and the send. The default branch keeps the
	// critical section non-blocking.
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return handler.Handle(ctx, record)
	}
	select {
	case s.queue <- queuedRecord{handler: handler, record: record.Clone()}:
		s.pending.Add(1)
		s.mu.Unlock()
		return nil
	default:
		s.mu.Unlock()
		return handler.Handle(ctx, record)
	}
}

func (s *AsyncSink) Enabled(ctx context.Context, level slog.Level) bool {
	return s.inner.Enabled(ctx, level)
}

func (s *AsyncSink) Handle(ctx context.Context, record slog.Record) error {
	return s.enqueue(ctx, s.inner, record)
}

func (s *AsyncSink) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &asyncDerived{sink: s, inner: s.inner.WithAttrs(attrs)}
}

func (s *AsyncSink) WithGroup(name string) slog.Handler {
	return &asyncDerived{sink: s, inner: s.inner.WithGroup(name)}
}

// asyncDerived carries per-logger attrs while routing records through the
// parent sink's buffer so Pending accounts for them.
type asyncDerived struct {
	sink  *AsyncSink
	inner slog.Handler
}

func (d *asyncDerived) Enabled(ctx context.Context, level slog.Level) bool {
	return d.inner.Enabled(ctx, level)
}

func (d *asyncDerived) Handle(ctx context.Context, record slog.Record) error {
	return d.sink.enqueue(ctx, d.inner, record)
}

func (d *asyncDerived) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &asyncDerived{sink: d.sink, inner: d.inner.WithAttrs(attrs)}
}

func (d *asyncDerived) WithGroup(name string) slog.Handler {
	return &asyncDerived{sink: d.sink, inner: d.inner.WithGroup(name)}
}
