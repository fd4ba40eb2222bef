package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/mitralabs/coco/internal/audio"
)

// ErrQueueFull is returned when a push times out against a full queue.
var ErrQueueFull = errors.New("bounded chunk queue is full")

// BoundedQueue hands chunks from the recorder to the persister. Both ends
// block with a timeout: push timeouts are backpressure, pop timeouts bound
// the persister's idle wait.
type BoundedQueue struct {
	ch chan audio.Chunk
}

// NewBoundedQueue returns a queue holding at most capacity chunks.
func NewBoundedQueue(capacity int) *BoundedQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &BoundedQueue{ch: make(chan audio.Chunk, capacity)}
}

// Push hands a chunk to the queue, waiting up to timeout for space. On
// ErrQueueFull the caller still owns the chunk.
func (q *BoundedQueue) Push(ctx context.Context, chunk audio.Chunk, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case q.ch <- chunk:
		return nil
	case <-timer.C:
		return ErrQueueFull
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pop takes the next chunk, waiting up to timeout. The second return is
// false when the wait timed out or ctx was canceled.
func (q *BoundedQueue) Pop(ctx context.Context, timeout time.Duration) (audio.Chunk, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case chunk := <-q.ch:
		return chunk, true
	case <-timer.C:
		return audio.Chunk{}, false
	case <-ctx.Done():
		return audio.Chunk{}, false
	}
}

// Len returns the number of queued chunks.
func (q *BoundedQueue) Len() int {
	return len(q.ch)
}

// Cap returns the queue capacity.
func (q *BoundedQueue) Cap() int {
	return cap(q.ch)
}
