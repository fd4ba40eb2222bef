// Package guard provides the exclusive-access primitive shared by the
// storage and network resources.
package guard

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned when the guard stays contended past the configured
// acquisition timeout. Callers treat it as "skip this cycle".
var ErrTimeout = errors.New("guard acquisition timed out")

// Guard serializes access to one exclusive resource, such as the storage
// medium or the network client. It is a semaphore of one with
// timeout-bounded acquisition, so a stuck holder degrades the system to
// skipped cycles instead of a hang.
type Guard struct {
	sem     chan struct{}
	timeout time.Duration
}

// New returns a Guard whose Acquire waits at most timeout.
func New(timeout time.Duration) *Guard {
	g := &Guard{
		sem:     make(chan struct{}, 1),
		timeout: timeout,
	}
	g.sem <- struct{}{}
	return g
}

// Acquire claims the guard, waiting up to the configured timeout. The caller
// must invoke the returned release exactly once, and must do so before any
// blocking network call.
func (g *Guard) Acquire(ctx context.Context) (func(), error) {
	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	select {
	case token := <-g.sem:
		return func() { g.sem <- token }, nil
	case <-timer.C:
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryAcquire claims the guard only if it is immediately free.
func (g *Guard) TryAcquire() (func(), bool) {
	select {
	case token := <-g.sem:
		return func() { g.sem <- token }, true
	default:
		return nil, false
	}
}
