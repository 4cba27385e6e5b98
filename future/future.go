// Package future provides a single-use reply slot with a bounded wait.
// Every correlated request/response exchange in the engine goes through
// one Future instead of a bespoke synchronization type per call site.
package future

import (
	"context"
	"time"

	"room-warden/errors"
)

type outcome[T any] struct {
	value T
	err   error
}

// Future carries the eventual outcome of one request. Resolve may be
// called from any goroutine; only the first call is observed.
type Future[T any] struct {
	done chan outcome[T]
}

func New[T any]() *Future[T] {
	return &Future[T]{done: make(chan outcome[T], 1)}
}

// Resolve completes the future. Extra calls are dropped; only the first
// outcome is observed.
func (f *Future[T]) Resolve(value T, err error) {
	select {
	case f.done <- outcome[T]{value: value, err: err}:
	default:
	}
}

// Wait blocks until the future resolves, the context is canceled, or the
// timeout elapses. A timeout surfaces errors.ErrRequestTimeout; the
// request may still commit afterwards, it is only the wait that gave up.
func (f *Future[T]) Wait(ctx context.Context, timeout time.Duration) (T, error) {
	var zero T
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case out := <-f.done:
		return out.value, out.err
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-timer.C:
		return zero, errors.ErrRequestTimeout
	}
}
