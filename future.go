package specsim

import (
	"context"
	"sync"
)

// Future is a single-assignment cell, generalizing an answer-request's
// later trigger and a run's terminal Result alike: both are "set once,
// read many" channels, so one implementation backs both. This mirrors the
// teacher's own promise type (a single-assignment value with channel-based
// subscribers), stripped of the Promise/A+ chaining this domain doesn't
// need.
type Future[T any] struct {
	mu       sync.Mutex
	settled  bool
	value    T
	done     chan struct{}
	onceDone sync.Once
}

// NewFuture returns an unsettled Future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Set assigns the future's value if it is not already settled. Returns
// false (a no-op) if the future was already settled — repeated completion
// attempts after the first never overwrite the value.
func (f *Future[T]) Set(v T) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settled {
		return false
	}
	f.value = v
	f.settled = true
	f.onceDone.Do(func() { close(f.done) })
	return true
}

// Get returns the settled value and true, or the zero value and false if
// the future has not yet settled.
func (f *Future[T]) Get() (T, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.settled
}

// Settled reports whether Set has been called.
func (f *Future[T]) Settled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settled
}

// Done returns a channel closed exactly once, the moment the future
// settles.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the future settles or ctx is done, whichever comes
// first.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		v, _ := f.Get()
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result is the terminal pass/fail outcome of a Controller run.
type Result = Future[bool]
