// Package future provides the suspension primitives the brine codec is
// built on: a single-resolve Future and a controller-driven Stream.
//
// Both sides of the codec use the same types. On the producer, user code
// hands futures and sequences to Produce; on the consumer, rehydrated
// leaves are futures and sequences backed by demultiplexed sub-streams.
package future

import (
	"context"
	"sync"
)

// Future is a single-resolve, single-reject rendezvous. Resolution is
// idempotent: the first Resolve or Reject wins and later calls are
// silently ignored. A Future is safe for concurrent use.
type Future struct {
	mu    sync.Mutex
	done  chan struct{}
	value any
	err   error
}

// New creates an unresolved Future.
func New() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolved creates a Future already resolved with value.
func Resolved(value any) *Future {
	f := New()
	f.Resolve(value)
	return f
}

// Rejected creates a Future already rejected with err.
func Rejected(err error) *Future {
	f := New()
	f.Reject(err)
	return f
}

// Resolve settles the future with value. No-op if already settled.
func (f *Future) Resolve(value any) {
	f.mu.Lock()
	defer f.mu.Unlock()

	select {
	case <-f.done:
		return
	default:
	}
	f.value = value
	close(f.done)
}

// Reject settles the future with err. No-op if already settled.
func (f *Future) Reject(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	select {
	case <-f.done:
		return
	default:
	}
	f.err = err
	close(f.done)
}

// Done returns a channel closed when the future settles. Use in select
// statements that race the future against cancellation.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the future settles or ctx is cancelled. It returns
// the resolution value, the rejection error, or ctx.Err().
func (f *Future) Await(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the settled value and rejection error. Only valid after
// the Done channel is closed; callers racing the future in a select use
// this to read the outcome without a second select.
func (f *Future) Result() (any, error) {
	return f.value, f.err
}

// Settled reports whether the future has been resolved or rejected.
func (f *Future) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}
