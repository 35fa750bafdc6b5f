package future

import (
	"context"
	"errors"
	"sync"
)

// ErrDone is returned by Sequence.Next when the sequence has completed
// normally. Analogous to io.EOF for byte readers.
var ErrDone = errors.New("sequence complete")

// ErrCancelled is returned by Stream.Next after the stream has been
// cancelled by its consumer.
var ErrCancelled = errors.New("stream cancelled")

// CancelToken is the value a stream's cancellation future resolves with.
// A dedicated type, so racing code can distinguish cancellation from any
// user value without string comparison.
type CancelToken struct{}

// Sequence is the iteration contract for lazy sequences of values.
// Implementations return ErrDone when the sequence completes. Next is
// not safe for concurrent use; a sequence has a single consumer.
type Sequence interface {
	Next(ctx context.Context) (any, error)
}

// Stream is an in-memory lazy sequence fed by an external Controller.
// Items buffer until the consumer drains them with Next. Cancel releases
// the stream without draining and resolves the cancellation future,
// which producers race against to abandon work instead of leaking.
type Stream struct {
	mu     sync.Mutex
	buf    []any
	closed bool
	failed error
	// change is closed and replaced on every state transition so a
	// blocked Next can re-check state without polling.
	change    chan struct{}
	cancelled *Future
}

// Controller feeds a Stream. Enqueue, Close, and Error may be called from
// any goroutine; calls after close or cancellation are silently ignored.
type Controller struct {
	s *Stream
}

// NewStream creates an empty stream and its controller.
func NewStream() (*Stream, *Controller) {
	s := &Stream{
		change:    make(chan struct{}),
		cancelled: New(),
	}
	return s, &Controller{s: s}
}

// wakeLocked closes the current change channel and installs a fresh one.
// Caller must hold s.mu.
func (s *Stream) wakeLocked() {
	close(s.change)
	s.change = make(chan struct{})
}

// Enqueue appends item to the stream buffer.
func (c *Controller) Enqueue(item any) {
	s := c.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.cancelled.Settled() {
		return
	}
	s.buf = append(s.buf, item)
	s.wakeLocked()
}

// Close marks the stream complete. Buffered items remain readable; Next
// returns ErrDone once the buffer drains.
func (c *Controller) Close() {
	s := c.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.wakeLocked()
}

// Error terminates the stream with err. Buffered items remain readable;
// Next returns err once the buffer drains.
func (c *Controller) Error(err error) {
	s := c.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.failed = err
	s.wakeLocked()
}

// Next returns the next buffered item, blocking until one is enqueued,
// the stream terminates, or ctx is cancelled.
func (s *Stream) Next(ctx context.Context) (any, error) {
	for {
		s.mu.Lock()
		if s.cancelled.Settled() {
			s.mu.Unlock()
			return nil, ErrCancelled
		}
		if len(s.buf) > 0 {
			item := s.buf[0]
			s.buf = s.buf[1:]
			s.mu.Unlock()
			return item, nil
		}
		if s.closed {
			err := s.failed
			s.mu.Unlock()
			if err != nil {
				return nil, err
			}
			return nil, ErrDone
		}
		change := s.change
		s.mu.Unlock()

		select {
		case <-change:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.cancelled.Done():
		}
	}
}

// Cancel releases the stream without draining it. The buffer is dropped,
// the cancellation future resolves with a CancelToken, and subsequent
// Next calls return ErrCancelled. Idempotent.
func (s *Stream) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelled.Settled() {
		return
	}
	s.buf = nil
	s.cancelled.Resolve(CancelToken{})
	s.wakeLocked()
}

// Cancelled returns the companion future that resolves with a CancelToken
// when the consumer cancels the stream. Producers race pending work
// against it.
func (s *Stream) Cancelled() *Future {
	return s.cancelled
}

// IsCancelled reports whether Cancel has been called.
func (s *Stream) IsCancelled() bool {
	return s.cancelled.Settled()
}

// Verify Stream implements Sequence.
var _ Sequence = (*Stream)(nil)
