// Package codec implements the brine streaming structured-value codec.
//
// Produce flattens a value tree whose leaves may be futures or lazy
// sequences into a head line plus a multiplex of chunk lines; Consume
// parses that stream and rebuilds a logically equivalent tree whose
// deferred leaves resolve as bytes arrive. See the wire shapes in the
// types package.
//
// This file defines the codec error kinds. Sentinels support errors.Is;
// the structured wrappers preserve path and payload detail for callers
// that need it via errors.As.
package codec

import (
	"errors"
	"fmt"

	"github.com/pithecene-io/brine/types"
)

// Sentinel errors for codec failure classification.
var (
	// ErrMaxDepth indicates a value path exceeded the configured depth cap.
	ErrMaxDepth = errors.New("max depth exceeded")

	// ErrInterrupted indicates the byte stream ended or failed before all
	// referenced chunk-ids reached a terminal chunk. Every unresolved
	// future and unterminated sequence on the consumer receives it.
	ErrInterrupted = errors.New("stream interrupted")

	// ErrProtocol indicates a malformed line, an unexpected status code,
	// or a sub-stream that closed without its promised chunk.
	ErrProtocol = errors.New("protocol error")
)

// DepthError reports the path that exceeded the depth cap.
type DepthError struct {
	// Path is the location of the offending value in the root tree.
	Path types.Path
	// Limit is the configured maximum depth.
	Limit int
}

func (e *DepthError) Error() string {
	return fmt.Sprintf("max depth exceeded at %s (limit %d)", e.Path, e.Limit)
}

// Is reports whether the error matches the ErrMaxDepth sentinel.
func (e *DepthError) Is(target error) bool {
	return target == ErrMaxDepth
}

// ProtocolError reports a wire-level violation observed by the consumer.
type ProtocolError struct {
	Msg string
	Err error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("protocol error: %s", e.Msg)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the ErrProtocol sentinel.
func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocol
}

// RemoteError carries a wire error payload for which no ParseError hook
// was installed. The raw payload is preserved for inspection.
type RemoteError struct {
	Payload any
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error: %v", e.Payload)
}

// InterruptedError wraps a transport cause behind the ErrInterrupted
// sentinel. A clean end-of-stream with outstanding chunk-ids interrupts
// with no cause.
type InterruptedError struct {
	Cause error
}

func (e *InterruptedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("stream interrupted: %v", e.Cause)
	}
	return "stream interrupted"
}

func (e *InterruptedError) Unwrap() error {
	return e.Cause
}

// Is reports whether the error matches the ErrInterrupted sentinel.
func (e *InterruptedError) Is(target error) bool {
	return target == ErrInterrupted
}
