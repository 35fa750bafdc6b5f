// Package metrics provides per-stream counters for the brine codec.
//
// The Collector accumulates counters for a single produced or consumed
// stream. It is a leaf package with no internal dependencies. All
// methods are nil-receiver safe so codec paths can skip the nil check.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of stream counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after
// creation.
type Snapshot struct {
	// Producer side
	LinesWritten  int64
	ChunksEmitted int64

	// Consumer side
	LinesRead      int64
	ChunksObserved int64
	DecodeErrors   int64
	Interruptions  int64

	// Dimensions (informational, set at construction)
	StreamID string
	Role     string
}

// Collector accumulates counters for a single stream.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	linesWritten  int64
	chunksEmitted int64

	linesRead      int64
	chunksObserved int64
	decodeErrors   int64
	interruptions  int64

	streamID string
	role     string
}

// NewCollector creates a Collector with dimension labels. Role is
// "producer" or "consumer"; streamID is optional.
func NewCollector(role, streamID string) *Collector {
	return &Collector{role: role, streamID: streamID}
}

// IncLineWritten records one line written to the outgoing stream.
func (c *Collector) IncLineWritten() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.linesWritten++
	c.mu.Unlock()
}

// IncChunkEmitted records one chunk emitted by the producer.
func (c *Collector) IncChunkEmitted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.chunksEmitted++
	c.mu.Unlock()
}

// IncLineRead records one framed line read from the incoming stream.
func (c *Collector) IncLineRead() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.linesRead++
	c.mu.Unlock()
}

// IncChunkObserved records one chunk routed by the consumer demuxer.
func (c *Collector) IncChunkObserved() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.chunksObserved++
	c.mu.Unlock()
}

// IncDecodeError records a malformed line or chunk.
func (c *Collector) IncDecodeError() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.decodeErrors++
	c.mu.Unlock()
}

// IncInterruption records a stream interruption.
func (c *Collector) IncInterruption() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.interruptions++
	c.mu.Unlock()
}

// Snapshot returns an immutable point-in-time view of all counters.
// The returned Snapshot is safe to read concurrently; the Collector can
// continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		LinesWritten:  c.linesWritten,
		ChunksEmitted: c.chunksEmitted,

		LinesRead:      c.linesRead,
		ChunksObserved: c.chunksObserved,
		DecodeErrors:   c.decodeErrors,
		Interruptions:  c.interruptions,

		StreamID: c.streamID,
		Role:     c.role,
	}
}
