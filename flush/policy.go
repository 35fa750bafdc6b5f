// Package flush defines batching policies for journal record persistence.
//
// A capture session ingests one record per stream line. Policies control
// how records buffer before reaching the storage sink: write-through
// (strict) or batched with count/interval triggers (streaming). Records
// are never dropped; a policy failure fails the capture.
package flush

import (
	"context"
	"sync"

	"github.com/pithecene-io/brine/journal"
)

// Sink is the storage boundary a policy flushes into. journal.Client
// implementations satisfy it.
type Sink interface {
	// WriteRecords writes a batch of captured records.
	// Must preserve ordering within the batch.
	WriteRecords(ctx context.Context, records []*journal.Record) error

	// Close releases sink resources.
	Close() error
}

// Policy defines the record ingestion policy interface.
//
//   - Records must never be dropped and never reordered
//   - Policy failure terminates the capture
type Policy interface {
	// Ingest handles one captured record.
	Ingest(ctx context.Context, record *journal.Record) error

	// Flush flushes any buffered records.
	// Called at capture termination.
	Flush(ctx context.Context) error

	// Close cleans up policy resources.
	Close() error

	// Stats returns policy statistics for observability.
	// Returns an atomic snapshot; all counters are consistent with each
	// other.
	Stats() Stats
}

// Stats represents policy observability metrics.
type Stats struct {
	// TotalRecords is the total number of records received.
	TotalRecords int64
	// RecordsPersisted is the number of records written to the sink.
	RecordsPersisted int64
	// BufferSize is the current buffer size in bytes (if buffered).
	BufferSize int64
	// FlushCount is the number of flush operations.
	FlushCount int64
	// Errors is the count of non-fatal errors encountered.
	Errors int64
}

// statsRecorder is an internal helper for thread-safe stats management.
// Policies call explicit methods to record mutations; the recorder does
// not infer or automate any policy decisions.
//
// Lock discipline:
//   - StrictPolicy uses the locking methods (incTotalRecords, snapshot)
//   - StreamingPolicy uses the Locked methods only while holding its own
//     mu, keeping buffer state and counters atomic.
type statsRecorder struct {
	mu    sync.Mutex
	stats Stats
}

func newStatsRecorder() *statsRecorder {
	return &statsRecorder{}
}

func (r *statsRecorder) incTotalRecords() {
	r.mu.Lock()
	r.stats.TotalRecords++
	r.mu.Unlock()
}

func (r *statsRecorder) incRecordsPersisted(n int64) {
	r.mu.Lock()
	r.stats.RecordsPersisted += n
	r.mu.Unlock()
}

func (r *statsRecorder) incFlush() {
	r.mu.Lock()
	r.stats.FlushCount++
	r.mu.Unlock()
}

func (r *statsRecorder) snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// --- Locked methods for StreamingPolicy ---
// Caller must hold StreamingPolicy.mu.

func (r *statsRecorder) incTotalRecordsLocked() {
	r.stats.TotalRecords++
}

func (r *statsRecorder) incRecordsPersistedLocked(n int64) {
	r.stats.RecordsPersisted += n
}

func (r *statsRecorder) incErrorsLocked() {
	r.stats.Errors++
}

func (r *statsRecorder) incFlushLocked() {
	r.stats.FlushCount++
}

func (r *statsRecorder) setBufferSizeLocked(bytes int64) {
	r.stats.BufferSize = bytes
}

// snapshotLocked returns an atomic snapshot with the given bufferSize.
// Caller must hold StreamingPolicy.mu.
func (r *statsRecorder) snapshotLocked(bufferSize int64) Stats {
	s := r.stats
	s.BufferSize = bufferSize
	return s
}
