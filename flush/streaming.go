package flush

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pithecene-io/brine/journal"
	"github.com/pithecene-io/brine/log"
)

// StreamingConfig configures a StreamingPolicy.
type StreamingConfig struct {
	// FlushCount triggers a flush after N records accumulate.
	// Zero means count-based flush is disabled.
	FlushCount int

	// FlushInterval triggers a flush every interval.
	// Zero means interval-based flush is disabled.
	FlushInterval time.Duration

	// Logger is an optional logger for policy observability.
	Logger *log.Logger
}

// FlushTrigger identifies which trigger caused a flush.
type FlushTrigger string

const (
	// FlushTriggerCount indicates a count-threshold flush.
	FlushTriggerCount FlushTrigger = "count"
	// FlushTriggerInterval indicates an interval-based flush.
	FlushTriggerInterval FlushTrigger = "interval"
	// FlushTriggerTermination indicates a capture termination flush.
	FlushTriggerTermination FlushTrigger = "termination"
)

// ErrStreamingInvalidConfig is returned when StreamingConfig is invalid.
var ErrStreamingInvalidConfig = errors.New("invalid streaming config: at least one of FlushCount or FlushInterval must be set")

// StreamingPolicy implements continuous persistence with batched writes.
//
//   - No drops: every record is persisted
//   - Bounded buffer: records accumulate in an in-memory buffer
//   - Periodic flush: buffer flushed to the sink when any trigger fires
//
// On flush failure, the buffer is preserved and retried on the next
// trigger.
//
// Thread safety:
//   - mu guards buffer state (append, size tracking, stats)
//   - flushMu serializes flush operations to prevent concurrent writes
//   - Ingest holds mu briefly to append
//   - triggerFlush holds flushMu for the duration of the write,
//     and mu briefly to swap/restore buffers
type StreamingPolicy struct {
	sink   Sink
	config StreamingConfig
	logger *log.Logger

	mu          sync.Mutex // guards buffer state and stats
	buffer      []*journal.Record
	bufferBytes int64
	stats       *statsRecorder

	// flushMu serializes flush operations.
	// Prevents concurrent flushes from interval goroutine and count trigger.
	flushMu sync.Mutex

	// flushByCount, flushByInterval and flushByTermination track how many
	// times each trigger type fired.
	// Guarded by mu.
	flushByCount       int64
	flushByInterval    int64
	flushByTermination int64

	// stopCh signals the interval goroutine to stop.
	stopCh chan struct{}
	// stopped indicates Close has been called. Guarded by mu.
	stopped bool
}

// NewStreamingPolicy creates a new streaming policy.
// Returns error if config is invalid.
func NewStreamingPolicy(sink Sink, config StreamingConfig) (*StreamingPolicy, error) {
	if config.FlushCount <= 0 && config.FlushInterval <= 0 {
		return nil, ErrStreamingInvalidConfig
	}

	p := &StreamingPolicy{
		sink:   sink,
		config: config,
		logger: config.Logger,
		buffer: make([]*journal.Record, 0, 128),
		stats:  newStatsRecorder(),
		stopCh: make(chan struct{}),
	}

	// Start interval flush goroutine if configured
	if config.FlushInterval > 0 {
		go p.intervalLoop()
	}

	return p, nil
}

// Ingest adds the record to the buffer.
// Never drops records. If the count threshold is reached, triggers a flush.
func (p *StreamingPolicy) Ingest(ctx context.Context, record *journal.Record) error {
	p.mu.Lock()

	p.stats.incTotalRecordsLocked()
	p.buffer = append(p.buffer, record)
	p.bufferBytes += estimateRecordSize(record)
	p.stats.setBufferSizeLocked(p.bufferBytes)

	// Check count trigger
	shouldFlush := p.config.FlushCount > 0 && len(p.buffer) >= p.config.FlushCount
	p.mu.Unlock()

	if shouldFlush {
		return p.triggerFlush(ctx, FlushTriggerCount)
	}

	return nil
}

// Flush flushes all buffered records (capture termination trigger).
func (p *StreamingPolicy) Flush(ctx context.Context) error {
	return p.triggerFlush(ctx, FlushTriggerTermination)
}

// triggerFlush performs a flush with the given trigger reason.
// Serialized by flushMu to prevent concurrent writes.
//
// Strategy: swap buffers under mu, write outside mu, restore on failure.
// This allows Ingest to continue appending to a fresh buffer during a
// write, without blocking on the sink.
func (p *StreamingPolicy) triggerFlush(ctx context.Context, trigger FlushTrigger) error {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	// Swap buffers under mu
	p.mu.Lock()

	switch trigger {
	case FlushTriggerCount:
		p.flushByCount++
	case FlushTriggerInterval:
		p.flushByInterval++
	case FlushTriggerTermination:
		p.flushByTermination++
	}

	p.stats.incFlushLocked()

	records := p.buffer

	// Nothing to flush
	if len(records) == 0 {
		p.mu.Unlock()
		return nil
	}

	// Install a fresh buffer so ingestion can continue during the write
	p.buffer = make([]*journal.Record, 0, 128)
	p.recalculateBufferBytesLocked()

	p.mu.Unlock()

	if err := p.sink.WriteRecords(ctx, records); err != nil {
		// Restore the buffer: prepend old records before any new ones
		p.mu.Lock()
		p.stats.incErrorsLocked()
		p.buffer = append(records, p.buffer...)
		p.recalculateBufferBytesLocked()
		p.mu.Unlock()
		p.logFlushFailure(trigger, err)
		return err
	}

	p.mu.Lock()
	p.stats.incRecordsPersistedLocked(int64(len(records)))
	p.mu.Unlock()

	p.logFlush(trigger, len(records))

	return nil
}

// Close stops the interval goroutine and closes the sink.
func (p *StreamingPolicy) Close() error {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.stopCh)
	}
	p.mu.Unlock()

	// Best-effort flush on close
	_ = p.Flush(context.Background())
	return p.sink.Close()
}

// Stats returns policy statistics.
// Returns an atomic snapshot: the buffer mutex is held while taking the
// snapshot, ensuring all counters and buffer size are consistent.
func (p *StreamingPolicy) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.stats.snapshotLocked(p.bufferBytes)
}

// FlushTriggerStats returns per-trigger flush counts for observability.
func (p *StreamingPolicy) FlushTriggerStats() map[FlushTrigger]int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return map[FlushTrigger]int64{
		FlushTriggerCount:       p.flushByCount,
		FlushTriggerInterval:    p.flushByInterval,
		FlushTriggerTermination: p.flushByTermination,
	}
}

// intervalLoop runs in a goroutine and triggers flushes on the configured interval.
func (p *StreamingPolicy) intervalLoop() {
	ticker := time.NewTicker(p.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.mu.Lock()
			hasData := len(p.buffer) > 0
			p.mu.Unlock()

			if hasData {
				// Best-effort interval flush — errors logged but not fatal
				_ = p.triggerFlush(context.Background(), FlushTriggerInterval)
			}
		case <-p.stopCh:
			return
		}
	}
}

// estimateRecordSize returns an estimated size in bytes for a record.
func estimateRecordSize(record *journal.Record) int64 {
	return int64(len(record.Line)) + 64
}

// recalculateBufferBytesLocked recalculates bufferBytes from the buffer.
// Caller must hold mu.
func (p *StreamingPolicy) recalculateBufferBytesLocked() {
	var total int64
	for _, record := range p.buffer {
		total += estimateRecordSize(record)
	}
	p.bufferBytes = total
	p.stats.setBufferSizeLocked(p.bufferBytes)
}

// --- Logging helpers ---

func (p *StreamingPolicy) logFlush(trigger FlushTrigger, records int) {
	if p.logger == nil {
		return
	}
	p.logger.Info("streaming flush", map[string]any{
		"trigger": string(trigger),
		"records": records,
		"policy":  "streaming",
	})
}

func (p *StreamingPolicy) logFlushFailure(trigger FlushTrigger, err error) {
	if p.logger == nil {
		return
	}
	p.logger.Error("streaming flush failed", map[string]any{
		"trigger": string(trigger),
		"error":   err.Error(),
		"policy":  "streaming",
	})
}

// Verify StreamingPolicy implements Policy.
var _ Policy = (*StreamingPolicy)(nil)
