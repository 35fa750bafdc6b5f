package flush

import (
	"context"

	"github.com/pithecene-io/brine/journal"
)

// StrictPolicy persists every record immediately, one sink write per
// record. No buffering, no data at risk; the slowest but simplest
// policy.
type StrictPolicy struct {
	sink  Sink
	stats *statsRecorder
}

// NewStrictPolicy creates a write-through policy.
func NewStrictPolicy(sink Sink) *StrictPolicy {
	return &StrictPolicy{
		sink:  sink,
		stats: newStatsRecorder(),
	}
}

// Ingest writes the record straight to the sink.
func (p *StrictPolicy) Ingest(ctx context.Context, record *journal.Record) error {
	p.stats.incTotalRecords()
	if err := p.sink.WriteRecords(ctx, []*journal.Record{record}); err != nil {
		return err
	}
	p.stats.incRecordsPersisted(1)
	return nil
}

// Flush is a no-op; nothing buffers.
func (p *StrictPolicy) Flush(_ context.Context) error {
	p.stats.incFlush()
	return nil
}

// Close closes the sink.
func (p *StrictPolicy) Close() error {
	return p.sink.Close()
}

// Stats returns policy statistics.
func (p *StrictPolicy) Stats() Stats {
	return p.stats.snapshot()
}

// Verify StrictPolicy implements Policy.
var _ Policy = (*StrictPolicy)(nil)
