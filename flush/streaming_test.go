package flush

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pithecene-io/brine/journal"
)

// recordingSink captures WriteRecords batches. failNext forces the next
// write to fail.
type recordingSink struct {
	mu       sync.Mutex
	batches  [][]*journal.Record
	failNext bool
	closed   bool
}

func (s *recordingSink) WriteRecords(_ context.Context, records []*journal.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext {
		s.failNext = false
		return errors.New("sink unavailable")
	}
	batch := make([]*journal.Record, len(records))
	copy(batch, records)
	s.batches = append(s.batches, batch)
	return nil
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordingSink) batchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func (s *recordingSink) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func record(seq int64) *journal.Record {
	return &journal.Record{Kind: journal.RecordKind, Seq: seq, Line: "[0,0]"}
}

func TestStreamingPolicy_RequiresTrigger(t *testing.T) {
	if _, err := NewStreamingPolicy(&recordingSink{}, StreamingConfig{}); !errors.Is(err, ErrStreamingInvalidConfig) {
		t.Errorf("NewStreamingPolicy = %v, want ErrStreamingInvalidConfig", err)
	}
}

func TestStreamingPolicy_CountTrigger(t *testing.T) {
	sink := &recordingSink{}
	p, err := NewStreamingPolicy(sink, StreamingConfig{FlushCount: 2})
	if err != nil {
		t.Fatalf("NewStreamingPolicy failed: %v", err)
	}
	defer func() { _ = p.Close() }()

	ctx := context.Background()
	for seq := int64(0); seq < 3; seq++ {
		if err := p.Ingest(ctx, record(seq)); err != nil {
			t.Fatalf("Ingest failed: %v", err)
		}
	}

	if sink.batchCount() != 1 {
		t.Errorf("batches = %d, want 1 (count trigger at 2)", sink.batchCount())
	}

	if err := p.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if sink.total() != 3 {
		t.Errorf("persisted = %d, want 3", sink.total())
	}

	stats := p.Stats()
	if stats.TotalRecords != 3 {
		t.Errorf("TotalRecords = %d, want 3", stats.TotalRecords)
	}
	if stats.RecordsPersisted != 3 {
		t.Errorf("RecordsPersisted = %d, want 3", stats.RecordsPersisted)
	}

	triggers := p.FlushTriggerStats()
	if triggers[FlushTriggerCount] != 1 {
		t.Errorf("count triggers = %d, want 1", triggers[FlushTriggerCount])
	}
	if triggers[FlushTriggerTermination] != 1 {
		t.Errorf("termination triggers = %d, want 1", triggers[FlushTriggerTermination])
	}
}

func TestStreamingPolicy_FailureRestoresBuffer(t *testing.T) {
	sink := &recordingSink{failNext: true}
	p, err := NewStreamingPolicy(sink, StreamingConfig{FlushCount: 1})
	if err != nil {
		t.Fatalf("NewStreamingPolicy failed: %v", err)
	}
	defer func() { _ = p.Close() }()

	ctx := context.Background()
	if err := p.Ingest(ctx, record(0)); err == nil {
		t.Fatal("Ingest succeeded, want flush error")
	}

	stats := p.Stats()
	if stats.Errors != 1 {
		t.Errorf("Errors = %d, want 1", stats.Errors)
	}
	if stats.RecordsPersisted != 0 {
		t.Errorf("RecordsPersisted = %d, want 0", stats.RecordsPersisted)
	}

	// Retry succeeds and persists the restored record.
	if err := p.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if sink.total() != 1 {
		t.Errorf("persisted = %d, want 1 after retry", sink.total())
	}
}

func TestStreamingPolicy_IntervalTrigger(t *testing.T) {
	sink := &recordingSink{}
	p, err := NewStreamingPolicy(sink, StreamingConfig{FlushInterval: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewStreamingPolicy failed: %v", err)
	}
	defer func() { _ = p.Close() }()

	if err := p.Ingest(context.Background(), record(0)); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for sink.total() != 1 {
		select {
		case <-deadline:
			t.Fatal("interval flush never fired")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestStreamingPolicy_CloseFlushesAndClosesSink(t *testing.T) {
	sink := &recordingSink{}
	p, err := NewStreamingPolicy(sink, StreamingConfig{FlushCount: 100})
	if err != nil {
		t.Fatalf("NewStreamingPolicy failed: %v", err)
	}

	if err := p.Ingest(context.Background(), record(0)); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if sink.total() != 1 {
		t.Errorf("persisted = %d, want 1 (flush on close)", sink.total())
	}
	if !sink.closed {
		t.Error("sink not closed")
	}
}

func TestStreamingPolicy_PreservesOrder(t *testing.T) {
	sink := &recordingSink{}
	p, err := NewStreamingPolicy(sink, StreamingConfig{FlushCount: 2})
	if err != nil {
		t.Fatalf("NewStreamingPolicy failed: %v", err)
	}
	defer func() { _ = p.Close() }()

	ctx := context.Background()
	for seq := int64(0); seq < 6; seq++ {
		if err := p.Ingest(ctx, record(seq)); err != nil {
			t.Fatalf("Ingest failed: %v", err)
		}
	}
	if err := p.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	var seqs []int64
	sink.mu.Lock()
	for _, batch := range sink.batches {
		for _, r := range batch {
			seqs = append(seqs, r.Seq)
		}
	}
	sink.mu.Unlock()

	for i, seq := range seqs {
		if seq != int64(i) {
			t.Fatalf("seqs = %v, want ascending from 0", seqs)
		}
	}
}
