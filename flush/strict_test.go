package flush

import (
	"context"
	"testing"
)

func TestStrictPolicy_WriteThrough(t *testing.T) {
	sink := &recordingSink{}
	p := NewStrictPolicy(sink)

	ctx := context.Background()
	for seq := int64(0); seq < 3; seq++ {
		if err := p.Ingest(ctx, record(seq)); err != nil {
			t.Fatalf("Ingest failed: %v", err)
		}
	}

	if sink.batchCount() != 3 {
		t.Errorf("batches = %d, want 3 (one write per record)", sink.batchCount())
	}

	stats := p.Stats()
	if stats.TotalRecords != 3 || stats.RecordsPersisted != 3 {
		t.Errorf("stats = %+v, want 3/3", stats)
	}
}

func TestStrictPolicy_PropagatesSinkError(t *testing.T) {
	sink := &recordingSink{failNext: true}
	p := NewStrictPolicy(sink)

	if err := p.Ingest(context.Background(), record(0)); err == nil {
		t.Fatal("Ingest succeeded, want sink error")
	}

	stats := p.Stats()
	if stats.RecordsPersisted != 0 {
		t.Errorf("RecordsPersisted = %d, want 0", stats.RecordsPersisted)
	}
}

func TestStrictPolicy_Close(t *testing.T) {
	sink := &recordingSink{}
	p := NewStrictPolicy(sink)

	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !sink.closed {
		t.Error("sink not closed")
	}
}
