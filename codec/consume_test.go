package codec

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pithecene-io/brine/future"
	"github.com/pithecene-io/brine/metrics"
)

func consumeString(t *testing.T, input string, opts ConsumeOptions) *Consumer {
	t.Helper()
	opts.From = strings.NewReader(input)
	c, err := Consume(context.Background(), opts)
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestConsume_PlainHead(t *testing.T) {
	c := consumeString(t, "{\"greeting\":[[\"hi\"]]}\n", ConsumeOptions{})

	head := headMap(t, c)
	if head["greeting"] != "hi" {
		t.Errorf("greeting = %v, want hi", head["greeting"])
	}
}

func TestConsume_RequiresSource(t *testing.T) {
	if _, err := Consume(context.Background(), ConsumeOptions{}); err == nil {
		t.Error("Consume accepted nil source")
	}
}

func TestConsume_MalformedHeadLine(t *testing.T) {
	var observed []error
	var mu sync.Mutex

	c := consumeString(t, "{not json\n", ConsumeOptions{
		OnError: func(err error) {
			mu.Lock()
			observed = append(observed, err)
			mu.Unlock()
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := c.Head(ctx)
	if !errors.Is(err, ErrInterrupted) {
		t.Fatalf("Head = %v, want ErrInterrupted", err)
	}
	if !errors.Is(err, ErrProtocol) {
		t.Errorf("Head = %v, want ErrProtocol in the chain", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(observed) != 1 {
		t.Errorf("observed %d errors, want 1", len(observed))
	}
}

func TestConsume_MalformedChunkLine(t *testing.T) {
	c := consumeString(t, "{\"x\":[[0],[null,0,0]]}\n\"not a chunk\"\n", ConsumeOptions{})

	head := headMap(t, c)
	_, err := awaitFuture(t, head["x"])
	if !errors.Is(err, ErrInterrupted) {
		t.Errorf("x = %v, want ErrInterrupted", err)
	}
}

func TestConsume_HeadNotContainer(t *testing.T) {
	c := consumeString(t, "42\n", ConsumeOptions{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := c.Head(ctx); !errors.Is(err, ErrProtocol) {
		t.Errorf("Head = %v, want ErrProtocol in the chain", err)
	}
}

func TestConsume_UnexpectedPromiseStatus(t *testing.T) {
	c := consumeString(t, "{\"x\":[[0],[null,0,0]]}\n[0,9,[[1]]]\n", ConsumeOptions{})

	head := headMap(t, c)
	_, err := awaitFuture(t, head["x"])
	if !errors.Is(err, ErrProtocol) {
		t.Errorf("x = %v, want ErrProtocol", err)
	}
}

func TestConsume_EmptyStreamInterruptsHead(t *testing.T) {
	c := consumeString(t, "", ConsumeOptions{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := c.Head(ctx); !errors.Is(err, ErrInterrupted) {
		t.Errorf("Head = %v, want ErrInterrupted", err)
	}
}

// A chunk whose id is only introduced by an earlier chunk's payload must
// park until the consumer hydrates that payload. The read loop blocks on
// the pending registration; iterating the outer sequence releases it.
func TestConsume_ChunkBeforeReferenceParks(t *testing.T) {
	input := "{\"xs\":[[0],[null,1,0]]}\n" +
		"[0,1,[[0],[null,0,1]]]\n" + // value introducing promise id 1
		"[1,0,[[5]]]\n" + // chunk for id 1, not yet referenced by the reader
		"[0,0]\n"

	c := consumeString(t, input, ConsumeOptions{})
	head := headMap(t, c)

	seq := head["xs"].(future.Sequence)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	item, err := seq.Next(ctx)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}

	inner, err := awaitFuture(t, item)
	if err != nil {
		t.Fatalf("inner rejected: %v", err)
	}
	if inner != float64(5) {
		t.Errorf("inner = %v, want 5", inner)
	}

	if _, err := seq.Next(ctx); !errors.Is(err, future.ErrDone) {
		t.Errorf("Next = %v, want ErrDone", err)
	}
}

func TestConsume_SequenceCancelDropsLaterChunks(t *testing.T) {
	input := "{\"xs\":[[0],[null,1,0]],\"x\":[[0],[null,0,1]]}\n" +
		"[0,1,[[1]]]\n" +
		"[0,1,[[2]]]\n" +
		"[0,0]\n" +
		"[1,0,[[\"after\"]]]\n"

	c := consumeString(t, input, ConsumeOptions{})
	head := headMap(t, c)

	seq := head["xs"].(*hydratedSequence)
	seq.Cancel()

	// The promise after the cancelled sequence still resolves: cancelled
	// sub-streams drop their chunks instead of stalling the read loop.
	v, err := awaitFuture(t, head["x"])
	if err != nil {
		t.Fatalf("x rejected: %v", err)
	}
	if v != "after" {
		t.Errorf("x = %v, want after", v)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := seq.Next(ctx); !errors.Is(err, future.ErrCancelled) {
		t.Errorf("Next after Cancel = %v, want ErrCancelled", err)
	}
}

func TestConsume_MetricsCollected(t *testing.T) {
	col := metrics.NewCollector("consumer", "s-1")
	c := consumeString(t, "{\"x\":[[0],[null,0,0]]}\n[0,0,[[1]]]\n", ConsumeOptions{Metrics: col})

	head := headMap(t, c)
	if _, err := awaitFuture(t, head["x"]); err != nil {
		t.Fatalf("x rejected: %v", err)
	}

	deadline := time.After(time.Second)
	for col.Snapshot().LinesRead != 2 {
		select {
		case <-deadline:
			t.Fatalf("LinesRead = %d, want 2", col.Snapshot().LinesRead)
		case <-time.After(5 * time.Millisecond):
		}
	}
	if got := col.Snapshot().ChunksObserved; got != 1 {
		t.Errorf("ChunksObserved = %d, want 1", got)
	}
}
