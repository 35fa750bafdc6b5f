package codec

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/pithecene-io/brine/future"
	"github.com/pithecene-io/brine/types"
)

// roundtrip produces opts and consumes the resulting bytes end to end.
func roundtrip(t *testing.T, produceOpts ProduceOptions, consumeOpts ConsumeOptions) *Consumer {
	t.Helper()

	r, err := Produce(context.Background(), produceOpts)
	if err != nil {
		t.Fatalf("Produce failed: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })

	consumeOpts.From = r
	c, err := Consume(context.Background(), consumeOpts)
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func headMap(t *testing.T, c *Consumer) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	head, err := c.Head(ctx)
	if err != nil {
		t.Fatalf("Head failed: %v", err)
	}
	m, ok := head.(map[string]any)
	if !ok {
		t.Fatalf("head type = %T, want map", head)
	}
	return m
}

func awaitFuture(t *testing.T, v any) (any, error) {
	t.Helper()
	fut, ok := v.(*future.Future)
	if !ok {
		t.Fatalf("value type = %T, want *future.Future", v)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return fut.Await(ctx)
}

func drainSequence(t *testing.T, v any) ([]any, error) {
	t.Helper()
	seq, ok := v.(future.Sequence)
	if !ok {
		t.Fatalf("value type = %T, want future.Sequence", v)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var items []any
	for {
		item, err := seq.Next(ctx)
		if err != nil {
			if errors.Is(err, future.ErrDone) {
				return items, nil
			}
			return items, err
		}
		items = append(items, item)
	}
}

func TestRoundtrip_PlainTree(t *testing.T) {
	data := map[string]any{
		"greeting": "hi",
		"nested":   map[string]any{"n": float64(1), "list": []any{true, nil}},
	}
	c := roundtrip(t, ProduceOptions{Data: data}, ConsumeOptions{})

	head := headMap(t, c)
	if !reflect.DeepEqual(head, data) {
		t.Errorf("head = %#v, want %#v", head, data)
	}
}

func TestRoundtrip_SingleFuture(t *testing.T) {
	c := roundtrip(t, ProduceOptions{
		Data: map[string]any{"x": future.Resolved(7)},
	}, ConsumeOptions{})

	head := headMap(t, c)
	v, err := awaitFuture(t, head["x"])
	if err != nil {
		t.Fatalf("x rejected: %v", err)
	}
	if v != float64(7) {
		t.Errorf("x = %v, want 7", v)
	}
}

func TestRoundtrip_FutureRejection(t *testing.T) {
	c := roundtrip(t, ProduceOptions{
		Data: map[string]any{"x": future.Rejected(errors.New("boom"))},
		FormatError: func(err error, _ types.Path) any {
			return map[string]any{"msg": err.Error()}
		},
	}, ConsumeOptions{})

	head := headMap(t, c)
	_, err := awaitFuture(t, head["x"])
	if err == nil {
		t.Fatal("x resolved, want rejection")
	}

	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("err type = %T, want *RemoteError", err)
	}
	payload, ok := remote.Payload.(map[string]any)
	if !ok || payload["msg"] != "boom" {
		t.Errorf("Payload = %#v, want {msg: boom}", remote.Payload)
	}
}

func TestRoundtrip_ParseErrorHook(t *testing.T) {
	boom := errors.New("decoded boom")
	c := roundtrip(t, ProduceOptions{
		Data: map[string]any{"x": future.Rejected(errors.New("boom"))},
	}, ConsumeOptions{
		ParseError: func(payload any) error { return boom },
	})

	head := headMap(t, c)
	_, err := awaitFuture(t, head["x"])
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want hook error", err)
	}
}

func TestRoundtrip_Sequence(t *testing.T) {
	c := roundtrip(t, ProduceOptions{
		Data: map[string]any{"xs": sequenceOf(1, 2, 3)},
	}, ConsumeOptions{})

	head := headMap(t, c)
	items, err := drainSequence(t, head["xs"])
	if err != nil {
		t.Fatalf("sequence failed: %v", err)
	}
	want := []any{float64(1), float64(2), float64(3)}
	if !reflect.DeepEqual(items, want) {
		t.Errorf("items = %v, want %v", items, want)
	}
}

func TestRoundtrip_SequenceError(t *testing.T) {
	c := roundtrip(t, ProduceOptions{
		Data: map[string]any{"xs": failingSequence(errors.New("mid fail"), 1, 2)},
		FormatError: func(err error, _ types.Path) any {
			return err.Error()
		},
	}, ConsumeOptions{})

	head := headMap(t, c)
	items, err := drainSequence(t, head["xs"])
	if err == nil {
		t.Fatal("sequence completed, want error")
	}
	if len(items) != 2 {
		t.Errorf("items = %v, want two values before the error", items)
	}

	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("err type = %T, want *RemoteError", err)
	}
	if remote.Payload != "mid fail" {
		t.Errorf("Payload = %v, want mid fail", remote.Payload)
	}
}

func TestRoundtrip_TwoFuturesReverseCompletion(t *testing.T) {
	a := future.New()
	b := future.New()

	c := roundtrip(t, ProduceOptions{
		Data: map[string]any{"a": a, "b": b},
	}, ConsumeOptions{})

	head := headMap(t, c)

	b.Resolve(2)
	bv, err := awaitFuture(t, head["b"])
	if err != nil {
		t.Fatalf("b rejected: %v", err)
	}
	if bv != float64(2) {
		t.Errorf("b = %v, want 2", bv)
	}

	a.Resolve(1)
	av, err := awaitFuture(t, head["a"])
	if err != nil {
		t.Fatalf("a rejected: %v", err)
	}
	if av != float64(1) {
		t.Errorf("a = %v, want 1", av)
	}
}

func TestRoundtrip_NestedFuture(t *testing.T) {
	c := roundtrip(t, ProduceOptions{
		Data: map[string]any{
			"x": future.Resolved(map[string]any{"inner": future.Resolved(42)}),
		},
	}, ConsumeOptions{})

	head := headMap(t, c)
	outer, err := awaitFuture(t, head["x"])
	if err != nil {
		t.Fatalf("x rejected: %v", err)
	}

	outerMap, ok := outer.(map[string]any)
	if !ok {
		t.Fatalf("outer type = %T, want map", outer)
	}
	inner, err := awaitFuture(t, outerMap["inner"])
	if err != nil {
		t.Fatalf("inner rejected: %v", err)
	}
	if inner != float64(42) {
		t.Errorf("inner = %v, want 42", inner)
	}
}

func TestRoundtrip_SequenceOfFutures(t *testing.T) {
	c := roundtrip(t, ProduceOptions{
		Data: map[string]any{
			"xs": sequenceOf(
				map[string]any{"v": future.Resolved("first")},
				map[string]any{"v": future.Resolved("second")},
			),
		},
	}, ConsumeOptions{})

	head := headMap(t, c)
	items, err := drainSequence(t, head["xs"])
	if err != nil {
		t.Fatalf("sequence failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}

	for i, want := range []string{"first", "second"} {
		m, ok := items[i].(map[string]any)
		if !ok {
			t.Fatalf("item %d type = %T, want map", i, items[i])
		}
		v, err := awaitFuture(t, m["v"])
		if err != nil {
			t.Fatalf("item %d future rejected: %v", i, err)
		}
		if v != want {
			t.Errorf("item %d = %v, want %q", i, v, want)
		}
	}
}

func TestRoundtrip_ArrayRoot(t *testing.T) {
	c := roundtrip(t, ProduceOptions{
		Data: []any{"plain", future.Resolved(true)},
	}, ConsumeOptions{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	head, err := c.Head(ctx)
	if err != nil {
		t.Fatalf("Head failed: %v", err)
	}

	arr, ok := head.([]any)
	if !ok {
		t.Fatalf("head type = %T, want array", head)
	}
	if arr[0] != "plain" {
		t.Errorf("arr[0] = %v, want plain", arr[0])
	}
	v, err := awaitFuture(t, arr[1])
	if err != nil {
		t.Fatalf("arr[1] rejected: %v", err)
	}
	if v != true {
		t.Errorf("arr[1] = %v, want true", v)
	}
}

func TestRoundtrip_ControllersReleased(t *testing.T) {
	c := roundtrip(t, ProduceOptions{
		Data: map[string]any{
			"x":  future.Resolved(1),
			"xs": sequenceOf("a", "b"),
		},
	}, ConsumeOptions{})

	head := headMap(t, c)
	if _, err := awaitFuture(t, head["x"]); err != nil {
		t.Fatalf("x rejected: %v", err)
	}
	if _, err := drainSequence(t, head["xs"]); err != nil {
		t.Fatalf("sequence failed: %v", err)
	}

	deadline := time.After(time.Second)
	for c.demux.open() != 0 {
		select {
		case <-deadline:
			t.Fatalf("open controllers = %d, want 0", c.demux.open())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestRoundtrip_SerializeDeserializeHooks(t *testing.T) {
	c := roundtrip(t, ProduceOptions{
		Data:      map[string]any{"x": future.Resolved("payload")},
		Serialize: func(v any) any { return v },
	}, ConsumeOptions{
		Deserialize: func(v any) any { return v },
	})

	head := headMap(t, c)
	v, err := awaitFuture(t, head["x"])
	if err != nil {
		t.Fatalf("x rejected: %v", err)
	}
	if v != "payload" {
		t.Errorf("x = %v, want payload", v)
	}
}

func TestRoundtrip_InterruptionMidFlight(t *testing.T) {
	// A stream that references a promise and a sequence but ends before
	// either terminates.
	input := "{\"x\":[[0],[null,0,0]],\"xs\":[[0],[null,1,1]]}\n" +
		"[1,1,[[\"first\"]]]\n"

	c, err := Consume(context.Background(), ConsumeOptions{From: strings.NewReader(input)})
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}

	head := headMap(t, c)

	seq := head["xs"].(future.Sequence)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first, err := seq.Next(ctx)
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if first != "first" {
		t.Errorf("first = %v, want first", first)
	}

	if _, err := seq.Next(ctx); !errors.Is(err, ErrInterrupted) {
		t.Errorf("Next after cut = %v, want ErrInterrupted", err)
	}

	if _, err := awaitFuture(t, head["x"]); !errors.Is(err, ErrInterrupted) {
		t.Errorf("x = %v, want ErrInterrupted", err)
	}
}

func TestRoundtrip_ConsumerCloseInterrupts(t *testing.T) {
	fut := future.New()
	c := roundtrip(t, ProduceOptions{
		Data: map[string]any{"x": fut},
	}, ConsumeOptions{})

	head := headMap(t, c)
	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := awaitFuture(t, head["x"]); !errors.Is(err, ErrInterrupted) {
		t.Errorf("x = %v, want ErrInterrupted after Close", err)
	}
}
