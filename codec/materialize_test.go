package codec

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/pithecene-io/brine/future"
	"github.com/pithecene-io/brine/types"
)

func TestMaterialize_FullTree(t *testing.T) {
	c := roundtrip(t, ProduceOptions{
		Data: map[string]any{
			"plain": "hi",
			"x":     future.Resolved(7),
			"xs":    sequenceOf(1, 2),
			"deep":  future.Resolved(map[string]any{"inner": future.Resolved(true)}),
		},
	}, ConsumeOptions{})

	head := headMap(t, c)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	materialized, err := Materialize(ctx, any(head))
	if err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}

	want := map[string]any{
		"plain": "hi",
		"x":     float64(7),
		"xs":    []any{float64(1), float64(2)},
		"deep":  map[string]any{"inner": true},
	}
	if !reflect.DeepEqual(materialized, want) {
		t.Errorf("materialized = %#v, want %#v", materialized, want)
	}
}

func TestMaterialize_ErrorMarkers(t *testing.T) {
	c := roundtrip(t, ProduceOptions{
		Data: map[string]any{
			"bad": future.Rejected(errors.New("boom")),
			"xs":  failingSequence(errors.New("mid"), 1),
		},
		FormatError: func(err error, _ types.Path) any { return err.Error() },
	}, ConsumeOptions{
		ParseError: func(payload any) error { return errors.New(payload.(string)) },
	})

	head := headMap(t, c)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	materialized, err := Materialize(ctx, any(head))
	if err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}

	m := materialized.(map[string]any)
	bad := m["bad"].(map[string]any)
	if bad["$error"] != "boom" {
		t.Errorf("bad = %v, want $error boom", bad)
	}

	xs := m["xs"].([]any)
	if len(xs) != 2 {
		t.Fatalf("xs = %v, want value plus error marker", xs)
	}
	marker := xs[1].(map[string]any)
	if marker["$error"] != "mid" {
		t.Errorf("marker = %v, want $error mid", marker)
	}
}

func TestMaterialize_ContextCancel(t *testing.T) {
	fut := future.New() // never resolves

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Materialize(ctx, fut); !errors.Is(err, context.Canceled) {
		t.Errorf("Materialize = %v, want context.Canceled", err)
	}
}
