package codec

import (
	"context"
	"errors"

	"github.com/pithecene-io/brine/future"
)

// Materialize deep-resolves a rehydrated value: futures are awaited,
// sequences are drained into slices, and containers are walked
// recursively. Rejected futures and failed sequences are substituted
// with an {"$error": message} marker so a stream carrying leaf errors
// still materializes to a complete tree.
//
// Returns an error only when ctx ends before the tree settles.
func Materialize(ctx context.Context, value any) (any, error) {
	switch v := value.(type) {
	case *future.Future:
		resolved, err := v.Await(ctx)
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				return nil, err
			}
			return errorMarker(err), nil
		}
		return Materialize(ctx, resolved)

	case future.Sequence:
		var items []any
		for {
			item, err := v.Next(ctx)
			if err != nil {
				if errors.Is(err, future.ErrDone) {
					return items, nil
				}
				if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
					return nil, err
				}
				return append(items, errorMarker(err)), nil
			}
			resolved, merr := Materialize(ctx, item)
			if merr != nil {
				return nil, merr
			}
			items = append(items, resolved)
		}

	case map[string]any:
		out := make(map[string]any, len(v))
		for k, entry := range v {
			resolved, err := Materialize(ctx, entry)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil

	case []any:
		out := make([]any, len(v))
		for i, entry := range v {
			resolved, err := Materialize(ctx, entry)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil

	default:
		return value, nil
	}
}

// errorMarker renders a leaf error as a materialized value.
func errorMarker(err error) map[string]any {
	return map[string]any{"$error": err.Error()}
}
