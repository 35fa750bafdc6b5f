package codec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/pithecene-io/brine/future"
	"github.com/pithecene-io/brine/log"
	"github.com/pithecene-io/brine/metrics"
	"github.com/pithecene-io/brine/types"
)

// producer holds the per-stream dehydration state: the chunk-id counter,
// the pending set, and the outgoing chunk stream. Every stream owns its
// own producer; there is no global state.
type producer struct {
	opts ProduceOptions

	out  *future.Stream
	ctrl *future.Controller

	// ctx is cancelled when the outgoing stream is cancelled or the
	// caller's context ends. Leaf drivers race their user work against it.
	ctx context.Context

	logger  *log.Logger
	metrics *metrics.Collector

	mu       sync.Mutex
	nextID   int64
	pending  map[int64]struct{}
	rootDone bool
}

// allocate assigns the next chunk-id and inserts it into the pending set.
// Ids are strictly increasing from 0 and never reused.
func (p *producer) allocate() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextID
	p.nextID++
	p.pending[id] = struct{}{}
	return id
}

// finish removes id from the pending set and closes the outgoing stream
// when no work remains. Every allocate is matched by exactly one finish,
// including error and cancellation paths.
func (p *producer) finish(id int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.pending, id)
	p.maybeCloseLocked()
}

// maybeCloseLocked closes the outgoing stream once the root dehydration
// has completed and the pending set is empty. Caller must hold p.mu.
func (p *producer) maybeCloseLocked() {
	if p.rootDone && len(p.pending) == 0 {
		p.ctrl.Close()
	}
}

// emit publishes a chunk on the outgoing stream in event order.
func (p *producer) emit(chunk *types.Chunk) {
	p.metrics.IncChunkEmitted()
	p.ctrl.Enqueue(chunk)
}

// overDepth reports whether a value at path exceeds the configured cap.
func (p *producer) overDepth(path types.Path) bool {
	return p.opts.MaxDepth > 0 && path.Depth() > p.opts.MaxDepth
}

// observe reports a leaf error to the error observer, if any.
func (p *producer) observe(err error, path types.Path) {
	if p.logger != nil {
		p.logger.Error("deferred leaf failed", map[string]any{
			"path":  path.String(),
			"error": err.Error(),
		})
	}
	if p.opts.OnError != nil {
		p.opts.OnError(err, path)
	}
}

// formatError maps a leaf error to its wire payload.
func (p *producer) formatError(err error, path types.Path) any {
	if p.opts.FormatError != nil {
		return p.opts.FormatError(err, path)
	}
	return map[string]any{"message": err.Error()}
}

// dehydrate replaces deferred leaves in value with placeholders plus
// chunk descriptors. Recursion into non-deferred container entries is
// one level shallow: deeper deferred leaves are discovered when their
// enclosing leaf resolves and its value passes through dehydrate again.
//
// The returned start functions launch the background drivers that
// publish each leaf's resolutions as chunks. Callers must emit the
// enclosing line before running them, so the receiver learns about a
// chunk-id before any of its chunks.
//
// The only synchronous failure is an over-depth sequence entry found
// during container dehydration; all other depth violations are injected
// into the affected leaf asynchronously.
func (p *producer) dehydrate(value any, path types.Path) (*types.Dehydrated, []func(), error) {
	switch v := value.(type) {
	case *future.Future:
		fut := v
		if p.overDepth(path) {
			fut = future.Rejected(&DepthError{Path: path, Limit: p.opts.MaxDepth})
		}
		id, start := p.deferPromise(fut, path)
		return &types.Dehydrated{
			Payload: types.Placeholder{},
			Refs:    []types.Descriptor{{Key: types.RootKey(), Kind: types.KindPromise, ID: id}},
		}, []func(){start}, nil

	case future.Sequence:
		id, start := p.deferSequence(v, path)
		return &types.Dehydrated{
			Payload: types.Placeholder{},
			Refs:    []types.Descriptor{{Key: types.RootKey(), Kind: types.KindSequence, ID: id}},
		}, []func(){start}, nil

	case map[string]any:
		copied := make(map[string]any, len(v))
		var refs []types.Descriptor
		var starts []func()

		for _, k := range sortedKeys(v) {
			entry := v[k]
			childPath := path.Child(types.Field(k))

			switch leaf := entry.(type) {
			case *future.Future:
				fut := leaf
				if p.overDepth(childPath) {
					fut = future.Rejected(&DepthError{Path: childPath, Limit: p.opts.MaxDepth})
				}
				id, start := p.deferPromise(fut, childPath)
				copied[k] = types.Placeholder{}
				refs = append(refs, types.Descriptor{Key: types.Field(k), Kind: types.KindPromise, ID: id})
				starts = append(starts, start)

			case future.Sequence:
				if p.overDepth(childPath) {
					return nil, nil, &DepthError{Path: childPath, Limit: p.opts.MaxDepth}
				}
				id, start := p.deferSequence(leaf, childPath)
				copied[k] = types.Placeholder{}
				refs = append(refs, types.Descriptor{Key: types.Field(k), Kind: types.KindSequence, ID: id})
				starts = append(starts, start)

			default:
				copied[k] = entry
			}
		}
		return &types.Dehydrated{Payload: copied, Refs: refs}, starts, nil

	case []any:
		copied := make([]any, len(v))
		var refs []types.Descriptor
		var starts []func()

		for i, entry := range v {
			childPath := path.Child(types.Index(i))

			switch leaf := entry.(type) {
			case *future.Future:
				fut := leaf
				if p.overDepth(childPath) {
					fut = future.Rejected(&DepthError{Path: childPath, Limit: p.opts.MaxDepth})
				}
				id, start := p.deferPromise(fut, childPath)
				copied[i] = types.Placeholder{}
				refs = append(refs, types.Descriptor{Key: types.Index(i), Kind: types.KindPromise, ID: id})
				starts = append(starts, start)

			case future.Sequence:
				if p.overDepth(childPath) {
					return nil, nil, &DepthError{Path: childPath, Limit: p.opts.MaxDepth}
				}
				id, start := p.deferSequence(leaf, childPath)
				copied[i] = types.Placeholder{}
				refs = append(refs, types.Descriptor{Key: types.Index(i), Kind: types.KindSequence, ID: id})
				starts = append(starts, start)

			default:
				copied[i] = entry
			}
		}
		return &types.Dehydrated{Payload: copied, Refs: refs}, starts, nil

	default:
		return &types.Dehydrated{Payload: value}, nil, nil
	}
}

// deferPromise allocates a chunk-id for a promise leaf and returns the
// start function for its driver. The driver races the user future
// against stream cancellation; on cancellation the future's eventual
// result is swallowed.
func (p *producer) deferPromise(fut *future.Future, path types.Path) (int64, func()) {
	id := p.allocate()

	start := func() {
		go func() {
			defer p.finish(id)

			select {
			case <-fut.Done():
			case <-p.ctx.Done():
				return
			}

			value, err := fut.Result()
			if err != nil {
				p.observe(err, path)
				p.emit(&types.Chunk{
					ID:         id,
					Status:     types.PromiseRejected,
					Payload:    p.formatError(err, path),
					HasPayload: true,
				})
				return
			}

			d, starts, derr := p.dehydrate(value, path)
			if derr != nil {
				p.observe(derr, path)
				p.emit(&types.Chunk{
					ID:         id,
					Status:     types.PromiseRejected,
					Payload:    p.formatError(derr, path),
					HasPayload: true,
				})
				return
			}

			p.emit(&types.Chunk{ID: id, Status: types.PromiseFulfilled, Payload: d, HasPayload: true})
			for _, s := range starts {
				s()
			}
		}()
	}
	return id, start
}

// deferSequence allocates a chunk-id for a sequence leaf and returns the
// start function for its driver. The driver iterates the sequence until
// completion, error, or stream cancellation, emitting a value chunk per
// item and exactly one terminal chunk unless cancelled.
func (p *producer) deferSequence(seq future.Sequence, path types.Path) (int64, func()) {
	id := p.allocate()

	start := func() {
		go func() {
			defer p.finish(id)
			defer func() {
				if r := recover(); r != nil {
					err := fmt.Errorf("sequence driver panic: %v", r)
					p.observe(err, path)
					p.emit(&types.Chunk{
						ID:         id,
						Status:     types.SequenceError,
						Payload:    p.formatError(err, path),
						HasPayload: true,
					})
				}
			}()

			if p.overDepth(path) {
				err := &DepthError{Path: path, Limit: p.opts.MaxDepth}
				p.observe(err, path)
				p.emit(&types.Chunk{
					ID:         id,
					Status:     types.SequenceError,
					Payload:    p.formatError(err, path),
					HasPayload: true,
				})
				return
			}

			for {
				value, err := seq.Next(p.ctx)
				switch {
				case err == nil:
					d, starts, derr := p.dehydrate(value, path)
					if derr != nil {
						p.observe(derr, path)
						p.emit(&types.Chunk{
							ID:         id,
							Status:     types.SequenceError,
							Payload:    p.formatError(derr, path),
							HasPayload: true,
						})
						return
					}
					p.emit(&types.Chunk{ID: id, Status: types.SequenceValue, Payload: d, HasPayload: true})
					for _, s := range starts {
						s()
					}

				case errors.Is(err, future.ErrDone):
					p.emit(&types.Chunk{ID: id, Status: types.SequenceDone})
					return

				case p.ctx.Err() != nil:
					releaseSequence(seq)
					return

				default:
					p.observe(err, path)
					p.emit(&types.Chunk{
						ID:         id,
						Status:     types.SequenceError,
						Payload:    p.formatError(err, path),
						HasPayload: true,
					})
					return
				}
			}
		}()
	}
	return id, start
}

// releaseSequence performs the sequence's cleanup when the producer
// abandons it mid-iteration.
func releaseSequence(seq future.Sequence) {
	switch s := seq.(type) {
	case interface{ Cancel() }:
		s.Cancel()
	case io.Closer:
		_ = s.Close()
	}
}

// sortedKeys returns the map keys in sorted order so head payloads and
// descriptor lists are byte-stable across runs.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
