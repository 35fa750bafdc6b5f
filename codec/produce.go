package codec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/pithecene-io/brine/future"
	"github.com/pithecene-io/brine/log"
	"github.com/pithecene-io/brine/metrics"
	"github.com/pithecene-io/brine/types"
	"github.com/pithecene-io/brine/wire"
)

// ProduceOptions configures a produced stream.
type ProduceOptions struct {
	// Data is the root value: a map[string]any or []any whose entries may
	// contain *future.Future and future.Sequence leaves at any depth.
	Data any

	// Serialize, if set, transforms the head and each chunk before JSON
	// encoding. A hook for supertype-aware transforms.
	Serialize func(v any) any

	// OnError observes every deferred-leaf error with its path. Leaf
	// errors never terminate the stream; they terminate only their leaf.
	OnError func(err error, path types.Path)

	// FormatError maps a leaf error to its wire payload. Defaults to
	// {"message": err.Error()}.
	FormatError func(err error, path types.Path) any

	// MaxDepth caps the path length of deferred leaves. Zero disables
	// the check.
	MaxDepth int

	// Logger is an optional logger for producer observability.
	Logger *log.Logger

	// Metrics is an optional per-stream counter collector.
	Metrics *metrics.Collector
}

// Produce dehydrates opts.Data into a byte stream: one head line followed
// by chunk lines as deferred leaves resolve, each a JSON value terminated
// by a newline. The stream closes once every allocated chunk-id has
// emitted its terminal chunk.
//
// Closing the returned reader cancels the stream: in-flight leaf work is
// abandoned and pending futures' results are swallowed. Cancelling ctx
// has the same effect.
//
// The only synchronous failure after argument validation is an
// over-depth sequence entry inside a container of the root value.
func Produce(ctx context.Context, opts ProduceOptions) (io.ReadCloser, error) {
	switch opts.Data.(type) {
	case map[string]any, []any:
	default:
		return nil, fmt.Errorf("produce: data must be a mapping or array, got %T", opts.Data)
	}

	out, ctrl := future.NewStream()
	prodCtx, cancel := context.WithCancel(ctx)

	p := &producer{
		opts:    opts,
		out:     out,
		ctrl:    ctrl,
		ctx:     prodCtx,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		pending: make(map[int64]struct{}),
	}

	// Propagate reader-side cancellation to the leaf drivers.
	go func() {
		select {
		case <-out.Cancelled().Done():
			cancel()
		case <-prodCtx.Done():
		}
	}()

	head, starts, err := p.dehydrateRoot(opts.Data)
	if err != nil {
		cancel()
		return nil, err
	}

	for _, start := range starts {
		start()
	}

	// Root dehydration is complete; the stream may now close as soon as
	// the pending set drains (immediately, for a tree with no leaves).
	p.mu.Lock()
	p.rootDone = true
	p.maybeCloseLocked()
	p.mu.Unlock()

	pr, pw := io.Pipe()
	go p.writeLoop(head, pw, cancel)

	return &produceReader{pr: pr, out: out, cancel: cancel}, nil
}

// dehydrateRoot dehydrates each top-level entry of the root mapping or
// array. The head retains the container shape with dehydrated entries.
func (p *producer) dehydrateRoot(data any) (any, []func(), error) {
	var starts []func()

	switch root := data.(type) {
	case map[string]any:
		head := make(map[string]any, len(root))
		for _, k := range sortedKeys(root) {
			d, s, err := p.dehydrate(root[k], types.Path{types.Field(k)})
			if err != nil {
				return nil, nil, err
			}
			head[k] = d
			starts = append(starts, s...)
		}
		return head, starts, nil

	case []any:
		head := make([]any, len(root))
		for i, entry := range root {
			d, s, err := p.dehydrate(entry, types.Path{types.Index(i)})
			if err != nil {
				return nil, nil, err
			}
			head[i] = d
			starts = append(starts, s...)
		}
		return head, starts, nil

	default:
		return nil, nil, fmt.Errorf("produce: data must be a mapping or array, got %T", data)
	}
}

// writeLoop serializes the head and then every chunk, in emission order,
// to the pipe. A write failure means the reader has gone away; the
// outgoing stream is cancelled so leaf drivers abandon their work.
func (p *producer) writeLoop(head any, pw *io.PipeWriter, cancel context.CancelFunc) {
	defer cancel()

	writeValue := func(v any) error {
		if p.opts.Serialize != nil {
			v = p.opts.Serialize(v)
		}
		line, err := wire.EncodeLine(v)
		if err != nil {
			return err
		}
		if _, err := pw.Write(line); err != nil {
			return err
		}
		p.metrics.IncLineWritten()
		return nil
	}

	if err := writeValue(head); err != nil {
		p.out.Cancel()
		_ = pw.CloseWithError(err)
		return
	}

	for {
		item, err := p.out.Next(context.Background())
		if err != nil {
			if errors.Is(err, future.ErrDone) {
				_ = pw.Close()
			} else {
				_ = pw.CloseWithError(err)
			}
			return
		}

		if err := writeValue(item); err != nil {
			p.out.Cancel()
			_ = pw.CloseWithError(err)
			return
		}
	}
}

// produceReader is the byte stream handed to the caller. Close cancels
// the underlying chunk stream in addition to releasing the pipe.
type produceReader struct {
	pr     *io.PipeReader
	out    *future.Stream
	cancel context.CancelFunc
	once   sync.Once
}

func (r *produceReader) Read(p []byte) (int, error) {
	return r.pr.Read(p)
}

func (r *produceReader) Close() error {
	r.once.Do(func() {
		r.out.Cancel()
		r.cancel()
	})
	return r.pr.Close()
}
