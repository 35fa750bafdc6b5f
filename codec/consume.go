package codec

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/pithecene-io/brine/future"
	"github.com/pithecene-io/brine/log"
	"github.com/pithecene-io/brine/metrics"
	"github.com/pithecene-io/brine/types"
	"github.com/pithecene-io/brine/wire"
)

// ConsumeOptions configures a consumed stream.
type ConsumeOptions struct {
	// From is the byte source carrying the stream.
	From io.Reader

	// Deserialize, if set, transforms each decoded line before it is
	// interpreted. The inverse hook of ProduceOptions.Serialize.
	Deserialize func(v any) any

	// ParseError maps a wire error payload back to an error. Defaults to
	// wrapping the raw payload in a *RemoteError.
	ParseError func(payload any) error

	// OnError observes protocol and transport errors.
	OnError func(err error)

	// Logger is an optional logger for consumer observability.
	Logger *log.Logger

	// Metrics is an optional per-stream counter collector.
	Metrics *metrics.Collector
}

// Consumer rehydrates a produced stream. The head future resolves with
// the reconstructed top-level value once the first line is processed;
// deferred leaves inside it resolve as their chunks arrive.
type Consumer struct {
	opts    ConsumeOptions
	head    *future.Future
	demux   *demux
	logger  *log.Logger
	metrics *metrics.Collector

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// Consume starts reading opts.From and returns the consumer handle. The
// read loop runs until end of input, a transport error, a protocol
// violation, or Close; any of these with outstanding chunk-ids triggers
// the interruption protocol.
func Consume(ctx context.Context, opts ConsumeOptions) (*Consumer, error) {
	if opts.From == nil {
		return nil, fmt.Errorf("consume: a source reader is required")
	}

	runCtx, cancel := context.WithCancel(ctx)
	c := &Consumer{
		opts:    opts,
		head:    future.New(),
		demux:   newDemux(),
		logger:  opts.Logger,
		metrics: opts.Metrics,
		ctx:     runCtx,
		cancel:  cancel,
	}

	go c.readLoop()
	return c, nil
}

// Head blocks until the head line has been processed and returns the
// reconstructed top-level value: a map[string]any or []any whose
// deferred leaves are *future.Future and future.Sequence values.
func (c *Consumer) Head(ctx context.Context) (any, error) {
	return c.head.Await(ctx)
}

// Close aborts consumption. Every unresolved future and unterminated
// sequence receives the interruption error. The underlying reader is the
// caller's to close; a blocked read ends at its next delivery.
func (c *Consumer) Close() error {
	c.interrupt(nil)
	return nil
}

// readLoop frames, decodes, and routes lines until the stream ends.
func (c *Consumer) readLoop() {
	lr := wire.NewLineReader(c.opts.From)
	first := true

	for {
		line, err := lr.ReadLine()
		if err != nil {
			if err == io.EOF {
				c.interrupt(nil)
			} else {
				c.interrupt(err)
			}
			return
		}
		if c.ctx.Err() != nil {
			// Closed while the read was blocked.
			return
		}
		c.metrics.IncLineRead()

		value, err := wire.DecodeLine(line)
		if err != nil {
			c.metrics.IncDecodeError()
			perr := &ProtocolError{Msg: "malformed line", Err: err}
			c.observe(perr)
			c.interrupt(perr)
			return
		}
		if c.opts.Deserialize != nil {
			value = c.opts.Deserialize(value)
		}

		if first {
			first = false
			head, herr := c.hydrateHead(value)
			if herr != nil {
				c.metrics.IncDecodeError()
				c.observe(herr)
				c.interrupt(herr)
				return
			}
			c.head.Resolve(head)
			continue
		}

		chunk, cerr := types.ParseChunk(value)
		if cerr != nil {
			c.metrics.IncDecodeError()
			perr := &ProtocolError{Msg: "malformed chunk", Err: cerr}
			c.observe(perr)
			c.interrupt(perr)
			return
		}
		c.metrics.IncChunkObserved()

		// Routing a chunk for an unreferenced id blocks here until the
		// reader catches up. Deliberate flow control: the writer side is
		// serialized rather than buffering unrouted chunks.
		if err := c.demux.route(c.ctx, chunk); err != nil {
			return
		}
	}
}

// hydrateHead rehydrates each top-level entry of the head line.
func (c *Consumer) hydrateHead(value any) (any, error) {
	switch head := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(head))
		for k, raw := range head {
			d, err := types.ParseDehydrated(raw)
			if err != nil {
				return nil, &ProtocolError{Msg: fmt.Sprintf("head entry %q malformed", k), Err: err}
			}
			v, err := c.hydrate(d)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil

	case []any:
		out := make([]any, len(head))
		for i, raw := range head {
			d, err := types.ParseDehydrated(raw)
			if err != nil {
				return nil, &ProtocolError{Msg: fmt.Sprintf("head entry %d malformed", i), Err: err}
			}
			v, err := c.hydrate(d)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil

	default:
		return nil, &ProtocolError{Msg: fmt.Sprintf("head must be a mapping or array, got %T", value)}
	}
}

// interrupt runs the interruption protocol: reject the head if it has
// not been delivered, release parked routes, and deliver the sentinel to
// every live sub-stream. Idempotent.
func (c *Consumer) interrupt(cause error) {
	c.once.Do(func() {
		werr := &InterruptedError{Cause: cause}
		if cause != nil || c.demux.open() > 0 || !c.head.Settled() {
			c.metrics.IncInterruption()
			if c.logger != nil {
				c.logger.Warn("stream interrupted", map[string]any{
					"open_handles": c.demux.open(),
					"cause":        fmt.Sprint(cause),
				})
			}
		}
		c.head.Reject(werr)
		c.demux.interrupt(werr)
		c.cancel()
	})
}

// observe reports a consumer-side error to the observer, if any.
func (c *Consumer) observe(err error) {
	if c.logger != nil {
		c.logger.Error("consume failed", map[string]any{"error": err.Error()})
	}
	if c.opts.OnError != nil {
		c.opts.OnError(err)
	}
}

// parseError maps a wire error payload to an error.
func (c *Consumer) parseError(payload any) error {
	if c.opts.ParseError != nil {
		return c.opts.ParseError(payload)
	}
	return &RemoteError{Payload: payload}
}
