package codec

import (
	"context"
	"errors"
	"fmt"

	"github.com/pithecene-io/brine/future"
	"github.com/pithecene-io/brine/types"
)

// hydrate reverses dehydration: for each descriptor it materializes a
// future or a lazy sequence bound to the per-chunk-id sub-stream, then
// splices it into the payload at the descriptor's key.
func (c *Consumer) hydrate(d *types.Dehydrated) (any, error) {
	payload := d.Payload

	for _, ref := range d.Refs {
		sub := c.demux.register(ref.ID)

		var leaf any
		switch ref.Kind {
		case types.KindPromise:
			leaf = c.promiseLeaf(ref.ID, sub)
		case types.KindSequence:
			leaf = c.sequenceLeaf(ref.ID, sub)
		default:
			return nil, &ProtocolError{Msg: fmt.Sprintf("descriptor for chunk %d has unknown kind %d", ref.ID, ref.Kind)}
		}

		switch {
		case ref.Key.IsRoot():
			payload = leaf
		default:
			if i, ok := ref.Key.Index(); ok {
				arr, isArr := payload.([]any)
				if !isArr || i >= len(arr) {
					return nil, &ProtocolError{Msg: fmt.Sprintf("descriptor index %d does not address the payload", i)}
				}
				arr[i] = leaf
				continue
			}
			name, _ := ref.Key.Field()
			m, isMap := payload.(map[string]any)
			if !isMap {
				return nil, &ProtocolError{Msg: fmt.Sprintf("descriptor field %q does not address the payload", name)}
			}
			m[name] = leaf
		}
	}

	return payload, nil
}

// promiseLeaf materializes a future backed by a single read of the
// sub-stream for id. The read happens eagerly in a goroutine so nested
// descriptors inside the fulfillment payload register as soon as the
// chunk arrives, independent of when user code awaits the future.
func (c *Consumer) promiseLeaf(id int64, sub *future.Stream) *future.Future {
	fut := future.New()

	go func() {
		defer c.demux.unregister(id)

		item, err := sub.Next(context.Background())
		if err != nil {
			// Sub-stream closed without a chunk. Interruption delivers a
			// sentinel event instead, so this is a wire violation.
			fut.Reject(&ProtocolError{Msg: fmt.Sprintf("chunk %d closed before settling", id)})
			return
		}

		ev := item.(subEvent)
		if ev.interrupted {
			fut.Reject(ev.cause)
			return
		}

		chunk := ev.chunk
		switch chunk.Status {
		case types.PromiseFulfilled:
			if !chunk.HasPayload {
				fut.Reject(&ProtocolError{Msg: fmt.Sprintf("chunk %d fulfilled without payload", id)})
				return
			}
			d, perr := types.ParseDehydrated(chunk.Payload)
			if perr != nil {
				fut.Reject(&ProtocolError{Msg: fmt.Sprintf("chunk %d payload malformed", id), Err: perr})
				return
			}
			value, herr := c.hydrate(d)
			if herr != nil {
				fut.Reject(herr)
				return
			}
			fut.Resolve(value)

		case types.PromiseRejected:
			fut.Reject(c.parseError(chunk.Payload))

		default:
			fut.Reject(&ProtocolError{Msg: fmt.Sprintf("chunk %d has unexpected promise status %d", id, chunk.Status)})
		}
	}()

	return fut
}

// sequenceLeaf materializes a lazy sequence over the sub-stream for id.
// Hydration of each value payload happens on the consumer's Next call,
// which is what makes the demuxer's registration await an effective
// flow-control point for unconsumed sequences.
func (c *Consumer) sequenceLeaf(id int64, sub *future.Stream) future.Sequence {
	return &hydratedSequence{c: c, id: id, sub: sub}
}

// hydratedSequence is the consumer-side wrapper for an ASYNC_SEQUENCE
// chunk-id. Not safe for concurrent use; a sequence has one consumer.
type hydratedSequence struct {
	c    *Consumer
	id   int64
	sub  *future.Stream
	done bool
	term error
}

// Next reads one sub-stream event and interprets it. After the terminal
// event, the terminal error is sticky.
func (s *hydratedSequence) Next(ctx context.Context) (any, error) {
	if s.done {
		return nil, s.term
	}

	item, err := s.sub.Next(ctx)
	if err != nil {
		if errors.Is(err, future.ErrDone) {
			// Closed without a terminal chunk: interruption enqueues a
			// sentinel first, so a bare close is a wire violation.
			return nil, s.poison(&ProtocolError{Msg: fmt.Sprintf("chunk %d closed without terminal", s.id)})
		}
		// Context cancellation is not terminal; the consumer may retry.
		return nil, err
	}

	ev := item.(subEvent)
	if ev.interrupted {
		return nil, s.terminate(ev.cause)
	}

	chunk := ev.chunk
	switch chunk.Status {
	case types.SequenceValue:
		if !chunk.HasPayload {
			return nil, s.poison(&ProtocolError{Msg: fmt.Sprintf("chunk %d value without payload", s.id)})
		}
		d, perr := types.ParseDehydrated(chunk.Payload)
		if perr != nil {
			return nil, s.poison(&ProtocolError{Msg: fmt.Sprintf("chunk %d payload malformed", s.id), Err: perr})
		}
		value, herr := s.c.hydrate(d)
		if herr != nil {
			return nil, s.poison(herr)
		}
		return value, nil

	case types.SequenceDone:
		return nil, s.terminate(future.ErrDone)

	case types.SequenceError:
		return nil, s.terminate(s.c.parseError(chunk.Payload))

	default:
		return nil, s.poison(&ProtocolError{Msg: fmt.Sprintf("chunk %d has unexpected sequence status %d", s.id, chunk.Status)})
	}
}

// terminate records the sticky terminal error and releases the
// sub-stream controller. Used when the producer is done with the id:
// no further chunks will arrive for it.
func (s *hydratedSequence) terminate(err error) error {
	s.done = true
	s.term = err
	s.c.demux.unregister(s.id)
	return err
}

// poison records the sticky terminal error but leaves the controller
// registered with a cancelled sub-stream. The producer may still emit
// chunks for the id; routing them to the cancelled sub-stream drops them
// instead of parking the read loop on a registration that will never
// come.
func (s *hydratedSequence) poison(err error) error {
	s.done = true
	s.term = err
	s.sub.Cancel()
	return err
}

// Cancel releases the sequence without draining it. Further chunks for
// its id are dropped.
func (s *hydratedSequence) Cancel() {
	if s.done {
		return
	}
	s.done = true
	s.term = future.ErrCancelled
	s.sub.Cancel()
}

// Verify hydratedSequence implements Sequence.
var _ future.Sequence = (*hydratedSequence)(nil)
