package codec

import (
	"context"
	"sync"

	"github.com/pithecene-io/brine/future"
	"github.com/pithecene-io/brine/types"
)

// subEvent is the item routed to a per-chunk-id sub-stream: either one
// decoded chunk or the interruption sentinel.
type subEvent struct {
	chunk       *types.Chunk
	interrupted bool
	cause       error
}

// demux routes incoming chunks to per-chunk-id sub-streams. Controllers
// are created lazily when an id is first referenced during rehydration;
// chunks for ids the consumer has not referenced yet park on a pending
// registration, serializing the read loop until the reader catches up.
// That await is the consumer's flow-control point: unrouted chunks are
// never buffered unboundedly.
type demux struct {
	mu          sync.Mutex
	controllers map[int64]*future.Controller
	// pending holds rendezvous futures for chunk-ids observed before the
	// consumer referenced them. Each resolves to a *future.Controller.
	pending map[int64]*future.Future
	downed  error
}

func newDemux() *demux {
	return &demux{
		controllers: make(map[int64]*future.Controller),
		pending:     make(map[int64]*future.Future),
	}
}

// route delivers one chunk to its sub-stream, blocking until the id is
// registered if needed. Returns an error only when the wait is cut short
// by ctx cancellation or interruption.
func (d *demux) route(ctx context.Context, chunk *types.Chunk) error {
	d.mu.Lock()
	if d.downed != nil {
		d.mu.Unlock()
		return nil
	}
	if ctrl, ok := d.controllers[chunk.ID]; ok {
		d.mu.Unlock()
		ctrl.Enqueue(subEvent{chunk: chunk})
		return nil
	}
	reg, ok := d.pending[chunk.ID]
	if !ok {
		reg = future.New()
		d.pending[chunk.ID] = reg
	}
	d.mu.Unlock()

	v, err := reg.Await(ctx)
	if err != nil {
		return err
	}
	ctrl := v.(*future.Controller)
	ctrl.Enqueue(subEvent{chunk: chunk})
	return nil
}

// register creates the sub-stream for a chunk-id at its first reference
// and releases any chunk parked on a pending registration.
func (d *demux) register(id int64) *future.Stream {
	sub, ctrl := future.NewStream()

	d.mu.Lock()
	if d.downed != nil {
		d.mu.Unlock()
		// The stream is already interrupted; hand back a sub-stream that
		// reports it immediately.
		ctrl.Enqueue(subEvent{interrupted: true, cause: d.downed})
		ctrl.Close()
		return sub
	}
	d.controllers[id] = ctrl
	reg, ok := d.pending[id]
	if ok {
		delete(d.pending, id)
	}
	d.mu.Unlock()

	if ok {
		reg.Resolve(ctrl)
	}
	return sub
}

// unregister releases the controller for a terminated chunk-id.
func (d *demux) unregister(id int64) {
	d.mu.Lock()
	delete(d.controllers, id)
	d.mu.Unlock()
}

// interrupt tears the demux down: every live sub-stream receives the
// interruption sentinel and closes, and every parked route is released
// with an error. Idempotent.
func (d *demux) interrupt(cause error) {
	d.mu.Lock()
	if d.downed != nil {
		d.mu.Unlock()
		return
	}
	if cause == nil {
		cause = ErrInterrupted
	}
	d.downed = cause

	controllers := d.controllers
	pending := d.pending
	d.controllers = make(map[int64]*future.Controller)
	d.pending = make(map[int64]*future.Future)
	d.mu.Unlock()

	for _, reg := range pending {
		reg.Reject(cause)
	}
	for _, ctrl := range controllers {
		ctrl.Enqueue(subEvent{interrupted: true, cause: cause})
		ctrl.Close()
	}
}

// open returns the number of live controllers. Used by tests to verify
// resource release.
func (d *demux) open() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.controllers)
}
