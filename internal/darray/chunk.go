package darray

import (
	"github.com/darray-ml/darray/internal/device"
	"github.com/darray-ml/darray/internal/index"
)

// dataTransfer is an asynchronously produced buffer. ready completes on
// the stream that produced or received the data; keepAlive pins any
// source buffer a still-in-flight send may be reading from.
type dataTransfer struct {
	buf       device.Buffer
	shape     index.Shape
	ready     device.Event
	keepAlive any
}

// partialUpdate is a deferred sub-region value queued against a chunk.
// idx is relative to the chunk's own buffer. Overwrite in replica mode,
// combine in op mode.
type partialUpdate struct {
	transfer dataTransfer
	idx      index.Index
}

// managed is a contiguous device buffer ordered by a stream.
type managed struct {
	buf    device.Buffer
	shape  index.Shape
	stream device.Stream
}

func (m managed) record() device.Event { return m.stream.Record() }

// Chunk is one shard of the logical array: a dense device buffer
// covering an absolute index region, owned by one execution stream,
// with a queue of pending partial updates. Chunks are exclusively owned
// by the array snapshot that created them; mutation from the outside
// happens by replacement, never in place.
type Chunk struct {
	buf     device.Buffer
	shape   index.Shape // dense shape of buf, = ShapeAfterIndexing(array shape, idx)
	stream  device.Stream
	idx     index.Index // absolute region within the logical array
	updates []partialUpdate
}

// Index returns the chunk's absolute region.
func (c *Chunk) Index() index.Index { return c.idx }

// Device returns the device the chunk resides on.
func (c *Chunk) Device() device.ID { return c.buf.Device() }

func (c *Chunk) record() device.Event { return c.stream.Record() }

// copy deep-clones the chunk's buffer on a fresh stream that first
// waits on an event recorded against the source, preserving ordering
// without serializing host execution. Pending updates are carried over
// by reference.
func (c *Chunk) copy(b device.Backend) *Chunk {
	copier := b.NewStream(c.buf.Device())
	copier.Wait(c.record())
	dst := b.Alloc(c.buf.Device(), c.buf.Len())
	src := c.buf
	copier.Launch(func() {
		copy(dst.Bytes(), src.Bytes())
	})
	return &Chunk{
		buf:     dst,
		shape:   c.shape.Clone(),
		stream:  copier,
		idx:     c.idx.Clone(),
		updates: append([]partialUpdate(nil), c.updates...),
	}
}

// applyUpdates drains the pending-update queue in insertion order. For
// each update the chunk's stream waits on the update's readiness token,
// then overwrites (replica) or combines (op mode) the chunk buffer at
// the update's sub-region. The queue is cleared afterwards.
func (c *Chunk) applyUpdates(mode *Mode, dt DataType) {
	for _, u := range c.updates {
		u := u
		c.stream.Wait(u.transfer.ready)
		c.stream.Launch(func() {
			if isOpMode(mode) {
				combineRegion(c.buf.Bytes(), c.shape, u.idx, u.transfer.buf.Bytes(), dt, mode.Combine)
			} else {
				assignRegion(c.buf.Bytes(), c.shape, u.idx, u.transfer.buf.Bytes(), dt)
			}
		})
	}
	c.updates = nil
}
