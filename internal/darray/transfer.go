package darray

import (
	"go.uber.org/zap"

	"github.com/darray-ml/darray/internal/comm"
	"github.com/darray-ml/darray/internal/device"
	"github.com/darray-ml/darray/internal/index"
)

// engine carries the shared plumbing of one array snapshot: the device
// backend, the communicator set, the element type, and the logger.
type engine struct {
	backend device.Backend
	comms   *comm.Set
	dtype   DataType
	log     *zap.Logger
}

// sliceChunk extracts the rel sub-region of a chunk's buffer into a
// fresh contiguous buffer on a fresh stream ordered after the chunk's
// current work.
func (e *engine) sliceChunk(c *Chunk, rel index.Index) managed {
	dev := c.buf.Device()
	sub := index.ShapeAfterIndexing(c.shape, rel)
	s := e.backend.NewStream(dev)
	s.Wait(c.record())
	out := e.backend.Alloc(dev, sub.NumElements()*e.dtype.Size())
	src := c.buf
	srcShape := c.shape
	s.Launch(func() {
		copyRegion(out.Bytes(), src.Bytes(), srcShape, rel, e.dtype)
	})
	return managed{buf: out, shape: sub, stream: s}
}

// transferAsync moves a contiguous source buffer to dstDev.
//
// Same-device transfers are a pass-through: no copy is issued, the
// returned token is just the source stream's current position. Cross
// device, a paired send/recv is issued inside one matched group: the
// send on a fresh source stream ordered after the data, the recv into a
// fresh allocation on a fresh destination stream. The returned transfer
// completes on the destination stream and keeps the source buffer alive
// until the in-flight send can no longer reference it.
func (e *engine) transferAsync(src managed, dstDev device.ID) (dataTransfer, error) {
	srcDev := src.buf.Device()

	if srcDev == dstDev {
		return dataTransfer{buf: src.buf, shape: src.shape, ready: src.record()}, nil
	}

	srcComm, err := e.comms.Communicator(srcDev)
	if err != nil {
		return dataTransfer{}, err
	}
	dstComm, err := e.comms.Communicator(dstDev)
	if err != nil {
		return dataTransfer{}, err
	}

	count := src.shape.NumElements()
	elemSize := e.dtype.Size()

	srcStream := e.backend.NewStream(srcDev)
	srcStream.Wait(src.record())

	dstStream := e.backend.NewStream(dstDev)
	dstBuf := e.backend.Alloc(dstDev, count*elemSize)

	e.comms.Grouped(func() {
		srcComm.Send(srcStream, src.buf, count, elemSize, dstDev)
		dstComm.Recv(dstStream, dstBuf, count, elemSize, srcDev)
	})

	e.log.Debug("transfer",
		zap.Int("src", int(srcDev)), zap.Int("dst", int(dstDev)),
		zap.Int("bytes", count*elemSize))

	return dataTransfer{
		buf:       dstBuf,
		shape:     src.shape,
		ready:     dstStream.Record(),
		keepAlive: src.buf,
	}, nil
}
