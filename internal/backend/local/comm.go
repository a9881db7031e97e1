package local

import (
	"sync"

	"go.uber.org/zap"

	"github.com/darray-ml/darray/internal/device"
)

// link is an ordered device pair. Transfers between the same pair of
// devices are matched in issue order, independently per direction.
type link struct {
	src, dst device.ID
}

// exchange routes payloads between devices over per-link FIFO channels.
type exchange struct {
	mu    sync.Mutex
	links map[link]chan []byte
}

func newExchange() *exchange {
	return &exchange{links: make(map[link]chan []byte)}
}

// linkBuffer bounds how many sends may complete on a link before the
// matching receives are executed.
const linkBuffer = 8

func (x *exchange) channel(l link) chan []byte {
	x.mu.Lock()
	defer x.mu.Unlock()
	ch, ok := x.links[l]
	if !ok {
		ch = make(chan []byte, linkBuffer)
		x.links[l] = ch
	}
	return ch
}

// communicator issues one-sided transfers for a single device.
type communicator struct {
	dev  device.ID
	exch *exchange
	log  *zap.Logger
}

// Send enqueues on s the transmission of count*elemSize bytes to peer.
// The payload is snapshotted when the stream reaches the operation, so
// the source buffer may be reused once the stream has passed it.
func (c *communicator) Send(s device.Stream, buf device.Buffer, count, elemSize int, peer device.ID) {
	n := count * elemSize
	ch := c.exch.channel(link{src: c.dev, dst: peer})
	c.log.Debug("send",
		zap.Int("src", int(c.dev)), zap.Int("dst", int(peer)), zap.Int("bytes", n))
	s.Launch(func() {
		payload := make([]byte, n)
		copy(payload, buf.Bytes())
		ch <- payload
	})
}

// Recv enqueues on s the reception of count*elemSize bytes from peer.
func (c *communicator) Recv(s device.Stream, buf device.Buffer, count, elemSize int, peer device.ID) {
	n := count * elemSize
	ch := c.exch.channel(link{src: peer, dst: c.dev})
	s.Launch(func() {
		payload := <-ch
		copy(buf.Bytes()[:n], payload)
	})
}
