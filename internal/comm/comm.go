// Package comm exposes the collective-communication backend to the
// distributed array core as an abstract point-to-point send/recv
// primitive, plus a process-wide registry of communicator sets keyed by
// the provider and the participating device set.
package comm

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/darray-ml/darray/internal/device"
)

// ErrUnavailable reports that no communicator has been prepared for a
// requested device.
var ErrUnavailable = errors.New("communicator unavailable")

// Communicator issues one-sided transfers on behalf of a single device.
// A Send and the matching Recv on the peer's communicator must be issued
// inside the same Grouped call so the two one-sided operations pair up.
type Communicator interface {
	// Send enqueues on s the transmission of the first count*elemSize
	// bytes of buf to the device peer.
	Send(s device.Stream, buf device.Buffer, count, elemSize int, peer device.ID)
	// Recv enqueues on s the reception of count*elemSize bytes from the
	// device peer into buf.
	Recv(s device.Stream, buf device.Buffer, count, elemSize int, peer device.ID)
}

// Provider creates the per-device communicators for one device set.
// It is implemented by the transport backend.
type Provider interface {
	NewCommunicators(devices []device.ID) (map[device.ID]Communicator, error)
}

// Set holds the communicators of one device set. Sets are shared by
// reference across array snapshots built on the same devices.
type Set struct {
	id    uuid.UUID
	devs  []device.ID
	peers map[device.ID]Communicator
}

// UUID identifies the set, for logging.
func (s *Set) UUID() uuid.UUID { return s.id }

// Devices returns the participating devices in stable order.
func (s *Set) Devices() []device.ID { return s.devs }

// Communicator returns the communicator acting for dev.
func (s *Set) Communicator(dev device.ID) (Communicator, error) {
	c, ok := s.peers[dev]
	if !ok {
		return nil, fmt.Errorf("%w: device %d is not part of communicator set %s",
			ErrUnavailable, dev, s.id)
	}
	return c, nil
}

// Grouped brackets a matched group of one-sided calls. Every Send issued
// inside f must have its matching Recv issued inside the same f; the
// group boundary is what guarantees the pairing.
func (s *Set) Grouped(f func()) {
	f()
}
