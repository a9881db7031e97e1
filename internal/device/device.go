// Package device defines the per-device stream/event abstraction that the
// distributed array core is written against. A Backend provides devices,
// ordered execution streams on those devices, and device-scoped buffer
// allocation. Concurrency is expressed purely as a dependency graph of
// stream-ordered operations linked by event record/wait pairs; the host
// blocks only at explicit synchronization points.
package device

import "github.com/google/uuid"

// ID identifies one compute device within a backend.
type ID int

// Event is a completion token recorded against a stream. It becomes done
// once every operation issued to the stream before the record has run.
type Event interface {
	// UUID identifies the event, for logging and debugging.
	UUID() uuid.UUID
	// Done is closed when the event has completed.
	Done() <-chan struct{}
	// Synchronize blocks the calling goroutine until the event completes.
	Synchronize()
}

// Stream is a FIFO instruction queue bound to one device. Operations
// issued to the same stream run in issue order; operations on different
// streams are unordered unless an event edge is inserted with Wait.
type Stream interface {
	// Device returns the device this stream executes on.
	Device() ID
	// Launch enqueues op. It never blocks the host.
	Launch(op func())
	// Record enqueues a marker and returns its completion token.
	Record() Event
	// Wait enqueues a dependency: later operations on this stream do not
	// run until e completes.
	Wait(e Event)
	// Synchronize blocks the host until all previously issued operations
	// on this stream have run.
	Synchronize()
}

// Buffer is a device-resident allocation. Bytes must only be touched
// from operations running on streams of the owning device.
type Buffer interface {
	// Device returns the device the buffer resides on.
	Device() ID
	// Len returns the allocation size in bytes.
	Len() int
	// Bytes exposes the underlying storage.
	Bytes() []byte
}

// Backend provides devices, streams, and allocation.
type Backend interface {
	// Devices enumerates the available devices in stable order.
	Devices() []ID
	// DefaultStream returns the device's default execution stream.
	DefaultStream(dev ID) Stream
	// NewStream creates an independent stream on the device.
	NewStream(dev ID) Stream
	// Alloc allocates size bytes on the device.
	Alloc(dev ID, size int) Buffer
}
