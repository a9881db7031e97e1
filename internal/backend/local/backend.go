// Package local implements the device/stream backend and the
// point-to-point transport on top of host memory and goroutines. Every
// simulated device gets its own address space slice of the host; streams
// preserve issue order, events carry cross-stream dependencies, and
// send/recv pairs are matched through per-device-pair FIFO links.
//
// The package exists so the distributed array core can be exercised and
// tested without real accelerator hardware; it implements the same
// ordering contract a hardware backend must provide.
package local

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/darray-ml/darray/internal/comm"
	"github.com/darray-ml/darray/internal/device"
)

// Backend simulates a set of compute devices over host memory.
// It implements device.Backend and comm.Provider.
type Backend struct {
	devs     []device.ID
	names    map[device.ID]string
	defaults map[device.ID]*stream
	exch     *exchange
	log      *zap.Logger
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger installs a structured logger. The default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Backend) { b.log = l }
}

// New creates a backend with n devices numbered 0..n-1.
func New(n int, opts ...Option) *Backend {
	t := &Topology{}
	for i := 0; i < n; i++ {
		t.Devices = append(t.Devices, DeviceConfig{ID: i, Name: fmt.Sprintf("dev%d", i)})
	}
	b, err := FromTopology(t, opts...)
	if err != nil {
		panic(err) // generated topology is always valid
	}
	return b
}

// FromTopology creates a backend from an explicit device topology.
func FromTopology(t *Topology, opts ...Option) (*Backend, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	b := &Backend{
		names:    make(map[device.ID]string),
		defaults: make(map[device.ID]*stream),
		exch:     newExchange(),
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	for _, dc := range t.Devices {
		dev := device.ID(dc.ID)
		b.devs = append(b.devs, dev)
		b.names[dev] = dc.Name
		b.defaults[dev] = newStream(dev)
	}
	b.log.Debug("local backend ready", zap.Int("devices", len(b.devs)))
	return b, nil
}

// FromConfig creates a backend from a YAML topology file.
func FromConfig(path string, opts ...Option) (*Backend, error) {
	t, err := LoadTopology(path)
	if err != nil {
		return nil, err
	}
	return FromTopology(t, opts...)
}

// Devices returns the device ids in topology order.
func (b *Backend) Devices() []device.ID {
	return append([]device.ID(nil), b.devs...)
}

// Name returns the configured name of a device.
func (b *Backend) Name(dev device.ID) string {
	return b.names[dev]
}

// DefaultStream returns the device's default execution stream.
func (b *Backend) DefaultStream(dev device.ID) device.Stream {
	s, ok := b.defaults[dev]
	if !ok {
		panic(fmt.Sprintf("local: unknown device %d", dev))
	}
	return s
}

// NewStream creates an independent stream on the device.
func (b *Backend) NewStream(dev device.ID) device.Stream {
	if _, ok := b.defaults[dev]; !ok {
		panic(fmt.Sprintf("local: unknown device %d", dev))
	}
	return newStream(dev)
}

// buffer is a device-scoped allocation backed by host memory.
type buffer struct {
	dev  device.ID
	data []byte
}

func (b *buffer) Device() device.ID { return b.dev }
func (b *buffer) Len() int          { return len(b.data) }
func (b *buffer) Bytes() []byte     { return b.data }

// Alloc allocates size bytes on the device.
func (b *Backend) Alloc(dev device.ID, size int) device.Buffer {
	if _, ok := b.defaults[dev]; !ok {
		panic(fmt.Sprintf("local: unknown device %d", dev))
	}
	return &buffer{dev: dev, data: make([]byte, size)}
}

// NewCommunicators implements comm.Provider: one communicator per
// participating device, all wired to the backend's exchange.
func (b *Backend) NewCommunicators(devs []device.ID) (map[device.ID]comm.Communicator, error) {
	peers := make(map[device.ID]comm.Communicator, len(devs))
	for _, dev := range devs {
		if _, ok := b.defaults[dev]; !ok {
			return nil, fmt.Errorf("%w: device %d is not part of this backend", comm.ErrUnavailable, dev)
		}
		peers[dev] = &communicator{dev: dev, exch: b.exch, log: b.log}
	}
	b.log.Debug("communicators created", zap.Int("devices", len(devs)))
	return peers, nil
}

var (
	_ device.Backend = (*Backend)(nil)
	_ comm.Provider  = (*Backend)(nil)
)
