package darray

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/darray-ml/darray/internal/comm"
	"github.com/darray-ml/darray/internal/device"
	"github.com/darray-ml/darray/internal/index"
)

// Array is a logical N-dimensional array sharded into per-device
// chunks. It is a plain value type composing shape, element type, chunk
// map, consistency mode, and communicator set; operations produce new
// snapshots rather than mutating in place.
type Array struct {
	shape   index.Shape
	dtype   DataType
	chunks  map[device.ID][]*Chunk
	mode    *Mode
	comms   *comm.Set
	backend device.Backend
	log     *zap.Logger
}

// Option configures array construction.
type Option func(*options)

type options struct {
	mode  string
	comms *comm.Set
	log   *zap.Logger
}

// WithMode selects the initial consistency mode (default "replica").
func WithMode(name string) Option {
	return func(o *options) { o.mode = name }
}

// WithComms supplies an existing communicator set instead of resolving
// one through the registry.
func WithComms(set *comm.Set) Option {
	return func(o *options) { o.comms = set }
}

// WithLogger installs a structured logger. The default is a no-op
// logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

// FromHost distributes a host array over devices according to indexMap:
// one chunk per listed region, several (disjoint) regions per device
// allowed. Regions are normalized and sorted per device before chunks
// are carved.
//
// Under a non-idempotent op mode, each region copied out is reset to
// the operator's identity in the working copy of the source, so every
// contribution is counted exactly once by construction.
func FromHost(b device.Backend, src *HostArray, indexMap map[device.ID][]index.Index, opts ...Option) (*Array, error) {
	o := options{mode: ReplicaMode, log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	mode, err := ModeByName(o.mode)
	if err != nil {
		return nil, err
	}

	normalized, err := normalizeIndexMap(src.Shape(), indexMap)
	if err != nil {
		return nil, err
	}

	comms := o.comms
	if comms == nil {
		provider, ok := b.(comm.Provider)
		if !ok {
			return nil, fmt.Errorf("%w: backend does not provide communicators", comm.ErrUnavailable)
		}
		comms, err = comm.SetFor(provider, sortedKeys(normalized))
		if err != nil {
			return nil, err
		}
	}

	work := src
	if isOpMode(mode) && !mode.Idempotent {
		work = src.Clone()
	}

	dt := src.DType()
	shape := src.Shape()
	chunks := make(map[device.ID][]*Chunk, len(normalized))
	for _, dev := range sortedKeys(normalized) {
		for _, idx := range normalized[dev] {
			regShape := index.ShapeAfterIndexing(shape, idx)
			payload := make([]byte, regShape.NumElements()*dt.Size())
			copyRegion(payload, work.Bytes(), shape, idx, dt)

			stream := b.NewStream(dev)
			buf := b.Alloc(dev, len(payload))
			stream.Launch(func() {
				copy(buf.Bytes(), payload)
			})
			chunks[dev] = append(chunks[dev], &Chunk{
				buf:    buf,
				shape:  regShape,
				stream: stream,
				idx:    idx,
			})

			if isOpMode(mode) && !mode.Idempotent {
				fillRegion(work.Bytes(), shape, idx, dt, mode.IdentityOf(dt))
			}
		}
	}

	o.log.Debug("array distributed",
		zap.Any("shape", shape), zap.String("mode", modeName(mode)),
		zap.Int("devices", len(chunks)))

	return &Array{
		shape:   shape.Clone(),
		dtype:   dt,
		chunks:  chunks,
		mode:    mode,
		comms:   comms,
		backend: b,
		log:     o.log,
	}, nil
}

func normalizeIndexMap(shape index.Shape, indexMap map[device.ID][]index.Index) (map[device.ID][]index.Index, error) {
	normalized := make(map[device.ID][]index.Index, len(indexMap))
	for dev, regions := range indexMap {
		if len(regions) == 0 {
			return nil, fmt.Errorf("%w: no regions for device %d", ErrMalformedIndex, dev)
		}
		out := make([]index.Index, len(regions))
		for i, region := range regions {
			idx, err := index.Normalize(shape, region)
			if err != nil {
				return nil, err
			}
			out[i] = idx
		}
		index.SortRegions(out)
		normalized[dev] = out
	}
	return normalized, nil
}

func sortedKeys(m map[device.ID][]index.Index) []device.ID {
	devs := make([]device.ID, 0, len(m))
	for dev := range m {
		devs = append(devs, dev)
	}
	sort.Slice(devs, func(i, j int) bool { return devs[i] < devs[j] })
	return devs
}

// Shape returns the logical array shape.
func (a *Array) Shape() index.Shape { return a.shape }

// DType returns the element type.
func (a *Array) DType() DataType { return a.dtype }

// Mode returns the current consistency mode name.
func (a *Array) Mode() string { return modeName(a.mode) }

// Devices returns the devices holding chunks, in stable ascending order.
func (a *Array) Devices() []device.ID {
	devs := make([]device.ID, 0, len(a.chunks))
	for dev := range a.chunks {
		devs = append(devs, dev)
	}
	sort.Slice(devs, func(i, j int) bool { return devs[i] < devs[j] })
	return devs
}

// IndexMap returns the per-device chunk regions.
func (a *Array) IndexMap() map[device.ID][]index.Index {
	out := make(map[device.ID][]index.Index, len(a.chunks))
	for dev, chunks := range a.chunks {
		regions := make([]index.Index, len(chunks))
		for i, c := range chunks {
			regions[i] = c.idx.Clone()
		}
		out[dev] = regions
	}
	return out
}

func (a *Array) isOperand() {}

// chunkList flattens the chunk map in device-sorted order. This
// enumeration order feeds the accumulation order of non-idempotent
// operators, so it is kept stable across runs.
func (a *Array) chunkList() []*Chunk {
	var out []*Chunk
	for _, dev := range a.Devices() {
		out = append(out, a.chunks[dev]...)
	}
	return out
}

func (a *Array) engine() *engine {
	return &engine{backend: a.backend, comms: a.comms, dtype: a.dtype, log: a.log}
}

func (a *Array) derive(chunks map[device.ID][]*Chunk, mode *Mode) *Array {
	return &Array{
		shape:   a.shape,
		dtype:   a.dtype,
		chunks:  chunks,
		mode:    mode,
		comms:   a.comms,
		backend: a.backend,
		log:     a.log,
	}
}

func indexMapsEqual(a, b *Array) bool {
	if len(a.chunks) != len(b.chunks) {
		return false
	}
	for dev, ac := range a.chunks {
		bc, ok := b.chunks[dev]
		if !ok || len(ac) != len(bc) {
			return false
		}
		for i := range ac {
			if !ac[i].idx.Equal(bc[i].idx) {
				return false
			}
		}
	}
	return true
}

// copyChunks deep-clones every chunk.
func (a *Array) copyChunks() map[device.ID][]*Chunk {
	out := make(map[device.ID][]*Chunk, len(a.chunks))
	for dev, chunks := range a.chunks {
		cloned := make([]*Chunk, len(chunks))
		for i, c := range chunks {
			cloned[i] = c.copy(a.backend)
		}
		out[dev] = cloned
	}
	return out
}

func flatten(chunks map[device.ID][]*Chunk) []*Chunk {
	devs := make([]device.ID, 0, len(chunks))
	for dev := range chunks {
		devs = append(devs, dev)
	}
	sort.Slice(devs, func(i, j int) bool { return devs[i] < devs[j] })
	var out []*Chunk
	for _, dev := range devs {
		out = append(out, chunks[dev]...)
	}
	return out
}

// replicaModeChunks returns a copy of the chunk map holding the array's
// value under replica semantics.
func (a *Array) replicaModeChunks() (map[device.ID][]*Chunk, error) {
	chunks := a.copyChunks()
	if isOpMode(a.mode) {
		if err := a.engine().allReduceIntersections(a.mode, a.shape, flatten(chunks)); err != nil {
			return nil, err
		}
	}
	return chunks, nil
}

// opModeChunks returns a copy of the chunk map holding the array's
// value under the given op mode: overlapping cells are owned by the
// last covering chunk in enumeration order, every other copy being
// identity-filled so nothing is counted twice.
func (a *Array) opModeChunks(opMode *Mode) (map[device.ID][]*Chunk, error) {
	if a.mode == opMode {
		return a.copyChunks(), nil
	}

	chunks, err := a.replicaModeChunks()
	if err != nil {
		return nil, err
	}
	for _, c := range flatten(chunks) {
		c.applyUpdates(replicaMode, a.dtype)
	}

	list := flatten(chunks)
	identity := opMode.IdentityOf(a.dtype)
	eng := a.engine()
	for i, c := range list {
		for _, later := range list[i+1:] {
			eng.setIdentityOnIntersection(a.shape, identity, c, later.idx)
		}
	}
	return chunks, nil
}

// ToReplicaMode converts the array to replica mode. The receiver is
// returned unchanged if it already is replicated.
func (a *Array) ToReplicaMode() (*Array, error) {
	if !isOpMode(a.mode) {
		return a, nil
	}
	chunks, err := a.replicaModeChunks()
	if err != nil {
		return nil, err
	}
	return a.derive(chunks, replicaMode), nil
}

// ChangeMode converts the array to the named consistency mode.
// Conversions between two op modes route through replica mode.
func (a *Array) ChangeMode(name string) (*Array, error) {
	mode, err := ModeByName(name)
	if err != nil {
		return nil, err
	}
	if mode == a.mode {
		return a, nil
	}

	var chunks map[device.ID][]*Chunk
	if isOpMode(mode) {
		chunks, err = a.opModeChunks(mode)
	} else {
		chunks, err = a.replicaModeChunks()
	}
	if err != nil {
		return nil, err
	}

	a.log.Debug("mode change",
		zap.String("from", modeName(a.mode)), zap.String("to", modeName(mode)))
	return a.derive(chunks, mode), nil
}

// Reshard redistributes the array according to a new index map and
// returns the resharded snapshot. The old chunk structure is left
// untouched; under op modes sources are folded into the new chunks with
// exactly-once accounting, under replica mode they are plainly copied.
func (a *Array) Reshard(indexMap map[device.ID][]index.Index) (*Array, error) {
	for dev := range indexMap {
		if _, err := a.comms.Communicator(dev); err != nil {
			return nil, err
		}
	}

	normalized, err := normalizeIndexMap(a.shape, indexMap)
	if err != nil {
		return nil, err
	}

	eng := a.engine()
	var identity float64
	if isOpMode(a.mode) {
		identity = a.mode.IdentityOf(a.dtype)
	}

	newChunks := make(map[device.ID][]*Chunk, len(normalized))
	for _, dev := range sortedKeys(normalized) {
		for _, idx := range normalized[dev] {
			regShape := index.ShapeAfterIndexing(a.shape, idx)
			stream := a.backend.NewStream(dev)
			buf := a.backend.Alloc(dev, regShape.NumElements()*a.dtype.Size())
			if isOpMode(a.mode) {
				dt := a.dtype
				stream.Launch(func() {
					fill(buf.Bytes(), dt, identity)
				})
			}
			newChunks[dev] = append(newChunks[dev], &Chunk{
				buf:    buf,
				shape:  regShape,
				stream: stream,
				idx:    idx,
			})
		}
	}

	for _, src := range a.chunkList() {
		src.applyUpdates(a.mode, a.dtype)

		if isOpMode(a.mode) {
			// applyAndUpdate resets the propagated source regions to
			// identity; work on a clone so the receiver stays intact.
			src = src.copy(a.backend)
		}

		for _, dst := range flatten(newChunks) {
			if isOpMode(a.mode) {
				err = eng.applyAndUpdate(a.mode, a.shape, src, dst)
			} else {
				err = eng.copyOnIntersection(a.shape, src, dst)
			}
			if err != nil {
				return nil, err
			}
		}
	}

	a.log.Debug("reshard", zap.Int("devices", len(newChunks)))
	return a.derive(newChunks, a.mode), nil
}

// Wait is the user-invoked barrier: it drains every pending update and
// blocks until all involved streams have run dry.
func (a *Array) Wait() {
	var events []device.Event
	for _, c := range a.chunkList() {
		c.applyUpdates(a.mode, a.dtype)
		events = append(events, c.record())
	}

	var g errgroup.Group
	for _, ev := range events {
		ev := ev
		g.Go(func() error {
			ev.Synchronize()
			return nil
		})
	}
	_ = g.Wait()
}

// ToHost materializes the logical array into host memory: pending
// updates are drained, every involved stream is synchronized, then
// chunks are folded into one host buffer with overwrite semantics in
// replica mode and operator-reduce semantics in op modes (identity fill
// on cells no chunk populates).
func (a *Array) ToHost() (*HostArray, error) {
	list := a.chunkList()
	for _, c := range list {
		c.applyUpdates(a.mode, a.dtype)
	}

	events := make([]device.Event, len(list))
	for i, c := range list {
		events[i] = c.record()
	}
	var g errgroup.Group
	for _, ev := range events {
		ev := ev
		g.Go(func() error {
			ev.Synchronize()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out, err := NewHost(a.shape, a.dtype)
	if err != nil {
		return nil, err
	}
	if isOpMode(a.mode) {
		fill(out.Bytes(), a.dtype, a.mode.IdentityOf(a.dtype))
	}
	for _, c := range list {
		if isOpMode(a.mode) {
			combineRegion(out.Bytes(), a.shape, c.idx, c.buf.Bytes(), a.dtype, a.mode.Combine)
		} else {
			assignRegion(out.Bytes(), a.shape, c.idx, c.buf.Bytes(), a.dtype)
		}
	}
	return out, nil
}
