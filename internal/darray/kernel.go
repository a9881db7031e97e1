package darray

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/darray-ml/darray/internal/device"
	"github.com/darray-ml/darray/internal/index"
)

// Operand is anything a kernel can be dispatched over: a distributed
// Array or a plain HostArray.
type Operand interface {
	isOperand()
}

// ElementwiseKernel computes one output element from the corresponding
// element of every operand.
type ElementwiseKernel struct {
	Name string
	// Op folds the operand values at one position into the result
	// value. Exactly one result value per position.
	Op func(vals []float64) float64
}

// ReductionKernel reduces one axis under an associative operator. Kind
// names the operator and must match a registered op mode.
type ReductionKernel struct {
	Name string
	Kind string
}

// Builtin elementwise kernels.
var (
	KernelAdd = &ElementwiseKernel{Name: "add", Op: func(vals []float64) float64 {
		s := 0.0
		for _, v := range vals {
			s += v
		}
		return s
	}}
	KernelMultiply = &ElementwiseKernel{Name: "multiply", Op: func(vals []float64) float64 {
		p := 1.0
		for _, v := range vals {
			p *= v
		}
		return p
	}}
	KernelMaximum = &ElementwiseKernel{Name: "maximum", Op: func(vals []float64) float64 {
		m := vals[0]
		for _, v := range vals[1:] {
			m = max(m, v)
		}
		return m
	}}
	KernelMinimum = &ElementwiseKernel{Name: "minimum", Op: func(vals []float64) float64 {
		m := vals[0]
		for _, v := range vals[1:] {
			m = min(m, v)
		}
		return m
	}}
)

// Builtin reduction kernels.
var (
	KernelSum  = &ReductionKernel{Name: "sum", Kind: "sum"}
	KernelProd = &ReductionKernel{Name: "prod", Kind: "prod"}
	KernelMin  = &ReductionKernel{Name: "min", Kind: "min"}
	KernelMax  = &ReductionKernel{Name: "max", Kind: "max"}
)

// ReduceOptions carries the optional reduction arguments. Out and
// KeepDims are accepted for interface compatibility with the dispatcher
// but are unsupported: chunk-shape adjustment under keepdims is not
// implemented, and neither is accumulation into a caller buffer.
type ReduceOptions struct {
	DType    *DataType
	Out      Operand
	KeepDims bool
}

// ExecuteKernel runs an elementwise kernel over distributed operands,
// producing a new distributed array in replica mode.
//
// All operands must be distributed, share the receiver's shape, and
// share its exact index map; any mismatch is a hard failure, with no
// implicit broadcast or repartition. Operands in op modes are converted
// to replica mode first, so elementwise semantics are mode-independent.
//
// If at most one operand carries pending partial updates, the kernel
// runs lazily: once per chunk against the un-drained base data, and
// once per pending update against the update's sub-region, producing
// matching partial updates on the output chunk. If two or more operands
// carry pending updates they are drained eagerly before dispatch.
func (a *Array) ExecuteKernel(kernel *ElementwiseKernel, operands []Operand) (*Array, error) {
	if kernel == nil || kernel.Op == nil {
		return nil, fmt.Errorf("%w: kernel has no body", ErrKernelResultType)
	}
	if len(operands) == 0 {
		return nil, fmt.Errorf("%w: no operands", ErrKernelResultType)
	}

	dist := make([]*Array, 0, len(operands))
	for _, op := range operands {
		arr, ok := op.(*Array)
		if !ok {
			return nil, ErrMixedOperands
		}
		if !arr.shape.Equal(a.shape) {
			return nil, fmt.Errorf("%w: operand shape %v, array shape %v",
				ErrShapeMismatch, arr.shape, a.shape)
		}
		if !indexMapsEqual(arr, a) {
			return nil, ErrIndexMapMismatch
		}
		replica, err := arr.ToReplicaMode()
		if err != nil {
			return nil, err
		}
		dist = append(dist, replica)
	}

	newChunks := make(map[device.ID][]*Chunk, len(a.chunks))
	for _, dev := range a.Devices() {
		for chunkI := range a.chunks[dev] {
			argChunks := make([]*Chunk, len(dist))
			for i, arr := range dist {
				argChunks[i] = arr.chunks[dev][chunkI]
			}

			// Find the pending updates to fold lazily. With two or
			// more updated operands, correctness wins over the inline
			// merge: drain everything first.
			pendingOwner, pending := prepareUpdates(argChunks, a.dtype)

			exec := a.backend.DefaultStream(dev)
			for _, c := range argChunks {
				exec.Wait(c.record())
			}

			chunkShape := argChunks[0].shape
			out := a.backend.Alloc(dev, chunkShape.NumElements()*a.dtype.Size())
			args := argChunks
			dt := a.dtype
			exec.Launch(func() {
				bufs := make([][]byte, len(args))
				for i, c := range args {
					bufs[i] = c.buf.Bytes()
				}
				mapElements(out.Bytes(), dt, bufs, kernel.Op)
			})

			newChunk := &Chunk{
				buf:    out,
				shape:  chunkShape,
				stream: exec,
				idx:    argChunks[0].idx.Clone(),
			}
			newChunks[dev] = append(newChunks[dev], newChunk)

			for _, u := range pending {
				u := u
				subShape := index.ShapeAfterIndexing(chunkShape, u.idx)
				outSub := a.backend.Alloc(dev, subShape.NumElements()*dt.Size())
				exec.Wait(u.transfer.ready)
				exec.Launch(func() {
					bufs := make([][]byte, len(args))
					for i, c := range args {
						bufs[i] = c.buf.Bytes()
					}
					mapRegion(outSub.Bytes(), dt, bufs, chunkShape, u.idx,
						pendingOwner, u.transfer.buf.Bytes(), kernel.Op)
				})
				done := exec.Record()
				newChunk.updates = append(newChunk.updates, partialUpdate{
					transfer: dataTransfer{buf: outSub, shape: subShape, ready: done},
					idx:      u.idx,
				})
			}
		}
	}

	a.log.Debug("elementwise kernel", zap.String("kernel", kernel.Name))
	return a.derive(newChunks, replicaMode), nil
}

// prepareUpdates returns the operand position whose chunk carries
// pending updates, and those updates, when at most one operand has any.
// Otherwise it drains every chunk under replica semantics and returns
// none.
func prepareUpdates(argChunks []*Chunk, dt DataType) (int, []partialUpdate) {
	owner := -1
	var pending []partialUpdate
	single := true
	for i, c := range argChunks {
		if len(c.updates) == 0 {
			continue
		}
		if pending != nil {
			single = false
			break
		}
		owner = i
		pending = c.updates
	}
	if single {
		return owner, pending
	}

	for _, c := range argChunks {
		c.applyUpdates(replicaMode, dt)
	}
	return -1, nil
}

// ExecuteReduction reduces one axis of the array under the kernel's
// operator, producing a new distributed array in the operator's mode.
//
// Non-idempotent kinds (sum, prod) start from an op-mode-consistent
// copy, so contributions are counted exactly once by construction.
// Idempotent kinds (min, max) start from the array's current mode, or,
// when conversion is needed, from a replicated copy whose duplicated
// cells are forced to the operator's identity beforehand.
func (a *Array) ExecuteReduction(kernel *ReductionKernel, axis int, opts ReduceOptions) (*Array, error) {
	if opts.Out != nil {
		return nil, fmt.Errorf("%w: out", ErrUnsupportedReductionOption)
	}
	if opts.KeepDims {
		return nil, fmt.Errorf("%w: keepdims", ErrUnsupportedReductionOption)
	}
	if axis < 0 || axis >= len(a.shape) {
		return nil, fmt.Errorf("%w: reduction axis %d out of range for %d-dimensional array",
			ErrMalformedIndex, axis, len(a.shape))
	}

	mode, err := ModeByName(kernel.Kind)
	if err != nil || !isOpMode(mode) {
		return nil, fmt.Errorf("%w: unsupported reduction kernel %q", ErrInvalidModeName, kernel.Name)
	}

	var chunks map[device.ID][]*Chunk
	overwrites := false
	if mode.Idempotent {
		if a.mode == mode {
			chunks = a.copyChunks()
		} else {
			chunks, err = a.replicaModeChunks()
			overwrites = true
		}
	} else {
		chunks, err = a.opModeChunks(mode)
	}
	if err != nil {
		return nil, err
	}

	eng := a.engine()
	if overwrites {
		identity := mode.IdentityOf(a.dtype)
		for _, c := range flatten(chunks) {
			eng.setIdentityOnIgnoredEntries(identity, c)
		}
	}

	srcDT := a.dtype
	outDT := a.dtype
	if opts.DType != nil {
		outDT = *opts.DType
	}

	newShape := shapeWithoutAxis(a.shape, axis)
	if len(newShape) == 0 {
		newShape = index.Shape{1}
	}

	newChunks := make(map[device.ID][]*Chunk, len(chunks))
	for _, dev := range a.Devices() {
		for _, c := range chunks[dev] {
			exec := a.backend.DefaultStream(dev)
			exec.Wait(c.record())

			outShape := shapeWithoutAxis(c.shape, axis)
			newIdx := indexWithoutAxis(c.idx, axis)
			if len(outShape) == 0 {
				outShape = index.Shape{1}
				newIdx = index.Index{index.Span(0, 1)}
			}

			out := a.backend.Alloc(dev, outShape.NumElements()*outDT.Size())
			src := c
			exec.Launch(func() {
				reduced := reduceAxis(src.buf.Bytes(), src.shape, srcDT, outDT, axis, mode.Combine)
				copy(out.Bytes(), reduced)
			})

			newChunk := &Chunk{
				buf:    out,
				shape:  outShape,
				stream: exec,
				idx:    newIdx,
			}
			newChunks[dev] = append(newChunks[dev], newChunk)

			if len(c.updates) == 0 {
				continue
			}

			updateStream := a.backend.NewStream(dev)
			updateStream.Wait(exec.Record())
			for _, u := range c.updates {
				u := u
				updateStream.Wait(u.transfer.ready)

				subShape := u.transfer.shape
				outSubShape := shapeWithoutAxis(subShape, axis)
				newUpdateIdx := indexWithoutAxis(u.idx, axis)
				if len(outSubShape) == 0 {
					outSubShape = index.Shape{1}
					newUpdateIdx = index.Index{index.Span(0, 1)}
				}

				outSub := a.backend.Alloc(dev, outSubShape.NumElements()*outDT.Size())
				updateStream.Launch(func() {
					reduced := reduceAxis(u.transfer.buf.Bytes(), subShape, srcDT, outDT, axis, mode.Combine)
					copy(outSub.Bytes(), reduced)
				})
				newChunk.updates = append(newChunk.updates, partialUpdate{
					transfer: dataTransfer{buf: outSub, shape: outSubShape, ready: updateStream.Record()},
					idx:      newUpdateIdx,
				})
			}
		}
	}

	a.log.Debug("reduction kernel", zap.String("kernel", kernel.Name))
	result := a.derive(newChunks, mode)
	result.shape = newShape
	result.dtype = outDT
	return result, nil
}
