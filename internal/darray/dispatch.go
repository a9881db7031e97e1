package darray

import (
	"fmt"

	"github.com/darray-ml/darray/internal/index"
)

// DistributedDispatch is the capability interface queried by the
// generic dispatcher before its default host path. An operand that
// implements it may take over a kernel call involving it.
type DistributedDispatch interface {
	// TryElementwise handles an elementwise kernel over the given
	// operands. handled=false defers to the default path.
	TryElementwise(kernel *ElementwiseKernel, operands []Operand) (result *Array, handled bool, err error)
	// TryReduction handles an axis reduction of the operand.
	TryReduction(kernel *ReductionKernel, axis int, opts ReduceOptions) (result *Array, handled bool, err error)
}

// TryElementwise implements DistributedDispatch for distributed arrays.
func (a *Array) TryElementwise(kernel *ElementwiseKernel, operands []Operand) (*Array, bool, error) {
	result, err := a.ExecuteKernel(kernel, operands)
	return result, true, err
}

// TryReduction implements DistributedDispatch for distributed arrays.
func (a *Array) TryReduction(kernel *ReductionKernel, axis int, opts ReduceOptions) (*Array, bool, error) {
	result, err := a.ExecuteReduction(kernel, axis, opts)
	return result, true, err
}

var _ DistributedDispatch = (*Array)(nil)

// Elementwise dispatches an elementwise kernel over operands. Operands
// implementing DistributedDispatch are offered the call first; plain
// host arrays fall through to the host path.
func Elementwise(kernel *ElementwiseKernel, operands ...Operand) (Operand, error) {
	for _, op := range operands {
		if d, ok := op.(DistributedDispatch); ok {
			result, handled, err := d.TryElementwise(kernel, operands)
			if handled {
				return result, err
			}
		}
	}
	return hostElementwise(kernel, operands)
}

// Reduce dispatches an axis reduction over one operand.
func Reduce(kernel *ReductionKernel, target Operand, axis int, opts ReduceOptions) (Operand, error) {
	if d, ok := target.(DistributedDispatch); ok {
		result, handled, err := d.TryReduction(kernel, axis, opts)
		if handled {
			return result, err
		}
	}
	return hostReduce(kernel, target, axis, opts)
}

// hostElementwise is the default path: every operand must be a host
// array of the same shape and type.
func hostElementwise(kernel *ElementwiseKernel, operands []Operand) (*HostArray, error) {
	if kernel == nil || kernel.Op == nil {
		return nil, fmt.Errorf("%w: kernel has no body", ErrKernelResultType)
	}
	if len(operands) == 0 {
		return nil, fmt.Errorf("%w: no operands", ErrKernelResultType)
	}

	hosts := make([]*HostArray, len(operands))
	for i, op := range operands {
		h, ok := op.(*HostArray)
		if !ok {
			return nil, ErrMixedOperands
		}
		if i > 0 && !h.shape.Equal(hosts[0].shape) {
			return nil, fmt.Errorf("%w: operand shapes %v and %v",
				ErrShapeMismatch, hosts[0].shape, h.shape)
		}
		hosts[i] = h
	}

	out, err := NewHost(hosts[0].shape, hosts[0].dtype)
	if err != nil {
		return nil, err
	}
	bufs := make([][]byte, len(hosts))
	for i, h := range hosts {
		bufs[i] = h.data
	}
	mapElements(out.data, out.dtype, bufs, kernel.Op)
	return out, nil
}

// hostReduce is the default path for reductions over host arrays.
func hostReduce(kernel *ReductionKernel, target Operand, axis int, opts ReduceOptions) (*HostArray, error) {
	if opts.Out != nil {
		return nil, fmt.Errorf("%w: out", ErrUnsupportedReductionOption)
	}
	if opts.KeepDims {
		return nil, fmt.Errorf("%w: keepdims", ErrUnsupportedReductionOption)
	}

	h, ok := target.(*HostArray)
	if !ok {
		return nil, ErrMixedOperands
	}
	if axis < 0 || axis >= len(h.shape) {
		return nil, fmt.Errorf("%w: reduction axis %d out of range for %d-dimensional array",
			ErrMalformedIndex, axis, len(h.shape))
	}
	mode, err := ModeByName(kernel.Kind)
	if err != nil || !isOpMode(mode) {
		return nil, fmt.Errorf("%w: unsupported reduction kernel %q", ErrInvalidModeName, kernel.Name)
	}

	outDT := h.dtype
	if opts.DType != nil {
		outDT = *opts.DType
	}
	outShape := shapeWithoutAxis(h.shape, axis)
	if len(outShape) == 0 {
		outShape = index.Shape{1}
	}
	out := &HostArray{
		shape: outShape,
		dtype: outDT,
		data:  reduceAxis(h.data, h.shape, h.dtype, outDT, axis, mode.Combine),
	}
	return out, nil
}
