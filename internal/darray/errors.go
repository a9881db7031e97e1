package darray

import (
	"errors"

	"github.com/darray-ml/darray/internal/comm"
	"github.com/darray-ml/darray/internal/index"
)

// All errors are detected synchronously on the host before device
// dispatch and are deterministic given identical inputs. Device-side
// numeric faults are not caught at this layer; they surface only at the
// next explicit synchronization point.
var (
	// ErrShapeMismatch reports an operand whose shape differs from the
	// array's shape. No implicit broadcast is attempted.
	ErrShapeMismatch = errors.New("mismatched shapes")

	// ErrIndexMapMismatch reports distributed operands in one kernel
	// call with different shard layouts. No implicit repartition is
	// attempted.
	ErrIndexMapMismatch = errors.New("mismatched index maps")

	// ErrMixedOperands reports mixing plain host arrays with
	// distributed arrays in one kernel call.
	ErrMixedOperands = errors.New("mixing host arrays with distributed arrays is not supported")

	// ErrUnsupportedReductionOption reports a reduction with an out
	// buffer or keepdims requested.
	ErrUnsupportedReductionOption = errors.New("unsupported reduction option")

	// ErrInvalidModeName reports an unknown consistency mode.
	ErrInvalidModeName = errors.New("invalid mode")

	// ErrKernelResultType reports a kernel that cannot produce exactly
	// one array value.
	ErrKernelResultType = errors.New("kernels returning other than a single array are not supported")

	// ErrMalformedIndex reports an invalid chunk region.
	ErrMalformedIndex = index.ErrMalformed

	// ErrCommunicatorUnavailable reports that the collective backend is
	// not initialized for the requested device set.
	ErrCommunicatorUnavailable = comm.ErrUnavailable
)
