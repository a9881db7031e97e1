package darray

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darray-ml/darray/internal/device"
	"github.com/darray-ml/darray/internal/index"
)

func TestElementwiseAdd(t *testing.T) {
	b := newTestBackend(2)
	src := seqHost(t, index.Shape{4, 4}, Float64)

	arr, err := FromHost(b, src, rowSplit4x4())
	require.NoError(t, err)

	out, err := Elementwise(KernelAdd, arr, arr)
	require.NoError(t, err)
	result := out.(*Array)
	assert.Equal(t, ReplicaMode, result.Mode())

	want := make([]float64, 16)
	for i, v := range src.Float64s() {
		want[i] = 2 * v
	}
	assert.Equal(t, want, toHostF64(t, result))
}

func TestElementwiseThreeOperands(t *testing.T) {
	b := newTestBackend(2)
	src := seqHost(t, index.Shape{4, 4}, Float64)

	arr, err := FromHost(b, src, colSplit4x4())
	require.NoError(t, err)

	out, err := Elementwise(KernelMaximum, arr, arr, arr)
	require.NoError(t, err)
	assert.Equal(t, src.Float64s(), toHostF64(t, out.(*Array)))
}

func TestElementwiseConvertsOpModeOperands(t *testing.T) {
	b := newTestBackend(2)
	src := seqHost(t, index.Shape{4, 4}, Float64)

	arr, err := FromHost(b, src, overlapRows4x4(), WithMode("sum"))
	require.NoError(t, err)

	// Operands are replicated first, so the kernel sees logical values,
	// not the identity-carved sum-mode chunk contents.
	out, err := Elementwise(KernelMultiply, arr, arr)
	require.NoError(t, err)
	result := out.(*Array)
	assert.Equal(t, ReplicaMode, result.Mode())

	want := make([]float64, 16)
	for i, v := range src.Float64s() {
		want[i] = v * v
	}
	assert.Equal(t, want, toHostF64(t, result))
}

func TestElementwiseLazyOverPendingUpdates(t *testing.T) {
	b := newTestBackend(2)
	src := seqHost(t, index.Shape{4, 4}, Float64)

	arr, err := FromHost(b, src, rowSplit4x4())
	require.NoError(t, err)
	pending, err := arr.Reshard(colSplit4x4())
	require.NoError(t, err)

	hasPending := false
	for _, c := range pending.chunkList() {
		hasPending = hasPending || len(c.updates) > 0
	}
	require.True(t, hasPending, "reshard must leave updates queued")

	fresh, err := FromHost(b, src, colSplit4x4())
	require.NoError(t, err)

	out, err := Elementwise(KernelAdd, pending, fresh)
	require.NoError(t, err)
	result := out.(*Array)

	// With a single updated operand the kernel runs lazily, producing
	// matching partial updates on the output instead of draining first.
	lazily := false
	for _, c := range result.chunkList() {
		lazily = lazily || len(c.updates) > 0
	}
	assert.True(t, lazily, "output carries no partial updates")

	want := make([]float64, 16)
	for i, v := range src.Float64s() {
		want[i] = 2 * v
	}
	assert.Equal(t, want, toHostF64(t, result))
}

func TestElementwiseDrainsWithTwoUpdatedOperands(t *testing.T) {
	b := newTestBackend(2)
	src := seqHost(t, index.Shape{4, 4}, Float64)

	arr, err := FromHost(b, src, rowSplit4x4())
	require.NoError(t, err)
	p1, err := arr.Reshard(colSplit4x4())
	require.NoError(t, err)
	p2, err := arr.Reshard(colSplit4x4())
	require.NoError(t, err)

	out, err := Elementwise(KernelAdd, p1, p2)
	require.NoError(t, err)

	want := make([]float64, 16)
	for i, v := range src.Float64s() {
		want[i] = 2 * v
	}
	assert.Equal(t, want, toHostF64(t, out.(*Array)))
}

func TestElementwiseErrors(t *testing.T) {
	b := newTestBackend(2)
	src := seqHost(t, index.Shape{4, 4}, Float64)

	arr, err := FromHost(b, src, rowSplit4x4())
	require.NoError(t, err)

	t.Run("mixed operands", func(t *testing.T) {
		_, err := Elementwise(KernelAdd, src, arr)
		assert.ErrorIs(t, err, ErrMixedOperands)
	})

	t.Run("shape mismatch", func(t *testing.T) {
		small := seqHost(t, index.Shape{2, 2}, Float64)
		other, err := FromHost(b, small, map[device.ID][]index.Index{0: {{}}})
		require.NoError(t, err)
		_, err = Elementwise(KernelAdd, arr, other)
		assert.ErrorIs(t, err, ErrShapeMismatch)
	})

	t.Run("index map mismatch", func(t *testing.T) {
		other, err := FromHost(b, src, colSplit4x4())
		require.NoError(t, err)
		_, err = Elementwise(KernelAdd, arr, other)
		assert.ErrorIs(t, err, ErrIndexMapMismatch)
	})

	t.Run("kernel without body", func(t *testing.T) {
		_, err := Elementwise(&ElementwiseKernel{Name: "broken"}, arr)
		assert.ErrorIs(t, err, ErrKernelResultType)
	})
}

func TestReduceSumAxis0(t *testing.T) {
	b := newTestBackend(2)
	src := seqHost(t, index.Shape{4, 4}, Float64)

	arr, err := FromHost(b, src, rowSplit4x4())
	require.NoError(t, err)

	out, err := Reduce(KernelSum, arr, 0, ReduceOptions{})
	require.NoError(t, err)
	result := out.(*Array)
	assert.Equal(t, "sum", result.Mode())
	assert.True(t, result.Shape().Equal(index.Shape{4}))
	assert.Equal(t, []float64{28, 32, 36, 40}, toHostF64(t, result))
}

func TestReduceSumOverlapCountsOnce(t *testing.T) {
	b := newTestBackend(2)
	src := seqHost(t, index.Shape{4, 4}, Float64)

	// Rows 1-2 are replicated on both devices; the reduction must count
	// each logical cell exactly once.
	arr, err := FromHost(b, src, overlapRows4x4())
	require.NoError(t, err)

	out, err := Reduce(KernelSum, arr, 0, ReduceOptions{})
	require.NoError(t, err)
	assert.Equal(t, []float64{28, 32, 36, 40}, toHostF64(t, out.(*Array)))
}

func TestReduceProdAxis1(t *testing.T) {
	b := newTestBackend(2)
	src := seqHost(t, index.Shape{2, 3}, Float64)

	arr, err := FromHost(b, src, map[device.ID][]index.Index{
		0: {{index.At(0)}},
		1: {{index.At(1)}},
	})
	require.NoError(t, err)

	out, err := Reduce(KernelProd, arr, 1, ReduceOptions{})
	require.NoError(t, err)
	assert.Equal(t, []float64{6, 120}, toHostF64(t, out.(*Array)))
}

func TestReduceMaxOverlap(t *testing.T) {
	b := newTestBackend(2)
	src := seqHost(t, index.Shape{4, 4}, Float64)

	arr, err := FromHost(b, src, overlapRows4x4())
	require.NoError(t, err)

	out, err := Reduce(KernelMax, arr, 0, ReduceOptions{})
	require.NoError(t, err)
	result := out.(*Array)
	assert.Equal(t, "max", result.Mode())
	assert.Equal(t, []float64{13, 14, 15, 16}, toHostF64(t, result))
}

func TestReduceMinSameMode(t *testing.T) {
	b := newTestBackend(2)
	src := seqHost(t, index.Shape{4, 4}, Float64)

	arr, err := FromHost(b, src, rowSplit4x4(), WithMode("min"))
	require.NoError(t, err)

	out, err := Reduce(KernelMin, arr, 1, ReduceOptions{})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 5, 9, 13}, toHostF64(t, out.(*Array)))
}

func TestReduceMinAfterReshard(t *testing.T) {
	b := newTestBackend(2)
	src := seqHost(t, index.Shape{4, 4}, Float64)

	arr, err := FromHost(b, src, rowSplit4x4(), WithMode("min"))
	require.NoError(t, err)
	pending, err := arr.Reshard(overlapRows4x4())
	require.NoError(t, err)

	// The resharded chunks still hold undone transfers; the reduction
	// folds them through its own update path.
	out, err := Reduce(KernelMin, pending, 1, ReduceOptions{})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 5, 9, 13}, toHostF64(t, out.(*Array)))
}

func TestReduceSumAfterReshard(t *testing.T) {
	b := newTestBackend(2)
	src := seqHost(t, index.Shape{4, 4}, Float64)

	arr, err := FromHost(b, src, rowSplit4x4())
	require.NoError(t, err)
	pending, err := arr.Reshard(colSplit4x4())
	require.NoError(t, err)

	out, err := Reduce(KernelSum, pending, 0, ReduceOptions{})
	require.NoError(t, err)
	assert.Equal(t, []float64{28, 32, 36, 40}, toHostF64(t, out.(*Array)))
}

func TestReduceDTypeOption(t *testing.T) {
	b := newTestBackend(2)
	src := seqHost(t, index.Shape{4, 4}, Int32)

	arr, err := FromHost(b, src, rowSplit4x4())
	require.NoError(t, err)

	dt := Float64
	out, err := Reduce(KernelSum, arr, 0, ReduceOptions{DType: &dt})
	require.NoError(t, err)
	result := out.(*Array)
	assert.Equal(t, Float64, result.DType())
	assert.Equal(t, []float64{28, 32, 36, 40}, toHostF64(t, result))
}

func TestReduceVectorToSingleElement(t *testing.T) {
	b := newTestBackend(2)
	src := seqHost(t, index.Shape{4}, Float64)

	arr, err := FromHost(b, src, map[device.ID][]index.Index{
		0: {{index.Span(0, 2)}},
		1: {{index.Span(2, 4)}},
	})
	require.NoError(t, err)

	out, err := Reduce(KernelSum, arr, 0, ReduceOptions{})
	require.NoError(t, err)
	result := out.(*Array)
	assert.True(t, result.Shape().Equal(index.Shape{1}))
	assert.Equal(t, []float64{10}, toHostF64(t, result))
}

func TestReduceErrors(t *testing.T) {
	b := newTestBackend(2)
	src := seqHost(t, index.Shape{4, 4}, Float64)

	arr, err := FromHost(b, src, rowSplit4x4())
	require.NoError(t, err)

	t.Run("out buffer", func(t *testing.T) {
		_, err := Reduce(KernelSum, arr, 0, ReduceOptions{Out: src})
		assert.ErrorIs(t, err, ErrUnsupportedReductionOption)
	})

	t.Run("keepdims", func(t *testing.T) {
		_, err := Reduce(KernelSum, arr, 0, ReduceOptions{KeepDims: true})
		assert.ErrorIs(t, err, ErrUnsupportedReductionOption)
	})

	t.Run("axis out of range", func(t *testing.T) {
		_, err := Reduce(KernelSum, arr, 2, ReduceOptions{})
		assert.ErrorIs(t, err, ErrMalformedIndex)

		_, err = Reduce(KernelSum, arr, -1, ReduceOptions{})
		assert.ErrorIs(t, err, ErrMalformedIndex)
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := Reduce(&ReductionKernel{Name: "mean", Kind: "mean"}, arr, 0, ReduceOptions{})
		assert.ErrorIs(t, err, ErrInvalidModeName)
	})

	t.Run("replica kind", func(t *testing.T) {
		_, err := Reduce(&ReductionKernel{Name: "copy", Kind: ReplicaMode}, arr, 0, ReduceOptions{})
		assert.ErrorIs(t, err, ErrInvalidModeName)
	})
}
