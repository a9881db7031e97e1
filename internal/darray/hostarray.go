package darray

import (
	"fmt"

	"github.com/darray-ml/darray/internal/index"
)

// HostArray is a dense row-major N-dimensional array in host memory.
// It is the source for distributing an array over devices and the
// result of materializing one back.
type HostArray struct {
	shape index.Shape
	dtype DataType
	data  []byte
}

// NewHost allocates a zero-filled host array.
func NewHost(shape index.Shape, dtype DataType) (*HostArray, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	return &HostArray{
		shape: shape.Clone(),
		dtype: dtype,
		data:  make([]byte, shape.NumElements()*dtype.Size()),
	}, nil
}

// HostFromFloat64 builds a host array from row-major values, converted
// to the given element type.
func HostFromFloat64(shape index.Shape, dtype DataType, vals []float64) (*HostArray, error) {
	h, err := NewHost(shape, dtype)
	if err != nil {
		return nil, err
	}
	if len(vals) != shape.NumElements() {
		return nil, fmt.Errorf("data length %d does not match shape %v", len(vals), shape)
	}
	for i, v := range vals {
		store(h.data, dtype, i, v)
	}
	return h, nil
}

// Shape returns the array's shape.
func (h *HostArray) Shape() index.Shape { return h.shape }

// DType returns the array's element type.
func (h *HostArray) DType() DataType { return h.dtype }

// Bytes exposes the underlying storage.
func (h *HostArray) Bytes() []byte { return h.data }

// At returns the element at the given coordinates, widened to float64.
func (h *HostArray) At(coords ...int) float64 {
	return load(h.data, h.dtype, h.offset(coords))
}

// Set writes the element at the given coordinates.
func (h *HostArray) Set(v float64, coords ...int) {
	store(h.data, h.dtype, h.offset(coords), v)
}

func (h *HostArray) offset(coords []int) int {
	if len(coords) != len(h.shape) {
		panic(fmt.Sprintf("expected %d coordinates, got %d", len(h.shape), len(coords)))
	}
	strides := h.shape.ComputeStrides()
	off := 0
	for d, c := range coords {
		if c < 0 || c >= h.shape[d] {
			panic(fmt.Sprintf("coordinate %d out of range for axis %d with size %d", c, d, h.shape[d]))
		}
		off += c * strides[d]
	}
	return off
}

// Float64s returns the elements in row-major order, widened to float64.
func (h *HostArray) Float64s() []float64 {
	n := h.shape.NumElements()
	out := make([]float64, n)
	for i := range out {
		out[i] = load(h.data, h.dtype, i)
	}
	return out
}

// Clone deep-copies the host array.
func (h *HostArray) Clone() *HostArray {
	data := make([]byte, len(h.data))
	copy(data, h.data)
	return &HostArray{shape: h.shape.Clone(), dtype: h.dtype, data: data}
}

// Equal reports whether two host arrays have identical shape, type,
// and contents.
func (h *HostArray) Equal(other *HostArray) bool {
	if !h.shape.Equal(other.shape) || h.dtype != other.dtype {
		return false
	}
	for i := 0; i < h.shape.NumElements(); i++ {
		if load(h.data, h.dtype, i) != load(other.data, other.dtype, i) {
			return false
		}
	}
	return true
}

func (h *HostArray) isOperand() {}
