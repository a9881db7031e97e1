// Package darray implements chunk-based distributed N-dimensional arrays:
// a logical array sharded into per-device chunks, each bound to one
// execution stream, with replica and associative-operator consistency
// modes, asynchronous cross-device transfers, and slice-intersection
// based reduction and resharding.
package darray

import (
	"math"
	"unsafe"
)

// DataType represents runtime element type information.
type DataType int

// Supported element types.
const (
	Float32 DataType = iota
	Float64
	Int32
	Int64
)

// Size returns the byte size of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	case Float64, Int64:
		return 8
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	default:
		return "unknown"
	}
}

// load reads element i of a buffer holding dt elements, widened to
// float64 for generic processing.
func load(b []byte, dt DataType, i int) float64 {
	switch dt {
	case Float32:
		return float64(unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), len(b)/4)[i])
	case Float64:
		return unsafe.Slice((*float64)(unsafe.Pointer(&b[0])), len(b)/8)[i]
	case Int32:
		return float64(unsafe.Slice((*int32)(unsafe.Pointer(&b[0])), len(b)/4)[i])
	case Int64:
		return float64(unsafe.Slice((*int64)(unsafe.Pointer(&b[0])), len(b)/8)[i])
	default:
		panic("unknown data type")
	}
}

// store writes v into element i of a buffer holding dt elements.
// Values beyond an integer type's range saturate to its bounds: a plain
// int64(v) is implementation-dependent there, and float64(math.MaxInt64)
// itself rounds up to 2^63, so the min-mode identity must clamp to
// survive the round trip as a huge positive value.
func store(b []byte, dt DataType, i int, v float64) {
	switch dt {
	case Float32:
		unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), len(b)/4)[i] = float32(v)
	case Float64:
		unsafe.Slice((*float64)(unsafe.Pointer(&b[0])), len(b)/8)[i] = v
	case Int32:
		unsafe.Slice((*int32)(unsafe.Pointer(&b[0])), len(b)/4)[i] = clampInt32(v)
	case Int64:
		unsafe.Slice((*int64)(unsafe.Pointer(&b[0])), len(b)/8)[i] = clampInt64(v)
	default:
		panic("unknown data type")
	}
}

func clampInt32(v float64) int32 {
	switch {
	case v >= math.MaxInt32:
		return math.MaxInt32
	case v <= math.MinInt32:
		return math.MinInt32
	}
	return int32(v)
}

func clampInt64(v float64) int64 {
	// The comparison converts math.MaxInt64 to 2^63; every float64
	// strictly below that fits in int64.
	switch {
	case v >= math.MaxInt64:
		return math.MaxInt64
	case v <= math.MinInt64:
		return math.MinInt64
	}
	return int64(v)
}

// Identity values per operator, widened to float64.

func zeroValueOf(DataType) float64 { return 0 }

func oneValueOf(DataType) float64 { return 1 }

func minValueOf(dt DataType) float64 {
	switch dt {
	case Float32, Float64:
		return math.Inf(-1)
	case Int32:
		return math.MinInt32
	case Int64:
		return math.MinInt64
	default:
		panic("unknown data type")
	}
}

func maxValueOf(dt DataType) float64 {
	switch dt {
	case Float32, Float64:
		return math.Inf(1)
	case Int32:
		return math.MaxInt32
	case Int64:
		return math.MaxInt64
	default:
		panic("unknown data type")
	}
}
