// Copyright 2026 Darray Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package darray provides the public API for distributed N-dimensional
// arrays: a logical array sharded into per-device chunks with
// asynchronous, stream-ordered consistency maintenance.
//
// Example:
//
//	backend := local.New(2)
//	src, _ := darray.HostFromFloat64(darray.Shape{4, 4}, darray.Float64, vals)
//	arr, _ := darray.MakeDistributed(backend, src, map[darray.DeviceID][]darray.Index{
//	    0: {{darray.Span(0, 2)}},
//	    1: {{darray.Span(2, 4)}},
//	})
//	sum, _ := darray.Elementwise(darray.KernelAdd, arr, arr)
//	host, _ := sum.(*darray.Array).ToHost()
package darray

import (
	"github.com/darray-ml/darray/internal/darray"
	"github.com/darray-ml/darray/internal/device"
	"github.com/darray-ml/darray/internal/index"
)

// Core types.

// Array is a distributed N-dimensional array.
type Array = darray.Array

// HostArray is a dense host-resident array.
type HostArray = darray.HostArray

// Shape represents array dimensions.
type Shape = index.Shape

// Slice selects a strided interval of one axis.
type Slice = index.Slice

// Index addresses a rectangular strided region, one Slice per axis.
type Index = index.Index

// DeviceID identifies a compute device.
type DeviceID = device.ID

// DataType represents runtime element type information.
type DataType = darray.DataType

// Element type constants.
const (
	Float32 DataType = darray.Float32
	Float64 DataType = darray.Float64
	Int32   DataType = darray.Int32
	Int64   DataType = darray.Int64
)

// ReplicaMode names the fully replicated consistency mode. The op
// modes are "sum", "prod", "min", and "max".
const ReplicaMode = darray.ReplicaMode

// Region constructors.

// Span selects the half-open interval [start, stop) with unit step.
func Span(start, stop int) Slice { return index.Span(start, stop) }

// Strided selects every step-th position in [start, stop).
func Strided(start, stop, step int) Slice { return index.Strided(start, stop, step) }

// At selects the single position i.
func At(i int) Slice { return index.At(i) }

// End may be used as a Slice's Stop to select through the axis end.
const End = index.End

// Construction.

// Option configures array construction.
type Option = darray.Option

// WithMode selects the initial consistency mode (default "replica").
func WithMode(name string) Option { return darray.WithMode(name) }

// WithLogger installs a structured logger on the array.
var WithLogger = darray.WithLogger

// MakeDistributed shards a host array over devices according to
// indexMap. Each region is a tuple of per-axis slices with positive
// steps; a device may hold several disjoint regions.
func MakeDistributed(b device.Backend, src *HostArray, indexMap map[DeviceID][]Index, opts ...Option) (*Array, error) {
	return darray.FromHost(b, src, indexMap, opts...)
}

// NewHost allocates a zero-filled host array.
func NewHost(shape Shape, dtype DataType) (*HostArray, error) {
	return darray.NewHost(shape, dtype)
}

// HostFromFloat64 builds a host array from row-major values.
func HostFromFloat64(shape Shape, dtype DataType, vals []float64) (*HostArray, error) {
	return darray.HostFromFloat64(shape, dtype, vals)
}

// Kernel dispatch.

// Operand is anything a kernel can be dispatched over.
type Operand = darray.Operand

// ElementwiseKernel computes one output element per position.
type ElementwiseKernel = darray.ElementwiseKernel

// ReductionKernel reduces one axis under an associative operator.
type ReductionKernel = darray.ReductionKernel

// ReduceOptions carries optional reduction arguments; Out and KeepDims
// are unsupported and rejected.
type ReduceOptions = darray.ReduceOptions

// DistributedDispatch is the capability interface queried by the
// dispatcher before its default host path.
type DistributedDispatch = darray.DistributedDispatch

// Builtin kernels.
var (
	KernelAdd      = darray.KernelAdd
	KernelMultiply = darray.KernelMultiply
	KernelMaximum  = darray.KernelMaximum
	KernelMinimum  = darray.KernelMinimum

	KernelSum  = darray.KernelSum
	KernelProd = darray.KernelProd
	KernelMin  = darray.KernelMin
	KernelMax  = darray.KernelMax
)

// Elementwise dispatches an elementwise kernel over operands.
func Elementwise(kernel *ElementwiseKernel, operands ...Operand) (Operand, error) {
	return darray.Elementwise(kernel, operands...)
}

// Reduce dispatches an axis reduction over one operand.
func Reduce(kernel *ReductionKernel, target Operand, axis int, opts ReduceOptions) (Operand, error) {
	return darray.Reduce(kernel, target, axis, opts)
}

// Errors.
var (
	ErrShapeMismatch              = darray.ErrShapeMismatch
	ErrIndexMapMismatch           = darray.ErrIndexMapMismatch
	ErrMixedOperands              = darray.ErrMixedOperands
	ErrUnsupportedReductionOption = darray.ErrUnsupportedReductionOption
	ErrInvalidModeName            = darray.ErrInvalidModeName
	ErrKernelResultType           = darray.ErrKernelResultType
	ErrMalformedIndex             = darray.ErrMalformedIndex
	ErrCommunicatorUnavailable    = darray.ErrCommunicatorUnavailable
)
