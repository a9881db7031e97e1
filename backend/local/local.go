// Copyright 2026 Darray Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package local

import (
	internallocal "github.com/darray-ml/darray/internal/backend/local"
)

// Backend simulates a set of compute devices over host memory. It
// provides per-device execution streams with event ordering and the
// matched point-to-point transport the distributed array core requires.
type Backend = internallocal.Backend

// Option configures a Backend.
type Option = internallocal.Option

// Topology describes the simulated device set.
type Topology = internallocal.Topology

// WithLogger installs a structured logger on the backend.
var WithLogger = internallocal.WithLogger

// New creates a backend with n devices numbered 0..n-1.
//
// Example:
//
//	import (
//	    "github.com/darray-ml/darray/backend/local"
//	    "github.com/darray-ml/darray/darray"
//	)
//
//	func main() {
//	    backend := local.New(4)
//	    arr, _ := darray.MakeDistributed(backend, src, indexMap)
//	    _ = arr
//	}
func New(n int, opts ...Option) *Backend {
	return internallocal.New(n, opts...)
}

// FromConfig creates a backend from a YAML topology file.
func FromConfig(path string, opts ...Option) (*Backend, error) {
	return internallocal.FromConfig(path, opts...)
}
