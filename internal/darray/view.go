package darray

import (
	"github.com/darray-ml/darray/internal/index"
	"github.com/darray-ml/darray/internal/parallel"
)

// Chunk buffers are dense row-major arrays of the chunk's own shape.
// A region is a normalized index relative to that shape; the helpers
// below enumerate the region's elements in row-major order of the
// region itself, so element k of a region always corresponds to element
// k of a contiguous payload of the region's shape.

var loopCfg = parallel.DefaultConfig()

// regionWalk precomputes the mapping from the k-th region element to
// its offset in the enclosing dense buffer.
type regionWalk struct {
	n          int
	regShape   index.Shape
	regStrides []int // strides of the region's own shape
	starts     []int // region start offset per axis, in buffer elements
	steps      []int // region step per axis, in buffer elements
}

func newRegionWalk(shape index.Shape, region index.Index) regionWalk {
	regShape := index.ShapeAfterIndexing(shape, region)
	strides := shape.ComputeStrides()
	w := regionWalk{
		n:          regShape.NumElements(),
		regShape:   regShape,
		regStrides: regShape.ComputeStrides(),
		starts:     make([]int, len(shape)),
		steps:      make([]int, len(shape)),
	}
	for d := range shape {
		w.starts[d] = region[d].Start * strides[d]
		w.steps[d] = region[d].Step * strides[d]
	}
	return w
}

// offset returns the dense-buffer element offset of the k-th region
// element.
func (w regionWalk) offset(k int) int {
	off := 0
	for d := range w.regShape {
		i := (k / w.regStrides[d]) % w.regShape[d]
		off += w.starts[d] + i*w.steps[d]
	}
	return off
}

// copyRegion extracts a region of src into a contiguous dst.
func copyRegion(dst, src []byte, srcShape index.Shape, region index.Index, dt DataType) {
	w := newRegionWalk(srcShape, region)
	parallel.For(w.n, func(k int) {
		store(dst, dt, k, load(src, dt, w.offset(k)))
	}, loopCfg)
}

// assignRegion overwrites a region of dst with a contiguous payload.
func assignRegion(dst []byte, dstShape index.Shape, region index.Index, payload []byte, dt DataType) {
	w := newRegionWalk(dstShape, region)
	parallel.For(w.n, func(k int) {
		store(dst, dt, w.offset(k), load(payload, dt, k))
	}, loopCfg)
}

// combineRegion folds a contiguous payload into a region of dst with
// the given operator.
func combineRegion(dst []byte, dstShape index.Shape, region index.Index, payload []byte, dt DataType, combine func(a, b float64) float64) {
	w := newRegionWalk(dstShape, region)
	parallel.For(w.n, func(k int) {
		off := w.offset(k)
		store(dst, dt, off, combine(load(dst, dt, off), load(payload, dt, k)))
	}, loopCfg)
}

// fillRegion sets every element of a region of dst to value.
func fillRegion(dst []byte, dstShape index.Shape, region index.Index, dt DataType, value float64) {
	w := newRegionWalk(dstShape, region)
	parallel.For(w.n, func(k int) {
		store(dst, dt, w.offset(k), value)
	}, loopCfg)
}

// fill sets every element of a dense buffer to value.
func fill(dst []byte, dt DataType, value float64) {
	n := len(dst) / dt.Size()
	parallel.For(n, func(k int) {
		store(dst, dt, k, value)
	}, loopCfg)
}

// mapElements applies op elementwise over dense argument buffers of
// identical shape, writing the dense result to out.
func mapElements(out []byte, dt DataType, args [][]byte, op func(vals []float64) float64) {
	n := len(out) / dt.Size()
	parallel.For(n, func(k int) {
		vals := make([]float64, len(args))
		for i, a := range args {
			vals[i] = load(a, dt, k)
		}
		store(out, dt, k, op(vals))
	}, loopCfg)
}

// mapRegion applies op elementwise over a region of dense argument
// buffers, with the argument at substitute replaced by a contiguous
// payload of the region's shape. The dense result has the region's
// shape. substitute < 0 means no substitution.
func mapRegion(out []byte, dt DataType, args [][]byte, argShape index.Shape, region index.Index,
	substitute int, payload []byte, op func(vals []float64) float64) {
	w := newRegionWalk(argShape, region)
	parallel.For(w.n, func(k int) {
		off := w.offset(k)
		vals := make([]float64, len(args))
		for i, a := range args {
			if i == substitute {
				vals[i] = load(payload, dt, k)
			} else {
				vals[i] = load(a, dt, off)
			}
		}
		store(out, dt, k, op(vals))
	}, loopCfg)
}

// reduceAxis folds a dense buffer of shape srcShape along axis,
// returning a dense buffer of the shape with that axis removed (kept
// 1-dimensional at minimum by the caller).
func reduceAxis(src []byte, srcShape index.Shape, dt, outDT DataType, axis int, combine func(a, b float64) float64) []byte {
	outShape := shapeWithoutAxis(srcShape, axis)
	srcStrides := srcShape.ComputeStrides()
	outStrides := outShape.ComputeStrides()

	out := make([]byte, outShape.NumElements()*outDT.Size())
	parallel.For(outShape.NumElements(), func(k int) {
		// Base offset of the output cell within src.
		base := 0
		for d, od := 0, 0; d < len(srcShape); d++ {
			if d == axis {
				continue
			}
			i := (k / outStrides[od]) % outShape[od]
			base += i * srcStrides[d]
			od++
		}
		acc := load(src, dt, base)
		for j := 1; j < srcShape[axis]; j++ {
			acc = combine(acc, load(src, dt, base+j*srcStrides[axis]))
		}
		store(out, outDT, k, acc)
	}, loopCfg)
	return out
}

// shapeWithoutAxis drops one axis from a shape.
func shapeWithoutAxis(s index.Shape, axis int) index.Shape {
	out := make(index.Shape, 0, len(s)-1)
	out = append(out, s[:axis]...)
	out = append(out, s[axis+1:]...)
	return out
}

// indexWithoutAxis drops one axis from an index.
func indexWithoutAxis(idx index.Index, axis int) index.Index {
	out := make(index.Index, 0, len(idx)-1)
	out = append(out, idx[:axis]...)
	out = append(out, idx[axis+1:]...)
	return out
}
