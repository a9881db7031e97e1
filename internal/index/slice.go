package index

import (
	"errors"
	"fmt"
	"sort"
)

// ErrMalformed reports an index that cannot describe a chunk region:
// zero or negative slice steps, empty axes, out-of-range positions,
// or too many axes for the array's shape.
var ErrMalformed = errors.New("malformed index")

// End may be used as the Stop of a Slice to select through the end of
// the axis; Normalize resolves it against the shape.
const End = -1

// Slice selects every Step-th position in the half-open interval
// [Start, Stop) of one axis. The zero Slice selects the whole axis.
// Steps are always positive after normalization.
type Slice struct {
	Start, Stop, Step int
}

// Span selects the half-open interval [start, stop) with unit step.
func Span(start, stop int) Slice {
	return Slice{Start: start, Stop: stop, Step: 1}
}

// Strided selects every step-th position in [start, stop).
func Strided(start, stop, step int) Slice {
	return Slice{Start: start, Stop: stop, Step: step}
}

// At selects the single position i, as a width-1 slice.
func At(i int) Slice {
	return Slice{Start: i, Stop: i + 1, Step: 1}
}

// Len returns the number of positions the slice selects.
// The slice must be normalized (Step > 0, Stop resolved).
func (s Slice) Len() int {
	if s.Stop <= s.Start {
		return 0
	}
	return (s.Stop-s.Start-1)/s.Step + 1
}

// Index addresses a rectangular strided region of an array, one Slice
// per axis.
type Index []Slice

// Clone returns a copy of the index.
func (idx Index) Clone() Index {
	c := make(Index, len(idx))
	copy(c, idx)
	return c
}

// Equal reports whether two normalized indexes select the same region.
func (idx Index) Equal(other Index) bool {
	if len(idx) != len(other) {
		return false
	}
	for i := range idx {
		if idx[i] != other[i] {
			return false
		}
	}
	return true
}

// extGCD returns (g, x) with g = gcd(a, b) and a*x + b*y = g for some y.
// a, b > 0 is assumed.
func extGCD(a, b int) (g, x int) {
	c, d := a, b
	x, u := 1, 0
	for d != 0 {
		r := c / d
		c, d = d, c-d*r
		x, u = u, x-u*r
	}
	return c, x
}

// floorMod returns the non-negative remainder of v modulo m, m > 0.
func floorMod(v, m int) int {
	return (v%m + m) % m
}

// SliceIntersection returns the intersection of two normalized slices
// over an axis of the given length, or ok=false if they are disjoint.
//
// The steps need not be equal or unit: the positions selected by a and
// b form arithmetic progressions, and their common positions (if any)
// form another one whose step is lcm(a.Step, b.Step). The aligned start
// comes from the extended Euclidean algorithm; the progressions share
// no position at all when the starts are incongruent modulo
// gcd(a.Step, b.Step).
func SliceIntersection(a, b Slice, length int) (Slice, bool) {
	aStop := min(a.Stop, length)
	bStop := min(b.Stop, length)

	g, x := extGCD(a.Step, b.Step)
	if (b.Start-a.Start)%g != 0 {
		return Slice{}, false
	}

	cStep := a.Step / g * b.Step

	// a.Start + a.Step*aSkip is the smallest common position >= a.Start.
	aSkip := floorMod(x*((b.Start-a.Start)/g), cStep/a.Step)
	cStart := a.Start + a.Step*aSkip
	if cStart < b.Start {
		cStart += ((b.Start-cStart-1)/cStep + 1) * cStep
	}

	cStop := min(aStop, bStop)
	if cStart >= cStop {
		return Slice{}, false
	}
	return Slice{Start: cStart, Stop: cStop, Step: cStep}, true
}

// ForSubslice returns the slice c such that axis[a][c] selects the same
// positions as axis[sub]. sub must be contained in a.
func ForSubslice(a, sub Slice) Slice {
	cStart := (sub.Start - a.Start) / a.Step
	cStop := (sub.Stop-a.Start-1)/a.Step + 1
	cStep := sub.Step / a.Step
	return Slice{Start: cStart, Stop: cStop, Step: cStep}
}

// Intersection returns the per-axis intersection of two normalized
// indexes over the given shape, or ok=false if any axis is disjoint.
func Intersection(a, b Index, shape Shape) (Index, bool) {
	result := make(Index, len(shape))
	for i := range shape {
		s, ok := SliceIntersection(a[i], b[i], shape[i])
		if !ok {
			return nil, false
		}
		result[i] = s
	}
	return result, true
}

// ForSubindex maps the absolute region sub back to coordinates local to
// outer, so that array[outer][result] selects array[sub]. sub must be
// contained in outer.
func ForSubindex(outer, sub Index, shape Shape) Index {
	result := make(Index, len(shape))
	for i := range shape {
		result[i] = ForSubslice(outer[i], sub[i])
	}
	return result
}

// ShapeAfterIndexing returns the shape of the region idx selects out of
// an array of shape outer.
func ShapeAfterIndexing(outer Shape, idx Index) Shape {
	shape := make(Shape, len(outer))
	for i := range outer {
		shape[i] = idx[i].Len()
	}
	return shape
}

// Normalize converts a user-supplied region into a full-rank Index with
// nonnegative bounds, resolved End stops, and positive steps. Missing
// trailing axes select their whole dimension. Any region that fails to
// select at least one element on every axis is rejected.
func Normalize(shape Shape, region Index) (Index, error) {
	ndim := len(shape)
	if len(region) > ndim {
		return nil, fmt.Errorf("%w: too many axes: array is %d-dimensional, but %d were indexed",
			ErrMalformed, ndim, len(region))
	}

	result := make(Index, ndim)
	for i := 0; i < ndim; i++ {
		var s Slice
		if i < len(region) {
			s = region[i]
		}
		if s == (Slice{}) {
			s = Slice{Start: 0, Stop: shape[i], Step: 1}
		}
		if s.Stop == End {
			s.Stop = shape[i]
		}
		if s.Step == 0 {
			return nil, fmt.Errorf("%w: slice step must be nonzero on axis %d", ErrMalformed, i)
		}
		if s.Step < 0 {
			return nil, fmt.Errorf("%w: negative slice step on axis %d", ErrMalformed, i)
		}
		if s.Start < 0 {
			return nil, fmt.Errorf("%w: negative start %d on axis %d", ErrMalformed, s.Start, i)
		}
		if s.Start >= shape[i] {
			return nil, fmt.Errorf("%w: start %d is out of bounds for axis %d with size %d",
				ErrMalformed, s.Start, i, shape[i])
		}
		s.Stop = min(s.Stop, shape[i])
		if s.Start >= s.Stop {
			return nil, fmt.Errorf("%w: the index is empty on axis %d", ErrMalformed, i)
		}
		result[i] = s
	}
	return result, nil
}

// SortRegions orders normalized regions lexicographically by their
// per-axis (start, stop, step) triples. Chunk enumeration order feeds
// the accumulation order of non-idempotent reductions, so it must be
// stable across runs.
func SortRegions(regions []Index) {
	sort.Slice(regions, func(i, j int) bool {
		a, b := regions[i], regions[j]
		for k := range a {
			if a[k] != b[k] {
				if a[k].Start != b[k].Start {
					return a[k].Start < b[k].Start
				}
				if a[k].Stop != b[k].Stop {
					return a[k].Stop < b[k].Stop
				}
				return a[k].Step < b[k].Step
			}
		}
		return false
	})
}
