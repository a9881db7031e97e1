package darray

import (
	"github.com/darray-ml/darray/internal/device"
	"github.com/darray-ml/darray/internal/index"
)

// applyAndUpdate applies src onto dst under an op mode: the intersected
// sub-region is copied out of src, transferred to dst's device, and
// enqueued on dst as a deferred partial update. src must have no undone
// partial updates.
//
// For non-idempotent operators the copied source region is then reset
// to the operator's identity on the source's own stream, ordered
// strictly after the copy-out, so repeated reductions never count that
// contribution twice.
func (e *engine) applyAndUpdate(opMode *Mode, shape index.Shape, src, dst *Chunk) error {
	intersection, ok := index.Intersection(src.idx, dst.idx, shape)
	if !ok {
		return nil
	}
	srcRel := index.ForSubindex(src.idx, intersection, shape)
	dstRel := index.ForSubindex(dst.idx, intersection, shape)

	data := e.sliceChunk(src, srcRel)

	var copyDone device.Event
	if !opMode.Idempotent {
		copyDone = data.record()
	}

	update, err := e.transferAsync(data, dst.buf.Device())
	if err != nil {
		return err
	}
	dst.updates = append(dst.updates, partialUpdate{transfer: update, idx: dstRel})

	if !opMode.Idempotent {
		identity := opMode.IdentityOf(e.dtype)
		src.stream.Wait(copyDone)
		buf, bufShape := src.buf, src.shape
		src.stream.Launch(func() {
			fillRegion(buf.Bytes(), bufShape, srcRel, e.dtype, identity)
		})
	}
	return nil
}

// copyOnIntersection propagates src's value onto dst wherever their
// regions intersect, with replica (overwrite) semantics and no source
// reset. src must have no undone partial updates.
func (e *engine) copyOnIntersection(shape index.Shape, src, dst *Chunk) error {
	intersection, ok := index.Intersection(src.idx, dst.idx, shape)
	if !ok {
		return nil
	}
	srcRel := index.ForSubindex(src.idx, intersection, shape)
	dstRel := index.ForSubindex(dst.idx, intersection, shape)

	data := e.sliceChunk(src, srcRel)
	update, err := e.transferAsync(data, dst.buf.Device())
	if err != nil {
		return err
	}
	dst.updates = append(dst.updates, partialUpdate{transfer: update, idx: dstRel})
	return nil
}

// allReduceIntersections reduces every pairwise chunk intersection
// under opMode and restores full replication, in two passes over the
// flattened device-ordered chunk list.
//
// Forward pass: chunk i drains its own pending updates, then folds its
// contribution onto every later chunk, so the last chunk ends up fully
// reduced. Backward pass: chunk j drains under replica semantics, then
// copies its now-authoritative value back onto every earlier chunk.
// O(n²) pairwise, acceptable because n is bounded by the shard count.
func (e *engine) allReduceIntersections(opMode *Mode, shape index.Shape, chunks []*Chunk) error {
	for i, src := range chunks {
		src.applyUpdates(opMode, e.dtype)
		for _, dst := range chunks[i+1:] {
			if err := e.applyAndUpdate(opMode, shape, src, dst); err != nil {
				return err
			}
		}
	}

	for j := len(chunks) - 1; j >= 0; j-- {
		src := chunks[j]
		src.applyUpdates(replicaMode, e.dtype)
		for _, dst := range chunks[:j] {
			if err := e.copyOnIntersection(shape, src, dst); err != nil {
				return err
			}
		}
	}
	return nil
}

// setIdentityOnIntersection fills the part of chunk a that also lies in
// region bIdx with the identity value, on a's own stream.
func (e *engine) setIdentityOnIntersection(shape index.Shape, identity float64, a *Chunk, bIdx index.Index) {
	intersection, ok := index.Intersection(a.idx, bIdx, shape)
	if !ok {
		return
	}
	rel := index.ForSubindex(a.idx, intersection, shape)
	buf, bufShape := a.buf, a.shape
	a.stream.Launch(func() {
		fillRegion(buf.Bytes(), bufShape, rel, e.dtype, identity)
	})
}

// setIdentityOnIgnoredEntries fills the regions of the chunk's base
// buffer that pending updates will overwrite with the identity value,
// so the stale base copy of a duplicated cell cannot contribute.
func (e *engine) setIdentityOnIgnoredEntries(identity float64, c *Chunk) {
	buf, bufShape := c.buf, c.shape
	for _, u := range c.updates {
		rel := u.idx
		c.stream.Launch(func() {
			fillRegion(buf.Bytes(), bufShape, rel, e.dtype, identity)
		})
	}
}
