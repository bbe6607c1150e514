package fab

import (
	"fmt"

	"github.com/qri-io/fab-go/box"
)

// Buffers are laid out column-major ("F" order): axis 0 varies fastest,
// then the remaining axes in turn, and the component index slowest. A
// component's sub-array is therefore a standard Fortran array over the
// domain and can be handed to a kernel as is.

// layoutStrides returns the element stride of each axis of a column-major
// array over b and the stride between consecutive components
func layoutStrides(b box.Box) (st box.IntVect, compStride int) {
	s := 1
	for d := 0; d < box.SpaceDim; d++ {
		st[d] = s
		s *= b.Length(d)
	}
	return st, s
}

// KernelView is a raw view of a fab's storage with enough layout
// information for a column-major numerical routine to address every
// (point, component) slot on its own. Data aliases the fab's buffer.
type KernelView[T Number] struct {
	Data       []T
	Lo, Hi     box.IntVect
	Strides    box.IntVect
	CompStride int
	NComp      int
}

// Offset returns the position of (p, comp) in Data
func (v KernelView[T]) Offset(p box.IntVect, comp int) int {
	off := comp * v.CompStride
	for d := 0; d < box.SpaceDim; d++ {
		off += (p[d] - v.Lo[d]) * v.Strides[d]
	}
	return off
}

// Index maps a point of the domain and a component to a buffer offset. It
// panics when p is outside the domain or comp is out of range.
func (f *BaseFab[T]) Index(p box.IntVect, comp int) int {
	f.mustBeValid()
	if !f.domain.ContainsPoint(p) {
		panic(fmt.Sprintf("fab: point %s outside domain %s", p, f.domain))
	}
	if comp < 0 || comp >= f.ncomp {
		panic(fmt.Sprintf("fab: component %d outside [0, %d)", comp, f.ncomp))
	}
	return f.offset(p) + comp*f.compStride
}

func (f *BaseFab[T]) offset(p box.IntVect) int {
	off := 0
	for d := 0; d < box.SpaceDim; d++ {
		off += (p[d] - f.domain.Lo[d]) * f.strides[d]
	}
	return off
}

// nextPencil advances p over axes 1..SpaceDim-1 of sub, axis 0 being
// covered by a whole run. It reports false once every pencil is visited.
func nextPencil(p *box.IntVect, sub box.Box) bool {
	for d := 1; d < box.SpaceDim; d++ {
		p[d]++
		if p[d] <= sub.Hi[d] {
			return true
		}
		p[d] = sub.Lo[d]
	}
	return false
}

// forEachRun calls fn with each contiguous axis-0 run of the buffer
// addressed by sub and components [scomp, scomp+n), in storage order. The
// runs alias the buffer. sub must be non-empty and inside the domain.
func (f *BaseFab[T]) forEachRun(sub box.Box, scomp, n int, fn func(run []T)) {
	runLen := sub.Length(0)
	for c := scomp; c < scomp+n; c++ {
		p := sub.Lo
		for {
			off := f.offset(p) + c*f.compStride
			fn(f.buf[off : off+runLen])
			if !nextPencil(&p, sub) {
				break
			}
		}
	}
}

// regionProjection maps a region of a source fab onto an equally shaped
// region of a destination fab
type regionProjection struct {
	// Region of the source fab being read
	SrcBox box.Box
	// Point of the destination fab that SrcBox.Lo lands on
	DestLo box.IntVect
	// First source and destination components, and how many
	SrcComp, DestComp, NComp int
}

// copyProjection copies every run of rp from src into dst
func copyProjection[T Number](dst, src *BaseFab[T], rp regionProjection) {
	runLen := rp.SrcBox.Length(0)
	var delta box.IntVect
	for d := 0; d < box.SpaceDim; d++ {
		delta[d] = rp.DestLo[d] - rp.SrcBox.Lo[d]
	}
	for c := 0; c < rp.NComp; c++ {
		p := rp.SrcBox.Lo
		for {
			so := src.offset(p) + (rp.SrcComp+c)*src.compStride
			do := dst.offset(p.Add(delta)) + (rp.DestComp+c)*dst.compStride
			copy(dst.buf[do:do+runLen], src.buf[so:so+runLen])
			if !nextPencil(&p, rp.SrcBox) {
				break
			}
		}
	}
}
