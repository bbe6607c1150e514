package fab

import (
	"fmt"
	"math"

	"github.com/qri-io/fab-go/box"
)

// emptyBox is the domain reported by a fab without storage
var emptyBox = box.New(box.Splat(0), box.Splat(-1))

// noCopy makes go vet's copylocks check flag value copies of a fab
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// BaseFab is a dense multi-component array over a box. It owns exactly one
// buffer of Box().Volume()*NComp() elements laid out column-major with the
// component varying slowest.
//
// The zero value is an invalid fab with no storage. NewBaseFab or Resize
// make it valid, Clear returns it to the invalid state. A BaseFab must not
// be copied by value: use Clone or Copy to duplicate data.
//
// A BaseFab does no locking. Mutating calls must not run concurrently with
// any other call on the same fab.
type BaseFab[T Number] struct {
	noCopy noCopy

	domain     box.Box
	ncomp      int
	buf        []T
	strides    box.IntVect
	compStride int
	alloc      Allocator[T]
}

// NewBaseFab allocates a fab over b with ncomp components. A nil alloc
// uses the heap. The buffer contents are zero. An empty b gives a valid
// fab with no slots.
func NewBaseFab[T Number](b box.Box, ncomp int, alloc Allocator[T]) (*BaseFab[T], error) {
	f := &BaseFab[T]{alloc: alloc}
	if _, err := f.resize(b, ncomp); err != nil {
		return nil, err
	}
	return f, nil
}

// IsValid reports whether f owns storage
func (f *BaseFab[T]) IsValid() bool { return f.buf != nil }

// Box returns the domain of f, an empty box when f is invalid
func (f *BaseFab[T]) Box() box.Box {
	if !f.IsValid() {
		return emptyBox
	}
	return f.domain
}

// NComp returns the number of components, zero when f is invalid
func (f *BaseFab[T]) NComp() int { return f.ncomp }

// Size returns the number of allocated element slots
func (f *BaseFab[T]) Size() int { return len(f.buf) }

// Resize re-establishes the domain and component count of f. A new buffer
// is allocated when the slot count changes, before the old one is
// released, so a failed allocation leaves f as it was. When the slot count
// is unchanged the buffer is kept but its contents no longer correspond to
// meaningful points of the new domain. Resizing to the current domain and
// component count does nothing.
func (f *BaseFab[T]) Resize(b box.Box, ncomp int) error {
	_, err := f.resize(b, ncomp)
	return err
}

// resize reports whether the buffer was reallocated or repurposed for a
// different shape
func (f *BaseFab[T]) resize(b box.Box, ncomp int) (changed bool, err error) {
	slots, err := slotCount(b, ncomp)
	if err != nil {
		return false, err
	}

	if f.IsValid() {
		if b == f.domain && ncomp == f.ncomp {
			return false, nil
		}
		if slots == len(f.buf) {
			f.setShape(b, ncomp)
			return true, nil
		}
	}

	buf, err := f.allocator().Alloc(slots)
	if err != nil {
		return false, fmt.Errorf("fab: allocating %d x %s: %w", ncomp, b, err)
	}
	if f.buf != nil {
		f.allocator().Free(f.buf)
	}
	f.buf = buf
	f.setShape(b, ncomp)
	return true, nil
}

func (f *BaseFab[T]) setShape(b box.Box, ncomp int) {
	f.domain = b
	f.ncomp = ncomp
	f.strides, f.compStride = layoutStrides(b)
}

func (f *BaseFab[T]) allocator() Allocator[T] {
	if f.alloc == nil {
		f.alloc = HeapAllocator[T]{}
	}
	return f.alloc
}

// slotCount validates a requested shape and returns its element count. An
// empty box has no slots.
func slotCount(b box.Box, ncomp int) (int, error) {
	if ncomp < 1 {
		return 0, fmt.Errorf("%w: component count %d, must be at least 1", ErrInvalidArgument, ncomp)
	}
	pts, ok := b.NumPts()
	if !ok || pts > math.MaxInt/int64(ncomp) {
		return 0, fmt.Errorf("%w: %d x %s is not addressable", ErrResourceExhausted, ncomp, b)
	}
	return int(pts) * ncomp, nil
}

// Clear releases the buffer and returns f to the invalid state. Clearing
// an invalid fab is a no-op.
func (f *BaseFab[T]) Clear() {
	if f.buf == nil {
		return
	}
	f.allocator().Free(f.buf)
	f.buf = nil
	f.domain = box.Box{}
	f.ncomp = 0
	f.strides, f.compStride = box.IntVect{}, 0
}

func (f *BaseFab[T]) mustBeValid() {
	if !f.IsValid() {
		panic("fab: use of a fab with no storage")
	}
}

// Get returns the value at (p, comp)
func (f *BaseFab[T]) Get(p box.IntVect, comp int) T {
	return f.buf[f.Index(p, comp)]
}

// Set stores v at (p, comp)
func (f *BaseFab[T]) Set(p box.IntVect, comp int, v T) {
	f.buf[f.Index(p, comp)] = v
}

// Strides returns the per-axis element strides and the component stride
// of the buffer layout
func (f *BaseFab[T]) Strides() (box.IntVect, int) {
	f.mustBeValid()
	return f.strides, f.compStride
}

// View exposes the buffer to column-major numerical kernels without a
// copy. The view is invalidated by Resize and Clear.
func (f *BaseFab[T]) View() KernelView[T] {
	f.mustBeValid()
	return KernelView[T]{
		Data:       f.buf,
		Lo:         f.domain.Lo,
		Hi:         f.domain.Hi,
		Strides:    f.strides,
		CompStride: f.compStride,
		NComp:      f.ncomp,
	}
}

// DataPtr returns the column-major sub-array of component comp
func (f *BaseFab[T]) DataPtr(comp int) []T {
	f.mustBeValid()
	if comp < 0 || comp >= f.ncomp {
		panic(fmt.Sprintf("fab: component %d outside [0, %d)", comp, f.ncomp))
	}
	return f.buf[comp*f.compStride : (comp+1)*f.compStride]
}

// checkRegion validates a sub-box and component range against f
func (f *BaseFab[T]) checkRegion(sub box.Box, scomp, n int) error {
	if !f.IsValid() {
		return fmt.Errorf("%w: fab has no storage", ErrInvalidArgument)
	}
	if !f.domain.Contains(sub) {
		return fmt.Errorf("%w: %s is not inside domain %s", ErrInvalidArgument, sub, f.domain)
	}
	if scomp < 0 || n < 0 || scomp+n > f.ncomp {
		return fmt.Errorf("%w: components [%d, %d) outside [0, %d)", ErrInvalidArgument, scomp, scomp+n, f.ncomp)
	}
	return nil
}

// apply runs fn over every run of a validated region. Empty regions are
// skipped.
func (f *BaseFab[T]) apply(sub box.Box, scomp, n int, fn func(run []T)) error {
	if err := f.checkRegion(sub, scomp, n); err != nil {
		return err
	}
	if sub.Ok() && n > 0 {
		f.forEachRun(sub, scomp, n, fn)
	}
	return nil
}

// SetAll sets every slot of every component to v
func (f *BaseFab[T]) SetAll(v T) {
	f.mustBeValid()
	for i := range f.buf {
		f.buf[i] = v
	}
}

// SetVal sets the slots of components [scomp, scomp+n) inside sub to v
func (f *BaseFab[T]) SetVal(v T, sub box.Box, scomp, n int) error {
	return f.apply(sub, scomp, n, func(run []T) {
		for i := range run {
			run[i] = v
		}
	})
}

// Plus adds v to the slots of components [scomp, scomp+n) inside sub
func (f *BaseFab[T]) Plus(v T, sub box.Box, scomp, n int) error {
	return f.apply(sub, scomp, n, func(run []T) {
		for i := range run {
			run[i] += v
		}
	})
}

// Mult multiplies the slots of components [scomp, scomp+n) inside sub by v
func (f *BaseFab[T]) Mult(v T, sub box.Box, scomp, n int) error {
	return f.apply(sub, scomp, n, func(run []T) {
		for i := range run {
			run[i] *= v
		}
	})
}

// Sum adds up the slots of component comp inside sub, in the arithmetic of
// the element type
func (f *BaseFab[T]) Sum(sub box.Box, comp int) (T, error) {
	var s T
	err := f.apply(sub, comp, 1, func(run []T) {
		for _, v := range run {
			s += v
		}
	})
	return s, err
}

// Min returns the smallest slot of component comp inside sub
func (f *BaseFab[T]) Min(sub box.Box, comp int) (T, error) {
	return f.extreme(sub, comp, func(a, b T) bool { return a < b })
}

// Max returns the largest slot of component comp inside sub
func (f *BaseFab[T]) Max(sub box.Box, comp int) (T, error) {
	return f.extreme(sub, comp, func(a, b T) bool { return a > b })
}

func (f *BaseFab[T]) extreme(sub box.Box, comp int, better func(a, b T) bool) (T, error) {
	var (
		best T
		seen bool
	)
	err := f.apply(sub, comp, 1, func(run []T) {
		for _, v := range run {
			if !seen || better(v, best) {
				best, seen = v, true
			}
		}
	})
	if err == nil && !seen {
		err = fmt.Errorf("%w: empty region %s", ErrInvalidArgument, sub)
	}
	return best, err
}

// Contains reports whether b lies inside the domain of f
func (f *BaseFab[T]) Contains(b box.Box) bool {
	return f.IsValid() && f.domain.Contains(b)
}

// Shift translates the domain of f by n along axis. Values stay attached
// to the same buffer slots, so every point moves with the domain.
func (f *BaseFab[T]) Shift(axis, n int) {
	f.mustBeValid()
	f.domain = f.domain.Shift(axis, n)
}

// Clone returns an independent fab holding a copy of f's data
func (f *BaseFab[T]) Clone() (*BaseFab[T], error) {
	f.mustBeValid()
	c, err := NewBaseFab[T](f.domain, f.ncomp, f.alloc)
	if err != nil {
		return nil, err
	}
	copy(c.buf, f.buf)
	return c, nil
}

// Copy copies components [srcComp, srcComp+n) of src inside srcBox into
// components [destComp, destComp+n) of f inside destBox. The two boxes
// must have the same shape. src may be f itself, overlapping regions
// included.
func (f *BaseFab[T]) Copy(src *BaseFab[T], srcBox box.Box, srcComp int, destBox box.Box, destComp, n int) error {
	if err := src.checkRegion(srcBox, srcComp, n); err != nil {
		return fmt.Errorf("copy source: %w", err)
	}
	if err := f.checkRegion(destBox, destComp, n); err != nil {
		return fmt.Errorf("copy destination: %w", err)
	}
	if srcBox.Size() != destBox.Size() {
		return fmt.Errorf("%w: copy from %s to differently shaped %s", ErrInvalidArgument, srcBox, destBox)
	}
	if !srcBox.Ok() || n == 0 {
		return nil
	}

	if src == f {
		tmp, err := src.Clone()
		if err != nil {
			return err
		}
		defer tmp.Clear()
		src = tmp
	}
	copyProjection(f, src, regionProjection{
		SrcBox:   srcBox,
		DestLo:   destBox.Lo,
		SrcComp:  srcComp,
		DestComp: destComp,
		NComp:    n,
	})
	return nil
}

// CopyIntersection copies every component the two fabs have in common over
// the intersection of their domains
func (f *BaseFab[T]) CopyIntersection(src *BaseFab[T]) error {
	if !f.IsValid() || !src.IsValid() {
		return fmt.Errorf("%w: fab has no storage", ErrInvalidArgument)
	}
	overlap := f.domain.Intersect(src.domain)
	n := f.ncomp
	if src.ncomp < n {
		n = src.ncomp
	}
	return f.Copy(src, overlap, 0, overlap, 0, n)
}
