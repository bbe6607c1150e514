package fab

import (
	"fmt"
	"log/slog"

	"github.com/qri-io/fab-go/box"
)

// IArrayBox is a Fortran array box of int32, the type of a Fortran
// INTEGER. It wraps a BaseFab[int32] and adds the debug initialization
// policy and the Lp norm family.
//
// The zero value is an invalid fab with no storage. Like BaseFab, an
// IArrayBox must not be copied by value; Clone and Copy duplicate data
// explicitly.
type IArrayBox struct {
	fab  BaseFab[int32]
	opts []Option
}

// Option overrides one of the process-wide Settings for a single
// IArrayBox. Options are applied on top of CurrentSettings each time the
// fab allocates, so a fab without options follows Initialize and Finalize.
type Option func(*Settings)

// WithInitVal turns debug initialization on or off
func WithInitVal(enabled bool) Option {
	return func(s *Settings) { s.InitVal = enabled }
}

// WithInitValue sets the debug fill value
func WithInitValue(v int32) Option {
	return func(s *Settings) { s.InitValue = v }
}

// WithRounding sets how p > 1 norms are converted to integers
func WithRounding(r Rounding) Option {
	return func(s *Settings) { s.Rounding = r }
}

// WithMaxSlots caps the buffer size
func WithMaxSlots(n int) Option {
	return func(s *Settings) { s.MaxSlots = n }
}

// WithChecks enables post-condition checks on resize
func WithChecks(enabled bool) Option {
	return func(s *Settings) { s.Checked = enabled }
}

// WithLogger routes debug records to l
func WithLogger(l *slog.Logger) Option {
	return func(s *Settings) { s.Logger = l }
}

// WithSettings replaces the process-wide settings entirely
func WithSettings(set Settings) Option {
	return func(s *Settings) { *s = set }
}

// NewIArrayBox allocates a fab over b with ncomp components. When debug
// initialization is enabled every slot holds the debug init value,
// otherwise every slot is zero.
func NewIArrayBox(b box.Box, ncomp int, opts ...Option) (*IArrayBox, error) {
	f := &IArrayBox{opts: opts}
	if err := f.Resize(b, ncomp); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *IArrayBox) settings() Settings {
	s := CurrentSettings()
	for _, opt := range f.opts {
		opt(&s)
	}
	return s
}

// Resize re-establishes the domain and component count. It validates the
// request, delegates to BaseFab.Resize and then applies the debug fill to
// any buffer that was reallocated or repurposed for the new shape.
// Resizing to the current shape is a no-op and keeps the contents.
func (f *IArrayBox) Resize(b box.Box, ncomp int) error {
	s := f.settings()
	log := s.logger()

	slots, err := slotCount(b, ncomp)
	if err != nil {
		return fmt.Errorf("iarraybox resize: %w", err)
	}
	if s.MaxSlots > 0 && slots > s.MaxSlots {
		allocationFailures.Inc()
		return fmt.Errorf("iarraybox resize: %w: %d slots exceeds limit of %d", ErrResourceExhausted, slots, s.MaxSlots)
	}

	f.fab.alloc = HeapAllocator[int32]{MaxSlots: s.MaxSlots}
	changed, err := f.fab.resize(b, ncomp)
	if err != nil {
		log.Debug("iarraybox resize failed", "box", b.String(), "ncomp", ncomp, "err", err)
		return fmt.Errorf("iarraybox resize: %w", err)
	}

	if s.Checked {
		if want := int(b.Volume()) * ncomp; f.fab.Size() != want {
			panic(fmt.Sprintf("fab: resize to %d x %s left %d slots, want %d", ncomp, b, f.fab.Size(), want))
		}
	}
	if changed && s.InitVal {
		f.fab.SetAll(s.InitValue)
	}
	if changed {
		log.Debug("iarraybox resized", "box", b.String(), "ncomp", ncomp, "initval", s.InitVal)
	}
	return nil
}

// SetAll sets every slot of every component to v and returns f
func (f *IArrayBox) SetAll(v int32) *IArrayBox {
	f.fab.SetAll(v)
	return f
}

// Fab returns the underlying storage engine
func (f *IArrayBox) Fab() *BaseFab[int32] { return &f.fab }

// IsValid reports whether f owns storage
func (f *IArrayBox) IsValid() bool { return f.fab.IsValid() }

// Box returns the domain, an empty box when f is invalid
func (f *IArrayBox) Box() box.Box { return f.fab.Box() }

// NComp returns the number of components
func (f *IArrayBox) NComp() int { return f.fab.NComp() }

// Size returns the number of allocated slots
func (f *IArrayBox) Size() int { return f.fab.Size() }

// Index returns the buffer offset of (p, comp)
func (f *IArrayBox) Index(p box.IntVect, comp int) int { return f.fab.Index(p, comp) }

// Get returns the value at (p, comp)
func (f *IArrayBox) Get(p box.IntVect, comp int) int32 { return f.fab.Get(p, comp) }

// Set stores v at (p, comp)
func (f *IArrayBox) Set(p box.IntVect, comp int, v int32) { f.fab.Set(p, comp, v) }

// SetVal sets components [scomp, scomp+n) inside sub to v
func (f *IArrayBox) SetVal(v int32, sub box.Box, scomp, n int) error {
	return f.fab.SetVal(v, sub, scomp, n)
}

// View exposes the buffer to column-major kernels
func (f *IArrayBox) View() KernelView[int32] { return f.fab.View() }

// DataPtr returns the column-major sub-array of component comp
func (f *IArrayBox) DataPtr(comp int) []int32 { return f.fab.DataPtr(comp) }

// Contains reports whether b lies inside the domain
func (f *IArrayBox) Contains(b box.Box) bool { return f.fab.Contains(b) }

// Clear releases the buffer. Clearing an invalid fab is a no-op.
func (f *IArrayBox) Clear() { f.fab.Clear() }

// Copy copies a region of src into f, see BaseFab.Copy
func (f *IArrayBox) Copy(src *IArrayBox, srcBox box.Box, srcComp int, destBox box.Box, destComp, n int) error {
	return f.fab.Copy(&src.fab, srcBox, srcComp, destBox, destComp, n)
}

// Clone returns an independent copy of f carrying the same options
func (f *IArrayBox) Clone() (*IArrayBox, error) {
	if !f.IsValid() {
		return nil, fmt.Errorf("%w: fab has no storage", ErrInvalidArgument)
	}
	c := &IArrayBox{opts: f.opts}
	c.fab.alloc = HeapAllocator[int32]{MaxSlots: f.settings().MaxSlots}
	if _, err := c.fab.resize(f.fab.domain, f.fab.ncomp); err != nil {
		return nil, err
	}
	copy(c.fab.buf, f.fab.buf)
	return c, nil
}
