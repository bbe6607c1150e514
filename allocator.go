package fab

import (
	"fmt"
	"unsafe"
)

// Number is the set of element types a BaseFab can hold
type Number interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~int |
		~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Allocator hands out and takes back contiguous element buffers. Alloc
// must return a buffer of exactly n elements or an error wrapping
// ErrResourceExhausted.
type Allocator[T Number] interface {
	Alloc(n int) ([]T, error)
	Free(buf []T)
}

// HeapAllocator allocates buffers on the Go heap. A positive MaxSlots caps
// the size of any single buffer.
type HeapAllocator[T Number] struct {
	MaxSlots int
}

var _ Allocator[int32] = HeapAllocator[int32]{}

// Alloc returns a zeroed buffer of n elements. Requests above MaxSlots and
// requests the runtime refuses to size are reported as ErrResourceExhausted.
// An out-of-memory condition inside the runtime is fatal and can't be
// reported.
func (a HeapAllocator[T]) Alloc(n int) (buf []T, err error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative slot count %d", ErrInvalidArgument, n)
	}
	if a.MaxSlots > 0 && n > a.MaxSlots {
		allocationFailures.Inc()
		return nil, fmt.Errorf("%w: %d slots exceeds limit of %d", ErrResourceExhausted, n, a.MaxSlots)
	}

	defer func() {
		if r := recover(); r != nil {
			allocationFailures.Inc()
			buf = nil
			err = fmt.Errorf("%w: allocating %d slots: %v", ErrResourceExhausted, n, r)
		}
	}()
	buf = make([]T, n)

	allocationsTotal.Inc()
	residentBytes.Add(float64(n * slotSize[T]()))
	return buf, nil
}

// Free drops the allocator's accounting for buf. The memory itself is
// reclaimed by the garbage collector once the caller lets go of it.
func (a HeapAllocator[T]) Free(buf []T) {
	if buf == nil {
		return
	}
	freesTotal.Inc()
	residentBytes.Sub(float64(len(buf) * slotSize[T]()))
}

func slotSize[T Number]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}
