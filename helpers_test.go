package fab

import (
	"github.com/qri-io/fab-go/box"
)

// line is the box [0, n-1] along axis 0 and [0, 0] on every other axis
func line(n int) box.Box {
	return box.New(box.Splat(0), box.Splat(0).With(0, n-1))
}

// cube is the box [lo, hi] on every axis
func cube(lo, hi int) box.Box {
	return box.New(box.Splat(lo), box.Splat(hi))
}

// points lists every point of b in storage order
func points(b box.Box) []box.IntVect {
	var pts []box.IntVect
	p := b.Lo
	for {
		for i := b.Lo[0]; i <= b.Hi[0]; i++ {
			pts = append(pts, p.With(0, i))
		}
		if !nextPencil(&p, b) {
			return pts
		}
	}
}

type failingAllocator struct{}

func (failingAllocator) Alloc(n int) ([]int32, error) { return nil, ErrResourceExhausted }
func (failingAllocator) Free([]int32)                 {}
