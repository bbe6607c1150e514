// Package box implements the integer index space a Fab is laid out over:
// points (IntVect) and inclusive axis-aligned rectangles (Box).
package box

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrParse is returned when a textual box or point can't be decoded
var ErrParse = errors.New("box: parse error")

// IntVect is a point in SpaceDim dimensional integer index space
type IntVect [SpaceDim]int

// Splat returns an IntVect with every coordinate set to v
func Splat(v int) (iv IntVect) {
	for d := range iv {
		iv[d] = v
	}
	return iv
}

// Unit returns the unit vector along axis
func Unit(axis int) (iv IntVect) {
	iv[axis] = 1
	return iv
}

// With returns a copy of iv with coordinate axis replaced by v
func (iv IntVect) With(axis, v int) IntVect {
	iv[axis] = v
	return iv
}

// Add returns the component-wise sum of iv and o
func (iv IntVect) Add(o IntVect) IntVect {
	for d := range iv {
		iv[d] += o[d]
	}
	return iv
}

// AllLE reports whether iv[d] <= o[d] on every axis
func (iv IntVect) AllLE(o IntVect) bool {
	for d := range iv {
		if iv[d] > o[d] {
			return false
		}
	}
	return true
}

// Min returns the component-wise minimum
func (iv IntVect) Min(o IntVect) IntVect {
	for d := range iv {
		if o[d] < iv[d] {
			iv[d] = o[d]
		}
	}
	return iv
}

// Max returns the component-wise maximum
func (iv IntVect) Max(o IntVect) IntVect {
	for d := range iv {
		if o[d] > iv[d] {
			iv[d] = o[d]
		}
	}
	return iv
}

func (iv IntVect) String() string {
	parts := make([]string, SpaceDim)
	for d, v := range iv {
		parts[d] = strconv.Itoa(v)
	}
	return "(" + strings.Join(parts, ",") + ")"
}

// ParseIntVect reads the "(i,j,k)" form written by IntVect.String. The
// parentheses are optional.
func ParseIntVect(s string) (iv IntVect, err error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")
	fields := strings.Split(s, ",")
	if len(fields) != SpaceDim {
		return iv, fmt.Errorf("%w: %q has %d coordinates, want %d", ErrParse, s, len(fields), SpaceDim)
	}
	for d, f := range fields {
		v, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return iv, fmt.Errorf("%w: coordinate %d: %s", ErrParse, d, err)
		}
		iv[d] = v
	}
	return iv, nil
}

// Box is an axis aligned rectangle of index space with inclusive corners.
// A Box with Lo[d] > Hi[d] on any axis is empty.
type Box struct {
	Lo IntVect `json:"lo"`
	Hi IntVect `json:"hi"`
}

// New builds a box from its corners
func New(lo, hi IntVect) Box {
	return Box{Lo: lo, Hi: hi}
}

// Ok reports whether b holds at least one point
func (b Box) Ok() bool {
	return b.Lo.AllLE(b.Hi)
}

// IsEmpty is the negation of Ok
func (b Box) IsEmpty() bool { return !b.Ok() }

// Length returns the number of points along axis, zero when empty
func (b Box) Length(axis int) int {
	if !b.Ok() {
		return 0
	}
	return b.Hi[axis] - b.Lo[axis] + 1
}

// Size returns the per-axis lengths
func (b Box) Size() (iv IntVect) {
	for d := range iv {
		iv[d] = b.Length(d)
	}
	return iv
}

// NumPts returns the number of points in b. ok is false if the count
// doesn't fit an int64.
func (b Box) NumPts() (n int64, ok bool) {
	if !b.Ok() {
		return 0, true
	}
	n = 1
	for d := 0; d < SpaceDim; d++ {
		l := int64(b.Hi[d]) - int64(b.Lo[d]) + 1
		if l <= 0 || n > math.MaxInt64/l {
			return 0, false
		}
		n *= l
	}
	return n, true
}

// Volume is NumPts for callers that already know the count is
// representable. It panics otherwise.
func (b Box) Volume() int64 {
	n, ok := b.NumPts()
	if !ok {
		panic(fmt.Sprintf("box: volume of %s overflows int64", b))
	}
	return n
}

// ContainsPoint reports whether p lies inside b
func (b Box) ContainsPoint(p IntVect) bool {
	return b.Lo.AllLE(p) && p.AllLE(b.Hi)
}

// Contains reports whether every point of o lies inside b. An empty o is
// contained in every box.
func (b Box) Contains(o Box) bool {
	if !o.Ok() {
		return true
	}
	return b.ContainsPoint(o.Lo) && b.ContainsPoint(o.Hi)
}

// Intersect returns the overlap of b and o, which may be empty
func (b Box) Intersect(o Box) Box {
	return Box{Lo: b.Lo.Max(o.Lo), Hi: b.Hi.Min(o.Hi)}
}

// Intersects reports whether b and o share at least one point
func (b Box) Intersects(o Box) bool {
	return b.Intersect(o).Ok()
}

// Shift translates b by n along axis
func (b Box) Shift(axis, n int) Box {
	b.Lo[axis] += n
	b.Hi[axis] += n
	return b
}

// Grow extends b by n points on both sides of every axis. Negative n
// shrinks.
func (b Box) Grow(n int) Box {
	for d := range b.Lo {
		b.Lo[d] -= n
		b.Hi[d] += n
	}
	return b
}

func (b Box) String() string {
	return "(" + b.Lo.String() + " " + b.Hi.String() + ")"
}

// Parse reads the "((lo) (hi))" form written by Box.String
func Parse(s string) (Box, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "(") || !strings.HasSuffix(s, ")") {
		return Box{}, fmt.Errorf("%w: %q is not a box", ErrParse, s)
	}
	s = s[1 : len(s)-1]
	end := strings.Index(s, ")")
	if end < 0 {
		return Box{}, fmt.Errorf("%w: %q is missing a corner", ErrParse, s)
	}
	lo, err := ParseIntVect(s[:end+1])
	if err != nil {
		return Box{}, err
	}
	hi, err := ParseIntVect(s[end+1:])
	if err != nil {
		return Box{}, err
	}
	return New(lo, hi), nil
}

// Set implements pflag.Value so boxes can be passed on the command line
func (b *Box) Set(s string) error {
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// Type implements pflag.Value
func (b *Box) Type() string { return "box" }
