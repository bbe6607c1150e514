package fab

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/qri-io/fab-go/box"
)

// Default arguments of the norm family
const (
	DefaultNormP     = 2
	DefaultNormComp  = 0
	DefaultNormNComp = 1
)

// boundaryTolerance is the relative distance from an integer below which
// the float64 estimate of a p > 1 norm is settled exactly with math/big
const boundaryTolerance = 1e-8

// Rounding converts the real valued root of a p > 1 norm to an integer
type Rounding int

const (
	// RoundTruncate drops the fractional part, as an integer conversion does
	RoundTruncate Rounding = iota
	// RoundNearest rounds half away from zero
	RoundNearest
)

func (r Rounding) String() string {
	switch r {
	case RoundTruncate:
		return "truncate"
	case RoundNearest:
		return "nearest"
	default:
		return fmt.Sprintf("Rounding(%d)", int(r))
	}
}

// ParseRounding reads the name written by Rounding.String
func ParseRounding(s string) (Rounding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "truncate", "trunc":
		return RoundTruncate, nil
	case "nearest", "round":
		return RoundNearest, nil
	default:
		return 0, fmt.Errorf("%w: unknown norm rounding %q", ErrInvalidArgument, s)
	}
}

// DefaultNorm is Norm(2, 0, 1)
func (f *IArrayBox) DefaultNorm() (int64, error) {
	return f.Norm(DefaultNormP, DefaultNormComp, DefaultNormNComp)
}

// Norm computes the Lp norm of components [scomp, scomp+ncomp) over the
// whole domain. See NormBox.
func (f *IArrayBox) Norm(p, scomp, ncomp int) (int64, error) {
	return f.NormBox(f.fab.Box(), p, scomp, ncomp)
}

// NormBox computes the Lp norm of components [scomp, scomp+ncomp) over
// sub, which must lie inside the domain:
//
//	p < 0   error wrapping ErrInvalidArgument
//	p == 0  max |x|
//	p == 1  sum |x|, exact in int64, ErrOverflow if it doesn't fit
//	p > 1   (sum |x|^p)^(1/p) converted with the configured Rounding
//
// The p > 1 root is estimated in float64 from the sum of (|x|/max)^p, in
// storage order: axis 0 fastest, then the remaining axes, then components.
// Scaling by the max keeps every term in [0, 1], so large exponents don't
// overflow. When the estimate lies near an integer (or half integer for
// RoundNearest) the result is decided by comparing exact integer powers.
// The result is widened to int64 so |math.MinInt32| and large sums are
// representable. An empty sub-box or component range has norm 0.
func (f *IArrayBox) NormBox(sub box.Box, p, scomp, ncomp int) (int64, error) {
	if p < 0 {
		normEvaluations.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("%w: norm exponent %d is negative", ErrInvalidArgument, p)
	}
	if err := f.fab.checkRegion(sub, scomp, ncomp); err != nil {
		normEvaluations.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("norm: %w", err)
	}
	if !sub.Ok() || ncomp == 0 {
		return 0, nil
	}

	switch p {
	case 0:
		normEvaluations.WithLabelValues("max").Inc()
		return f.maxNorm(sub, scomp, ncomp), nil
	case 1:
		normEvaluations.WithLabelValues("sum").Inc()
		return f.sumNorm(sub, scomp, ncomp)
	default:
		normEvaluations.WithLabelValues("lp").Inc()
		return f.lpNorm(sub, p, scomp, ncomp, f.settings().Rounding)
	}
}

func abs64(v int32) int64 {
	a := int64(v)
	if a < 0 {
		return -a
	}
	return a
}

func (f *IArrayBox) maxNorm(sub box.Box, scomp, ncomp int) int64 {
	var m int64
	f.fab.forEachRun(sub, scomp, ncomp, func(run []int32) {
		for _, v := range run {
			if a := abs64(v); a > m {
				m = a
			}
		}
	})
	return m
}

func (f *IArrayBox) sumNorm(sub box.Box, scomp, ncomp int) (int64, error) {
	var (
		s        int64
		overflow bool
	)
	f.fab.forEachRun(sub, scomp, ncomp, func(run []int32) {
		if overflow {
			return
		}
		for _, v := range run {
			a := abs64(v)
			if s > math.MaxInt64-a {
				overflow = true
				return
			}
			s += a
		}
	})
	if overflow {
		return 0, fmt.Errorf("norm: %w: sum of absolute values over %s exceeds int64", ErrOverflow, sub)
	}
	return s, nil
}

func (f *IArrayBox) lpNorm(sub box.Box, p, scomp, ncomp int, r Rounding) (int64, error) {
	m := f.maxNorm(sub, scomp, ncomp)
	if m == 0 {
		return 0, nil
	}

	fp, fm := float64(p), float64(m)
	var s float64
	f.fab.forEachRun(sub, scomp, ncomp, func(run []int32) {
		for _, v := range run {
			x := float64(abs64(v)) / fm
			if p == 2 {
				s += x * x
			} else {
				s += math.Pow(x, fp)
			}
		}
	})
	var root float64
	if p == 2 {
		root = fm * math.Sqrt(s)
	} else {
		root = fm * math.Pow(s, 1/fp)
	}

	// the result is floor(t)
	t := root
	if r == RoundNearest {
		t += 0.5
	}
	k := math.Round(t)
	if math.Abs(t-k) > boundaryTolerance*t {
		k = math.Floor(t)
	} else if !f.powerSumReaches(sub, p, scomp, ncomp, int64(k), r) {
		k--
	}
	if k >= math.MaxInt64 {
		return 0, fmt.Errorf("norm: %w: L%d norm over %s exceeds int64", ErrOverflow, p, sub)
	}
	return int64(k), nil
}

// powerSumReaches reports whether the exact p-th root of sum |x|^p is at
// least k, or at least k - 1/2 under RoundNearest
func (f *IArrayBox) powerSumReaches(sub box.Box, p, scomp, ncomp int, k int64, r Rounding) bool {
	exp := big.NewInt(int64(p))
	pow := map[int64]*big.Int{}
	sum := new(big.Int)
	f.fab.forEachRun(sub, scomp, ncomp, func(run []int32) {
		for _, v := range run {
			a := abs64(v)
			x, ok := pow[a]
			if !ok {
				x = new(big.Int).Exp(big.NewInt(a), exp, nil)
				pow[a] = x
			}
			sum.Add(sum, x)
		}
	})

	// (num/den)^p <= sum  <=>  num^p <= den^p * sum
	num, den := big.NewInt(k), big.NewInt(1)
	if r == RoundNearest {
		num.SetInt64(2*k - 1)
		den.SetInt64(2)
	}
	lhs := new(big.Int).Exp(num, exp, nil)
	rhs := new(big.Int).Exp(den, exp, nil)
	return lhs.Cmp(rhs.Mul(rhs, sum)) <= 0
}
