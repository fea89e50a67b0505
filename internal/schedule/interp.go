package schedule

import (
	"fmt"

	"github.com/couchcryptid/rotse-sim/internal/domain"
)

// Linear is a piecewise-linear interpolant that extrapolates past either end
// along the outermost segment.
type Linear struct {
	xs, ys []float64
}

// NewLinear builds an interpolant over points sorted by x. Repeated x values
// keep the first y. Fewer than two distinct x values is ErrInsufficientSamples.
func NewLinear(xs, ys []float64) (*Linear, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("interpolant: %d x values for %d y values", len(xs), len(ys))
	}
	l := &Linear{xs: make([]float64, 0, len(xs)), ys: make([]float64, 0, len(ys))}
	for i, x := range xs {
		if n := len(l.xs); n > 0 {
			if x < l.xs[n-1] {
				return nil, fmt.Errorf("interpolant: x not sorted at index %d", i)
			}
			if x == l.xs[n-1] {
				continue
			}
		}
		l.xs = append(l.xs, x)
		l.ys = append(l.ys, ys[i])
	}
	if len(l.xs) < 2 {
		return nil, fmt.Errorf("interpolant over %d distinct points: %w", len(l.xs), domain.ErrInsufficientSamples)
	}
	return l, nil
}

// LinearFromSeries builds an interpolant of luminosity over day offset.
func LinearFromSeries(s domain.Series) (*Linear, error) {
	xs := make([]float64, len(s))
	ys := make([]float64, len(s))
	for i, sample := range s {
		xs[i] = sample.DayOffset
		ys[i] = sample.Luminosity
	}
	return NewLinear(xs, ys)
}

// At evaluates the interpolant at x.
func (l *Linear) At(x float64) float64 {
	n := len(l.xs)
	// Binary search for the segment [xs[i], xs[i+1]] that contains x,
	// clamped to the first or last segment outside the sampled range.
	lo, hi := 0, n-1
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if l.xs[mid] <= x {
			lo = mid
		} else {
			hi = mid
		}
	}
	x0, x1 := l.xs[lo], l.xs[hi]
	y0, y1 := l.ys[lo], l.ys[hi]
	return y0 + (y1-y0)*(x-x0)/(x1-x0)
}
