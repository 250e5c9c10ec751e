// Package regrid resamples a raster from one map projection onto the
// pixel grid of another using tensor-product spline interpolation.
package regrid

import (
	"fmt"

	"gonum.org/v1/gonum/interp"
)

// RectSpline interpolates a rectilinear grid z[i][j] sampled at
// (x[i], y[j]). Rows are fitted once along y at construction; each
// evaluation interpolates the rows at the query y and fits a transient
// predictor along x. Axes may be ascending or descending; queries are
// clamped to the grid domain.
type RectSpline struct {
	degree int
	x, y   []float64 // ascending after normalization
	rows   []interp.FittablePredictor
}

// NewRectSpline fits a tensor-product spline of the given degree (1 for
// piecewise linear, 3 for natural cubic) to z. Each axis must be strictly
// monotonic with more points than the degree.
func NewRectSpline(x, y []float64, z [][]float64, degree int) (*RectSpline, error) {
	if degree != 1 && degree != 3 {
		return nil, fmt.Errorf("regrid: unsupported spline degree %d", degree)
	}
	if len(x) <= degree || len(y) <= degree {
		return nil, fmt.Errorf("regrid: %dx%d grid too small for degree %d", len(x), len(y), degree)
	}
	if len(z) != len(x) {
		return nil, fmt.Errorf("regrid: %d value rows for %d x samples", len(z), len(x))
	}
	for i, row := range z {
		if len(row) != len(y) {
			return nil, fmt.Errorf("regrid: row %d has %d values for %d y samples", i, len(row), len(y))
		}
	}

	s := &RectSpline{
		degree: degree,
		x:      append([]float64(nil), x...),
		y:      append([]float64(nil), y...),
	}
	zc := make([][]float64, len(z))
	for i, row := range z {
		zc[i] = append([]float64(nil), row...)
	}
	if descending(s.x) {
		reverse(s.x)
		reverseRows(zc)
	}
	if descending(s.y) {
		reverse(s.y)
		for _, row := range zc {
			reverse(row)
		}
	}
	if !ascending(s.x) || !ascending(s.y) {
		return nil, fmt.Errorf("regrid: axes must be strictly monotonic")
	}

	s.rows = make([]interp.FittablePredictor, len(s.x))
	for i := range s.rows {
		p := s.newPredictor()
		if err := p.Fit(s.y, zc[i]); err != nil {
			return nil, fmt.Errorf("regrid: fitting row %d: %w", i, err)
		}
		s.rows[i] = p
	}
	return s, nil
}

func (s *RectSpline) newPredictor() interp.FittablePredictor {
	if s.degree == 3 {
		return &interp.NaturalCubic{}
	}
	return &interp.PiecewiseLinear{}
}

// Eval interpolates the grid at (x, y). Coordinates outside the grid are
// clamped to its edge.
func (s *RectSpline) Eval(x, y float64) (float64, error) {
	x = clamp(x, s.x[0], s.x[len(s.x)-1])
	y = clamp(y, s.y[0], s.y[len(s.y)-1])

	col := make([]float64, len(s.x))
	for i, row := range s.rows {
		col[i] = row.Predict(y)
	}
	p := s.newPredictor()
	if err := p.Fit(s.x, col); err != nil {
		return 0, fmt.Errorf("regrid: fitting column at y=%g: %w", y, err)
	}
	return p.Predict(x), nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func ascending(a []float64) bool {
	for i := 1; i < len(a); i++ {
		if a[i] <= a[i-1] {
			return false
		}
	}
	return true
}

func descending(a []float64) bool {
	for i := 1; i < len(a); i++ {
		if a[i] >= a[i-1] {
			return false
		}
	}
	return len(a) > 1
}

func reverse(a []float64) {
	for i, j := 0, len(a)-1; i < j; i, j = i+1, j-1 {
		a[i], a[j] = a[j], a[i]
	}
}

func reverseRows(a [][]float64) {
	for i, j := 0, len(a)-1; i < j; i, j = i+1, j-1 {
		a[i], a[j] = a[j], a[i]
	}
}
