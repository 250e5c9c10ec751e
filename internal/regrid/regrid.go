package regrid

import (
	"fmt"
	"math"

	"github.com/ctessum/geom/proj"
)

// Options tunes the resampling.
type Options struct {
	// Degree of the interpolating spline on both axes: 1 or 3.
	// Zero means 3.
	Degree int
}

func (o Options) degree() int {
	if o.Degree == 0 {
		return 3
	}
	return o.Degree
}

// Regrid resamples values, defined on source-projection axes ySrc (rows)
// and xSrc (columns), onto the destination pixel grid given by the
// per-pixel coordinate grids xDst and yDst. trans maps destination
// coordinates into the source projection; nil means both grids share a
// projection. Destination pixels whose source coordinates are NaN, or
// that the transform rejects, come back NaN.
func Regrid(values [][]float64, xSrc, ySrc []float64, xDst, yDst [][]float64, trans proj.Transformer, opts Options) ([][]float64, error) {
	if len(xDst) != len(yDst) {
		return nil, fmt.Errorf("regrid: destination grids have %d and %d rows", len(xDst), len(yDst))
	}
	spline, err := NewRectSpline(ySrc, xSrc, values, opts.degree())
	if err != nil {
		return nil, err
	}

	out := make([][]float64, len(xDst))
	for r := range xDst {
		if len(xDst[r]) != len(yDst[r]) {
			return nil, fmt.Errorf("regrid: destination row %d has %d and %d columns", r, len(xDst[r]), len(yDst[r]))
		}
		row := make([]float64, len(xDst[r]))
		for c := range xDst[r] {
			sx, sy := xDst[r][c], yDst[r][c]
			if trans != nil {
				sx, sy, err = trans(sx, sy)
				if err != nil {
					row[c] = math.NaN()
					continue
				}
			}
			if math.IsNaN(sx) || math.IsNaN(sy) {
				row[c] = math.NaN()
				continue
			}
			v, err := spline.Eval(sy, sx)
			if err != nil {
				return nil, err
			}
			row[c] = v
		}
		out[r] = row
	}
	return out, nil
}
