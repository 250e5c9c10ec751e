package regrid

import (
	"math"
	"testing"

	"github.com/ctessum/geom/proj"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func meshgrid(x, y []float64) (xg, yg [][]float64) {
	xg = make([][]float64, len(y))
	yg = make([][]float64, len(y))
	for r := range y {
		xg[r] = make([]float64, len(x))
		yg[r] = make([]float64, len(x))
		for c := range x {
			xg[r][c] = x[c]
			yg[r][c] = y[r]
		}
	}
	return xg, yg
}

func sampled(f func(x, y float64) float64, x, y []float64) [][]float64 {
	z := make([][]float64, len(y))
	for r := range y {
		z[r] = make([]float64, len(x))
		for c := range x {
			z[r][c] = f(x[c], y[r])
		}
	}
	return z
}

// Regridding onto the source's own grid returns the input unchanged, for
// both spline degrees.
func TestRegridIdentity(t *testing.T) {
	x := []float64{0, 1, 2, 3, 4}
	y := []float64{10, 11, 12, 13, 14}
	z := sampled(func(x, y float64) float64 { return math.Sin(x) + math.Cos(y) }, x, y)
	xg, yg := meshgrid(x, y)

	for _, degree := range []int{1, 3} {
		out, err := Regrid(z, x, y, xg, yg, nil, Options{Degree: degree})
		require.NoError(t, err)
		for r := range z {
			for c := range z[r] {
				assert.InDelta(t, z[r][c], out[r][c], 1e-9, "degree %d at (%d,%d)", degree, r, c)
			}
		}
	}
}

// Both degrees reproduce an affine surface exactly between the nodes.
func TestRegridAffineSurface(t *testing.T) {
	f := func(x, y float64) float64 { return 3*x - 2*y + 5 }
	x := []float64{0, 1, 2, 3, 4}
	y := []float64{0, 2, 4, 6, 8}
	z := sampled(f, x, y)

	qx := []float64{0.5, 1.7, 3.25}
	qy := []float64{1.1, 3.9, 6.5}
	xg, yg := meshgrid(qx, qy)

	for _, degree := range []int{1, 3} {
		out, err := Regrid(z, x, y, xg, yg, nil, Options{Degree: degree})
		require.NoError(t, err)
		for r := range qy {
			for c := range qx {
				assert.InDelta(t, f(qx[c], qy[r]), out[r][c], 1e-9, "degree %d", degree)
			}
		}
	}
}

// ABI y axes run north to south; the spline must accept descending axes.
func TestRegridDescendingAxis(t *testing.T) {
	f := func(x, y float64) float64 { return x + 10*y }
	x := []float64{0, 1, 2, 3}
	y := []float64{3, 2, 1, 0} // descending
	z := sampled(f, x, y)

	xg, yg := meshgrid([]float64{0.5, 2.5}, []float64{2.5, 0.5})
	out, err := Regrid(z, x, y, xg, yg, nil, Options{Degree: 1})
	require.NoError(t, err)
	assert.InDelta(t, f(0.5, 2.5), out[0][0], 1e-9)
	assert.InDelta(t, f(2.5, 0.5), out[1][1], 1e-9)
}

func TestRegridClampsOutsideDomain(t *testing.T) {
	f := func(x, y float64) float64 { return x + y }
	x := []float64{0, 1, 2}
	y := []float64{0, 1, 2}
	z := sampled(f, x, y)

	xg, yg := meshgrid([]float64{-5, 10}, []float64{1})
	out, err := Regrid(z, x, y, xg, yg, nil, Options{Degree: 1})
	require.NoError(t, err)
	assert.InDelta(t, f(0, 1), out[0][0], 1e-9)
	assert.InDelta(t, f(2, 1), out[0][1], 1e-9)
}

func TestRegridMasksNaNCoordinates(t *testing.T) {
	x := []float64{0, 1, 2}
	y := []float64{0, 1, 2}
	z := sampled(func(x, y float64) float64 { return x * y }, x, y)

	xg := [][]float64{{1, math.NaN()}}
	yg := [][]float64{{1, 1}}
	out, err := Regrid(z, x, y, xg, yg, nil, Options{Degree: 1})
	require.NoError(t, err)
	assert.False(t, math.IsNaN(out[0][0]))
	assert.True(t, math.IsNaN(out[0][1]))
}

func TestRegridRejectsBadInput(t *testing.T) {
	x := []float64{0, 1, 2}
	z := sampled(func(x, y float64) float64 { return 0 }, x, x)

	_, err := Regrid(z, x, x, nil, nil, nil, Options{Degree: 2})
	assert.Error(t, err)

	_, err = Regrid(z[:2], x, x, nil, nil, nil, Options{Degree: 1})
	assert.Error(t, err)

	_, err = Regrid(z, []float64{0, 0, 1}, x, nil, nil, nil, Options{Degree: 1})
	assert.Error(t, err)
}

// TestRegridAcrossProjections resamples a field that is affine in the
// source projection onto a lon/lat destination grid, checking the result
// against a direct transform of each destination pixel.
func TestRegridAcrossProjections(t *testing.T) {
	mercSR, err := proj.Parse("+proj=merc +a=6378137 +b=6378137 +lat_ts=0.0 +lon_0=0.0 +x_0=0.0 +y_0=0 +k=1.0 +units=m +no_defs")
	require.NoError(t, err)
	lonlatSR, err := proj.Parse("+proj=longlat")
	require.NoError(t, err)
	trans, err := lonlatSR.NewTransform(mercSR)
	require.NoError(t, err)

	// Source field g(x,y) = x + 2y on a wide mercator grid.
	g := func(x, y float64) float64 { return x + 2*y }
	var xSrc, ySrc []float64
	for v := -2e6; v <= 2e6; v += 2.5e5 {
		xSrc = append(xSrc, v)
		ySrc = append(ySrc, v)
	}
	z := sampled(g, xSrc, ySrc)

	lons := []float64{-0.04, -0.01, 0, 0.02, 0.05}
	lats := []float64{-0.03, 0, 0.01, 0.04}
	xg, yg := meshgrid(lons, lats)

	out, err := Regrid(z, xSrc, ySrc, xg, yg, trans, Options{Degree: 1})
	require.NoError(t, err)
	for r := range lats {
		for c := range lons {
			mx, my, err := trans(lons[c], lats[r])
			require.NoError(t, err)
			assert.InDelta(t, g(mx, my), out[r][c], 1e-3, "at (%g, %g)", lons[c], lats[r])
		}
	}
}
