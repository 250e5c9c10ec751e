// Package abi assembles co-registered, time-synchronized multi-channel
// GOES-16 ABI frames and extracts geographically centered pixel patches
// from them.
package abi

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/petzb/goes16ci/internal/geos"
	"github.com/petzb/goes16ci/internal/granule"
	"github.com/petzb/goes16ci/internal/metrics"
)

// Config controls how an Image is assembled.
type Config struct {
	Root      string        // date-partitioned granule tree
	Channels  []int         // ABI bands to load
	Tolerance time.Duration // granule match tolerance
	Key       granule.TimeKey
	Logger    *slog.Logger
}

// Image is one multi-channel frame: one granule per requested channel, all
// matching the same nominal time, plus the derived projection-plane axes
// and the cached longitude/latitude grids. The projection and pixel
// geometry always come from the numerically smallest channel so they do
// not depend on load order.
type Image struct {
	Time     time.Time
	Channels []int // ascending

	proj *geos.Projection

	// x and y are the per-column and per-row projection-plane
	// coordinates in meters (scan angle times perspective height).
	x []float64
	y []float64

	// lon and lat are (row, col) grids; off-disk pixels are NaN.
	lon [][]float64
	lat [][]float64

	granules map[int]*granule.Granule
	closed   bool
}

// Patch is a rectangular window extracted around a geographic center.
// Values is (row, col, channel) in the image's ascending channel order;
// Lon and Lat are the co-located coordinate grids. At image edges the
// window truncates, so the first two dimensions may be smaller than
// requested.
type Patch struct {
	Values [][][]float64
	Lon    [][]float64
	Lat    [][]float64
}

// New locates and loads one granule per channel at the given time. Any
// channel failing to locate or load aborts construction; granules opened
// before the failure are closed.
func New(when time.Time, cfg Config) (*Image, error) {
	if len(cfg.Channels) == 0 {
		return nil, fmt.Errorf("abi: no channels requested")
	}
	channels := append([]int(nil), cfg.Channels...)
	sort.Ints(channels)

	loc := granule.NewLocator(cfg.Root, cfg.Tolerance, cfg.Key, cfg.Logger)
	img := &Image{
		Time:     when,
		Channels: channels,
		granules: make(map[int]*granule.Granule, len(channels)),
	}

	for _, ch := range channels {
		path, err := loc.Locate(when, ch)
		if err != nil {
			img.Close()
			return nil, err
		}
		g, err := granule.Open(path)
		if err != nil {
			img.Close()
			return nil, err
		}
		img.granules[ch] = g
	}

	if err := img.buildGeometry(); err != nil {
		img.Close()
		return nil, err
	}

	cfg.Logger.Debug("satellite image assembled",
		"time", when.UTC().Format(time.RFC3339),
		"channels", channels,
		"rows", len(img.y),
		"cols", len(img.x),
	)
	return img, nil
}

// buildGeometry derives the meter-scaled axes from the reference channel
// and inverts the full meshgrid through the projection once. The lon/lat
// grids are cached for the lifetime of the image; every patch extraction
// reuses them.
func (img *Image) buildGeometry() error {
	ref := img.granules[img.Channels[0]]

	proj, err := geos.New(ref.Proj)
	if err != nil {
		return fmt.Errorf("abi: channel %d projection: %w", ref.Channel, err)
	}
	img.proj = proj

	h := proj.PerspectiveHeight()
	img.x = append([]float64(nil), ref.X...)
	img.y = append([]float64(nil), ref.Y...)
	floats.Scale(h, img.x)
	floats.Scale(h, img.y)

	img.lon = make([][]float64, len(img.y))
	img.lat = make([][]float64, len(img.y))
	for i, ym := range img.y {
		lonRow := make([]float64, len(img.x))
		latRow := make([]float64, len(img.x))
		for j, xm := range img.x {
			lon, lat := proj.Inverse(xm, ym)
			if geos.OffEarth(lon) || geos.OffEarth(lat) {
				lonRow[j] = math.NaN()
				latRow[j] = math.NaN()
			} else {
				lonRow[j] = lon
				latRow[j] = lat
			}
		}
		img.lon[i] = lonRow
		img.lat[i] = latRow
	}
	return nil
}

// Lon returns the cached longitude grid (row, col); off-disk pixels are NaN.
func (img *Image) Lon() [][]float64 { return img.lon }

// Lat returns the cached latitude grid (row, col); off-disk pixels are NaN.
func (img *Image) Lat() [][]float64 { return img.lat }

// Size returns the frame dimensions as (rows, cols).
func (img *Image) Size() (int, int) { return len(img.y), len(img.x) }

// ExtractPatch extracts a widthPx-by-heightPx window centered on the pixel
// nearest the given geographic point. The window is the half-open range
// [c − n/2, c − n/2 + n) on each axis, clipped to the frame, so patches at
// the edges come back smaller than requested. A center that does not
// project onto the visible disk is an error.
func (img *Image) ExtractPatch(centerLon, centerLat float64, widthPx, heightPx int) (*Patch, error) {
	if img.closed {
		return nil, fmt.Errorf("abi: image already closed")
	}
	if widthPx <= 0 || heightPx <= 0 {
		return nil, fmt.Errorf("abi: invalid patch size %dx%d", widthPx, heightPx)
	}

	cx, cy := img.proj.Forward(centerLon, centerLat)
	if geos.OffEarth(cx) || geos.OffEarth(cy) {
		return nil, fmt.Errorf("abi: patch center (%.4f, %.4f) is not visible from the satellite", centerLon, centerLat)
	}

	centerRow := nearestIndex(img.y, cy)
	centerCol := nearestIndex(img.x, cx)

	row0, row1 := clipWindow(centerRow, heightPx, len(img.y))
	col0, col1 := clipWindow(centerCol, widthPx, len(img.x))

	patch := &Patch{
		Values: make([][][]float64, row1-row0),
		Lon:    make([][]float64, row1-row0),
		Lat:    make([][]float64, row1-row0),
	}
	for r := row0; r < row1; r++ {
		valRow := make([][]float64, col1-col0)
		for c := col0; c < col1; c++ {
			vals := make([]float64, len(img.Channels))
			for b, ch := range img.Channels {
				vals[b] = img.granules[ch].Rad[r][c]
			}
			valRow[c-col0] = vals
		}
		patch.Values[r-row0] = valRow
		patch.Lon[r-row0] = append([]float64(nil), img.lon[r][col0:col1]...)
		patch.Lat[r-row0] = append([]float64(nil), img.lat[r][col0:col1]...)
	}

	metrics.AddPatchesExtracted(1)
	return patch, nil
}

// Close releases every channel's granule. Safe to call more than once.
func (img *Image) Close() {
	if img.closed {
		return
	}
	img.closed = true
	for _, g := range img.granules {
		g.Close()
	}
}

// nearestIndex returns the index of the axis value with minimum absolute
// difference to v. A linear scan is adequate at ABI axis lengths; no
// ordering of the axis is assumed.
func nearestIndex(axis []float64, v float64) int {
	diffs := make([]float64, len(axis))
	for i, a := range axis {
		diffs[i] = math.Abs(a - v)
	}
	return floats.MinIdx(diffs)
}

// clipWindow computes the half-open pixel range [c − n/2, c − n/2 + n)
// clipped to [0, limit).
func clipWindow(center, n, limit int) (int, int) {
	lo := center - n/2
	hi := lo + n
	if lo < 0 {
		lo = 0
	}
	if hi > limit {
		hi = limit
	}
	if lo > hi {
		lo = hi
	}
	return lo, hi
}
