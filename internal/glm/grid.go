// Package glm reads gridded GLM lightning-count files: fixed lon/lat
// grids with a per-timestep flash count raster.
package glm

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/petzb/goes16ci/internal/ncutil"
)

// DefaultStampFormat renders grid timestamps the way the archived files
// name them, e.g. 20190602T120000.
const DefaultStampFormat = "20060102T150405"

// Filename returns the count-grid file name for the period starting at
// start and lasting freq. An empty format falls back to
// DefaultStampFormat.
func Filename(start time.Time, freq time.Duration, format string) string {
	if format == "" {
		format = DefaultStampFormat
	}
	s := start.UTC()
	e := s.Add(freq)
	return fmt.Sprintf("glm_grid_s%s_e%s.nc", s.Format(format), e.Format(format))
}

// Grid is an open lightning-count file. The time axis and coordinate
// grids are loaded eagerly; count rasters are read per timestep on
// demand so a long file never has to fit in memory at once.
type Grid struct {
	Path  string
	Times []time.Time
	Lon   [][]float64 // (row, col)
	Lat   [][]float64
	Rows  int
	Cols  int

	// mu serializes count reads: GetSlice seeks a shared file handle,
	// so interleaved readers would corrupt each other's data.
	mu     sync.Mutex
	counts api.VarGetter
	nc     api.Group
}

// Open reads the grid's time axis and coordinates and prepares lazy
// access to the counts.
func Open(path string) (*Grid, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("glm: open %s: %w", path, err)
	}
	g := &Grid{Path: path, nc: nc}
	if err := g.load(); err != nil {
		g.Close()
		return nil, err
	}
	return g, nil
}

func (g *Grid) load() error {
	tv, err := g.nc.GetVariable("time")
	if err != nil {
		return fmt.Errorf("glm: %s: time: %w", g.Path, err)
	}
	secs, err := ncutil.Unpack1D(tv)
	if err != nil {
		return fmt.Errorf("glm: %s: time: %w", g.Path, err)
	}
	epoch := timeEpoch(tv.Attributes)
	g.Times = make([]time.Time, len(secs))
	for i, s := range secs {
		g.Times[i] = epoch.Add(time.Duration(s * float64(time.Second))).UTC()
	}

	lonv, err := g.nc.GetVariable("lon")
	if err != nil {
		return fmt.Errorf("glm: %s: lon: %w", g.Path, err)
	}
	if g.Lon, err = ncutil.Unpack2D(lonv); err != nil {
		return fmt.Errorf("glm: %s: lon: %w", g.Path, err)
	}
	latv, err := g.nc.GetVariable("lat")
	if err != nil {
		return fmt.Errorf("glm: %s: lat: %w", g.Path, err)
	}
	if g.Lat, err = ncutil.Unpack2D(latv); err != nil {
		return fmt.Errorf("glm: %s: lat: %w", g.Path, err)
	}

	g.Rows = len(g.Lon)
	if g.Rows > 0 {
		g.Cols = len(g.Lon[0])
	}
	if len(g.Lat) != g.Rows || (g.Rows > 0 && len(g.Lat[0]) != g.Cols) {
		return fmt.Errorf("glm: %s: lon %dx%d and lat %dx%d grids disagree",
			g.Path, g.Rows, g.Cols, len(g.Lat), colsOf(g.Lat))
	}

	if g.counts, err = g.nc.GetVarGetter("lightning_counts"); err != nil {
		return fmt.Errorf("glm: %s: lightning_counts: %w", g.Path, err)
	}
	if n := g.counts.Len(); n != int64(len(g.Times)) {
		return fmt.Errorf("glm: %s: %d count steps for %d times", g.Path, n, len(g.Times))
	}
	return nil
}

func colsOf(grid [][]float64) int {
	if len(grid) == 0 {
		return 0
	}
	return len(grid[0])
}

// timeEpoch resolves the reference instant of a CF "seconds since ..."
// units attribute. Anything unparseable falls back to the Unix epoch,
// which is what the archived grids use.
func timeEpoch(am api.AttributeMap) time.Time {
	unix := time.Unix(0, 0).UTC()
	units, ok := ncutil.AttrString(am, "units")
	if !ok {
		return unix
	}
	_, ref, found := strings.Cut(units, " since ")
	if !found {
		return unix
	}
	ref = strings.TrimSuffix(strings.TrimSpace(ref), " UTC")
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02T15:04:05Z", "2006-01-02"} {
		if t, err := time.Parse(layout, ref); err == nil {
			return t.UTC()
		}
	}
	return unix
}

// CountsAt reads the (row, col) count raster for timestep t. Safe for
// concurrent use.
func (g *Grid) CountsAt(t int) ([][]int32, error) {
	if t < 0 || t >= len(g.Times) {
		return nil, fmt.Errorf("glm: timestep %d out of range [0, %d)", t, len(g.Times))
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.counts == nil {
		return nil, fmt.Errorf("glm: grid %s is closed", g.Path)
	}
	vals, err := g.counts.GetSlice(int64(t), int64(t)+1)
	if err != nil {
		return nil, fmt.Errorf("glm: %s: counts at step %d: %w", g.Path, t, err)
	}
	return ncutil.Int2DStep(vals)
}

// Close releases the underlying file. Safe to call more than once.
func (g *Grid) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.nc != nil {
		g.nc.Close()
		g.nc = nil
		g.counts = nil
	}
}
