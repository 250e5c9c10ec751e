package granule

import (
	"fmt"
	"path/filepath"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/petzb/goes16ci/internal/geos"
	"github.com/petzb/goes16ci/internal/metrics"
	"github.com/petzb/goes16ci/internal/ncutil"
)

// Granule is one ABI channel file loaded into memory: the radiance raster,
// the raw scan-angle axes, and the projection metadata. The underlying
// NetCDF handle stays open until Close so handles are released
// deterministically in per-time-step loops.
type Granule struct {
	Path    string
	Channel int
	Stamps  Stamps

	// X and Y are the per-column and per-row scan-angle coordinates in
	// radians; multiply by the perspective height for projection meters.
	X []float64
	Y []float64

	// Rad is the radiance raster, row-major (y, x), with CF packing
	// applied and fill values masked to NaN.
	Rad [][]float64

	Proj geos.Metadata

	nc api.Group
}

// Open reads a granule file. The channel number and timestamps come from
// the filename; raster, axes, and projection metadata come from the file
// contents.
func Open(path string) (*Granule, error) {
	name := filepath.Base(path)
	channel, err := ChannelFromName(name)
	if err != nil {
		return nil, err
	}
	stamps, err := ParseStamps(name)
	if err != nil {
		return nil, err
	}

	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("granule: opening %s: %w", path, err)
	}
	metrics.IncGranulesOpened()

	g := &Granule{
		Path:    path,
		Channel: channel,
		Stamps:  stamps,
		nc:      nc,
	}
	if err := g.load(); err != nil {
		g.Close()
		return nil, err
	}
	return g, nil
}

func (g *Granule) load() error {
	xv, err := g.nc.GetVariable("x")
	if err != nil {
		return fmt.Errorf("granule: %s: reading x axis: %w", g.Path, err)
	}
	if g.X, err = ncutil.Unpack1D(xv); err != nil {
		return fmt.Errorf("granule: %s: x axis: %w", g.Path, err)
	}

	yv, err := g.nc.GetVariable("y")
	if err != nil {
		return fmt.Errorf("granule: %s: reading y axis: %w", g.Path, err)
	}
	if g.Y, err = ncutil.Unpack1D(yv); err != nil {
		return fmt.Errorf("granule: %s: y axis: %w", g.Path, err)
	}

	rv, err := g.nc.GetVariable("Rad")
	if err != nil {
		return fmt.Errorf("granule: %s: reading Rad: %w", g.Path, err)
	}
	if g.Rad, err = ncutil.Unpack2D(rv); err != nil {
		return fmt.Errorf("granule: %s: Rad: %w", g.Path, err)
	}
	cols := 0
	if len(g.Rad) > 0 {
		cols = len(g.Rad[0])
	}
	if len(g.Rad) != len(g.Y) || cols != len(g.X) {
		return fmt.Errorf("granule: %s: Rad shape (%d, %d) does not match axes (%d, %d)",
			g.Path, len(g.Rad), cols, len(g.Y), len(g.X))
	}

	pv, err := g.nc.GetVariable("goes_imager_projection")
	if err != nil {
		return fmt.Errorf("granule: %s: reading projection metadata: %w", g.Path, err)
	}
	h, ok := ncutil.AttrFloat(pv.Attributes, "perspective_point_height")
	if !ok {
		return fmt.Errorf("granule: %s: projection metadata missing perspective_point_height", g.Path)
	}
	lon0, ok := ncutil.AttrFloat(pv.Attributes, "longitude_of_projection_origin")
	if !ok {
		return fmt.Errorf("granule: %s: projection metadata missing longitude_of_projection_origin", g.Path)
	}
	sweep, _ := ncutil.AttrString(pv.Attributes, "sweep_angle_axis")
	semiMajor, _ := ncutil.AttrFloat(pv.Attributes, "semi_major_axis")
	semiMinor, _ := ncutil.AttrFloat(pv.Attributes, "semi_minor_axis")

	g.Proj = geos.Metadata{
		PerspectiveHeight: h,
		OriginLongitude:   lon0,
		SweepAxis:         sweep,
		SemiMajor:         semiMajor,
		SemiMinor:         semiMinor,
	}
	return nil
}

// Close releases the underlying NetCDF handle. Safe to call more than once.
func (g *Granule) Close() {
	if g.nc == nil {
		return
	}
	g.nc.Close()
	g.nc = nil
	metrics.DecOpenGranules()
}
