// Package nctest writes small synthetic NetCDF files — ABI granules and
// GLM count grids — for tests. Files are classic-format NetCDF produced
// with the same go-native-netcdf stack the readers use.
package nctest

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"

	"github.com/petzb/goes16ci/internal/geos"
)

// PackedRad describes an int16-packed radiance raster with CF scaling
// attributes, mirroring how real L1b files store Rad.
type PackedRad struct {
	Raw    [][]int16
	Scale  float64
	Offset float64
	Fill   int16
}

// GranuleSpec describes a synthetic ABI granule.
type GranuleSpec struct {
	Dir     string // tree root; the YYYYMMDD subdirectory is derived from End
	Channel int
	Mode    int // scan mode digit for the filename; default 6

	Start, End, Created time.Time

	X, Y []float64   // scan-angle radians
	Rad  [][]float32 // (y, x); ignored when Packed is set

	Packed *PackedRad

	Proj geos.Metadata
}

// GranuleName builds the NOAA object name for the spec.
func GranuleName(spec GranuleSpec) string {
	mode := spec.Mode
	if mode == 0 {
		mode = 6
	}
	return fmt.Sprintf("OR_ABI-L1b-RadC-M%dC%02d_G16_s%s_e%s_c%s.nc",
		mode, spec.Channel, abiStamp(spec.Start), abiStamp(spec.End), abiStamp(spec.Created))
}

func abiStamp(t time.Time) string {
	u := t.UTC()
	return fmt.Sprintf("%04d%03d%02d%02d%02d0", u.Year(), u.YearDay(), u.Hour(), u.Minute(), u.Second())
}

// WriteGranule writes the granule under Dir/YYYYMMDD/ and returns its path.
func WriteGranule(spec GranuleSpec) (string, error) {
	day := filepath.Join(spec.Dir, spec.End.UTC().Format("20060102"))
	if err := os.MkdirAll(day, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(day, GranuleName(spec))

	cw, err := cdf.OpenWriter(path)
	if err != nil {
		return "", err
	}

	if err := cw.AddVar("x", api.Variable{Values: spec.X, Dimensions: []string{"x"}}); err != nil {
		return "", err
	}
	if err := cw.AddVar("y", api.Variable{Values: spec.Y, Dimensions: []string{"y"}}); err != nil {
		return "", err
	}

	if spec.Packed != nil {
		attrs, err := util.NewOrderedMap(
			[]string{"scale_factor", "add_offset", "_FillValue"},
			map[string]interface{}{
				"scale_factor": spec.Packed.Scale,
				"add_offset":   spec.Packed.Offset,
				"_FillValue":   spec.Packed.Fill,
			})
		if err != nil {
			return "", err
		}
		if err := cw.AddVar("Rad", api.Variable{
			Values:     spec.Packed.Raw,
			Dimensions: []string{"y", "x"},
			Attributes: attrs,
		}); err != nil {
			return "", err
		}
	} else {
		if err := cw.AddVar("Rad", api.Variable{Values: spec.Rad, Dimensions: []string{"y", "x"}}); err != nil {
			return "", err
		}
	}

	projAttrs, err := util.NewOrderedMap(
		[]string{
			"perspective_point_height",
			"longitude_of_projection_origin",
			"sweep_angle_axis",
			"semi_major_axis",
			"semi_minor_axis",
		},
		map[string]interface{}{
			"perspective_point_height":       spec.Proj.PerspectiveHeight,
			"longitude_of_projection_origin": spec.Proj.OriginLongitude,
			"sweep_angle_axis":               spec.Proj.SweepAxis,
			"semi_major_axis":                spec.Proj.SemiMajor,
			"semi_minor_axis":                spec.Proj.SemiMinor,
		})
	if err != nil {
		return "", err
	}
	if err := cw.AddVar("goes_imager_projection", api.Variable{
		Values:     int32(-2147483647),
		Dimensions: nil,
		Attributes: projAttrs,
	}); err != nil {
		return "", err
	}

	if err := cw.Close(); err != nil {
		return "", err
	}
	return path, nil
}

// CountGridSpec describes a synthetic GLM lightning-count grid file.
type CountGridSpec struct {
	Path   string
	Times  []time.Time
	Lon    [][]float64 // (row, col)
	Lat    [][]float64
	Counts [][][]int32 // (time, row, col)
}

// WriteCountGrid writes the grid file at spec.Path.
func WriteCountGrid(spec CountGridSpec) error {
	if err := os.MkdirAll(filepath.Dir(spec.Path), 0o755); err != nil {
		return err
	}
	cw, err := cdf.OpenWriter(spec.Path)
	if err != nil {
		return err
	}

	secs := make([]float64, len(spec.Times))
	for i, t := range spec.Times {
		secs[i] = float64(t.UTC().UnixNano()) / 1e9
	}
	timeAttrs, err := util.NewOrderedMap(
		[]string{"units"},
		map[string]interface{}{"units": "seconds since 1970-01-01 00:00:00 UTC"})
	if err != nil {
		return err
	}
	if err := cw.AddVar("time", api.Variable{
		Values:     secs,
		Dimensions: []string{"time"},
		Attributes: timeAttrs,
	}); err != nil {
		return err
	}
	if err := cw.AddVar("lon", api.Variable{Values: spec.Lon, Dimensions: []string{"row", "col"}}); err != nil {
		return err
	}
	if err := cw.AddVar("lat", api.Variable{Values: spec.Lat, Dimensions: []string{"row", "col"}}); err != nil {
		return err
	}
	if err := cw.AddVar("lightning_counts", api.Variable{
		Values:     spec.Counts,
		Dimensions: []string{"time", "row", "col"},
	}); err != nil {
		return err
	}
	return cw.Close()
}
