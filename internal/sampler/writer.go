package sampler

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"
	"github.com/klauspost/compress/gzip"
)

// epochUnits labels the time variable; readers resolve it the same way
// the count-grid files are read.
const epochUnits = "seconds since 1970-01-01 00:00:00 UTC"

// WriteDataset writes the dataset as a classic-format NetCDF file. A
// path ending in .gz gets the whole file gzip-compressed; classic CDF
// has no per-variable deflate, so compression happens at the file level.
func WriteDataset(path string, ds *Dataset) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("sampler: %w", err)
	}
	if !strings.HasSuffix(path, ".gz") {
		return writeCDF(path, ds)
	}

	tmp := strings.TrimSuffix(path, ".gz") + ".tmp"
	if err := writeCDF(tmp, ds); err != nil {
		return err
	}
	defer os.Remove(tmp)
	return gzipFile(tmp, path)
}

func writeCDF(path string, ds *Dataset) error {
	cw, err := cdf.OpenWriter(path)
	if err != nil {
		return fmt.Errorf("sampler: create %s: %w", path, err)
	}

	secs := make([]float64, ds.Len())
	for i, t := range ds.Times {
		secs[i] = float64(t.UTC().UnixNano()) / 1e9
	}
	timeAttrs, err := util.NewOrderedMap([]string{"units"}, map[string]interface{}{"units": epochUnits})
	if err != nil {
		return fmt.Errorf("sampler: %w", err)
	}

	bands := make([]int32, len(ds.Bands))
	for i, b := range ds.Bands {
		bands[i] = int32(b)
	}
	ys := indexAxis(ds.PatchHeight)
	xs := indexAxis(ds.PatchWidth)

	vars := []struct {
		name string
		v    api.Variable
	}{
		{"band", api.Variable{Values: bands, Dimensions: []string{"band"}}},
		{"y", api.Variable{Values: ys, Dimensions: []string{"y"}}},
		{"x", api.Variable{Values: xs, Dimensions: []string{"x"}}},
		{"time", api.Variable{Values: secs, Dimensions: []string{"patch"}, Attributes: timeAttrs}},
		{"flash_counts", api.Variable{Values: ds.Counts, Dimensions: []string{"patch"}}},
		{"lon", api.Variable{Values: ds.Lons, Dimensions: []string{"patch", "y", "x"}}},
		{"lat", api.Variable{Values: ds.Lats, Dimensions: []string{"patch", "y", "x"}}},
		{"abi", api.Variable{Values: ds.Patches, Dimensions: []string{"patch", "y", "x", "band"}}},
	}
	for _, nv := range vars {
		if err := cw.AddVar(nv.name, nv.v); err != nil {
			cw.Close()
			return fmt.Errorf("sampler: write %s: %w", nv.name, err)
		}
	}
	if err := cw.Close(); err != nil {
		return fmt.Errorf("sampler: close %s: %w", path, err)
	}
	return nil
}

func indexAxis(n int) []int32 {
	axis := make([]int32, n)
	for i := range axis {
		axis[i] = int32(i)
	}
	return axis
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("sampler: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("sampler: %w", err)
	}
	// Either the full artifact lands on disk or nothing does.
	zw := gzip.NewWriter(out)
	if _, err := io.Copy(zw, in); err != nil {
		zw.Close()
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("sampler: compress %s: %w", dst, err)
	}
	if err := zw.Close(); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("sampler: compress %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("sampler: %w", err)
	}
	return nil
}
