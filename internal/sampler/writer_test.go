package sampler

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDataset() *Dataset {
	ds := newDataset(2, 2, 2, []int{2, 13})
	ds.Times[0] = time.Date(2019, 6, 2, 12, 0, 0, 0, time.UTC)
	ds.Times[1] = time.Date(2019, 6, 2, 12, 20, 0, 0, time.UTC)
	ds.Counts[0] = 3
	ds.Counts[1] = 7
	for r := 0; r < 2; r++ {
		for c := 0; c < 2; c++ {
			ds.Patches[0][r][c][0] = float32(10*r + c)
			ds.Patches[0][r][c][1] = float32(100 + 10*r + c)
			ds.Lons[0][r][c] = -75.0 + float32(c)*0.01
			ds.Lats[0][r][c] = float32(r) * 0.01
		}
	}
	return ds
}

func TestWriteDatasetRoundTrip(t *testing.T) {
	ds := testDataset()
	path := filepath.Join(t.TempDir(), "out", "abi_patches_20190602.nc")
	require.NoError(t, WriteDataset(path, ds))

	nc, err := netcdf.Open(path)
	require.NoError(t, err)
	defer nc.Close()

	bands, err := nc.GetVariable("band")
	require.NoError(t, err)
	assert.Equal(t, []int32{2, 13}, bands.Values)

	ys, err := nc.GetVariable("y")
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 1}, ys.Values)

	patches, err := nc.GetVariable("abi")
	require.NoError(t, err)
	assert.Equal(t, []string{"patch", "y", "x", "band"}, patches.Dimensions)
	assert.Equal(t, ds.Patches, patches.Values)

	counts, err := nc.GetVariable("flash_counts")
	require.NoError(t, err)
	assert.Equal(t, []int32{3, 7}, counts.Values)

	times, err := nc.GetVariable("time")
	require.NoError(t, err)
	secs, ok := times.Values.([]float64)
	require.True(t, ok)
	assert.InDelta(t, float64(ds.Times[0].Unix()), secs[0], 1e-6)
}

func TestWriteDatasetGzip(t *testing.T) {
	ds := testDataset()
	path := filepath.Join(t.TempDir(), "abi_patches_20190602.nc.gz")
	require.NoError(t, WriteDataset(path, ds))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(raw), 2)
	assert.Equal(t, byte(0x1f), raw[0])
	assert.Equal(t, byte(0x8b), raw[1])

	// The uncompressed intermediate is cleaned up.
	_, err = os.Stat(filepath.Join(filepath.Dir(path), "abi_patches_20190602.nc.tmp"))
	assert.True(t, os.IsNotExist(err))
}

// A failed compression must not leave a partial .gz behind.
func TestGzipFileCleansUpOnError(t *testing.T) {
	src := t.TempDir() // reading a directory fails mid-copy
	dst := filepath.Join(t.TempDir(), "broken.nc.gz")

	require.Error(t, gzipFile(src, dst))
	_, err := os.Stat(dst)
	assert.True(t, os.IsNotExist(err))
}
