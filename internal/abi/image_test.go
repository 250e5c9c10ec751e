package abi

import (
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petzb/goes16ci/internal/geos"
	"github.com/petzb/goes16ci/internal/granule"
	"github.com/petzb/goes16ci/internal/nctest"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

const testHeight = 35786023.0

func testProjMeta() geos.Metadata {
	return geos.Metadata{
		PerspectiveHeight: testHeight,
		OriginLongitude:   -75.0,
		SweepAxis:         "x",
		SemiMajor:         6378137.0,
		SemiMinor:         6356752.31414,
	}
}

// writeFrame writes a 5x5 granule per channel, centered on the satellite
// nadir, with Rad[r][c] = base + 10r + c.
func writeFrame(t *testing.T, root string, end time.Time, channels []int, bases map[int]float32) {
	t.Helper()
	x := []float64{-2e-4, -1e-4, 0, 1e-4, 2e-4}
	y := []float64{2e-4, 1e-4, 0, -1e-4, -2e-4} // north to south, as ABI scans
	for _, ch := range channels {
		rad := make([][]float32, len(y))
		for r := range rad {
			row := make([]float32, len(x))
			for c := range row {
				row[c] = bases[ch] + float32(10*r+c)
			}
			rad[r] = row
		}
		_, err := nctest.WriteGranule(nctest.GranuleSpec{
			Dir:     root,
			Channel: ch,
			Start:   end.Add(-2 * time.Minute),
			End:     end,
			Created: end.Add(30 * time.Second),
			X:       x,
			Y:       y,
			Rad:     rad,
			Proj:    testProjMeta(),
		})
		require.NoError(t, err)
	}
}

func newTestImage(t *testing.T, root string, when time.Time, channels []int) *Image {
	t.Helper()
	img, err := New(when, Config{
		Root:      root,
		Channels:  channels,
		Tolerance: 5 * time.Minute,
		Logger:    testLogger,
	})
	require.NoError(t, err)
	t.Cleanup(img.Close)
	return img
}

func TestNewSortsChannelsAndBuildsGeometry(t *testing.T) {
	root := t.TempDir()
	when := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	writeFrame(t, root, when, []int{2, 13}, map[int]float32{2: 0, 13: 1000})

	img := newTestImage(t, root, when, []int{13, 2})
	assert.Equal(t, []int{2, 13}, img.Channels)

	rows, cols := img.Size()
	assert.Equal(t, 5, rows)
	assert.Equal(t, 5, cols)

	// The center pixel sits at the satellite nadir.
	assert.InDelta(t, -75.0, img.Lon()[2][2], 1e-6)
	assert.InDelta(t, 0.0, img.Lat()[2][2], 1e-6)
	// Northern rows have positive latitude.
	assert.Greater(t, img.Lat()[0][2], img.Lat()[4][2])
}

// TestExtractPatchCenter verifies a 3x3 request centered on the middle
// pixel returns exactly the central 3x3 block of each channel.
func TestExtractPatchCenter(t *testing.T) {
	root := t.TempDir()
	when := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	writeFrame(t, root, when, []int{2, 13}, map[int]float32{2: 0, 13: 1000})
	img := newTestImage(t, root, when, []int{2, 13})

	patch, err := img.ExtractPatch(img.Lon()[2][2], img.Lat()[2][2], 3, 3)
	require.NoError(t, err)
	require.Len(t, patch.Values, 3)
	require.Len(t, patch.Values[0], 3)

	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			want := float64(10*(r+1) + (c + 1))
			assert.InDelta(t, want, patch.Values[r][c][0], 1e-6, "channel 2 at (%d,%d)", r, c)
			assert.InDelta(t, want+1000, patch.Values[r][c][1], 1e-6, "channel 13 at (%d,%d)", r, c)
		}
	}
	assert.InDelta(t, img.Lon()[1][1], patch.Lon[0][0], 1e-12)
	assert.InDelta(t, img.Lat()[3][3], patch.Lat[2][2], 1e-12)
}

// TestExtractPatchTruncatesAtEdge verifies the half-open window clips at
// the frame boundary instead of padding.
func TestExtractPatchTruncatesAtEdge(t *testing.T) {
	root := t.TempDir()
	when := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	writeFrame(t, root, when, []int{2}, map[int]float32{2: 0})
	img := newTestImage(t, root, when, []int{2})

	// Centered on the top-left pixel: rows [-1,2) clip to [0,2).
	patch, err := img.ExtractPatch(img.Lon()[0][0], img.Lat()[0][0], 3, 3)
	require.NoError(t, err)
	assert.Len(t, patch.Values, 2)
	assert.Len(t, patch.Values[0], 2)
	assert.InDelta(t, 0.0, patch.Values[0][0][0], 1e-6)

	// Bottom-right corner: rows [3,6) clip to [3,5).
	patch, err = img.ExtractPatch(img.Lon()[4][4], img.Lat()[4][4], 3, 3)
	require.NoError(t, err)
	assert.Len(t, patch.Values, 2)
	assert.Len(t, patch.Values[0], 2)
	assert.InDelta(t, 44.0, patch.Values[1][1][0], 1e-6)
}

func TestExtractPatchEvenSize(t *testing.T) {
	root := t.TempDir()
	when := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	writeFrame(t, root, when, []int{2}, map[int]float32{2: 0})
	img := newTestImage(t, root, when, []int{2})

	// 4x4 around the center pixel: rows [0,4), cols [0,4).
	patch, err := img.ExtractPatch(img.Lon()[2][2], img.Lat()[2][2], 4, 4)
	require.NoError(t, err)
	assert.Len(t, patch.Values, 4)
	assert.Len(t, patch.Values[0], 4)
	assert.InDelta(t, 0.0, patch.Values[0][0][0], 1e-6)
	assert.InDelta(t, 33.0, patch.Values[3][3][0], 1e-6)
}

func TestExtractPatchRejectsInvisibleCenter(t *testing.T) {
	root := t.TempDir()
	when := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	writeFrame(t, root, when, []int{2}, map[int]float32{2: 0})
	img := newTestImage(t, root, when, []int{2})

	_, err := img.ExtractPatch(105.0, 0.0, 3, 3)
	assert.Error(t, err)
}

// TestOffDiskPixelsAreNaN verifies coordinate grids mask pixels whose scan
// angles miss the Earth entirely.
func TestOffDiskPixelsAreNaN(t *testing.T) {
	root := t.TempDir()
	when := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	x := []float64{0, 0.2} // 0.2 rad is far past the limb
	y := []float64{0, 0.2}
	rad := [][]float32{{1, 2}, {3, 4}}
	_, err := nctest.WriteGranule(nctest.GranuleSpec{
		Dir:     root,
		Channel: 2,
		Start:   when.Add(-2 * time.Minute),
		End:     when,
		Created: when.Add(30 * time.Second),
		X:       x,
		Y:       y,
		Rad:     rad,
		Proj:    testProjMeta(),
	})
	require.NoError(t, err)

	img := newTestImage(t, root, when, []int{2})
	assert.False(t, math.IsNaN(img.Lon()[0][0]))
	assert.True(t, math.IsNaN(img.Lon()[0][1]))
	assert.True(t, math.IsNaN(img.Lat()[1][0]))
	assert.True(t, math.IsNaN(img.Lat()[1][1]))
}

func TestNewFailsWhenChannelMissing(t *testing.T) {
	root := t.TempDir()
	when := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	writeFrame(t, root, when, []int{2}, map[int]float32{2: 0})

	_, err := New(when, Config{
		Root:      root,
		Channels:  []int{2, 13},
		Tolerance: 5 * time.Minute,
		Logger:    testLogger,
	})
	require.Error(t, err)
	var nf *granule.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestExtractAfterCloseFails(t *testing.T) {
	root := t.TempDir()
	when := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	writeFrame(t, root, when, []int{2}, map[int]float32{2: 0})
	img := newTestImage(t, root, when, []int{2})

	img.Close()
	img.Close() // idempotent
	_, err := img.ExtractPatch(-75, 0, 3, 3)
	assert.Error(t, err)
}
