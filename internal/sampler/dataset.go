package sampler

import (
	"time"

	"github.com/petzb/goes16ci/internal/abi"
)

// Dataset is the sampled output of one count-grid file: a fixed-shape
// stack of multi-channel patches with their coordinate grids, label
// times, and flash counts. Slot i belongs to timestep i/samplesPerStep,
// sample i%samplesPerStep, so two runs with the same seed fill the same
// slots. Patches that could not be extracted stay zero.
type Dataset struct {
	Bands       []int
	PatchHeight int
	PatchWidth  int

	Patches [][][][]float32 // (patch, y, x, band)
	Lons    [][][]float32   // (patch, y, x)
	Lats    [][][]float32
	Times   []time.Time // label time per patch
	Counts  []int32     // flash count per patch
}

func newDataset(n, height, width int, bands []int) *Dataset {
	ds := &Dataset{
		Bands:       bands,
		PatchHeight: height,
		PatchWidth:  width,
		Patches:     make([][][][]float32, n),
		Lons:        make([][][]float32, n),
		Lats:        make([][][]float32, n),
		Times:       make([]time.Time, n),
		Counts:      make([]int32, n),
	}
	for i := 0; i < n; i++ {
		ds.Patches[i] = zeroPatch(height, width, len(bands))
		ds.Lons[i] = zeroGrid(height, width)
		ds.Lats[i] = zeroGrid(height, width)
	}
	return ds
}

func zeroPatch(height, width, bands int) [][][]float32 {
	p := make([][][]float32, height)
	for r := range p {
		row := make([][]float32, width)
		for c := range row {
			row[c] = make([]float32, bands)
		}
		p[r] = row
	}
	return p
}

func zeroGrid(height, width int) [][]float32 {
	g := make([][]float32, height)
	for r := range g {
		g[r] = make([]float32, width)
	}
	return g
}

// setPatch copies an extracted patch into slot i. Truncated patches land
// in the top-left corner of the slot; the remainder stays zero.
func (ds *Dataset) setPatch(i int, p *abi.Patch) {
	for r := 0; r < len(p.Values) && r < ds.PatchHeight; r++ {
		for c := 0; c < len(p.Values[r]) && c < ds.PatchWidth; c++ {
			for b, v := range p.Values[r][c] {
				ds.Patches[i][r][c][b] = float32(v)
			}
			ds.Lons[i][r][c] = float32(p.Lon[r][c])
			ds.Lats[i][r][c] = float32(p.Lat[r][c])
		}
	}
}

// Len returns the number of patch slots.
func (ds *Dataset) Len() int { return len(ds.Patches) }
