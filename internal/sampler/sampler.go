// Package sampler draws random patch samples from a GLM lightning-count
// grid: for every grid timestep it picks cells without replacement,
// loads the ABI frame observed a lead time before the labels, and
// extracts one patch per picked cell.
package sampler

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/petzb/goes16ci/internal/abi"
	"github.com/petzb/goes16ci/internal/glm"
	"github.com/petzb/goes16ci/internal/granule"
	"github.com/petzb/goes16ci/internal/metrics"
)

// DefaultTolerance is the granule-match tolerance used when Config
// leaves it zero. It is deliberately wide: CONUS granules arrive every
// five minutes, so anything inside eleven minutes is the neighboring
// scan at worst.
const DefaultTolerance = 11 * time.Minute

// Config controls a sampling run.
type Config struct {
	GranuleRoot    string
	Bands          []int
	LeadTime       time.Duration // label time minus image time
	PatchWidth     int
	PatchHeight    int
	SamplesPerStep int
	Tolerance      time.Duration
	Key            granule.TimeKey
	Seed           int64
	Workers        int // concurrent timesteps; default 1

	// ContinueOnMissing leaves a timestep's patches zero-filled when no
	// usable frame exists instead of failing the run.
	ContinueOnMissing bool

	Logger *slog.Logger
}

func (cfg *Config) normalize() error {
	if len(cfg.Bands) == 0 {
		return fmt.Errorf("sampler: no bands configured")
	}
	if cfg.PatchWidth <= 0 || cfg.PatchHeight <= 0 {
		return fmt.Errorf("sampler: invalid patch size %dx%d", cfg.PatchWidth, cfg.PatchHeight)
	}
	if cfg.SamplesPerStep <= 0 {
		return fmt.Errorf("sampler: samples per step must be positive")
	}
	cfg.Bands = append([]int(nil), cfg.Bands...)
	sort.Ints(cfg.Bands)
	if cfg.Tolerance == 0 {
		cfg.Tolerance = DefaultTolerance
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return nil
}

// Sample draws SamplesPerStep patches from every timestep of the grid.
// Timesteps run concurrently up to cfg.Workers, each writing into its own
// dataset slots, so the output is identical regardless of worker count.
// By default a timestep whose ABI frame cannot be assembled fails the
// whole run and nothing should be written; ContinueOnMissing downgrades
// that to a warning and a zero-filled timestep.
func Sample(ctx context.Context, grid *glm.Grid, cfg Config) (*Dataset, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	cells := grid.Rows * grid.Cols
	if cfg.SamplesPerStep > cells {
		return nil, fmt.Errorf("sampler: %d samples per step exceeds %d grid cells", cfg.SamplesPerStep, cells)
	}

	ds := newDataset(len(grid.Times)*cfg.SamplesPerStep, cfg.PatchHeight, cfg.PatchWidth, cfg.Bands)

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(cfg.Workers)
	for t := range grid.Times {
		t := t
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			if err := sampleStep(grid, cfg, ds, t); err != nil {
				return err
			}
			metrics.ObserveTimestepDuration(time.Since(start).Seconds())
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return ds, nil
}

func sampleStep(grid *glm.Grid, cfg Config, ds *Dataset, t int) error {
	counts, err := grid.CountsAt(t)
	if err != nil {
		return err
	}
	labelTime := grid.Times[t]

	// Each timestep seeds its own generator, so the picked cells depend
	// only on (seed, timestep) and never on worker scheduling.
	rng := rand.New(rand.NewSource(cfg.Seed + int64(t)))
	picks := rng.Perm(grid.Rows * grid.Cols)[:cfg.SamplesPerStep]

	base := t * cfg.SamplesPerStep
	for s, pick := range picks {
		r, c := pick/grid.Cols, pick%grid.Cols
		ds.Times[base+s] = labelTime
		ds.Counts[base+s] = counts[r][c]
	}

	img, err := abi.New(labelTime.Add(-cfg.LeadTime), abi.Config{
		Root:      cfg.GranuleRoot,
		Channels:  cfg.Bands,
		Tolerance: cfg.Tolerance,
		Key:       cfg.Key,
		Logger:    cfg.Logger,
	})
	if err != nil {
		if !cfg.ContinueOnMissing {
			return fmt.Errorf("sampler: timestep %s: %w", labelTime.Format(time.RFC3339), err)
		}
		cfg.Logger.Warn("skipping timestep, no usable frame",
			"time", labelTime.Format(time.RFC3339), "error", err)
		return nil
	}
	defer img.Close()

	for s, pick := range picks {
		r, c := pick/grid.Cols, pick%grid.Cols
		patch, err := img.ExtractPatch(grid.Lon[r][c], grid.Lat[r][c], cfg.PatchWidth, cfg.PatchHeight)
		if err != nil {
			cfg.Logger.Warn("skipping patch",
				"time", labelTime.Format(time.RFC3339),
				"lon", grid.Lon[r][c], "lat", grid.Lat[r][c], "error", err)
			continue
		}
		ds.setPatch(base+s, patch)
	}
	return nil
}
