package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/petzb/goes16ci/internal/glm"
	"github.com/petzb/goes16ci/internal/sampler"
)

func newExtractCommand() *cli.Command {
	return &cli.Command{
		Name:  "extract",
		Usage: "Sample labeled ABI patches from a GLM lightning-count grid",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "abi-root",
				Usage:    "Root of the date-partitioned ABI granule tree",
				Sources:  cli.EnvVars("GOESPATCH_ABI_ROOT"),
				Required: true,
			},
			&cli.StringFlag{
				Name:    "glm-dir",
				Usage:   "Directory holding GLM count-grid files",
				Sources: cli.EnvVars("GOESPATCH_GLM_DIR"),
			},
			&cli.StringFlag{
				Name:  "glm-grid",
				Usage: "Explicit count-grid file (overrides --glm-dir naming)",
			},
			&cli.StringFlag{
				Name:  "date",
				Usage: "Grid start date, YYYY-MM-DD",
			},
			&cli.DurationFlag{
				Name:  "grid-freq",
				Usage: "Period covered by one count-grid file",
				Value: 24 * time.Hour,
			},
			&cli.StringSliceFlag{
				Name:    "band",
				Usage:   "ABI band to extract (repeatable or comma-separated)",
				Sources: cli.EnvVars("GOESPATCH_BANDS"),
			},
			&cli.DurationFlag{
				Name:  "lead",
				Usage: "Lead time between the ABI frame and the lightning labels",
			},
			&cli.IntFlag{
				Name:  "patch-width",
				Usage: "Patch width in pixels",
				Value: 32,
			},
			&cli.IntFlag{
				Name:  "patch-height",
				Usage: "Patch height in pixels",
				Value: 32,
			},
			&cli.IntFlag{
				Name:  "samples",
				Usage: "Patches sampled per grid timestep",
				Value: 25,
			},
			&cli.DurationFlag{
				Name:  "tolerance",
				Usage: "Granule match tolerance",
				Value: sampler.DefaultTolerance,
			},
			&cli.StringFlag{
				Name:  "time-key",
				Usage: "Granule timestamp to match against: start, end, or created",
				Value: "end",
			},
			&cli.IntFlag{
				Name:    "seed",
				Usage:   "Sampling seed",
				Sources: cli.EnvVars("GOESPATCH_SEED"),
				Value:   124,
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent timesteps",
				Value: 1,
			},
			&cli.StringFlag{
				Name:     "out-dir",
				Usage:    "Directory for the output dataset",
				Sources:  cli.EnvVars("GOESPATCH_OUT_DIR"),
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "compress",
				Usage: "Gzip the output dataset",
			},
			&cli.BoolFlag{
				Name:  "continue-on-missing",
				Usage: "Zero-fill timesteps without a usable frame instead of failing",
			},
		},
		Action: runExtract,
	}
}

// datasetStamp names the output artifact: the --date flag when given,
// otherwise the day of the grid's first timestep.
func datasetStamp(dateFlag string, times []time.Time) (string, error) {
	if dateFlag != "" {
		d, err := parseDate(dateFlag)
		if err != nil {
			return "", err
		}
		return d.Format("20060102"), nil
	}
	if len(times) == 0 {
		return "", fmt.Errorf("count grid has no timesteps to derive the output date from")
	}
	return times[0].UTC().Format("20060102"), nil
}

func runExtract(ctx context.Context, cmd *cli.Command) error {
	logger := newLogger(cmd)
	serveMetrics(cmd, logger)

	bands, err := parseBands(cmd.StringSlice("band"))
	if err != nil {
		return err
	}
	key, err := parseTimeKey(cmd.String("time-key"))
	if err != nil {
		return err
	}

	gridPath := cmd.String("glm-grid")
	date := cmd.String("date")
	if gridPath == "" {
		if cmd.String("glm-dir") == "" || date == "" {
			return fmt.Errorf("either --glm-grid or both --glm-dir and --date are required")
		}
		start, err := parseDate(date)
		if err != nil {
			return err
		}
		gridPath = filepath.Join(cmd.String("glm-dir"), glm.Filename(start, cmd.Duration("grid-freq"), ""))
	}
	grid, err := glm.Open(gridPath)
	if err != nil {
		return err
	}
	defer grid.Close()

	stamp, err := datasetStamp(date, grid.Times)
	if err != nil {
		return err
	}
	logger.Info("count grid opened",
		"path", gridPath, "timesteps", len(grid.Times), "rows", grid.Rows, "cols", grid.Cols)

	ds, err := sampler.Sample(ctx, grid, sampler.Config{
		GranuleRoot:       cmd.String("abi-root"),
		Bands:             bands,
		LeadTime:          cmd.Duration("lead"),
		PatchWidth:        int(cmd.Int("patch-width")),
		PatchHeight:       int(cmd.Int("patch-height")),
		SamplesPerStep:    int(cmd.Int("samples")),
		Tolerance:         cmd.Duration("tolerance"),
		Key:               key,
		Seed:              cmd.Int("seed"),
		Workers:           int(cmd.Int("workers")),
		ContinueOnMissing: cmd.Bool("continue-on-missing"),
		Logger:            logger,
	})
	if err != nil {
		return err
	}

	out := outputName(cmd.String("out-dir"), stamp, cmd.Bool("compress"))
	if err := sampler.WriteDataset(out, ds); err != nil {
		return err
	}
	logger.Info("dataset written", "path", out, "patches", ds.Len(), "bands", ds.Bands)
	return nil
}
