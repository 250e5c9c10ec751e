// Command goespatch extracts labeled ABI patch datasets from GLM
// lightning-count grids and resamples rasters between map projections.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/petzb/goes16ci/internal/granule"
	"github.com/petzb/goes16ci/internal/metrics"
)

func main() {
	root := &cli.Command{
		Name:    "goespatch",
		Usage:   "Extract GOES-16 ABI patches around GLM lightning observations",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable debug logging",
				Sources: cli.EnvVars("GOESPATCH_VERBOSE"),
			},
			&cli.StringFlag{
				Name:    "metrics-addr",
				Usage:   "Serve Prometheus metrics on this address (empty disables)",
				Sources: cli.EnvVars("GOESPATCH_METRICS_ADDR"),
			},
		},
		Commands: []*cli.Command{
			newExtractCommand(),
			newRegridCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.Run(ctx, os.Args); err != nil {
		slog.Error("goespatch failed", "error", err)
		os.Exit(1)
	}
}

func newLogger(cmd *cli.Command) *slog.Logger {
	level := slog.LevelInfo
	if cmd.Bool("verbose") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// serveMetrics starts the Prometheus listener when --metrics-addr is set.
func serveMetrics(cmd *cli.Command, logger *slog.Logger) {
	addr := cmd.String("metrics-addr")
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Warn("metrics listener stopped", "error", err)
		}
	}()
}

func parseBands(raw []string) ([]int, error) {
	var bands []int
	for _, item := range raw {
		for _, field := range strings.Split(item, ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			b, err := strconv.Atoi(field)
			if err != nil {
				return nil, fmt.Errorf("invalid band %q", field)
			}
			bands = append(bands, b)
		}
	}
	if len(bands) == 0 {
		return nil, fmt.Errorf("at least one band is required")
	}
	return bands, nil
}

func parseTimeKey(name string) (granule.TimeKey, error) {
	switch name {
	case "", "end":
		return granule.TimeEnd, nil
	case "start":
		return granule.TimeStart, nil
	case "created":
		return granule.TimeCreated, nil
	default:
		return 0, fmt.Errorf("unknown time key %q (want start, end, or created)", name)
	}
}

func outputName(dir, date string, compress bool) string {
	name := fmt.Sprintf("abi_patches_%s.nc", date)
	if compress {
		name += ".gz"
	}
	return filepath.Join(dir, name)
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "20060102"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
}
