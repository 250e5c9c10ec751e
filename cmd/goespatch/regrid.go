package main

import (
	"context"
	"fmt"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/ctessum/geom/proj"
	"github.com/urfave/cli/v3"

	"github.com/petzb/goes16ci/internal/ncutil"
	"github.com/petzb/goes16ci/internal/regrid"
)

func newRegridCommand() *cli.Command {
	return &cli.Command{
		Name:  "regrid",
		Usage: "Resample a raster onto another file's grid and projection",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "in",
				Usage:    "Source NetCDF file",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "var",
				Usage: "Raster variable to resample",
				Value: "Rad",
			},
			&cli.StringFlag{
				Name:     "grid",
				Usage:    "NetCDF file supplying the destination x/y axes",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "src-proj",
				Usage: "Proj4 string of the source grid",
			},
			&cli.StringFlag{
				Name:  "dst-proj",
				Usage: "Proj4 string of the destination grid",
			},
			&cli.IntFlag{
				Name:  "degree",
				Usage: "Spline degree, 1 or 3",
				Value: 3,
			},
			&cli.StringFlag{
				Name:     "out",
				Usage:    "Output NetCDF file",
				Required: true,
			},
		},
		Action: runRegrid,
	}
}

func runRegrid(ctx context.Context, cmd *cli.Command) error {
	logger := newLogger(cmd)
	serveMetrics(cmd, logger)

	values, xSrc, ySrc, err := readRaster(cmd.String("in"), cmd.String("var"))
	if err != nil {
		return err
	}
	xDstAxis, yDstAxis, err := readAxes(cmd.String("grid"))
	if err != nil {
		return err
	}

	trans, err := buildTransform(cmd.String("dst-proj"), cmd.String("src-proj"))
	if err != nil {
		return err
	}

	xDst := make([][]float64, len(yDstAxis))
	yDst := make([][]float64, len(yDstAxis))
	for r, yv := range yDstAxis {
		xDst[r] = append([]float64(nil), xDstAxis...)
		row := make([]float64, len(xDstAxis))
		for c := range row {
			row[c] = yv
		}
		yDst[r] = row
	}

	out, err := regrid.Regrid(values, xSrc, ySrc, xDst, yDst, trans, regrid.Options{
		Degree: int(cmd.Int("degree")),
	})
	if err != nil {
		return err
	}

	if err := writeRaster(cmd.String("out"), cmd.String("var"), xDstAxis, yDstAxis, out); err != nil {
		return err
	}
	logger.Info("raster resampled",
		"in", cmd.String("in"), "out", cmd.String("out"),
		"rows", len(yDstAxis), "cols", len(xDstAxis))
	return nil
}

// buildTransform maps destination coordinates into the source projection.
// Both proj strings empty means the grids already share a projection.
func buildTransform(dstProj, srcProj string) (proj.Transformer, error) {
	if dstProj == "" && srcProj == "" {
		return nil, nil
	}
	if dstProj == "" || srcProj == "" {
		return nil, fmt.Errorf("--src-proj and --dst-proj must be given together")
	}
	dstSR, err := proj.Parse(dstProj)
	if err != nil {
		return nil, fmt.Errorf("parsing --dst-proj: %w", err)
	}
	srcSR, err := proj.Parse(srcProj)
	if err != nil {
		return nil, fmt.Errorf("parsing --src-proj: %w", err)
	}
	return dstSR.NewTransform(srcSR)
}

func readRaster(path, name string) (values [][]float64, x, y []float64, err error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer nc.Close()

	v, err := nc.GetVariable(name)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%s: %s: %w", path, name, err)
	}
	if values, err = ncutil.Unpack2D(v); err != nil {
		return nil, nil, nil, fmt.Errorf("%s: %s: %w", path, name, err)
	}
	if x, y, err = axes(nc, path); err != nil {
		return nil, nil, nil, err
	}
	if len(values) != len(y) || (len(values) > 0 && len(values[0]) != len(x)) {
		return nil, nil, nil, fmt.Errorf("%s: %s shape does not match its axes", path, name)
	}
	return values, x, y, nil
}

func readAxes(path string) (x, y []float64, err error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer nc.Close()
	return axes(nc, path)
}

func axes(nc api.Group, path string) (x, y []float64, err error) {
	for _, name := range []string{"x", "y"} {
		v, err := nc.GetVariable(name)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %s: %w", path, name, err)
		}
		axis, err := ncutil.Unpack1D(v)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %s: %w", path, name, err)
		}
		if name == "x" {
			x = axis
		} else {
			y = axis
		}
	}
	return x, y, nil
}

func writeRaster(path, name string, x, y []float64, values [][]float64) error {
	cw, err := cdf.OpenWriter(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := cw.AddVar("x", api.Variable{Values: x, Dimensions: []string{"x"}}); err != nil {
		return err
	}
	if err := cw.AddVar("y", api.Variable{Values: y, Dimensions: []string{"y"}}); err != nil {
		return err
	}
	if err := cw.AddVar(name, api.Variable{Values: values, Dimensions: []string{"y", "x"}}); err != nil {
		return err
	}
	return cw.Close()
}
