// Command diag opens an ABI granule and dumps what the pipeline would
// see: parsed filename stamps, raster shape, projection constants, and a
// nadir round-trip through the fixed-grid projection.
package main

import (
	"fmt"
	"math"
	"os"

	"github.com/petzb/goes16ci/internal/geos"
	"github.com/petzb/goes16ci/internal/granule"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: diag <granule.nc>")
		os.Exit(2)
	}

	g, err := granule.Open(os.Args[1])
	if err != nil {
		fmt.Println("ERROR opening granule:", err)
		os.Exit(1)
	}
	defer g.Close()

	fmt.Printf("Channel %d\n", g.Channel)
	fmt.Printf("  start   %v\n", g.Stamps.Start)
	fmt.Printf("  end     %v\n", g.Stamps.End)
	fmt.Printf("  created %v\n", g.Stamps.Created)
	fmt.Printf("Raster %dx%d (rows x cols)\n", len(g.Y), len(g.X))

	valid, total := 0, 0
	for _, row := range g.Rad {
		for _, v := range row {
			total++
			if !math.IsNaN(v) {
				valid++
			}
		}
	}
	fmt.Printf("Valid pixels: %d of %d\n", valid, total)

	fmt.Printf("Projection: height=%.1f lon0=%.2f sweep=%s\n",
		g.Proj.PerspectiveHeight, g.Proj.OriginLongitude, g.Proj.SweepAxis)

	p, err := geos.New(g.Proj)
	if err != nil {
		fmt.Println("ERROR building projection:", err)
		os.Exit(1)
	}
	x, y := p.Forward(g.Proj.OriginLongitude, 0)
	lon, lat := p.Inverse(x, y)
	fmt.Printf("Nadir round-trip: (%.2f, 0) -> (%.1fm, %.1fm) -> (%.6f, %.6f)\n",
		g.Proj.OriginLongitude, x, y, lon, lat)
}
