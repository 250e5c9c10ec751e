// Package geos implements the geostationary fixed-grid map projection used
// by the GOES-R series Advanced Baseline Imager.
//
// The math follows the fixed-grid coordinate equations in the GOES-R Product
// Definition and Users' Guide (PUG Volume 3, section 5.1.2.8). Projected
// coordinates are scan angles scaled by the satellite perspective height,
// which matches the "geos" projection in PROJ.
package geos

import (
	"fmt"
	"math"
)

// GRS80 ellipsoid parameters used by the GOES fixed grid.
const (
	grs80SemiMajor = 6378137.0     // meters
	grs80SemiMinor = 6356752.31414 // meters
)

// Sentinel is returned by Forward and Inverse for coordinates that do not
// intersect the visible Earth disk. The magnitude mirrors PROJ's HUGE_VAL
// convention; callers mask anything above SentinelThreshold to NaN.
const (
	Sentinel          = 1e30
	SentinelThreshold = 1e10
)

// Metadata holds the projection parameters carried by an ABI granule's
// goes_imager_projection variable.
type Metadata struct {
	PerspectiveHeight float64 // perspective point height above the ellipsoid, meters
	OriginLongitude   float64 // longitude of projection origin, degrees
	SweepAxis         string  // "x" for GOES, "y" for Meteosat
	SemiMajor         float64 // meters; GRS80 when zero
	SemiMinor         float64 // meters; GRS80 when zero
}

// Projection converts between geographic coordinates and geostationary
// projection-plane coordinates. Immutable after construction.
type Projection struct {
	h      float64 // perspective height above the ellipsoid
	hc     float64 // distance from Earth center to the satellite
	lon0   float64 // origin longitude, radians
	req    float64
	rpol   float64
	ratio2 float64 // req^2 / rpol^2
	sweepX bool
}

// New builds a Projection from granule metadata. A missing or non-positive
// perspective height is a construction-time error.
func New(meta Metadata) (*Projection, error) {
	if meta.PerspectiveHeight <= 0 {
		return nil, fmt.Errorf("geos: invalid perspective height %v", meta.PerspectiveHeight)
	}
	req := meta.SemiMajor
	if req == 0 {
		req = grs80SemiMajor
	}
	rpol := meta.SemiMinor
	if rpol == 0 {
		rpol = grs80SemiMinor
	}
	if rpol > req {
		return nil, fmt.Errorf("geos: semi-minor axis %v exceeds semi-major %v", rpol, req)
	}
	sweep := meta.SweepAxis
	if sweep == "" {
		sweep = "x"
	}
	if sweep != "x" && sweep != "y" {
		return nil, fmt.Errorf("geos: unknown sweep angle axis %q", sweep)
	}
	return &Projection{
		h:      meta.PerspectiveHeight,
		hc:     meta.PerspectiveHeight + req,
		lon0:   meta.OriginLongitude * math.Pi / 180,
		req:    req,
		rpol:   rpol,
		ratio2: (req * req) / (rpol * rpol),
		sweepX: sweep == "x",
	}, nil
}

// PerspectiveHeight returns the satellite height above the ellipsoid in
// meters. Axis vectors in scan-angle units are scaled by this to obtain
// projection-plane meters.
func (p *Projection) PerspectiveHeight() float64 {
	return p.h
}

// Forward converts geographic (lon, lat) in degrees to projection-plane
// (x, y) in meters. Locations on the far side of the Earth, invisible from
// the satellite, yield (Sentinel, Sentinel).
func (p *Projection) Forward(lon, lat float64) (x, y float64) {
	phi := lat * math.Pi / 180
	dlam := lon*math.Pi/180 - p.lon0
	// Wrap to (-pi, pi] so antimeridian-adjacent inputs behave.
	dlam = math.Mod(dlam+3*math.Pi, 2*math.Pi) - math.Pi

	// Geocentric latitude and radius on the ellipsoid surface.
	phic := math.Atan(math.Tan(phi) / p.ratio2)
	e2 := (p.req*p.req - p.rpol*p.rpol) / (p.req * p.req)
	cosc := math.Cos(phic)
	rc := p.rpol / math.Sqrt(1-e2*cosc*cosc)

	// Satellite-frame vector: sx toward Earth center, sz north.
	sx := p.hc - rc*cosc*math.Cos(dlam)
	sy := -rc * cosc * math.Sin(dlam)
	sz := rc * math.Sin(phic)

	// Visibility: the surface point must face the satellite.
	if p.hc*(p.hc-sx) < sy*sy+p.ratio2*sz*sz {
		return Sentinel, Sentinel
	}

	r := math.Sqrt(sx*sx + sy*sy + sz*sz)
	var ax, ay float64
	if p.sweepX {
		ax = math.Asin(-sy / r)
		ay = math.Atan(sz / sx)
	} else {
		ax = math.Atan(-sy / sx)
		ay = math.Asin(sz / r)
	}
	return ax * p.h, ay * p.h
}

// Inverse converts projection-plane (x, y) in meters to geographic
// (lon, lat) in degrees. Coordinates strictly outside the visible Earth
// disk yield (Sentinel, Sentinel); callers convert those to NaN.
func (p *Projection) Inverse(x, y float64) (lon, lat float64) {
	ax := x / p.h
	ay := y / p.h

	// Unit view ray from the satellite in its own frame.
	var dx, dy, dz float64
	if p.sweepX {
		dx = math.Cos(ax) * math.Cos(ay)
		dy = -math.Sin(ax)
		dz = math.Cos(ax) * math.Sin(ay)
	} else {
		dx = math.Cos(ax) * math.Cos(ay)
		dy = -math.Sin(ax) * math.Cos(ay)
		dz = math.Sin(ay)
	}

	// Intersect the ray with the ellipsoid: quadratic in range rs.
	qa := dx*dx + dy*dy + p.ratio2*dz*dz
	qb := -2 * p.hc * dx
	qc := p.hc*p.hc - p.req*p.req
	disc := qb*qb - 4*qa*qc
	if disc < 0 {
		return Sentinel, Sentinel
	}
	rs := (-qb - math.Sqrt(disc)) / (2 * qa)

	sx := rs * dx
	sy := rs * dy
	sz := rs * dz

	lat = math.Atan(p.ratio2*sz/math.Hypot(p.hc-sx, sy)) * 180 / math.Pi
	lon = (p.lon0 + math.Atan2(-sy, p.hc-sx)) * 180 / math.Pi
	return lon, lat
}

// OffEarth reports whether a coordinate returned by Forward or Inverse is
// the off-disk sentinel.
func OffEarth(v float64) bool {
	return math.Abs(v) > SentinelThreshold
}
