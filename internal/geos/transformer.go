package geos

import (
	"math"

	"github.com/ctessum/geom/proj"
)

// ForwardTransformer adapts the projection's geographic-to-plane conversion
// to the proj.Transformer shape used by the regridding code, so a
// geostationary source composes with destinations parsed from PROJ strings.
// Off-disk points come back as NaN rather than the raw sentinel.
func ForwardTransformer(p *Projection) proj.Transformer {
	return func(lon, lat float64) (float64, float64, error) {
		x, y := p.Forward(lon, lat)
		if OffEarth(x) || OffEarth(y) {
			return math.NaN(), math.NaN(), nil
		}
		return x, y, nil
	}
}

// InverseTransformer adapts the plane-to-geographic conversion to a
// proj.Transformer, masking off-disk results to NaN.
func InverseTransformer(p *Projection) proj.Transformer {
	return func(x, y float64) (float64, float64, error) {
		lon, lat := p.Inverse(x, y)
		if OffEarth(lon) || OffEarth(lat) {
			return math.NaN(), math.NaN(), nil
		}
		return lon, lat, nil
	}
}
