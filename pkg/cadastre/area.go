package cadastre

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// earthRadius is the WGS84 mean radius in metres.
const earthRadius = 6_371_008.8

// FootprintArea returns the area in m² of a WGS84 polygon or multipolygon.
// Coordinates are projected onto a local equirectangular plane centred on the
// geometry, which is accurate to well under a percent at parcel scale.
func FootprintArea(g geom.T) (float64, error) {
	switch t := g.(type) {
	case *geom.Polygon:
		flat, err := project(t.FlatCoords(), t.Stride())
		if err != nil {
			return 0, err
		}
		return geom.NewPolygonFlat(t.Layout(), flat, t.Ends()).Area(), nil
	case *geom.MultiPolygon:
		flat, err := project(t.FlatCoords(), t.Stride())
		if err != nil {
			return 0, err
		}
		return geom.NewMultiPolygonFlat(t.Layout(), flat, t.Endss()).Area(), nil
	default:
		return 0, eris.Errorf("cadastre: unsupported geometry %T", g)
	}
}

func project(flat []float64, stride int) ([]float64, error) {
	if stride < 2 || len(flat) < 2*stride {
		return nil, eris.New("cadastre: empty geometry")
	}
	var latSum float64
	n := len(flat) / stride
	for i := 0; i < len(flat); i += stride {
		latSum += flat[i+1]
	}
	cosLat := math.Cos(latSum / float64(n) * math.Pi / 180)
	k := earthRadius * math.Pi / 180

	out := make([]float64, len(flat))
	copy(out, flat)
	for i := 0; i < len(out); i += stride {
		out[i] = flat[i] * k * cosLat
		out[i+1] = flat[i+1] * k
	}
	return out, nil
}
