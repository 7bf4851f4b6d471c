package proj

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// AreaSquareMeters projects the geometry into EPSG:3045 and applies the
// planar area formula there. Summed over polygons for multi-part parcels.
func AreaSquareMeters(mp orb.MultiPolygon) float64 {
	var total float64
	for _, poly := range mp {
		total += math.Abs(planar.Area(ProjectPolygon(poly)))
	}
	return total
}
