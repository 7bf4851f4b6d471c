// Package proj projects geographic coordinates into the metric frame used
// for area computation. The cadastral WFS serves geometry in a geographic
// CRS (decimal degrees); areas must be measured after projecting into
// ETRS89 / UTM zone 33N (EPSG:3045), never in degrees.
package proj

import (
	"github.com/paulmach/orb"
	"github.com/wroge/wgs84"
)

// EPSG:3045 is ETRS89 / UTM zone 33N. The input frame here differs from
// WGS84 by centimeters, far below cadastral tolerance, so the plain
// lon/lat system serves as the source.
var toUTM33 = wgs84.LonLat().To(wgs84.ETRS89UTM(33))

// ToEPSG3045 projects a lon/lat point (degrees) into EPSG:3045 meters.
func ToEPSG3045(p orb.Point) orb.Point {
	east, north, _ := toUTM33(p.Lon(), p.Lat(), 0)
	return orb.Point{east, north}
}

// ProjectRing projects every vertex of a ring into EPSG:3045.
func ProjectRing(r orb.Ring) orb.Ring {
	out := make(orb.Ring, len(r))
	for i, p := range r {
		out[i] = ToEPSG3045(p)
	}
	return out
}

// ProjectPolygon projects every ring of a polygon into EPSG:3045.
func ProjectPolygon(poly orb.Polygon) orb.Polygon {
	out := make(orb.Polygon, len(poly))
	for i, r := range poly {
		out[i] = ProjectRing(r)
	}
	return out
}
