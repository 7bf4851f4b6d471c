// Package geo holds the coordinate codec, the bbox builder and the national
// reference decomposition helpers.
package geo

import "math"

// CoordScale is the integer scale factor of the columnar datasets: x and y
// are decimal degrees multiplied by 1e6 at dataset build time.
const CoordScale = 1_000_000

// Decode converts the dataset's integer encoding into decimal degrees.
func Decode(xInt, yInt int64) (lon, lat float64) {
	return float64(xInt) / CoordScale, float64(yInt) / CoordScale
}

// Encode is the inverse of Decode, rounding to the nearest integer step.
func Encode(lon, lat float64) (xInt, yInt int64) {
	return int64(math.Round(lon * CoordScale)), int64(math.Round(lat * CoordScale))
}
