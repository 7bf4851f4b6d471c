package geo

import "github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/core/model"

// DefaultEpsilon is roughly one meter in decimal degrees, matching the buffer
// the upstream datasets were validated against. The point is pre-computed as
// an interior point of the parcel, so any non-degenerate epsilon works.
const DefaultEpsilon = 1e-5

// BuildBBox returns the minimal axis-aligned box around an interior point,
// sized so the WFS spatial filter returns the target parcel and at most a
// handful of neighbors.
func BuildBBox(lon, lat, epsilon float64) model.BBox {
	if epsilon <= 0 {
		epsilon = DefaultEpsilon
	}
	return model.BBox{
		MinLon: lon - epsilon,
		MinLat: lat - epsilon,
		MaxLon: lon + epsilon,
		MaxLat: lat + epsilon,
	}
}
