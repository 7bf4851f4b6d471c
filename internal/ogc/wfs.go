// Package ogc talks WFS 2.0 to the cadastral mapping service and parses the
// GML feature collections it returns.
package ogc

import (
	"net/url"
	"strconv"

	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/core/model"
)

// BuildGetFeatureParams assembles the GetFeature query string. The bbox is
// rendered lat-first, as required for geographic CRS axis order.
func BuildGetFeatureParams(bbox model.BBox, typeName, srsName string, count int) url.Values {
	params := url.Values{}
	params.Set("SERVICE", "WFS")
	params.Set("VERSION", "2.0.0")
	params.Set("REQUEST", "GetFeature")
	params.Set("TYPENAMES", typeName)
	params.Set("SRSNAME", srsName)
	params.Set("BBOX", bbox.LatLonString())
	if count > 0 {
		params.Set("COUNT", strconv.Itoa(count))
	}
	return params
}
