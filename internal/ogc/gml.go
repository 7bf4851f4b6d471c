package ogc

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/core/model"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/geo"
)

// The cadastral WFS answers with a wfs:FeatureCollection of
// CP:CadastralParcel members. Geometry is a gml:MultiSurface whose exterior
// rings carry lat-lon posLists; attributes of interest are the national
// reference, the administrative unit and the label. encoding/xml matches on
// local names, so namespace prefixes are irrelevant here.
type featureCollection struct {
	XMLName xml.Name        `xml:"FeatureCollection"`
	Members []parcelWrapper `xml:"member"`
}

type parcelWrapper struct {
	Parcel gmlParcel `xml:"CadastralParcel"`
}

type gmlParcel struct {
	NationalRef string `xml:"NATIONALCADASTRALREFERENCE"`
	Admin       string `xml:"ADMINISTRATIVEUNIT"`
	Label       string `xml:"LABEL"`
	// Surface members encoded as curved patches or plain polygons.
	PatchPosLists   []string `xml:"geometry>MultiSurface>surfaceMember>Surface>patches>PolygonPatch>exterior>LinearRing>posList"`
	PolygonPosLists []string `xml:"geometry>MultiSurface>surfaceMember>Polygon>exterior>LinearRing>posList"`
}

// ParseFeatureCollection decodes a GetFeature response into parcel features.
// Area is left zero; computing it belongs to the aggregator, in the metric
// frame.
func ParseFeatureCollection(body []byte) ([]model.ParcelFeature, error) {
	var fc featureCollection
	if err := xml.Unmarshal(body, &fc); err != nil {
		return nil, fmt.Errorf("decode feature collection: %w", err)
	}

	var out []model.ParcelFeature
	for _, m := range fc.Members {
		p := m.Parcel
		if p.NationalRef == "" {
			continue
		}
		posLists := p.PatchPosLists
		if len(posLists) == 0 {
			posLists = p.PolygonPosLists
		}

		var mp orb.MultiPolygon
		for _, pl := range posLists {
			ring, err := parsePosList(pl)
			if err != nil {
				return nil, fmt.Errorf("parcel %s: %w", p.NationalRef, err)
			}
			mp = append(mp, orb.Polygon{ring})
		}

		feat := model.ParcelFeature{
			NationalReference: p.NationalRef,
			Geometry:          mp,
		}
		if parts, ok := geo.ParseNationalReference(p.NationalRef); ok {
			feat.Admin = parts.Admin
			feat.Section = parts.Section
			feat.Sheet = parts.Sheet
			feat.Parcel = parts.Parcel
		}
		out = append(out, feat)
	}
	return out, nil
}

// parsePosList reads "lat lon lat lon ..." into a closed ring of lon/lat
// points.
func parsePosList(posList string) (orb.Ring, error) {
	fields := strings.Fields(posList)
	if len(fields) < 6 || len(fields)%2 != 0 {
		return nil, fmt.Errorf("malformed posList with %d ordinates", len(fields))
	}

	ring := make(orb.Ring, 0, len(fields)/2)
	for i := 0; i < len(fields); i += 2 {
		lat, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return nil, fmt.Errorf("posList ordinate %d: %w", i, err)
		}
		lon, err := strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			return nil, fmt.Errorf("posList ordinate %d: %w", i+1, err)
		}
		ring = append(ring, orb.Point{lon, lat})
	}
	if ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return ring, nil
}
