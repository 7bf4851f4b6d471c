package ogc

import (
	"testing"

	"github.com/paulmach/orb"
)

const sampleCollection = `<?xml version="1.0" encoding="UTF-8"?>
<wfs:FeatureCollection xmlns:wfs="http://www.opengis.net/wfs/2.0"
  xmlns:gml="http://www.opengis.net/gml/3.2"
  xmlns:CP="http://mapserver.gis.umn.edu/mapserver"
  numberReturned="1">
  <wfs:member>
    <CP:CadastralParcel gml:id="CadastralParcel.12345">
      <CP:geometry>
        <gml:MultiSurface srsName="urn:ogc:def:crs:EPSG::6706">
          <gml:surfaceMember>
            <gml:Surface>
              <gml:patches>
                <gml:PolygonPatch>
                  <gml:exterior>
                    <gml:LinearRing>
                      <gml:posList srsDimension="2">37.589841 14.366560 37.589841 14.366580 37.589861 14.366580 37.589861 14.366560 37.589841 14.366560</gml:posList>
                    </gml:LinearRing>
                  </gml:exterior>
                </gml:PolygonPatch>
              </gml:patches>
            </gml:Surface>
          </gml:surfaceMember>
        </gml:MultiSurface>
      </CP:geometry>
      <CP:INSPIREID_LOCALID>IT.AGE.PLA.M011_000200.2</CP:INSPIREID_LOCALID>
      <CP:LABEL>2</CP:LABEL>
      <CP:NATIONALCADASTRALREFERENCE>M011_000200.2</CP:NATIONALCADASTRALREFERENCE>
      <CP:ADMINISTRATIVEUNIT>M011</CP:ADMINISTRATIVEUNIT>
    </CP:CadastralParcel>
  </wfs:member>
</wfs:FeatureCollection>`

const emptyCollection = `<?xml version="1.0" encoding="UTF-8"?>
<wfs:FeatureCollection xmlns:wfs="http://www.opengis.net/wfs/2.0" numberReturned="0">
</wfs:FeatureCollection>`

func TestParseFeatureCollection(t *testing.T) {
	feats, err := ParseFeatureCollection([]byte(sampleCollection))
	if err != nil {
		t.Fatalf("ParseFeatureCollection: %v", err)
	}
	if len(feats) != 1 {
		t.Fatalf("features=%d want 1", len(feats))
	}

	f := feats[0]
	if f.NationalReference != "M011_000200.2" {
		t.Fatalf("ref=%q", f.NationalReference)
	}
	if f.Admin != "M011" || f.Section != "_" || f.Sheet != "0002" || f.Parcel != "2" {
		t.Fatalf("decomposition wrong: %+v", f)
	}

	if len(f.Geometry) != 1 || len(f.Geometry[0]) != 1 {
		t.Fatalf("geometry shape wrong: %v", f.Geometry)
	}
	ring := f.Geometry[0][0]
	if len(ring) != 5 {
		t.Fatalf("ring length=%d want 5", len(ring))
	}
	// posList is lat-first; points must come out lon-first
	if want := (orb.Point{14.366560, 37.589841}); ring[0] != want {
		t.Fatalf("first point %v want %v", ring[0], want)
	}
	if ring[0] != ring[len(ring)-1] {
		t.Fatalf("ring not closed: %v ... %v", ring[0], ring[len(ring)-1])
	}
}

func TestParseFeatureCollection_Empty(t *testing.T) {
	feats, err := ParseFeatureCollection([]byte(emptyCollection))
	if err != nil {
		t.Fatalf("ParseFeatureCollection: %v", err)
	}
	if len(feats) != 0 {
		t.Fatalf("features=%d want 0", len(feats))
	}
}

func TestParseFeatureCollection_Malformed(t *testing.T) {
	if _, err := ParseFeatureCollection([]byte("<not-xml")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestParsePosList_OpenRingGetsClosed(t *testing.T) {
	ring, err := parsePosList("37.0 14.0 37.0 14.1 37.1 14.1")
	if err != nil {
		t.Fatalf("parsePosList: %v", err)
	}
	if len(ring) != 4 || ring[0] != ring[3] {
		t.Fatalf("ring not closed: %v", ring)
	}
}

func TestParsePosList_OddOrdinates(t *testing.T) {
	if _, err := parsePosList("37.0 14.0 37.0 14.1 37.1"); err == nil {
		t.Fatalf("expected error for odd ordinate count")
	}
}
