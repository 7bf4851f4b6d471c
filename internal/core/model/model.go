// Package model defines the domain types shared across the resolution pipeline.
package model

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
)

// ParcelQuery is one user request: a municipality (Belfiore code or display
// name), a sheet number, a parcel number and an optional census section.
// Immutable once built; the sheet is normalized at construction time.
type ParcelQuery struct {
	Municipality string
	Sheet        string
	Parcel       string
	Section      string
}

func NewParcelQuery(municipality, sheet, parcel, section string) ParcelQuery {
	return ParcelQuery{
		Municipality: strings.ToUpper(strings.TrimSpace(municipality)),
		Sheet:        NormalizeSheet(sheet),
		Parcel:       strings.TrimSpace(parcel),
		Section:      strings.ToUpper(strings.TrimSpace(section)),
	}
}

func (q ParcelQuery) String() string {
	if q.Section != "" {
		return fmt.Sprintf("%s/%s/%s sez.%s", q.Municipality, q.Sheet, q.Parcel, q.Section)
	}
	return fmt.Sprintf("%s/%s/%s", q.Municipality, q.Sheet, q.Parcel)
}

// NormalizeSheet zero-pads a sheet number to 4 digits, matching the
// convention of the regional datasets ("2" -> "0002").
func NormalizeSheet(sheet string) string {
	s := strings.TrimSpace(sheet)
	for len(s) < 4 {
		s = "0" + s
	}
	return s
}

// BatchRequest is a whole user request before fan-out: one municipality and
// sheet, and either an explicit parcel list or the whole-sheet flag.
type BatchRequest struct {
	Municipality string
	Sheet        string
	Parcels      string
	Section      string
	WholeSheet   bool
}

// IndexEntry is one row of the national index dataset. Read-only.
type IndexEntry struct {
	MunicipalityCode string
	SourceFile       string
	DisplayName      string
	StatisticalCode  string
}

type MatchStatus int

const (
	MatchNotFound MatchStatus = iota
	MatchFound
	MatchAmbiguous
)

// MunicipalityMatch is the three-valued resolver result: exactly one entry,
// no entry, or several homonymous candidates that require the caller to
// re-issue the request with an explicit code.
type MunicipalityMatch struct {
	Status     MatchStatus
	Entry      IndexEntry
	Candidates []IndexEntry
}

// ParcelCoordinate is one row of a regional dataset: an interior point of the
// parcel, integer-scaled by 1e6. A (municipality, sheet, parcel) triple maps
// to several rows only when the municipality has census sections and the
// query did not pin one.
type ParcelCoordinate struct {
	MunicipalityCode string
	Sheet            string
	Parcel           string
	Section          string
	XInt             int64
	YInt             int64
}

// ParcelFeature is the outcome of one WFS round trip: the authoritative
// polygon plus the attributes derived from the national reference.
type ParcelFeature struct {
	NationalReference string
	Admin             string
	Section           string
	Sheet             string
	Parcel            string
	Geometry          orb.MultiPolygon
	AreaSqm           float64
}

// BBox is an axis-aligned box in decimal degrees.
type BBox struct {
	MinLon, MinLat float64
	MaxLon, MaxLat float64
}

// LatLonString renders the box in the lat-first axis order the cadastral WFS
// expects for geographic CRS bboxes.
func (b BBox) LatLonString() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", b.MinLat, b.MinLon, b.MaxLat, b.MaxLon)
}

// WithMargin grows the box by frac of its larger side on every edge.
func (b BBox) WithMargin(frac float64) BBox {
	w := b.MaxLon - b.MinLon
	h := b.MaxLat - b.MinLat
	m := w
	if h > m {
		m = h
	}
	m *= frac
	return BBox{
		MinLon: b.MinLon - m,
		MinLat: b.MinLat - m,
		MaxLon: b.MaxLon + m,
		MaxLat: b.MaxLat + m,
	}
}

type WriteStatus int

const (
	Written WriteStatus = iota
	SkippedDuplicate
)

type WriteOutcome struct {
	Status    WriteStatus
	Reference string
}

type OutcomeStatus string

const (
	OutcomeCommitted        OutcomeStatus = "committed"
	OutcomeSkipped          OutcomeStatus = "skipped"
	OutcomeNotFound         OutcomeStatus = "not_found"
	OutcomeAmbiguous        OutcomeStatus = "ambiguous"
	OutcomeGeometryNotFound OutcomeStatus = "geometry_not_found"
	OutcomeError            OutcomeStatus = "error"
)

// RequestOutcome attributes the result of one ParcelQuery. A batch of N
// queries yields N outcomes; partial success is the normal case.
type RequestOutcome struct {
	Query      ParcelQuery
	Status     OutcomeStatus
	Committed  int
	Skipped    int
	Candidates []IndexEntry
	Err        error
}
