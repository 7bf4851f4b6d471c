package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/aggregate"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/columnar"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/core/model"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/layer/geojson"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/locator"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/ogc"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/resolver"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/wfscache"
)

type fakeCatalog struct {
	index   []columnar.IndexRow
	parcels []columnar.ParcelRow
}

func (f *fakeCatalog) Municipalities(_ context.Context, keep func(columnar.IndexRow) bool) ([]columnar.IndexRow, error) {
	var out []columnar.IndexRow
	for _, r := range f.index {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeCatalog) Parcels(_ context.Context, _ string, keep func(columnar.ParcelRow) bool) ([]columnar.ParcelRow, error) {
	var out []columnar.ParcelRow
	for _, r := range f.parcels {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func testLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// gmlFor renders a feature collection with one CadastralParcel per reference.
func gmlFor(refs ...string) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<wfs:FeatureCollection xmlns:wfs="http://www.opengis.net/wfs/2.0"
  xmlns:gml="http://www.opengis.net/gml/3.2"
  xmlns:CP="http://mapserver.gis.umn.edu/mapserver">`)
	for _, ref := range refs {
		fmt.Fprintf(&sb, `
  <wfs:member>
    <CP:CadastralParcel>
      <CP:geometry>
        <gml:MultiSurface>
          <gml:surfaceMember>
            <gml:Surface>
              <gml:patches>
                <gml:PolygonPatch>
                  <gml:exterior>
                    <gml:LinearRing>
                      <gml:posList>37.589841 14.366560 37.589841 14.366580 37.589861 14.366580 37.589861 14.366560 37.589841 14.366560</gml:posList>
                    </gml:LinearRing>
                  </gml:exterior>
                </gml:PolygonPatch>
              </gml:patches>
            </gml:Surface>
          </gml:surfaceMember>
        </gml:MultiSurface>
      </CP:geometry>
      <CP:NATIONALCADASTRALREFERENCE>%s</CP:NATIONALCADASTRALREFERENCE>
      <CP:ADMINISTRATIVEUNIT>%s</CP:ADMINISTRATIVEUNIT>
    </CP:CadastralParcel>
  </wfs:member>`, ref, ref[:4])
	}
	sb.WriteString("\n</wfs:FeatureCollection>")
	return sb.String()
}

func newEngine(t *testing.T, cat *fakeCatalog, wfsBody string, calls *atomic.Int32, opts Options) *Engine {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		_, _ = w.Write([]byte(wfsBody))
	}))
	t.Cleanup(srv.Close)

	wfs, err := ogc.New(srv.Client(), testLog(), srv.URL, ogc.Options{
		TypeName:     "CP:CadastralParcel",
		SRSName:      "EPSG:6706",
		Count:        10,
		RetryBackoff: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("ogc.New: %v", err)
	}

	store, err := geojson.Open(filepath.Join(t.TempDir(), "out.geojson"), false)
	if err != nil {
		t.Fatalf("geojson.Open: %v", err)
	}
	agg, err := aggregate.New(context.Background(), store, testLog())
	if err != nil {
		t.Fatalf("aggregate.New: %v", err)
	}

	return New(resolver.New(cat, testLog()), locator.New(cat, testLog()), wfs, agg, testLog(), opts)
}

func sicilyCatalog() *fakeCatalog {
	return &fakeCatalog{
		index: []columnar.IndexRow{
			{Comune: "M011", File: "19_sicilia.parquet", Denominazione: "VILLAROSA"},
			{Comune: "B428", File: "01_piemonte.parquet", Denominazione: "CALLIANO"},
			{Comune: "B429", File: "09_trentino.parquet", Denominazione: "CALLIANO"},
		},
		parcels: []columnar.ParcelRow{
			{Comune: "M011", Foglio: "0002", Particella: "2", X: 14366570, Y: 37589851, InspireID: "IT.AGE.PLA.M011_000200.2"},
		},
	}
}

func TestRun_CommitsParcel(t *testing.T) {
	eng := newEngine(t, sicilyCatalog(), gmlFor("M011_000200.2"), nil, Options{})

	outcomes := eng.Run(context.Background(), []model.ParcelQuery{
		model.NewParcelQuery("M011", "2", "2", ""),
	})
	if len(outcomes) != 1 {
		t.Fatalf("outcomes=%d want 1", len(outcomes))
	}
	o := outcomes[0]
	if o.Status != model.OutcomeCommitted || o.Committed != 1 {
		t.Fatalf("got %+v want committed", o)
	}

	ext, ok := eng.Aggregator().LastExtent()
	if !ok {
		t.Fatalf("expected last extent after commit")
	}
	if !(ext.MinLon < 14.366560 && ext.MaxLon > 14.366580) {
		t.Fatalf("extent missing margin: %+v", ext)
	}
}

func TestRun_SecondPassSkipsDuplicate(t *testing.T) {
	eng := newEngine(t, sicilyCatalog(), gmlFor("M011_000200.2"), nil, Options{})
	q := []model.ParcelQuery{model.NewParcelQuery("M011", "2", "2", "")}

	first := eng.Run(context.Background(), q)
	second := eng.Run(context.Background(), q)

	if first[0].Status != model.OutcomeCommitted {
		t.Fatalf("first=%+v want committed", first[0])
	}
	if second[0].Status != model.OutcomeSkipped || second[0].Skipped != 1 {
		t.Fatalf("second=%+v want skipped", second[0])
	}
	if c, s := eng.Aggregator().Totals(); c != 1 || s != 1 {
		t.Fatalf("totals=(%d,%d) want (1,1)", c, s)
	}
}

func TestRun_UnknownParcel_IsNotFound(t *testing.T) {
	eng := newEngine(t, sicilyCatalog(), gmlFor("M011_000200.2"), nil, Options{})

	outcomes := eng.Run(context.Background(), []model.ParcelQuery{
		model.NewParcelQuery("M011", "2", "999", ""),
	})
	if outcomes[0].Status != model.OutcomeNotFound {
		t.Fatalf("got %+v want not_found", outcomes[0])
	}
}

func TestRun_HomonymousName_IsAmbiguous(t *testing.T) {
	eng := newEngine(t, sicilyCatalog(), gmlFor("M011_000200.2"), nil, Options{})

	outcomes := eng.Run(context.Background(), []model.ParcelQuery{
		model.NewParcelQuery("CALLIANO", "1", "1", ""),
	})
	o := outcomes[0]
	if o.Status != model.OutcomeAmbiguous {
		t.Fatalf("got %+v want ambiguous", o)
	}
	if len(o.Candidates) != 2 {
		t.Fatalf("candidates=%d want 2", len(o.Candidates))
	}
}

func TestRun_PartialSuccess(t *testing.T) {
	eng := newEngine(t, sicilyCatalog(), gmlFor("M011_000200.2"), nil, Options{})

	outcomes := eng.Run(context.Background(), []model.ParcelQuery{
		model.NewParcelQuery("M011", "2", "999", ""),
		model.NewParcelQuery("M011", "2", "2", ""),
	})
	if len(outcomes) != 2 {
		t.Fatalf("outcomes=%d want 2", len(outcomes))
	}
	if outcomes[0].Status != model.OutcomeNotFound {
		t.Fatalf("first=%+v want not_found", outcomes[0])
	}
	if outcomes[1].Status != model.OutcomeCommitted {
		t.Fatalf("second=%+v want committed; a failed request must not block the rest", outcomes[1])
	}
}

func TestRun_MultiSection_CommitsOnePerSection(t *testing.T) {
	cat := &fakeCatalog{
		index: []columnar.IndexRow{
			{Comune: "A944", File: "08_emilia.parquet", Denominazione: "BOLOGNA"},
		},
		parcels: []columnar.ParcelRow{
			{Comune: "A944", Foglio: "0121", Particella: "15", X: 11340000, Y: 44490000, InspireID: "IT.AGE.PLA.A944A012100.15"},
			{Comune: "A944", Foglio: "0121", Particella: "15", X: 11350000, Y: 44500000, InspireID: "IT.AGE.PLA.A944B012100.15"},
		},
	}
	// the tiny bbox clips both homonymous parcels; the attribute check keeps
	// the right one per coordinate
	body := gmlFor("A944A012100.15", "A944B012100.15")
	eng := newEngine(t, cat, body, nil, Options{})

	outcomes := eng.Run(context.Background(), []model.ParcelQuery{
		model.NewParcelQuery("A944", "121", "15", ""),
	})
	o := outcomes[0]
	if o.Status != model.OutcomeCommitted || o.Committed != 2 {
		t.Fatalf("got %+v want two committed features", o)
	}
}

func TestRun_GeometryGone_IsGeometryNotFound(t *testing.T) {
	empty := `<?xml version="1.0"?><wfs:FeatureCollection xmlns:wfs="http://www.opengis.net/wfs/2.0"></wfs:FeatureCollection>`
	eng := newEngine(t, sicilyCatalog(), empty, nil, Options{})

	outcomes := eng.Run(context.Background(), []model.ParcelQuery{
		model.NewParcelQuery("M011", "2", "2", ""),
	})
	if outcomes[0].Status != model.OutcomeGeometryNotFound {
		t.Fatalf("got %+v want geometry_not_found", outcomes[0])
	}
}

func TestRun_CacheAvoidsSecondRoundTrip(t *testing.T) {
	var calls atomic.Int32
	cache, err := wfscache.New(16, wfscache.DefaultRes)
	if err != nil {
		t.Fatalf("wfscache.New: %v", err)
	}
	eng := newEngine(t, sicilyCatalog(), gmlFor("M011_000200.2"), &calls, Options{Cache: cache})
	q := []model.ParcelQuery{model.NewParcelQuery("M011", "2", "2", "")}

	eng.Run(context.Background(), q)
	eng.Run(context.Background(), q)

	if calls.Load() != 1 {
		t.Fatalf("wfs calls=%d want 1 (second pass served from cache)", calls.Load())
	}
}

func TestRun_CacheCollisionFallsBackToUpstream(t *testing.T) {
	cat := sicilyCatalog()
	// a second parcel at the same index coordinate lands in the same cache
	// cell as the first
	cat.parcels = append(cat.parcels, columnar.ParcelRow{
		Comune: "M011", Foglio: "0002", Particella: "3",
		X: 14366570, Y: 37589851, InspireID: "IT.AGE.PLA.M011_000200.3",
	})

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// the narrow responses simulate an upstream that returns each
		// parcel only for its own query
		if calls.Add(1) == 1 {
			_, _ = w.Write([]byte(gmlFor("M011_000200.2")))
			return
		}
		_, _ = w.Write([]byte(gmlFor("M011_000200.3")))
	}))
	t.Cleanup(srv.Close)

	wfs, err := ogc.New(srv.Client(), testLog(), srv.URL, ogc.Options{
		TypeName:     "CP:CadastralParcel",
		SRSName:      "EPSG:6706",
		Count:        10,
		RetryBackoff: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("ogc.New: %v", err)
	}
	store, err := geojson.Open(filepath.Join(t.TempDir(), "out.geojson"), false)
	if err != nil {
		t.Fatalf("geojson.Open: %v", err)
	}
	agg, err := aggregate.New(context.Background(), store, testLog())
	if err != nil {
		t.Fatalf("aggregate.New: %v", err)
	}
	cache, err := wfscache.New(16, wfscache.DefaultRes)
	if err != nil {
		t.Fatalf("wfscache.New: %v", err)
	}
	eng := New(resolver.New(cat, testLog()), locator.New(cat, testLog()), wfs, agg, testLog(), Options{Cache: cache})

	outcomes := eng.Run(context.Background(), []model.ParcelQuery{
		model.NewParcelQuery("M011", "2", "2", ""),
		model.NewParcelQuery("M011", "2", "3", ""),
	})
	if outcomes[0].Status != model.OutcomeCommitted {
		t.Fatalf("first=%+v want committed", outcomes[0])
	}
	if outcomes[1].Status != model.OutcomeCommitted {
		t.Fatalf("second=%+v want committed; a cached neighbor must not mask it", outcomes[1])
	}
	if calls.Load() != 2 {
		t.Fatalf("wfs calls=%d want 2 (one per parcel)", calls.Load())
	}
}

func TestRun_CanceledContextStopsBatch(t *testing.T) {
	eng := newEngine(t, sicilyCatalog(), gmlFor("M011_000200.2"), nil, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outcomes := eng.Run(ctx, []model.ParcelQuery{
		model.NewParcelQuery("M011", "2", "2", ""),
	})
	if len(outcomes) != 0 {
		t.Fatalf("outcomes=%d want 0 on canceled context", len(outcomes))
	}
}

func TestExpandSheet(t *testing.T) {
	cat := sicilyCatalog()
	cat.parcels = append(cat.parcels,
		columnar.ParcelRow{Comune: "M011", Foglio: "0002", Particella: "7", InspireID: "IT.AGE.PLA.M011_000200.7"},
	)
	eng := newEngine(t, cat, gmlFor("M011_000200.2"), nil, Options{})

	queries, err := eng.ExpandSheet(context.Background(), "VILLAROSA", "2", "")
	if err != nil {
		t.Fatalf("ExpandSheet: %v", err)
	}
	if len(queries) != 2 {
		t.Fatalf("queries=%d want 2", len(queries))
	}
	for _, q := range queries {
		if q.Municipality != "M011" || q.Sheet != "0002" {
			t.Fatalf("bad query %+v", q)
		}
	}
}
