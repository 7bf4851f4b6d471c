package locator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/columnar"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/core/model"
)

type fakeSource struct {
	rows []columnar.ParcelRow
	err  error
}

func (f *fakeSource) Parcels(_ context.Context, _ string, keep func(columnar.ParcelRow) bool) ([]columnar.ParcelRow, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []columnar.ParcelRow
	for _, r := range f.rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func testLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testEntry = model.IndexEntry{
	MunicipalityCode: "M011",
	SourceFile:       "19_sicilia.parquet",
	DisplayName:      "VILLAROSA",
}

func TestLocate_SingleRow(t *testing.T) {
	src := &fakeSource{rows: []columnar.ParcelRow{
		{Comune: "M011", Foglio: "0002", Particella: "2", X: 14366570, Y: 37589851, InspireID: "IT.AGE.PLA.M011_000200.2"},
		{Comune: "M011", Foglio: "0002", Particella: "3", X: 14366000, Y: 37589000, InspireID: "IT.AGE.PLA.M011_000200.3"},
	}}
	loc := New(src, testLog())

	got, err := loc.Locate(context.Background(), testEntry, "2", "2", "")
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("rows=%d want 1", len(got))
	}
	want := model.ParcelCoordinate{
		MunicipalityCode: "M011", Sheet: "0002", Parcel: "2", Section: "_",
		XInt: 14366570, YInt: 37589851,
	}
	if got[0] != want {
		t.Fatalf("got %+v want %+v", got[0], want)
	}
}

func TestLocate_MultipleSections_FansOut(t *testing.T) {
	src := &fakeSource{rows: []columnar.ParcelRow{
		{Comune: "A944", Foglio: "0121", Particella: "15", X: 11340000, Y: 44490000, InspireID: "IT.AGE.PLA.A944A012100.15"},
		{Comune: "A944", Foglio: "0121", Particella: "15", X: 11350000, Y: 44500000, InspireID: "IT.AGE.PLA.A944B012100.15"},
	}}
	loc := New(src, testLog())
	entry := model.IndexEntry{MunicipalityCode: "A944", SourceFile: "08_emilia.parquet"}

	got, err := loc.Locate(context.Background(), entry, "121", "15", "")
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("rows=%d want 2 (one per census section)", len(got))
	}
	if got[0].Section == got[1].Section {
		t.Fatalf("sections not distinct: %q %q", got[0].Section, got[1].Section)
	}
}

func TestLocate_SectionPin_FiltersRows(t *testing.T) {
	src := &fakeSource{rows: []columnar.ParcelRow{
		{Comune: "A944", Foglio: "0121", Particella: "15", InspireID: "IT.AGE.PLA.A944A012100.15"},
		{Comune: "A944", Foglio: "0121", Particella: "15", InspireID: "IT.AGE.PLA.A944B012100.15"},
	}}
	loc := New(src, testLog())
	entry := model.IndexEntry{MunicipalityCode: "A944", SourceFile: "08_emilia.parquet"}

	got, err := loc.Locate(context.Background(), entry, "121", "15", "B")
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if len(got) != 1 || got[0].Section != "B" {
		t.Fatalf("got %+v want one row of section B", got)
	}
}

func TestLocate_NoRows_IsParcelNotFound(t *testing.T) {
	loc := New(&fakeSource{}, testLog())

	_, err := loc.Locate(context.Background(), testEntry, "2", "999", "")
	if !errors.Is(err, model.ErrParcelNotFound) {
		t.Fatalf("err=%v want ErrParcelNotFound", err)
	}
}

func TestLocate_SourceErrorPropagates(t *testing.T) {
	srcErr := &model.RemoteDataError{Source: "x", Err: errors.New("boom")}
	loc := New(&fakeSource{err: srcErr}, testLog())

	_, err := loc.Locate(context.Background(), testEntry, "2", "2", "")
	if !errors.Is(err, model.ErrRemoteDataUnavailable) {
		t.Fatalf("err=%v want ErrRemoteDataUnavailable", err)
	}
}

func TestListSheet_DistinctSorted(t *testing.T) {
	src := &fakeSource{rows: []columnar.ParcelRow{
		{Comune: "M011", Foglio: "0002", Particella: "7", InspireID: "IT.AGE.PLA.M011_000200.7"},
		{Comune: "M011", Foglio: "0002", Particella: "2", InspireID: "IT.AGE.PLA.M011_000200.2"},
		{Comune: "M011", Foglio: "0002", Particella: "2", InspireID: "IT.AGE.PLA.M011_000200.2"},
		{Comune: "M011", Foglio: "0003", Particella: "9", InspireID: "IT.AGE.PLA.M011_000300.9"},
	}}
	loc := New(src, testLog())

	got, err := loc.ListSheet(context.Background(), testEntry, "2", "")
	if err != nil {
		t.Fatalf("ListSheet: %v", err)
	}
	if want := []string{"2", "7"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}
