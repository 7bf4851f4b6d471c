// Package locator maps a resolved municipality plus sheet/parcel numbers to
// the representative coordinates stored in the regional datasets.
package locator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/columnar"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/core/model"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/geo"
)

// Source yields regional rows matching a predicate.
type Source interface {
	Parcels(ctx context.Context, sourceFile string, keep func(columnar.ParcelRow) bool) ([]columnar.ParcelRow, error)
}

type Locator struct {
	src Source
	log *slog.Logger
}

func New(src Source, log *slog.Logger) *Locator {
	return &Locator{src: src, log: log}
}

// Locate returns every coordinate row for the triple, one per census section
// when the municipality has sections and none was pinned. Each row is a
// distinct physical parcel and must go through its own WFS round trip.
// Zero rows yield ErrParcelNotFound.
func (l *Locator) Locate(ctx context.Context, entry model.IndexEntry, sheet, parcel, section string) ([]model.ParcelCoordinate, error) {
	sheet = model.NormalizeSheet(sheet)

	rows, err := l.src.Parcels(ctx, entry.SourceFile, func(row columnar.ParcelRow) bool {
		if row.Comune != entry.MunicipalityCode || row.Foglio != sheet || row.Particella != parcel {
			return false
		}
		return section == "" || geo.SectionFromLocalID(row.InspireID) == section
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s/%s/%s: %w", entry.MunicipalityCode, sheet, parcel, model.ErrParcelNotFound)
	}

	coords := make([]model.ParcelCoordinate, len(rows))
	for i, row := range rows {
		coords[i] = model.ParcelCoordinate{
			MunicipalityCode: row.Comune,
			Sheet:            row.Foglio,
			Parcel:           row.Particella,
			Section:          geo.SectionFromLocalID(row.InspireID),
			XInt:             row.X,
			YInt:             row.Y,
		}
	}
	if len(coords) > 1 {
		l.log.Info("parcel number present in multiple sections",
			"municipality", entry.MunicipalityCode,
			"sheet", sheet,
			"parcel", parcel,
			"instances", len(coords))
	}
	return coords, nil
}

// ListSheet returns the distinct parcel numbers of a sheet, sorted, for the
// whole-sheet download mode. An optional section restricts the listing.
func (l *Locator) ListSheet(ctx context.Context, entry model.IndexEntry, sheet, section string) ([]string, error) {
	sheet = model.NormalizeSheet(sheet)

	rows, err := l.src.Parcels(ctx, entry.SourceFile, func(row columnar.ParcelRow) bool {
		if row.Comune != entry.MunicipalityCode || row.Foglio != sheet {
			return false
		}
		return section == "" || geo.SectionFromLocalID(row.InspireID) == section
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(rows))
	var parcels []string
	for _, row := range rows {
		if _, ok := seen[row.Particella]; ok {
			continue
		}
		seen[row.Particella] = struct{}{}
		parcels = append(parcels, row.Particella)
	}
	sort.Strings(parcels)
	return parcels, nil
}
