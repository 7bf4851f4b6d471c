package pipeline

import (
	"context"
	"fmt"

	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/core/model"
)

// ExpandSheet resolves the municipality and turns a whole-sheet request into
// one ParcelQuery per distinct parcel number of the sheet. Ambiguous names
// surface as AmbiguousNameError so the caller can print the candidates.
func (e *Engine) ExpandSheet(ctx context.Context, municipality, sheet, section string) ([]model.ParcelQuery, error) {
	match, err := e.resolver.Resolve(ctx, municipality)
	if err != nil {
		return nil, err
	}
	switch match.Status {
	case model.MatchNotFound:
		return nil, fmt.Errorf("municipality %q: %w", municipality, model.ErrParcelNotFound)
	case model.MatchAmbiguous:
		return nil, &model.AmbiguousNameError{Name: municipality, Candidates: match.Candidates}
	}

	parcels, err := e.locator.ListSheet(ctx, match.Entry, sheet, section)
	if err != nil {
		return nil, err
	}
	if len(parcels) == 0 {
		return nil, fmt.Errorf("sheet %s has no parcels: %w", model.NormalizeSheet(sheet), model.ErrParcelNotFound)
	}

	queries := make([]model.ParcelQuery, len(parcels))
	for i, p := range parcels {
		queries[i] = model.NewParcelQuery(match.Entry.MunicipalityCode, sheet, p, section)
	}
	return queries, nil
}
