// Package resolver maps a user-supplied municipality code or display name to
// one canonical index entry.
package resolver

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/columnar"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/core/model"
)

// Belfiore cadastral code: one letter, three digits.
var codePattern = regexp.MustCompile(`^[A-Z][0-9]{3}$`)

// Source yields index rows matching a predicate.
type Source interface {
	Municipalities(ctx context.Context, keep func(columnar.IndexRow) bool) ([]columnar.IndexRow, error)
}

type Resolver struct {
	src Source
	log *slog.Logger
}

func New(src Source, log *slog.Logger) *Resolver {
	return &Resolver{src: src, log: log}
}

// Resolve returns a tagged match. Codes are matched exactly; anything else is
// treated as a case-insensitive substring of the display name. Homonymous
// names yield an ambiguous match carrying every candidate: silent first-match
// selection would systematically return wrong parcels.
func (r *Resolver) Resolve(ctx context.Context, input string) (model.MunicipalityMatch, error) {
	needle := strings.ToUpper(strings.TrimSpace(input))

	var keep func(columnar.IndexRow) bool
	if codePattern.MatchString(needle) {
		keep = func(row columnar.IndexRow) bool {
			return row.Comune == needle
		}
	} else {
		keep = func(row columnar.IndexRow) bool {
			return strings.Contains(strings.ToUpper(row.Denominazione), needle)
		}
	}

	rows, err := r.src.Municipalities(ctx, keep)
	if err != nil {
		return model.MunicipalityMatch{}, err
	}

	switch len(rows) {
	case 0:
		r.log.Debug("municipality not found", "input", needle)
		return model.MunicipalityMatch{Status: model.MatchNotFound}, nil
	case 1:
		entry := toEntry(rows[0])
		r.log.Info("municipality resolved",
			"input", needle,
			"code", entry.MunicipalityCode,
			"name", entry.DisplayName,
			"file", entry.SourceFile)
		return model.MunicipalityMatch{Status: model.MatchFound, Entry: entry}, nil
	default:
		candidates := make([]model.IndexEntry, len(rows))
		for i, row := range rows {
			candidates[i] = toEntry(row)
		}
		r.log.Warn("homonymous municipality name", "input", needle, "candidates", len(candidates))
		return model.MunicipalityMatch{Status: model.MatchAmbiguous, Candidates: candidates}, nil
	}
}

func toEntry(row columnar.IndexRow) model.IndexEntry {
	return model.IndexEntry{
		MunicipalityCode: row.Comune,
		SourceFile:       row.File,
		DisplayName:      row.Denominazione,
		StatisticalCode:  row.Codistat,
	}
}
