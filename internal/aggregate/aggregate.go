// Package aggregate owns every mutation of the output layer: deduplication
// by national reference, metric area computation and per-feature
// transactional commits.
package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/core/model"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/core/observability"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/layer"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/proj"
)

// Aggregator is the sole writer to its store. One instance is shared by
// every request handler, so the dedup set and the counters sit behind a
// mutex and commits are serialized through it.
type Aggregator struct {
	store layer.Store
	log   *slog.Logger

	mu         sync.Mutex
	seen       map[string]struct{}
	committed  int
	skipped    int
	lastExtent *model.BBox
}

func New(ctx context.Context, store layer.Store, log *slog.Logger) (*Aggregator, error) {
	refs, err := store.ExistingRefs(ctx)
	if err != nil {
		return nil, fmt.Errorf("seed dedup set: %w", err)
	}
	if len(refs) > 0 {
		log.Info("seeded dedup set from existing layer", "refs", len(refs))
	}
	return &Aggregator{store: store, log: log, seen: refs}, nil
}

// Ingest writes one feature. A reference already present in the layer or
// already committed this run is skipped, never re-written. The area is
// always recomputed in the metric frame before the commit.
func (a *Aggregator) Ingest(ctx context.Context, f model.ParcelFeature) (model.WriteOutcome, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, dup := a.seen[f.NationalReference]; dup {
		a.skipped++
		observability.IncParcelSkipped()
		a.log.Info("parcel already present, skipping", "ref", f.NationalReference)
		return model.WriteOutcome{Status: model.SkippedDuplicate, Reference: f.NationalReference}, nil
	}

	f.AreaSqm = proj.AreaSquareMeters(f.Geometry)

	tx, err := a.store.Begin(ctx)
	if err != nil {
		return model.WriteOutcome{}, fmt.Errorf("%w: begin: %v", model.ErrWriteConflict, err)
	}
	if err := tx.Add(f); err != nil {
		_ = tx.Rollback()
		return model.WriteOutcome{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.WriteOutcome{}, err
	}

	a.seen[f.NationalReference] = struct{}{}
	a.committed++
	observability.IncParcelCommitted()

	bound := f.Geometry.Bound()
	ext := model.BBox{
		MinLon: bound.Min.Lon(),
		MinLat: bound.Min.Lat(),
		MaxLon: bound.Max.Lon(),
		MaxLat: bound.Max.Lat(),
	}.WithMargin(0.2)
	a.lastExtent = &ext

	a.log.Info("parcel committed",
		"ref", f.NationalReference,
		"section", f.Section,
		"area_sqm", f.AreaSqm)
	return model.WriteOutcome{Status: model.Written, Reference: f.NationalReference}, nil
}

// LastExtent exposes the extent of the most recently committed feature, with
// a 20% margin, for the host's zoom-to-result behavior.
func (a *Aggregator) LastExtent() (model.BBox, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.lastExtent == nil {
		return model.BBox{}, false
	}
	return *a.lastExtent, true
}

// Totals reports committed and skipped counts for the run summary.
func (a *Aggregator) Totals() (committed, skipped int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.committed, a.skipped
}
