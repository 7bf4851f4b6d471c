// Package pipeline chains resolution, location, bbox construction, the WFS
// round trip and the layer write for each parcel request in a batch.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/aggregate"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/core/model"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/core/observability"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/events"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/geo"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/locator"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/ogc"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/resolver"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/wfscache"
)

type Engine struct {
	resolver *resolver.Resolver
	locator  *locator.Locator
	wfs      *ogc.Client
	cache    *wfscache.Cache
	agg      *aggregate.Aggregator
	events   *events.Publisher // optional
	log      *slog.Logger

	epsilon float64
}

type Options struct {
	Epsilon float64
	Cache   *wfscache.Cache
	Events  *events.Publisher
}

func New(res *resolver.Resolver, loc *locator.Locator, wfs *ogc.Client, agg *aggregate.Aggregator, log *slog.Logger, opts Options) *Engine {
	if opts.Epsilon <= 0 {
		opts.Epsilon = geo.DefaultEpsilon
	}
	return &Engine{
		resolver: res,
		locator:  loc,
		wfs:      wfs,
		cache:    opts.Cache,
		agg:      agg,
		events:   opts.Events,
		log:      log,
		epsilon:  opts.Epsilon,
	}
}

// Aggregator exposes run totals and the last committed extent.
func (e *Engine) Aggregator() *aggregate.Aggregator { return e.agg }

// Run processes the batch sequentially. Every query gets its own outcome;
// one failing request never aborts the rest. Only cancellation truncates the
// batch early, and already-committed features stay committed.
func (e *Engine) Run(ctx context.Context, queries []model.ParcelQuery) []model.RequestOutcome {
	outcomes := make([]model.RequestOutcome, 0, len(queries))
	for i, q := range queries {
		if err := ctx.Err(); err != nil {
			e.log.Warn("batch interrupted", "done", i, "remaining", len(queries)-i)
			break
		}
		e.log.Info("processing request", "query", q.String(), "n", i+1, "of", len(queries))
		out := e.runOne(ctx, q)
		observability.IncRequestOutcome(string(out.Status))
		outcomes = append(outcomes, out)
	}
	return outcomes
}

func (e *Engine) runOne(ctx context.Context, q model.ParcelQuery) model.RequestOutcome {
	out := model.RequestOutcome{Query: q}

	match, err := e.resolver.Resolve(ctx, q.Municipality)
	if err != nil {
		out.Status = model.OutcomeError
		out.Err = err
		return out
	}
	switch match.Status {
	case model.MatchNotFound:
		out.Status = model.OutcomeNotFound
		return out
	case model.MatchAmbiguous:
		out.Status = model.OutcomeAmbiguous
		out.Candidates = match.Candidates
		out.Err = &model.AmbiguousNameError{Name: q.Municipality, Candidates: match.Candidates}
		return out
	}

	coords, err := e.locator.Locate(ctx, match.Entry, q.Sheet, q.Parcel, q.Section)
	if err != nil {
		if errors.Is(err, model.ErrParcelNotFound) {
			out.Status = model.OutcomeNotFound
		} else {
			out.Status = model.OutcomeError
		}
		out.Err = err
		return out
	}

	// One WFS round trip and one independent write per coordinate: parcels
	// in different census sections share sheet/parcel numbers.
	var lastErr error
	geometryMisses := 0
	for _, coord := range coords {
		committed, skipped, err := e.fetchAndCommit(ctx, coord)
		out.Committed += committed
		out.Skipped += skipped
		if err != nil {
			if errors.Is(err, model.ErrParcelGeometryNotFound) {
				geometryMisses++
			}
			lastErr = err
			e.log.Error("coordinate failed", "query", q.String(), "section", coord.Section, "err", err)
		}
	}

	switch {
	case out.Committed > 0:
		out.Status = model.OutcomeCommitted
	case out.Skipped > 0:
		out.Status = model.OutcomeSkipped
	case geometryMisses == len(coords) && geometryMisses > 0:
		out.Status = model.OutcomeGeometryNotFound
		out.Err = lastErr
	default:
		out.Status = model.OutcomeError
		out.Err = lastErr
	}
	return out
}

func (e *Engine) fetchAndCommit(ctx context.Context, coord model.ParcelCoordinate) (committed, skipped int, err error) {
	lon, lat := geo.Decode(coord.XInt, coord.YInt)
	bbox := geo.BuildBBox(lon, lat, e.epsilon)

	feats, cached, err := e.fetchFeatures(ctx, lon, lat, bbox)
	if err != nil {
		return 0, 0, err
	}
	// the tiny bbox may still clip a neighbor; only ingest features whose
	// attributes match the located parcel
	matched := matching(feats, coord)

	// adjacent parcels can fall in the same cache cell; a cached neighbor
	// response must not stand in for a parcel it does not contain
	if cached && len(matched) == 0 {
		feats, err = e.refetch(ctx, lon, lat, bbox)
		if err != nil {
			return 0, 0, err
		}
		matched = matching(feats, coord)
	}

	for _, f := range matched {
		outcome, ierr := e.agg.Ingest(ctx, f)
		if ierr != nil {
			err = ierr
			continue
		}
		switch outcome.Status {
		case model.Written:
			committed++
			if e.events != nil {
				e.events.PublishCommit(f)
			}
		case model.SkippedDuplicate:
			skipped++
		}
	}

	if committed == 0 && skipped == 0 && err == nil {
		// features came back but none matched the requested parcel
		err = fmt.Errorf("bbox %s: %w", bbox.LatLonString(), model.ErrParcelGeometryNotFound)
	}
	return committed, skipped, err
}

func (e *Engine) fetchFeatures(ctx context.Context, lon, lat float64, bbox model.BBox) (feats []model.ParcelFeature, cached bool, err error) {
	if e.cache == nil {
		feats, err = e.wfs.Fetch(ctx, bbox)
		return feats, false, err
	}

	key, kerr := e.cache.Key(lon, lat, e.wfs.TypeName())
	if kerr != nil {
		// cache keying is best-effort; fall through to the upstream call
		feats, err = e.wfs.Fetch(ctx, bbox)
		return feats, false, err
	}
	if feats, ok := e.cache.Get(key); ok {
		observability.IncWFSCacheHit()
		return feats, true, nil
	}
	feats, err = e.wfs.Fetch(ctx, bbox)
	if err != nil {
		return nil, false, err
	}
	observability.IncWFSCacheMiss()
	e.cache.Add(key, feats)
	return feats, false, nil
}

// refetch bypasses the cache and refreshes the cached entry with the
// upstream response.
func (e *Engine) refetch(ctx context.Context, lon, lat float64, bbox model.BBox) ([]model.ParcelFeature, error) {
	feats, err := e.wfs.Fetch(ctx, bbox)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		if key, kerr := e.cache.Key(lon, lat, e.wfs.TypeName()); kerr == nil {
			e.cache.Add(key, feats)
		}
	}
	return feats, nil
}

func matching(feats []model.ParcelFeature, coord model.ParcelCoordinate) []model.ParcelFeature {
	var out []model.ParcelFeature
	for _, f := range feats {
		if matches(f, coord) {
			out = append(out, f)
		}
	}
	return out
}

// matches checks the attribute-derived identity of a returned feature
// against the located coordinate rather than trusting result order.
func matches(f model.ParcelFeature, coord model.ParcelCoordinate) bool {
	if f.Admin != "" && f.Admin != coord.MunicipalityCode {
		return false
	}
	if f.Sheet != "" && f.Sheet != coord.Sheet {
		return false
	}
	if f.Parcel != "" && f.Parcel != coord.Parcel {
		return false
	}
	if coord.Section != "" && f.Section != "" && f.Section != coord.Section {
		return false
	}
	return true
}
