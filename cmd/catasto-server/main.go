package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/aggregate"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/columnar"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/core/config"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/core/httpclient"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/core/model"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/core/observability"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/core/server"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/events"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/layer"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/layer/geojson"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/layer/redislayer"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/locator"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/logger"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/ogc"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/pipeline"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/resolver"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/wfscache"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.FromEnv()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   strings.ToLower(os.Getenv("LOG_CONSOLE")) == "true",
		Component: "catasto-server",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	observability.ExposeBuildInfo(Version)
	appLog.Info("starting server",
		"addr", cfg.Addr,
		"version", Version,
		"index", cfg.IndexURL,
		"wfs", cfg.WFSURL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	outbound := httpclient.NewOutbound(cfg.HTTPTimeout)
	catalog := columnar.NewCatalog(columnar.New(outbound, appLog), cfg.IndexURL, cfg.DatasetBaseURL)
	res := resolver.New(catalog, appLog)
	loc := locator.New(catalog, appLog)

	wfs, err := ogc.New(outbound, appLog, cfg.WFSURL, ogc.Options{
		TypeName:     cfg.WFSTypeName,
		SRSName:      cfg.SRSName,
		Count:        cfg.WFSCount,
		RetryMax:     cfg.WFSRetryMax,
		RetryBackoff: cfg.WFSRetryBackoff,
	})
	if err != nil {
		appLog.Error("wfs client setup failed", "err", err)
		return 1
	}

	store, err := openStore(ctx)
	if err != nil {
		appLog.Error("layer open failed", "err", err)
		return 1
	}
	defer func() { _ = store.Close() }()

	agg, err := aggregate.New(ctx, store, appLog)
	if err != nil {
		appLog.Error("aggregator setup failed", "err", err)
		return 1
	}

	opts := pipeline.Options{Epsilon: cfg.BBoxEpsilon}
	if cfg.CacheSize > 0 {
		cache, cerr := wfscache.New(cfg.CacheSize, cfg.CacheRes)
		if cerr != nil {
			appLog.Warn("response cache disabled", "err", cerr)
		} else {
			opts.Cache = cache
		}
	}
	if cfg.Events.Enabled {
		pub, perr := events.NewPublisher(strings.Split(cfg.Events.Brokers, ","), cfg.Events.Topic, cfg.Events.Queue)
		if perr != nil {
			appLog.Warn("commit events disabled", "err", perr)
		} else {
			opts.Events = pub
			defer func() { _ = pub.Close() }()
		}
	}

	engine := pipeline.New(res, loc, wfs, agg, appLog, opts)
	h := &parcelHandler{engine: engine, cfg: cfg, log: appLog}

	if err := server.Run(ctx, cfg, appLog, h, h); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

// LAYER_BACKEND selects where committed features go: "redis" or a GeoJSON
// file on disk (the default).
func openStore(ctx context.Context) (layer.Store, error) {
	switch strings.ToLower(os.Getenv("LAYER_BACKEND")) {
	case "redis":
		return redislayer.Open(ctx, config.FromEnv().RedisAddr)
	default:
		path := os.Getenv("LAYER_PATH")
		if path == "" {
			path = "particelle.geojson"
		}
		return geojson.Open(path, true)
	}
}

type parcelHandler struct {
	engine *pipeline.Engine
	cfg    config.Config
	log    *slog.Logger
}

type outcomeJSON struct {
	Query      string          `json:"query"`
	Status     string          `json:"status"`
	Committed  int             `json:"committed"`
	Skipped    int             `json:"skipped"`
	Error      string          `json:"error,omitempty"`
	Candidates []candidateJSON `json:"candidates,omitempty"`
}

type candidateJSON struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type responseJSON struct {
	Requests  int           `json:"requests"`
	Committed int           `json:"committed"`
	Skipped   int           `json:"skipped"`
	Extent    []float64     `json:"extent,omitempty"`
	Outcomes  []outcomeJSON `json:"outcomes"`
}

func (h *parcelHandler) HandleParcels(ctx context.Context, w http.ResponseWriter, r *http.Request, req model.BatchRequest) {
	queries, err := h.expand(ctx, req)
	if err != nil {
		var amb *model.AmbiguousNameError
		if errors.As(err, &amb) {
			writeAmbiguous(w, amb)
			return
		}
		if errors.Is(err, model.ErrRemoteDataUnavailable) {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(queries) > h.cfg.SheetWarnThreshold {
		h.log.Warn("large batch", "parcels", len(queries), "threshold", h.cfg.SheetWarnThreshold)
	}

	outcomes := h.engine.Run(ctx, queries)

	resp := responseJSON{Requests: len(outcomes)}
	resp.Committed, resp.Skipped = h.engine.Aggregator().Totals()
	if ext, ok := h.engine.Aggregator().LastExtent(); ok {
		resp.Extent = []float64{ext.MinLon, ext.MinLat, ext.MaxLon, ext.MaxLat}
	}
	for _, o := range outcomes {
		oj := outcomeJSON{
			Query:     o.Query.String(),
			Status:    string(o.Status),
			Committed: o.Committed,
			Skipped:   o.Skipped,
		}
		if o.Err != nil {
			oj.Error = o.Err.Error()
		}
		for _, c := range o.Candidates {
			oj.Candidates = append(oj.Candidates, candidateJSON{Code: c.MunicipalityCode, Name: c.DisplayName})
		}
		resp.Outcomes = append(resp.Outcomes, oj)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *parcelHandler) expand(ctx context.Context, req model.BatchRequest) ([]model.ParcelQuery, error) {
	if req.WholeSheet {
		return h.engine.ExpandSheet(ctx, req.Municipality, req.Sheet, req.Section)
	}
	parcels, err := locator.ExpandParcelInput(req.Parcels)
	if err != nil {
		return nil, err
	}
	queries := make([]model.ParcelQuery, len(parcels))
	for i, p := range parcels {
		queries[i] = model.NewParcelQuery(req.Municipality, req.Sheet, p, req.Section)
	}
	return queries, nil
}

func writeAmbiguous(w http.ResponseWriter, amb *model.AmbiguousNameError) {
	out := struct {
		Error      string          `json:"error"`
		Candidates []candidateJSON `json:"candidates"`
	}{Error: amb.Error()}
	for _, c := range amb.Candidates {
		out.Candidates = append(out.Candidates, candidateJSON{Code: c.MunicipalityCode, Name: c.DisplayName})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusConflict)
	_ = json.NewEncoder(w).Encode(out)
}

// Readiness reports ready once the aggregator is wired; committed counts the
// features written since startup.
func (h *parcelHandler) Readiness() (bool, int) {
	committed, _ := h.engine.Aggregator().Totals()
	return h.engine != nil, committed
}
