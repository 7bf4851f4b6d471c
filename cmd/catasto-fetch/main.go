package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/aggregate"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/columnar"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/core/config"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/core/httpclient"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/core/model"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/events"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/layer/geojson"
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
	comune := flag.String("comune", "", "municipality: Belfiore code (e.g. M011) or name")
	foglio := flag.String("foglio", "", "cadastral sheet number")
	particelle := flag.String("particelle", "", `parcel numbers, lists and ranges (e.g. "1,3,5-8")`)
	sezione := flag.String("sezione", "", "census section letter, for municipalities that have them")
	all := flag.Bool("all", false, "fetch every parcel of the sheet")
	layerPath := flag.String("layer", "particelle.geojson", "output GeoJSON layer")
	appendMode := flag.Bool("append", false, "append to an existing layer instead of starting fresh")
	flag.Parse()

	cfg := config.FromEnv()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   strings.ToLower(os.Getenv("LOG_CONSOLE")) == "true",
		Component: "catasto-fetch",
	}, os.Stderr)
	appLog := logger.NewSlog(&zl)

	if *comune == "" || *foglio == "" {
		fmt.Fprintln(os.Stderr, "both -comune and -foglio are required")
		flag.Usage()
		return 2
	}
	if *particelle == "" && !*all {
		fmt.Fprintln(os.Stderr, "one of -particelle or -all is required")
		flag.Usage()
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appLog.Info("starting run",
		"version", Version,
		"comune", *comune,
		"foglio", *foglio,
		"layer", *layerPath)

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

	store, err := geojson.Open(*layerPath, *appendMode)
	if err != nil {
		appLog.Error("layer open failed", "path", *layerPath, "err", err)
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

	queries, rc := buildQueries(ctx, engine, cfg, appLog, *comune, *foglio, *particelle, *sezione, *all)
	if rc != 0 {
		return rc
	}

	outcomes := engine.Run(ctx, queries)
	printSummary(os.Stdout, outcomes, agg, *layerPath)

	for _, o := range outcomes {
		if o.Status != model.OutcomeCommitted && o.Status != model.OutcomeSkipped {
			return 1
		}
	}
	return 0
}

func buildQueries(ctx context.Context, engine *pipeline.Engine, cfg config.Config, appLog *slog.Logger, comune, foglio, particelle, sezione string, all bool) ([]model.ParcelQuery, int) {
	if all {
		queries, err := engine.ExpandSheet(ctx, comune, foglio, sezione)
		if err != nil {
			var amb *model.AmbiguousNameError
			if errors.As(err, &amb) {
				printCandidates(amb)
				return nil, 2
			}
			appLog.Error("sheet expansion failed", "err", err)
			return nil, 1
		}
		if len(queries) > cfg.SheetWarnThreshold {
			appLog.Warn("large sheet", "parcels", len(queries), "threshold", cfg.SheetWarnThreshold)
		}
		return queries, 0
	}

	parcels, err := locator.ExpandParcelInput(particelle)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -particelle: %v\n", err)
		return nil, 2
	}
	queries := make([]model.ParcelQuery, len(parcels))
	for i, p := range parcels {
		queries[i] = model.NewParcelQuery(comune, foglio, p, sezione)
	}
	return queries, 0
}

func printCandidates(amb *model.AmbiguousNameError) {
	fmt.Fprintf(os.Stderr, "municipality name %q is ambiguous; re-run with one of these codes:\n", amb.Name)
	for _, c := range amb.Candidates {
		fmt.Fprintf(os.Stderr, "  %s  %s\n", c.MunicipalityCode, c.DisplayName)
	}
}

// at most this many failing parcels are listed individually; beyond that
// the summary only reports the total
const maxListedFailures = 20

func printSummary(w io.Writer, outcomes []model.RequestOutcome, agg *aggregate.Aggregator, layerPath string) {
	counts := map[model.OutcomeStatus]int{}
	var failed []model.RequestOutcome
	for _, o := range outcomes {
		counts[o.Status]++
		if o.Err != nil && o.Status != model.OutcomeSkipped {
			failed = append(failed, o)
		}
	}
	committed, skipped := agg.Totals()

	fmt.Fprintf(w, "requests: %d  committed: %d  skipped: %d\n", len(outcomes), committed, skipped)
	for _, st := range []model.OutcomeStatus{
		model.OutcomeCommitted, model.OutcomeSkipped, model.OutcomeNotFound,
		model.OutcomeAmbiguous, model.OutcomeGeometryNotFound, model.OutcomeError,
	} {
		if n := counts[st]; n > 0 {
			fmt.Fprintf(w, "  %-20s %d\n", st, n)
		}
	}
	listed := failed
	if len(listed) > maxListedFailures {
		listed = listed[:maxListedFailures]
		fmt.Fprintf(w, "  (first %d of %d failures)\n", maxListedFailures, len(failed))
	}
	for _, o := range listed {
		fmt.Fprintf(w, "  %s: %v\n", o.Query.String(), o.Err)
	}
	if ext, ok := agg.LastExtent(); ok {
		fmt.Fprintf(w, "last extent (lon/lat +20%%): %.6f,%.6f,%.6f,%.6f\n",
			ext.MinLon, ext.MinLat, ext.MaxLon, ext.MaxLat)
	}
	fmt.Fprintf(w, "layer: %s\n", layerPath)
}
