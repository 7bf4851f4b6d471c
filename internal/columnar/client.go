package columnar

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/core/model"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/core/observability"
)

// Client runs predicate reads against remote parquet files.
type Client struct {
	http *http.Client
	log  *slog.Logger
}

func New(httpClient *http.Client, log *slog.Logger) *Client {
	return &Client{http: httpClient, log: log}
}

// Query decodes every row of the remote file into T and keeps the rows the
// predicate accepts. A nil predicate keeps everything. Transport and decode
// failures surface as RemoteDataError; an empty result is not an error.
func Query[T any](ctx context.Context, c *Client, fileURL string, keep func(T) bool) ([]T, error) {
	start := time.Now()

	rr, err := OpenRange(ctx, c.http, fileURL)
	if err != nil {
		observability.ObserveUpstreamLatency("columnar", time.Since(start).Seconds())
		return nil, err
	}

	rows, err := readAll[T](rr)
	observability.ObserveUpstreamLatency("columnar", time.Since(start).Seconds())
	if err != nil {
		return nil, &model.RemoteDataError{Source: fileURL, Err: err}
	}

	if keep == nil {
		return rows, nil
	}
	out := rows[:0]
	for _, row := range rows {
		if keep(row) {
			out = append(out, row)
		}
	}
	c.log.Debug("columnar query done",
		"url", fileURL,
		"rows", len(rows),
		"kept", len(out),
		"duration", time.Since(start).String())
	return out, nil
}

func readAll[T any](rr *RangeReader) (rows []T, err error) {
	// parquet-go panics on malformed footers; a broken remote file must
	// surface as RemoteDataUnavailable, not crash the batch.
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("parquet decode panic: %v", rec)
		}
	}()
	rows, err = parquet.Read[T](rr, rr.Size())
	if err != nil {
		return nil, fmt.Errorf("parquet read: %w", err)
	}
	return rows, nil
}
