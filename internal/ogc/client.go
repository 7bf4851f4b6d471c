package ogc

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/core/model"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/core/observability"
)

// Client issues GetFeature requests against the cadastral WFS endpoint.
type Client struct {
	http     *http.Client
	log      *slog.Logger
	endpoint *url.URL

	typeName string
	srsName  string
	count    int

	retryMax int
	backoff  time.Duration
}

type Options struct {
	TypeName     string
	SRSName      string
	Count        int
	RetryMax     int
	RetryBackoff time.Duration
}

func New(httpClient *http.Client, log *slog.Logger, endpoint string, opts Options) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse wfs endpoint: %w", err)
	}
	if opts.Count <= 0 {
		opts.Count = 10
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 500 * time.Millisecond
	}
	return &Client{
		http:     httpClient,
		log:      log,
		endpoint: u,
		typeName: opts.TypeName,
		srsName:  opts.SRSName,
		count:    opts.Count,
		retryMax: opts.RetryMax,
		backoff:  opts.RetryBackoff,
	}, nil
}

func (c *Client) TypeName() string { return c.typeName }

// Fetch runs one GetFeature round trip for the bbox. Transient transport
// failures and 5xx answers are retried a bounded number of times with
// exponential backoff; an empty feature collection is never retried and
// surfaces as ErrParcelGeometryNotFound (a staleness event between the bulk
// dataset and the live service, reported distinctly from network failure).
func (c *Client) Fetch(ctx context.Context, bbox model.BBox) ([]model.ParcelFeature, error) {
	params := BuildGetFeatureParams(bbox, c.typeName, c.srsName, c.count)

	var lastErr error
	for attempt := 0; attempt <= c.retryMax; attempt++ {
		if attempt > 0 {
			wait := c.backoff << (attempt - 1)
			c.log.Warn("wfs retry", "attempt", attempt, "wait", wait.String(), "err", lastErr)
			select {
			case <-ctx.Done():
				return nil, &model.RemoteDataError{Source: c.endpoint.String(), Err: ctx.Err()}
			case <-time.After(wait):
			}
		}

		body, retryable, err := c.fetchOnce(ctx, params)
		if err != nil {
			lastErr = err
			if retryable {
				continue
			}
			return nil, &model.RemoteDataError{Source: c.endpoint.String(), Err: err}
		}

		feats, err := ParseFeatureCollection(body)
		if err != nil {
			return nil, &model.RemoteDataError{Source: c.endpoint.String(), Err: err}
		}
		if len(feats) == 0 {
			return nil, fmt.Errorf("bbox %s: %w", bbox.LatLonString(), model.ErrParcelGeometryNotFound)
		}
		return feats, nil
	}
	return nil, &model.RemoteDataError{Source: c.endpoint.String(), Err: lastErr}
}

func (c *Client) fetchOnce(ctx context.Context, params url.Values) (body []byte, retryable bool, err error) {
	u := *c.endpoint
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, false, fmt.Errorf("build request: %w", err)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	dur := time.Since(start)
	observability.ObserveUpstreamLatency("wfs", dur.Seconds())
	if err != nil {
		return nil, true, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 500 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, true, fmt.Errorf("upstream status %d: %s", resp.StatusCode, string(b))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, false, fmt.Errorf("upstream status %d: %s", resp.StatusCode, string(b))
	}

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read body: %w", err)
	}
	c.log.Debug("wfs GetFeature done", "status", resp.StatusCode, "bytes", len(body), "duration", dur.String())
	return body, false, nil
}
