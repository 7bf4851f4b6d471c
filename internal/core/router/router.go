package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/core/config"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/core/model"
	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/core/observability"
)

// receives validated parcel requests and serves them
type ParcelHandler interface {
	HandleParcels(ctx context.Context, w http.ResponseWriter, r *http.Request, req model.BatchRequest)
}

// validates input query params and calls the handler
func HandleParcels(logger *slog.Logger, _ config.Config, h ParcelHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}

		req, warn, err := ParseBatchRequest(r)
		if warn != "" {
			logger.Warn(warn)
		}
		if err != nil {
			http.Error(sw, err.Error(), http.StatusBadRequest)
			observability.ObserveHTTP(r.Method, "/parcels", http.StatusBadRequest, time.Since(start).Seconds())
			return
		}

		h.HandleParcels(r.Context(), sw, r, req)
		observability.ObserveHTTP(r.Method, "/parcels", sw.code, time.Since(start).Seconds())
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

var sheetPattern = regexp.MustCompile(`^[0-9]{1,4}$`)

func ParseBatchRequest(r *http.Request) (model.BatchRequest, string, error) {
	var warn string

	comune := strings.TrimSpace(r.URL.Query().Get("comune"))
	if comune == "" {
		return model.BatchRequest{}, "", errors.New("missing required parameter: comune")
	}

	foglio := strings.TrimSpace(r.URL.Query().Get("foglio"))
	if foglio == "" {
		return model.BatchRequest{}, "", errors.New("missing required parameter: foglio")
	}
	if !sheetPattern.MatchString(foglio) {
		return model.BatchRequest{}, "", fmt.Errorf("invalid foglio %q: expected 1-4 digits", foglio)
	}

	particelle := strings.TrimSpace(r.URL.Query().Get("particelle"))
	all := strings.EqualFold(strings.TrimSpace(r.URL.Query().Get("all")), "true")

	// drop the whole-sheet flag if an explicit list is given (the list wins)
	if particelle != "" && all {
		warn = "both particelle and all supplied; preferring explicit particelle"
		all = false
	}
	if particelle == "" && !all {
		return model.BatchRequest{}, warn, errors.New("one of particelle or all=true is required")
	}

	sezione := strings.TrimSpace(r.URL.Query().Get("sezione"))
	if len(sezione) > 1 {
		return model.BatchRequest{}, warn, fmt.Errorf("invalid sezione %q: expected a single letter", sezione)
	}

	return model.BatchRequest{
		Municipality: comune,
		Sheet:        model.NormalizeSheet(foglio),
		Parcels:      particelle,
		Section:      strings.ToUpper(sezione),
		WholeSheet:   all,
	}, warn, nil
}
