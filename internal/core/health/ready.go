package health

import (
	"encoding/json"
	"net/http"
)

type ReadinessReporter interface {
	Readiness() (ready bool, committed int)
}

func Readiness(rr ReadinessReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		type resp struct {
			Status    string `json:"status"`
			Committed int    `json:"committed,omitempty"`
		}
		ready, committed := rr.Readiness()
		out := resp{Status: "not_ready"}
		if ready {
			out.Status = "ready"
			out.Committed = committed
		}
		w.Header().Set("Content-Type", "application/json")
		if !ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}
