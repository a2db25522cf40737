package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/morezero/rootbridge/pkg/dispatcher"
)

// healthOutput is the /health response body.
type healthOutput struct {
	Status    string                   `json:"status"`
	Timestamp string                   `json:"timestamp"`
	Checks    healthChecks             `json:"checks"`
	Helper    *dispatcher.StatusResult `json:"helper,omitempty"`
	Error     string                   `json:"error,omitempty"`
}

type healthChecks struct {
	Comms  bool `json:"comms"`
	Helper bool `json:"helper"`
}

// bridgeForHTTP is what the HTTP handlers need from a Bridge.
type bridgeForHTTP interface {
	Snapshot() Snapshot
	HelperStatus(ctx context.Context) (*dispatcher.StatusResult, error)
}

// newMux builds the bridge's HTTP endpoints.
func newMux(b bridgeForHTTP, metricsHandler http.Handler, healthTimeout time.Duration) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		healthCtx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		h := healthOutput{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Checks:    healthChecks{Comms: b.Snapshot().Connected},
		}
		status, err := b.HelperStatus(healthCtx)
		if err != nil {
			h.Error = err.Error()
		} else {
			h.Checks.Helper = true
			h.Helper = status
		}
		if !h.Checks.Comms || !h.Checks.Helper {
			h.Status = "unhealthy"
		}

		w.Header().Set("Content-Type", "application/json")
		if h.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		writeJSON(w, h)
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, map[string]string{"status": "ready"})
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, b.Snapshot())
	})
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}
	return mux
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error(fmt.Sprintf("%s - response encode: %v", logPrefix, err))
	}
}
