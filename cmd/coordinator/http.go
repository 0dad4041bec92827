package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dreamware/primeshard/internal/coordinator"
)

// statsSource is the slice of the coordinator the HTTP surface reads.
type statsSource interface {
	Stats() coordinator.Stats
}

// healthResponse is the /health body.
type healthResponse struct {
	State     string `json:"state"`
	Issued    int    `json:"issued"`
	NumChunks int    `json:"num_chunks"`
	Remaining int64  `json:"remaining"`
	Reports   int    `json:"reports"`
	Primes    int    `json:"primes"`
	Endpoints int    `json:"endpoints"`
	Dropped   int64  `json:"dropped"`
}

func newHTTPServer(addr string, src statsSource, gatherer prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", handleHealth(src))
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// serveHTTP runs srv until Shutdown, which is not an error.
func serveHTTP(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handleHealth reports 200 while the coordinator is working and 503 once it
// has stopped, so a supervisor can tell a finished run from a live one.
func handleHealth(src statsSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		s := src.Stats()
		status := http.StatusOK
		if s.State == coordinator.StateStopped {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(healthResponse{
			State:     s.State.String(),
			Issued:    s.Issued,
			NumChunks: s.NumChunks,
			Remaining: s.Remaining,
			Reports:   s.Reports,
			Primes:    s.Primes,
			Endpoints: s.Endpoints,
			Dropped:   s.Dropped,
		})
	}
}
