package main

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type healthchecker interface {
	Healthcheck(ctx context.Context) error
}

// startMetricsServer exposes Prometheus metrics and a liveness endpoint for
// the refresher daemon. Runs in its own goroutine, failures are logged only.
func startMetricsServer(address string, db healthchecker, logger interface {
	Info(args ...interface{})
	Error(args ...interface{})
}) {
	if address == "" {
		address = ":9090"
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		w.Header().Set("Content-Type", "text/plain")
		if err := db.Healthcheck(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("Repository is unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("."))
	})

	go func() {
		logger.Info("Metrics server is ready to serve on ", address)
		if err := http.ListenAndServe(address, mux); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server failed: ", err)
		}
	}()
}
