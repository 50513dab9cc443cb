package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthResponse represents a simple health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// StoreHealthResponse represents the health status of the delivery store.
type StoreHealthResponse struct {
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// startMetricsServer serves /metrics, /health, and /health/store on
// METRICS_PORT (default 9090). It listens in the background and shuts
// down gracefully, with a 5s drain, when ctx is canceled. The returned
// server is for external shutdown control if the caller wants it.
func startMetricsServer(ctx context.Context, logger *slog.Logger, database *sql.DB) *http.Server {
	port := getMetricsPort()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/health/store", storeHealthHandler(database))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("metrics server starting", slog.Int("port", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", slog.Any("error", err))
		}
	}()

	go func() {
		<-ctx.Done()
		logger.Info("metrics server shutdown initiated")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", slog.Any("error", err))
			return
		}
		logger.Info("metrics server stopped")
	}()

	return server
}

// getMetricsPort reads METRICS_PORT, falling back to 9090 when unset or
// not a valid port number.
func getMetricsPort() int {
	const defaultPort = 9090

	raw := os.Getenv("METRICS_PORT")
	if raw == "" {
		return defaultPort
	}
	port, err := strconv.Atoi(raw)
	if err != nil || port <= 0 || port > 65535 {
		return defaultPort
	}
	return port
}

// healthHandler is the liveness probe. Always 200.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

// storeHealthHandler is the readiness probe for the delivery store.
// A worker that cannot reach the store cannot sweep, so a failed ping
// and a missing database both report 503.
func storeHealthHandler(database *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if database == nil {
			writeJSON(w, http.StatusServiceUnavailable, StoreHealthResponse{
				Healthy: false,
				Error:   "delivery store not initialized",
			})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := database.PingContext(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, StoreHealthResponse{
				Healthy: false,
				Error:   "store unreachable",
			})
			return
		}

		writeJSON(w, http.StatusOK, StoreHealthResponse{Healthy: true})
	}
}
