// Package http provides the HTTP surface of the dispatch API: notification
// submit and delivery lookup handlers, health and probe endpoints, metrics
// collection, and the middleware chain.
package http

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"notify-dispatch/internal/usecase/dispatch"
	"notify-dispatch/pkg/quota"
)

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

// HealthResponse is the JSON body returned by the health endpoint.
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"` // RFC 3339, UTC
	Checks    map[string]CheckStatus `json:"checks"`
	Version   string                 `json:"version"`
}

// CheckStatus is the outcome of one health check item.
type CheckStatus struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// AdapterHealthInfo reports the ready state of one channel adapter.
type AdapterHealthInfo struct {
	Channel string `json:"channel"`
	Ready   bool   `json:"ready"`
}

// QuotaHealthInfo reports the key count tracked by the request quota limiter.
type QuotaHealthInfo struct {
	ActiveKeys int `json:"active_keys"`
}

// HealthHandler serves the detailed health endpoint. It checks database
// connectivity and pool pressure, and reports channel adapter and quota
// limiter state for operational monitoring. Adapters and QuotaStore are
// optional; a nil DB means the in-memory store configuration.
type HealthHandler struct {
	DB         *sql.DB
	Version    string
	Adapters   []dispatch.ChannelAdapter
	QuotaStore quota.Store
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]CheckStatus{
		"database": h.checkDatabase(ctx),
	}
	if len(h.Adapters) > 0 {
		checks["adapters"] = h.checkAdapters()
	}
	if h.QuotaStore != nil {
		checks["quota"] = h.checkQuota(ctx)
	}

	// "degraded"は警告であり稼働継続可能。unhealthyのみ503にする。
	status, code := statusHealthy, http.StatusOK
	for _, check := range checks {
		if check.Status == statusUnhealthy {
			status, code = statusUnhealthy, http.StatusServiceUnavailable
			break
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(code)
	err := json.NewEncoder(w).Encode(HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Version:   h.Version,
	})
	if err != nil {
		log.Printf("health: failed to encode response: %v", err)
	}
}

func (h *HealthHandler) checkDatabase(ctx context.Context) CheckStatus {
	if h.DB == nil {
		return CheckStatus{
			Status:  statusHealthy,
			Message: "not configured (in-memory store)",
		}
	}

	if err := h.DB.PingContext(ctx); err != nil {
		return CheckStatus{Status: statusUnhealthy, Message: err.Error()}
	}

	stats := h.DB.Stats()
	details := poolDetails(stats)

	// MaxOpenConnections 0は無制限設定。利用率が計算できない。
	if stats.MaxOpenConnections == 0 {
		return CheckStatus{
			Status:  statusDegraded,
			Message: "connection pool max connections not configured",
			Details: details,
		}
	}

	utilization := float64(stats.InUse) / float64(stats.MaxOpenConnections) * 100
	details["utilization_percent"] = utilization
	if utilization >= 80.0 {
		return CheckStatus{
			Status:  statusDegraded,
			Message: "connection pool utilization above 80%",
			Details: details,
		}
	}

	return CheckStatus{Status: statusHealthy, Details: details}
}

func poolDetails(stats sql.DBStats) map[string]interface{} {
	return map[string]interface{}{
		"max_open_connections": stats.MaxOpenConnections,
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"wait_count":           stats.WaitCount,
		"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
		"max_idle_closed":      stats.MaxIdleClosed,
		"max_idle_time_closed": stats.MaxIdleTimeClosed,
		"max_lifetime_closed":  stats.MaxLifetimeClosed,
	}
}

// checkAdapters is always "healthy": Ready() false means the provider circuit
// breaker is open and the dispatcher defers attempts instead of failing
// deliveries, so a not-ready channel recovers on its own.
func (h *HealthHandler) checkAdapters() CheckStatus {
	infos := make([]AdapterHealthInfo, 0, len(h.Adapters))
	for _, a := range h.Adapters {
		infos = append(infos, AdapterHealthInfo{
			Channel: string(a.Channel()),
			Ready:   a.Ready(),
		})
	}
	return CheckStatus{
		Status:  statusHealthy,
		Details: map[string]interface{}{"channels": infos},
	}
}

// checkQuota is informational and never marks the service unhealthy.
func (h *HealthHandler) checkQuota(ctx context.Context) CheckStatus {
	info := QuotaHealthInfo{}
	if count, err := h.QuotaStore.Len(ctx); err == nil {
		info.ActiveKeys = count
	}
	return CheckStatus{
		Status:  statusHealthy,
		Details: map[string]interface{}{"limiter": info},
	}
}

// ReadyHandler serves the readiness probe. A deployment on the in-memory
// store carries no database and is always ready.
type ReadyHandler struct {
	DB *sql.DB
}

func (h *ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.DB != nil {
		if err := h.DB.PingContext(ctx); err != nil {
			http.Error(w, "database not ready: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ready")); err != nil {
		log.Printf("ready: failed to write response: %v", err)
	}
}

// LiveHandler serves the liveness probe and answers as long as the process
// can respond at all.
type LiveHandler struct{}

func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("alive")); err != nil {
		log.Printf("alive: failed to write response: %v", err)
	}
}
