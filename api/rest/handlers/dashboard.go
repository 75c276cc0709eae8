package handlers

import (
	"net/http"
	"strings"

	"gpu-renter/core/monitoring"
	"gpu-renter/observability"
)

// DashboardHandler handles dashboard API requests
type DashboardHandler struct {
	costs   *monitoring.CostTracker
	metrics *monitoring.MetricsExporter
	log     *observability.Logger
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(costs *monitoring.CostTracker, metrics *monitoring.MetricsExporter, log *observability.Logger) *DashboardHandler {
	if log == nil {
		log = observability.NopLogger()
	}
	return &DashboardHandler{costs: costs, metrics: metrics, log: log.With("component", "DashboardHandler")}
}

// GetSpend handles GET /v1/dashboard/spend
func (h *DashboardHandler) GetSpend(w http.ResponseWriter, r *http.Request) {
	ownerID := strings.TrimSpace(r.URL.Query().Get("owner_id"))

	summary, err := h.costs.Summary(r.Context(), ownerID)
	if err != nil {
		respondServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// GetMetrics handles GET /metrics
func (h *DashboardHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	body, err := h.metrics.GetPrometheusMetrics(r.Context())
	if err != nil {
		h.log.Error("render metrics", "error", err)
		http.Error(w, "metrics unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_, _ = w.Write([]byte(body))
}

// Health handles GET /health
func Health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
