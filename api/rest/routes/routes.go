package routes

import (
	"net/http"

	"gpu-renter/api/rest/handlers"
	"gpu-renter/api/rest/middleware"
	"gpu-renter/observability"

	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes
func SetupRoutes(r *mux.Router, runs *handlers.RunHandler, dashboard *handlers.DashboardHandler, log *observability.Logger) {
	if log == nil {
		log = observability.NopLogger()
	}
	r.Use(middleware.Recovery(log), middleware.RequestLogger(log))

	r.HandleFunc("/health", handlers.Health).Methods(http.MethodGet)
	r.HandleFunc("/metrics", dashboard.GetMetrics).Methods(http.MethodGet)

	api := r.PathPrefix("/v1").Subrouter()

	// Run endpoints
	api.HandleFunc("/runs", runs.StartRun).Methods(http.MethodPost)
	api.HandleFunc("/runs/{id}", runs.GetRun).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id}/tick", runs.Tick).Methods(http.MethodPost)
	api.HandleFunc("/vendors", runs.ListVendors).Methods(http.MethodGet)
	api.HandleFunc("/dashboard/spend", dashboard.GetSpend).Methods(http.MethodGet)

	// Agent endpoints kept for existing clients
	agentAPI := r.PathPrefix("/api").Subrouter()
	agentAPI.HandleFunc("/agent-start", runs.AgentStart).Methods(http.MethodPost)
	agentAPI.HandleFunc("/agent-tick", runs.AgentTick).Methods(http.MethodPost)
	agentAPI.HandleFunc("/agent-status", runs.AgentStatus).Methods(http.MethodGet)
}
