package http

import (
	"github.com/gorilla/mux"
)

// SetupRoutes builds the admin API router. Every /api/v1 route requires the
// API key; /healthz stays open for liveness probes.
func SetupRoutes(scheduler JobController, history RunHistory, apiKey string) *mux.Router {
	router := mux.NewRouter()
	router.Use(LoggingMiddleware)
	handler := NewJobHandler(scheduler, history)

	router.HandleFunc("/healthz", Healthz).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(APIKeyMiddleware(apiKey))

	api.HandleFunc("/jobs", handler.GetAllJobs).Methods("GET")
	api.HandleFunc("/jobs/{name}", handler.GetJob).Methods("GET")
	api.HandleFunc("/jobs/{name}/runs", handler.GetJobRuns).Methods("GET")

	api.HandleFunc("/jobs/{name}/run", handler.RunJob).Methods("POST")
	api.HandleFunc("/jobs/{name}/enable", handler.EnableJob).Methods("POST")
	api.HandleFunc("/jobs/{name}/disable", handler.DisableJob).Methods("POST")

	return router
}
