package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/shehryarbajwa/browserbase-fleet/internal/proxy"
)

// SetupRoutes configures all HTTP routes
func (h *Handler) SetupRoutes(proxyServer *proxy.Server) *mux.Router {
	r := mux.NewRouter()

	api := r.PathPrefix("/v1").Subrouter()

	api.HandleFunc("/batch", h.GetBatch).Methods("GET")
	api.HandleFunc("/batch/outcomes", h.GetOutcomes).Methods("GET")
	api.HandleFunc("/batch/stop", h.StopBatch).Methods("POST", "OPTIONS")
	api.HandleFunc("/runs", h.ListRuns).Methods("GET")

	api.HandleFunc("/sessions/{name}/debug", h.GetDebugURL).Methods("GET")
	api.HandleFunc("/sessions/{name}/ws", func(w http.ResponseWriter, r *http.Request) {
		proxyServer.HandleDebugConnection(w, r, mux.Vars(r)["name"])
	}).Methods("GET")

	r.Use(loggingMiddleware)
	r.Use(corsMiddleware)

	return r
}
