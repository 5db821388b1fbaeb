package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/shehryarbajwa/browserbase-fleet/internal/history"
	"github.com/shehryarbajwa/browserbase-fleet/internal/orchestrator"
	"github.com/shehryarbajwa/browserbase-fleet/pkg/models"
)

// RunHistory lists past batches
type RunHistory interface {
	Recent(ctx context.Context, limit int) ([]history.Run, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	fleet   *orchestrator.Orchestrator
	history RunHistory
}

// NewHandler creates a new HTTP handler. runs may be nil when history is disabled.
func NewHandler(fleet *orchestrator.Orchestrator, runs RunHistory) *Handler {
	return &Handler{
		fleet:   fleet,
		history: runs,
	}
}

// BatchStatus is the body of GET /v1/batch
type BatchStatus struct {
	RunID     string                         `json:"runId,omitempty"`
	Running   bool                           `json:"running"`
	Capacity  int                            `json:"capacity"`
	StartedAt *time.Time                     `json:"startedAt,omitempty"`
	Progress  orchestrator.Progress          `json:"progress"`
	InFlight  []orchestrator.InFlightSession `json:"inFlight"`
}

// OutcomeList is the body of GET /v1/batch/outcomes
type OutcomeList struct {
	RunID    string                       `json:"runId,omitempty"`
	Outcomes []models.SessionOutcome      `json:"outcomes"`
	Counts   map[models.OutcomeStatus]int `json:"counts"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// GetBatch handles GET /v1/batch
func (h *Handler) GetBatch(w http.ResponseWriter, r *http.Request) {
	report := h.fleet.Report()

	status := BatchStatus{
		RunID:    report.RunID,
		Running:  h.fleet.Running(),
		Capacity: report.Capacity,
		Progress: h.fleet.Progress(),
		InFlight: h.fleet.InFlight(),
	}
	if !report.StartedAt.IsZero() {
		status.StartedAt = &report.StartedAt
	}

	writeJSON(w, http.StatusOK, status)
}

// GetOutcomes handles GET /v1/batch/outcomes
func (h *Handler) GetOutcomes(w http.ResponseWriter, r *http.Request) {
	report := h.fleet.Report()

	writeJSON(w, http.StatusOK, OutcomeList{
		RunID:    report.RunID,
		Outcomes: report.Outcomes,
		Counts:   report.Counts(),
	})
}

// StopBatch handles POST /v1/batch/stop
func (h *Handler) StopBatch(w http.ResponseWriter, r *http.Request) {
	if !h.fleet.Running() {
		writeError(w, http.StatusConflict, "no batch is running")
		return
	}

	log.Printf("🛑 Stop requested over HTTP from %s", r.RemoteAddr)
	h.fleet.RequestStop()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "stopping"})
}

// GetDebugURL handles GET /v1/sessions/{name}/debug
func (h *Handler) GetDebugURL(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	sess, ok := h.fleet.Lookup(name)
	if !ok {
		writeError(w, http.StatusNotFound, "session not running")
		return
	}

	debugURL := fmt.Sprintf("ws://%s/v1/sessions/%s/ws", r.Host, url.PathEscape(name))

	writeJSON(w, http.StatusOK, map[string]string{
		"debuggerUrl": debugURL,
		"name":        sess.Name,
		"driverKind":  string(sess.Kind),
		"startedAt":   sess.StartedAt.Format(time.RFC3339),
	})
}

// ListRuns handles GET /v1/runs
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotFound, "history is disabled")
		return
	}

	limit := 10
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		log.Printf("❌ Failed to list runs: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}

	writeJSON(w, http.StatusOK, runs)
}
