package handler

import (
	"net/http"
	"strings"

	"simulearn/internal/sim"
)

type startRunRequest struct {
	ScenarioKind string `json:"scenario_kind"`
	Topic        string `json:"topic"`
	Context      string `json:"context,omitempty"`
}

type actionRequest struct {
	Action string `json:"action"`
}

type visualizationRequest struct {
	Style string `json:"style"`
}

// HandleRuns serves POST /api/runs: creates a run, drives the first turn
// and returns the initial snapshot.
func (h *Handler) HandleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req startRunRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Topic) == "" {
		writeError(w, http.StatusBadRequest, "topic is required")
		return
	}
	run := h.runs.Start(sim.ParseScenarioKind(req.ScenarioKind), req.Topic, req.Context)
	run.Initialize(r.Context())
	writeJSON(w, http.StatusCreated, run.Snapshot())
}

// HandleRunByID dispatches /api/runs/{id} and its sub-resources.
func (h *Handler) HandleRunByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	parts := strings.SplitN(strings.Trim(rest, "/"), "/", 2)
	id := strings.TrimSpace(parts[0])
	if id == "" {
		writeError(w, http.StatusBadRequest, "run id is required")
		return
	}
	run, ok := h.runs.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	sub := ""
	if len(parts) == 2 {
		sub = parts[1]
	}
	switch {
	case sub == "" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, run.Snapshot())
	case sub == "" && r.Method == http.MethodDelete:
		h.runs.Remove(id)
		writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
	case sub == "action" && r.Method == http.MethodPost:
		h.handleAction(w, r, run)
	case sub == "visualization" && r.Method == http.MethodPost:
		h.handleVisualization(w, r, run)
	case sub == "watch" && r.Method == http.MethodGet:
		h.handleWatch(w, r, run)
	default:
		writeError(w, http.StatusNotFound, "unknown run endpoint")
	}
}

func (h *Handler) handleAction(w http.ResponseWriter, r *http.Request, run *sim.Orchestrator) {
	var req actionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Action) == "" {
		writeError(w, http.StatusBadRequest, "action is required")
		return
	}
	run.HandleAction(r.Context(), req.Action)
	writeJSON(w, http.StatusOK, run.Snapshot())
}

func (h *Handler) handleVisualization(w http.ResponseWriter, r *http.Request, run *sim.Orchestrator) {
	var req visualizationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	style := sim.ParseVisualStyle(req.Style)
	if style == sim.VisualUnset {
		writeError(w, http.StatusBadRequest, "style must be artistic or schematic")
		return
	}
	run.ChooseVisualization(style)
	writeJSON(w, http.StatusOK, run.Snapshot())
}
