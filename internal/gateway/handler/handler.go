package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"simulearn/internal/archive"
	"simulearn/internal/media"
	"simulearn/internal/sim"
)

// Handler serves the session and archive endpoints. It holds the run
// registry and the stores as its only dependencies.
type Handler struct {
	runs    *sim.Manager
	archive archive.Store
	media   media.Store
}

func New(runs *sim.Manager, archiveStore archive.Store, mediaStore media.Store) *Handler {
	return &Handler{runs: runs, archive: archiveStore, media: mediaStore}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("handler: write response failed: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
