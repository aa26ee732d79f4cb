package handler

import (
	"errors"
	"net/http"
	"strings"

	"simulearn/internal/archive"
)

// HandleArchive serves GET /api/archive: the full record list, newest first.
func (h *Handler) HandleArchive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	records, err := h.archive.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "archive list failed")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// HandleArchiveByID serves GET and DELETE on /api/archive/{id}.
func (h *Handler) HandleArchiveByID(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/archive/"), "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "record id is required")
		return
	}
	switch r.Method {
	case http.MethodGet:
		rec, err := h.archive.Get(r.Context(), id)
		if errors.Is(err, archive.ErrNotFound) {
			writeError(w, http.StatusNotFound, "record not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "archive get failed")
			return
		}
		writeJSON(w, http.StatusOK, rec)
	case http.MethodDelete:
		err := h.archive.Delete(r.Context(), id)
		if errors.Is(err, archive.ErrNotFound) {
			writeError(w, http.StatusNotFound, "record not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "archive delete failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}
