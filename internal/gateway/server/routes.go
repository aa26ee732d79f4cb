package server

import (
	"net/http"

	"simulearn/internal/gateway/handler"
	"simulearn/internal/gateway/middleware"
)

func NewMux(h *handler.Handler) http.Handler {
	mux := http.NewServeMux()

	// Session endpoints
	mux.HandleFunc("/api/runs", h.HandleRuns)
	mux.HandleFunc("/api/runs/", h.HandleRunByID)

	// Archive endpoints
	mux.HandleFunc("/api/archive", h.HandleArchive)
	mux.HandleFunc("/api/archive/", h.HandleArchiveByID)

	// Media bytes
	mux.HandleFunc("/api/media/", h.HandleMedia)

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Middleware
	return middleware.CORS(mux)
}
