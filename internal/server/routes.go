package server

import (
	"log/slog"
	"net/http"
)

func NewMux(h *Handler, log *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	// Generation runs
	mux.HandleFunc("POST /api/generations", h.StartGeneration)
	mux.HandleFunc("GET /api/generations/{runID}", h.GetGeneration)
	mux.HandleFunc("POST /api/generations/{runID}/cancel", h.CancelGeneration)
	mux.HandleFunc("GET /api/generations/{runID}/ws", h.StreamGeneration)

	// Provider settings
	mux.HandleFunc("GET /api/provider", h.GetProvider)
	mux.HandleFunc("PUT /api/provider", h.UpdateProvider)
	mux.HandleFunc("GET /api/provider/models", h.ListModels)

	// Stored documents
	mux.HandleFunc("GET /api/websites/{websiteID}", h.ListDocuments)
	mux.HandleFunc("GET /api/websites/{websiteID}/header", h.GetHeader)
	mux.HandleFunc("GET /api/websites/{websiteID}/footer", h.GetFooter)
	mux.HandleFunc("GET /api/websites/{websiteID}/pages/{page}", h.GetPage)

	mux.HandleFunc("GET /healthz", h.Health)

	if log == nil {
		log = slog.Default()
	}
	return CORS(Logging(log, mux))
}
