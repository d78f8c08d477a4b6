// Package server exposes generation runs, progress streams, provider
// settings and stored documents over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"sitegen/internal/llm"
	"sitegen/internal/pipeline"
	"sitegen/internal/progress"
	"sitegen/internal/site"
	"sitegen/internal/store"
)

// maxSpecBytes bounds the request body of a generation start.
const maxSpecBytes = 1 << 20

// Runs is the orchestrator as seen by the HTTP layer.
type Runs interface {
	Start(spec site.WebsiteSpec) (pipeline.RunHandle, error)
	Progress(runID string) (progress.Progress, bool)
	Cancel(runID string) bool
	Subscribe(runID string) (<-chan progress.Progress, func(), bool)
}

// Provider is the subset of the provider façade the API can change.
type Provider interface {
	Profile() llm.ProviderProfile
	Select(provider, model string) error
	ListModels(ctx context.Context) []string
	CheckReachable(ctx context.Context) bool
}

// Documents reads what finished runs persisted.
type Documents interface {
	List(ctx context.Context, websiteID string) ([]string, error)
	LoadBlock(ctx context.Context, websiteID, path string) (store.BlockDocument, error)
	LoadPage(ctx context.Context, websiteID, name string) (store.PageDocument, error)
}

type Handler struct {
	runs     Runs
	provider Provider
	docs     Documents
	log      *slog.Logger
}

func NewHandler(runs Runs, provider Provider, docs Documents, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{runs: runs, provider: provider, docs: docs, log: log}
}

func (h *Handler) StartGeneration(w http.ResponseWriter, r *http.Request) {
	var spec site.WebsiteSpec
	dec := json.NewDecoder(io.LimitReader(r.Body, maxSpecBytes))
	if err := dec.Decode(&spec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	handle, err := h.runs.Start(spec)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if handle.AlreadyActive {
		h.log.Info("generation already running", "website_id", handle.WebsiteID, "run_id", handle.RunID)
	}
	writeJSON(w, http.StatusAccepted, handle)
}

func (h *Handler) GetGeneration(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimSpace(r.PathValue("runID"))
	p, ok := h.runs.Progress(runID)
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) CancelGeneration(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimSpace(r.PathValue("runID"))
	if !h.runs.Cancel(runID) {
		if _, ok := h.runs.Progress(runID); ok {
			writeError(w, http.StatusConflict, "run already finished")
			return
		}
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"run_id": runID, "cancelled": true})
}

func (h *Handler) GetProvider(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.provider.Profile())
}

func (h *Handler) UpdateProvider(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Provider string `json:"provider"`
		Model    string `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := h.provider.Select(strings.TrimSpace(in.Provider), strings.TrimSpace(in.Model)); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, llm.ErrUnknownProvider) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.provider.Profile())
}

func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	models := h.provider.ListModels(r.Context())
	if models == nil {
		models = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"provider": h.provider.Profile().Provider,
		"models":   models,
	})
}

func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	websiteID := strings.TrimSpace(r.PathValue("websiteID"))
	paths, err := h.docs.List(r.Context(), websiteID)
	if err != nil {
		h.log.Error("list documents", "website_id", websiteID, "error", err)
		writeError(w, http.StatusInternalServerError, "list documents failed")
		return
	}
	if len(paths) == 0 {
		writeError(w, http.StatusNotFound, "website not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"website_id": websiteID, "documents": paths})
}

func (h *Handler) GetHeader(w http.ResponseWriter, r *http.Request) {
	h.getBlock(w, r, store.HeaderPath)
}

func (h *Handler) GetFooter(w http.ResponseWriter, r *http.Request) {
	h.getBlock(w, r, store.FooterPath)
}

func (h *Handler) getBlock(w http.ResponseWriter, r *http.Request, path string) {
	websiteID := strings.TrimSpace(r.PathValue("websiteID"))
	doc, err := h.docs.LoadBlock(r.Context(), websiteID, path)
	if err != nil {
		h.documentError(w, websiteID, path, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) GetPage(w http.ResponseWriter, r *http.Request) {
	websiteID := strings.TrimSpace(r.PathValue("websiteID"))
	page := r.PathValue("page")
	doc, err := h.docs.LoadPage(r.Context(), websiteID, page)
	if err != nil {
		h.documentError(w, websiteID, store.PagePath(page), err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) documentError(w http.ResponseWriter, websiteID, path string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	h.log.Error("load document", "website_id", websiteID, "path", path, "error", err)
	writeError(w, http.StatusInternalServerError, "load document failed")
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":                 true,
		"provider":           h.provider.Profile().Provider,
		"provider_reachable": h.provider.CheckReachable(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
