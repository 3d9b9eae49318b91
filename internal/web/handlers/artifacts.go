package handlers

import (
	"errors"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/JoahanSP/SECURENET/internal/storage"
)

// ArtifactsHandler lists stored snapshots and serves their files.
type ArtifactsHandler struct {
	router *storage.Router
	log    zerolog.Logger
}

// NewArtifactsHandler creates a new artifacts handler
func NewArtifactsHandler(router *storage.Router, log zerolog.Logger) *ArtifactsHandler {
	return &ArtifactsHandler{
		router: router,
		log:    log.With().Str("component", "artifacts").Logger(),
	}
}

// ArtifactResponse is one entry of an artifact listing
type ArtifactResponse struct {
	storage.Artifact
	URL string `json:"url"`
}

func (h *ArtifactsHandler) list(w http.ResponseWriter, cat storage.Category) {
	arts, err := h.router.List(cat)
	if err != nil {
		h.log.Error().Err(err).Str("category", string(cat)).Msg("failed to list artifacts")
		respondError(w, http.StatusInternalServerError, "failed to read storage")
		return
	}
	out := make([]ArtifactResponse, len(arts))
	for i, a := range arts {
		out[i] = ArtifactResponse{Artifact: a, URL: "/files/" + string(cat) + "/" + a.Filename}
	}
	respondJSON(w, http.StatusOK, out)
}

// Alerts lists intruder snapshots, newest first
func (h *ArtifactsHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	h.list(w, storage.Intruder)
}

// Images lists pending snapshots, newest first
func (h *ArtifactsHandler) Images(w http.ResponseWriter, r *http.Request) {
	h.list(w, storage.Pending)
}

// List lists the category named in the URL
func (h *ArtifactsHandler) List(w http.ResponseWriter, r *http.Request) {
	cat, err := storage.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "unknown category")
		return
	}
	h.list(w, cat)
}

// ServeFile streams /files/{category}/{filename}
func (h *ArtifactsHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	cat, err := storage.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		respondError(w, http.StatusNotFound, "file not found")
		return
	}
	path, err := h.router.Resolve(cat, chi.URLParam(r, "filename"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid filename")
		return
	}

	f, err := os.Open(path) //nolint:gosec // path confined to the category directory by Resolve
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			respondError(w, http.StatusNotFound, "file not found")
			return
		}
		h.log.Error().Err(err).Msg("failed to open artifact")
		respondError(w, http.StatusInternalServerError, "failed to read file")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		respondError(w, http.StatusNotFound, "file not found")
		return
	}

	w.Header().Set("Cache-Control", "private, max-age=3600")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
