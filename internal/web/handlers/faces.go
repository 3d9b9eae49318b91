package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/JoahanSP/SECURENET/internal/constants"
	"github.com/JoahanSP/SECURENET/internal/database"
	"github.com/JoahanSP/SECURENET/internal/faces"
	"github.com/JoahanSP/SECURENET/internal/storage"
)

// FaceManager adds, removes and lists authorized faces.
type FaceManager interface {
	Register(ctx context.Context, name, imagePath string) (*database.AuthorizedFace, error)
	Delete(ctx context.Context, name string) (int, error)
	List(ctx context.Context) ([]database.AuthorizedFace, error)
}

// FacesHandler handles authorized-face management endpoints
type FacesHandler struct {
	router   *storage.Router
	registry FaceManager
	maxBytes int64
	log      zerolog.Logger
}

// NewFacesHandler creates a new faces handler
func NewFacesHandler(router *storage.Router, registry FaceManager, maxBytes int64, log zerolog.Logger) *FacesHandler {
	if maxBytes <= 0 {
		maxBytes = constants.MaxUploadSize
	}
	return &FacesHandler{
		router:   router,
		registry: registry,
		maxBytes: maxBytes,
		log:      log.With().Str("component", "faces").Logger(),
	}
}

// FaceResponse is one gallery entry without its embedding
type FaceResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	ImagePath string    `json:"image_path,omitempty"`
	DetScore  float64   `json:"det_score"`
	CreatedAt time.Time `json:"created_at"`
}

func toFaceResponse(f database.AuthorizedFace) FaceResponse {
	return FaceResponse{
		ID:        f.ID,
		Name:      f.Name,
		ImagePath: f.ImagePath,
		DetScore:  f.DetScore,
		CreatedAt: f.CreatedAt,
	}
}

// List returns every gallery entry
func (h *FacesHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.registry.List(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list authorized faces")
		respondError(w, http.StatusInternalServerError, "failed to list authorized faces")
		return
	}
	out := make([]FaceResponse, len(list))
	for i, f := range list {
		out[i] = toFaceResponse(f)
	}
	respondJSON(w, http.StatusOK, out)
}

// Add stores the uploaded reference photo in the authorized category and
// registers its face under name. The file is removed again when no usable
// face is found.
func (h *FacesHandler) Add(w http.ResponseWriter, r *http.Request) {
	data, header, status, msg := readFormImage(w, r, h.maxBytes)
	if status != 0 {
		respondError(w, status, msg)
		return
	}
	defer r.MultipartForm.RemoveAll()

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	path, err := h.router.Store(data, header.Filename, storage.Authorized)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidInput) {
			respondError(w, http.StatusBadRequest, "invalid image file")
			return
		}
		h.log.Error().Err(err).Msg("failed to store reference photo")
		respondError(w, http.StatusInternalServerError, "failed to store image")
		return
	}

	face, err := h.registry.Register(r.Context(), name, path)
	if err != nil {
		h.router.Remove(path)
		switch {
		case errors.Is(err, faces.ErrNoFaceDetected):
			respondError(w, http.StatusBadRequest, "no face detected in image")
		case errors.Is(err, faces.ErrInvalidName):
			respondError(w, http.StatusBadRequest, "invalid name")
		default:
			h.log.Error().Err(err).Str("name", sanitizeForLog(name)).Msg("failed to register face")
			respondError(w, http.StatusInternalServerError, "failed to register face")
		}
		return
	}

	respondJSON(w, http.StatusOK, toFaceResponse(*face))
}

// Delete removes every entry for the name in the URL
func (h *FacesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	n, err := h.registry.Delete(r.Context(), name)
	if err != nil {
		switch {
		case errors.Is(err, faces.ErrFaceNotFound):
			respondError(w, http.StatusNotFound, "authorized face not found")
		case errors.Is(err, faces.ErrInvalidName):
			respondError(w, http.StatusBadRequest, "invalid name")
		default:
			h.log.Error().Err(err).Str("name", sanitizeForLog(name)).Msg("failed to delete face")
			respondError(w, http.StatusInternalServerError, "failed to delete face")
		}
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"deleted": n})
}
