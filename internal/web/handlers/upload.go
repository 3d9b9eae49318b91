package handlers

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/JoahanSP/SECURENET/internal/constants"
	"github.com/JoahanSP/SECURENET/internal/ingest"
	"github.com/JoahanSP/SECURENET/internal/storage"
)

// Ingester runs the upload pipeline for one snapshot.
type Ingester interface {
	Ingest(ctx context.Context, data []byte, originalName string) (ingest.Outcome, error)
}

// UploadHandler handles camera snapshot uploads.
type UploadHandler struct {
	ingester Ingester
	maxBytes int64
	log      zerolog.Logger
}

// NewUploadHandler creates a new upload handler. maxBytes <= 0 selects the default limit.
func NewUploadHandler(ingester Ingester, maxBytes int64, log zerolog.Logger) *UploadHandler {
	if maxBytes <= 0 {
		maxBytes = constants.MaxUploadSize
	}
	return &UploadHandler{
		ingester: ingester,
		maxBytes: maxBytes,
		log:      log.With().Str("component", "upload").Logger(),
	}
}

// readFormImage reads the "image" part of a multipart request capped at
// maxBytes. The returned status is non-zero when the request must be rejected.
func readFormImage(w http.ResponseWriter, r *http.Request, maxBytes int64) ([]byte, *multipart.FileHeader, int, string) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	// small parts stay in memory, the rest spills to temp files
	if err := r.ParseMultipartForm(min(maxBytes, 8<<20)); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, http.StatusRequestEntityTooLarge, "file too large"
		}
		return nil, nil, http.StatusBadRequest, "failed to parse multipart form"
	}

	file, header, err := r.FormFile(constants.UploadFieldName)
	if err != nil {
		return nil, nil, http.StatusBadRequest, errMissingImage
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, nil, http.StatusBadRequest, "failed to read image"
	}
	if len(data) == 0 {
		return nil, nil, http.StatusBadRequest, "empty image file"
	}
	return data, header, 0, ""
}

// Upload accepts a multipart snapshot in field "image" and reports the
// classification outcome.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	data, header, status, msg := readFormImage(w, r, h.maxBytes)
	if status != 0 {
		respondError(w, status, msg)
		return
	}
	defer r.MultipartForm.RemoveAll()

	out, err := h.ingester.Ingest(r.Context(), data, header.Filename)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidInput) {
			respondError(w, http.StatusBadRequest, "invalid image file")
			return
		}
		h.log.Error().Err(err).Str("filename", sanitizeForLog(header.Filename)).Msg("upload failed")
		respondError(w, http.StatusInternalServerError, "failed to store image")
		return
	}

	respondJSON(w, http.StatusOK, out)
}
