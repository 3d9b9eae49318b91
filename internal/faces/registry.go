package faces

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/JoahanSP/SECURENET/internal/constants"
	"github.com/JoahanSP/SECURENET/internal/database"
)

var (
	// ErrInvalidName is returned for empty or oversized names.
	ErrInvalidName = errors.New("invalid name")
	// ErrFaceNotFound is returned when deleting a name with no entries.
	ErrFaceNotFound = errors.New("authorized face not found")
)

// Registry adds and removes authorized faces.
type Registry struct {
	embedder Embedder
	store    database.FaceWriter
	opts     MatcherOptions
	log      zerolog.Logger
}

// NewRegistry creates a registry over store.
func NewRegistry(embedder Embedder, store database.FaceWriter, opts MatcherOptions, log zerolog.Logger) *Registry {
	if opts.MinDetScore <= 0 {
		opts.MinDetScore = constants.DefaultMinDetScore
	}
	if opts.MaxImageSize <= 0 {
		opts.MaxImageSize = constants.MaxImageSize
	}
	return &Registry{
		embedder: embedder,
		store:    store,
		opts:     opts,
		log:      log.With().Str("component", "registry").Logger(),
	}
}

// Register embeds the most confident face in imagePath and stores it under
// name. Returns ErrNoFaceDetected when the image has no usable face.
func (r *Registry) Register(ctx context.Context, name, imagePath string) (*database.AuthorizedFace, error) {
	name = CleanDisplayName(name)
	key := NormalizeName(name)
	if key == "" || len(name) > constants.MaxFaceNameLength {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	detections, err := detectFaces(ctx, r.embedder, imagePath, r.opts.MaxImageSize, r.opts.MinDetScore)
	if err != nil {
		return nil, err
	}
	best := detections[0]
	for _, d := range detections[1:] {
		if d.DetScore > best.DetScore {
			best = d
		}
	}

	face := &database.AuthorizedFace{
		Name:      name,
		NameKey:   key,
		ImagePath: imagePath,
		Embedding: best.Embedding,
		DetScore:  best.DetScore,
		Dim:       len(best.Embedding),
	}
	if _, err := r.store.SaveFace(ctx, face); err != nil {
		return nil, fmt.Errorf("save authorized face: %w", err)
	}

	r.log.Info().Str("name", name).Int64("id", face.ID).Int("faces_in_image", len(detections)).Msg("authorized face registered")
	return face, nil
}

// Delete removes every entry whose normalized name matches name.
func (r *Registry) Delete(ctx context.Context, name string) (int, error) {
	key := NormalizeName(name)
	if key == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	n, err := r.store.DeleteByNameKey(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("delete authorized face: %w", err)
	}
	if n == 0 {
		return 0, fmt.Errorf("%w: %s", ErrFaceNotFound, name)
	}
	r.log.Info().Str("name", name).Int("deleted", n).Msg("authorized face deleted")
	return n, nil
}

// List returns all gallery entries.
func (r *Registry) List(ctx context.Context) ([]database.AuthorizedFace, error) {
	faces, err := r.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list authorized faces: %w", err)
	}
	return faces, nil
}

// Count returns the gallery size.
func (r *Registry) Count(ctx context.Context) (int, error) {
	n, err := r.store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count authorized faces: %w", err)
	}
	return n, nil
}
