// Package faces classifies snapshots against the authorized-faces gallery and
// manages the gallery itself. Detection and embedding are delegated to an
// external HTTP service.
package faces

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/JoahanSP/SECURENET/internal/constants"
	"github.com/JoahanSP/SECURENET/internal/database"
)

// ErrNoFaceDetected is returned when an image contains no usable face.
var ErrNoFaceDetected = errors.New("no face detected")

// Verdict is the outcome of classifying one image.
type Verdict int

const (
	VerdictNoFace Verdict = iota
	VerdictAuthorized
	VerdictIntruder
)

func (v Verdict) String() string {
	switch v {
	case VerdictAuthorized:
		return "authorized"
	case VerdictIntruder:
		return "intruder"
	}
	return "no_face"
}

// Result is a classification. Name is set only for authorized verdicts.
type Result struct {
	Verdict  Verdict
	Name     string
	Distance float64
}

// Authorized returns an authorized result for name.
func Authorized(name string) Result {
	return Result{Verdict: VerdictAuthorized, Name: name}
}

// NoFace returns a result for images without a detected face.
func NoFace() Result {
	return Result{Verdict: VerdictNoFace}
}

// Intruder returns a result for images with only unknown faces.
func Intruder() Result {
	return Result{Verdict: VerdictIntruder}
}

// Classifier decides what an image at a path shows.
type Classifier interface {
	Classify(ctx context.Context, imagePath string) (Result, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, imagePath string) (Result, error)

func (f ClassifierFunc) Classify(ctx context.Context, imagePath string) (Result, error) {
	return f(ctx, imagePath)
}

// MatcherOptions tune gallery matching.
type MatcherOptions struct {
	DistanceThreshold float64 // max cosine distance for a match
	MinDetScore       float64 // weaker detections are ignored
	MaxImageSize      int
}

// Matcher classifies by embedding every detected face and searching the gallery.
type Matcher struct {
	embedder Embedder
	gallery  database.FaceReader
	opts     MatcherOptions
	log      zerolog.Logger
}

// NewMatcher creates a Matcher. Zero options fall back to the defaults.
func NewMatcher(embedder Embedder, gallery database.FaceReader, opts MatcherOptions, log zerolog.Logger) *Matcher {
	if opts.DistanceThreshold <= 0 {
		opts.DistanceThreshold = constants.DefaultDistanceThreshold
	}
	if opts.MinDetScore <= 0 {
		opts.MinDetScore = constants.DefaultMinDetScore
	}
	if opts.MaxImageSize <= 0 {
		opts.MaxImageSize = constants.MaxImageSize
	}
	return &Matcher{
		embedder: embedder,
		gallery:  gallery,
		opts:     opts,
		log:      log.With().Str("component", "classifier").Logger(),
	}
}

// Classify returns Authorized when any detected face matches the gallery
// (closest match wins), Intruder when faces were found but none matched and
// NoFace otherwise.
func (m *Matcher) Classify(ctx context.Context, imagePath string) (Result, error) {
	detections, err := m.detect(ctx, imagePath)
	if errors.Is(err, ErrNoFaceDetected) {
		return NoFace(), nil
	}
	if err != nil {
		return Result{}, err
	}

	best := Intruder()
	for _, d := range detections {
		matches, distances, err := m.gallery.FindSimilarWithDistance(
			ctx, d.Embedding, constants.DefaultGallerySearchLimit, m.opts.DistanceThreshold)
		if err != nil {
			return Result{}, fmt.Errorf("gallery search: %w", err)
		}
		if len(matches) == 0 {
			continue
		}
		if best.Verdict != VerdictAuthorized || distances[0] < best.Distance {
			best = Result{Verdict: VerdictAuthorized, Name: matches[0].Name, Distance: distances[0]}
		}
	}

	m.log.Debug().
		Str("image", imagePath).
		Int("faces", len(detections)).
		Stringer("verdict", best.Verdict).
		Str("name", best.Name).
		Msg("classified")
	return best, nil
}

// detect returns the detections above the score threshold, or ErrNoFaceDetected.
func (m *Matcher) detect(ctx context.Context, imagePath string) ([]Detection, error) {
	return detectFaces(ctx, m.embedder, imagePath, m.opts.MaxImageSize, m.opts.MinDetScore)
}

func detectFaces(ctx context.Context, embedder Embedder, imagePath string, maxSize int, minScore float64) ([]Detection, error) {
	data, err := os.ReadFile(imagePath) //nolint:gosec // path comes from the storage router
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	payload, err := PrepareImage(data, maxSize)
	if err != nil {
		return nil, err
	}
	resp, err := embedder.DetectFaces(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", err)
	}

	var out []Detection
	for _, d := range resp.Faces {
		if d.DetScore >= minScore && len(d.Embedding) > 0 {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoFaceDetected
	}
	return out, nil
}
