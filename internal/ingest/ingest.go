// Package ingest runs the upload pipeline: store the snapshot, classify it,
// route it and raise an alert for intruders.
package ingest

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/JoahanSP/SECURENET/internal/alerts"
	"github.com/JoahanSP/SECURENET/internal/events"
	"github.com/JoahanSP/SECURENET/internal/faces"
	"github.com/JoahanSP/SECURENET/internal/metrics"
	"github.com/JoahanSP/SECURENET/internal/storage"
)

// Outcome statuses.
const (
	StatusIntruderDetected = "intruder_detected"
	StatusAuthorized       = "authorized"
	StatusNoFaces          = "no_faces"
)

// Outcome is the result reported to the uploader.
type Outcome struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Name     string `json:"name,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// Service wires the pipeline stages together.
type Service struct {
	router     *storage.Router
	classifier faces.Classifier
	queue      *alerts.Queue
	events     events.Publisher
	metrics    *metrics.Registry
	log        zerolog.Logger
}

// NewService creates an ingest service. pub and m may be nil.
func NewService(router *storage.Router, classifier faces.Classifier, queue *alerts.Queue, pub events.Publisher, m *metrics.Registry, log zerolog.Logger) *Service {
	if pub == nil {
		pub = events.Noop{}
	}
	return &Service{
		router:     router,
		classifier: classifier,
		queue:      queue,
		events:     pub,
		metrics:    m,
		log:        log.With().Str("component", "ingest").Logger(),
	}
}

// Ingest stores data under a generated name and routes it according to
// the classification. Only invalid input and storage failures are
// returned as errors; a failing classifier counts as no face.
func (s *Service) Ingest(ctx context.Context, data []byte, originalName string) (Outcome, error) {
	if len(data) == 0 {
		return Outcome{}, fmt.Errorf("%w: empty file", storage.ErrInvalidInput)
	}
	if !storage.AllowedExtension(originalName) {
		return Outcome{}, fmt.Errorf("%w: file type not allowed", storage.ErrInvalidInput)
	}

	path, err := s.router.Store(data, originalName, storage.Pending)
	if err != nil {
		return Outcome{}, fmt.Errorf("store upload: %w", err)
	}
	log := s.log.With().Str("file", filepath.Base(path)).Logger()

	result, err := s.classifier.Classify(ctx, path)
	if err != nil {
		log.Warn().Err(err).Msg("classifier failed, treating as no face")
		s.metrics.ClassifierFailure()
		result = faces.NoFace()
	}

	var out Outcome
	switch result.Verdict {
	case faces.VerdictIntruder:
		moved, err := s.router.Relocate(path, storage.Intruder)
		if err != nil {
			return Outcome{}, fmt.Errorf("route intruder snapshot: %w", err)
		}
		job := s.queue.Enqueue(moved)
		s.metrics.AlertEnqueued()
		log.Warn().Str("job_id", job.ID.String()).Msg("intruder detected, alert queued")
		out = Outcome{
			Status:   StatusIntruderDetected,
			Message:  "Intruder detected, alert sent",
			Filename: filepath.Base(moved),
		}
	case faces.VerdictAuthorized:
		log.Info().Str("name", result.Name).Float64("distance", result.Distance).Msg("authorized person recognized")
		out = Outcome{
			Status:   StatusAuthorized,
			Message:  fmt.Sprintf("Authorized person recognized: %s", result.Name),
			Name:     result.Name,
			Filename: filepath.Base(path),
		}
	default:
		log.Debug().Msg("no faces detected")
		out = Outcome{
			Status:   StatusNoFaces,
			Message:  "No faces detected",
			Filename: filepath.Base(path),
		}
	}

	s.metrics.IngestOutcome(out.Status)
	s.publish(ctx, out)
	return out, nil
}

func (s *Service) publish(ctx context.Context, out Outcome) {
	ev := events.Event{Kind: events.KindIngest, Status: out.Status, Filename: out.Filename, Name: out.Name}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("status", out.Status).Msg("failed to publish ingest event")
	}
}
