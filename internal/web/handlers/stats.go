package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/JoahanSP/SECURENET/internal/storage"
)

// directory scans are cheap but the dashboard polls often
const statsCacheTTL = 5 * time.Second

// statsCache holds cached stats with expiry
type statsCache struct {
	mu        sync.RWMutex
	data      *StatsResponse
	expiresAt time.Time
}

func (c *statsCache) get(now time.Time) (*StatsResponse, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.data == nil || now.After(c.expiresAt) {
		return nil, false
	}
	return c.data, true
}

func (c *statsCache) set(data *StatsResponse, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = data
	c.expiresAt = now.Add(statsCacheTTL)
}

// QueueDepth reports the number of alerts waiting for delivery.
type QueueDepth interface {
	Len() int
}

// GalleryCounter reports the number of authorized-face entries.
type GalleryCounter interface {
	Count(ctx context.Context) (int, error)
}

// StatsHandler handles statistics endpoints
type StatsHandler struct {
	router  *storage.Router
	queue   QueueDepth
	gallery GalleryCounter
	log     zerolog.Logger
	cache   statsCache
	now     func() time.Time
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(router *storage.Router, queue QueueDepth, gallery GalleryCounter, log zerolog.Logger) *StatsHandler {
	return &StatsHandler{
		router:  router,
		queue:   queue,
		gallery: gallery,
		log:     log.With().Str("component", "stats").Logger(),
		now:     time.Now,
	}
}

// StatsResponse represents the statistics response
type StatsResponse struct {
	Pending     int `json:"pending"`
	Intruders   int `json:"intruders"`
	Authorized  int `json:"authorized"`
	QueueDepth  int `json:"queue_depth"`
	GallerySize int `json:"gallery_size"`
}

// Get returns artifact counts, the alert backlog and the gallery size
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	if cached, ok := h.cache.get(now); ok {
		respondJSON(w, http.StatusOK, cached)
		return
	}

	counts := make(map[storage.Category]int, len(storage.Categories))
	for _, cat := range storage.Categories {
		n, err := h.router.Count(cat)
		if err != nil {
			h.log.Error().Err(err).Str("category", string(cat)).Msg("failed to count artifacts")
			respondError(w, http.StatusInternalServerError, "failed to read storage")
			return
		}
		counts[cat] = n
	}

	stats := &StatsResponse{
		Pending:    counts[storage.Pending],
		Intruders:  counts[storage.Intruder],
		Authorized: counts[storage.Authorized],
	}
	if h.queue != nil {
		stats.QueueDepth = h.queue.Len()
	}
	if h.gallery != nil {
		n, err := h.gallery.Count(r.Context())
		if err != nil {
			// counts are still useful without the gallery
			h.log.Warn().Err(err).Msg("failed to count authorized faces")
		}
		stats.GallerySize = n
	}

	h.cache.set(stats, now)
	respondJSON(w, http.StatusOK, stats)
}
