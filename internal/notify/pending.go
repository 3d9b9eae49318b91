package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/JoahanSP/SECURENET/internal/constants"
)

// SessionKey identifies one human in one chat.
type SessionKey struct {
	ChatID int64
	UserID int64
}

type pendingEntry struct {
	filename  string
	expiresAt time.Time
}

// PendingDecisions maps a session to the artifact waiting for a typed
// name. A session holds at most one entry; a newer request replaces it.
type PendingDecisions struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[SessionKey]pendingEntry
	now     func() time.Time
	log     zerolog.Logger
}

// NewPendingDecisions creates an empty map whose entries expire after ttl.
func NewPendingDecisions(ttl time.Duration, log zerolog.Logger) *PendingDecisions {
	if ttl <= 0 {
		ttl = constants.DefaultPendingTTLMinutes * time.Minute
	}
	return &PendingDecisions{
		ttl:     ttl,
		entries: make(map[SessionKey]pendingEntry),
		now:     time.Now,
		log:     log.With().Str("component", "pending-decisions").Logger(),
	}
}

// Set records filename for key and reports whether an unexpired entry was
// replaced.
func (p *PendingDecisions) Set(key SessionKey, filename string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	prev, replaced := p.entries[key]
	replaced = replaced && now.Before(prev.expiresAt)
	p.entries[key] = pendingEntry{filename: filename, expiresAt: now.Add(p.ttl)}

	if replaced && prev.filename != filename {
		p.log.Info().
			Int64("chat_id", key.ChatID).
			Int64("user_id", key.UserID).
			Str("dropped", prev.filename).
			Str("pending", filename).
			Msg("pending name request replaced")
	}
	return replaced
}

// Take removes and returns the entry for key. Expired entries are removed
// and reported as absent.
func (p *PendingDecisions) Take(key SessionKey) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[key]
	if !ok {
		return "", false
	}
	delete(p.entries, key)
	if !p.now().Before(e.expiresAt) {
		return "", false
	}
	return e.filename, true
}

// Len returns the number of stored entries, expired or not.
func (p *PendingDecisions) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Sweep drops expired entries and returns how many were removed.
func (p *PendingDecisions) Sweep() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	removed := 0
	for k, e := range p.entries {
		if !now.Before(e.expiresAt) {
			delete(p.entries, k)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (p *PendingDecisions) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := p.Sweep(); n > 0 {
				p.log.Info().Int("expired", n).Msg("expired pending name requests")
			}
		}
	}
}
