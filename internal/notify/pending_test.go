package notify

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestPending(ttl time.Duration) (*PendingDecisions, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	p := NewPendingDecisions(ttl, zerolog.Nop())
	p.now = clock.now
	return p, clock
}

func TestPending_SetTake(t *testing.T) {
	p, _ := newTestPending(time.Minute)
	key := SessionKey{ChatID: 1, UserID: 2}

	if replaced := p.Set(key, "a.jpg"); replaced {
		t.Error("first Set must not report a replacement")
	}
	got, ok := p.Take(key)
	if !ok || got != "a.jpg" {
		t.Fatalf("Take = (%q, %v)", got, ok)
	}
	if _, ok := p.Take(key); ok {
		t.Error("Take must remove the entry")
	}
}

func TestPending_Overwrite(t *testing.T) {
	p, _ := newTestPending(time.Minute)
	key := SessionKey{ChatID: 1, UserID: 2}

	p.Set(key, "a.jpg")
	if replaced := p.Set(key, "b.jpg"); !replaced {
		t.Error("expected replacement to be reported")
	}
	if got, _ := p.Take(key); got != "b.jpg" {
		t.Errorf("expected newest request to win, got %q", got)
	}
}

func TestPending_Expiry(t *testing.T) {
	p, clock := newTestPending(10 * time.Minute)
	key := SessionKey{ChatID: 1, UserID: 2}

	p.Set(key, "a.jpg")
	clock.advance(10 * time.Minute)
	if _, ok := p.Take(key); ok {
		t.Error("expired entry must not be returned")
	}
	if p.Len() != 0 {
		t.Error("expired entry must be removed by Take")
	}
}

func TestPending_Sweep(t *testing.T) {
	p, clock := newTestPending(time.Minute)

	p.Set(SessionKey{ChatID: 1, UserID: 1}, "old.jpg")
	clock.advance(30 * time.Second)
	p.Set(SessionKey{ChatID: 1, UserID: 2}, "new.jpg")
	clock.advance(45 * time.Second)

	if n := p.Sweep(); n != 1 {
		t.Errorf("expected 1 expired entry, got %d", n)
	}
	if p.Len() != 1 {
		t.Errorf("expected 1 remaining entry, got %d", p.Len())
	}
}

func TestPending_DefaultTTL(t *testing.T) {
	p := NewPendingDecisions(0, zerolog.Nop())
	if p.ttl != 10*time.Minute {
		t.Errorf("expected 10m default ttl, got %v", p.ttl)
	}
}
