// Package events publishes pipeline events to NATS for downstream consumers
// (dashboards, home automation). Publishing is best effort.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Event kinds, appended to the subject prefix.
const (
	KindIngest   = "ingest"
	KindCallback = "callback"
)

// Event is the JSON payload of every published message.
type Event struct {
	Kind     string    `json:"kind"`
	Status   string    `json:"status"`
	Filename string    `json:"filename,omitempty"`
	Name     string    `json:"name,omitempty"`
	At       time.Time `json:"at"`
}

// Publisher sends events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close()
}

// Subject returns the subject an event is published on, e.g.
// securenet.ingest.intruder_detected.
func Subject(prefix string, ev Event) string {
	return fmt.Sprintf("%s.%s.%s", prefix, ev.Kind, ev.Status)
}

// Bus publishes events over a NATS connection.
type Bus struct {
	conn   *nats.Conn
	prefix string
	log    zerolog.Logger
}

// Connect dials NATS. An empty url returns a Noop publisher.
func Connect(url, prefix string, log zerolog.Logger, opts ...nats.Option) (Publisher, error) {
	log = log.With().Str("component", "events").Logger()
	if url == "" {
		log.Info().Msg("NATS_URL not set, events disabled")
		return Noop{}, nil
	}

	opts = append([]nats.Option{
		nats.Name("securenet"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}, opts...)

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	log.Info().Str("url", nc.ConnectedUrl()).Str("prefix", prefix).Msg("connected to NATS")
	return &Bus{conn: nc, prefix: prefix, log: log}, nil
}

// Publish encodes ev as JSON and publishes it.
func (b *Bus) Publish(ctx context.Context, ev Event) error {
	if b == nil || b.conn == nil {
		return errors.New("nil bus")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.conn.Publish(Subject(b.prefix, ev), data); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (b *Bus) Close() {
	if b == nil || b.conn == nil {
		return
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
	}
}

// Noop discards events.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close()                               {}
