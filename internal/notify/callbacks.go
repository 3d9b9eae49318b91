package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/JoahanSP/SECURENET/internal/config"
	"github.com/JoahanSP/SECURENET/internal/database"
	"github.com/JoahanSP/SECURENET/internal/events"
	"github.com/JoahanSP/SECURENET/internal/faces"
	"github.com/JoahanSP/SECURENET/internal/metrics"
	"github.com/JoahanSP/SECURENET/internal/storage"
)

// FaceRegistrar adds a gallery entry for an image.
type FaceRegistrar interface {
	Register(ctx context.Context, name, imagePath string) (*database.AuthorizedFace, error)
}

// CallbackHandler applies the answers to alert buttons and the typed names
// that follow an "assign name" request.
type CallbackHandler struct {
	bot      Bot
	router   *storage.Router
	registry FaceRegistrar
	pending  *PendingDecisions
	msgs     config.MessagesConfig
	events   events.Publisher
	metrics  *metrics.Registry
	log      zerolog.Logger
}

// NewCallbackHandler creates a handler. pub and m may be nil.
func NewCallbackHandler(bot Bot, router *storage.Router, registry FaceRegistrar, pending *PendingDecisions,
	msgs config.MessagesConfig, pub events.Publisher, m *metrics.Registry, log zerolog.Logger,
) *CallbackHandler {
	if pub == nil {
		pub = events.Noop{}
	}
	return &CallbackHandler{
		bot:      bot,
		router:   router,
		registry: registry,
		pending:  pending,
		msgs:     msgs,
		events:   pub,
		metrics:  m,
		log:      log.With().Str("component", "callbacks").Logger(),
	}
}

// Callback is a pressed button, decoupled from the transport types.
type Callback struct {
	QueryID   string
	Session   SessionKey
	MessageID int64
	Data      string
}

// HandleCallback answers the query, then applies the action.
func (h *CallbackHandler) HandleCallback(ctx context.Context, cb Callback) error {
	if err := h.bot.AnswerCallbackQuery(ctx, cb.QueryID, ""); err != nil {
		h.log.Warn().Err(err).Msg("failed to answer callback query")
	}

	action, filename, err := ParseCallbackData(cb.Data)
	if err != nil {
		h.log.Warn().Err(err).Msg("ignoring callback")
		h.editCaption(ctx, cb, h.msgs.CallbackFailed)
		return err
	}
	log := h.log.With().Str("action", action).Str("file", filename).Logger()

	switch action {
	case ActionAuthorize:
		name := storage.StemName(filename)
		if err := h.authorize(ctx, filename, name); err != nil {
			log.Error().Err(err).Msg("authorize failed")
			h.record(action, filename, "", false)
			h.editCaption(ctx, cb, fmt.Sprintf(h.msgs.AuthorizeFailed, name))
			return err
		}
		log.Info().Str("name", name).Msg("intruder snapshot authorized")
		h.record(action, filename, name, true)
		h.editCaption(ctx, cb, fmt.Sprintf(h.msgs.Authorized, name))

	case ActionIntruder:
		log.Info().Msg("snapshot confirmed as intruder")
		h.record(action, filename, "", true)
		h.editCaption(ctx, cb, fmt.Sprintf(h.msgs.MarkedIntruder, filename))

	case ActionName:
		if h.pending.Set(cb.Session, filename) {
			log.Info().Msg("previous name request for this session replaced")
		}
		h.record(action, filename, "", true)
		h.editCaption(ctx, cb, fmt.Sprintf(h.msgs.AskName, filename))
	}
	return nil
}

// HandleText consumes a typed name for a pending request. It reports
// whether the message was used. The pending entry is cleared on every
// attempt, including failures.
func (h *CallbackHandler) HandleText(ctx context.Context, session SessionKey, text string) (bool, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "/") {
		return false, nil
	}
	filename, ok := h.pending.Take(session)
	if !ok {
		return false, nil
	}

	if text == "" {
		h.reply(ctx, session.ChatID, h.msgs.NameInvalid)
		h.record(ActionName, filename, "", false)
		return true, fmt.Errorf("empty name for %s", filename)
	}

	if err := h.authorize(ctx, filename, text); err != nil {
		h.log.Error().Err(err).Str("file", filename).Str("name", text).Msg("naming failed")
		msg := h.msgs.NameFailed
		if errors.Is(err, faces.ErrInvalidName) {
			msg = h.msgs.NameInvalid
		}
		h.reply(ctx, session.ChatID, msg)
		h.record(ActionName, filename, text, false)
		return true, err
	}

	h.log.Info().Str("file", filename).Str("name", text).Msg("intruder snapshot named and authorized")
	h.reply(ctx, session.ChatID, fmt.Sprintf(h.msgs.NameAdded, text))
	h.record(ActionName, filename, text, true)
	return true, nil
}

// authorize moves the intruder artifact into the authorized category and
// registers it. A failed registration moves the file back.
func (h *CallbackHandler) authorize(ctx context.Context, filename, name string) error {
	src, err := h.router.Resolve(storage.Intruder, filename)
	if err != nil {
		return err
	}
	dst, err := h.router.Relocate(src, storage.Authorized)
	if err != nil {
		return fmt.Errorf("move to authorized: %w", err)
	}

	if _, err := h.registry.Register(ctx, name, dst); err != nil {
		if _, rerr := h.router.Relocate(dst, storage.Intruder); rerr != nil {
			h.log.Error().Err(rerr).Str("file", filename).Msg("failed to move snapshot back after registration error")
		}
		return fmt.Errorf("register %q: %w", name, err)
	}
	return nil
}

func (h *CallbackHandler) editCaption(ctx context.Context, cb Callback, caption string) {
	if cb.MessageID == 0 {
		return
	}
	if err := h.bot.EditMessageCaption(ctx, cb.Session.ChatID, cb.MessageID, caption); err != nil {
		h.log.Warn().Err(err).Msg("failed to edit alert caption")
	}
}

func (h *CallbackHandler) reply(ctx context.Context, chatID int64, text string) {
	if _, err := h.bot.SendMessage(ctx, chatID, text); err != nil {
		h.log.Warn().Err(err).Msg("failed to send reply")
	}
}

func (h *CallbackHandler) record(action, filename, name string, ok bool) {
	h.metrics.CallbackAction(action, ok)
	status := action
	if !ok {
		status += "_failed"
	}
	ev := events.Event{Kind: events.KindCallback, Status: status, Filename: filename, Name: name}
	if err := h.events.Publish(context.Background(), ev); err != nil {
		h.log.Warn().Err(err).Msg("failed to publish callback event")
	}
}
