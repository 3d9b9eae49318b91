package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/JoahanSP/SECURENET/internal/constants"
	"github.com/JoahanSP/SECURENET/internal/telegram"
)

// Updater fetches bot updates.
type Updater interface {
	GetUpdates(ctx context.Context, offset int64, timeoutSeconds int) ([]telegram.Update, error)
}

// UpdatePoller long-polls the Bot API and hands updates from the
// configured chat to the callback handler.
type UpdatePoller struct {
	updater      Updater
	handler      *CallbackHandler
	chatID       int64
	pollTimeout  int
	errorBackoff time.Duration
	log          zerolog.Logger

	offset int64
}

// NewUpdatePoller creates a poller for chatID.
func NewUpdatePoller(updater Updater, handler *CallbackHandler, chatID int64, errorBackoff time.Duration, log zerolog.Logger) *UpdatePoller {
	if errorBackoff <= 0 {
		errorBackoff = constants.DefaultErrorBackoffSeconds * time.Second
	}
	return &UpdatePoller{
		updater:      updater,
		handler:      handler,
		chatID:       chatID,
		pollTimeout:  constants.TelegramLongPollSeconds,
		errorBackoff: errorBackoff,
		log:          log.With().Str("component", "update-poller").Logger(),
	}
}

// Run polls until ctx is cancelled.
func (p *UpdatePoller) Run(ctx context.Context) {
	p.log.Info().Int64("chat_id", p.chatID).Msg("telegram update poller started")
	defer p.log.Info().Msg("telegram update poller stopped")

	for ctx.Err() == nil {
		if err := p.PollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			wait := p.errorBackoff
			var apiErr *telegram.APIError
			if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
				wait = time.Duration(apiErr.RetryAfter) * time.Second
			}
			p.log.Warn().Err(err).Dur("backoff", wait).Msg("getUpdates failed")

			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
		}
	}
}

// PollOnce fetches one batch and dispatches it. The offset advances past
// every update, including ones that fail or come from other chats.
func (p *UpdatePoller) PollOnce(ctx context.Context) error {
	updates, err := p.updater.GetUpdates(ctx, p.offset, p.pollTimeout)
	if err != nil {
		return err
	}
	for _, u := range updates {
		if u.UpdateID >= p.offset {
			p.offset = u.UpdateID + 1
		}
		if chat := u.ChatID(); chat != p.chatID {
			p.log.Warn().Int64("chat_id", chat).Int64("update_id", u.UpdateID).Msg("ignoring update from foreign chat")
			continue
		}
		if err := p.dispatch(ctx, u); err != nil {
			p.log.Warn().Err(err).Int64("update_id", u.UpdateID).Msg("update handling failed")
		}
	}
	return nil
}

func (p *UpdatePoller) dispatch(ctx context.Context, u telegram.Update) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic handling update: %v", r)
		}
	}()

	switch {
	case u.CallbackQuery != nil:
		q := u.CallbackQuery
		cb := Callback{
			QueryID: q.ID,
			Session: SessionKey{ChatID: u.ChatID(), UserID: q.From.ID},
			Data:    q.Data,
		}
		if q.Message != nil {
			cb.MessageID = q.Message.MessageID
		}
		return p.handler.HandleCallback(ctx, cb)

	case u.Message != nil && u.Message.Text != "":
		var userID int64
		if u.Message.From != nil {
			userID = u.Message.From.ID
		}
		_, err := p.handler.HandleText(ctx, SessionKey{ChatID: u.Message.Chat.ID, UserID: userID}, u.Message.Text)
		return err
	}
	return nil
}
