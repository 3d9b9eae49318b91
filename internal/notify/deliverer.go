// Package notify connects the alert pipeline to the Telegram chat: it sends
// intruder alerts with action buttons and applies the answers.
package notify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/JoahanSP/SECURENET/internal/alerts"
	"github.com/JoahanSP/SECURENET/internal/archive"
	"github.com/JoahanSP/SECURENET/internal/config"
	"github.com/JoahanSP/SECURENET/internal/constants"
	"github.com/JoahanSP/SECURENET/internal/telegram"
)

// ErrInvalidArtifact is returned when an alert's file is missing or empty.
var ErrInvalidArtifact = errors.New("invalid artifact")

// Callback actions carried in button payloads as "<action>|<filename>".
const (
	ActionAuthorize = "auth"
	ActionIntruder  = "intr"
	ActionName      = "name"
)

// Bot is the subset of the Telegram client used here.
type Bot interface {
	SendPhoto(ctx context.Context, chatID int64, photoPath, caption string, markup *telegram.InlineKeyboardMarkup) (*telegram.Message, error)
	SendMessage(ctx context.Context, chatID int64, text string) (*telegram.Message, error)
	EditMessageCaption(ctx context.Context, chatID, messageID int64, caption string) error
	AnswerCallbackQuery(ctx context.Context, queryID, text string) error
}

var _ Bot = (*telegram.Client)(nil)

// CallbackData builds a button payload.
func CallbackData(action, filename string) string {
	return action + "|" + filename
}

// ParseCallbackData splits a button payload.
func ParseCallbackData(data string) (action, filename string, err error) {
	action, filename, ok := strings.Cut(data, "|")
	if !ok || filename == "" {
		return "", "", fmt.Errorf("malformed callback data %q", data)
	}
	switch action {
	case ActionAuthorize, ActionIntruder, ActionName:
		return action, filename, nil
	}
	return "", "", fmt.Errorf("unknown callback action %q", action)
}

// Keyboard returns the three alert buttons for filename.
func Keyboard(filename string, msgs config.MessagesConfig) *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{
		{
			{Text: msgs.ButtonAuthorize, CallbackData: CallbackData(ActionAuthorize, filename)},
			{Text: msgs.ButtonIntruder, CallbackData: CallbackData(ActionIntruder, filename)},
		},
		{
			{Text: msgs.ButtonName, CallbackData: CallbackData(ActionName, filename)},
		},
	}}
}

// AlertDeliverer sends one intruder snapshot to the configured chat.
type AlertDeliverer struct {
	bot      Bot
	chatID   int64
	msgs     config.MessagesConfig
	archiver archive.Archiver
	log      zerolog.Logger
}

var _ alerts.Deliverer = (*AlertDeliverer)(nil)

// NewAlertDeliverer creates a deliverer. archiver may be nil.
func NewAlertDeliverer(bot Bot, chatID int64, msgs config.MessagesConfig, archiver archive.Archiver, log zerolog.Logger) *AlertDeliverer {
	return &AlertDeliverer{
		bot:      bot,
		chatID:   chatID,
		msgs:     msgs,
		archiver: archiver,
		log:      log.With().Str("component", "deliverer").Logger(),
	}
}

// Deliver archives the artifact when configured, then posts it with the
// action keyboard.
func (d *AlertDeliverer) Deliver(ctx context.Context, job alerts.Job) error {
	fi, err := os.Stat(job.Path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidArtifact, filepath.Base(job.Path), err)
	}
	if !fi.Mode().IsRegular() || fi.Size() == 0 {
		return fmt.Errorf("%w: %s is empty", ErrInvalidArtifact, filepath.Base(job.Path))
	}

	filename := filepath.Base(job.Path)
	if len(CallbackData(ActionAuthorize, filename)) > constants.MaxCallbackDataLength {
		return fmt.Errorf("%w: name too long for callback payload: %s", ErrInvalidArtifact, filename)
	}

	if d.archiver != nil {
		if key, err := d.archiver.Archive(ctx, job.Path); err != nil {
			d.log.Warn().Err(err).Str("file", filename).Msg("archival failed, sending alert anyway")
		} else {
			d.log.Debug().Str("key", key).Msg("alert snapshot archived")
		}
	}

	msg, err := d.bot.SendPhoto(ctx, d.chatID, job.Path, d.msgs.AlertCaption, Keyboard(filename, d.msgs))
	if err != nil {
		return fmt.Errorf("send alert photo: %w", err)
	}
	if msg != nil {
		d.log.Debug().Str("file", filename).Int64("message_id", msg.MessageID).Msg("alert photo sent")
	}
	return nil
}
