// Package telegram adapts the Bot API library to the calls the alert bot
// needs: photos with inline keyboards, caption edits, callback answers,
// plain messages and long polling.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/JoahanSP/SECURENET/internal/constants"
)

const defaultAPIURL = "https://api.telegram.org"

// Client calls the Bot API for one bot token.
type Client struct {
	endpoint   string // tgbotapi endpoint format, "<base>/bot%s/%s"
	token      string
	httpClient *http.Client
}

// NewClient creates a client. An empty apiURL uses the public Bot API.
// No request is made until the first call.
func NewClient(token, apiURL string) *Client {
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	return &Client{
		endpoint: strings.TrimRight(apiURL, "/") + "/bot%s/%s",
		token:    token,
		httpClient: &http.Client{
			// must outlive the getUpdates long poll
			Timeout: (constants.TelegramLongPollSeconds + 30) * time.Second,
		},
	}
}

// ctxDoer binds one call's context to the library's requests.
type ctxDoer struct {
	ctx    context.Context
	client *http.Client
}

func (d ctxDoer) Do(req *http.Request) (*http.Response, error) {
	return d.client.Do(req.WithContext(d.ctx))
}

// bot returns a library handle scoped to ctx. NewBotAPI is avoided because
// it calls getMe eagerly.
func (c *Client) bot(ctx context.Context) *tgbotapi.BotAPI {
	b := &tgbotapi.BotAPI{
		Token:  c.token,
		Client: ctxDoer{ctx: ctx, client: c.httpClient},
		Buffer: 100,
	}
	b.SetAPIEndpoint(c.endpoint)
	return b
}

// SendPhoto uploads the file at photoPath to chatID. markup may be nil.
func (c *Client) SendPhoto(ctx context.Context, chatID int64, photoPath, caption string, markup *InlineKeyboardMarkup) (*Message, error) {
	f, err := os.Open(photoPath) //nolint:gosec // path comes from the storage router
	if err != nil {
		return nil, fmt.Errorf("open photo: %w", err)
	}
	defer f.Close()

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileReader{Name: filepath.Base(photoPath), Reader: f})
	photo.Caption = caption
	if markup != nil {
		photo.ReplyMarkup = toLibraryMarkup(markup)
	}

	msg, err := c.bot(ctx).Send(photo)
	if err != nil {
		return nil, wrapError("sendPhoto", err)
	}
	return fromLibraryMessage(&msg), nil
}

// SendMessage posts a text message.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) (*Message, error) {
	msg, err := c.bot(ctx).Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		return nil, wrapError("sendMessage", err)
	}
	return fromLibraryMessage(&msg), nil
}

// EditMessageCaption replaces the caption of a sent photo and drops its
// inline keyboard so the alert cannot be answered twice.
func (c *Client) EditMessageCaption(ctx context.Context, chatID, messageID int64, caption string) error {
	edit := tgbotapi.NewEditMessageCaption(chatID, int(messageID), caption)
	edit.ReplyMarkup = &tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}

	_, err := c.bot(ctx).Request(edit)
	err = wrapError("editMessageCaption", err)
	if IsNotModified(err) {
		return nil
	}
	return err
}

// AnswerCallbackQuery stops the client-side spinner of a pressed button.
// An empty text is omitted.
func (c *Client) AnswerCallbackQuery(ctx context.Context, queryID, text string) error {
	_, err := c.bot(ctx).Request(tgbotapi.NewCallback(queryID, text))
	return wrapError("answerCallbackQuery", err)
}

// GetUpdates long-polls for updates with id >= offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeoutSeconds int) ([]Update, error) {
	cfg := tgbotapi.NewUpdate(int(offset))
	cfg.Timeout = timeoutSeconds
	cfg.AllowedUpdates = []string{"message", "callback_query"}

	raw, err := c.bot(ctx).GetUpdates(cfg)
	if err != nil {
		return nil, wrapError("getUpdates", err)
	}
	updates := make([]Update, 0, len(raw))
	for i := range raw {
		updates = append(updates, fromLibraryUpdate(&raw[i]))
	}
	return updates, nil
}

// wrapError turns library failures into *APIError and keeps the token,
// which is part of the request URL, out of transport errors.
func wrapError(method string, err error) error {
	if err == nil {
		return nil
	}
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) {
		return &APIError{
			Method:      method,
			ErrorCode:   tgErr.Code,
			Description: tgErr.Message,
			RetryAfter:  tgErr.RetryAfter,
		}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	return fmt.Errorf("telegram %s: %w", method, err)
}
