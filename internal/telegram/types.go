package telegram

import tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

// Update is one entry of getUpdates. Only the kinds the bot handles are
// kept.
type Update struct {
	UpdateID      int64
	Message       *Message
	CallbackQuery *CallbackQuery
}

// ChatID returns the chat the update belongs to, or 0 if unknown.
func (u Update) ChatID() int64 {
	switch {
	case u.CallbackQuery != nil && u.CallbackQuery.Message != nil:
		return u.CallbackQuery.Message.Chat.ID
	case u.Message != nil:
		return u.Message.Chat.ID
	}
	return 0
}

type Message struct {
	MessageID int64
	Chat      Chat
	From      *User
	Text      string
	Caption   string
}

type Chat struct {
	ID   int64
	Type string
}

type User struct {
	ID        int64
	Username  string
	FirstName string
}

type CallbackQuery struct {
	ID      string
	From    User
	Message *Message
	Data    string
}

type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton
}

type InlineKeyboardButton struct {
	Text         string
	CallbackData string
}

func toLibraryMarkup(m *InlineKeyboardMarkup) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(m.InlineKeyboard))
	for _, row := range m.InlineKeyboard {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.CallbackData))
		}
		rows = append(rows, buttons)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func fromLibraryUser(u *tgbotapi.User) *User {
	if u == nil {
		return nil
	}
	return &User{ID: u.ID, Username: u.UserName, FirstName: u.FirstName}
}

func fromLibraryMessage(m *tgbotapi.Message) *Message {
	if m == nil {
		return nil
	}
	msg := &Message{
		MessageID: int64(m.MessageID),
		From:      fromLibraryUser(m.From),
		Text:      m.Text,
		Caption:   m.Caption,
	}
	if m.Chat != nil {
		msg.Chat = Chat{ID: m.Chat.ID, Type: m.Chat.Type}
	}
	return msg
}

func fromLibraryUpdate(u *tgbotapi.Update) Update {
	out := Update{
		UpdateID: int64(u.UpdateID),
		Message:  fromLibraryMessage(u.Message),
	}
	if q := u.CallbackQuery; q != nil {
		cb := &CallbackQuery{ID: q.ID, Data: q.Data, Message: fromLibraryMessage(q.Message)}
		if from := fromLibraryUser(q.From); from != nil {
			cb.From = *from
		}
		out.CallbackQuery = cb
	}
	return out
}
