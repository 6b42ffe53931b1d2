// Package transport defines the narrow contract against the chat
// platform: inbound update shapes and an outbound sender. Business
// packages depend on the Sender interface, never on the HTTP client.
package transport

import "context"

// Button is one inline keyboard button; Data is returned verbatim in the
// callback when pressed.
type Button struct {
	Text string `json:"text"`
	Data string `json:"callback_data"`
}

type InlineKeyboard [][]Button

// Row is a convenience for single-row keyboards.
func Row(buttons ...Button) []Button { return buttons }

type UserRef struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

func (u UserRef) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

type ChatRef struct {
	ID   int64  `json:"id"`
	Type string `json:"type,omitempty"`
}

type Message struct {
	MessageID int64   `json:"message_id"`
	From      UserRef `json:"from"`
	Chat      ChatRef `json:"chat"`
	Text      string  `json:"text,omitempty"`
}

type Callback struct {
	ID      string   `json:"id"`
	From    UserRef  `json:"from"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data"`
}

// Update is one inbound event: exactly one of Message or Callback is set.
type Update struct {
	UpdateID int64     `json:"update_id"`
	Message  *Message  `json:"message,omitempty"`
	Callback *Callback `json:"callback_query,omitempty"`
}

// From returns the external identity behind the update, or 0.
func (u Update) From() int64 {
	if u.Message != nil {
		return u.Message.From.ID
	}
	if u.Callback != nil {
		return u.Callback.From.ID
	}
	return 0
}

// ChatID returns the conversation the update originated in, or 0.
func (u Update) ChatID() int64 {
	if u.Message != nil {
		return u.Message.Chat.ID
	}
	if u.Callback != nil && u.Callback.Message != nil {
		return u.Callback.Message.Chat.ID
	}
	return 0
}

const ParseModeMarkdownV2 = "MarkdownV2"

// OutMessage is an outbound message. A non-zero MessageID edits the
// existing message in place instead of sending a new one.
type OutMessage struct {
	ChatID    int64
	MessageID int64
	Text      string
	Keyboard  InlineKeyboard
	ParseMode string
}

type Document struct {
	ChatID   int64
	Filename string
	Caption  string
	Data     []byte
}

type Sender interface {
	Send(ctx context.Context, msg OutMessage) error
	SendDocument(ctx context.Context, doc Document) error
}
