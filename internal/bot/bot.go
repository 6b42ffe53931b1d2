// Package bot contains the two chat surfaces: the admin dispatcher driving
// directory management, invite codes, reports and the task wizard, and the
// user dispatcher driving task lists and status changes.
package bot

import (
	"context"

	"github.com/wochagonnadu/taskbot/internal/observability"
	"github.com/wochagonnadu/taskbot/internal/transport"
)

const (
	surfaceAdmin = "admin"
	surfaceUser  = "user"
)

// reply sends text with an optional keyboard back into the update's chat.
// Button presses edit the originating message in place, plain messages get
// a fresh one.
func reply(ctx context.Context, sender transport.Sender, upd transport.Update, text string, kb transport.InlineKeyboard) error {
	if text == "" {
		return nil
	}
	msg := transport.OutMessage{ChatID: upd.ChatID(), Text: text, Keyboard: kb}
	if upd.Callback != nil && upd.Callback.Message != nil {
		msg.MessageID = upd.Callback.Message.MessageID
	}
	return sender.Send(ctx, msg)
}

func countUpdate(m *observability.Metrics, surface string, upd transport.Update) {
	if m == nil {
		return
	}
	kind := "message"
	if upd.Callback != nil {
		kind = "callback"
	}
	m.UpdatesTotal.WithLabelValues(surface, kind).Inc()
}

func countError(m *observability.Metrics, surface string, err error) {
	if m == nil || err == nil {
		return
	}
	m.UpdateErrors.WithLabelValues(surface).Inc()
}
