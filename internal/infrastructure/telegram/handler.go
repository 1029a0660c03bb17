package telegram

import (
	"context"
	"strconv"
)

// MessageReceiver reacts to a text message from a chat.
type MessageReceiver interface {
	HandleMessage(ctx context.Context, chatID, text, languageCode string)
}

// TextHandler forwards text messages of updates to a MessageReceiver. It
// serves both the webhook and the polling loop.
type TextHandler struct {
	receiver MessageReceiver
}

func NewTextHandler(receiver MessageReceiver) *TextHandler {
	return &TextHandler{receiver: receiver}
}

// HandleUpdate ignores updates without a text message.
func (h *TextHandler) HandleUpdate(ctx context.Context, update *Update) error {
	if update == nil || update.Message == nil || update.Message.Chat == nil {
		return nil
	}
	msg := update.Message
	lang := ""
	if msg.From != nil {
		lang = msg.From.LanguageCode
	}
	h.receiver.HandleMessage(ctx, strconv.FormatInt(msg.Chat.ID, 10), msg.Text, lang)
	return nil
}
