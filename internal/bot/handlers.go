package bot

import (
	"context"
	"errors"

	tghelpers "github.com/m3rciful/fruitbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

var errNoChat = errors.New("bot: update has no chat")

// conversation is the questionnaire as seen from Telegram handlers.
type conversation interface {
	StartSession(ctx context.Context, chatID int64) error
	HandleMessage(ctx context.Context, chatID int64, text string) error
	Help(ctx context.Context, chatID int64) error
	Throttled(ctx context.Context, chatID int64) error
	InProgress(ctx context.Context, chatID int64) bool
}

// Handlers adapts the questionnaire to telebot handlers and the router FSM.
type Handlers struct {
	conv conversation
}

// NewHandlers wraps conv.
func NewHandlers(conv conversation) *Handlers {
	return &Handlers{conv: conv}
}

// Start handles /start and its aliases.
func (h *Handlers) Start(c tele.Context) error {
	chat := c.Chat()
	if chat == nil {
		return errNoChat
	}
	return h.conv.StartSession(tghelpers.BuildContext(c), chat.ID)
}

// Help handles /help.
func (h *Handlers) Help(c tele.Context) error {
	chat := c.Chat()
	if chat == nil {
		return errNoChat
	}
	return h.conv.Help(tghelpers.BuildContext(c), chat.ID)
}

// Limited answers an update dropped by the rate limiter, so the user knows to resend.
func (h *Handlers) Limited(c tele.Context) error {
	chat := c.Chat()
	if chat == nil {
		return errNoChat
	}
	return h.conv.Throttled(tghelpers.BuildContext(c), chat.ID)
}

// InProgress reports whether chatID is answering questions.
func (h *Handlers) InProgress(ctx context.Context, chatID int64) bool {
	return h.conv.InProgress(ctx, chatID)
}

// ManagerHandler feeds a text message into the questionnaire.
func (h *Handlers) ManagerHandler(c tele.Context) error {
	chat := c.Chat()
	if chat == nil {
		return errNoChat
	}
	return h.conv.HandleMessage(tghelpers.BuildContext(c), chat.ID, c.Text())
}
