package router

import (
	"context"
	"time"

	tg "github.com/m3rciful/fruitbot/core/telegram"
	tghelpers "github.com/m3rciful/fruitbot/core/telegram/helpers"
	"github.com/m3rciful/fruitbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// FSM is the conversation engine behind free-text messages.
// Conversations are keyed by chat.
type FSM interface {
	InProgress(ctx context.Context, chatID int64) bool
	ManagerHandler(c tele.Context) error
}

// TextOptions controls fallback behaviour for text updates.
type TextOptions struct {
	// UnknownText handles text from users without an active conversation.
	UnknownText tele.HandlerFunc
}

// TextRoutes builds the OnText route. Active conversations get every message,
// so answers are never mistaken for commands; otherwise text matching a command
// alias runs that command and the rest goes to the fallbacks.
func TextRoutes(fsmMgr FSM, reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		name, fn := pickText(c, fsmMgr, reg, opts)
		if fn == nil {
			logHandlerSummary(c, "unknown_text", start, "ignored", "ok", nil)
			return nil
		}
		return handleWithSummary(c, name, start, "", "", func() error { return fn(c) })
	}
	return []tg.Route{{
		Endpoint: tele.OnText,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}}
}

// pickText returns the handler name and function for a text update, or a nil
// function when nothing claims it.
func pickText(c tele.Context, fsmMgr FSM, reg *tg.Registry, opts TextOptions) (string, tele.HandlerFunc) {
	if fsmMgr != nil && c.Chat() != nil && fsmMgr.InProgress(tghelpers.BuildContext(c), c.Chat().ID) {
		return "fsm", fsmMgr.ManagerHandler
	}
	if reg != nil {
		if key, cmd, ok := reg.LookupCommand(c.Text()); ok && cmd.Handler != nil {
			return normalizeHandlerName(key), cmd.Handler
		}
		if fb := reg.TextFallback(); fb != nil {
			return "fallback", fb
		}
	}
	if opts.UnknownText != nil {
		return "unknown_text", opts.UnknownText
	}
	return "", nil
}
