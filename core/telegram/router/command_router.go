package router

import (
	"log/slog"
	"time"

	"github.com/m3rciful/fruitbot/core/logger"
	tg "github.com/m3rciful/fruitbot/core/telegram"
	"github.com/m3rciful/fruitbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRoutes binds every registered command to its slash endpoint,
// wrapped with recovery, logging and the handler summary.
func CommandRoutes(reg *tg.Registry) []tg.Route {
	if reg == nil {
		return nil
	}

	cmds := reg.Commands()
	routes := make([]tg.Route, 0, len(cmds))
	for cmd, def := range cmds {
		name := normalizeHandlerName(cmd)
		h := def.Handler
		wrapped := func(c tele.Context) error {
			return handleWithSummary(c, name, time.Now(), "", "", func() error {
				return h(c)
			})
		}
		routes = append(routes, tg.Route{
			Endpoint: cmd,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(wrapped)),
		})
	}

	logger.TWire.Info("tg.wire",
		slog.String("event", "complete"),
		slog.Int("commands", len(cmds)),
	)
	return routes
}
