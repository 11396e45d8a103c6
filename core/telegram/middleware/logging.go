package middleware

import (
	"log/slog"
	"time"

	"github.com/m3rciful/fruitbot/core/logger"
	tghelpers "github.com/m3rciful/fruitbot/core/telegram/helpers"

	"github.com/hashicorp/golang-lru/v2/expirable"
	tele "gopkg.in/telebot.v4"
)

// seenUpdates remembers recently logged update ids so nested loggers emit one receipt.
var seenUpdates = expirable.NewLRU[int, struct{}](4096, nil, 10*time.Second)

func firstReceipt(updateID int) bool {
	if seenUpdates.Contains(updateID) {
		return false
	}
	seenUpdates.Add(updateID, struct{}{})
	return true
}

// LoggerMiddleware stamps the update with a rid and start time, stores the
// logging context and emits one debug receipt line per update.
// Message text is never logged, only its length.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		upd := c.Update()
		if _, ok := c.Get("rid").(string); !ok {
			var userID, chatID int64
			if u := c.Sender(); u != nil {
				userID = u.ID
			}
			if ch := c.Chat(); ch != nil {
				chatID = ch.ID
			}
			c.Set("rid", logger.BuildRID(upd.ID, chatID, userID))
		}
		if _, ok := c.Get("update_start").(time.Time); !ok {
			c.Set("update_start", time.Now())
		}
		ctx := tghelpers.BuildContext(c)

		if logger.ShouldSampleDebug() && firstReceipt(upd.ID) {
			attrs := []slog.Attr{slog.String("status", "ok")}
			if ch := c.Chat(); ch != nil {
				attrs = append(attrs, slog.String("chat_type", string(ch.Type)))
			}
			if u := c.Sender(); u != nil && u.LanguageCode != "" {
				attrs = append(attrs, slog.String("lang", u.LanguageCode))
			}
			if upd.Message != nil {
				attrs = append(attrs, slog.Int("payload_chars", len([]rune(c.Text()))))
			}
			logger.LogEvent(ctx, logger.Component("tg"), slog.LevelDebug, "update.received", attrs...)
		}
		return next(c)
	}
}
