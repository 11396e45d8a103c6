package middleware

import (
	"context"
	"sync/atomic"

	tghelpers "github.com/m3rciful/fruitbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

const countersKey = "metrics.counters"

type countersCtxKey struct{}

// Counters tracks replies produced while handling one update.
type Counters struct {
	messages atomic.Int64
}

// Messages returns how many replies were sent.
func (c *Counters) Messages() int {
	if c == nil {
		return 0
	}
	return int(c.messages.Load())
}

func (c *Counters) inc() {
	if c != nil {
		c.messages.Add(1)
	}
}

// metricsContext counts direct replies made through tele.Context.
type metricsContext struct {
	tele.Context
	counters *Counters
}

func (m metricsContext) Send(what interface{}, opts ...interface{}) error {
	err := m.Context.Send(what, opts...)
	if err == nil {
		m.counters.inc()
	}
	return err
}

func (m metricsContext) Reply(what interface{}, opts ...interface{}) error {
	err := m.Context.Reply(what, opts...)
	if err == nil {
		m.counters.inc()
	}
	return err
}

// MessageMetricsMiddleware attaches per-update Counters. Replies sent through
// tele.Context are counted directly; code that only has a context.Context
// reports through CountMessage.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		cnt := &Counters{}
		c.Set(countersKey, cnt)
		ctx := tghelpers.BuildContext(c)
		tghelpers.StoreContext(c, context.WithValue(ctx, countersCtxKey{}, cnt))
		return next(metricsContext{Context: c, counters: cnt})
	}
}

// CountMessage records one reply for the update carried by ctx, if any.
func CountMessage(ctx context.Context) {
	if ctx == nil {
		return
	}
	if cnt, ok := ctx.Value(countersCtxKey{}).(*Counters); ok {
		cnt.inc()
	}
}

// GetCounters reads the reply count of the current update.
func GetCounters(c tele.Context) int {
	if cnt, ok := c.Get(countersKey).(*Counters); ok {
		return cnt.Messages()
	}
	return 0
}
