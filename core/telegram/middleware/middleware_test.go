package middleware

import (
	"errors"
	"sync"
	"testing"
	"time"

	tghelpers "github.com/m3rciful/fruitbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// stubContext implements the parts of tele.Context the middlewares touch.
type stubContext struct {
	tele.Context
	mu    sync.Mutex
	upd   tele.Update
	store map[string]interface{}
	sent  int
}

func newStubContext(updateID int, userID int64, text string) *stubContext {
	user := &tele.User{ID: userID}
	return &stubContext{
		upd: tele.Update{ID: updateID, Message: &tele.Message{
			Sender: user,
			Chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
			Text:   text,
		}},
		store: map[string]interface{}{},
	}
}

func (s *stubContext) Update() tele.Update { return s.upd }
func (s *stubContext) Sender() *tele.User  { return s.upd.Message.Sender }
func (s *stubContext) Chat() *tele.Chat    { return s.upd.Message.Chat }
func (s *stubContext) Text() string        { return s.upd.Message.Text }
func (s *stubContext) Send(interface{}, ...interface{}) error {
	s.sent++
	return nil
}
func (s *stubContext) Get(key string) interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store[key]
}
func (s *stubContext) Set(key string, v interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store[key] = v
}

func TestRecoverMiddlewareReturnsError(t *testing.T) {
	h := RecoverMiddleware(func(tele.Context) error { panic("kaboom") })
	if err := h(newStubContext(1, 1, "x")); err == nil {
		t.Fatalf("expected panic to become an error")
	}
}

func TestRateLimitDropsBurst(t *testing.T) {
	var handled, limited int
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Hour,
		OnLimited: func(tele.Context) error { limited++; return nil },
	})
	h := mw(func(tele.Context) error { handled++; return nil })

	_ = h(newStubContext(1, 10, "a"))
	_ = h(newStubContext(2, 10, "b"))
	_ = h(newStubContext(3, 11, "c"))

	if handled != 2 || limited != 1 {
		t.Fatalf("handled=%d limited=%d", handled, limited)
	}
}

func TestRateLimitReturnsLimitedHandlerError(t *testing.T) {
	notified := errors.New("notify failed")
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Hour,
		OnLimited: func(tele.Context) error { return notified },
	})
	h := mw(func(tele.Context) error { return nil })

	if err := h(newStubContext(1, 10, "Alex")); err != nil {
		t.Fatalf("first update: %v", err)
	}
	if err := h(newStubContext(2, 10, "29")); !errors.Is(err, notified) {
		t.Fatalf("expected the limited handler error, got %v", err)
	}
}

func TestRateLimitHonoursExclusions(t *testing.T) {
	var handled int
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval: time.Hour,
		Exclude:  map[string]struct{}{"message": {}},
	})
	h := mw(func(tele.Context) error { handled++; return nil })
	_ = h(newStubContext(1, 10, "a"))
	_ = h(newStubContext(2, 10, "b"))
	if handled != 2 {
		t.Fatalf("excluded updates must pass, handled=%d", handled)
	}
}

func TestRateLimitForgetsOldestUsers(t *testing.T) {
	var handled int
	mw := RateLimitMiddleware(RateLimitOptions{Interval: time.Hour, MaxUsers: 1})
	h := mw(func(tele.Context) error { handled++; return nil })
	_ = h(newStubContext(1, 10, "a"))
	_ = h(newStubContext(2, 11, "b"))
	_ = h(newStubContext(3, 10, "c"))
	if handled != 3 {
		t.Fatalf("evicted user should not be limited, handled=%d", handled)
	}
}

func TestCountersSurviveRouteLogger(t *testing.T) {
	c := newStubContext(5, 20, "hi")
	chain := LoggerMiddleware(MessageMetricsMiddleware(LoggerMiddleware(func(c tele.Context) error {
		ctx, ok := tghelpers.ContextFrom(c)
		if !ok {
			return errors.New("missing context")
		}
		CountMessage(ctx)
		CountMessage(ctx)
		return c.Send("direct")
	})))
	if err := chain(c); err != nil {
		t.Fatalf("chain: %v", err)
	}
	if got := GetCounters(c); got != 3 {
		t.Fatalf("expected 3 counted messages, got %d", got)
	}
}

func TestCountMessageWithoutCounters(t *testing.T) {
	if GetCounters(newStubContext(1, 1, "")) != 0 {
		t.Fatalf("expected zero without middleware")
	}
}
