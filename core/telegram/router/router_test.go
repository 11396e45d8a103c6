package router

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	tg "github.com/m3rciful/fruitbot/core/telegram"
	"github.com/m3rciful/fruitbot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

type stubContext struct {
	tele.Context
	mu    sync.Mutex
	upd   tele.Update
	store map[string]interface{}
}

func newStubContext(userID int64, text string) *stubContext {
	return &stubContext{
		upd: tele.Update{ID: int(userID), Message: &tele.Message{
			Sender: &tele.User{ID: userID},
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

type stubFSM struct {
	active  map[int64]bool
	handled []string
}

func (f *stubFSM) InProgress(_ context.Context, chatID int64) bool { return f.active[chatID] }
func (f *stubFSM) ManagerHandler(c tele.Context) error {
	f.handled = append(f.handled, c.Text())
	return nil
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingObserver) ObserveHandler(handler, status string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, handler+":"+status)
}

func textHandler(t *testing.T, fsm FSM, reg *tg.Registry, opts TextOptions) tele.HandlerFunc {
	t.Helper()
	routes := TextRoutes(fsm, reg, opts)
	if len(routes) != 1 || routes[0].Endpoint != tele.OnText {
		t.Fatalf("expected a single OnText route, got %+v", routes)
	}
	return routes[0].Handler
}

func TestTextRoutesPreferActiveConversation(t *testing.T) {
	fsm := &stubFSM{active: map[int64]bool{1: true}}
	var restarted int
	reg := tg.NewRegistry()
	reg.RegisterCommand("/start", commands.Command{
		Handler:     func(tele.Context) error { restarted++; return nil },
		Description: "start",
		Aliases:     []string{"restart"},
	})
	h := textHandler(t, fsm, reg, TextOptions{})

	if err := h(newStubContext(1, "restart")); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if restarted != 0 || len(fsm.handled) != 1 || fsm.handled[0] != "restart" {
		t.Fatalf("answer must reach the conversation, restarted=%d handled=%v", restarted, fsm.handled)
	}

	if err := h(newStubContext(2, "restart")); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if restarted != 1 {
		t.Fatalf("idle user alias should run the command")
	}
}

func TestTextRoutesFallbacks(t *testing.T) {
	fsm := &stubFSM{active: map[int64]bool{}}
	var unknown int
	h := textHandler(t, fsm, tg.NewRegistry(), TextOptions{
		UnknownText: func(tele.Context) error { unknown++; return nil },
	})
	_ = h(newStubContext(3, "hello"))
	if unknown != 1 || len(fsm.handled) != 0 {
		t.Fatalf("unknown=%d handled=%v", unknown, fsm.handled)
	}

	reg := tg.NewRegistry()
	var fallback int
	reg.SetTextFallback(func(tele.Context) error { fallback++; return nil })
	h = textHandler(t, fsm, reg, TextOptions{UnknownText: func(tele.Context) error { unknown++; return nil }})
	_ = h(newStubContext(3, "hello"))
	if fallback != 1 || unknown != 1 {
		t.Fatalf("registry fallback should win, fallback=%d unknown=%d", fallback, unknown)
	}
}

func TestObserverSeesEveryRoutedUpdate(t *testing.T) {
	obs := &recordingObserver{}
	SetObserver(obs)
	defer SetObserver(nil)

	fsm := &stubFSM{active: map[int64]bool{1: true}}
	h := textHandler(t, fsm, nil, TextOptions{})
	_ = h(newStubContext(1, "Ana"))
	_ = h(newStubContext(2, "stray"))

	if len(obs.calls) != 2 || obs.calls[0] != "fsm:ok" || obs.calls[1] != "unknown_text:ignored" {
		t.Fatalf("unexpected observations: %v", obs.calls)
	}
}

func TestCommandRoutes(t *testing.T) {
	reg := tg.NewRegistry()
	var helped int
	reg.RegisterCommand("/help", commands.Command{Handler: func(tele.Context) error { helped++; return nil }, Description: "help"})
	routes := CommandRoutes(reg)
	if len(routes) != 1 || routes[0].Endpoint != "/help" {
		t.Fatalf("unexpected routes: %+v", routes)
	}
	if err := routes[0].Handler(newStubContext(1, "/help")); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if helped != 1 {
		t.Fatalf("command handler not called")
	}
	if CommandRoutes(nil) != nil {
		t.Fatalf("nil registry must yield no routes")
	}
}

type codedErr struct{}

func (codedErr) Error() string { return "coded" }
func (codedErr) Code() string  { return "rate limited" }

type plainErr struct{}

func (*plainErr) Error() string { return "plain" }

func TestDeriveErrorCode(t *testing.T) {
	if got := deriveErrorCode(codedErr{}); got != "RATE_LIMITED" {
		t.Fatalf("got %q", got)
	}
	if got := deriveErrorCode(fmt.Errorf("route: %w", &plainErr{})); got != "PLAINERR" {
		t.Fatalf("got %q", got)
	}
	if got := deriveErrorCode(nil); got != "" {
		t.Fatalf("got %q", got)
	}
	if got := normalizeHandlerName(" /Start Now "); got != "start_now" {
		t.Fatalf("got %q", got)
	}
}
