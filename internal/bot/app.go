// Package bot wires the questionnaire to Telegram, storage and the oracle.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/m3rciful/fruitbot/core/bootstrap"
	"github.com/m3rciful/fruitbot/core/logger"
	coretelegram "github.com/m3rciful/fruitbot/core/telegram"
	"github.com/m3rciful/fruitbot/core/telegram/commands"
	"github.com/m3rciful/fruitbot/core/telegram/router"
	"github.com/m3rciful/fruitbot/core/telegram/sender"
	"github.com/m3rciful/fruitbot/internal/intake"
	"github.com/m3rciful/fruitbot/internal/metrics"
	"github.com/m3rciful/fruitbot/internal/oracle"
	"github.com/m3rciful/fruitbot/internal/profile"
	"github.com/m3rciful/fruitbot/internal/session"

	tele "gopkg.in/telebot.v4"
)

// App owns every long-lived dependency of the running bot.
type App struct {
	cfg *Config

	infra    *bootstrap.Result
	sessions session.Store
	oracle   *oracle.Gemini
	recorder *metrics.Recorder
	registry *prometheus.Registry

	bot        *tele.Bot
	dispatcher *sender.Dispatcher
	handlers   *Handlers

	metricsSrv *metrics.Server
	group      *errgroup.Group
}

// NewApp connects storage, the oracle and Telegram. Partially built
// dependencies are released when a later step fails.
func NewApp(ctx context.Context, cfg *Config) (app *App, err error) {
	if cfg == nil {
		return nil, errors.New("bot: nil config")
	}
	app = &App{cfg: cfg, registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			_ = app.Close()
			app = nil
		}
	}()

	app.infra, err = bootstrap.Run(bootstrap.Options{
		Config:        &cfg.Config,
		Database:      cfg.Database,
		Migrations:    profile.Migrations,
		MigrationsDir: profile.MigrationsDir,
	})
	if err != nil {
		return app, err
	}

	if app.sessions, err = session.Open(ctx, cfg.Session); err != nil {
		return app, err
	}
	if app.oracle, err = oracle.New(ctx, cfg.Gemini); err != nil {
		return app, err
	}

	app.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if app.recorder, err = metrics.New(cfg.Metrics.Namespace, app.registry); err != nil {
		return app, err
	}

	if app.bot, err = coretelegram.BuildBot(&cfg.Config); err != nil {
		return app, err
	}
	app.dispatcher = sender.NewDispatcher(dispatcherOptions(app.recorder))

	ctrl, err := intake.NewController(
		NewGateway(app.bot, app.dispatcher),
		profile.NewStore(app.infra.DB),
		app.sessions,
		app.oracle,
		intake.Options{Messages: cfg.Messages, Recorder: app.recorder},
	)
	if err != nil {
		return app, err
	}
	app.handlers = NewHandlers(ctrl)

	logger.TWire.Info("app wired",
		slog.String("event", "wire"),
		slog.String("driver", cfg.Database.Driver),
		slog.String("backend", cfg.Session.Backend),
		slog.String("model", cfg.Gemini.Model),
	)
	return app, nil
}

// dispatcherOptions retries transient Telegram failures (timeouts, 429, 5xx) a few times.
func dispatcherOptions(obs sender.Observer) sender.Options {
	return sender.Options{MaxRetries: 3, Observer: obs}
}

// Registry builds the command registry for h.
func Registry(h *Handlers) *coretelegram.Registry {
	reg := coretelegram.NewRegistry()
	reg.RegisterCommand("/start", commands.Command{
		Handler:     h.Start,
		Description: "Start or restart the quiz",
		Aliases:     []string{"restart"},
	})
	reg.RegisterCommand("/help", commands.Command{
		Handler:     h.Help,
		Description: "How the bot works",
	})
	return reg
}

// Routes returns the command and text routes for h.
func Routes(h *Handlers, reg *coretelegram.Registry) []coretelegram.Route {
	routes := router.CommandRoutes(reg)
	return append(routes, router.TextRoutes(h, reg, router.TextOptions{})...)
}

// TelegramRunOptions assembles the runtime for coretelegram.RunTelegram.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	if a.handlers == nil {
		return coretelegram.RunOptions{}, errors.New("bot: app is not initialized")
	}
	router.SetObserver(a.recorder)
	reg := Registry(a.handlers)

	return coretelegram.RunOptions{
		Config:      &a.cfg.Config,
		Registry:    reg,
		Bot:         a.bot,
		Dispatcher:  a.dispatcher,
		Middlewares: coretelegram.DefaultMiddlewares(&a.cfg.Config, a.handlers.Limited),
		Routes:      Routes(a.handlers, reg),
		OnStart:     a.onStart,
		OnStop:      a.onStop,
	}, nil
}

func (a *App) onStart(ctx context.Context, _ coretelegram.Runtime) error {
	if !a.cfg.Metrics.Enabled() {
		return nil
	}
	srv, err := metrics.NewServer(a.cfg.Metrics.Listen, a.registry)
	if err != nil {
		return err
	}
	a.metricsSrv = srv
	a.group, _ = errgroup.WithContext(ctx)
	a.group.Go(srv.Serve)
	return nil
}

func (a *App) onStop(ctx context.Context, _ coretelegram.Runtime) error {
	if a.metricsSrv == nil {
		return nil
	}
	if err := a.metricsSrv.Shutdown(ctx); err != nil {
		return fmt.Errorf("bot: metrics shutdown: %w", err)
	}
	return a.group.Wait()
}

// Close releases storage, session and oracle clients.
func (a *App) Close() error {
	var errs []error
	if a.oracle != nil {
		errs = append(errs, a.oracle.Close())
	}
	if a.sessions != nil {
		errs = append(errs, a.sessions.Close())
	}
	if a.infra != nil {
		errs = append(errs, a.infra.Close())
	}
	return errors.Join(errs...)
}
