// Package logger configures the process-wide structured logger and the
// context helpers that tag every line with update and user identifiers.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/m3rciful/fruitbot/core/buildinfo"
	coreconfig "github.com/m3rciful/fruitbot/core/config"
)

const (
	defaultSampleNum = 1
	defaultSampleDen = 50
)

var (
	initOnce sync.Once
	closeMu  sync.Mutex
	logFile  *os.File

	levelVar slog.LevelVar

	debugSampler = newSampler(defaultSampleNum, defaultSampleDen)
	traceAll     bool

	// L is the base logger; prefer the context-first helpers below in new code.
	L *slog.Logger

	// DB logs database connection events.
	DB *slog.Logger
	// MIG logs schema migration events.
	MIG *slog.Logger
	// TG logs Telegram transport events.
	TG *slog.Logger
	// TWire logs Telegram wiring steps.
	TWire *slog.Logger
	// Intake logs questionnaire progress.
	Intake *slog.Logger
	// Oracle logs suggestion oracle calls.
	Oracle *slog.Logger
	// Session logs conversation state storage.
	Session *slog.Logger
)

func init() {
	// Usable before InitLogger runs (tests, CLI subcommands).
	setBase(slog.Default())
}

// InitLogger configures the global structured logger. Only the first call has an effect.
func InitLogger(cfg *coreconfig.Config) error {
	var initErr error
	initOnce.Do(func() {
		var lc coreconfig.LoggingConfig
		if cfg != nil {
			lc = cfg.Logging
		}
		levelVar.Set(parseLevel(lc.Level))
		if num, den, ok := parseSampleSpec(lc.DebugSample); ok {
			debugSampler.set(num, den)
		}
		traceAll = isTruthy(os.Getenv("TRACE")) || isTruthy(os.Getenv("LOG_TRACE"))

		out, err := openOutput(lc)
		if err != nil {
			initErr = err
			return
		}
		base := slog.New(newHandler(out, parseFormat(lc), &levelVar))
		slog.SetDefault(base)
		setBase(base)

		base.LogAttrs(context.Background(), slog.LevelInfo, "",
			slog.String("event", "startup"),
			slog.String("go_version", runtime.Version()),
			slog.String("build", buildinfo.String()),
			slog.String("profile", profileName(lc)),
		)
	})
	return initErr
}

func setBase(base *slog.Logger) {
	L = base
	DB = base.With("component", "db")
	MIG = base.With("component", "db.migrate")
	TG = base.With("component", "tg")
	TWire = base.With("component", "tg.wire")
	Intake = base.With("component", "intake")
	Oracle = base.With("component", "oracle")
	Session = base.With("component", "session")
}

// openOutput returns stdout, teed into logging.dir/logging.file when both are set.
func openOutput(lc coreconfig.LoggingConfig) (io.Writer, error) {
	dir, name := strings.TrimSpace(lc.Dir), strings.TrimSpace(lc.File)
	if dir == "" || name == "" {
		return os.Stdout, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("logger: create dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logger: open %s: %w", path, err)
	}
	closeMu.Lock()
	logFile = f
	closeMu.Unlock()
	return io.MultiWriter(os.Stdout, f), nil
}

// Shutdown syncs and closes the log file, if any. Safe to call more than once.
func Shutdown() error {
	closeMu.Lock()
	defer closeMu.Unlock()
	if logFile == nil {
		return nil
	}
	f := logFile
	logFile = nil
	return errors.Join(f.Sync(), f.Close())
}

// parseFormat picks kv for dev/debug profiles and json otherwise, unless set explicitly.
func parseFormat(lc coreconfig.LoggingConfig) logFormat {
	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "kv", "text", "pretty":
		return formatKV
	case "json":
		return formatJSON
	}
	switch profileName(lc) {
	case "debug", "dev":
		return formatKV
	}
	return formatJSON
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func profileName(lc coreconfig.LoggingConfig) string {
	if p := strings.TrimSpace(lc.Profile); p != "" {
		return strings.ToLower(p)
	}
	return "prod"
}

func isTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// ShouldSampleDebug reports whether a high-volume debug line should be written.
// TRACE=1 or LOG_TRACE=1 disables sampling.
func ShouldSampleDebug() bool {
	return traceAll || debugSampler.allow()
}

// LogEvent writes a record whose first attribute is the event name.
// A nil logg falls back to the logger stored in ctx.
func LogEvent(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, level, "", attrs...)
}

// Component returns L scoped to name.
func Component(name string) *slog.Logger {
	name = strings.TrimSpace(name)
	if name == "" {
		return L
	}
	return L.With("component", name)
}

// Event logs event for component at level.
func Event(ctx context.Context, component string, level slog.Level, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), level, event, attrs...)
}

func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelDebug, event, attrs...)
}

func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelInfo, event, attrs...)
}

func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelWarn, event, attrs...)
}

func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelError, event, attrs...)
}
