package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/fruitbot/core/logger"
)

var (
	// ErrIncompleteProfile is reported when the final read misses an answer.
	ErrIncompleteProfile = errors.New("intake: profile is incomplete")
	// ErrEmptySuggestion is reported when the oracle returns blank text.
	ErrEmptySuggestion = errors.New("intake: oracle returned an empty suggestion")
)

const component = "intake"

// Failure reasons passed to Recorder.Failed.
const (
	ReasonSessionRead  = "session_read"
	ReasonSessionWrite = "session_write"
	ReasonStoreWrite   = "store_write"
	ReasonProfileRead  = "profile_read"
	ReasonIncomplete   = "profile_incomplete"
	ReasonOracle       = "oracle"
)

// Options tunes a Controller. Zero values select defaults.
type Options struct {
	Messages Messages
	Recorder Recorder
}

// Controller drives the questionnaire for every user.
type Controller struct {
	gateway  Gateway
	profiles ProfileStore
	sessions SessionStore
	oracle   Oracle
	messages Messages
	recorder Recorder
	locks    *userLocks
}

// NewController wires the questionnaire to its collaborators.
func NewController(gateway Gateway, profiles ProfileStore, sessions SessionStore, oracle Oracle, opts Options) (*Controller, error) {
	switch {
	case gateway == nil:
		return nil, errors.New("intake: gateway is required")
	case profiles == nil:
		return nil, errors.New("intake: profile store is required")
	case sessions == nil:
		return nil, errors.New("intake: session store is required")
	case oracle == nil:
		return nil, errors.New("intake: oracle is required")
	}
	rec := opts.Recorder
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Controller{
		gateway:  gateway,
		profiles: profiles,
		sessions: sessions,
		oracle:   oracle,
		messages: opts.Messages.WithDefaults(),
		recorder: rec,
		locks:    newUserLocks(),
	}, nil
}

// StartSession begins or restarts the questionnaire and asks for the name.
func (c *Controller) StartSession(ctx context.Context, userID int64) error {
	unlock := c.locks.lock(userID)
	defer unlock()

	ctx = logger.WithUserID(ctx, userID)
	if err := c.sessions.SetStep(ctx, userID, StepAwaitingName); err != nil {
		c.recorder.Failed(ReasonSessionWrite)
		logger.Error(ctx, component, "intake.start.fail",
			slog.String("reason", ReasonSessionWrite),
			slog.Any("err", err),
		)
		c.send(ctx, userID, c.messages.Failure)
		return fmt.Errorf("intake: start session: %w", err)
	}
	c.recorder.SessionStarted()
	logger.Info(ctx, component, "intake.start", slog.String("next_step", StepAwaitingName.String()))
	c.send(ctx, userID, c.messages.prompt(StepAwaitingName))
	return nil
}

// HandleMessage applies one free-text answer to the user's conversation.
// Input without an active session, or after Done, is ignored.
func (c *Controller) HandleMessage(ctx context.Context, userID int64, text string) error {
	unlock := c.locks.lock(userID)
	defer unlock()

	ctx = logger.WithUserID(ctx, userID)
	step, ok, err := c.sessions.Step(ctx, userID)
	if err != nil {
		return c.fail(ctx, userID, "", ReasonSessionRead, err)
	}
	if !ok || step == StepDone || !step.Valid() {
		logger.Debug(ctx, component, "intake.ignored",
			slog.String("status", "ignored"),
			slog.String("step", step.String()),
		)
		return nil
	}

	switch step {
	case StepAwaitingName:
		err = c.profiles.SetName(ctx, userID, text)
	case StepAwaitingAge:
		age, perr := ParseAge(text)
		if perr != nil {
			c.recorder.AgeRejected()
			logger.Info(ctx, component, "intake.answer.rejected",
				slog.String("step", step.String()),
				slog.String("outcome", "retry"),
			)
			c.send(ctx, userID, c.messages.AgeInvalid)
			return nil
		}
		err = c.profiles.SetAge(ctx, userID, age)
	case StepAwaitingFavoriteColor:
		err = c.profiles.SetFavoriteColor(ctx, userID, text)
	case StepAwaitingPersonality:
		err = c.profiles.SetPersonality(ctx, userID, text)
	}
	if err != nil {
		return c.fail(ctx, userID, step, ReasonStoreWrite, err)
	}

	next := step.Next()
	if err := c.sessions.SetStep(ctx, userID, next); err != nil {
		return c.fail(ctx, userID, step, ReasonSessionWrite, err)
	}
	c.recorder.AnswerAccepted(step)
	logger.Info(ctx, component, "intake.answer",
		slog.String("step", step.String()),
		slog.String("next_step", next.String()),
	)

	if next == StepDone {
		return c.finish(ctx, userID)
	}
	c.send(ctx, userID, c.messages.prompt(next))
	return nil
}

// Help sends the help text. Conversation state is left untouched.
func (c *Controller) Help(ctx context.Context, userID int64) error {
	c.send(logger.WithUserID(ctx, userID), userID, c.messages.Help)
	return nil
}

// Throttled asks userID to resend a message that was dropped before reaching
// HandleMessage. Conversation state is left untouched.
func (c *Controller) Throttled(ctx context.Context, userID int64) error {
	c.send(logger.WithUserID(ctx, userID), userID, c.messages.TooFast)
	return nil
}

// Step reports the current step of userID; ok is false without an active session.
func (c *Controller) Step(ctx context.Context, userID int64) (Step, bool, error) {
	return c.sessions.Step(ctx, userID)
}

// InProgress reports whether userID is in the middle of the questionnaire.
func (c *Controller) InProgress(ctx context.Context, userID int64) bool {
	step, ok, err := c.sessions.Step(ctx, userID)
	if err != nil {
		logger.Warn(ctx, component, "intake.session.read_fail", slog.Any("err", err))
		return false
	}
	return ok && step != StepDone
}

func (c *Controller) finish(ctx context.Context, userID int64) error {
	profile, err := c.profiles.Get(ctx, userID)
	if err != nil {
		return c.fail(ctx, userID, StepDone, ReasonProfileRead, err)
	}
	if !profile.Complete() {
		return c.fail(ctx, userID, StepDone, ReasonIncomplete, ErrIncompleteProfile)
	}

	started := time.Now()
	answer, err := c.oracle.Suggest(ctx, profile.Suggestion())
	elapsed := time.Since(started)
	c.recorder.OracleDuration(elapsed)
	if err == nil && strings.TrimSpace(answer) == "" {
		err = ErrEmptySuggestion
	}
	if err != nil {
		return c.fail(ctx, userID, StepDone, ReasonOracle, err)
	}

	c.send(ctx, userID, c.messages.ResultPrefix+answer)
	if err := c.sessions.Clear(ctx, userID); err != nil {
		logger.Warn(ctx, component, "intake.session.clear_fail", slog.Any("err", err))
	}
	c.recorder.Completed()
	logger.Info(ctx, component, "intake.complete",
		slog.String("outcome", "completed"),
		slog.Int("reply_chars", len([]rune(answer))),
		slog.Duration("oracle_duration", elapsed),
	)
	return nil
}

// fail ends the conversation: the user gets the generic failure text and
// the session is parked in Done until the next /start.
func (c *Controller) fail(ctx context.Context, userID int64, step Step, reason string, cause error) error {
	c.recorder.Failed(reason)
	logger.Error(ctx, component, "intake.fail",
		slog.String("step", step.String()),
		slog.String("reason", reason),
		slog.Any("err", cause),
	)
	if err := c.sessions.SetStep(ctx, userID, StepDone); err != nil {
		logger.Warn(ctx, component, "intake.session.write_fail", slog.Any("err", err))
	}
	c.send(ctx, userID, c.messages.Failure)
	return fmt.Errorf("intake: %s: %w", reason, cause)
}

func (c *Controller) send(ctx context.Context, userID int64, text string) {
	if err := c.gateway.Send(ctx, userID, text); err != nil {
		logger.Warn(ctx, component, "intake.send.fail", slog.Any("err", err))
	}
}
