package intake

import (
	"context"
	"time"
)

// Gateway delivers text to a chat participant.
type Gateway interface {
	Send(ctx context.Context, userID int64, text string) error
}

// ProfileStore persists answers keyed by user. Each call is atomic for one user.
// SetName starts a fresh record and clears the later answers.
type ProfileStore interface {
	SetName(ctx context.Context, userID int64, name string) error
	SetAge(ctx context.Context, userID int64, age int) error
	SetFavoriteColor(ctx context.Context, userID int64, color string) error
	SetPersonality(ctx context.Context, userID int64, personality string) error
	Get(ctx context.Context, userID int64) (Profile, error)
}

// SessionStore keeps the current step per user. ok is false when no session exists.
type SessionStore interface {
	Step(ctx context.Context, userID int64) (step Step, ok bool, err error)
	SetStep(ctx context.Context, userID int64, step Step) error
	Clear(ctx context.Context, userID int64) error
}

// Oracle maps a complete profile to free-text advice.
type Oracle interface {
	Suggest(ctx context.Context, s Suggestion) (string, error)
}

// Recorder observes conversation outcomes, typically for metrics.
type Recorder interface {
	SessionStarted()
	AnswerAccepted(step Step)
	AgeRejected()
	Completed()
	Failed(reason string)
	OracleDuration(d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) SessionStarted()              {}
func (nopRecorder) AnswerAccepted(Step)          {}
func (nopRecorder) AgeRejected()                 {}
func (nopRecorder) Completed()                   {}
func (nopRecorder) Failed(string)                {}
func (nopRecorder) OracleDuration(time.Duration) {}
