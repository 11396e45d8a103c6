package intake

import (
	"context"
	"errors"
	"sync"
	"time"
)

var errBoom = errors.New("boom")

type sentMessage struct {
	userID int64
	text   string
}

type fakeGateway struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (g *fakeGateway) Send(_ context.Context, userID int64, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, sentMessage{userID: userID, text: text})
	return g.err
}

func (g *fakeGateway) texts(userID int64) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []string
	for _, m := range g.sent {
		if m.userID == userID {
			out = append(out, m.text)
		}
	}
	return out
}

func (g *fakeGateway) last(userID int64) string {
	texts := g.texts(userID)
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

type fakeProfiles struct {
	mu      sync.Mutex
	rows    map[int64]Profile
	failOn  string
	getErr  error
	dropAge bool
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{rows: make(map[int64]Profile)}
}

func (p *fakeProfiles) SetName(_ context.Context, userID int64, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failOn == "name" {
		return errBoom
	}
	p.rows[userID] = Profile{UserID: userID, Name: &name}
	return nil
}

func (p *fakeProfiles) SetAge(_ context.Context, userID int64, age int) error {
	return p.update(userID, "age", func(r *Profile) { r.Age = &age })
}

func (p *fakeProfiles) SetFavoriteColor(_ context.Context, userID int64, color string) error {
	return p.update(userID, "color", func(r *Profile) { r.FavoriteColor = &color })
}

func (p *fakeProfiles) SetPersonality(_ context.Context, userID int64, personality string) error {
	return p.update(userID, "personality", func(r *Profile) { r.Personality = &personality })
}

func (p *fakeProfiles) update(userID int64, field string, apply func(*Profile)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failOn == field {
		return errBoom
	}
	row, ok := p.rows[userID]
	if !ok {
		return errors.New("not found")
	}
	apply(&row)
	p.rows[userID] = row
	return nil
}

func (p *fakeProfiles) Get(_ context.Context, userID int64) (Profile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.getErr != nil {
		return Profile{}, p.getErr
	}
	row, ok := p.rows[userID]
	if !ok {
		return Profile{}, errors.New("not found")
	}
	if p.dropAge {
		row.Age = nil
	}
	return row, nil
}

func (p *fakeProfiles) row(userID int64) (Profile, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	row, ok := p.rows[userID]
	return row, ok
}

type fakeSessions struct {
	mu       sync.Mutex
	steps    map[int64]Step
	readErr  error
	writeErr error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{steps: make(map[int64]Step)}
}

func (s *fakeSessions) Step(_ context.Context, userID int64) (Step, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return "", false, s.readErr
	}
	step, ok := s.steps[userID]
	return step, ok, nil
}

func (s *fakeSessions) SetStep(_ context.Context, userID int64, step Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.steps[userID] = step
	return nil
}

func (s *fakeSessions) Clear(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.steps, userID)
	return nil
}

type fakeOracle struct {
	mu     sync.Mutex
	calls  []Suggestion
	answer string
	err    error
	delay  time.Duration
}

func (o *fakeOracle) Suggest(_ context.Context, s Suggestion) (string, error) {
	if o.delay > 0 {
		time.Sleep(o.delay)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, s)
	return o.answer, o.err
}

func (o *fakeOracle) callCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.calls)
}

type countingRecorder struct {
	mu        sync.Mutex
	started   int
	accepted  []Step
	rejected  int
	completed int
	failures  []string
	durations int
}

func (r *countingRecorder) SessionStarted() { r.mu.Lock(); r.started++; r.mu.Unlock() }
func (r *countingRecorder) AnswerAccepted(s Step) {
	r.mu.Lock()
	r.accepted = append(r.accepted, s)
	r.mu.Unlock()
}
func (r *countingRecorder) AgeRejected() { r.mu.Lock(); r.rejected++; r.mu.Unlock() }
func (r *countingRecorder) Completed()   { r.mu.Lock(); r.completed++; r.mu.Unlock() }
func (r *countingRecorder) Failed(reason string) {
	r.mu.Lock()
	r.failures = append(r.failures, reason)
	r.mu.Unlock()
}
func (r *countingRecorder) OracleDuration(time.Duration) { r.mu.Lock(); r.durations++; r.mu.Unlock() }
