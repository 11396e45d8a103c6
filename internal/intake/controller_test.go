package intake

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	ctrl     *Controller
	gateway  *fakeGateway
	profiles *fakeProfiles
	sessions *fakeSessions
	oracle   *fakeOracle
	recorder *countingRecorder
	msgs     Messages
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		gateway:  &fakeGateway{},
		profiles: newFakeProfiles(),
		sessions: newFakeSessions(),
		oracle:   &fakeOracle{answer: "Mango – sweet and adventurous"},
		recorder: &countingRecorder{},
		msgs:     DefaultMessages(),
	}
	ctrl, err := NewController(h.gateway, h.profiles, h.sessions, h.oracle, Options{Recorder: h.recorder})
	require.NoError(t, err)
	h.ctrl = ctrl
	return h
}

func (h *harness) step(t *testing.T, userID int64) (Step, bool) {
	t.Helper()
	step, ok, err := h.ctrl.Step(context.Background(), userID)
	require.NoError(t, err)
	return step, ok
}

func TestNewControllerRequiresCollaborators(t *testing.T) {
	_, err := NewController(nil, newFakeProfiles(), newFakeSessions(), &fakeOracle{}, Options{})
	assert.Error(t, err)
	_, err = NewController(&fakeGateway{}, nil, newFakeSessions(), &fakeOracle{}, Options{})
	assert.Error(t, err)
	_, err = NewController(&fakeGateway{}, newFakeProfiles(), nil, &fakeOracle{}, Options{})
	assert.Error(t, err)
	_, err = NewController(&fakeGateway{}, newFakeProfiles(), newFakeSessions(), nil, Options{})
	assert.Error(t, err)
}

func TestHappyPath(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	const user = int64(42)

	require.NoError(t, h.ctrl.StartSession(ctx, user))
	step, ok := h.step(t, user)
	require.True(t, ok)
	assert.Equal(t, StepAwaitingName, step)
	assert.Equal(t, h.msgs.Greeting, h.gateway.last(user))

	require.NoError(t, h.ctrl.HandleMessage(ctx, user, "Ana"))
	assert.Equal(t, h.msgs.AskAge, h.gateway.last(user))

	require.NoError(t, h.ctrl.HandleMessage(ctx, user, "30"))
	assert.Equal(t, h.msgs.AskFavoriteColor, h.gateway.last(user))

	require.NoError(t, h.ctrl.HandleMessage(ctx, user, "blue"))
	assert.Equal(t, h.msgs.AskPersonality, h.gateway.last(user))

	require.NoError(t, h.ctrl.HandleMessage(ctx, user, "calm"))
	assert.Equal(t, "🌟 Mango – sweet and adventurous", h.gateway.last(user))

	require.Equal(t, 1, h.oracle.callCount())
	assert.Equal(t, Suggestion{Name: "Ana", Age: 30, FavoriteColor: "blue", Personality: "calm"}, h.oracle.calls[0])

	_, ok = h.step(t, user)
	assert.False(t, ok, "session is removed after the result")

	row, ok := h.profiles.row(user)
	require.True(t, ok)
	assert.True(t, row.Complete())

	assert.Equal(t, 1, h.recorder.started)
	assert.Equal(t, 1, h.recorder.completed)
	assert.Equal(t, []Step{StepAwaitingName, StepAwaitingAge, StepAwaitingFavoriteColor, StepAwaitingPersonality}, h.recorder.accepted)
	assert.Len(t, h.gateway.texts(user), 5)
}

func TestInvalidAgeIsRecoverable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	const user = int64(7)

	require.NoError(t, h.ctrl.StartSession(ctx, user))
	require.NoError(t, h.ctrl.HandleMessage(ctx, user, "Bo"))
	for _, bad := range []string{"twenty", "-5", " 5", ""} {
		require.NoError(t, h.ctrl.HandleMessage(ctx, user, bad))
		assert.Equal(t, h.msgs.AgeInvalid, h.gateway.last(user))
		step, _ := h.step(t, user)
		assert.Equal(t, StepAwaitingAge, step)
	}
	row, _ := h.profiles.row(user)
	assert.Nil(t, row.Age)
	assert.Equal(t, 4, h.recorder.rejected)

	require.NoError(t, h.ctrl.HandleMessage(ctx, user, "20"))
	step, _ := h.step(t, user)
	assert.Equal(t, StepAwaitingFavoriteColor, step)
	row, _ = h.profiles.row(user)
	require.NotNil(t, row.Age)
	assert.Equal(t, 20, *row.Age)
}

func TestRestartMidConversationResetsProfile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	const user = int64(9)

	require.NoError(t, h.ctrl.StartSession(ctx, user))
	require.NoError(t, h.ctrl.HandleMessage(ctx, user, "Ana"))
	require.NoError(t, h.ctrl.HandleMessage(ctx, user, "30"))

	require.NoError(t, h.ctrl.StartSession(ctx, user))
	step, _ := h.step(t, user)
	assert.Equal(t, StepAwaitingName, step)
	assert.Equal(t, h.msgs.Greeting, h.gateway.last(user))

	require.NoError(t, h.ctrl.HandleMessage(ctx, user, "Bea"))
	row, ok := h.profiles.row(user)
	require.True(t, ok)
	require.NotNil(t, row.Name)
	assert.Equal(t, "Bea", *row.Name)
	assert.Nil(t, row.Age)
}

func TestStartSessionIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.ctrl.StartSession(ctx, 1))
	require.NoError(t, h.ctrl.StartSession(ctx, 1))
	step, ok := h.step(t, 1)
	require.True(t, ok)
	assert.Equal(t, StepAwaitingName, step)
	assert.Equal(t, []string{h.msgs.Greeting, h.msgs.Greeting}, h.gateway.texts(1))
}

func TestMessagesWithoutSessionAreIgnored(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.ctrl.HandleMessage(context.Background(), 5, "hello"))
	assert.Empty(t, h.gateway.texts(5))
	_, ok := h.step(t, 5)
	assert.False(t, ok)
	_, stored := h.profiles.row(5)
	assert.False(t, stored)
}

func TestDoneIgnoresInput(t *testing.T) {
	h := newHarness(t)
	h.sessions.steps[3] = StepDone
	require.NoError(t, h.ctrl.HandleMessage(context.Background(), 3, "anything"))
	assert.Empty(t, h.gateway.texts(3))
	step, _ := h.step(t, 3)
	assert.Equal(t, StepDone, step)
}

func TestHelpLeavesStateAlone(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.ctrl.StartSession(ctx, 2))
	require.NoError(t, h.ctrl.HandleMessage(ctx, 2, "Ana"))
	require.NoError(t, h.ctrl.Help(ctx, 2))
	assert.Equal(t, h.msgs.Help, h.gateway.last(2))
	step, _ := h.step(t, 2)
	assert.Equal(t, StepAwaitingAge, step)

	require.NoError(t, h.ctrl.Help(ctx, 99))
	_, ok := h.step(t, 99)
	assert.False(t, ok)
}

func TestThrottledAsksToResendWithoutMovingOn(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.ctrl.StartSession(ctx, 4))
	require.NoError(t, h.ctrl.HandleMessage(ctx, 4, "Alex"))
	require.NoError(t, h.ctrl.Throttled(ctx, 4))
	assert.Equal(t, h.msgs.TooFast, h.gateway.last(4))

	step, _ := h.step(t, 4)
	assert.Equal(t, StepAwaitingAge, step)
	require.NoError(t, h.ctrl.HandleMessage(ctx, 4, "29"))
	assert.Equal(t, h.msgs.AskFavoriteColor, h.gateway.last(4))
}

func TestOracleFailureEndsConversation(t *testing.T) {
	for name, oracle := range map[string]*fakeOracle{
		"error": {err: errBoom},
		"empty": {answer: "   "},
	} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			h.oracle = oracle
			ctrl, err := NewController(h.gateway, h.profiles, h.sessions, oracle, Options{Recorder: h.recorder})
			require.NoError(t, err)
			h.ctrl = ctrl
			ctx := context.Background()

			require.NoError(t, ctrl.StartSession(ctx, 1))
			for _, answer := range []string{"Ana", "30", "blue"} {
				require.NoError(t, ctrl.HandleMessage(ctx, 1, answer))
			}
			err = ctrl.HandleMessage(ctx, 1, "calm")
			require.Error(t, err)
			assert.Equal(t, h.msgs.Failure, h.gateway.last(1))
			step, ok := h.step(t, 1)
			require.True(t, ok)
			assert.Equal(t, StepDone, step)
			assert.Equal(t, []string{ReasonOracle}, h.recorder.failures)

			sent := len(h.gateway.texts(1))
			require.NoError(t, ctrl.HandleMessage(ctx, 1, "again"))
			assert.Len(t, h.gateway.texts(1), sent)
		})
	}
}

func TestFinalReadFailureSkipsOracle(t *testing.T) {
	cases := map[string]func(h *harness){
		"read error": func(h *harness) { h.profiles.getErr = errBoom },
		"incomplete": func(h *harness) { h.profiles.dropAge = true },
	}
	for name, breakIt := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			require.NoError(t, h.ctrl.StartSession(ctx, 1))
			for _, answer := range []string{"Ana", "30", "blue"} {
				require.NoError(t, h.ctrl.HandleMessage(ctx, 1, answer))
			}
			breakIt(h)
			require.Error(t, h.ctrl.HandleMessage(ctx, 1, "calm"))
			assert.Equal(t, 0, h.oracle.callCount())
			assert.Equal(t, h.msgs.Failure, h.gateway.last(1))
			step, _ := h.step(t, 1)
			assert.Equal(t, StepDone, step)
		})
	}
}

func TestIncompleteProfileError(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.ctrl.StartSession(ctx, 1))
	for _, answer := range []string{"Ana", "30", "blue"} {
		require.NoError(t, h.ctrl.HandleMessage(ctx, 1, answer))
	}
	h.profiles.dropAge = true
	err := h.ctrl.HandleMessage(ctx, 1, "calm")
	assert.True(t, errors.Is(err, ErrIncompleteProfile))
}

func TestStoreWriteFailureEndsConversation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.ctrl.StartSession(ctx, 1))
	require.NoError(t, h.ctrl.HandleMessage(ctx, 1, "Ana"))
	h.profiles.failOn = "age"

	err := h.ctrl.HandleMessage(ctx, 1, "30")
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, h.msgs.Failure, h.gateway.last(1))
	step, _ := h.step(t, 1)
	assert.Equal(t, StepDone, step)
	assert.Equal(t, []string{ReasonStoreWrite}, h.recorder.failures)
}

func TestSessionWriteFailureOnStart(t *testing.T) {
	h := newHarness(t)
	h.sessions.writeErr = errBoom
	err := h.ctrl.StartSession(context.Background(), 1)
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, h.msgs.Failure, h.gateway.last(1))
	assert.Equal(t, 0, h.recorder.started)
}

func TestSendFailureDoesNotChangeState(t *testing.T) {
	h := newHarness(t)
	h.gateway.err = errBoom
	ctx := context.Background()
	require.NoError(t, h.ctrl.StartSession(ctx, 1))
	require.NoError(t, h.ctrl.HandleMessage(ctx, 1, "Ana"))
	step, _ := h.step(t, 1)
	assert.Equal(t, StepAwaitingAge, step)
}

func TestInProgress(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	assert.False(t, h.ctrl.InProgress(ctx, 1))
	require.NoError(t, h.ctrl.StartSession(ctx, 1))
	assert.True(t, h.ctrl.InProgress(ctx, 1))
	h.sessions.steps[1] = StepDone
	assert.False(t, h.ctrl.InProgress(ctx, 1))
	h.sessions.readErr = errBoom
	assert.False(t, h.ctrl.InProgress(ctx, 1))
}

func TestUsersAreIndependent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.ctrl.StartSession(ctx, 1))
	require.NoError(t, h.ctrl.StartSession(ctx, 2))
	require.NoError(t, h.ctrl.HandleMessage(ctx, 1, "Ana"))

	s1, _ := h.step(t, 1)
	s2, _ := h.step(t, 2)
	assert.Equal(t, StepAwaitingAge, s1)
	assert.Equal(t, StepAwaitingName, s2)
}

func TestConcurrentMessagesForOneUserAreSerialized(t *testing.T) {
	h := newHarness(t)
	h.oracle.delay = 5 * time.Millisecond
	ctx := context.Background()
	require.NoError(t, h.ctrl.StartSession(ctx, 1))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.ctrl.HandleMessage(ctx, 1, "7")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, h.oracle.callCount(), "exactly one message completes the questionnaire")
	_, ok := h.step(t, 1)
	assert.False(t, ok)
	assert.Len(t, h.recorder.accepted, 4)
	assert.Zero(t, h.ctrl.locks.size())
}

func TestCustomMessages(t *testing.T) {
	gw := &fakeGateway{}
	ctrl, err := NewController(gw, newFakeProfiles(), newFakeSessions(), &fakeOracle{answer: "Kiwi"}, Options{
		Messages: Messages{Greeting: "hola", ResultPrefix: "> "},
	})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, ctrl.StartSession(ctx, 1))
	assert.Equal(t, "hola", gw.last(1))
	for _, answer := range []string{"Ana", "30", "blue", "calm"} {
		require.NoError(t, ctrl.HandleMessage(ctx, 1, answer))
	}
	assert.Equal(t, "> Kiwi", gw.last(1))
	assert.Contains(t, gw.texts(1), DefaultMessages().AskAge)
}
