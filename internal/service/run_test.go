package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/langchou/runtrack/internal/models"
	"github.com/langchou/runtrack/internal/snapshot"
	"github.com/langchou/runtrack/internal/state"
	"github.com/langchou/runtrack/pkg/ws"
)

func newTestRunService(t *testing.T) (*RunService, *fakeLocation, *fakeStore, *fakeHub, *fakeClock) {
	t.Helper()

	clock := newFakeClock()
	location := newFakeLocation()
	store := &fakeStore{}
	hub := &fakeHub{}

	opts := DefaultOptions()
	opts.Now = clock.Now
	opts.TimerInterval = 0
	svc := NewRunService(opts, zap.NewNop(), fakeSource{location: location, steps: &fakeSteps{}}, store, snapshot.Nop{}, hub)
	t.Cleanup(svc.Shutdown)
	return svc, location, store, hub, clock
}

func TestRunServiceRequiresUser(t *testing.T) {
	svc, _, _, _, _ := newTestRunService(t)

	_, err := svc.Session("")
	assert.ErrorIs(t, err, ErrNoUser)

	start := svc.Start(context.Background(), "")
	assert.Equal(t, OutcomeFailed, start.Outcome)
	assert.Equal(t, MsgNoUserSession, start.Message)

	stop := svc.Stop(context.Background(), "")
	assert.Equal(t, OutcomeFailed, stop.Outcome)
	assert.Equal(t, MsgNotLoggedIn, stop.Message)

	_, err = svc.State("")
	assert.ErrorIs(t, err, ErrNoUser)
	assert.ErrorIs(t, svc.Close(""), ErrNoUser)
}

func TestRunServiceSessionPerUser(t *testing.T) {
	svc, _, _, _, _ := newTestRunService(t)

	a, err := svc.Session("a")
	require.NoError(t, err)
	again, err := svc.Session("a")
	require.NoError(t, err)
	b, err := svc.Session("b")
	require.NoError(t, err)

	assert.Same(t, a, again)
	assert.NotSame(t, a, b)
	assert.Equal(t, "b", b.UserID())
	assert.Len(t, svc.GetAllStates(), 2)
}

func TestRunServiceLifecycleAndBroadcast(t *testing.T) {
	svc, location, store, hub, clock := newTestRunService(t)
	updates := svc.Subscribe()

	location.fixes = []models.LocationFix{northFix(0, clock.Now().UnixMilli(), 5)}
	require.Equal(t, OutcomeStarted, svc.Start(context.Background(), "u1").Outcome)

	for i := 1; i <= 10; i++ {
		clock.Advance(3 * time.Second)
		location.Push(northFix(0.01*float64(i), clock.Now().UnixMilli(), 5))
	}

	live, err := svc.State("u1")
	require.NoError(t, err)
	assert.Equal(t, state.StateTracking, live.Status)
	assert.Equal(t, state.StateTracking, svc.GetAllStates()["u1"].CurrentState)

	stop := svc.Stop(context.Background(), "u1")
	require.Equal(t, OutcomeSaved, stop.Outcome)
	assert.Len(t, store.Runs(), 1)

	select {
	case ls := <-updates:
		assert.Equal(t, "u1", ls.UserID)
	default:
		t.Fatal("expected live state update")
	}

	assert.Greater(t, hub.Count(), 0)
	hub.mu.Lock()
	assert.Equal(t, ws.MsgTypeLiveState, hub.msgs[0].msgType)
	assert.Equal(t, "u1", hub.msgs[0].userID)
	hub.mu.Unlock()
}

func TestRunServiceCloseUnknownUser(t *testing.T) {
	svc, _, _, _, _ := newTestRunService(t)
	assert.NoError(t, svc.Close("nobody"))
	assert.Empty(t, svc.GetAllStates())
}

func TestRunServiceReadsDoNotCreateSessions(t *testing.T) {
	svc, _, _, _, _ := newTestRunService(t)

	live, err := svc.State("viewer")
	require.NoError(t, err)
	assert.Equal(t, "viewer", live.UserID)
	assert.Equal(t, state.StateIdle, live.Status)
	assert.Equal(t, "0:00", live.Clock)
	assert.Equal(t, "--", live.Pace)
	assert.Equal(t, models.StepSourceEstimated, live.StepSource)
	assert.NotNil(t, live.Route)

	assert.Equal(t, OutcomeIgnored, svc.Stop(context.Background(), "viewer").Outcome)
	assert.Empty(t, svc.GetAllStates())
}

func TestRunServiceCloseEvictsIdleSession(t *testing.T) {
	svc, location, _, _, _ := newTestRunService(t)

	require.Equal(t, OutcomeStarted, svc.Start(context.Background(), "u1").Outcome)
	require.Len(t, svc.GetAllStates(), 1)
	first, err := svc.Session("u1")
	require.NoError(t, err)

	require.NoError(t, svc.Close("u1"))
	assert.False(t, location.Watching())
	assert.Empty(t, svc.GetAllStates())
	assert.Equal(t, OutcomeIgnored, first.Start(context.Background()).Outcome)

	// 再次开始时创建新会话
	require.Equal(t, OutcomeStarted, svc.Start(context.Background(), "u1").Outcome)
	second, err := svc.Session("u1")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, state.StateTracking, svc.GetAllStates()["u1"].CurrentState)
}

func TestRunServiceShutdown(t *testing.T) {
	svc, location, _, _, _ := newTestRunService(t)
	updates := svc.Subscribe()

	require.Equal(t, OutcomeStarted, svc.Start(context.Background(), "u1").Outcome)
	require.True(t, location.Watching())

	svc.Shutdown()
	svc.Shutdown()
	assert.False(t, location.Watching())

	// 关闭后通道被关闭
	for range updates {
	}
	_, ok := <-svc.Subscribe()
	assert.False(t, ok)
}
