package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type transition struct{ from, to string }

func TestMachineHappyPath(t *testing.T) {
	var seen []transition
	m := NewMachine("u1", func(userID, from, to string) {
		assert.Equal(t, "u1", userID)
		seen = append(seen, transition{from, to})
	})
	assert.Equal(t, StateIdle, m.CurrentState())

	for _, ev := range []string{EventPrepare, EventTrack, EventStop, EventFinish} {
		require.NoError(t, m.Trigger(ev))
	}

	assert.True(t, m.Is(StateIdle))
	assert.Equal(t, []transition{
		{StateIdle, StatePreparing},
		{StatePreparing, StateTracking},
		{StateTracking, StateStopping},
		{StateStopping, StateIdle},
	}, seen)
}

func TestMachineRejectsInvalidEvents(t *testing.T) {
	m := NewMachine("u1", nil)

	assert.False(t, m.CanTransition(EventStop))
	assert.Error(t, m.Trigger(EventStop))
	assert.Error(t, m.Trigger(EventAbandon))

	require.NoError(t, m.Trigger(EventPrepare))
	assert.Error(t, m.Trigger(EventPrepare))
	require.NoError(t, m.Trigger(EventAbort))
	assert.Equal(t, StateIdle, m.CurrentState())
}

func TestMachineAbandonFromAnyActiveState(t *testing.T) {
	paths := [][]string{
		{EventPrepare},
		{EventPrepare, EventTrack},
		{EventPrepare, EventTrack, EventStop},
	}
	for _, path := range paths {
		m := NewMachine("u1", nil)
		for _, ev := range path {
			require.NoError(t, m.Trigger(ev))
		}
		require.True(t, m.CanTransition(EventAbandon))
		require.NoError(t, m.Trigger(EventAbandon))
		assert.Equal(t, StateIdle, m.CurrentState())
	}
}

func TestMachineSinceAdvances(t *testing.T) {
	m := NewMachine("u1", nil)
	before := m.Since()
	require.NoError(t, m.Trigger(EventPrepare))
	assert.False(t, m.Since().Before(before))
	assert.Equal(t, StatePreparing, m.Status().CurrentState)
}

func TestManager(t *testing.T) {
	mgr := NewManager(nil)

	a := mgr.GetOrCreate("a")
	assert.Same(t, a, mgr.GetOrCreate("a"))

	_, ok := mgr.Get("b")
	assert.False(t, ok)

	mgr.GetOrCreate("b")
	require.NoError(t, a.Trigger(EventPrepare))

	all := mgr.All()
	require.Len(t, all, 2)
	assert.Equal(t, StatePreparing, all["a"].CurrentState)
	assert.Equal(t, StateIdle, all["b"].CurrentState)

	mgr.Remove("b")
	_, ok = mgr.Get("b")
	assert.False(t, ok)
	assert.Len(t, mgr.All(), 1)
}
