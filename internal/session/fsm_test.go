// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachine_RejectsUnknownTransition(t *testing.T) {
	m := newLifecycle(nil, nil)
	_, err := m.Fire(context.Background(), TriggerParsed)
	require.Error(t, err)
	assert.Equal(t, StateIdle, m.State())
}

func TestMachine_DuplicateTransition(t *testing.T) {
	_, err := NewMachine(StateIdle, []Transition[State, Trigger]{
		{From: StateIdle, Event: TriggerBoot, To: StateBooting},
		{From: StateIdle, Event: TriggerBoot, To: StateFailed},
	})
	assert.Error(t, err)
}

func TestMachine_GuardBlocks(t *testing.T) {
	blocked := errors.New("blocked")
	m, err := NewMachine(StateIdle, []Transition[State, Trigger]{{
		From: StateIdle, Event: TriggerBoot, To: StateBooting,
		Guard: func(context.Context, State, Trigger) error { return blocked },
	}})
	require.NoError(t, err)

	_, err = m.Fire(context.Background(), TriggerBoot)
	assert.ErrorIs(t, err, blocked)
	assert.Equal(t, StateIdle, m.State())
	assert.True(t, m.Can(TriggerBoot))
	assert.False(t, m.Can(TriggerStop))
}

func TestLifecycle_RecoveryPath(t *testing.T) {
	var seen []State
	m := newLifecycle(func(_, to State, _ Trigger) { seen = append(seen, to) }, nil)
	ctx := context.Background()

	for _, on := range []Trigger{TriggerBoot, TriggerParsed, TriggerError, TriggerRebuild, TriggerBoot, TriggerParsed, TriggerError, TriggerRecovered, TriggerStop} {
		_, err := m.Fire(ctx, on)
		require.NoError(t, err, "trigger %s", on)
	}
	assert.Equal(t, []State{
		StateBooting, StatePlaying, StateRecovering, StateRebuilding,
		StateBooting, StatePlaying, StateRecovering, StatePlaying, StateStopped,
	}, seen)
}

func TestLifecycle_StoppedIsTerminal(t *testing.T) {
	m := newLifecycle(nil, nil)
	ctx := context.Background()
	_, err := m.Fire(ctx, TriggerStop)
	require.NoError(t, err)
	for _, on := range []Trigger{TriggerBoot, TriggerParsed, TriggerError, TriggerRecovered, TriggerRebuild, TriggerFail, TriggerStop} {
		_, err := m.Fire(ctx, on)
		assert.Error(t, err, "trigger %s", on)
	}
}

func TestLifecycle_RebuildGuard(t *testing.T) {
	allowed := true
	m := newLifecycle(nil, map[Trigger]func() error{
		TriggerRebuild: func() error {
			if !allowed {
				return ErrRebuildExhausted
			}
			return nil
		},
	})
	ctx := context.Background()
	for _, on := range []Trigger{TriggerBoot, TriggerParsed, TriggerError, TriggerRebuild, TriggerBoot, TriggerParsed, TriggerError} {
		_, err := m.Fire(ctx, on)
		require.NoError(t, err, "trigger %s", on)
	}

	allowed = false
	_, err := m.Fire(ctx, TriggerRebuild)
	assert.ErrorIs(t, err, ErrRebuildExhausted)
	assert.Equal(t, StateRecovering, m.State())
	assert.True(t, m.Can(TriggerFail))
	assert.False(t, m.Can(TriggerBoot))
}
