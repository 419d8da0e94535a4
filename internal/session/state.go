// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import "context"

// State is the session lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StateBooting    State = "booting"
	StatePlaying    State = "playing"
	StateRecovering State = "recovering"
	StateRebuilding State = "rebuilding"
	StateFailed     State = "failed"
	StateStopped    State = "stopped"
)

// Trigger drives state transitions.
type Trigger string

const (
	TriggerBoot      Trigger = "boot"
	TriggerParsed    Trigger = "parsed"
	TriggerError     Trigger = "error"
	TriggerRecovered Trigger = "recovered"
	TriggerRebuild   Trigger = "rebuild"
	TriggerFail      Trigger = "fail"
	TriggerStop      Trigger = "stop"
)

type edge struct {
	from State
	on   Trigger
	to   State
}

// lifecycle is the full transition table. Errors raised while booting do not
// leave Booting unless they force a rebuild or a failure.
var lifecycle = []edge{
	{StateIdle, TriggerBoot, StateBooting},
	{StateIdle, TriggerFail, StateFailed},
	{StateIdle, TriggerStop, StateStopped},

	{StateBooting, TriggerParsed, StatePlaying},
	{StateBooting, TriggerRebuild, StateRebuilding},
	{StateBooting, TriggerFail, StateFailed},
	{StateBooting, TriggerStop, StateStopped},

	{StatePlaying, TriggerParsed, StatePlaying},
	{StatePlaying, TriggerError, StateRecovering},
	{StatePlaying, TriggerFail, StateFailed},
	{StatePlaying, TriggerStop, StateStopped},

	{StateRecovering, TriggerParsed, StatePlaying},
	{StateRecovering, TriggerRecovered, StatePlaying},
	{StateRecovering, TriggerError, StateRecovering},
	{StateRecovering, TriggerRebuild, StateRebuilding},
	{StateRecovering, TriggerFail, StateFailed},
	{StateRecovering, TriggerStop, StateStopped},

	{StateRebuilding, TriggerBoot, StateBooting},
	{StateRebuilding, TriggerFail, StateFailed},
	{StateRebuilding, TriggerStop, StateStopped},

	{StateFailed, TriggerStop, StateStopped},
}

// newLifecycle builds the session FSM. guards, keyed by trigger, may veto a
// transition before it is applied.
func newLifecycle(onChange func(from, to State, on Trigger), guards map[Trigger]func() error) *Machine[State, Trigger] {
	action := func(_ context.Context, from, to State, on Trigger) error {
		if onChange != nil {
			onChange(from, to, on)
		}
		return nil
	}
	ts := make([]Transition[State, Trigger], 0, len(lifecycle))
	for _, e := range lifecycle {
		t := Transition[State, Trigger]{From: e.from, Event: e.on, To: e.to, Action: action}
		if g, ok := guards[e.on]; ok && g != nil {
			t.Guard = func(context.Context, State, Trigger) error { return g() }
		}
		ts = append(ts, t)
	}
	m, err := NewMachine(StateIdle, ts)
	if err != nil {
		panic(err)
	}
	return m
}
