// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package httpengine

import (
	"context"
	"sync"
	"time"

	"github.com/ManuGH/streamguard/internal/engine"
)

type clock interface {
	Now() time.Time
	NewTicker(d time.Duration) ticker
}

type ticker interface {
	C() <-chan time.Time
	Stop()
}

type realClock struct{}

func (realClock) Now() time.Time                   { return time.Now() }
func (realClock) NewTicker(d time.Duration) ticker { return &realTicker{time.NewTicker(d)} }

type realTicker struct {
	*time.Ticker
}

func (rt *realTicker) C() <-chan time.Time { return rt.Ticker.C }

// timeline is the part of a sink the watchdog samples.
type timeline interface {
	engine.MediaSink
	Buffered() time.Duration
	Playing() bool
}

// stallWatchdog reports a buffer stall when a playing sink's playhead sits
// at the end of its buffer without moving for one full period.
type stallWatchdog struct {
	mu sync.Mutex

	sink   timeline
	period time.Duration
	hole   time.Duration
	clock  clock

	lastPos      time.Duration
	lastProgress time.Time
	stalled      bool
}

func newStallWatchdog(sink timeline, period, hole time.Duration) *stallWatchdog {
	if period <= 0 {
		period = 500 * time.Millisecond
	}
	return &stallWatchdog{sink: sink, period: period, hole: hole, clock: realClock{}}
}

// Run samples the sink every period and calls onStall once per stall episode.
func (w *stallWatchdog) Run(ctx context.Context, onStall func()) {
	w.mu.Lock()
	w.lastPos = w.sink.CurrentTime()
	w.lastProgress = w.clock.Now()
	w.mu.Unlock()

	t := w.clock.NewTicker(w.period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C():
			if w.check() {
				onStall()
			}
		}
	}
}

func (w *stallWatchdog) check() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.clock.Now()
	pos := w.sink.CurrentTime()
	if pos != w.lastPos || !w.sink.Playing() || w.sink.Seeking() {
		w.lastPos = pos
		w.lastProgress = now
		w.stalled = false
		return false
	}
	if w.stalled {
		return false
	}
	starved := w.sink.Buffered()-pos <= w.hole
	if starved && now.Sub(w.lastProgress) >= w.period {
		w.stalled = true
		return true
	}
	return false
}

// Stalled reports whether a stall episode is in progress.
func (w *stallWatchdog) Stalled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stalled
}
