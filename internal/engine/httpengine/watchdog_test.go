// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package httpengine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/streamguard/internal/media"
)

type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func (m *mockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *mockClock) NewTicker(time.Duration) ticker { return &mockTicker{c: make(chan time.Time)} }

func (m *mockClock) advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

type mockTicker struct{ c chan time.Time }

func (m *mockTicker) C() <-chan time.Time { return m.c }
func (m *mockTicker) Stop()               {}

func newTestWatchdog(sink *media.HeadlessSink) (*stallWatchdog, *mockClock) {
	clk := &mockClock{now: time.Unix(0, 0)}
	w := newStallWatchdog(sink, time.Second, 500*time.Millisecond)
	w.clock = clk
	w.lastProgress = clk.Now()
	return w, clk
}

func TestStallWatchdog_ReportsOncePerEpisode(t *testing.T) {
	sink := media.NewHeadlessSink()
	require.NoError(t, sink.Append(2*time.Second, nil))
	require.NoError(t, sink.Play())
	w, clk := newTestWatchdog(sink)

	sink.Advance(3 * time.Second) // starves at 2s
	clk.advance(time.Second)
	assert.False(t, w.check(), "first sample only records movement")

	clk.advance(time.Second)
	assert.True(t, w.check())
	assert.True(t, w.Stalled())

	clk.advance(time.Second)
	assert.False(t, w.check(), "same episode must not re-report")

	require.NoError(t, sink.Append(2*time.Second, nil))
	sink.Advance(time.Second)
	assert.False(t, w.check())
	assert.False(t, w.Stalled())
}

func TestStallWatchdog_IgnoresPausedAndSeeking(t *testing.T) {
	sink := media.NewHeadlessSink()
	w, clk := newTestWatchdog(sink)

	clk.advance(5 * time.Second)
	assert.False(t, w.check(), "paused sink never stalls")

	require.NoError(t, sink.Play())
	sink.SetSeeking(true)
	clk.advance(5 * time.Second)
	assert.False(t, w.check(), "seeking sink never stalls")
}

func TestStallWatchdog_BufferedAheadIsNotAStall(t *testing.T) {
	sink := media.NewHeadlessSink()
	require.NoError(t, sink.Append(10*time.Second, nil))
	require.NoError(t, sink.Play())
	w, clk := newTestWatchdog(sink)

	clk.advance(2 * time.Second)
	assert.False(t, w.check())
}
