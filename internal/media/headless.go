// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package media provides media sinks that do not render anything.
package media

import (
	"context"
	"sync"
	"time"
)

// HeadlessSink is a media sink that only tracks timeline state. Appended
// segments extend the buffered range; a running clock advances the
// playhead through it while playing.
type HeadlessSink struct {
	mu          sync.Mutex
	pos         time.Duration
	bufferedEnd time.Duration
	bytes       int64
	segments    int
	playing     bool
	seeking     bool
	seeks       []time.Duration
}

// NewHeadlessSink returns a paused sink at position zero.
func NewHeadlessSink() *HeadlessSink {
	return &HeadlessSink{}
}

func (s *HeadlessSink) CurrentTime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

func (s *HeadlessSink) Seeking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seeking
}

// Seek moves the playhead. Negative targets clamp to zero.
func (s *HeadlessSink) Seek(pos time.Duration) {
	if pos < 0 {
		pos = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos = pos
	s.seeks = append(s.seeks, pos)
}

func (s *HeadlessSink) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = true
	return nil
}

// Pause stops the clock.
func (s *HeadlessSink) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = false
}

// Playing reports whether Play was called and Pause was not.
func (s *HeadlessSink) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// SetSeeking marks an externally driven seek.
func (s *HeadlessSink) SetSeeking(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seeking = v
}

// Append adds one decoded segment of the given duration to the buffer.
func (s *HeadlessSink) Append(duration time.Duration, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bufferedEnd += duration
	s.bytes += int64(len(data))
	s.segments++
	return nil
}

// Buffered returns the end of the buffered range.
func (s *HeadlessSink) Buffered() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bufferedEnd
}

// Advance moves the playhead forward by d while playing, never past the
// buffered end. It reports whether the playhead is starved.
func (s *HeadlessSink) Advance(d time.Duration) (starved bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.playing || s.seeking {
		return false
	}
	s.pos += d
	if s.pos >= s.bufferedEnd {
		s.pos = s.bufferedEnd
		return true
	}
	return false
}

// Run advances the clock every interval until ctx is done.
func (s *HeadlessSink) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Advance(interval)
		}
	}
}

// Stats is a point-in-time snapshot.
type Stats struct {
	Position time.Duration `json:"position"`
	Buffered time.Duration `json:"buffered"`
	Bytes    int64         `json:"bytes"`
	Segments int           `json:"segments"`
	Playing  bool          `json:"playing"`
	Seeks    int           `json:"seeks"`
}

// Stats returns the current snapshot.
func (s *HeadlessSink) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Position: s.pos,
		Buffered: s.bufferedEnd,
		Bytes:    s.bytes,
		Segments: s.segments,
		Playing:  s.playing,
		Seeks:    len(s.seeks),
	}
}

// Seeks returns every seek target in order.
func (s *HeadlessSink) Seeks() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.seeks...)
}
