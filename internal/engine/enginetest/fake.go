// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package enginetest provides a scriptable in-memory engine for controller tests.
package enginetest

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ManuGH/streamguard/internal/engine"
	"github.com/ManuGH/streamguard/internal/hls"
)

// Factory builds fake engines sharing one rendition/audio layout.
type Factory struct {
	mu        sync.Mutex
	supported bool
	levels    []hls.Rendition
	audio     []hls.AudioTrack
	engines   []*Engine
	newErr    error

	// AutoParse makes LoadSource emit EventManifestParsed.
	AutoParse bool
	// EchoSwitches makes SetLevel/SetAudioTrack emit the matching switch event.
	EchoSwitches bool
}

// NewFactory returns a supported factory with AutoParse and EchoSwitches on.
func NewFactory(levels []hls.Rendition, audio []hls.AudioTrack) *Factory {
	return &Factory{
		supported:    true,
		levels:       levels,
		audio:        audio,
		AutoParse:    true,
		EchoSwitches: true,
	}
}

// Renditions builds n renditions without audio codec information.
func Renditions(n int) []hls.Rendition {
	out := make([]hls.Rendition, n)
	for i := range out {
		out[i] = hls.Rendition{Index: i, Bandwidth: (i + 1) * 500_000, URI: fmt.Sprintf("http://origin/v%d.m3u8", i)}
	}
	return out
}

// AudioTracks builds tracks for the given languages, none flagged default.
func AudioTracks(langs ...string) []hls.AudioTrack {
	out := make([]hls.AudioTrack, len(langs))
	for i, l := range langs {
		out[i] = hls.AudioTrack{Index: i, Language: l, Name: l}
	}
	return out
}

// SetSupported toggles Supported.
func (f *Factory) SetSupported(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.supported = v
}

// FailNew makes New return err.
func (f *Factory) FailNew(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.newErr = err
}

func (f *Factory) Supported() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.supported
}

func (f *Factory) New(opts engine.Options) (engine.Engine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.newErr != nil {
		return nil, f.newErr
	}
	e := &Engine{
		ID:           len(f.engines) + 1,
		Opts:         opts,
		levels:       append([]hls.Rendition(nil), f.levels...),
		audio:        append([]hls.AudioTrack(nil), f.audio...),
		autoLevel:    true,
		level:        -1,
		audioTrack:   -1,
		events:       make(chan engine.Event, 64),
		autoParse:    f.AutoParse,
		echoSwitches: f.EchoSwitches,
	}
	f.engines = append(f.engines, e)
	return e, nil
}

// Engines returns every engine built so far.
func (f *Factory) Engines() []*Engine {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Engine(nil), f.engines...)
}

// Last returns the most recently built engine, or nil.
func (f *Factory) Last() *Engine {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.engines) == 0 {
		return nil
	}
	return f.engines[len(f.engines)-1]
}

// Live counts engines that have not been destroyed.
func (f *Factory) Live() int {
	n := 0
	for _, e := range f.Engines() {
		if !e.Destroyed() {
			n++
		}
	}
	return n
}

// Engine records every command it receives.
type Engine struct {
	ID   int
	Opts engine.Options

	mu           sync.Mutex
	levels       []hls.Rendition
	audio        []hls.AudioTrack
	level        int
	audioTrack   int
	autoLevel    bool
	calls        []string
	destroyed    bool
	parsed       bool
	events       chan engine.Event
	autoParse    bool
	echoSwitches bool
}

func (e *Engine) record(format string, args ...any) {
	e.calls = append(e.calls, fmt.Sprintf(format, args...))
}

func (e *Engine) AttachMedia(_ engine.MediaSink) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("attachMedia")
	return nil
}

func (e *Engine) LoadSource(url string) error {
	e.mu.Lock()
	e.record("loadSource:%s", url)
	auto := e.autoParse
	e.mu.Unlock()
	if auto {
		e.ParseManifest()
	}
	return nil
}

// ParseManifest marks levels as available and emits EventManifestParsed.
func (e *Engine) ParseManifest() {
	e.mu.Lock()
	e.parsed = true
	e.mu.Unlock()
	e.Emit(engine.Event{Kind: engine.EventManifestParsed})
}

func (e *Engine) StartLoad() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("startLoad")
}

func (e *Engine) StopLoad() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("stopLoad")
}

func (e *Engine) Levels() []hls.Rendition {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.parsed {
		return nil
	}
	return append([]hls.Rendition(nil), e.levels...)
}

func (e *Engine) AudioTracks() []hls.AudioTrack {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.parsed {
		return nil
	}
	return append([]hls.AudioTrack(nil), e.audio...)
}

func (e *Engine) SetLevel(index int) {
	e.mu.Lock()
	e.record("setLevel:%d", index)
	e.level = index
	echo := e.echoSwitches
	e.mu.Unlock()
	if echo {
		e.Emit(engine.Event{Kind: engine.EventLevelSwitched, Level: index})
	}
}

func (e *Engine) SetAudioTrack(index int) {
	e.mu.Lock()
	e.record("setAudioTrack:%d", index)
	e.audioTrack = index
	echo := e.echoSwitches
	e.mu.Unlock()
	if echo {
		e.Emit(engine.Event{Kind: engine.EventAudioTrackSwitched, AudioTrack: index})
	}
}

func (e *Engine) DisableAutoLevel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("disableAutoLevel")
	e.autoLevel = false
}

func (e *Engine) RecoverMediaError() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("recoverMediaError")
}

func (e *Engine) Destroy() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record("destroy")
	e.destroyed = true
}

func (e *Engine) Events() <-chan engine.Event { return e.events }

// Emit delivers ev unless the engine was destroyed.
func (e *Engine) Emit(ev engine.Event) {
	e.mu.Lock()
	dead := e.destroyed
	e.mu.Unlock()
	if dead {
		return
	}
	select {
	case e.events <- ev:
	case <-time.After(time.Second):
		panic("enginetest: event buffer full")
	}
}

// Drift simulates the engine switching rendition on its own.
func (e *Engine) Drift(level int) {
	e.mu.Lock()
	e.level = level
	e.mu.Unlock()
	e.Emit(engine.Event{Kind: engine.EventLevelSwitched, Level: level})
}

// DriftAudio simulates the engine switching audio track on its own.
func (e *Engine) DriftAudio(track int) {
	e.mu.Lock()
	e.audioTrack = track
	e.mu.Unlock()
	e.Emit(engine.Event{Kind: engine.EventAudioTrackSwitched, AudioTrack: track})
}

// Fail emits an error event.
func (e *Engine) Fail(t engine.ErrorType, d engine.Detail, fatal bool) {
	e.Emit(engine.ErrorEvent(t, d, fatal, nil))
}

// Calls returns the command log.
func (e *Engine) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

// Count returns how many logged calls equal call.
func (e *Engine) Count(call string) int {
	n := 0
	for _, c := range e.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

// Has reports whether call was logged.
func (e *Engine) Has(call string) bool { return e.Count(call) > 0 }

// CallsSince returns calls logged after the first occurrence of marker.
func (e *Engine) CallsSince(marker string) []string {
	calls := e.Calls()
	for i, c := range calls {
		if c == marker {
			return calls[i+1:]
		}
	}
	return nil
}

// Level returns the current level index (-1 when unset).
func (e *Engine) Level() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.level
}

// AudioTrack returns the current audio track index (-1 when unset).
func (e *Engine) AudioTrack() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.audioTrack
}

// AutoLevel reports whether ABR is still enabled.
func (e *Engine) AutoLevel() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.autoLevel
}

// Destroyed reports whether Destroy was called.
func (e *Engine) Destroyed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.destroyed
}

func (e *Engine) String() string {
	return fmt.Sprintf("engine#%d[%s]", e.ID, strings.Join(e.Calls(), ","))
}

// Sink is a recording media sink.
type Sink struct {
	mu      sync.Mutex
	pos     time.Duration
	seeking bool
	seeks   []time.Duration
	plays   int
}

func (s *Sink) CurrentTime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

func (s *Sink) Seeking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seeking
}

func (s *Sink) Seek(pos time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seeks = append(s.seeks, pos)
	s.pos = pos
}

func (s *Sink) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plays++
	return nil
}

// SetPosition moves the playhead without recording a seek.
func (s *Sink) SetPosition(pos time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos = pos
}

// SetSeeking marks a user seek in progress.
func (s *Sink) SetSeeking(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seeking = v
}

// Seeks returns every commanded seek target.
func (s *Sink) Seeks() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.seeks...)
}

// Plays counts Play calls.
func (s *Sink) Plays() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plays
}
