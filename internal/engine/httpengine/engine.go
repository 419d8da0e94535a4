// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package httpengine is a headless HLS engine that fetches playlists and
// segments over HTTP and appends them to a media sink.
package httpengine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/streamguard/internal/engine"
	"github.com/ManuGH/streamguard/internal/fetch"
	"github.com/ManuGH/streamguard/internal/hls"
	xglog "github.com/ManuGH/streamguard/internal/log"
)

const (
	defaultFetchTimeout  = 5 * time.Second
	defaultRetryDelay    = time.Second
	defaultRefresh       = 2 * time.Second
	maxLevelLoadFailures = 4
	maxFragLoadFailures  = 3
	abrSwitchUpHeadroom  = 1.2
	throughputSmoothing  = 0.3
	eventBufferSize      = 128
)

// Getter performs one bounded GET. *fetch.Client implements it.
type Getter interface {
	Get(ctx context.Context, kind, rawURL string, timeout time.Duration) (*fetch.Response, error)
}

// Appender is implemented by sinks that accept segment payloads.
type Appender interface {
	Append(duration time.Duration, data []byte) error
}

// Factory builds Engines sharing one Getter.
type Factory struct {
	getter     Getter
	timeout    time.Duration
	retryDelay time.Duration
	logger     zerolog.Logger
}

// Option configures a Factory.
type Option func(*Factory)

// WithRetryDelay sets the pause between failed playlist or fragment loads.
func WithRetryDelay(d time.Duration) Option {
	return func(f *Factory) { f.retryDelay = d }
}

// WithLogger overrides the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(f *Factory) { f.logger = l }
}

// NewFactory returns a Factory whose engines bound every request by timeout.
func NewFactory(g Getter, timeout time.Duration, opts ...Option) *Factory {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	f := &Factory{
		getter:     g,
		timeout:    timeout,
		retryDelay: defaultRetryDelay,
		logger:     xglog.WithComponent("engine.http"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Supported is always true; the engine needs nothing beyond HTTP.
func (f *Factory) Supported() bool { return true }

func (f *Factory) New(opts engine.Options) (engine.Engine, error) {
	if f.getter == nil {
		return nil, errors.New("httpengine: nil getter")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		getter:     f.getter,
		timeout:    f.timeout,
		retryDelay: f.retryDelay,
		opts:       opts,
		logger:     f.logger,
		ctx:        ctx,
		cancel:     cancel,
		events:     make(chan engine.Event, eventBufferSize),
		level:      -1,
		audioTrack: -1,
		autoLevel:  true,
		lastSeq:    -1,
	}, nil
}

// Engine is one headless playback engine.
type Engine struct {
	getter     Getter
	timeout    time.Duration
	retryDelay time.Duration
	opts       engine.Options
	logger     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	events chan engine.Event

	mu          sync.Mutex
	sink        engine.MediaSink
	src         string
	master      *hls.Master
	level       int
	audioTrack  int
	autoLevel   bool
	lastSeq     int
	throughput  float64 // bits per second, smoothed
	loadCancel  context.CancelFunc
	loadGen     int
	manifestGen int
	destroyed   bool
}

func (e *Engine) AttachMedia(sink engine.MediaSink) error {
	if sink == nil {
		return errors.New("httpengine: nil media sink")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sink = sink
	return nil
}

// LoadSource fetches and parses the manifest asynchronously. On success it
// emits EventManifestParsed and starts loading.
func (e *Engine) LoadSource(url string) error {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return errors.New("httpengine: destroyed")
	}
	e.stopLoadLocked()
	e.src = url
	e.manifestGen++
	gen := e.manifestGen
	e.mu.Unlock()

	e.wg.Add(1)
	go e.loadManifest(url, gen)
	return nil
}

func (e *Engine) loadManifest(url string, gen int) {
	defer e.wg.Done()
	logger := e.logger.With().Str(xglog.FieldURL, url).Logger()

	resp, err := e.getter.Get(e.ctx, fetch.KindManifest, url, e.timeout)
	if err != nil {
		if e.ctx.Err() != nil {
			return
		}
		detail := engine.DetailManifestLoadError
		if errors.Is(err, fetch.ErrTimeout) {
			detail = engine.DetailManifestLoadTimeOut
		}
		logger.Warn().Err(err).Str(xglog.FieldDetail, string(detail)).Msg("manifest load failed")
		e.emit(engine.ErrorEvent(engine.ErrorTypeNetwork, detail, true, err))
		return
	}

	m, err := hls.ParseMaster(string(resp.Body), resp.URL)
	if err != nil {
		logger.Warn().Err(err).Msg("manifest parse failed")
		e.emit(engine.ErrorEvent(engine.ErrorTypeNetwork, engine.DetailManifestParsingError, true, err))
		return
	}

	e.mu.Lock()
	if gen != e.manifestGen || e.destroyed {
		e.mu.Unlock()
		return
	}
	e.master = m
	if e.level >= len(m.Renditions) {
		e.level = -1
	}
	if e.audioTrack >= len(m.Audio) {
		e.audioTrack = -1
	}
	e.mu.Unlock()

	logger.Info().Int("renditions", len(m.Renditions)).Int("audio_tracks", len(m.Audio)).Msg("manifest parsed")
	e.emit(engine.Event{Kind: engine.EventManifestParsed})
	e.StartLoad()
}

// StartLoad starts (or resumes) fragment loading for the current level.
func (e *Engine) StartLoad() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed || e.master == nil || e.loadCancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(e.ctx)
	e.loadCancel = cancel
	e.loadGen++
	gen := e.loadGen

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.loadLoop(ctx)

		cancel()
		e.mu.Lock()
		if e.loadGen == gen {
			e.loadCancel = nil
		}
		e.mu.Unlock()
	}()

	if tl, ok := e.sink.(timeline); ok {
		wd := newStallWatchdog(tl, e.opts.LowBufferWatchdogPeriod, e.opts.MaxBufferHole)
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			wd.Run(ctx, func() {
				e.logger.Warn().Dur("position", tl.CurrentTime()).Msg("buffer stalled")
				e.emit(engine.ErrorEvent(engine.ErrorTypeMedia, engine.DetailBufferStalledError, false, nil))
			})
		}()
	}
}

func (e *Engine) StopLoad() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLoadLocked()
}

func (e *Engine) stopLoadLocked() {
	if e.loadCancel != nil {
		e.loadCancel()
		e.loadCancel = nil
	}
}

// loadLoop refreshes the current level's playlist and loads new segments
// until the playlist ends, loading is stopped, or a fatal error occurs.
func (e *Engine) loadLoop(ctx context.Context) {
	levelFailures := 0

	for {
		playlistURL, audioURI, ok := e.currentURIs()
		if !ok {
			return
		}

		resp, err := e.getter.Get(ctx, fetch.KindPlaylist, playlistURL, e.timeout)
		var mp *hls.MediaPlaylist
		if err == nil {
			mp, err = hls.ParseMedia(string(resp.Body), resp.URL)
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			levelFailures++
			fatal := levelFailures >= maxLevelLoadFailures
			e.logger.Warn().Err(err).Str(xglog.FieldURL, playlistURL).Int(xglog.FieldAttempt, levelFailures).Bool(xglog.FieldFatal, fatal).Msg("level load failed")
			e.emit(engine.ErrorEvent(engine.ErrorTypeNetwork, engine.DetailLevelLoadError, fatal, err))
			if fatal || !sleepCtx(ctx, e.retryDelay) {
				return
			}
			continue
		}
		levelFailures = 0

		if audioURI != "" {
			e.loadAudioPlaylist(ctx, audioURI)
		}

		switched, ok := e.loadSegments(ctx, mp)
		if !ok {
			return
		}
		if switched {
			continue
		}
		if mp.Truth.IsVOD {
			e.logger.Debug().Str(xglog.FieldURL, playlistURL).Msg("end of playlist")
			return
		}

		refresh := mp.TargetDuration
		if refresh <= 0 {
			refresh = defaultRefresh
		}
		if !sleepCtx(ctx, refresh) {
			return
		}
	}
}

func (e *Engine) currentURIs() (playlist, audio string, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.master == nil || len(e.master.Renditions) == 0 {
		return "", "", false
	}
	lvl := e.level
	if lvl < 0 {
		lvl = 0
	}
	playlist = e.master.Renditions[lvl].URI
	if e.audioTrack >= 0 && e.audioTrack < len(e.master.Audio) {
		audio = e.master.Audio[e.audioTrack].URI
	}
	return playlist, audio, true
}

func (e *Engine) loadAudioPlaylist(ctx context.Context, uri string) {
	resp, err := e.getter.Get(ctx, fetch.KindPlaylist, uri, e.timeout)
	if err == nil {
		_, err = hls.ParseMedia(string(resp.Body), resp.URL)
	}
	if err == nil || ctx.Err() != nil {
		return
	}
	detail := engine.DetailAudioTrackLoadError
	if errors.Is(err, fetch.ErrTimeout) {
		detail = engine.DetailAudioTrackLoadTimeOut
	}
	e.logger.Warn().Err(err).Str(xglog.FieldURL, uri).Msg("audio track load failed")
	e.emit(engine.ErrorEvent(engine.ErrorTypeNetwork, detail, false, err))
}

// loadSegments appends every segment newer than the last one loaded. It
// returns switched when the level changed underneath it and ok=false when
// loading must stop.
func (e *Engine) loadSegments(ctx context.Context, mp *hls.MediaPlaylist) (switched, ok bool) {
	startLevel := e.Level()
	fragFailures := 0

	for i := 0; i < len(mp.Segments); {
		seg := mp.Segments[i]
		if seg.Sequence <= e.lastSequence() {
			i++
			continue
		}
		if !e.waitForBufferRoom(ctx) {
			return false, false
		}
		if e.Level() != startLevel {
			return true, true
		}

		start := time.Now()
		resp, err := e.getter.Get(ctx, fetch.KindSegment, seg.URI, e.timeout)
		if err != nil {
			if ctx.Err() != nil {
				return false, false
			}
			fragFailures++
			fatal := fragFailures >= maxFragLoadFailures
			e.logger.Warn().Err(err).Str(xglog.FieldURL, seg.URI).Int(xglog.FieldAttempt, fragFailures).Bool(xglog.FieldFatal, fatal).Msg("fragment load failed")
			e.emit(engine.ErrorEvent(engine.ErrorTypeNetwork, engine.DetailFragLoadError, fatal, err))
			if fatal || !sleepCtx(ctx, e.retryDelay) {
				return false, false
			}
			continue
		}
		fragFailures = 0

		if err := e.append(seg.Duration, resp.Body); err != nil {
			e.logger.Warn().Err(err).Int("sequence", seg.Sequence).Msg("buffer append failed")
			e.emit(engine.ErrorEvent(engine.ErrorTypeMedia, engine.DetailBufferAppendError, false, err))
		}
		e.mu.Lock()
		e.lastSeq = seg.Sequence
		e.mu.Unlock()

		e.measure(len(resp.Body), time.Since(start))
		if e.maybeSwitchUp() {
			return true, true
		}
		i++
	}
	return false, true
}

func (e *Engine) append(d time.Duration, data []byte) error {
	e.mu.Lock()
	sink := e.sink
	e.mu.Unlock()
	if a, ok := sink.(Appender); ok {
		return a.Append(d, data)
	}
	return nil
}

// waitForBufferRoom blocks while the forward buffer exceeds MaxBufferLength.
func (e *Engine) waitForBufferRoom(ctx context.Context) bool {
	e.mu.Lock()
	tl, ok := e.sink.(timeline)
	e.mu.Unlock()
	if !ok || e.opts.MaxBufferLength <= 0 {
		return ctx.Err() == nil
	}
	poll := e.opts.LowBufferWatchdogPeriod
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}
	for tl.Buffered()-tl.CurrentTime() >= e.opts.MaxBufferLength {
		if !sleepCtx(ctx, poll) {
			return false
		}
	}
	return ctx.Err() == nil
}

func (e *Engine) measure(bytes int, elapsed time.Duration) {
	if elapsed <= 0 || bytes == 0 {
		return
	}
	sample := float64(bytes*8) / elapsed.Seconds()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.throughput == 0 {
		e.throughput = sample
		return
	}
	e.throughput = throughputSmoothing*sample + (1-throughputSmoothing)*e.throughput
}

// maybeSwitchUp moves one level up when auto level is on and the measured
// throughput clears the next level's bandwidth with headroom.
func (e *Engine) maybeSwitchUp() bool {
	e.mu.Lock()
	if !e.autoLevel || e.master == nil {
		e.mu.Unlock()
		return false
	}
	cur := e.level
	if cur < 0 {
		cur = 0
	}
	next := cur + 1
	if next >= len(e.master.Renditions) {
		e.mu.Unlock()
		return false
	}
	bw := float64(e.master.Renditions[next].Bandwidth)
	if bw <= 0 || e.throughput <= bw*abrSwitchUpHeadroom {
		e.mu.Unlock()
		return false
	}
	e.level = next
	e.mu.Unlock()

	e.logger.Debug().Int(xglog.FieldRendition, next).Msg("abr switch up")
	e.emit(engine.Event{Kind: engine.EventLevelSwitched, Level: next})
	return true
}

func (e *Engine) Levels() []hls.Rendition {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.master == nil {
		return nil
	}
	return append([]hls.Rendition(nil), e.master.Renditions...)
}

func (e *Engine) AudioTracks() []hls.AudioTrack {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.master == nil {
		return nil
	}
	return append([]hls.AudioTrack(nil), e.master.Audio...)
}

// Subtitles lists subtitle tracks of the parsed manifest.
func (e *Engine) Subtitles() []hls.SubtitleTrack {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.master == nil {
		return nil
	}
	return append([]hls.SubtitleTrack(nil), e.master.Subtitles...)
}

// Level returns the current level, or -1 before one is chosen.
func (e *Engine) Level() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.level
}

// AudioTrack returns the current audio track, or -1 before one is chosen.
func (e *Engine) AudioTrack() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.audioTrack
}

// AutoLevel reports whether ABR is enabled.
func (e *Engine) AutoLevel() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.autoLevel
}

func (e *Engine) lastSequence() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSeq
}

func (e *Engine) SetLevel(index int) {
	e.mu.Lock()
	if e.master == nil || index < 0 || index >= len(e.master.Renditions) || index == e.level {
		e.mu.Unlock()
		return
	}
	e.level = index
	e.mu.Unlock()
	e.emit(engine.Event{Kind: engine.EventLevelSwitched, Level: index})
}

func (e *Engine) SetAudioTrack(index int) {
	e.mu.Lock()
	if e.master == nil || index < 0 || index >= len(e.master.Audio) || index == e.audioTrack {
		e.mu.Unlock()
		return
	}
	e.audioTrack = index
	e.mu.Unlock()
	e.emit(engine.Event{Kind: engine.EventAudioTrackSwitched, AudioTrack: index})
}

func (e *Engine) DisableAutoLevel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.autoLevel = false
}

// RecoverMediaError restarts fragment loading after the last appended segment.
func (e *Engine) RecoverMediaError() {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return
	}
	restart := e.loadCancel != nil
	e.stopLoadLocked()
	e.mu.Unlock()

	e.logger.Info().Msg("media error recovery")
	if restart {
		e.StartLoad()
	}
}

// Destroy stops all loading and waits for background work to exit.
func (e *Engine) Destroy() {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return
	}
	e.destroyed = true
	e.stopLoadLocked()
	e.mu.Unlock()

	e.cancel()
	e.wg.Wait()
}

func (e *Engine) Events() <-chan engine.Event { return e.events }

// emit never blocks the caller: control methods run on the consumer's own
// loop, so a full buffer drops the event.
func (e *Engine) emit(ev engine.Event) {
	if e.ctx.Err() != nil {
		return
	}
	select {
	case e.events <- ev:
	default:
		e.logger.Warn().Str(xglog.FieldEvent, string(ev.Kind)).Msg("event buffer full, dropping event")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
