// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ManuGH/streamguard/internal/engine"
	"github.com/ManuGH/streamguard/internal/hls"
	xglog "github.com/ManuGH/streamguard/internal/log"
	"github.com/ManuGH/streamguard/internal/metrics"
	"github.com/ManuGH/streamguard/internal/probe"
)

// Prober confirms the manifest is reachable. *probe.Prober implements it.
type Prober interface {
	EnsureReachable(ctx context.Context, rawURL string, maxTries int) (int, error)
}

// Status is a point-in-time view of a session.
type Status struct {
	SessionID         string              `json:"session_id,omitempty"`
	URL               string              `json:"url,omitempty"`
	State             State               `json:"state"`
	Generation        uint64              `json:"generation"`
	Rendition         int                 `json:"rendition"`
	AudioTrack        int                 `json:"audio_track"`
	Tried             []int               `json:"tried"`
	Rebuilds          int                 `json:"rebuilds"`
	ManifestTriesUsed int                 `json:"manifest_tries_used"`
	Subtitles         []hls.SubtitleTrack `json:"subtitles,omitempty"`
	Notice            string              `json:"notice,omitempty"`
}

// Session owns one playback attempt of one URL. All mutable state below the
// loop marker is touched only by the loop goroutine.
type Session struct {
	ID string

	url     string
	sink    engine.MediaSink
	cfg     Config
	factory engine.Factory
	prober  Prober
	notices NoticeSink
	logger  zerolog.Logger
	fsm     *Machine[State, Trigger]

	ctx    context.Context
	cancel context.CancelFunc
	inbox  chan func()
	done   chan struct{}
	wg     sync.WaitGroup

	startOnce sync.Once
	startCh   chan struct{}
	startErr  error
	stopOnce  sync.Once

	snapMu sync.Mutex
	snap   Status

	// loop-owned
	eng               engine.Engine
	gen               uint64
	genCtx            context.Context
	genCancel         context.CancelFunc
	pin               PinState
	manifestTriesUsed int
	rebuilds          int
	bootParsed        bool
	exhaustRecovered  bool
	reprobing         bool
	subtitles         []hls.SubtitleTrack
	notice            string
}

func newSession(url string, sink engine.MediaSink, cfg Config, factory engine.Factory, prober Prober, notices NoticeSink, logger zerolog.Logger) *Session {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(xglog.ContextWithSessionID(context.Background(), id))
	s := &Session{
		ID:      id,
		url:     url,
		sink:    sink,
		cfg:     cfg,
		factory: factory,
		prober:  prober,
		notices: notices,
		logger:  logger.With().Str(xglog.FieldSessionID, id).Str(xglog.FieldURL, url).Logger(),
		ctx:     ctx,
		cancel:  cancel,
		inbox:   make(chan func(), 16),
		done:    make(chan struct{}),
		startCh: make(chan struct{}),
		pin:     newPinState(),
	}
	s.genCtx, s.genCancel = context.WithCancel(ctx)
	s.fsm = newLifecycle(s.onTransition, map[Trigger]func() error{TriggerRebuild: s.rebuildAllowed})
	s.publish()
	return s
}

// start launches the loop and the first boot.
func (s *Session) start() {
	go s.run()
	s.enqueue(s.boot)
}

func (s *Session) run() {
	defer close(s.done)
	defer s.teardown()

	for {
		var events <-chan engine.Event
		if s.eng != nil {
			events = s.eng.Events()
		}
		select {
		case <-s.ctx.Done():
			return
		case fn := <-s.inbox:
			fn()
		case ev := <-events:
			s.handleEvent(ev)
		}
		s.publish()
	}
}

// enqueue schedules fn on the loop without a generation check.
func (s *Session) enqueue(fn func()) {
	select {
	case s.inbox <- fn:
	case <-s.ctx.Done():
	}
}

// post schedules fn on the loop if the session is still on generation gen.
func (s *Session) post(gen uint64, fn func()) {
	s.enqueue(func() {
		if gen != s.gen {
			s.logger.Debug().Uint64(xglog.FieldGeneration, gen).Msg("dropping stale continuation")
			return
		}
		fn()
	})
}

// async runs fn off the loop; it is cancelled by the next rebuild or Stop.
func (s *Session) async(fn func(ctx context.Context, gen uint64)) {
	gen, ctx := s.gen, s.genCtx
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(ctx, gen)
	}()
}

// after runs fn on the loop once d elapses, unless the generation moves on.
func (s *Session) after(d time.Duration, fn func()) {
	s.async(func(ctx context.Context, gen uint64) {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
		case <-t.C:
			s.post(gen, fn)
		}
	})
}

func (s *Session) fire(on Trigger) {
	if _, err := s.fsm.Fire(s.ctx, on); err != nil {
		s.logger.Debug().Err(err).Msg("transition rejected")
	}
}

func (s *Session) onTransition(from, to State, on Trigger) {
	s.logger.Info().
		Str(xglog.FieldOldState, string(from)).
		Str(xglog.FieldNewState, string(to)).
		Str(xglog.FieldEvent, string(on)).
		Uint64(xglog.FieldGeneration, s.gen).
		Msg("session state changed")
	metrics.SetSessionState(string(to))
	s.publish()
}

// State returns the current lifecycle state.
func (s *Session) State() State { return s.fsm.State() }

// URL returns the session's manifest URL.
func (s *Session) URL() string { return s.url }

// Status returns the latest snapshot published by the loop.
func (s *Session) Status() Status {
	s.snapMu.Lock()
	defer s.snapMu.Unlock()
	st := s.snap
	st.State = s.fsm.State()
	st.Tried = append([]int(nil), st.Tried...)
	st.Subtitles = append([]hls.SubtitleTrack(nil), st.Subtitles...)
	return st
}

func (s *Session) publish() {
	st := Status{
		SessionID:         s.ID,
		URL:               s.url,
		Generation:        s.gen,
		Rendition:         s.pin.Rendition,
		AudioTrack:        s.pin.AudioTrack,
		Tried:             s.pin.TriedList(),
		Rebuilds:          s.rebuilds,
		ManifestTriesUsed: s.manifestTriesUsed,
		Subtitles:         s.subtitles,
		Notice:            s.notice,
	}
	s.snapMu.Lock()
	s.snap = st
	s.snapMu.Unlock()
}

func (s *Session) signalStarted(err error) {
	s.startOnce.Do(func() {
		s.startErr = err
		close(s.startCh)
	})
}

// wait blocks until playback started, a notice was written, or ctx ends.
func (s *Session) wait(ctx context.Context) error {
	select {
	case <-s.startCh:
		return s.startErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop cancels all outstanding work and releases the engine. Safe to call
// more than once.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		<-s.done
		s.wg.Wait()
		s.signalStarted(ErrStopped)
	})
}

func (s *Session) teardown() {
	s.genCancel()
	s.destroyEngine()
	s.fire(TriggerStop)
	s.publish()
}

func (s *Session) destroyEngine() {
	if s.eng == nil {
		return
	}
	s.eng.Destroy()
	s.eng = nil
}

func (s *Session) remainingManifestTries() int {
	return s.cfg.ManifestMaxTries - s.manifestTriesUsed
}

// boot probes the manifest, then constructs, attaches and loads a fresh engine.
func (s *Session) boot() {
	s.fire(TriggerBoot)
	s.bootParsed = false
	s.exhaustRecovered = false

	budget := s.remainingManifestTries()
	if budget <= 0 {
		s.failManifest(&probe.ExhaustedError{URL: s.url, Attempts: s.manifestTriesUsed})
		return
	}
	s.async(func(ctx context.Context, gen uint64) {
		n, err := s.prober.EnsureReachable(ctx, s.url, budget)
		if ctx.Err() != nil {
			return
		}
		s.post(gen, func() { s.onBootProbe(n, err) })
	})
}

func (s *Session) onBootProbe(attempts int, err error) {
	s.manifestTriesUsed += attempts
	if err != nil {
		metrics.IncSessionBoot("unreachable")
		s.failManifest(err)
		return
	}

	s.destroyEngine()
	eng, err := s.factory.New(s.cfg.Engine)
	if err != nil {
		metrics.IncSessionBoot("engine_error")
		if errors.Is(err, engine.ErrUnsupported) {
			s.fail(ErrUnsupported, NoticeUnsupported, "unsupported")
			return
		}
		s.fail(fmt.Errorf("%w: %w", ErrPlaybackUnavailable, err), NoticeEngineFailed, "engine")
		return
	}
	s.eng = eng

	if err := eng.AttachMedia(s.sink); err != nil {
		metrics.IncSessionBoot("engine_error")
		s.fail(fmt.Errorf("%w: attach media: %w", ErrPlaybackUnavailable, err), NoticeEngineFailed, "engine")
		return
	}
	if err := eng.LoadSource(s.url); err != nil {
		metrics.IncSessionBoot("engine_error")
		s.fail(fmt.Errorf("%w: load source: %w", ErrPlaybackUnavailable, err), NoticeEngineFailed, "engine")
		return
	}
	s.logger.Info().Int(xglog.FieldAttempt, attempts).Uint64(xglog.FieldGeneration, s.gen).Msg("engine loading")
}

func (s *Session) handleEvent(ev engine.Event) {
	switch ev.Kind {
	case engine.EventManifestParsed:
		s.onParsed()
	case engine.EventLevelSwitched:
		if s.pin.Rendition != Unset && ev.Level != s.pin.Rendition {
			s.logger.Info().Int("from", ev.Level).Int(xglog.FieldRendition, s.pin.Rendition).Msg("reasserting pinned rendition")
			s.eng.SetLevel(s.pin.Rendition)
			metrics.IncPinReassertion("rendition")
		}
	case engine.EventAudioTrackSwitched:
		if s.pin.AudioTrack != Unset && ev.AudioTrack != s.pin.AudioTrack {
			s.logger.Info().Int("from", ev.AudioTrack).Int(xglog.FieldAudioTrack, s.pin.AudioTrack).Msg("reasserting pinned audio track")
			s.eng.SetAudioTrack(s.pin.AudioTrack)
			metrics.IncPinReassertion("audio")
		}
	case engine.EventError:
		s.onError(ev.Error)
	}
}

func (s *Session) onParsed() {
	if !s.pin.Selected {
		s.selectPin()
	} else {
		s.reassertPin()
	}
	if sl, ok := s.eng.(engine.SubtitleLister); ok {
		s.subtitles = sl.Subtitles()
	}

	first := !s.bootParsed
	s.bootParsed = true
	if first {
		if err := s.sink.Play(); err != nil {
			s.logger.Warn().Err(err).Msg("media sink refused to play")
		}
	}
	s.fire(TriggerParsed)
	if first {
		metrics.IncSessionBoot("ok")
		s.signalStarted(nil)
	}
}

// selectPin chooses the rendition and audio track once per boot.
func (s *Session) selectPin() {
	levels := s.eng.Levels()
	tracks := s.eng.AudioTracks()
	s.pin.Selected = true

	if idx := SelectRendition(levels, s.cfg.PreferredCodec); idx != Unset {
		s.pin.Rendition = idx
		s.pin.markTried(idx)
		s.eng.DisableAutoLevel()
		s.eng.SetLevel(idx)
	}
	if idx := SelectAudioTrack(tracks, s.cfg.PreferredLanguage); idx != Unset {
		s.pin.AudioTrack = idx
		s.eng.SetAudioTrack(idx)
	}
	s.logger.Info().
		Int("renditions", len(levels)).
		Int(xglog.FieldRendition, s.pin.Rendition).
		Int(xglog.FieldAudioTrack, s.pin.AudioTrack).
		Msg("pinned rendition")
}

// reassertPin re-applies an existing pin after a manifest reload.
func (s *Session) reassertPin() {
	if s.pin.Rendition != Unset {
		s.eng.DisableAutoLevel()
		s.eng.SetLevel(s.pin.Rendition)
	}
	if s.pin.AudioTrack != Unset {
		s.eng.SetAudioTrack(s.pin.AudioTrack)
	}
}

func (s *Session) onError(d *engine.ErrorData) {
	class := Classify(d)
	logger := s.logger.With().
		Str(xglog.FieldClass, string(class)).
		Uint64(xglog.FieldGeneration, s.gen).
		Logger()
	if d != nil {
		logger = logger.With().
			Str(xglog.FieldErrorType, string(d.Type)).
			Str(xglog.FieldDetail, string(d.Detail)).
			Bool(xglog.FieldFatal, d.Fatal).
			Logger()
	}

	switch class {
	case ClassStall:
		s.nudge(logger)
	case ClassManifest:
		logger.Warn().Msg("manifest error, re-probing")
		metrics.IncRecoveryAction(string(class), "reprobe")
		s.enterRecovering()
		s.reprobe()
	case ClassRendition:
		logger.Warn().Int(xglog.FieldRendition, s.pin.Rendition).Msg("rendition error, failing over")
		s.enterRecovering()
		s.failover(logger)
		s.recovered()
	case ClassFatalNetwork:
		logger.Warn().Msg("fatal network error, resuming load")
		metrics.IncRecoveryAction(string(class), "start_load")
		s.enterRecovering()
		s.eng.StartLoad()
		s.recovered()
	case ClassFatalMedia:
		logger.Warn().Msg("fatal media error, recovering decoder")
		metrics.IncRecoveryAction(string(class), "recover_media")
		s.enterRecovering()
		s.eng.RecoverMediaError()
		s.scheduleAudioReassert()
		s.recovered()
	case ClassFatalOther:
		logger.Warn().Int("rebuilds", s.rebuilds).Msg("unrecoverable engine error, rebuilding")
		metrics.IncRecoveryAction(string(class), "rebuild")
		s.enterRecovering()
		s.rebuild()
	default:
		logger.Debug().Msg("ignoring engine error")
	}
}

// enterRecovering leaves Playing. Errors during boot keep the session in Booting.
func (s *Session) enterRecovering() {
	if s.fsm.Can(TriggerError) {
		s.fire(TriggerError)
	}
}

func (s *Session) recovered() {
	if s.fsm.Can(TriggerRecovered) {
		s.fire(TriggerRecovered)
	}
}

// nudge steps the playhead back over a stall, never forward.
func (s *Session) nudge(logger zerolog.Logger) {
	if s.sink.Seeking() {
		logger.Debug().Msg("stall during seek, ignoring")
		return
	}
	pos := s.sink.CurrentTime()
	target := pos - s.cfg.StallNudge
	if target < 0 {
		target = 0
	}
	if target > pos {
		target = pos
	}
	logger.Info().Dur("position", pos).Dur("target", target).Msg("nudging playhead over stall")
	metrics.IncRecoveryAction(string(ClassStall), "nudge")
	s.sink.Seek(target)
}

// reprobe re-runs the prober with the remaining budget and reloads only the
// manifest on success. Manifest errors arriving while a re-probe is in flight
// join it instead of spending the budget again.
func (s *Session) reprobe() {
	if s.reprobing {
		s.logger.Debug().Msg("re-probe already in flight")
		return
	}
	budget := s.remainingManifestTries()
	if budget <= 0 {
		s.failManifest(&probe.ExhaustedError{URL: s.url, Attempts: s.manifestTriesUsed})
		return
	}
	s.reprobing = true
	s.async(func(ctx context.Context, gen uint64) {
		n, err := s.prober.EnsureReachable(ctx, s.url, budget)
		if ctx.Err() != nil {
			return
		}
		s.post(gen, func() {
			s.reprobing = false
			s.manifestTriesUsed += n
			if err != nil {
				s.failManifest(err)
				return
			}
			if s.eng == nil {
				return
			}
			s.logger.Info().Int(xglog.FieldAttempt, n).Msg("manifest reachable again, reloading")
			if err := s.eng.LoadSource(s.url); err != nil {
				s.logger.Warn().Err(err).Msg("manifest reload refused")
			}
		})
	})
}

// failover pins the next untried rendition. Once every rendition was tried
// the decoder is recovered a single time per boot.
func (s *Session) failover(logger zerolog.Logger) {
	next, err := s.pin.NextRendition(len(s.eng.Levels()))
	if err != nil {
		metrics.IncFailover("exhausted")
		if !s.exhaustRecovered {
			s.exhaustRecovered = true
			logger.Warn().Err(err).Msg("all renditions tried, recovering decoder")
			metrics.IncRecoveryAction(string(ClassRendition), "recover_media")
			s.eng.RecoverMediaError()
		} else {
			logger.Warn().Err(err).Msg("all renditions tried")
		}
		s.scheduleAudioReassert()
		return
	}

	s.pin.Rendition = next
	s.pin.markTried(next)
	s.eng.DisableAutoLevel()
	s.eng.SetLevel(next)
	metrics.IncFailover("switched")
	metrics.IncRecoveryAction(string(ClassRendition), "failover")
	logger.Info().Int(xglog.FieldRendition, next).Ints("tried", s.pin.TriedList()).Msg("failed over to next rendition")
	s.scheduleAudioReassert()
}

func (s *Session) scheduleAudioReassert() {
	track := s.pin.AudioTrack
	if track == Unset {
		return
	}
	s.after(s.cfg.AudioReassertDelay, func() {
		if s.eng == nil {
			return
		}
		s.eng.SetAudioTrack(track)
		metrics.IncPinReassertion("audio")
	})
}

// rebuildAllowed guards the rebuild edge with the MaxRebuilds cap.
func (s *Session) rebuildAllowed() error {
	if s.rebuilds >= s.cfg.MaxRebuilds {
		return fmt.Errorf("%w after %d rebuilds", ErrRebuildExhausted, s.rebuilds)
	}
	return nil
}

// rebuild destroys the engine and boots again after RebuildDelay, up to
// MaxRebuilds times.
func (s *Session) rebuild() {
	if _, err := s.fsm.Fire(s.ctx, TriggerRebuild); err != nil {
		if errors.Is(err, ErrRebuildExhausted) {
			s.fail(err, NoticeRebuildExhausted, "rebuild_exhausted")
			return
		}
		s.logger.Debug().Err(err).Msg("rebuild rejected")
		return
	}
	s.rebuilds++
	metrics.IncSessionRebuild()

	s.destroyEngine()
	s.nextGeneration()
	s.pin = newPinState()
	s.manifestTriesUsed = 0
	s.subtitles = nil

	s.logger.Info().Int("rebuild", s.rebuilds).Uint64(xglog.FieldGeneration, s.gen).Dur(xglog.FieldDelay, s.cfg.RebuildDelay).Msg("scheduling rebuild")
	s.after(s.cfg.RebuildDelay, s.boot)
}

// nextGeneration cancels outstanding work and invalidates pending continuations.
func (s *Session) nextGeneration() {
	s.genCancel()
	s.gen++
	s.genCtx, s.genCancel = context.WithCancel(s.ctx)
	s.reprobing = false
}

func (s *Session) failManifest(err error) {
	s.fail(fmt.Errorf("%w: %w", ErrPlaybackUnavailable, err), NoticeManifestUnreachable, "manifest_unreachable")
}

// fail releases the engine, writes the notice and parks the session in Failed.
func (s *Session) fail(err error, notice, reason string) {
	s.destroyEngine()
	s.nextGeneration()
	s.notice = notice
	s.notices.SetNotice(notice)
	metrics.IncNotice(reason)
	s.logger.Error().Err(err).Str("reason", reason).Msg("playback failed")
	s.fire(TriggerFail)
	s.signalStarted(err)
}
