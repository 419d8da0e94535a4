// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package session drives one resilient adaptive-streaming playback at a time:
// it probes the manifest, pins a stable rendition and audio track, and
// classifies engine errors into local recovery or escalation.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ManuGH/streamguard/internal/engine"
	xglog "github.com/ManuGH/streamguard/internal/log"
	"github.com/ManuGH/streamguard/internal/metrics"
)

// Controller owns the single live Session.
type Controller struct {
	factory engine.Factory
	prober  Prober
	notices NoticeSink
	logger  zerolog.Logger

	mu  sync.Mutex
	cfg Config
	cur *Session
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithLogger overrides the component logger.
func WithLogger(l zerolog.Logger) ControllerOption {
	return func(c *Controller) { c.logger = l }
}

// NewController wires the engine factory, manifest prober and notice sink.
// A nil notices discards notices after logging them.
func NewController(factory engine.Factory, prober Prober, notices NoticeSink, cfg Config, opts ...ControllerOption) *Controller {
	c := &Controller{
		factory: factory,
		prober:  prober,
		cfg:     cfg.withDefaults(),
		logger:  xglog.WithComponent("session"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if notices == nil {
		notices = &LogNotices{Logger: c.logger}
	}
	c.notices = notices
	metrics.SetSessionState(string(StateIdle))
	return c
}

// SetConfig replaces the tuning used by sessions started after the call.
func (c *Controller) SetConfig(cfg Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg.withDefaults()
}

// Config returns the tuning for the next session.
func (c *Controller) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// Play starts playback of url into sink and returns once playback started
// or a notice was written. The previous session is stopped first, unless it
// is already playing url into the same sink, in which case the sink is
// simply resumed.
func (c *Controller) Play(ctx context.Context, url string, sink engine.MediaSink) error {
	if url == "" {
		return errors.New("session: empty url")
	}
	if sink == nil {
		return errors.New("session: nil media sink")
	}

	c.mu.Lock()
	if cur := c.cur; cur != nil && cur.url == url && cur.sink == sink && cur.State() == StatePlaying {
		c.mu.Unlock()
		c.logger.Info().Str(xglog.FieldSessionID, cur.ID).Msg("resuming playing session")
		return sink.Play()
	}

	prev := c.cur
	c.cur = nil
	if prev != nil {
		prev.Stop()
	}

	if !c.factory.Supported() {
		c.mu.Unlock()
		c.notices.SetNotice(NoticeUnsupported)
		metrics.IncNotice("unsupported")
		c.logger.Error().Str(xglog.FieldURL, url).Msg("adaptive streaming not supported")
		return ErrUnsupported
	}

	s := newSession(url, sink, c.cfg, c.factory, c.prober, c.notices, c.logger)
	c.cur = s
	s.start()
	c.mu.Unlock()

	return s.wait(ctx)
}

// Stop tears down the live session, if any. Safe to call repeatedly.
func (c *Controller) Stop() {
	c.mu.Lock()
	s := c.cur
	c.cur = nil
	c.mu.Unlock()
	if s == nil {
		return
	}
	s.Stop()
	metrics.SetSessionState(string(StateIdle))
}

// Status describes the live session, or an idle controller.
func (c *Controller) Status() Status {
	c.mu.Lock()
	s := c.cur
	c.mu.Unlock()
	if s == nil {
		return Status{State: StateIdle, Rendition: Unset, AudioTrack: Unset, Tried: []int{}}
	}
	return s.Status()
}

// Current returns the live session, or nil.
func (c *Controller) Current() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}
