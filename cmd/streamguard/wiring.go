// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/ManuGH/streamguard/internal/api"
	"github.com/ManuGH/streamguard/internal/backoff"
	"github.com/ManuGH/streamguard/internal/config"
	"github.com/ManuGH/streamguard/internal/engine/httpengine"
	"github.com/ManuGH/streamguard/internal/fetch"
	"github.com/ManuGH/streamguard/internal/health"
	xglog "github.com/ManuGH/streamguard/internal/log"
	"github.com/ManuGH/streamguard/internal/media"
	"github.com/ManuGH/streamguard/internal/platform/httpx"
	"github.com/ManuGH/streamguard/internal/platform/origin"
	"github.com/ManuGH/streamguard/internal/probe"
	"github.com/ManuGH/streamguard/internal/session"
)

// daemon is the wired process: one headless sink, one controller and the
// API in front of them.
type daemon struct {
	sink    *media.HeadlessSink
	ctrl    *session.Controller
	api     *api.Server
	origins origin.Policy
	logger  zerolog.Logger
}

func newDaemon(cfg config.AppConfig, logger zerolog.Logger) (*daemon, error) {
	fetcher := fetch.New(cfg.FetchOptions(httpx.NewClient(cfg.HTTPOptions())))

	p := cfg.Playback
	policy := backoff.New(p.BackoffBase, p.BackoffCap, p.BackoffMaxJitter)
	prober := probe.New(fetcher, policy, p.FetchTimeout)

	factory := httpengine.NewFactory(fetcher, p.FetchTimeout, httpengine.WithRetryDelay(cfg.Engine.RetryDelay))

	notices := &session.LogNotices{Logger: xglog.WithComponent("notice")}
	ctrl := session.NewController(factory, prober, notices, cfg.SessionConfig())

	sink := media.NewHeadlessSink()
	hm := health.NewManager(version)
	hm.RegisterChecker(health.NewSessionChecker(ctrl.Status))

	srv, err := api.New(api.Options{
		Player:            ctrl,
		Sink:              sink,
		SinkStats:         func() any { return sink.Stats() },
		Origins:           cfg.OriginPolicy(),
		Health:            hm,
		RateLimitRequests: cfg.API.RateLimitRequests,
		RateLimitWindow:   cfg.API.RateLimitWindow,
		TracingService:    tracingService(cfg),
	})
	if err != nil {
		return nil, err
	}
	return &daemon{sink: sink, ctrl: ctrl, api: srv, origins: cfg.OriginPolicy(), logger: logger}, nil
}

func tracingService(cfg config.AppConfig) string {
	if !cfg.Telemetry.Enabled {
		return ""
	}
	return cfg.Telemetry.ServiceName
}

// applyReloads pushes reloaded settings into the running controller. The
// next session picks them up; transport and API settings need a restart.
func (d *daemon) applyReloads(ctx context.Context, ch <-chan config.AppConfig) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg := <-ch:
			d.ctrl.SetConfig(cfg.SessionConfig())
			xglog.Reconfigure(cfg.LogConfig())
			d.logger.Info().Str(xglog.FieldEvent, "config.applied").Msg("reloaded playback settings applied")
		}
	}
}

func (d *daemon) autoplay(ctx context.Context, rawURL string) {
	logger := d.logger.With().Str(xglog.FieldURL, origin.Sanitize(rawURL)).Logger()
	target, err := d.origins.Check(ctx, rawURL)
	if err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "autoplay.rejected").Msg("initial URL rejected by origin policy")
		return
	}
	if err := d.ctrl.Play(ctx, target, d.sink); err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "autoplay.failed").Msg("initial playback failed")
		return
	}
	logger.Info().Str(xglog.FieldEvent, "autoplay.started").Msg("playback started")
}
