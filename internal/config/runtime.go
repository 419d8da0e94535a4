// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"golang.org/x/time/rate"

	"github.com/ManuGH/streamguard/internal/engine"
	"github.com/ManuGH/streamguard/internal/fetch"
	xglog "github.com/ManuGH/streamguard/internal/log"
	"github.com/ManuGH/streamguard/internal/platform/httpx"
	"github.com/ManuGH/streamguard/internal/platform/origin"
	"github.com/ManuGH/streamguard/internal/session"
	"github.com/ManuGH/streamguard/internal/telemetry"
)

// EngineOptions maps the engine section onto engine buffer tuning.
func (c AppConfig) EngineOptions() engine.Options {
	return engine.Options{
		MaxBufferLength:         c.Engine.MaxBufferLength,
		MaxMaxBufferLength:      c.Engine.MaxMaxBufferLength,
		MaxBufferHole:           c.Engine.MaxBufferHole,
		LowBufferWatchdogPeriod: c.Engine.LowBufferWatchdogPeriod,
	}
}

// SessionConfig maps the playback section onto the session controller.
func (c AppConfig) SessionConfig() session.Config {
	p := c.Playback
	return session.Config{
		ManifestMaxTries:   p.ManifestMaxTries,
		MaxRebuilds:        p.MaxRebuilds,
		RebuildDelay:       p.RebuildDelay,
		AudioReassertDelay: p.AudioReassertDelay,
		StallNudge:         p.StallNudge,
		PreferredCodec:     p.PreferredCodec,
		PreferredLanguage:  p.PreferredLanguage,
		Engine:             c.EngineOptions(),
	}
}

func (c AppConfig) HTTPOptions() httpx.Options {
	return httpx.Options{
		DialTimeout:           c.HTTP.DialTimeout,
		ResponseHeaderTimeout: c.HTTP.ResponseHeaderTimeout,
		MaxIdleConnsPerHost:   c.HTTP.MaxIdleConnsPerHost,
		Trace:                 c.Telemetry.Enabled,
	}
}

// FetchOptions builds fetcher options around an existing client. A zero
// RateLimit disables outbound limiting.
func (c AppConfig) FetchOptions(client fetch.Doer) fetch.Options {
	limit := rate.Inf
	if c.HTTP.RateLimit > 0 {
		limit = rate.Limit(c.HTTP.RateLimit)
	}
	return fetch.Options{
		HTTPClient:     client,
		RateLimit:      limit,
		RateLimitBurst: c.HTTP.RateLimitBurst,
		UserAgent:      c.HTTP.UserAgent,
	}
}

func (c AppConfig) LogConfig() xglog.Config {
	return xglog.Config{
		Level:   c.Log.Level,
		Service: "streamguard",
		Version: c.Version,
	}
}

func (c AppConfig) TelemetryConfig() telemetry.Config {
	return telemetry.Config{
		Enabled:        c.Telemetry.Enabled,
		ServiceName:    c.Telemetry.ServiceName,
		ServiceVersion: c.Version,
		ExporterType:   c.Telemetry.ExporterType,
		Endpoint:       c.Telemetry.Endpoint,
		SamplingRate:   c.Telemetry.SamplingRate,
	}
}

// OriginPolicy builds the manifest origin allowlist.
func (c AppConfig) OriginPolicy() origin.Policy {
	return origin.Policy{
		Restrict: c.Origins.Restrict,
		Hosts:    c.Origins.Hosts,
		CIDRs:    c.Origins.CIDRs,
		Ports:    c.Origins.Ports,
	}
}
