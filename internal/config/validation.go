// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"

	"github.com/ManuGH/streamguard/internal/validate"
)

// Validate checks an effective configuration. All failures are reported
// together, wrapped in ErrInvalidConfig.
func Validate(cfg AppConfig) error {
	v := validate.New()

	p := cfg.Playback
	v.PositiveDuration("playback.fetchTimeout", p.FetchTimeout)
	v.Positive("playback.manifestMaxTries", p.ManifestMaxTries)
	v.PositiveDuration("playback.backoffBase", p.BackoffBase)
	v.PositiveDuration("playback.backoffCap", p.BackoffCap)
	if p.BackoffCap > 0 && p.BackoffCap < p.BackoffBase {
		v.AddError("playback.backoffCap", fmt.Sprintf("must be >= backoffBase (%s)", p.BackoffBase), p.BackoffCap)
	}
	v.NonNegativeDuration("playback.backoffMaxJitter", p.BackoffMaxJitter)
	v.Positive("playback.maxRebuilds", p.MaxRebuilds)
	v.PositiveDuration("playback.rebuildDelay", p.RebuildDelay)
	v.PositiveDuration("playback.audioReassertDelay", p.AudioReassertDelay)
	v.PositiveDuration("playback.stallNudge", p.StallNudge)
	v.NotEmpty("playback.preferredCodec", p.PreferredCodec)
	v.NotEmpty("playback.preferredLanguage", p.PreferredLanguage)

	e := cfg.Engine
	v.PositiveDuration("engine.maxBufferLength", e.MaxBufferLength)
	v.PositiveDuration("engine.maxMaxBufferLength", e.MaxMaxBufferLength)
	if e.MaxMaxBufferLength > 0 && e.MaxMaxBufferLength < e.MaxBufferLength {
		v.AddError("engine.maxMaxBufferLength", fmt.Sprintf("must be >= maxBufferLength (%s)", e.MaxBufferLength), e.MaxMaxBufferLength)
	}
	v.NonNegativeDuration("engine.maxBufferHole", e.MaxBufferHole)
	v.PositiveDuration("engine.lowBufferWatchdogPeriod", e.LowBufferWatchdogPeriod)
	v.PositiveDuration("engine.retryDelay", e.RetryDelay)

	h := cfg.HTTP
	v.PositiveDuration("http.dialTimeout", h.DialTimeout)
	v.PositiveDuration("http.responseHeaderTimeout", h.ResponseHeaderTimeout)
	v.Positive("http.maxIdleConnsPerHost", h.MaxIdleConnsPerHost)
	if h.RateLimit < 0 {
		v.AddError("http.rateLimit", "cannot be negative (0 disables limiting)", h.RateLimit)
	}
	if h.RateLimit > 0 {
		v.Positive("http.rateLimitBurst", h.RateLimitBurst)
	}

	a := cfg.API
	v.ListenAddr("api.listenAddr", a.ListenAddr)
	v.Positive("api.rateLimitRequests", a.RateLimitRequests)
	v.PositiveDuration("api.rateLimitWindow", a.RateLimitWindow)
	v.PositiveDuration("api.shutdownTimeout", a.ShutdownTimeout)

	if err := cfg.OriginPolicy().Validate(); err != nil {
		v.AddError("origins", err.Error(), cfg.Origins)
	}

	v.OneOf("log.level", cfg.Log.Level, validate.LogLevels)

	if t := cfg.Telemetry; t.Enabled {
		v.NotEmpty("telemetry.serviceName", t.ServiceName)
		v.OneOf("telemetry.exporterType", t.ExporterType, []string{"grpc", "http"})
		v.NotEmpty("telemetry.endpoint", t.Endpoint)
		v.FloatRange("telemetry.samplingRate", t.SamplingRate, 0, 1)
	}

	if err := v.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
