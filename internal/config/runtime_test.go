// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"

	"github.com/ManuGH/streamguard/internal/engine"
	"github.com/ManuGH/streamguard/internal/session"
)

func TestRuntimeMappings(t *testing.T) {
	cfg := Defaults()
	cfg.Version = "v9"

	assert.Equal(t, engine.DefaultOptions(), cfg.EngineOptions())

	sc := cfg.SessionConfig()
	d := session.DefaultConfig()
	assert.Equal(t, d.ManifestMaxTries, sc.ManifestMaxTries)
	assert.Equal(t, d.MaxRebuilds, sc.MaxRebuilds)
	assert.Equal(t, d.PreferredCodec, sc.PreferredCodec)
	assert.Equal(t, d.Engine, sc.Engine)

	fo := cfg.FetchOptions(http.DefaultClient)
	assert.Equal(t, rate.Limit(20), fo.RateLimit)
	assert.Equal(t, 40, fo.RateLimitBurst)
	assert.Equal(t, "streamguard", fo.UserAgent)

	cfg.HTTP.RateLimit = 0
	assert.Equal(t, rate.Inf, cfg.FetchOptions(nil).RateLimit)

	assert.Equal(t, "v9", cfg.LogConfig().Version)
	assert.Equal(t, "v9", cfg.TelemetryConfig().ServiceVersion)
	assert.Equal(t, cfg.HTTP.MaxIdleConnsPerHost, cfg.HTTPOptions().MaxIdleConnsPerHost)
}
