// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence ENV > File > Defaults.
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader. An empty configPath skips
// the file layer.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) envString(key, defaultVal string) string {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envCSV(key string, defaultVal []string) []string {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseCSV(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

// Load runs defaults, the strict file layer, the environment layer and
// finally Validate.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		mergeFileConfig(&cfg, fileCfg)
	}

	l.mergeEnvConfig(&cfg)
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile parses a YAML file strictly. Unknown fields are fatal.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return parseFile(data)
}

func parseFile(data []byte) (*FileConfig, error) {
	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&fileCfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &FileConfig{}, nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("strict config parse error: %w: %w", ErrUnknownConfigField, err)
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return &fileCfg, nil
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func mergeFileConfig(cfg *AppConfig, f *FileConfig) {
	if p := f.Playback; p != nil {
		set(&cfg.Playback.FetchTimeout, p.FetchTimeout)
		set(&cfg.Playback.ManifestMaxTries, p.ManifestMaxTries)
		set(&cfg.Playback.BackoffBase, p.BackoffBase)
		set(&cfg.Playback.BackoffCap, p.BackoffCap)
		set(&cfg.Playback.BackoffMaxJitter, p.BackoffMaxJitter)
		set(&cfg.Playback.MaxRebuilds, p.MaxRebuilds)
		set(&cfg.Playback.RebuildDelay, p.RebuildDelay)
		set(&cfg.Playback.AudioReassertDelay, p.AudioReassertDelay)
		set(&cfg.Playback.StallNudge, p.StallNudge)
		set(&cfg.Playback.PreferredCodec, p.PreferredCodec)
		set(&cfg.Playback.PreferredLanguage, p.PreferredLanguage)
	}
	if e := f.Engine; e != nil {
		set(&cfg.Engine.MaxBufferLength, e.MaxBufferLength)
		set(&cfg.Engine.MaxMaxBufferLength, e.MaxMaxBufferLength)
		set(&cfg.Engine.MaxBufferHole, e.MaxBufferHole)
		set(&cfg.Engine.LowBufferWatchdogPeriod, e.LowBufferWatchdogPeriod)
		set(&cfg.Engine.RetryDelay, e.RetryDelay)
	}
	if h := f.HTTP; h != nil {
		set(&cfg.HTTP.DialTimeout, h.DialTimeout)
		set(&cfg.HTTP.ResponseHeaderTimeout, h.ResponseHeaderTimeout)
		set(&cfg.HTTP.MaxIdleConnsPerHost, h.MaxIdleConnsPerHost)
		set(&cfg.HTTP.RateLimit, h.RateLimit)
		set(&cfg.HTTP.RateLimitBurst, h.RateLimitBurst)
		set(&cfg.HTTP.UserAgent, h.UserAgent)
	}
	if a := f.API; a != nil {
		set(&cfg.API.ListenAddr, a.ListenAddr)
		set(&cfg.API.RateLimitRequests, a.RateLimitRequests)
		set(&cfg.API.RateLimitWindow, a.RateLimitWindow)
		set(&cfg.API.ShutdownTimeout, a.ShutdownTimeout)
	}
	if o := f.Origins; o != nil {
		set(&cfg.Origins.Restrict, o.Restrict)
		set(&cfg.Origins.Hosts, o.Hosts)
		set(&cfg.Origins.CIDRs, o.CIDRs)
		set(&cfg.Origins.Ports, o.Ports)
	}
	if lg := f.Log; lg != nil {
		set(&cfg.Log.Level, lg.Level)
	}
	if t := f.Telemetry; t != nil {
		set(&cfg.Telemetry.Enabled, t.Enabled)
		set(&cfg.Telemetry.ServiceName, t.ServiceName)
		set(&cfg.Telemetry.ExporterType, t.ExporterType)
		set(&cfg.Telemetry.Endpoint, t.Endpoint)
		set(&cfg.Telemetry.SamplingRate, t.SamplingRate)
	}
}

func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	p := &cfg.Playback
	p.FetchTimeout = l.envDuration("FETCH_TIMEOUT", p.FetchTimeout)
	p.ManifestMaxTries = l.envInt("MANIFEST_MAX_TRIES", p.ManifestMaxTries)
	p.BackoffBase = l.envDuration("BACKOFF_BASE", p.BackoffBase)
	p.BackoffCap = l.envDuration("BACKOFF_CAP", p.BackoffCap)
	p.BackoffMaxJitter = l.envDuration("BACKOFF_MAX_JITTER", p.BackoffMaxJitter)
	p.MaxRebuilds = l.envInt("MAX_REBUILDS", p.MaxRebuilds)
	p.RebuildDelay = l.envDuration("REBUILD_DELAY", p.RebuildDelay)
	p.AudioReassertDelay = l.envDuration("AUDIO_REASSERT_DELAY", p.AudioReassertDelay)
	p.StallNudge = l.envDuration("STALL_NUDGE", p.StallNudge)
	p.PreferredCodec = l.envString("PREFERRED_CODEC", p.PreferredCodec)
	p.PreferredLanguage = l.envString("PREFERRED_LANGUAGE", p.PreferredLanguage)

	e := &cfg.Engine
	e.MaxBufferLength = l.envDuration("ENGINE_MAX_BUFFER_LENGTH", e.MaxBufferLength)
	e.MaxMaxBufferLength = l.envDuration("ENGINE_MAX_MAX_BUFFER_LENGTH", e.MaxMaxBufferLength)
	e.MaxBufferHole = l.envDuration("ENGINE_MAX_BUFFER_HOLE", e.MaxBufferHole)
	e.LowBufferWatchdogPeriod = l.envDuration("ENGINE_WATCHDOG_PERIOD", e.LowBufferWatchdogPeriod)
	e.RetryDelay = l.envDuration("ENGINE_RETRY_DELAY", e.RetryDelay)

	h := &cfg.HTTP
	h.DialTimeout = l.envDuration("HTTP_DIAL_TIMEOUT", h.DialTimeout)
	h.ResponseHeaderTimeout = l.envDuration("HTTP_RESPONSE_HEADER_TIMEOUT", h.ResponseHeaderTimeout)
	h.MaxIdleConnsPerHost = l.envInt("HTTP_MAX_IDLE_CONNS_PER_HOST", h.MaxIdleConnsPerHost)
	h.RateLimit = l.envFloat("HTTP_RATE_LIMIT", h.RateLimit)
	h.RateLimitBurst = l.envInt("HTTP_RATE_LIMIT_BURST", h.RateLimitBurst)
	h.UserAgent = l.envString("HTTP_USER_AGENT", h.UserAgent)

	a := &cfg.API
	a.ListenAddr = l.envString("LISTEN", a.ListenAddr)
	a.RateLimitRequests = l.envInt("API_RATE_LIMIT_REQUESTS", a.RateLimitRequests)
	a.RateLimitWindow = l.envDuration("API_RATE_LIMIT_WINDOW", a.RateLimitWindow)
	a.ShutdownTimeout = l.envDuration("SHUTDOWN_TIMEOUT", a.ShutdownTimeout)

	o := &cfg.Origins
	o.Restrict = l.envBool("ORIGIN_RESTRICT", o.Restrict)
	o.Hosts = l.envCSV("ORIGIN_HOSTS", o.Hosts)
	o.CIDRs = l.envCSV("ORIGIN_CIDRS", o.CIDRs)

	cfg.Log.Level = l.envString("LOG_LEVEL", cfg.Log.Level)

	t := &cfg.Telemetry
	t.Enabled = l.envBool("TELEMETRY_ENABLED", t.Enabled)
	t.ServiceName = l.envString("TELEMETRY_SERVICE_NAME", t.ServiceName)
	t.ExporterType = l.envString("TELEMETRY_EXPORTER", t.ExporterType)
	t.Endpoint = l.envString("TELEMETRY_ENDPOINT", t.Endpoint)
	t.SamplingRate = l.envFloat("TELEMETRY_SAMPLING_RATE", t.SamplingRate)
}
