// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

func ptr[T any](v T) *T { return &v }

// ptrSlice leaves empty lists out of the rendered file.
func ptrSlice[T any](v []T) *[]T {
	if len(v) == 0 {
		return nil
	}
	return &v
}

// ToFile renders an effective configuration in file form, every key set.
// Loading the result yields cfg again (minus Version).
func ToFile(cfg AppConfig) FileConfig {
	p, e, h, a, t := cfg.Playback, cfg.Engine, cfg.HTTP, cfg.API, cfg.Telemetry
	return FileConfig{
		Playback: &FilePlayback{
			FetchTimeout:       ptr(p.FetchTimeout),
			ManifestMaxTries:   ptr(p.ManifestMaxTries),
			BackoffBase:        ptr(p.BackoffBase),
			BackoffCap:         ptr(p.BackoffCap),
			BackoffMaxJitter:   ptr(p.BackoffMaxJitter),
			MaxRebuilds:        ptr(p.MaxRebuilds),
			RebuildDelay:       ptr(p.RebuildDelay),
			AudioReassertDelay: ptr(p.AudioReassertDelay),
			StallNudge:         ptr(p.StallNudge),
			PreferredCodec:     ptr(p.PreferredCodec),
			PreferredLanguage:  ptr(p.PreferredLanguage),
		},
		Engine: &FileEngine{
			MaxBufferLength:         ptr(e.MaxBufferLength),
			MaxMaxBufferLength:      ptr(e.MaxMaxBufferLength),
			MaxBufferHole:           ptr(e.MaxBufferHole),
			LowBufferWatchdogPeriod: ptr(e.LowBufferWatchdogPeriod),
			RetryDelay:              ptr(e.RetryDelay),
		},
		HTTP: &FileHTTP{
			DialTimeout:           ptr(h.DialTimeout),
			ResponseHeaderTimeout: ptr(h.ResponseHeaderTimeout),
			MaxIdleConnsPerHost:   ptr(h.MaxIdleConnsPerHost),
			RateLimit:             ptr(h.RateLimit),
			RateLimitBurst:        ptr(h.RateLimitBurst),
			UserAgent:             ptr(h.UserAgent),
		},
		API: &FileAPI{
			ListenAddr:        ptr(a.ListenAddr),
			RateLimitRequests: ptr(a.RateLimitRequests),
			RateLimitWindow:   ptr(a.RateLimitWindow),
			ShutdownTimeout:   ptr(a.ShutdownTimeout),
		},
		Origins: &FileOrigins{
			Restrict: ptr(cfg.Origins.Restrict),
			Hosts:    ptrSlice(cfg.Origins.Hosts),
			CIDRs:    ptrSlice(cfg.Origins.CIDRs),
			Ports:    ptrSlice(cfg.Origins.Ports),
		},
		Log: &FileLog{Level: ptr(cfg.Log.Level)},
		Telemetry: &FileTelemetry{
			Enabled:      ptr(t.Enabled),
			ServiceName:  ptr(t.ServiceName),
			ExporterType: ptr(t.ExporterType),
			Endpoint:     ptr(t.Endpoint),
			SamplingRate: ptr(t.SamplingRate),
		},
	}
}
