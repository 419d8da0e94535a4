// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		Playback: PlaybackConfig{
			FetchTimeout:       5 * time.Second,
			ManifestMaxTries:   7,
			BackoffBase:        500 * time.Millisecond,
			BackoffCap:         8 * time.Second,
			BackoffMaxJitter:   250 * time.Millisecond,
			MaxRebuilds:        3,
			RebuildDelay:       time.Second,
			AudioReassertDelay: 500 * time.Millisecond,
			StallNudge:         100 * time.Millisecond,
			PreferredCodec:     "mp4a.40",
			PreferredLanguage:  "en",
		},
		Engine: EngineConfig{
			MaxBufferLength:         30 * time.Second,
			MaxMaxBufferLength:      60 * time.Second,
			MaxBufferHole:           500 * time.Millisecond,
			LowBufferWatchdogPeriod: 500 * time.Millisecond,
			RetryDelay:              time.Second,
		},
		HTTP: HTTPConfig{
			DialTimeout:           3 * time.Second,
			ResponseHeaderTimeout: 5 * time.Second,
			MaxIdleConnsPerHost:   8,
			RateLimit:             20,
			RateLimitBurst:        40,
			UserAgent:             "streamguard",
		},
		API: APIConfig{
			ListenAddr:        ":8080",
			RateLimitRequests: 60,
			RateLimitWindow:   time.Minute,
			ShutdownTimeout:   10 * time.Second,
		},
		Log: LogConfig{Level: "info"},
		Telemetry: TelemetryConfig{
			ServiceName:  "streamguard",
			ExporterType: "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
	}
}
