// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import "time"

// AppConfig is the effective, validated configuration.
type AppConfig struct {
	Version   string
	Playback  PlaybackConfig
	Engine    EngineConfig
	HTTP      HTTPConfig
	API       APIConfig
	Origins   OriginConfig
	Log       LogConfig
	Telemetry TelemetryConfig
}

// PlaybackConfig tunes manifest probing and session recovery.
type PlaybackConfig struct {
	FetchTimeout       time.Duration
	ManifestMaxTries   int
	BackoffBase        time.Duration
	BackoffCap         time.Duration
	BackoffMaxJitter   time.Duration
	MaxRebuilds        int
	RebuildDelay       time.Duration
	AudioReassertDelay time.Duration
	StallNudge         time.Duration
	PreferredCodec     string
	PreferredLanguage  string
}

// EngineConfig is the engine buffer tuning.
type EngineConfig struct {
	MaxBufferLength         time.Duration
	MaxMaxBufferLength      time.Duration
	MaxBufferHole           time.Duration
	LowBufferWatchdogPeriod time.Duration
	RetryDelay              time.Duration
}

// HTTPConfig hardens the outbound client.
type HTTPConfig struct {
	DialTimeout           time.Duration
	ResponseHeaderTimeout time.Duration
	MaxIdleConnsPerHost   int
	RateLimit             float64 // requests per second
	RateLimitBurst        int
	UserAgent             string
}

// APIConfig configures the control API.
type APIConfig struct {
	ListenAddr        string
	RateLimitRequests int
	RateLimitWindow   time.Duration
	ShutdownTimeout   time.Duration
}

// OriginConfig restricts which manifest origins the API accepts.
type OriginConfig struct {
	Restrict bool
	Hosts    []string
	CIDRs    []string
	Ports    []int
}

type LogConfig struct {
	Level string
}

type TelemetryConfig struct {
	Enabled      bool
	ServiceName  string
	ExporterType string // grpc | http
	Endpoint     string
	SamplingRate float64
}

// FileConfig mirrors the YAML file. Pointer fields distinguish "absent"
// from an explicit zero.
type FileConfig struct {
	Playback  *FilePlayback  `yaml:"playback,omitempty"`
	Engine    *FileEngine    `yaml:"engine,omitempty"`
	HTTP      *FileHTTP      `yaml:"http,omitempty"`
	API       *FileAPI       `yaml:"api,omitempty"`
	Origins   *FileOrigins   `yaml:"origins,omitempty"`
	Log       *FileLog       `yaml:"log,omitempty"`
	Telemetry *FileTelemetry `yaml:"telemetry,omitempty"`
}

type FilePlayback struct {
	FetchTimeout       *time.Duration `yaml:"fetchTimeout,omitempty"`
	ManifestMaxTries   *int           `yaml:"manifestMaxTries,omitempty"`
	BackoffBase        *time.Duration `yaml:"backoffBase,omitempty"`
	BackoffCap         *time.Duration `yaml:"backoffCap,omitempty"`
	BackoffMaxJitter   *time.Duration `yaml:"backoffMaxJitter,omitempty"`
	MaxRebuilds        *int           `yaml:"maxRebuilds,omitempty"`
	RebuildDelay       *time.Duration `yaml:"rebuildDelay,omitempty"`
	AudioReassertDelay *time.Duration `yaml:"audioReassertDelay,omitempty"`
	StallNudge         *time.Duration `yaml:"stallNudge,omitempty"`
	PreferredCodec     *string        `yaml:"preferredCodec,omitempty"`
	PreferredLanguage  *string        `yaml:"preferredLanguage,omitempty"`
}

type FileEngine struct {
	MaxBufferLength         *time.Duration `yaml:"maxBufferLength,omitempty"`
	MaxMaxBufferLength      *time.Duration `yaml:"maxMaxBufferLength,omitempty"`
	MaxBufferHole           *time.Duration `yaml:"maxBufferHole,omitempty"`
	LowBufferWatchdogPeriod *time.Duration `yaml:"lowBufferWatchdogPeriod,omitempty"`
	RetryDelay              *time.Duration `yaml:"retryDelay,omitempty"`
}

type FileHTTP struct {
	DialTimeout           *time.Duration `yaml:"dialTimeout,omitempty"`
	ResponseHeaderTimeout *time.Duration `yaml:"responseHeaderTimeout,omitempty"`
	MaxIdleConnsPerHost   *int           `yaml:"maxIdleConnsPerHost,omitempty"`
	RateLimit             *float64       `yaml:"rateLimit,omitempty"`
	RateLimitBurst        *int           `yaml:"rateLimitBurst,omitempty"`
	UserAgent             *string        `yaml:"userAgent,omitempty"`
}

type FileAPI struct {
	ListenAddr        *string        `yaml:"listenAddr,omitempty"`
	RateLimitRequests *int           `yaml:"rateLimitRequests,omitempty"`
	RateLimitWindow   *time.Duration `yaml:"rateLimitWindow,omitempty"`
	ShutdownTimeout   *time.Duration `yaml:"shutdownTimeout,omitempty"`
}

type FileOrigins struct {
	Restrict *bool     `yaml:"restrict,omitempty"`
	Hosts    *[]string `yaml:"hosts,omitempty"`
	CIDRs    *[]string `yaml:"cidrs,omitempty"`
	Ports    *[]int    `yaml:"ports,omitempty"`
}

type FileLog struct {
	Level *string `yaml:"level,omitempty"`
}

type FileTelemetry struct {
	Enabled      *bool    `yaml:"enabled,omitempty"`
	ServiceName  *string  `yaml:"serviceName,omitempty"`
	ExporterType *string  `yaml:"exporterType,omitempty"`
	Endpoint     *string  `yaml:"endpoint,omitempty"`
	SamplingRate *float64 `yaml:"samplingRate,omitempty"`
}
