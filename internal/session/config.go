// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"time"

	"github.com/ManuGH/streamguard/internal/engine"
)

// Config tunes recovery. Zero fields take DefaultConfig values.
type Config struct {
	ManifestMaxTries   int
	MaxRebuilds        int
	RebuildDelay       time.Duration
	AudioReassertDelay time.Duration
	StallNudge         time.Duration
	PreferredCodec     string
	PreferredLanguage  string
	Engine             engine.Options
}

func DefaultConfig() Config {
	return Config{
		ManifestMaxTries:   7,
		MaxRebuilds:        3,
		RebuildDelay:       time.Second,
		AudioReassertDelay: 500 * time.Millisecond,
		StallNudge:         100 * time.Millisecond,
		PreferredCodec:     "mp4a.40",
		PreferredLanguage:  "en",
		Engine:             engine.DefaultOptions(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ManifestMaxTries <= 0 {
		c.ManifestMaxTries = d.ManifestMaxTries
	}
	if c.MaxRebuilds <= 0 {
		c.MaxRebuilds = d.MaxRebuilds
	}
	if c.RebuildDelay <= 0 {
		c.RebuildDelay = d.RebuildDelay
	}
	if c.AudioReassertDelay <= 0 {
		c.AudioReassertDelay = d.AudioReassertDelay
	}
	if c.StallNudge <= 0 {
		c.StallNudge = d.StallNudge
	}
	if c.PreferredCodec == "" {
		c.PreferredCodec = d.PreferredCodec
	}
	if c.PreferredLanguage == "" {
		c.PreferredLanguage = d.PreferredLanguage
	}
	if c.Engine == (engine.Options{}) {
		c.Engine = d.Engine
	}
	return c
}
