// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package engine defines the adaptive-streaming engine capability the session
// controller drives, and the media sink it plays into.
package engine

import (
	"errors"
	"time"

	"github.com/ManuGH/streamguard/internal/hls"
)

// ErrUnsupported is returned by factories that cannot play the source type.
var ErrUnsupported = errors.New("unsupported playback format")

// Options tune engine buffering. Defaults mirror the player the controller
// was built for: 30s target buffer, 60s ceiling, 0.5s tolerated holes.
type Options struct {
	MaxBufferLength         time.Duration
	MaxMaxBufferLength      time.Duration
	MaxBufferHole           time.Duration
	LowBufferWatchdogPeriod time.Duration
}

// DefaultOptions returns the standard buffer tuning.
func DefaultOptions() Options {
	return Options{
		MaxBufferLength:         30 * time.Second,
		MaxMaxBufferLength:      60 * time.Second,
		MaxBufferHole:           500 * time.Millisecond,
		LowBufferWatchdogPeriod: 500 * time.Millisecond,
	}
}

// MediaSink is the playback element. The controller commands it but never
// owns its lifecycle.
type MediaSink interface {
	CurrentTime() time.Duration
	Seeking() bool
	Seek(pos time.Duration)
	Play() error
}

// Engine is one adaptive-streaming engine instance. Methods other than
// Events and Destroy may only be called by the owning session loop.
type Engine interface {
	AttachMedia(sink MediaSink) error
	LoadSource(url string) error
	StartLoad()
	StopLoad()

	// Levels and AudioTracks are populated after EventManifestParsed.
	Levels() []hls.Rendition
	AudioTracks() []hls.AudioTrack

	SetLevel(index int)
	SetAudioTrack(index int)
	DisableAutoLevel()
	RecoverMediaError()

	// Destroy releases the instance. Further events are not delivered.
	Destroy()
	Events() <-chan Event
}

// SubtitleLister is implemented by engines that enumerate subtitle tracks.
type SubtitleLister interface {
	Subtitles() []hls.SubtitleTrack
}

// Factory constructs engines.
type Factory interface {
	// Supported reports whether the runtime can play adaptive streams at all.
	Supported() bool
	New(opts Options) (Engine, error)
}
