// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"errors"
	"fmt"

	"github.com/ManuGH/streamguard/internal/engine"
)

var (
	// ErrFailoverExhausted means every rendition has been tried since the last rebuild.
	ErrFailoverExhausted = errors.New("rendition failover exhausted")
	// ErrRebuildExhausted means the rebuild cap was reached.
	ErrRebuildExhausted = errors.New("session rebuild exhausted")
	// ErrPlaybackUnavailable wraps boot failures that reached the notice sink.
	ErrPlaybackUnavailable = errors.New("playback unavailable")
	// ErrUnsupported is returned by Play when the engine cannot run here.
	ErrUnsupported = fmt.Errorf("%w: m3u8", engine.ErrUnsupported)
	// ErrStopped is returned by a Play that was interrupted by Stop.
	ErrStopped = errors.New("session stopped")
)

// Notice texts written to the NoticeSink.
const (
	NoticeUnsupported         = "Unsupported playback format: m3u8"
	NoticeManifestUnreachable = "Stream unavailable: the playlist could not be loaded"
	NoticeRebuildExhausted    = "Playback stopped: the stream could not be recovered"
	NoticeEngineFailed        = "Playback unavailable: the player could not start"
)
