// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import "github.com/ManuGH/streamguard/internal/engine"

// Class is the recovery class of an engine error.
type Class string

const (
	ClassManifest     Class = "manifest"
	ClassRendition    Class = "rendition"
	ClassFatalNetwork Class = "fatal_network"
	ClassFatalMedia   Class = "fatal_media"
	ClassFatalOther   Class = "fatal_other"
	ClassStall        Class = "stall"
	ClassIgnored      Class = "ignored"
)

// Classify maps an engine error to its recovery class. Detail-specific
// rules take precedence over the fatal/type fallback.
func Classify(d *engine.ErrorData) Class {
	if d == nil {
		return ClassIgnored
	}
	switch d.Detail {
	case engine.DetailBufferStalledError:
		if !d.Fatal {
			return ClassStall
		}
	case engine.DetailManifestLoadError,
		engine.DetailManifestLoadTimeOut,
		engine.DetailManifestParsingError:
		return ClassManifest
	case engine.DetailAudioParsingError,
		engine.DetailAudioTrackLoadError,
		engine.DetailAudioTrackLoadTimeOut,
		engine.DetailBufferAppendError,
		engine.DetailBufferAppendingError:
		if !d.Fatal {
			return ClassRendition
		}
	}

	if !d.Fatal {
		return ClassIgnored
	}
	switch d.Type {
	case engine.ErrorTypeNetwork:
		return ClassFatalNetwork
	case engine.ErrorTypeMedia:
		return ClassFatalMedia
	default:
		return ClassFatalOther
	}
}
