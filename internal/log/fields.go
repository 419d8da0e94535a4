// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSessionID  = "session_id"
	FieldRequestID  = "request_id"
	FieldGeneration = "generation"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Playback fields
	FieldURL        = "url"
	FieldRendition  = "rendition"
	FieldAudioTrack = "audio_track"
	FieldAttempt    = "attempt"
	FieldMaxTries   = "max_tries"
	FieldDetail     = "detail"
	FieldErrorType  = "error_type"
	FieldFatal      = "fatal"
	FieldClass      = "class"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Network fields
	FieldStatusCode = "status_code"
	FieldDelay      = "delay"
)
