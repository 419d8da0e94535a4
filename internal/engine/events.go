// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package engine

import "fmt"

// EventKind identifies an engine event.
type EventKind string

const (
	EventManifestParsed     EventKind = "manifestParsed"
	EventLevelSwitched      EventKind = "levelSwitched"
	EventAudioTrackSwitched EventKind = "audioTrackSwitched"
	EventError              EventKind = "error"
)

// ErrorType is the coarse engine error category.
type ErrorType string

const (
	ErrorTypeNetwork ErrorType = "networkError"
	ErrorTypeMedia   ErrorType = "mediaError"
	ErrorTypeMux     ErrorType = "muxError"
	ErrorTypeOther   ErrorType = "otherError"
)

// Detail is the fine-grained engine error code.
type Detail string

const (
	DetailManifestLoadError     Detail = "manifestLoadError"
	DetailManifestLoadTimeOut   Detail = "manifestLoadTimeOut"
	DetailManifestParsingError  Detail = "manifestParsingError"
	DetailLevelLoadError        Detail = "levelLoadError"
	DetailFragLoadError         Detail = "fragLoadError"
	DetailAudioParsingError     Detail = "audioParsingError"
	DetailAudioTrackLoadError   Detail = "audioTrackLoadError"
	DetailAudioTrackLoadTimeOut Detail = "audioTrackLoadTimeOut"
	DetailBufferAppendError     Detail = "bufferAppendError"
	DetailBufferAppendingError  Detail = "bufferAppendingError"
	DetailBufferStalledError    Detail = "bufferStalledError"
	DetailInternalException     Detail = "internalException"
)

// ErrorData describes an EventError.
type ErrorData struct {
	Type   ErrorType
	Detail Detail
	Fatal  bool
	Err    error
}

func (d ErrorData) String() string {
	return fmt.Sprintf("%s/%s fatal=%t", d.Type, d.Detail, d.Fatal)
}

// Event is delivered on Engine.Events. Level and AudioTrack carry the new
// index for switch events.
type Event struct {
	Kind       EventKind
	Level      int
	AudioTrack int
	Error      *ErrorData
}

// ErrorEvent builds an EventError.
func ErrorEvent(t ErrorType, d Detail, fatal bool, err error) Event {
	return Event{Kind: EventError, Error: &ErrorData{Type: t, Detail: d, Fatal: fatal, Err: err}}
}
