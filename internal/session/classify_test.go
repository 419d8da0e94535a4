// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"testing"

	"github.com/ManuGH/streamguard/internal/engine"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		typ    engine.ErrorType
		detail engine.Detail
		fatal  bool
		want   Class
	}{
		{engine.ErrorTypeMedia, engine.DetailBufferStalledError, false, ClassStall},
		{engine.ErrorTypeNetwork, engine.DetailManifestLoadError, true, ClassManifest},
		{engine.ErrorTypeNetwork, engine.DetailManifestLoadTimeOut, false, ClassManifest},
		{engine.ErrorTypeNetwork, engine.DetailManifestParsingError, true, ClassManifest},
		{engine.ErrorTypeMedia, engine.DetailAudioParsingError, false, ClassRendition},
		{engine.ErrorTypeNetwork, engine.DetailAudioTrackLoadError, false, ClassRendition},
		{engine.ErrorTypeNetwork, engine.DetailAudioTrackLoadTimeOut, false, ClassRendition},
		{engine.ErrorTypeMedia, engine.DetailBufferAppendError, false, ClassRendition},
		{engine.ErrorTypeMedia, engine.DetailBufferAppendingError, false, ClassRendition},
		{engine.ErrorTypeMedia, engine.DetailBufferAppendError, true, ClassFatalMedia},
		{engine.ErrorTypeNetwork, engine.DetailFragLoadError, true, ClassFatalNetwork},
		{engine.ErrorTypeNetwork, engine.DetailLevelLoadError, true, ClassFatalNetwork},
		{engine.ErrorTypeMux, engine.DetailInternalException, true, ClassFatalOther},
		{engine.ErrorTypeOther, engine.DetailInternalException, true, ClassFatalOther},
		{engine.ErrorTypeNetwork, engine.DetailFragLoadError, false, ClassIgnored},
		{engine.ErrorTypeOther, engine.DetailInternalException, false, ClassIgnored},
	}
	for _, tt := range tests {
		d := &engine.ErrorData{Type: tt.typ, Detail: tt.detail, Fatal: tt.fatal}
		if got := Classify(d); got != tt.want {
			t.Errorf("Classify(%s) = %s, want %s", d, got, tt.want)
		}
	}
	if got := Classify(nil); got != ClassIgnored {
		t.Errorf("Classify(nil) = %s, want %s", got, ClassIgnored)
	}
}
