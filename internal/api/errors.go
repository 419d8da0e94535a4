// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ManuGH/streamguard/internal/session"
)

// errorResponse is the JSON body of every non-2xx answer.
type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
	Notice string `json:"notice,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, kind string, err error) {
	resp := errorResponse{Error: kind}
	if err != nil {
		resp.Detail = err.Error()
	}
	writeJSON(w, code, resp)
}

// playFailure maps a Play error onto a status code and error kind.
func playFailure(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrUnsupported):
		return http.StatusUnsupportedMediaType, "unsupported"
	case errors.Is(err, session.ErrStopped):
		return http.StatusConflict, "superseded"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "start_timeout"
	case errors.Is(err, context.Canceled):
		return 499, "client_closed"
	case errors.Is(err, session.ErrPlaybackUnavailable), errors.Is(err, session.ErrRebuildExhausted):
		return http.StatusBadGateway, "playback_unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
