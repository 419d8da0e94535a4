// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package fetch

import (
	"errors"
	"fmt"
)

// Kind classifies a failed fetch.
type Kind string

const (
	KindTimeout    Kind = "timeout"
	KindHTTPStatus Kind = "http_status"
	// KindTransport covers failures that produced neither a response nor a
	// timeout: DNS, refused connections, resets, oversized bodies.
	KindTransport Kind = "transport"
)

var (
	// ErrTimeout matches any *Error of KindTimeout via errors.Is.
	ErrTimeout = errors.New("fetch timed out")
	// ErrHTTPStatus matches any *Error of KindHTTPStatus via errors.Is.
	ErrHTTPStatus = errors.New("fetch returned non-success status")
	// ErrBodyTooLarge is wrapped when a response exceeds the body limit.
	ErrBodyTooLarge = errors.New("response body exceeds limit")
)

// Error is the failure returned by Client.Get.
type Error struct {
	Kind       Kind
	URL        string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindTimeout:
		return fmt.Sprintf("fetch %s: timed out", e.URL)
	case KindHTTPStatus:
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	default:
		if e.Err != nil {
			return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
		}
		return fmt.Sprintf("fetch %s: failed", e.URL)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets callers match on the kind sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrHTTPStatus:
		return e.Kind == KindHTTPStatus
	}
	return false
}

// StatusCode extracts the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var fe *Error
	if errors.As(err, &fe) && fe.Kind == KindHTTPStatus {
		return fe.StatusCode
	}
	return 0
}
