// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package validate

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamURL(t *testing.T) {
	tests := []struct {
		url   string
		valid bool
	}{
		{"http://origin.example/live/master.m3u8", true},
		{"https://cdn.example/vod/index.m3u8?token=x", true},
		{"", false},
		{"ftp://origin.example/live.m3u8", false},
		{"http:///live.m3u8", false},
		{"http://origin.example", false},
		{"http://origin.example/", false},
		{"://bad", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			v := New()
			v.StreamURL("url", tt.url)
			assert.Equal(t, tt.valid, v.IsValid(), "errors: %v", v.Errors())
		})
	}
}

func TestListenAddr(t *testing.T) {
	for addr, valid := range map[string]bool{
		":8080":          true,
		"127.0.0.1:9000": true,
		"[::1]:80":       true,
		"8080":           false,
		"host:port":      false,
		":70000":         false,
	} {
		v := New()
		v.ListenAddr("listen", addr)
		assert.Equal(t, valid, v.IsValid(), addr)
	}
}

func TestValidator_AccumulatesErrors(t *testing.T) {
	v := New()
	v.Positive("tries", 0)
	v.NonNegative("rebuilds", -1)
	v.PositiveDuration("timeout", 0)
	v.NonNegativeDuration("jitter", -time.Second)
	v.Range("burst", 5, 1, 3)
	v.FloatRange("rate", 1.5, 0, 1)
	v.OneOf("level", "loud", LogLevels)
	v.NotEmpty("codec", "  ")
	v.Custom("x", 1, func(any) error { return errors.New("nope") })

	require.False(t, v.IsValid())
	assert.Len(t, v.Errors(), 9)

	err := v.Err()
	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors(), 9)
	assert.Contains(t, err.Error(), "validation failed for tries")
	assert.Contains(t, err.Error(), "; ")
}

func TestValidator_ValidIsNil(t *testing.T) {
	v := New()
	v.Positive("tries", 1)
	v.OneOf("level", "info", LogLevels)
	assert.NoError(t, v.Err())
}

func TestParseLogLevel(t *testing.T) {
	lvl, err := ParseLogLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, LogLevelWarn, lvl)

	_, err = ParseLogLevel("verbose")
	assert.ErrorIs(t, err, ErrInvalidLogLevel)
}
