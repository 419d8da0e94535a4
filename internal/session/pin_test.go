// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/streamguard/internal/hls"
)

func TestSelectRendition(t *testing.T) {
	tests := []struct {
		name   string
		codecs []string
		want   int
	}{
		{"empty", nil, Unset},
		{"codec match first", []string{"ac-3", "mp4a.40.2", "mp4a.40.5"}, 1},
		{"codec match case-insensitive", []string{"ec-3", "MP4A.40.2"}, 1},
		{"no match takes middle of three", []string{"ac-3", "ac-3", "ac-3"}, 1},
		{"no match takes middle of four", []string{"", "", "", ""}, 2},
		{"single", []string{""}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			levels := make([]hls.Rendition, len(tt.codecs))
			for i, c := range tt.codecs {
				levels[i] = hls.Rendition{Index: i, AudioCodec: c}
			}
			assert.Equal(t, tt.want, SelectRendition(levels, "mp4a.40"))
		})
	}
}

func TestSelectAudioTrack(t *testing.T) {
	tests := []struct {
		name   string
		tracks []hls.AudioTrack
		want   int
	}{
		{"empty", nil, Unset},
		{"default wins", []hls.AudioTrack{{Language: "en"}, {Language: "de", Default: true}}, 1},
		{"autoselect wins", []hls.AudioTrack{{Language: "en"}, {Language: "fr", Autoselect: true}}, 1},
		{"language prefix", []hls.AudioTrack{{Language: "de"}, {Language: "en-US"}}, 1},
		{"fallback zero", []hls.AudioTrack{{Language: "de"}, {Language: "fr"}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectAudioTrack(tt.tracks, "en"))
		})
	}
}

func TestNextRendition_WalksRoundRobin(t *testing.T) {
	p := newPinState()
	p.Rendition = 1
	p.markTried(1)

	var walk []int
	for {
		next, err := p.NextRendition(3)
		if err != nil {
			require.ErrorIs(t, err, ErrFailoverExhausted)
			break
		}
		walk = append(walk, next)
		p.Rendition = next
		p.markTried(next)
	}
	assert.Equal(t, []int{2, 0}, walk)
	assert.Equal(t, []int{0, 1, 2}, p.TriedList())
}

func TestNextRendition_UnsetStartsAtZero(t *testing.T) {
	p := newPinState()
	next, err := p.NextRendition(2)
	require.NoError(t, err)
	assert.Equal(t, 0, next)

	_, err = p.NextRendition(0)
	assert.ErrorIs(t, err, ErrFailoverExhausted)
}
