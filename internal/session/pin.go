// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"sort"
	"strings"

	"github.com/ManuGH/streamguard/internal/hls"
)

// Unset marks an unpinned rendition or audio track.
const Unset = -1

// PinState is the held rendition/audio choice. Tried only grows until the
// next rebuild replaces the whole PinState.
type PinState struct {
	Selected   bool
	Rendition  int
	AudioTrack int
	tried      map[int]struct{}
}

func newPinState() PinState {
	return PinState{Rendition: Unset, AudioTrack: Unset, tried: map[int]struct{}{}}
}

func (p *PinState) markTried(i int) {
	p.tried[i] = struct{}{}
}

// Tried reports whether rendition i has been pinned before.
func (p *PinState) Tried(i int) bool {
	_, ok := p.tried[i]
	return ok
}

// TriedList returns the tried renditions in ascending order.
func (p *PinState) TriedList() []int {
	out := make([]int, 0, len(p.tried))
	for i := range p.tried {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// SelectRendition picks the first rendition whose audio codec starts with
// preferredCodec, else the middle one. An empty set yields Unset.
func SelectRendition(levels []hls.Rendition, preferredCodec string) int {
	if len(levels) == 0 {
		return Unset
	}
	if preferredCodec != "" {
		for i, r := range levels {
			if strings.HasPrefix(strings.ToLower(r.AudioCodec), strings.ToLower(preferredCodec)) {
				return i
			}
		}
	}
	return len(levels) / 2
}

// SelectAudioTrack picks the first default or autoselect track, else the
// first whose language starts with preferredLang, else 0. An empty set
// yields Unset.
func SelectAudioTrack(tracks []hls.AudioTrack, preferredLang string) int {
	if len(tracks) == 0 {
		return Unset
	}
	for i, t := range tracks {
		if t.Default || t.Autoselect {
			return i
		}
	}
	if preferredLang != "" {
		for i, t := range tracks {
			if strings.HasPrefix(strings.ToLower(t.Language), strings.ToLower(preferredLang)) {
				return i
			}
		}
	}
	return 0
}

// NextRendition walks round-robin from the pinned rendition, skipping tried
// ones. It returns ErrFailoverExhausted when every rendition was tried.
func (p *PinState) NextRendition(n int) (int, error) {
	for step := 1; step <= n; step++ {
		idx := (p.Rendition + step) % n
		if idx < 0 {
			idx += n
		}
		if !p.Tried(idx) {
			return idx, nil
		}
	}
	return Unset, ErrFailoverExhausted
}
