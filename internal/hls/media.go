// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package hls

import (
	"bufio"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// SegmentTruth represents authoritative timeline metadata derived from a media playlist.
type SegmentTruth struct {
	HasPDT        bool
	FirstPDT      time.Time
	LastPDT       time.Time
	LastDuration  time.Duration
	TotalDuration time.Duration
	IsVOD         bool // #EXT-X-PLAYLIST-TYPE:VOD or #EXT-X-ENDLIST
}

// Segment is one media segment in playlist order.
type Segment struct {
	Sequence int
	URI      string
	Duration time.Duration
}

// MediaPlaylist is a parsed media playlist.
type MediaPlaylist struct {
	TargetDuration time.Duration
	MediaSequence  int
	Segments       []Segment
	Truth          SegmentTruth
}

// ExtractSegmentTruth parses a playlist to extract timeline metadata.
// It fails on non-monotonic PDT and on partial PDT coverage in live playlists.
func ExtractSegmentTruth(playlist string) (*SegmentTruth, error) {
	mp, err := parseMedia(playlist, nil)
	if err != nil {
		return nil, err
	}
	return &mp.Truth, nil
}

// ParseMedia parses a media playlist fetched from baseURL, resolving segment URIs.
func ParseMedia(body, baseURL string) (*MediaPlaylist, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if !hasHeader(body) {
		return nil, ErrMissingHeader
	}
	return parseMedia(body, base)
}

func parseMedia(playlist string, base *url.URL) (*MediaPlaylist, error) {
	scanner := bufio.NewScanner(strings.NewReader(playlist))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	mp := &MediaPlaylist{}
	truth := &mp.Truth

	var (
		nextDuration       time.Duration
		nextPDT            time.Time
		hasEndList         bool
		hasPlaylistTypeVOD bool

		lastPDT         time.Time
		segmentsWithPDT int
	)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "#EXT-X-PLAYLIST-TYPE:VOD"):
			hasPlaylistTypeVOD = true

		case line == "#EXT-X-ENDLIST":
			hasEndList = true

		case strings.HasPrefix(line, "#EXT-X-TARGETDURATION:"):
			secs, err := strconv.ParseFloat(strings.TrimPrefix(line, "#EXT-X-TARGETDURATION:"), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid target duration: %s", line)
			}
			mp.TargetDuration = time.Duration(secs * float64(time.Second))

		case strings.HasPrefix(line, "#EXT-X-MEDIA-SEQUENCE:"):
			seq, err := strconv.Atoi(strings.TrimPrefix(line, "#EXT-X-MEDIA-SEQUENCE:"))
			if err != nil {
				return nil, fmt.Errorf("invalid media sequence: %s", line)
			}
			mp.MediaSequence = seq

		case strings.HasPrefix(line, "#EXT-X-PROGRAM-DATE-TIME:"):
			pdtStr := strings.TrimPrefix(line, "#EXT-X-PROGRAM-DATE-TIME:")
			t, err := time.Parse(time.RFC3339Nano, pdtStr)
			if err != nil {
				t, err = time.Parse(time.RFC3339, pdtStr)
				if err != nil {
					return nil, fmt.Errorf("invalid PDT format: %s", pdtStr)
				}
			}
			if !lastPDT.IsZero() && t.Before(lastPDT) {
				return nil, fmt.Errorf("PDT non-monotonic: %v < %v", t, lastPDT)
			}
			nextPDT = t
			lastPDT = t

		case strings.HasPrefix(line, "#EXTINF:"):
			// #EXTINF:10.000,
			durPart := strings.TrimPrefix(line, "#EXTINF:")
			if idx := strings.Index(durPart, ","); idx != -1 {
				durPart = durPart[:idx]
			}
			secs, err := strconv.ParseFloat(durPart, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid EXTINF duration: %s", durPart)
			}
			nextDuration = time.Duration(secs * float64(time.Second))

		case strings.HasPrefix(line, "#"):
			continue

		default:
			uri := line
			if base != nil {
				uri = resolve(base, line)
			}
			mp.Segments = append(mp.Segments, Segment{
				Sequence: mp.MediaSequence + len(mp.Segments),
				URI:      uri,
				Duration: nextDuration,
			})

			truth.TotalDuration += nextDuration
			truth.LastDuration = nextDuration
			if !nextPDT.IsZero() {
				segmentsWithPDT++
				if truth.FirstPDT.IsZero() {
					truth.FirstPDT = nextPDT
				}
				truth.LastPDT = nextPDT
			}

			nextDuration = 0
			nextPDT = time.Time{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	truth.IsVOD = hasPlaylistTypeVOD || hasEndList
	truth.HasPDT = segmentsWithPDT > 0

	if !truth.IsVOD && truth.HasPDT && segmentsWithPDT != len(mp.Segments) {
		return nil, fmt.Errorf("partial PDT coverage in live playlist (found %d/%d)", segmentsWithPDT, len(mp.Segments))
	}
	return mp, nil
}
