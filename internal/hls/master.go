// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package hls parses the parts of HLS playlists the player depends on.
package hls

import (
	"bufio"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrMissingHeader is returned when the body does not start with #EXTM3U.
	ErrMissingHeader = errors.New("playlist missing #EXTM3U header")
	// ErrNoVariants is returned for a master playlist without usable variants.
	ErrNoVariants = errors.New("playlist declares no variants")
)

// Rendition is one quality variant of a stream.
type Rendition struct {
	Index      int
	Bandwidth  int
	Codecs     string
	AudioCodec string
	Resolution string
	AudioGroup string
	URI        string
}

// AudioTrack is an alternative audio rendition (#EXT-X-MEDIA TYPE=AUDIO).
type AudioTrack struct {
	Index      int
	GroupID    string
	Name       string
	Language   string
	Default    bool
	Autoselect bool
	URI        string
}

// SubtitleTrack is an alternative subtitle rendition. Only enumerated.
type SubtitleTrack struct {
	Name     string
	Language string
	Default  bool
	URI      string
}

// Master is a parsed multivariant playlist.
type Master struct {
	Renditions []Rendition
	Audio      []AudioTrack
	Subtitles  []SubtitleTrack
}

var attrRe = regexp.MustCompile(`([A-Z0-9-]+)=("(?:[^"\\]|\\.)*"|[^,]*)`)

// ParseAttributes splits an attribute list (KEY=VALUE,KEY="quoted, value")
// into a map. Quotes are stripped from quoted values.
func ParseAttributes(list string) map[string]string {
	attrs := make(map[string]string)
	for _, m := range attrRe.FindAllStringSubmatch(list, -1) {
		val := m[2]
		if len(val) >= 2 && strings.HasPrefix(val, `"`) && strings.HasSuffix(val, `"`) {
			val = val[1 : len(val)-1]
		}
		attrs[m[1]] = val
	}
	return attrs
}

var audioCodecPrefixes = []string{"mp4a.", "ac-3", "ec-3", "opus", "flac", "mp3"}

// AudioCodec returns the audio entry of a CODECS attribute, or "".
func AudioCodec(codecs string) string {
	for _, c := range strings.Split(codecs, ",") {
		c = strings.TrimSpace(c)
		lc := strings.ToLower(c)
		for _, p := range audioCodecPrefixes {
			if strings.HasPrefix(lc, p) {
				return c
			}
		}
	}
	return ""
}

// IsMaster reports whether body declares variant streams.
func IsMaster(body string) bool {
	return strings.Contains(body, "#EXT-X-STREAM-INF")
}

// ParseMaster parses a multivariant playlist fetched from baseURL. A media
// playlist yields a single rendition pointing at baseURL itself.
func ParseMaster(body, baseURL string) (*Master, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if !hasHeader(body) {
		return nil, ErrMissingHeader
	}

	m := &Master{}
	if !IsMaster(body) {
		if !strings.Contains(body, "#EXTINF") {
			return nil, ErrNoVariants
		}
		m.Renditions = []Rendition{{Index: 0, URI: base.String()}}
		return m, nil
	}

	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var pending *Rendition
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "#EXT-X-STREAM-INF:"):
			attrs := ParseAttributes(strings.TrimPrefix(line, "#EXT-X-STREAM-INF:"))
			bw, _ := strconv.Atoi(attrs["BANDWIDTH"])
			pending = &Rendition{
				Bandwidth:  bw,
				Codecs:     attrs["CODECS"],
				AudioCodec: AudioCodec(attrs["CODECS"]),
				Resolution: attrs["RESOLUTION"],
				AudioGroup: attrs["AUDIO"],
			}

		case strings.HasPrefix(line, "#EXT-X-MEDIA:"):
			attrs := ParseAttributes(strings.TrimPrefix(line, "#EXT-X-MEDIA:"))
			switch attrs["TYPE"] {
			case "AUDIO":
				m.Audio = append(m.Audio, AudioTrack{
					Index:      len(m.Audio),
					GroupID:    attrs["GROUP-ID"],
					Name:       attrs["NAME"],
					Language:   attrs["LANGUAGE"],
					Default:    attrs["DEFAULT"] == "YES",
					Autoselect: attrs["AUTOSELECT"] == "YES",
					URI:        resolve(base, attrs["URI"]),
				})
			case "SUBTITLES":
				name := attrs["NAME"]
				if name == "" {
					name = attrs["LANGUAGE"]
				}
				m.Subtitles = append(m.Subtitles, SubtitleTrack{
					Name:     name,
					Language: attrs["LANGUAGE"],
					Default:  attrs["DEFAULT"] == "YES",
					URI:      resolve(base, attrs["URI"]),
				})
			}

		case strings.HasPrefix(line, "#"):
			continue

		default:
			// URI line closes the preceding STREAM-INF.
			if pending == nil {
				continue
			}
			pending.Index = len(m.Renditions)
			pending.URI = resolve(base, line)
			m.Renditions = append(m.Renditions, *pending)
			pending = nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(m.Renditions) == 0 {
		return nil, ErrNoVariants
	}
	return m, nil
}

func hasHeader(body string) bool {
	trimmed := strings.TrimLeft(body, "\ufeff \t\r\n")
	return strings.HasPrefix(trimmed, "#EXTM3U")
}

func resolve(base *url.URL, ref string) string {
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}
