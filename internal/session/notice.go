// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"sync"

	"github.com/rs/zerolog"
)

// NoticeSink shows a message to the viewer.
type NoticeSink interface {
	SetNotice(msg string)
}

// NoticeFunc adapts a function to NoticeSink.
type NoticeFunc func(msg string)

func (f NoticeFunc) SetNotice(msg string) { f(msg) }

// LogNotices writes notices to logger at error level and keeps the last one.
type LogNotices struct {
	Logger zerolog.Logger

	mu   sync.Mutex
	last string
}

func (n *LogNotices) SetNotice(msg string) {
	n.mu.Lock()
	n.last = msg
	n.mu.Unlock()
	n.Logger.Error().Str("notice", msg).Msg("playback notice")
}

// Last returns the most recent notice.
func (n *LogNotices) Last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.last
}
