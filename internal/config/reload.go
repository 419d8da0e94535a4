// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/streamguard/internal/log"
)

const defaultDebounce = 500 * time.Millisecond

// Holder holds the effective configuration and swaps it atomically on
// reload. A failed reload keeps the previous configuration.
type Holder struct {
	mu       sync.RWMutex
	current  AppConfig
	loader   *Loader
	path     string
	debounce time.Duration
	logger   zerolog.Logger

	watcher *fsnotify.Watcher
	wg      sync.WaitGroup

	listenersMu sync.RWMutex
	listeners   []chan<- AppConfig
}

func NewHolder(initial AppConfig, loader *Loader, path string) *Holder {
	return &Holder{
		current:  initial,
		loader:   loader,
		path:     path,
		debounce: defaultDebounce,
		logger:   xglog.WithComponent("config"),
	}
}

// Get returns the current configuration.
func (h *Holder) Get() AppConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Reload re-runs the loader. Listeners are notified only on success.
func (h *Holder) Reload(_ context.Context) error {
	h.logger.Info().Str(xglog.FieldEvent, "config.reload_start").Msg("reloading configuration")

	next, err := h.loader.Load()
	if err != nil {
		h.logger.Error().Err(err).Str(xglog.FieldEvent, "config.reload_failed").Msg("new configuration rejected, keeping current")
		return fmt.Errorf("reload config: %w", err)
	}

	h.mu.Lock()
	prev := h.current
	h.current = next
	h.mu.Unlock()

	h.logChanges(prev, next)
	h.notify(next)

	h.logger.Info().Str(xglog.FieldEvent, "config.reload_success").Msg("configuration reloaded")
	return nil
}

// Watch reloads on file writes until ctx is done. Without a file path it is
// a no-op.
func (h *Holder) Watch(ctx context.Context) error {
	if h.path == "" {
		h.logger.Info().Str(xglog.FieldEvent, "config.watcher_disabled").Msg("no config file, watcher disabled")
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(h.path); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch config file: %w", err)
	}
	h.watcher = w

	h.logger.Info().Str(xglog.FieldEvent, "config.watcher_started").Str("path", h.path).Msg("watching config file")

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.watchLoop(ctx, w)
	}()
	return nil
}

func (h *Holder) watchLoop(ctx context.Context, w *fsnotify.Watcher) {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
		_ = w.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Str(xglog.FieldEvent, "config.watcher_stopped").Msg("config watcher stopped")
			return

		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			// Write and Create cover in-place edits and editors that
			// replace the file.
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			h.logger.Debug().Str(xglog.FieldEvent, "config.file_changed").Str("op", ev.Op.String()).Msg("config file changed")
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(h.debounce, func() {
				if ctx.Err() != nil {
					return
				}
				_ = h.Reload(ctx)
			})

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			h.logger.Error().Err(err).Str(xglog.FieldEvent, "config.watcher_error").Msg("config watcher error")
		}
	}
}

// Wait blocks until the watch loop has exited.
func (h *Holder) Wait() {
	h.wg.Wait()
}

// Subscribe registers ch for successful reloads. Sends never block; a
// full channel misses the update.
func (h *Holder) Subscribe(ch chan<- AppConfig) {
	h.listenersMu.Lock()
	defer h.listenersMu.Unlock()
	h.listeners = append(h.listeners, ch)
}

func (h *Holder) notify(cfg AppConfig) {
	h.listenersMu.RLock()
	defer h.listenersMu.RUnlock()
	for _, ch := range h.listeners {
		select {
		case ch <- cfg:
		default:
			h.logger.Warn().Str(xglog.FieldEvent, "config.listener_skip").Msg("listener channel full, update skipped")
		}
	}
}

func (h *Holder) logChanges(prev, next AppConfig) {
	changed := func(field string) *zerolog.Event {
		return h.logger.Info().Str(xglog.FieldEvent, "config.changed").Str("field", field)
	}
	if prev.Playback.ManifestMaxTries != next.Playback.ManifestMaxTries {
		changed("playback.manifestMaxTries").Int("old", prev.Playback.ManifestMaxTries).Int("new", next.Playback.ManifestMaxTries).Msg("config changed")
	}
	if prev.Playback.MaxRebuilds != next.Playback.MaxRebuilds {
		changed("playback.maxRebuilds").Int("old", prev.Playback.MaxRebuilds).Int("new", next.Playback.MaxRebuilds).Msg("config changed")
	}
	if prev.Playback.PreferredCodec != next.Playback.PreferredCodec {
		changed("playback.preferredCodec").Str("old", prev.Playback.PreferredCodec).Str("new", next.Playback.PreferredCodec).Msg("config changed")
	}
	if prev.Playback.PreferredLanguage != next.Playback.PreferredLanguage {
		changed("playback.preferredLanguage").Str("old", prev.Playback.PreferredLanguage).Str("new", next.Playback.PreferredLanguage).Msg("config changed")
	}
	if prev.Engine != next.Engine {
		changed("engine").Msg("config changed")
	}
	if prev.Log.Level != next.Log.Level {
		changed("log.level").Str("old", prev.Log.Level).Str("new", next.Log.Level).Msg("config changed")
	}
	if prev.API.ListenAddr != next.API.ListenAddr {
		changed("api.listenAddr").Str("old", prev.API.ListenAddr).Str("new", next.API.ListenAddr).Msg("listen address changes apply on restart")
	}
}
