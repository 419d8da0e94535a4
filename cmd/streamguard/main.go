// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command streamguard plays an HLS stream headlessly under the recovery
// controller and exposes a control API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ManuGH/streamguard/internal/config"
	xglog "github.com/ManuGH/streamguard/internal/log"
	"github.com/ManuGH/streamguard/internal/telemetry"
)

var (
	version   = "v0.1.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "config" {
		os.Exit(runConfigCLI(os.Args[2:]))
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	streamURL := flag.String("url", "", "start playing this manifest URL on boot")
	listen := flag.String("listen", "", "control API listen address (overrides config)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	os.Exit(run(strings.TrimSpace(*configPath), strings.TrimSpace(*streamURL), strings.TrimSpace(*listen)))
}

func run(configPath, streamURL, listen string) int {
	xglog.Configure(xglog.Config{Level: "info", Service: "streamguard", Version: version})
	logger := xglog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := config.NewLoader(configPath, version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "config.load_failed").Str("config_path", configPath).Msg("failed to load configuration")
		return 1
	}
	if listen != "" {
		cfg.API.ListenAddr = listen
	}
	xglog.Reconfigure(cfg.LogConfig())
	logger = xglog.WithComponent("daemon")

	source := "env+defaults"
	if configPath != "" {
		source = "file"
	}
	logger.Info().Str(xglog.FieldEvent, "config.loaded").Str("source", source).Str("path", configPath).Msg("configuration loaded")

	tp, err := telemetry.NewProvider(ctx, cfg.TelemetryConfig())
	if err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "telemetry.init_failed").Msg("failed to initialize tracing")
		return 1
	}

	d, err := newDaemon(cfg, logger)
	if err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "startup.failed").Msg("failed to wire daemon")
		return 1
	}

	holder := config.NewHolder(cfg, loader, configPath)
	reloads := make(chan config.AppConfig, 1)
	holder.Subscribe(reloads)
	if err := holder.Watch(ctx); err != nil {
		logger.Warn().Err(err).Str(xglog.FieldEvent, "config.watcher_failed").Msg("config hot reload disabled")
	}

	errCh := make(chan error, 1)
	go func() { errCh <- d.api.ListenAndServe(cfg.API.ListenAddr) }()
	go d.sink.Run(ctx, 100*time.Millisecond)
	go d.applyReloads(ctx, reloads)

	if streamURL != "" {
		go d.autoplay(ctx, streamURL)
	}

	exit := 0
	select {
	case <-ctx.Done():
		logger.Info().Str(xglog.FieldEvent, "shutdown.signal").Msg("shutdown requested")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Str(xglog.FieldEvent, "api.failed").Msg("control API stopped")
			exit = 1
		}
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer cancel()

	if err := d.api.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn().Err(err).Msg("control API shutdown incomplete")
	}
	d.ctrl.Stop()
	holder.Wait()
	if err := tp.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("tracer shutdown incomplete")
	}
	logger.Info().Str(xglog.FieldEvent, "shutdown.complete").Msg("bye")
	return exit
}
