// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api serves the control surface: start and stop playback, read
// session status, health and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ManuGH/streamguard/internal/api/middleware"
	"github.com/ManuGH/streamguard/internal/engine"
	"github.com/ManuGH/streamguard/internal/health"
	xglog "github.com/ManuGH/streamguard/internal/log"
	"github.com/ManuGH/streamguard/internal/platform/origin"
	"github.com/ManuGH/streamguard/internal/session"
	"github.com/ManuGH/streamguard/internal/validate"
)

const maxRequestBody = 16 << 10

// Player is the slice of *session.Controller the API drives.
type Player interface {
	Play(ctx context.Context, url string, sink engine.MediaSink) error
	Stop()
	Status() session.Status
}

type Options struct {
	Player Player
	Sink   engine.MediaSink
	// SinkStats reports playback element statistics for /api/status. Optional.
	SinkStats func() any
	// Health serves /healthz and /readyz. Nil registers a session checker
	// over Player.
	Health *health.Manager
	// Origins gates play URLs. The zero value only checks URL shape.
	Origins origin.Policy

	RateLimitRequests int
	RateLimitWindow   time.Duration
	PlayTimeout       time.Duration // 0 waits as long as the client does
	TracingService    string
	Logger            *zerolog.Logger
}

type Server struct {
	opts   Options
	logger zerolog.Logger
	router chi.Router

	mu  sync.Mutex
	srv *http.Server
}

type playRequest struct {
	URL string `json:"url"`
}

type statusResponse struct {
	Session session.Status `json:"session"`
	Sink    any            `json:"sink,omitempty"`
}

func New(opts Options) (*Server, error) {
	if opts.Player == nil {
		return nil, errors.New("api: nil player")
	}
	if opts.Sink == nil {
		return nil, errors.New("api: nil media sink")
	}
	logger := xglog.WithComponent("api")
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	if opts.Health == nil {
		opts.Health = health.NewManager("")
		opts.Health.RegisterChecker(health.NewSessionChecker(opts.Player.Status))
	}
	s := &Server{opts: opts, logger: logger}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableMetrics:  true,
		TracingService: s.opts.TracingService,
		EnableLogging:  true,
	})

	r.Get("/healthz", s.opts.Health.ServeHealth)
	r.Get("/readyz", s.opts.Health.ServeReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		if s.opts.RateLimitRequests > 0 && s.opts.RateLimitWindow > 0 {
			r.Use(middleware.RateLimit(middleware.RateLimitConfig{
				RequestLimit: s.opts.RateLimitRequests,
				WindowSize:   s.opts.RateLimitWindow,
			}))
		}
		r.Post("/play", s.handlePlay)
		r.Post("/stop", s.handleStop)
		r.Get("/status", s.handleStatus)
	})
	return r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	var req playRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err)
		return
	}

	v := validate.New()
	v.StreamURL("url", req.URL)
	if err := v.Err(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_url", err)
		return
	}

	target, err := s.opts.Origins.Check(r.Context(), req.URL)
	if err != nil {
		writeError(w, http.StatusForbidden, "origin_not_allowed", err)
		return
	}

	ctx := r.Context()
	if s.opts.PlayTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.PlayTimeout)
		defer cancel()
	}

	logger := xglog.WithContext(r.Context(), s.logger)
	if err := s.opts.Player.Play(ctx, target, s.opts.Sink); err != nil {
		code, kind := playFailure(err)
		logger.Warn().Err(err).Str(xglog.FieldURL, origin.Sanitize(target)).Int(xglog.FieldStatusCode, code).Msg("play request failed")
		writeJSON(w, code, errorResponse{Error: kind, Detail: err.Error(), Notice: s.opts.Player.Status().Notice})
		return
	}
	writeJSON(w, http.StatusOK, s.opts.Player.Status())
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	s.opts.Player.Stop()
	writeJSON(w, http.StatusOK, s.opts.Player.Status())
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{Session: s.opts.Player.Status()}
	if s.opts.SinkStats != nil {
		resp.Sink = s.opts.SinkStats()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.mu.Lock()
	s.srv = srv
	s.mu.Unlock()

	s.logger.Info().Str(xglog.FieldEvent, "api.listen").Str("addr", ln.Addr().String()).Msg("control API listening")
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api serve: %w", err)
	}
	return nil
}

// ListenAndServe listens on addr and serves until Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	return s.Serve(ln)
}

// Shutdown drains in-flight requests. Calling it before Serve is a no-op.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	s.logger.Info().Str(xglog.FieldEvent, "api.shutdown").Msg("shutting down control API")
	return srv.Shutdown(ctx)
}
