// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/streamguard/internal/engine"
	"github.com/ManuGH/streamguard/internal/engine/enginetest"
	"github.com/ManuGH/streamguard/internal/platform/origin"
	"github.com/ManuGH/streamguard/internal/probe"
	"github.com/ManuGH/streamguard/internal/session"
)

const streamURL = "http://origin.example/live/master.m3u8"

type stubProber struct{ err error }

func (p stubProber) EnsureReachable(_ context.Context, _ string, maxTries int) (int, error) {
	if p.err != nil {
		return maxTries, p.err
	}
	return 1, nil
}

type fixture struct {
	factory *enginetest.Factory
	ctrl    *session.Controller
	srv     *Server
}

func newFixture(t *testing.T, prober session.Prober, opts ...func(*Options)) *fixture {
	t.Helper()
	factory := enginetest.NewFactory(enginetest.Renditions(2), enginetest.AudioTracks("en"))
	nop := zerolog.Nop()
	ctrl := session.NewController(factory, prober, &session.LogNotices{Logger: nop}, session.DefaultConfig(), session.WithLogger(nop))
	t.Cleanup(ctrl.Stop)

	o := Options{
		Player:    ctrl,
		Sink:      &enginetest.Sink{},
		SinkStats: func() any { return map[string]int{"segments": 3} },
		Logger:    &nop,
	}
	for _, fn := range opts {
		fn(&o)
	}
	srv, err := New(o)
	require.NoError(t, err)
	return &fixture{factory: factory, ctrl: ctrl, srv: srv}
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.RemoteAddr = "10.1.1.1:5000"
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestPlay_StartsSession(t *testing.T) {
	f := newFixture(t, stubProber{})

	w := f.do(http.MethodPost, "/api/play", `{"url":"`+streamURL+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	st := decode[session.Status](t, w)
	assert.Equal(t, session.StatePlaying, st.State)
	assert.Equal(t, streamURL, st.URL)
	assert.NotEmpty(t, st.SessionID)
	assert.Equal(t, 1, f.factory.Live())
}

func TestStatus_IncludesSinkStats(t *testing.T) {
	f := newFixture(t, stubProber{})
	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/play", `{"url":"`+streamURL+`"}`).Code)

	w := f.do(http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Session session.Status `json:"session"`
		Sink    map[string]int `json:"sink"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, session.StatePlaying, body.Session.State)
	assert.Equal(t, 3, body.Sink["segments"])
}

func TestStop_ReturnsIdle(t *testing.T) {
	f := newFixture(t, stubProber{})
	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/play", `{"url":"`+streamURL+`"}`).Code)

	w := f.do(http.MethodPost, "/api/stop", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, session.StateIdle, decode[session.Status](t, w).State)
	assert.Equal(t, 0, f.factory.Live())
}

func TestPlay_Unreachable(t *testing.T) {
	f := newFixture(t, stubProber{err: &probe.ExhaustedError{URL: streamURL, Attempts: 7, Last: errors.New("503")}})

	w := f.do(http.MethodPost, "/api/play", `{"url":"`+streamURL+`"}`)
	require.Equal(t, http.StatusBadGateway, w.Code)

	resp := decode[errorResponse](t, w)
	assert.Equal(t, "playback_unavailable", resp.Error)
	assert.Equal(t, session.NoticeManifestUnreachable, resp.Notice)

	// a failed session makes the process unready
	assert.Equal(t, http.StatusServiceUnavailable, f.do(http.MethodGet, "/readyz", "").Code)
}

func TestPlay_Unsupported(t *testing.T) {
	f := newFixture(t, stubProber{})
	f.factory.SetSupported(false)

	w := f.do(http.MethodPost, "/api/play", `{"url":"`+streamURL+`"}`)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	assert.Equal(t, "unsupported", decode[errorResponse](t, w).Error)
}

func TestPlay_BadRequests(t *testing.T) {
	f := newFixture(t, stubProber{})
	tests := map[string]struct {
		body string
		kind string
	}{
		"malformed":     {`{"url":`, "invalid_request"},
		"unknown field": {`{"url":"` + streamURL + `","x":1}`, "invalid_request"},
		"empty url":     {`{"url":""}`, "invalid_url"},
		"bad scheme":    {`{"url":"rtsp://origin/live"}`, "invalid_url"},
		"no path":       {`{"url":"http://origin.example"}`, "invalid_url"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			w := f.do(http.MethodPost, "/api/play", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.kind, decode[errorResponse](t, w).Error)
		})
	}
	assert.Empty(t, f.factory.Engines())
}

type blockingPlayer struct{}

func (blockingPlayer) Play(ctx context.Context, _ string, _ engine.MediaSink) error {
	<-ctx.Done()
	return ctx.Err()
}
func (blockingPlayer) Stop()                  {}
func (blockingPlayer) Status() session.Status { return session.Status{State: session.StateBooting} }

func TestPlay_OriginPolicy(t *testing.T) {
	f := newFixture(t, stubProber{}, func(o *Options) {
		o.Origins = origin.Policy{Restrict: true, Hosts: []string{"cdn.example.com"}}
	})

	w := f.do(http.MethodPost, "/api/play", `{"url":"http://127.0.0.1/live/master.m3u8"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "origin_not_allowed", decode[errorResponse](t, w).Error)

	w = f.do(http.MethodPost, "/api/play", `{"url":"http://u:p@cdn.example.com/live/master.m3u8"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, f.factory.Engines())
}

func TestPlay_Timeout(t *testing.T) {
	f := newFixture(t, stubProber{}, func(o *Options) {
		o.Player = blockingPlayer{}
		o.PlayTimeout = 20 * time.Millisecond
	})
	w := f.do(http.MethodPost, "/api/play", `{"url":"`+streamURL+`"}`)
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
}

func TestRateLimit_API(t *testing.T) {
	f := newFixture(t, stubProber{}, func(o *Options) {
		o.RateLimitRequests = 2
		o.RateLimitWindow = time.Minute
	})
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/status", "").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/status", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, f.do(http.MethodGet, "/api/status", "").Code)
	// health checks are not limited
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/healthz", "").Code)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t, stubProber{})
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/healthz", "").Code)
	// idle controller is ready
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/readyz", "").Code)

	w := f.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "streamguard_")
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{Sink: &enginetest.Sink{}})
	assert.Error(t, err)
	_, err = New(Options{Player: blockingPlayer{}})
	assert.Error(t, err)
}

func TestServeAndShutdown(t *testing.T) {
	f := newFixture(t, stubProber{})
	assert.NoError(t, f.srv.Shutdown(context.Background()))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- f.srv.Serve(ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, f.srv.Shutdown(ctx))
	assert.NoError(t, <-done)
}
