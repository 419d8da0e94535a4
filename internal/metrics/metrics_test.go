// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestStatusClass(t *testing.T) {
	tests := []struct {
		err    error
		status int
		want   string
	}{
		{errors.New("dial"), 0, "error"},
		{nil, 200, "2xx"},
		{nil, 304, "3xx"},
		{nil, 404, "4xx"},
		{nil, 503, "5xx"},
		{errors.New("status"), 503, "5xx"},
		{nil, 0, "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusClass(tt.err, tt.status), "status=%d err=%v", tt.status, tt.err)
	}
}

func TestSetSessionState_OneHot(t *testing.T) {
	SetSessionState("playing")
	for _, s := range SessionStates {
		want := 0.0
		if s == "playing" {
			want = 1.0
		}
		assert.Equal(t, want, testutil.ToFloat64(sessionState.WithLabelValues(s)), s)
	}
}

func TestCounters_Increment(t *testing.T) {
	before := testutil.ToFloat64(recoveryActions.WithLabelValues("fatal_network", "start_load"))
	IncRecoveryAction("fatal_network", "start_load")
	assert.Equal(t, before+1, testutil.ToFloat64(recoveryActions.WithLabelValues("fatal_network", "start_load")))

	beforeRebuilds := testutil.ToFloat64(sessionRebuilds)
	IncSessionRebuild()
	assert.Equal(t, beforeRebuilds+1, testutil.ToFloat64(sessionRebuilds))
}

func TestExposition(t *testing.T) {
	RecordFetch("manifest", 200, 10*time.Millisecond, nil)
	RecordProbe("ok", 1)

	rec := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `streamguard_fetch_total{kind="manifest",status_class="2xx"}`))
	assert.True(t, strings.Contains(body, `streamguard_manifest_probe_total{outcome="ok"}`))
}
