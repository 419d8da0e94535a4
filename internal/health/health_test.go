// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/streamguard/internal/session"
)

func fixed(s Status) *FuncChecker {
	return NewFuncChecker(string(s), func(context.Context) CheckResult { return CheckResult{Status: s} })
}

func TestManager_NoCheckers(t *testing.T) {
	m := NewManager("v1")
	h := m.Health(context.Background(), true)
	assert.Equal(t, StatusHealthy, h.Status)
	assert.Equal(t, "v1", h.Version)

	r := m.Ready(context.Background())
	assert.True(t, r.Ready)
	assert.Nil(t, r.Checks)
}

func TestManager_Aggregates(t *testing.T) {
	m := NewManager("v1")
	m.RegisterChecker(fixed(StatusHealthy))
	m.RegisterChecker(fixed(StatusDegraded))

	r := m.Ready(context.Background())
	assert.True(t, r.Ready)
	assert.Equal(t, StatusDegraded, r.Status)
	assert.Len(t, r.Checks, 2)

	m.RegisterChecker(fixed(StatusUnhealthy))
	r = m.Ready(context.Background())
	assert.False(t, r.Ready)
	assert.Equal(t, StatusUnhealthy, r.Status)

	// liveness ignores components unless verbose
	assert.Equal(t, StatusHealthy, m.Health(context.Background(), false).Status)
	assert.Equal(t, StatusUnhealthy, m.Health(context.Background(), true).Status)
}

func TestSessionChecker(t *testing.T) {
	tests := map[session.State]Status{
		session.StateIdle:       StatusHealthy,
		session.StatePlaying:    StatusHealthy,
		session.StateStopped:    StatusHealthy,
		session.StateBooting:    StatusDegraded,
		session.StateRecovering: StatusDegraded,
		session.StateRebuilding: StatusDegraded,
		session.StateFailed:     StatusUnhealthy,
	}
	for state, want := range tests {
		c := NewSessionChecker(func() session.Status {
			return session.Status{State: state, Notice: "n"}
		})
		assert.Equal(t, want, c.Check(context.Background()).Status, state)
	}
}

func TestServeReady(t *testing.T) {
	m := NewManager("v1")
	m.RegisterChecker(fixed(StatusUnhealthy))

	w := httptest.NewRecorder()
	m.ServeReady(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Ready)

	w = httptest.NewRecorder()
	m.ServeHealth(w, httptest.NewRequest(http.MethodGet, "/healthz?verbose=true", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"unhealthy"`)
}
