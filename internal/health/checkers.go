// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"

	"github.com/ManuGH/streamguard/internal/session"
)

// SessionChecker reports the playback session. A failed session is
// unhealthy; one that is booting or recovering is degraded.
type SessionChecker struct {
	status func() session.Status
}

func NewSessionChecker(status func() session.Status) *SessionChecker {
	return &SessionChecker{status: status}
}

func (c *SessionChecker) Name() string { return "session" }

func (c *SessionChecker) Check(_ context.Context) CheckResult {
	st := c.status()
	switch st.State {
	case session.StateFailed:
		return CheckResult{Status: StatusUnhealthy, Message: string(st.State), Error: st.Notice}
	case session.StateBooting, session.StateRecovering, session.StateRebuilding:
		return CheckResult{Status: StatusDegraded, Message: string(st.State)}
	default:
		return CheckResult{Status: StatusHealthy, Message: string(st.State)}
	}
}

// FuncChecker adapts a function to Checker.
type FuncChecker struct {
	name string
	fn   func(ctx context.Context) CheckResult
}

func NewFuncChecker(name string, fn func(ctx context.Context) CheckResult) *FuncChecker {
	return &FuncChecker{name: name, fn: fn}
}

func (c *FuncChecker) Name() string { return c.name }

func (c *FuncChecker) Check(ctx context.Context) CheckResult { return c.fn(ctx) }
