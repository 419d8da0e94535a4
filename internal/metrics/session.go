// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionBoots = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamguard_session_boots_total",
		Help: "Session boot sequences by result",
	}, []string{"result"})

	sessionRebuilds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamguard_session_rebuilds_total",
		Help: "Full session rebuilds triggered by unrecoverable engine errors",
	})

	recoveryActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamguard_recovery_actions_total",
		Help: "Recovery actions dispatched by error class",
	}, []string{"class", "action"})

	renditionFailovers = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamguard_rendition_failovers_total",
		Help: "Rendition failover attempts by result",
	}, []string{"result"})

	pinReassertions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamguard_pin_reassertions_total",
		Help: "Commands issued to pull the engine back to the pinned rendition or audio track",
	}, []string{"target"})

	notices = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamguard_notices_total",
		Help: "User-visible playback notices by reason",
	}, []string{"reason"})

	sessionState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "streamguard_session_state",
		Help: "Current session state (1 for the active state, 0 otherwise)",
	}, []string{"state"})
)

// SessionStates lists every state exported by SetSessionState.
var SessionStates = []string{"idle", "booting", "playing", "recovering", "rebuilding", "failed", "stopped"}

// SetSessionState marks the active session state.
func SetSessionState(state string) {
	for _, s := range SessionStates {
		value := 0.0
		if s == state {
			value = 1.0
		}
		sessionState.WithLabelValues(s).Set(value)
	}
}

// IncSessionBoot counts a boot attempt outcome ("ok", "unreachable", "unsupported", "error").
func IncSessionBoot(result string) {
	sessionBoots.WithLabelValues(result).Inc()
}

// IncSessionRebuild counts a full rebuild.
func IncSessionRebuild() {
	sessionRebuilds.Inc()
}

// IncRecoveryAction counts a dispatched recovery action.
func IncRecoveryAction(class, action string) {
	recoveryActions.WithLabelValues(class, action).Inc()
}

// IncFailover counts a failover attempt ("switched" or "exhausted").
func IncFailover(result string) {
	renditionFailovers.WithLabelValues(result).Inc()
}

// IncPinReassertion counts a reassertion ("rendition" or "audio").
func IncPinReassertion(target string) {
	pinReassertions.WithLabelValues(target).Inc()
}

// IncNotice counts a notice written to the user.
func IncNotice(reason string) {
	notices.WithLabelValues(reason).Inc()
}
