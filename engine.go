package enroll

import (
	"regexp"
	"time"

	"github.com/tgpanel/enroll/internal/bridge"
	"github.com/tgpanel/enroll/internal/rate"
)

// Engine orchestrates enrollment logins. Build one through [Builder.Build];
// after that every method is safe for concurrent use. Events for the same
// user are processed strictly in arrival order; different users never block
// one another.
type Engine struct {
	config      Config
	attempts    *loginAttemptStore
	bridge      *bridge.Bridge
	rateLimiter *rate.Limiter
	clients     ClientFactory
	credentials CredentialStore
	audit       *auditDispatcher
	metrics     *Metrics
	phoneRe     *regexp.Regexp
	codeRe      *regexp.Regexp
}

// Close flushes the audit pipeline. Live login attempts are not touched;
// call [Engine.AbandonAll] first when a shutdown must release connections.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were dropped under
// backpressure since construction.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// ActiveAttempts reports the number of in-progress login attempts.
func (e *Engine) ActiveAttempts() int {
	if e == nil || e.attempts == nil {
		return 0
	}
	return e.attempts.len()
}

// AttemptPhase reports the phase of userID's attempt, false when none
// exists.
func (e *Engine) AttemptPhase(userID string) (LoginPhase, bool) {
	if e == nil || e.attempts == nil {
		return 0, false
	}
	att := e.attempts.get(userID)
	if att == nil {
		return 0, false
	}
	return att.Phase, true
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricObserve(id MetricID, d time.Duration) {
	if e == nil {
		return
	}
	e.metrics.Observe(id, d)
}
