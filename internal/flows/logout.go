package flows

import (
	"context"
	"fmt"
)

// LogoutMetrics carries metric IDs needed by the logout flows.
type LogoutMetrics struct {
	LogoutManual  int
	LogoutAuto    int
	LogoutFailure int
}

// LogoutEvents carries audit event names used by the logout flows.
type LogoutEvents struct {
	LogoutManual string
	LogoutAuto   string
}

// LogoutErrors carries host-level errors used by the logout flows.
type LogoutErrors struct {
	EngineNotReady     error
	SessionWriteFailed error
}

// LogoutDeps captures manual and automatic logout dependencies.
type LogoutDeps struct {
	LoggedIn    func(context.Context) bool
	StoreLogout func(context.Context) error
	StopMonitor func()
	// Notify publishes the auto-logout notice. Manual logout never calls it.
	Notify func(reason Reason, sessionID string)

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, sessionID string, err error, metadata func() map[string]string)
	Warn      func(string, ...any)

	Metrics LogoutMetrics
	Events  LogoutEvents
	Errors  LogoutErrors
}

func (deps *LogoutDeps) defaults() {
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}
	if deps.StopMonitor == nil {
		deps.StopMonitor = func() {}
	}
	if deps.Notify == nil {
		deps.Notify = func(Reason, string) {}
	}
}

// RunManualLogout clears the session and tears the monitor down. It is
// idempotent: logging out while logged out rewrites the cleared state and
// records nothing. When the write fails the session and monitor are kept.
func RunManualLogout(ctx context.Context, deps LogoutDeps) error {
	deps.defaults()
	if deps.StoreLogout == nil || deps.LoggedIn == nil {
		return deps.Errors.EngineNotReady
	}

	wasLoggedIn := deps.LoggedIn(ctx)
	if err := deps.StoreLogout(ctx); err != nil {
		deps.MetricInc(deps.Metrics.LogoutFailure)
		wrapped := fmt.Errorf("%w: %w", deps.Errors.SessionWriteFailed, err)
		deps.EmitAudit(ctx, deps.Events.LogoutManual, false, "", wrapped, nil)
		return wrapped
	}
	deps.StopMonitor()

	if wasLoggedIn {
		deps.MetricInc(deps.Metrics.LogoutManual)
		deps.EmitAudit(ctx, deps.Events.LogoutManual, true, "", nil, nil)
	}
	return nil
}

// RunAutoLogout ends the session for reason. It re-reads the flag first and does
// nothing when the session is already gone, so concurrent triggers log out at
// most once. It reports whether a logout happened.
func RunAutoLogout(ctx context.Context, reason Reason, sessionID string, deps LogoutDeps) (bool, error) {
	deps.defaults()
	if deps.StoreLogout == nil || deps.LoggedIn == nil {
		return false, deps.Errors.EngineNotReady
	}

	if !deps.LoggedIn(ctx) {
		return false, nil
	}
	if err := deps.StoreLogout(ctx); err != nil {
		deps.MetricInc(deps.Metrics.LogoutFailure)
		deps.Warn("automatic logout failed", "reason", reason.String(), "error", err)
		wrapped := fmt.Errorf("%w: %w", deps.Errors.SessionWriteFailed, err)
		deps.EmitAudit(ctx, deps.Events.LogoutAuto, false, sessionID, wrapped, func() map[string]string {
			return map[string]string{"reason": reason.String()}
		})
		return false, wrapped
	}

	deps.MetricInc(deps.Metrics.LogoutAuto)
	deps.EmitAudit(ctx, deps.Events.LogoutAuto, true, sessionID, nil, func() map[string]string {
		return map[string]string{"reason": reason.String()}
	})
	deps.Notify(reason, sessionID)
	return true, nil
}
