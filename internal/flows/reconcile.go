package flows

import (
	"context"
	"fmt"

	"github.com/MrEthical07/geoAuth/geo"
	"github.com/MrEthical07/geoAuth/location"
	"github.com/MrEthical07/geoAuth/session"
)

// ReconcileResult is the state the first screen should show.
type ReconcileResult struct {
	LoggedIn bool
	// Reason is set when a persisted session was ended during reconciliation.
	Reason         Reason
	Coordinate     *geo.Coordinate
	MonitorSession string
}

// ReconcileMetrics carries metric IDs needed by the reconcile flow.
type ReconcileMetrics struct {
	ReconcileKept   int
	ReconcileLogout int
	LogoutFailure   int
}

// ReconcileEvents carries audit event names used by the reconcile flow.
type ReconcileEvents struct {
	LogoutReconcile string
}

// ReconcileErrors carries host-level errors used by the reconcile flow.
type ReconcileErrors struct {
	EngineNotReady     error
	SessionWriteFailed error
	MonitorUnavailable error
}

// ReconcileDeps captures startup reconciliation dependencies.
type ReconcileDeps struct {
	Environment Environment
	Perimeter   geo.Perimeter

	State        func(context.Context) session.State
	LastKnown    func(context.Context) *location.Sample
	StoreLogout  func(context.Context) error
	StartMonitor func(context.Context) (string, error)
	StopMonitor  func()

	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, sessionID string, err error, metadata func() map[string]string)
	Warn      func(string, ...any)

	Metrics ReconcileMetrics
	Events  ReconcileEvents
	Errors  ReconcileErrors
}

func (deps *ReconcileDeps) defaults() {
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
	if deps.LastKnown == nil {
		deps.LastKnown = func(context.Context) *location.Sample { return nil }
	}
}

// ReconcileVerdict re-checks a persisted session. Both the stored coordinate
// and the device's current last-known fix must lie inside the perimeter; the
// session survives with either one missing, but not with both. The returned
// coordinate is the stored one, or the fix when nothing is stored.
func ReconcileVerdict(env Environment, perimeter geo.Perimeter, stored *geo.Coordinate, lastKnown func() *location.Sample) (Reason, *geo.Coordinate) {
	if !env.PermissionsGranted() {
		return ReasonPermissionRevoked, stored
	}
	if !env.LocationServicesEnabled() {
		return ReasonServicesDisabled, stored
	}
	var current *geo.Coordinate
	if lastKnown != nil {
		if s := lastKnown(); s != nil {
			coord := s.Coordinate
			current = &coord
		}
	}
	if stored == nil && current == nil {
		return ReasonLocationUnavailable, nil
	}
	for _, c := range []*geo.Coordinate{stored, current} {
		if c != nil && !geo.IsWithinPerimeter(*c, perimeter) {
			return ReasonOutsidePerimeter, c
		}
	}
	if stored != nil {
		return ReasonNone, stored
	}
	return ReasonNone, current
}

// RunReconcile brings the persisted session in line with the device before the
// first screen is shown. A session that no longer qualifies is ended silently;
// one that survives gets its monitor back.
func RunReconcile(ctx context.Context, deps ReconcileDeps) (ReconcileResult, error) {
	deps.defaults()
	if deps.State == nil || deps.StoreLogout == nil || deps.StartMonitor == nil {
		return ReconcileResult{}, deps.Errors.EngineNotReady
	}

	st := deps.State(ctx)
	if !st.LoggedIn {
		deps.StopMonitor()
		return ReconcileResult{}, nil
	}

	reason, coord := ReconcileVerdict(deps.Environment, deps.Perimeter, st.Coordinate, func() *location.Sample {
		return deps.LastKnown(ctx)
	})

	if reason != ReasonNone {
		if err := deps.StoreLogout(ctx); err != nil {
			deps.MetricInc(deps.Metrics.LogoutFailure)
			wrapped := fmt.Errorf("%w: %w", deps.Errors.SessionWriteFailed, err)
			deps.EmitAudit(ctx, deps.Events.LogoutReconcile, false, "", wrapped, func() map[string]string {
				return map[string]string{"reason": reason.String()}
			})
			return ReconcileResult{LoggedIn: true, Coordinate: st.Coordinate}, wrapped
		}
		deps.StopMonitor()
		deps.MetricInc(deps.Metrics.ReconcileLogout)
		deps.EmitAudit(ctx, deps.Events.LogoutReconcile, true, "", nil, func() map[string]string {
			return map[string]string{"reason": reason.String()}
		})
		return ReconcileResult{Reason: reason}, nil
	}

	sessionID, err := deps.StartMonitor(ctx)
	if err != nil {
		return ReconcileResult{LoggedIn: true, Coordinate: coord}, fmt.Errorf("%w: %w", deps.Errors.MonitorUnavailable, err)
	}
	deps.MetricInc(deps.Metrics.ReconcileKept)
	return ReconcileResult{LoggedIn: true, Coordinate: coord, MonitorSession: sessionID}, nil
}
