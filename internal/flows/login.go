package flows

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/MrEthical07/geoAuth/geo"
	"github.com/MrEthical07/geoAuth/location"
)

// LoginResult is the flow-local login response shape.
type LoginResult struct {
	Coordinate     geo.Coordinate
	DistanceMeters float64
	MonitorSession string
}

// LoginMetrics carries metric IDs needed by the login flow.
type LoginMetrics struct {
	LoginSuccess  int
	LoginRejected int
	LoginFailure  int
	LoginLatency  int
}

// LoginEvents carries audit event names used by the login flow.
type LoginEvents struct {
	LoginSuccess  string
	LoginRejected string
}

// LoginErrors carries host-level errors used by the login flow.
type LoginErrors struct {
	EngineNotReady     error
	SessionWriteFailed error
	MonitorUnavailable error
	// Reject builds the host's rejection value for a failed check.
	Reject func(Rejection) error
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	Environment Environment
	Perimeter   geo.Perimeter

	StoreLogin   func(context.Context, geo.Coordinate) error
	StoreLogout  func(context.Context) error
	StartMonitor func(context.Context) (string, error)

	Now            func() time.Time
	MetricInc      func(int)
	ObserveLatency func(int, time.Duration)
	EmitAudit      func(ctx context.Context, event string, success bool, sessionID string, err error, metadata func() map[string]string)
	Warn           func(string, ...any)

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

func (deps *LoginDeps) defaults() {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = func(int) {}
	}
	if deps.ObserveLatency == nil {
		deps.ObserveLatency = func(int, time.Duration) {}
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}
}

// RunLogin checks the attempt, persists the session and starts the monitor.
// Exactly one rejection is produced per refused attempt. A failed store write
// leaves the session logged out and the monitor untouched.
func RunLogin(ctx context.Context, sample *location.Sample, deps LoginDeps) (*LoginResult, error) {
	deps.defaults()
	if deps.StoreLogin == nil || deps.StartMonitor == nil || deps.Errors.Reject == nil {
		return nil, deps.Errors.EngineNotReady
	}

	start := deps.Now()
	defer func() {
		deps.ObserveLatency(deps.Metrics.LoginLatency, deps.Now().Sub(start))
	}()

	rejection, distance := EvaluateLogin(deps.Environment, deps.Perimeter, sample)
	if rejection != RejectNone {
		err := deps.Errors.Reject(rejection)
		deps.MetricInc(deps.Metrics.LoginRejected)
		deps.EmitAudit(ctx, deps.Events.LoginRejected, false, "", err, func() map[string]string {
			md := map[string]string{"rejection": rejection.String()}
			if !math.IsNaN(distance) {
				md["distance_m"] = strconv.FormatFloat(distance, 'f', 1, 64)
			}
			return md
		})
		return nil, err
	}

	if err := deps.StoreLogin(ctx, sample.Coordinate); err != nil {
		deps.MetricInc(deps.Metrics.LoginFailure)
		wrapped := fmt.Errorf("%w: %w", deps.Errors.SessionWriteFailed, err)
		deps.EmitAudit(ctx, deps.Events.LoginSuccess, false, "", wrapped, nil)
		return nil, wrapped
	}

	sessionID, err := deps.StartMonitor(ctx)
	if err != nil {
		deps.Warn("monitor start failed after login, rolling back", "error", err)
		if deps.StoreLogout != nil {
			if rbErr := deps.StoreLogout(context.WithoutCancel(ctx)); rbErr != nil {
				deps.Warn("login rollback failed", "error", rbErr)
			}
		}
		deps.MetricInc(deps.Metrics.LoginFailure)
		wrapped := fmt.Errorf("%w: %w", deps.Errors.MonitorUnavailable, err)
		deps.EmitAudit(ctx, deps.Events.LoginSuccess, false, "", wrapped, nil)
		return nil, wrapped
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, sessionID, nil, func() map[string]string {
		return map[string]string{
			"distance_m": strconv.FormatFloat(distance, 'f', 1, 64),
			"accuracy_m": strconv.FormatFloat(float64(sample.Accuracy), 'f', 1, 32),
		}
	})

	return &LoginResult{
		Coordinate:     sample.Coordinate,
		DistanceMeters: distance,
		MonitorSession: sessionID,
	}, nil
}
