package geoAuth

import (
	"context"
	"time"

	"github.com/MrEthical07/geoAuth/internal/flows"
	"github.com/MrEthical07/geoAuth/location"
	"github.com/MrEthical07/geoAuth/session"
)

func (e *Engine) buildFlows() flows.Deps {
	env := e.environment()
	metricInc := func(id int) {
		e.metricInc(MetricID(id))
	}
	startMonitor := func(ctx context.Context) (string, error) {
		ms, err := e.monitor.start(ctx)
		return ms.ID, err
	}

	return flows.Deps{
		Login: flows.LoginDeps{
			Environment:  env,
			Perimeter:    e.config.Perimeter,
			StoreLogin:   e.store.Login,
			StoreLogout:  e.store.Logout,
			StartMonitor: startMonitor,
			Now:          time.Now,
			MetricInc:    metricInc,
			ObserveLatency: func(id int, d time.Duration) {
				e.metrics.Observe(MetricID(id), d)
			},
			EmitAudit: e.emitAudit,
			Warn:      e.warn,
			Metrics: flows.LoginMetrics{
				LoginSuccess:  int(MetricLoginSuccess),
				LoginRejected: int(MetricLoginRejected),
				LoginFailure:  int(MetricLoginFailure),
				LoginLatency:  int(MetricLoginLatency),
			},
			Events: flows.LoginEvents{
				LoginSuccess:  auditEventLoginSuccess,
				LoginRejected: auditEventLoginRejected,
			},
			Errors: flows.LoginErrors{
				EngineNotReady:     ErrEngineNotReady,
				SessionWriteFailed: ErrSessionWriteFailed,
				MonitorUnavailable: ErrMonitorUnavailable,
				Reject:             newLoginRejection,
			},
		},
		Logout: flows.LogoutDeps{
			LoggedIn:    e.store.LoggedIn,
			StoreLogout: e.store.Logout,
			StopMonitor: e.monitor.Stop,
			Notify:      e.publishNotice,
			MetricInc:   metricInc,
			EmitAudit:   e.emitAudit,
			Warn:        e.warn,
			Metrics: flows.LogoutMetrics{
				LogoutManual:  int(MetricLogoutManual),
				LogoutAuto:    int(MetricLogoutAuto),
				LogoutFailure: int(MetricLogoutFailure),
			},
			Events: flows.LogoutEvents{
				LogoutManual: auditEventLogoutManual,
				LogoutAuto:   auditEventLogoutAuto,
			},
			Errors: flows.LogoutErrors{
				EngineNotReady:     ErrEngineNotReady,
				SessionWriteFailed: ErrSessionWriteFailed,
			},
		},
		Reconcile: flows.ReconcileDeps{
			Environment: env,
			Perimeter:   e.config.Perimeter,
			State: func(ctx context.Context) session.State {
				return e.store.State(ctx)
			},
			LastKnown: func(ctx context.Context) *location.Sample {
				return e.source.LastKnown(ctx)
			},
			StoreLogout:  e.store.Logout,
			StartMonitor: startMonitor,
			StopMonitor:  e.monitor.Stop,
			MetricInc:    metricInc,
			EmitAudit:    e.emitAudit,
			Warn:         e.warn,
			Metrics: flows.ReconcileMetrics{
				ReconcileKept:   int(MetricReconcileKept),
				ReconcileLogout: int(MetricReconcileLogout),
				LogoutFailure:   int(MetricLogoutFailure),
			},
			Events: flows.ReconcileEvents{
				LogoutReconcile: auditEventLogoutReconcile,
			},
			Errors: flows.ReconcileErrors{
				EngineNotReady:     ErrEngineNotReady,
				SessionWriteFailed: ErrSessionWriteFailed,
				MonitorUnavailable: ErrMonitorUnavailable,
			},
		},
	}
}
