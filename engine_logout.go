package geoAuth

import (
	"context"
	"log/slog"

	"github.com/MrEthical07/geoAuth/internal/flows"
)

// Logout ends the session at the user's request and tears the monitor down. No
// notice is published. Logging out while logged out succeeds.
func (e *Engine) Logout(ctx context.Context) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	if err := e.acquire(ctx); err != nil {
		return err
	}
	defer e.release()

	return flows.RunManualLogout(ctx, e.flows.Logout)
}

// autoLogout is the monitor's violation handler. It gives up when ctx is
// cancelled before the gate is free, which happens when the monitor is being
// stopped by a manual logout or a restart.
func (e *Engine) autoLogout(ctx context.Context, reason LogoutReason, ms MonitoringSession) {
	if err := e.acquire(ctx); err != nil {
		e.logger.Debug("automatic logout abandoned",
			slog.String("reason", reason.String()),
			slog.String("monitor_session", ms.ID),
			slog.Any("error", err),
		)
		return
	}
	defer e.release()

	// once the gate is held the write completes even if the run is cancelled
	done, err := flows.RunAutoLogout(context.WithoutCancel(ctx), reason, ms.ID, e.flows.Logout)
	if err != nil {
		e.logger.Error("automatic logout failed",
			slog.String("reason", reason.String()),
			slog.String("monitor_session", ms.ID),
			slog.Any("error", err),
		)
		return
	}
	if !done {
		return
	}
	if id, ok := autoLogoutMetric(reason); ok {
		e.metricInc(id)
	}
	e.logger.Warn("logged out automatically",
		slog.String("reason", reason.String()),
		slog.String("monitor_session", ms.ID),
	)
}
