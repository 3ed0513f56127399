package geoAuth

import (
	"context"

	"github.com/MrEthical07/geoAuth/internal/flows"
	"github.com/MrEthical07/geoAuth/location"
)

// AttemptLogin checks sample against the device state and the office perimeter
// and, when every check passes, persists the session and starts the monitor.
//
// Checks run in priority order: permission, location services, presence of a
// sample, perimeter membership. The first failing check is returned as a
// *LoginRejection matching ErrPermissionRequired, ErrLocationServicesDisabled,
// ErrLocationUnavailable, or ErrOutsidePerimeter. A failed store write returns
// an error wrapping ErrSessionWriteFailed and leaves the monitor untouched.
func (e *Engine) AttemptLogin(ctx context.Context, sample *location.Sample) (*LoginResult, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}
	if err := e.acquire(ctx); err != nil {
		return nil, err
	}
	defer e.release()

	res, err := flows.RunLogin(ctx, sample, e.flows.Login)
	if err != nil {
		return nil, err
	}
	e.logger.InfoContext(ctx, "login accepted",
		"distance_m", res.DistanceMeters,
		"monitor_session", res.MonitorSession,
	)
	return &LoginResult{
		Coordinate:     res.Coordinate,
		DistanceMeters: res.DistanceMeters,
		MonitorSession: res.MonitorSession,
	}, nil
}

// AttemptLoginNow is AttemptLogin with the provider's last known fix.
func (e *Engine) AttemptLoginNow(ctx context.Context) (*LoginResult, error) {
	if e == nil || e.source == nil {
		return nil, ErrEngineNotReady
	}
	return e.AttemptLogin(ctx, e.source.LastKnown(ctx))
}
