package geoAuth

import (
	"context"
	"log/slog"

	"github.com/MrEthical07/geoAuth/internal/flows"
)

// Reconcile runs once at startup, before the first screen. A persisted session
// is re-checked against permissions, location services, and the stored login
// coordinate (or the last known fix when none is stored). A session that fails
// is ended silently, without a notice; one that passes gets its monitor back.
// The returned State decides the initial screen.
func (e *Engine) Reconcile(ctx context.Context) (State, error) {
	if e == nil || e.store == nil {
		return State{}, ErrEngineNotReady
	}
	if err := e.acquire(ctx); err != nil {
		return State{}, err
	}
	defer e.release()

	res, err := flows.RunReconcile(ctx, e.flows.Reconcile)
	st := State{Session: LoggedOut, Reason: res.Reason}
	if res.LoggedIn {
		st.Session = LoggedIn
		st.Coordinate = res.Coordinate
	}
	if err != nil {
		return st, err
	}

	if res.Reason != ReasonNone {
		e.logger.InfoContext(ctx, "persisted session ended at startup", slog.String("reason", res.Reason.String()))
	}
	return st, nil
}
