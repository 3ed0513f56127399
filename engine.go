package geoAuth

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/geoAuth/internal/audit"
	"github.com/MrEthical07/geoAuth/internal/flows"
	"github.com/MrEthical07/geoAuth/internal/notify"
	"github.com/MrEthical07/geoAuth/location"
	"github.com/MrEthical07/geoAuth/permission"
	"github.com/MrEthical07/geoAuth/session"
	"github.com/google/uuid"
)

// Engine owns the session lifecycle: login decisions, manual and automatic
// logout, startup reconciliation, and the background monitor.
//
// Engine instances are configured once through [Builder] and are safe for
// concurrent use afterwards.
type Engine struct {
	config   Config
	store    session.Store
	source   *location.Source
	perms    permission.Capability
	services location.ServiceChecker
	audit    *audit.Dispatcher
	metrics  *Metrics
	logger   *slog.Logger
	monitor  *Monitor
	notices  *notify.Broadcaster[Notice]
	flows    flows.Deps

	// gate serialises every read-modify-write of the session store
	gate chan struct{}

	closed    atomic.Bool
	closeOnce sync.Once
}

func (e *Engine) acquire(ctx context.Context) error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	select {
	case e.gate <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) release() {
	<-e.gate
}

// Close stops the monitor, closes notice subscriptions and flushes audit events.
// The session store is owned by the caller and is left open.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		if e.monitor != nil {
			e.monitor.shutdown()
		}
		if e.notices != nil {
			e.notices.Close()
		}
		e.audit.Close()
	})
}

// AuditDropped reports audit events lost to backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// LocationDropped reports location fixes discarded by the throttle or a full
// stream queue.
func (e *Engine) LocationDropped() uint64 {
	if e == nil || e.source == nil {
		return 0
	}
	return e.source.Dropped()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Monitor returns the engine's background monitor.
func (e *Engine) Monitor() *Monitor {
	if e == nil {
		return nil
	}
	return e.monitor
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

// State reads the persisted session.
func (e *Engine) State(ctx context.Context) State {
	if e == nil || e.store == nil {
		return State{}
	}
	st := e.store.State(ctx)
	if !st.LoggedIn {
		return State{Session: LoggedOut}
	}
	return State{Session: LoggedIn, Coordinate: st.Coordinate}
}

// ObserveLoggedIn streams the session flag: the current value first, then
// every change. The channel closes when ctx ends.
func (e *Engine) ObserveLoggedIn(ctx context.Context) <-chan bool {
	return e.store.ObserveLoggedIn(ctx)
}

// CurrentLocation opens a location stream for display purposes. The caller
// must Close it or cancel ctx.
func (e *Engine) CurrentLocation(ctx context.Context) *location.Stream {
	return e.source.Stream(ctx)
}

// LastKnownLocation returns the provider's cached fix, or nil.
func (e *Engine) LastKnownLocation(ctx context.Context) *location.Sample {
	return e.source.LastKnown(ctx)
}

// Notices subscribes to automatic logout notices published after this call.
func (e *Engine) Notices(ctx context.Context) <-chan Notice {
	return e.notices.Subscribe(ctx)
}

// RequestPermissions asks for every permission kind the app uses. It blocks
// until the host's prompt answers or ctx ends.
func (e *Engine) RequestPermissions(ctx context.Context) (permission.Set, error) {
	if e == nil || e.perms == nil {
		return 0, ErrEngineNotReady
	}
	return e.perms.Request(ctx, permission.AllKinds()...)
}

// LocationServicesEnabled reports the system location switch.
func (e *Engine) LocationServicesEnabled() bool {
	return e != nil && e.services != nil && e.services.Enabled()
}

func (e *Engine) environment() flows.Environment {
	return flows.Environment{
		Granted:         e.perms.Granted,
		RequiredKinds:   e.config.requiredKinds(),
		ServicesEnabled: e.services.Enabled,
	}
}

func (e *Engine) publishNotice(reason LogoutReason, monitorSession string) {
	msg, action := noticeText(reason)
	e.notices.Publish(Notice{
		ID:             uuid.NewString(),
		Reason:         reason,
		Message:        msg,
		Action:         action,
		MonitorSession: monitorSession,
		At:             time.Now(),
	})
}

func (e *Engine) warn(msg string, args ...any) {
	e.logger.Warn(msg, args...)
}
