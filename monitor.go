package geoAuth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/MrEthical07/geoAuth/internal/flows"
	"github.com/MrEthical07/geoAuth/location"
	"github.com/MrEthical07/geoAuth/session"
	"github.com/google/uuid"
)

// MonitoringSession identifies one location subscription held by the monitor.
type MonitoringSession struct {
	ID        string
	StartedAt time.Time
}

type monitorHooks struct {
	// violation is called from the monitor goroutine with the run's context.
	// The context is cancelled when the run is stopped.
	violation func(ctx context.Context, reason LogoutReason, ms MonitoringSession)
	started   func(ms MonitoringSession)
	stopped   func(ms MonitoringSession)
}

type monitorRun struct {
	session MonitoringSession
	cancel  context.CancelFunc
	done    chan struct{}
}

// Monitor re-validates a live session against every location sample and ends it
// when a check fails. At most one monitoring session exists at a time.
//
// Missing fixes end the session only after Config.Monitor.MaxMissedSamples of
// them in a row. Setting it to 1 logs out on the first sample without a fix.
type Monitor struct {
	source  *location.Source
	store   session.Store
	env     flows.Environment
	check   flows.PresenceCheck
	metrics *Metrics
	logger  *slog.Logger
	hooks   monitorHooks
	now     func() time.Time

	// lifecycle serialises Start and Stop, including the wait for the old run.
	lifecycle sync.Mutex
	closed    bool

	mu      sync.Mutex
	current *monitorRun
}

// Start is the process lifecycle boundary. With loggedIn false it stops any
// running session. With loggedIn true it cancels the previous session, waits for
// its location subscription to be released, and only then subscribes anew.
func (m *Monitor) Start(ctx context.Context, loggedIn bool) error {
	if !loggedIn {
		m.Stop()
		return nil
	}
	_, err := m.start(ctx)
	return err
}

func (m *Monitor) start(ctx context.Context) (MonitoringSession, error) {
	if m == nil {
		return MonitoringSession{}, ErrEngineNotReady
	}
	if err := ctx.Err(); err != nil {
		return MonitoringSession{}, err
	}

	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	if m.closed {
		return MonitoringSession{}, ErrEngineClosed
	}
	m.stopLocked()

	// the run outlives the request that started it
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	run := &monitorRun{
		session: MonitoringSession{ID: uuid.NewString(), StartedAt: m.now()},
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	m.mu.Lock()
	m.current = run
	m.mu.Unlock()

	m.metrics.Inc(MetricMonitorStarted)
	if m.hooks.started != nil {
		m.hooks.started(run.session)
	}
	m.logger.Info("monitor started", slog.String("monitor_session", run.session.ID))

	go m.run(runCtx, run)
	return run.session, nil
}

// Stop cancels the running session, if any, and waits until its location
// subscription has been released.
func (m *Monitor) Stop() {
	if m == nil {
		return
	}
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	m.stopLocked()
}

func (m *Monitor) stopLocked() {
	m.mu.Lock()
	run := m.current
	m.current = nil
	m.mu.Unlock()

	if run == nil {
		return
	}
	run.cancel()
	<-run.done
}

func (m *Monitor) shutdown() {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	m.closed = true
	m.stopLocked()
}

// Running reports whether a monitoring session is active.
func (m *Monitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil
}

// Session returns the active monitoring session, or nil.
func (m *Monitor) Session() *MonitoringSession {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	ms := m.current.session
	return &ms
}

func (m *Monitor) run(ctx context.Context, run *monitorRun) {
	logger := m.logger.With(slog.String("monitor_session", run.session.ID))
	defer close(run.done)
	defer m.finish(run, logger)
	defer run.cancel()

	flag := m.store.ObserveLoggedIn(ctx)
	select {
	case v, ok := <-flag:
		if !ok || !v {
			logger.Info("monitor not started: session is logged out")
			return
		}
	case <-ctx.Done():
		return
	}

	stream := m.source.Stream(ctx)
	defer stream.Close()

	missed := 0
	for {
		select {
		case <-ctx.Done():
			return

		case v, ok := <-flag:
			if !ok {
				flag = nil
				continue
			}
			if !v {
				logger.Info("session ended elsewhere, monitor stopping")
				return
			}

		case smp, ok := <-stream.Samples():
			if !ok {
				if ctx.Err() != nil {
					return
				}
				logger.Warn("location stream ended")
				m.violate(ctx, ReasonLocationUnavailable, run.session, logger)
				return
			}

			verdict := m.check.Evaluate(m.env, smp, missed)
			if smp == nil {
				m.metrics.Inc(MetricSampleMissed)
				logger.Debug("location sample missing", slog.Int("missed", verdict.Missed))
			}
			missed = verdict.Missed
			if verdict.Logout {
				attrs := []any{slog.String("reason", verdict.Reason.String())}
				if smp != nil {
					attrs = append(attrs, slog.Float64("distance_m", verdict.Distance))
				}
				logger.Warn("session check failed", attrs...)
				m.violate(ctx, verdict.Reason, run.session, logger)
				// counted once the logout has been handled
				m.metrics.Inc(MetricSampleReceived)
				return
			}
			m.metrics.Inc(MetricSampleReceived)
		}
	}
}

func (m *Monitor) violate(ctx context.Context, reason LogoutReason, ms MonitoringSession, logger *slog.Logger) {
	if m.hooks.violation == nil {
		logger.Error("no violation handler, session left logged in", slog.String("reason", reason.String()))
		return
	}
	m.hooks.violation(ctx, reason, ms)
}

func (m *Monitor) finish(run *monitorRun, logger *slog.Logger) {
	m.mu.Lock()
	if m.current == run {
		m.current = nil
	}
	m.mu.Unlock()

	m.metrics.Inc(MetricMonitorStopped)
	if m.hooks.stopped != nil {
		m.hooks.stopped(run.session)
	}
	logger.Info("monitor stopped", slog.Duration("ran_for", m.now().Sub(run.session.StartedAt)))
}
