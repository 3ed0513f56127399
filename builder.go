package geoAuth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/MrEthical07/geoAuth/internal/audit"
	"github.com/MrEthical07/geoAuth/internal/flows"
	"github.com/MrEthical07/geoAuth/internal/notify"
	"github.com/MrEthical07/geoAuth/location"
	"github.com/MrEthical07/geoAuth/permission"
	"github.com/MrEthical07/geoAuth/session"
)

// Builder assembles an [Engine]. A Builder can be built once.
type Builder struct {
	config Config

	store    session.Store
	provider location.Provider
	perms    permission.Capability
	services location.ServiceChecker

	auditSink AuditSink
	logger    *slog.Logger

	built bool
}

// New returns a Builder holding [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithSessionStore sets the durable session store. The caller keeps ownership
// and closes it after the Engine.
func (b *Builder) WithSessionStore(store session.Store) *Builder {
	b.store = store
	return b
}

// WithLocationProvider sets the device location API.
func (b *Builder) WithLocationProvider(p location.Provider) *Builder {
	b.provider = p
	return b
}

// WithPermissions sets the permission capability.
func (b *Builder) WithPermissions(c permission.Capability) *Builder {
	b.perms = c
	return b
}

// WithLocationServices sets the system location switch.
func (b *Builder) WithLocationServices(s location.ServiceChecker) *Builder {
	b.services = s
	return b
}

// WithAuditSink sets the sink audit events are dispatched to.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the structured logger. The default discards output.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the login latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine together.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.store == nil {
		return nil, errors.New("session store required")
	}
	if b.provider == nil {
		return nil, errors.New("location provider required")
	}
	if b.perms == nil {
		return nil, errors.New("permission capability required")
	}
	if b.services == nil {
		return nil, errors.New("location service checker required")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	engine := &Engine{
		config:   cfg,
		store:    b.store,
		perms:    b.perms,
		services: b.services,
		logger:   logger,
		metrics:  NewMetrics(cfg.Metrics),
		notices:  notify.New[Notice](),
		gate:     make(chan struct{}, 1),
	}
	engine.source = location.NewSource(b.provider, b.perms, cfg.locationConfig(), logger)
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	engine.monitor = &Monitor{
		source:  engine.source,
		store:   b.store,
		env:     engine.environment(),
		check:   flows.PresenceCheck{Perimeter: cfg.Perimeter, MaxMissedSamples: cfg.Monitor.MaxMissedSamples},
		metrics: engine.metrics,
		logger:  logger.With(slog.String("component", "monitor")),
		now:     time.Now,
		hooks: monitorHooks{
			violation: engine.autoLogout,
			started: func(ms MonitoringSession) {
				engine.emitAudit(context.Background(), auditEventMonitorStarted, true, ms.ID, nil, nil)
			},
			stopped: func(ms MonitoringSession) {
				engine.emitAudit(context.Background(), auditEventMonitorStopped, true, ms.ID, nil, nil)
			},
		},
	}
	engine.flows = engine.buildFlows()

	b.built = true
	return engine, nil
}
