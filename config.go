package geoAuth

import (
	"errors"
	"math"
	"time"

	"github.com/MrEthical07/geoAuth/geo"
	"github.com/MrEthical07/geoAuth/location"
	"github.com/MrEthical07/geoAuth/permission"
	"github.com/MrEthical07/geoAuth/session"
)

// Config is the full engine configuration. Obtain defaults with [DefaultConfig]
// and adjust fields before passing it to [Builder.WithConfig].
type Config struct {
	Perimeter geo.Perimeter
	Location  LocationConfig
	Monitor   MonitorConfig
	Policy    PolicyConfig
	Session   SessionConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
LOCATION CONFIG
====================================
*/

// LocationConfig tunes the location provider request.
type LocationConfig struct {
	Interval        time.Duration
	FastestInterval time.Duration
	// QueueSize bounds undelivered samples per stream; overflow is dropped.
	QueueSize int
}

/*
====================================
MONITOR CONFIG
====================================
*/

// MonitorConfig tunes the background monitor.
type MonitorConfig struct {
	// MaxMissedSamples is the number of consecutive samples without a fix that
	// end the session. Zero never ends it for missing fixes; 1 ends it on the
	// first one.
	MaxMissedSamples int
}

/*
====================================
POLICY CONFIG
====================================
*/

// PolicyConfig selects which permissions a session needs.
type PolicyConfig struct {
	// RequireBackgroundLocation makes background location a login and monitor
	// precondition alongside foreground location.
	RequireBackgroundLocation bool
}

/*
====================================
SESSION / AUDIT / METRICS CONFIG
====================================
*/

// SessionConfig names the persisted region.
type SessionConfig struct {
	Region string
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// Default office perimeter.
var (
	DefaultOffice       = geo.Coordinate{Latitude: 22.6990, Longitude: 88.6885}
	DefaultRadiusMeters = 80.0
)

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Perimeter: geo.Perimeter{
			Center:       DefaultOffice,
			RadiusMeters: DefaultRadiusMeters,
		},
		Location: LocationConfig{
			Interval:        location.DefaultInterval,
			FastestInterval: location.DefaultFastestInterval,
			QueueSize:       location.DefaultQueueSize,
		},
		Monitor: MonitorConfig{
			MaxMissedSamples: 3,
		},
		Policy: PolicyConfig{
			RequireBackgroundLocation: true,
		},
		Session: SessionConfig{
			Region: session.DefaultRegion,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	return cfg
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks every rule and returns the first violation.
func (c *Config) Validate() error {
	if err := c.Perimeter.Validate(); err != nil {
		return err
	}

	if c.Location.Interval <= 0 {
		return errors.New("Location Interval must be > 0")
	}
	if c.Location.FastestInterval < 0 {
		return errors.New("Location FastestInterval must be >= 0")
	}
	if c.Location.FastestInterval > c.Location.Interval {
		return errors.New("Location FastestInterval must be <= Interval")
	}
	if c.Location.QueueSize <= 0 {
		return errors.New("Location QueueSize must be > 0")
	}

	if c.Monitor.MaxMissedSamples < 0 {
		return errors.New("Monitor MaxMissedSamples must be >= 0")
	}

	if c.Session.Region == "" {
		return errors.New("Session Region must not be empty")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}
	if c.Audit.BufferSize > math.MaxInt32 {
		return errors.New("Audit BufferSize too large")
	}

	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}

func (c Config) requiredKinds() []permission.Kind {
	return permission.LocationKinds(c.Policy.RequireBackgroundLocation)
}

func (c Config) locationConfig() location.Config {
	return location.Config{
		Request: location.Request{
			Interval:        c.Location.Interval,
			FastestInterval: c.Location.FastestInterval,
		},
		QueueSize: c.Location.QueueSize,
	}
}
