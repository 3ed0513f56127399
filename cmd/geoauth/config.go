package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	geoAuth "github.com/MrEthical07/geoAuth"
	"github.com/MrEthical07/geoAuth/geo"
	"github.com/MrEthical07/geoAuth/session"
	"github.com/spf13/viper"
)

// Store backends.
const (
	backendMemory = "memory"
	backendRedis  = "redis"
	backendSQLite = "sqlite"
)

type appConfig struct {
	Log       logConfig       `mapstructure:"log"`
	Perimeter perimeterConfig `mapstructure:"perimeter"`
	Location  locationConfig  `mapstructure:"location"`
	Monitor   monitorConfig   `mapstructure:"monitor"`
	Policy    policyConfig    `mapstructure:"policy"`
	Store     storeConfig     `mapstructure:"store"`
	Audit     auditConfig     `mapstructure:"audit"`
	Metrics   metricsConfig   `mapstructure:"metrics"`
	Serve     serveConfig     `mapstructure:"serve"`
}

type logConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type perimeterConfig struct {
	Latitude     float64 `mapstructure:"latitude"`
	Longitude    float64 `mapstructure:"longitude"`
	RadiusMeters float64 `mapstructure:"radius_meters"`
}

type locationConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	FastestInterval time.Duration `mapstructure:"fastest_interval"`
	QueueSize       int           `mapstructure:"queue_size"`
}

type monitorConfig struct {
	MaxMissedSamples int `mapstructure:"max_missed_samples"`
}

type policyConfig struct {
	RequireBackgroundLocation bool `mapstructure:"require_background_location"`
}

type storeConfig struct {
	Backend    string `mapstructure:"backend"`
	RedisAddr  string `mapstructure:"redis_addr"`
	Prefix     string `mapstructure:"prefix"`
	SQLitePath string `mapstructure:"sqlite_path"`
	Region     string `mapstructure:"region"`
}

type auditConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	BufferSize int  `mapstructure:"buffer_size"`
}

type metricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Latency bool `mapstructure:"latency"`
}

type serveConfig struct {
	Addr string `mapstructure:"addr"`
}

// setDefaults mirrors geoAuth.DefaultConfig so every key is known to viper and
// can be overridden from the environment.
func setDefaults(v *viper.Viper) {
	def := geoAuth.DefaultConfig()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("perimeter.latitude", def.Perimeter.Center.Latitude)
	v.SetDefault("perimeter.longitude", def.Perimeter.Center.Longitude)
	v.SetDefault("perimeter.radius_meters", def.Perimeter.RadiusMeters)

	v.SetDefault("location.interval", def.Location.Interval)
	v.SetDefault("location.fastest_interval", def.Location.FastestInterval)
	v.SetDefault("location.queue_size", def.Location.QueueSize)

	v.SetDefault("monitor.max_missed_samples", def.Monitor.MaxMissedSamples)
	v.SetDefault("policy.require_background_location", def.Policy.RequireBackgroundLocation)

	v.SetDefault("store.backend", backendMemory)
	v.SetDefault("store.redis_addr", "")
	v.SetDefault("store.prefix", "geoauth")
	v.SetDefault("store.sqlite_path", "geoauth.db")
	v.SetDefault("store.region", session.DefaultRegion)

	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.buffer_size", def.Audit.BufferSize)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.latency", true)

	v.SetDefault("serve.addr", ":8080")
}

// loadConfig reads the optional config file and the environment into v.
func loadConfig(v *viper.Viper, file string) (appConfig, error) {
	setDefaults(v)

	v.SetEnvPrefix("GEOAUTH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return appConfig{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg appConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return appConfig{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return appConfig{}, err
	}
	return cfg, nil
}

func (c appConfig) validate() error {
	switch c.Store.Backend {
	case backendMemory, backendSQLite:
	case backendRedis:
		if c.Store.RedisAddr == "" {
			return errors.New("store.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	_, err := c.engineConfig()
	return err
}

// engineConfig maps the file layout onto geoAuth.Config and validates it.
func (c appConfig) engineConfig() (geoAuth.Config, error) {
	cfg := geoAuth.DefaultConfig()
	cfg.Perimeter = geo.Perimeter{
		Center:       geo.Coordinate{Latitude: c.Perimeter.Latitude, Longitude: c.Perimeter.Longitude},
		RadiusMeters: c.Perimeter.RadiusMeters,
	}
	cfg.Location.Interval = c.Location.Interval
	cfg.Location.FastestInterval = c.Location.FastestInterval
	cfg.Location.QueueSize = c.Location.QueueSize
	cfg.Monitor.MaxMissedSamples = c.Monitor.MaxMissedSamples
	cfg.Policy.RequireBackgroundLocation = c.Policy.RequireBackgroundLocation
	cfg.Session.Region = c.Store.Region
	cfg.Audit.Enabled = c.Audit.Enabled
	cfg.Audit.BufferSize = c.Audit.BufferSize
	cfg.Metrics.Enabled = c.Metrics.Enabled
	cfg.Metrics.EnableLatencyHistograms = c.Metrics.Enabled && c.Metrics.Latency

	if err := cfg.Validate(); err != nil {
		return geoAuth.Config{}, fmt.Errorf("invalid engine config: %w", err)
	}
	return cfg, nil
}
