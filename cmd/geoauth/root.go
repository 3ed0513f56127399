package main

import (
	"log/slog"

	geoAuth "github.com/MrEthical07/geoAuth"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// application is the state shared by every subcommand once flags and config
// are resolved.
type application struct {
	v      *viper.Viper
	cfg    appConfig
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	app := &application{v: viper.New()}
	var cfgFile string

	root := &cobra.Command{
		Use:   "geoauth",
		Short: "Perimeter-gated session engine host",
		Long: `geoauth runs the perimeter-gated session engine outside a device: replay
recorded tracks with "simulate" or drive it over HTTP with "serve".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(app.v, cfgFile)
			if err != nil {
				return err
			}
			logger, err := newLogger(cmd.ErrOrStderr(), cfg.Log)
			if err != nil {
				return err
			}
			app.cfg = cfg
			app.logger = logger
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "config file (YAML)")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "text", "log format: text or json")
	flags.String("store", backendMemory, "session store backend: memory, redis or sqlite")
	flags.String("redis-addr", "", "redis address for the redis backend")
	flags.String("sqlite-path", "geoauth.db", "database file for the sqlite backend")
	flags.Float64("radius", geoAuth.DefaultRadiusMeters, "perimeter radius in meters")

	mustBindFlags(app.v, flags, map[string]string{
		"log.level":               "log-level",
		"log.format":              "log-format",
		"store.backend":           "store",
		"store.redis_addr":        "redis-addr",
		"store.sqlite_path":       "sqlite-path",
		"perimeter.radius_meters": "radius",
	})

	root.AddCommand(newSimulateCmd(app))
	root.AddCommand(newServeCmd(app))
	return root
}

// mustBindFlags binds config keys to the named flags of fs. It panics on an
// unknown flag name.
func mustBindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		f := fs.Lookup(name)
		if f == nil {
			panic("geoauth: unknown flag " + name)
		}
		if err := v.BindPFlag(key, f); err != nil {
			panic(err)
		}
	}
}
