package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	geoAuth "github.com/MrEthical07/geoAuth"
	"github.com/spf13/cobra"
)

type simulateOptions struct {
	track  string
	settle time.Duration
}

func newSimulateCmd(app *application) *cobra.Command {
	opts := &simulateOptions{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay a YAML track of location fixes and device events",
		Long: `Replay a YAML track against a fresh engine and print the session state
after every step. Automatic logouts are printed as notices.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.track == "" {
				return errors.New("--track is required")
			}
			t, err := readTrack(opts.track)
			if err != nil {
				return err
			}
			return runSimulation(cmd.Context(), app, t, opts.settle, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.track, "track", "", "path to the YAML track")
	cmd.Flags().DurationVar(&opts.settle, "settle", 2*time.Second, "how long to wait for the monitor after each step")
	return cmd
}

// runSimulation replays t and writes one line per step to out.
func runSimulation(ctx context.Context, app *application, t Track, settle time.Duration, out io.Writer) error {
	cfg, err := app.cfg.engineConfig()
	if err != nil {
		return err
	}
	// the replayer counts handled samples
	cfg.Metrics.Enabled = true

	store, closeStore, err := openStore(ctx, app.cfg.Store, app.logger)
	if err != nil {
		return err
	}
	defer closeStore()

	dev := newDevice(t)
	engine, err := geoAuth.New().
		WithConfig(cfg).
		WithSessionStore(store).
		WithLocationProvider(dev.feed).
		WithPermissions(dev.grants).
		WithLocationServices(dev.services).
		WithAuditSink(geoAuth.NewSlogSink(app.logger)).
		WithLogger(app.logger).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	noticeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	r := &replayer{
		engine:   engine,
		dev:      dev,
		center:   cfg.Perimeter.Center,
		notices:  engine.Notices(noticeCtx),
		settle:   settle,
		clock:    time.Now(),
		interval: cfg.Location.Interval,
	}

	if _, err := engine.Reconcile(ctx); err != nil {
		app.logger.WarnContext(ctx, "startup reconciliation failed", slog.Any("error", err))
	}

	if t.Name != "" {
		fmt.Fprintf(out, "track: %s\n", t.Name)
	}
	return r.replay(ctx, t, func(res StepResult) {
		line := fmt.Sprintf("%3d %-12s session=%s", res.Index, res.Action, res.Session)
		if res.Detail != "" {
			line += " " + res.Detail
		}
		if res.Err != nil {
			line += " error=" + describeError(res.Err)
		}
		fmt.Fprintln(out, line)
		for _, n := range res.Notices {
			fmt.Fprintf(out, "    notice reason=%s action=%s: %s\n", n.Reason, n.Action, n.Message)
		}
	})
}

func describeError(err error) string {
	var rej *geoAuth.LoginRejection
	if errors.As(err, &rej) {
		return fmt.Sprintf("%s (%s)", rej.Kind, rej.Message)
	}
	return err.Error()
}
