package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	geoAuth "github.com/MrEthical07/geoAuth"
	"github.com/MrEthical07/geoAuth/geo"
	"github.com/MrEthical07/geoAuth/location"
	"github.com/MrEthical07/geoAuth/metrics/export/prometheus"
	"github.com/spf13/cobra"
)

const noticeHistory = 32

func newServeCmd(app *application) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the engine behind an HTTP API that accepts pushed fixes",
		Long: `Run the engine behind a small HTTP API. Location fixes, permission changes
and the location services switch are pushed in by the caller, standing in for
the device.

  POST /fix          {"latitude":..,"longitude":..,"accuracy":..}
  POST /fix/missing  provider event without a fix
  POST /login        optional {"latitude":..,"longitude":..}; last fix otherwise
  POST /logout
  GET  /state
  GET  /notices
  POST /permissions  {"grant":[..],"revoke":[..]}
  POST /services     {"enabled":true|false}
  GET  /metrics      Prometheus exposition`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, app)
		},
	}
	cmd.Flags().String("addr", ":8080", "listen address")
	mustBindFlags(app.v, cmd.Flags(), map[string]string{"serve.addr": "addr"})
	return cmd
}

func runServe(ctx context.Context, app *application) error {
	cfg, err := app.cfg.engineConfig()
	if err != nil {
		return err
	}
	store, closeStore, err := openStore(ctx, app.cfg.Store, app.logger)
	if err != nil {
		return err
	}
	defer closeStore()

	dev := newDevice(Track{})
	builder := geoAuth.New().
		WithConfig(cfg).
		WithSessionStore(store).
		WithLocationProvider(dev.feed).
		WithPermissions(dev.grants).
		WithLocationServices(dev.services).
		WithLogger(app.logger)
	if cfg.Audit.Enabled {
		builder = builder.WithAuditSink(geoAuth.NewSlogSink(app.logger))
	}
	engine, err := builder.Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	if st, err := engine.Reconcile(ctx); err != nil {
		app.logger.WarnContext(ctx, "startup reconciliation failed", slog.Any("error", err))
	} else {
		app.logger.InfoContext(ctx, "session reconciled", slog.String("session", st.Session.String()))
	}

	srv := newServer(ctx, engine, dev, app.logger)
	httpSrv := &http.Server{
		Addr:              app.cfg.Serve.Addr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info("listening", slog.String("addr", httpSrv.Addr))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

type server struct {
	engine  *geoAuth.Engine
	dev     *device
	logger  *slog.Logger
	metrics http.Handler

	mu      sync.Mutex
	notices []geoAuth.Notice
}

// newServer wires handlers to engine and starts collecting notices until ctx ends.
func newServer(ctx context.Context, engine *geoAuth.Engine, dev *device, logger *slog.Logger) *server {
	s := &server{
		engine:  engine,
		dev:     dev,
		logger:  logger.With(slog.String("component", "http")),
		metrics: prometheus.NewCollector(engine).Handler(),
	}
	go s.collectNotices(engine.Notices(ctx))
	return s
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /fix", s.handleFix)
	mux.HandleFunc("POST /fix/missing", s.handleMissingFix)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /logout", s.handleLogout)
	mux.HandleFunc("GET /state", s.handleState)
	mux.HandleFunc("GET /notices", s.handleNotices)
	mux.HandleFunc("POST /permissions", s.handlePermissions)
	mux.HandleFunc("POST /services", s.handleServices)
	mux.Handle("GET /metrics", s.metrics)
	return mux
}

func (s *server) collectNotices(ch <-chan geoAuth.Notice) {
	for n := range ch {
		s.mu.Lock()
		s.notices = append(s.notices, n)
		if len(s.notices) > noticeHistory {
			s.notices = s.notices[len(s.notices)-noticeHistory:]
		}
		s.mu.Unlock()
	}
}

type coordinateBody struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Accuracy  float32  `json:"accuracy"`
}

func (b coordinateBody) coordinate() (*geo.Coordinate, error) {
	if b.Latitude == nil && b.Longitude == nil {
		return nil, nil
	}
	if b.Latitude == nil || b.Longitude == nil {
		return nil, errors.New("latitude and longitude must be given together")
	}
	c := geo.Coordinate{Latitude: *b.Latitude, Longitude: *b.Longitude}
	if !c.Valid() {
		return nil, errors.New("coordinate out of range")
	}
	return &c, nil
}

func (s *server) handleFix(w http.ResponseWriter, r *http.Request) {
	var body coordinateBody
	if err := decodeBody(w, r, &body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	c, err := body.coordinate()
	if err != nil || c == nil {
		http.Error(w, "latitude and longitude required", http.StatusBadRequest)
		return
	}
	s.dev.feed.Push(&location.Fix{Coordinate: *c, Accuracy: body.Accuracy})
	w.WriteHeader(http.StatusAccepted)
}

func (s *server) handleMissingFix(w http.ResponseWriter, _ *http.Request) {
	s.dev.feed.Push(nil)
	w.WriteHeader(http.StatusAccepted)
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body coordinateBody
	if r.ContentLength != 0 {
		if err := decodeBody(w, r, &body); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
	}
	c, err := body.coordinate()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var res *geoAuth.LoginResult
	if c != nil {
		res, err = s.engine.AttemptLogin(r.Context(), &location.Sample{
			Coordinate: *c,
			Accuracy:   body.Accuracy,
			Timestamp:  time.Now().UnixMilli(),
		})
	} else {
		res, err = s.engine.AttemptLoginNow(r.Context())
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"latitude":        res.Coordinate.Latitude,
		"longitude":       res.Coordinate.Longitude,
		"distance_m":      res.DistanceMeters,
		"monitor_session": res.MonitorSession,
	})
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Logout(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleState(w http.ResponseWriter, r *http.Request) {
	st := s.engine.State(r.Context())
	out := map[string]any{
		"session":          st.Session.String(),
		"location_enabled": s.engine.LocationServicesEnabled(),
		"permissions":      s.dev.grants.Snapshot().String(),
	}
	if st.Coordinate != nil {
		out["latitude"] = st.Coordinate.Latitude
		out["longitude"] = st.Coordinate.Longitude
	}
	if ms := s.engine.Monitor().Session(); ms != nil {
		out["monitor_session"] = ms.ID
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) handleNotices(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	out := make([]map[string]any, 0, len(s.notices))
	for _, n := range s.notices {
		out = append(out, map[string]any{
			"id":              n.ID,
			"reason":          n.Reason.String(),
			"message":         n.Message,
			"action":          n.Action.String(),
			"monitor_session": n.MonitorSession,
			"at":              n.At,
		})
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *server) handlePermissions(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Grant  []string `json:"grant"`
		Revoke []string `json:"revoke"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	grant, err := parseKinds(body.Grant)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	revoke, err := parseKinds(body.Revoke)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.dev.grants.Grant(grant...)
	s.dev.grants.Revoke(revoke...)
	writeJSON(w, http.StatusOK, map[string]string{"permissions": s.dev.grants.Snapshot().String()})
}

func (s *server) handleServices(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := decodeBody(w, r, &body); err != nil || body.Enabled == nil {
		http.Error(w, "enabled required", http.StatusBadRequest)
		return
	}
	s.dev.services.Set(*body.Enabled)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var rej *geoAuth.LoginRejection
	switch {
	case errors.As(err, &rej):
		writeJSON(w, http.StatusForbidden, map[string]string{
			"rejection": rej.Kind.String(),
			"message":   rej.Message,
			"action":    rej.Action.String(),
		})
	case errors.Is(err, geoAuth.ErrSessionWriteFailed), errors.Is(err, geoAuth.ErrMonitorUnavailable):
		s.logger.ErrorContext(r.Context(), "session update failed", slog.Any("error", err))
		http.Error(w, "session store unavailable", http.StatusServiceUnavailable)
	case errors.Is(err, geoAuth.ErrEngineClosed):
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
	default:
		s.logger.ErrorContext(r.Context(), "request failed", slog.Any("error", err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
