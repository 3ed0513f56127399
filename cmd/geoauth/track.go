package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	geoAuth "github.com/MrEthical07/geoAuth"
	"github.com/MrEthical07/geoAuth/geo"
	"github.com/MrEthical07/geoAuth/location"
	"github.com/MrEthical07/geoAuth/permission"
	"gopkg.in/yaml.v3"
)

// Track actions.
const (
	actionFix         = "fix"
	actionMissing     = "missing"
	actionLogin       = "login"
	actionLogout      = "logout"
	actionGrant       = "grant"
	actionRevoke      = "revoke"
	actionServices    = "services"
	actionWait        = "wait"
	actionRestart     = "restart"
	actionEndProvider = "end_provider"
)

// Track is a scripted sequence of device events.
type Track struct {
	Name string `yaml:"name"`
	// Grants lists the permissions granted at start; empty grants everything.
	Grants []string `yaml:"grants"`
	// Services is the initial location services switch; default on.
	Services *bool  `yaml:"services"`
	Steps    []Step `yaml:"steps"`
}

// Step is one track event. Coordinates are given either absolutely or as an
// offset in meters north of the perimeter centre.
type Step struct {
	Action       string        `yaml:"action"`
	Latitude     *float64      `yaml:"latitude"`
	Longitude    *float64      `yaml:"longitude"`
	OffsetMeters *float64      `yaml:"offset_meters"`
	Accuracy     float32       `yaml:"accuracy"`
	Permissions  []string      `yaml:"permissions"`
	Enabled      *bool         `yaml:"enabled"`
	Duration     time.Duration `yaml:"duration"`
}

func readTrack(path string) (Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return Track{}, err
	}
	defer f.Close()
	return decodeTrack(f)
}

func decodeTrack(r io.Reader) (Track, error) {
	var t Track
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil {
		return Track{}, fmt.Errorf("decode track: %w", err)
	}
	if len(t.Steps) == 0 {
		return Track{}, errors.New("track has no steps")
	}
	for i, st := range t.Steps {
		if err := st.validate(); err != nil {
			return Track{}, fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	if _, err := parseKinds(t.Grants); err != nil {
		return Track{}, err
	}
	return t, nil
}

func (s Step) validate() error {
	switch s.Action {
	case actionFix:
		if s.OffsetMeters == nil && (s.Latitude == nil || s.Longitude == nil) {
			return errors.New("fix needs latitude and longitude or offset_meters")
		}
	case actionGrant, actionRevoke:
		if len(s.Permissions) == 0 {
			return fmt.Errorf("%s needs permissions", s.Action)
		}
		if _, err := parseKinds(s.Permissions); err != nil {
			return err
		}
	case actionServices:
		if s.Enabled == nil {
			return errors.New("services needs enabled")
		}
	case actionWait:
		if s.Duration <= 0 {
			return errors.New("wait needs a positive duration")
		}
	case actionMissing, actionLogin, actionLogout, actionRestart, actionEndProvider:
	default:
		return fmt.Errorf("unknown action %q", s.Action)
	}
	return nil
}

// coordinate resolves the step position, or nil when none is given.
func (s Step) coordinate(center geo.Coordinate) *geo.Coordinate {
	switch {
	case s.OffsetMeters != nil:
		c := geo.Coordinate{
			Latitude:  center.Latitude + *s.OffsetMeters/geo.EarthRadiusMeters*180/math.Pi,
			Longitude: center.Longitude,
		}
		return &c
	case s.Latitude != nil && s.Longitude != nil:
		return &geo.Coordinate{Latitude: *s.Latitude, Longitude: *s.Longitude}
	default:
		return nil
	}
}

func parseKinds(names []string) ([]permission.Kind, error) {
	out := make([]permission.Kind, 0, len(names))
	for _, n := range names {
		k, err := permission.ParseKind(n)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", err, n)
		}
		out = append(out, k)
	}
	return out, nil
}

// device is the simulated phone behind an engine.
type device struct {
	feed     *location.FeedProvider
	grants   *permission.Grants
	services *location.ServiceSwitch
}

func newDevice(t Track) *device {
	kinds, _ := parseKinds(t.Grants)
	if len(t.Grants) == 0 {
		kinds = permission.AllKinds()
	}
	enabled := true
	if t.Services != nil {
		enabled = *t.Services
	}
	return &device{
		feed:     location.NewFeedProvider(),
		grants:   permission.NewGrants(permission.SetOf(kinds...), nil),
		services: location.NewServiceSwitch(enabled),
	}
}

// StepResult is what one step did.
type StepResult struct {
	Index   int
	Action  string
	Detail  string
	Session geoAuth.SessionState
	Notices []geoAuth.Notice
	Err     error
}

// replayer plays a track against one engine.
type replayer struct {
	engine  *geoAuth.Engine
	dev     *device
	center  geo.Coordinate
	notices <-chan geoAuth.Notice
	settle  time.Duration

	// clock stamps pushed fixes and advances one interval per fix.
	clock    time.Time
	interval time.Duration
}

// replay runs every step in order and reports each result to emit.
func (r *replayer) replay(ctx context.Context, t Track, emit func(StepResult)) error {
	for i, st := range t.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		res := r.step(ctx, st)
		res.Index = i + 1
		res.Action = st.Action
		res.Session = r.engine.State(ctx).Session
		res.Notices = r.drainNotices()
		emit(res)
	}
	return nil
}

func (r *replayer) step(ctx context.Context, st Step) StepResult {
	var res StepResult
	switch st.Action {
	case actionFix, actionMissing:
		var fix *location.Fix
		if c := st.coordinate(r.center); c != nil && st.Action == actionFix {
			r.clock = r.clock.Add(r.interval)
			fix = &location.Fix{Coordinate: *c, Accuracy: st.Accuracy, Time: r.clock}
			res.Detail = fmt.Sprintf("%.6f,%.6f (%.1fm from centre)", c.Latitude, c.Longitude, geo.DistanceMeters(*c, r.center))
		}
		r.push(fix)

	case actionLogin:
		var (
			lr  *geoAuth.LoginResult
			err error
		)
		if c := st.coordinate(r.center); c != nil {
			lr, err = r.engine.AttemptLogin(ctx, &location.Sample{
				Coordinate: *c,
				Accuracy:   st.Accuracy,
				Timestamp:  time.Now().UnixMilli(),
			})
		} else {
			lr, err = r.engine.AttemptLoginNow(ctx)
		}
		if err != nil {
			res.Err = err
			break
		}
		res.Detail = fmt.Sprintf("distance %.1fm, monitor %s", lr.DistanceMeters, lr.MonitorSession)
		r.awaitSubscription()

	case actionLogout:
		res.Err = r.engine.Logout(ctx)

	case actionGrant:
		kinds, _ := parseKinds(st.Permissions)
		r.dev.grants.Grant(kinds...)
		res.Detail = permission.SetOf(kinds...).String()

	case actionRevoke:
		kinds, _ := parseKinds(st.Permissions)
		r.dev.grants.Revoke(kinds...)
		res.Detail = permission.SetOf(kinds...).String()

	case actionServices:
		r.dev.services.Set(*st.Enabled)
		res.Detail = fmt.Sprintf("enabled=%t", *st.Enabled)

	case actionWait:
		r.clock = r.clock.Add(st.Duration)
		select {
		case <-time.After(st.Duration):
		case <-ctx.Done():
			res.Err = ctx.Err()
		}

	case actionRestart:
		r.engine.Monitor().Stop()
		state, err := r.engine.Reconcile(ctx)
		if err != nil {
			res.Err = err
			break
		}
		if state.Reason != geoAuth.ReasonNone {
			res.Detail = "session ended: " + state.Reason.String()
		}
		r.awaitSubscription()

	case actionEndProvider:
		r.dev.feed.Close()
		r.awaitStop()
	}
	return res
}

// push delivers fix and waits until the monitor has handled it, when one is
// running.
func (r *replayer) push(fix *location.Fix) {
	mon := r.engine.Monitor()
	if !mon.Running() || r.dev.feed.ActiveRegistrations() == 0 {
		r.dev.feed.Push(fix)
		return
	}
	before := r.engine.MetricsSnapshot().Counters[geoAuth.MetricSampleReceived]
	r.dev.feed.Push(fix)
	r.await(func() bool {
		return !mon.Running() || r.engine.MetricsSnapshot().Counters[geoAuth.MetricSampleReceived] > before
	})
}

func (r *replayer) awaitSubscription() {
	mon := r.engine.Monitor()
	r.await(func() bool {
		return !mon.Running() || r.dev.feed.ActiveRegistrations() > 0
	})
}

func (r *replayer) awaitStop() {
	mon := r.engine.Monitor()
	r.await(func() bool { return !mon.Running() })
}

func (r *replayer) await(cond func() bool) {
	deadline := time.Now().Add(r.settle)
	for !cond() && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
}

func (r *replayer) drainNotices() []geoAuth.Notice {
	var out []geoAuth.Notice
	// notices are published before the monitor stops, give the subscriber a moment
	timeout := time.After(25 * time.Millisecond)
	for {
		select {
		case n, ok := <-r.notices:
			if !ok {
				return out
			}
			out = append(out, n)
		case <-timeout:
			return out
		}
	}
}
