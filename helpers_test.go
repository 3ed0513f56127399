package geoAuth

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/MrEthical07/geoAuth/geo"
	"github.com/MrEthical07/geoAuth/location"
	"github.com/MrEthical07/geoAuth/permission"
	"github.com/MrEthical07/geoAuth/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type testRig struct {
	engine   *Engine
	store    *session.RedisStore
	mr       *miniredis.Miniredis
	feed     *location.FeedProvider
	grants   *permission.Grants
	services *location.ServiceSwitch
	sink     *ChannelSink
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func testConfig() Config {
	cfg := defaultConfig()
	cfg.Location.FastestInterval = 0
	cfg.Metrics.Enabled = true
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false
	return cfg
}

func newTestRig(t *testing.T, mutate func(*Config)) *testRig {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	mr, rdb := newTestRedis(t)
	rig := &testRig{
		store:    session.NewRedisStore(rdb, "geo", "", nil),
		mr:       mr,
		feed:     location.NewFeedProvider(),
		grants:   permission.NewGrants(permission.SetOf(permission.AllKinds()...), nil),
		services: location.NewServiceSwitch(true),
		sink:     NewChannelSink(256),
	}

	engine, err := New().
		WithConfig(cfg).
		WithSessionStore(rig.store).
		WithLocationProvider(rig.feed).
		WithPermissions(rig.grants).
		WithLocationServices(rig.services).
		WithAuditSink(rig.sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	rig.engine = engine
	t.Cleanup(engine.Close)
	return rig
}

// offsetNorth returns the point meters due north of c.
func offsetNorth(c geo.Coordinate, meters float64) geo.Coordinate {
	return geo.Coordinate{
		Latitude:  c.Latitude + meters/geo.EarthRadiusMeters*180/math.Pi,
		Longitude: c.Longitude,
	}
}

func sampleAt(c geo.Coordinate) *location.Sample {
	return &location.Sample{Coordinate: c, Accuracy: 5, Timestamp: time.Now().UnixMilli()}
}

func fixAt(c geo.Coordinate) *location.Fix {
	return &location.Fix{Coordinate: c, Accuracy: 5}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func (r *testRig) login(t *testing.T) *LoginResult {
	t.Helper()

	res, err := r.engine.AttemptLogin(context.Background(), sampleAt(DefaultOffice))
	if err != nil {
		t.Fatalf("AttemptLogin failed: %v", err)
	}
	waitFor(t, "monitor subscription", func() bool { return r.feed.ActiveRegistrations() == 1 })
	return res
}

func nextNotice(t *testing.T, ch <-chan Notice) Notice {
	t.Helper()

	select {
	case n, ok := <-ch:
		if !ok {
			t.Fatal("notice channel closed")
		}
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notice")
	}
	return Notice{}
}

func expectNoNotice(t *testing.T, ch <-chan Notice) {
	t.Helper()

	select {
	case n := <-ch:
		t.Fatalf("unexpected notice: %+v", n)
	case <-time.After(50 * time.Millisecond):
	}
}

func nextAudit(t *testing.T, sink *ChannelSink, eventType string) AuditEvent {
	t.Helper()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sink.Events():
			if ev.EventType == eventType {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for audit event %s", eventType)
		}
	}
}
