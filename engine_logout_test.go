package geoAuth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/geoAuth/permission"
)

func TestLogoutStopsMonitorWithoutNotice(t *testing.T) {
	rig := newTestRig(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notices := rig.engine.Notices(ctx)
	rig.login(t)

	if err := rig.engine.Logout(ctx); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if rig.engine.State(ctx).LoggedIn() {
		t.Fatal("expected logged out")
	}
	if rig.engine.Monitor().Running() {
		t.Fatal("expected monitor stopped")
	}
	if got := rig.feed.ActiveRegistrations(); got != 0 {
		t.Fatalf("expected subscription released, got %d", got)
	}
	expectNoNotice(t, notices)

	snap := rig.engine.MetricsSnapshot()
	if snap.Counters[MetricLogoutManual] != 1 || snap.Counters[MetricLogoutAuto] != 0 {
		t.Fatalf("unexpected logout counters %+v", snap.Counters)
	}
}

func TestLogoutWhileLoggedOutIsNoop(t *testing.T) {
	rig := newTestRig(t, nil)

	if err := rig.engine.Logout(context.Background()); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if got := rig.engine.MetricsSnapshot().Counters[MetricLogoutManual]; got != 0 {
		t.Fatalf("expected no manual logout recorded, got %d", got)
	}
}

func TestLogoutStoreFailureKeepsSession(t *testing.T) {
	rig := newTestRig(t, nil)
	ctx := context.Background()
	rig.login(t)

	rig.mr.SetError("READONLY simulated failure")
	err := rig.engine.Logout(ctx)
	rig.mr.SetError("")

	if !errors.Is(err, ErrSessionWriteFailed) {
		t.Fatalf("expected ErrSessionWriteFailed, got %v", err)
	}
	if !rig.engine.State(ctx).LoggedIn() {
		t.Fatal("expected session kept after failed logout")
	}
	if !rig.engine.Monitor().Running() {
		t.Fatal("expected monitor kept after failed logout")
	}
}

func TestObserveLoggedInSeesTransitions(t *testing.T) {
	rig := newTestRig(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	flags := rig.engine.ObserveLoggedIn(ctx)
	next := func() bool {
		t.Helper()
		select {
		case v, ok := <-flags:
			if !ok {
				t.Fatal("observer closed")
			}
			return v
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for flag")
		}
		return false
	}

	if next() {
		t.Fatal("expected initial false")
	}
	rig.login(t)
	if !next() {
		t.Fatal("expected true after login")
	}
	if err := rig.engine.Logout(ctx); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if next() {
		t.Fatal("expected false after logout")
	}
}

func TestPermissionRevokedLogsOutExactlyOnce(t *testing.T) {
	rig := newTestRig(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notices := rig.engine.Notices(ctx)
	res := rig.login(t)

	rig.grants.Revoke(permission.BackgroundLocation)
	rig.feed.Push(fixAt(DefaultOffice))
	rig.feed.Push(fixAt(DefaultOffice))

	n := nextNotice(t, notices)
	if n.Reason != ReasonPermissionRevoked || n.Action != ActionRequestPermission {
		t.Fatalf("unexpected notice %+v", n)
	}
	if n.MonitorSession != res.MonitorSession || n.ID == "" {
		t.Fatalf("unexpected notice identity %+v", n)
	}
	expectNoNotice(t, notices)

	waitFor(t, "monitor stop", func() bool { return !rig.engine.Monitor().Running() })
	if rig.engine.State(ctx).LoggedIn() {
		t.Fatal("expected logged out")
	}
	if got := rig.feed.ActiveRegistrations(); got != 0 {
		t.Fatalf("expected subscription released, got %d", got)
	}

	snap := rig.engine.MetricsSnapshot()
	if snap.Counters[MetricLogoutAuto] != 1 || snap.Counters[MetricLogoutAutoPermissionRevoked] != 1 {
		t.Fatalf("unexpected auto logout counters %+v", snap.Counters)
	}

	ev := nextAudit(t, rig.sink, "logout_auto")
	if ev.Reason != "permission_revoked" || ev.MonitorSession != res.MonitorSession {
		t.Fatalf("unexpected audit event %+v", ev)
	}
}

func TestServicesDisabledLogsOut(t *testing.T) {
	rig := newTestRig(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notices := rig.engine.Notices(ctx)
	rig.login(t)

	rig.services.Set(false)
	rig.feed.Push(fixAt(DefaultOffice))

	n := nextNotice(t, notices)
	if n.Reason != ReasonServicesDisabled || n.Action != ActionOpenLocationSettings {
		t.Fatalf("unexpected notice %+v", n)
	}
	if rig.engine.State(ctx).LoggedIn() {
		t.Fatal("expected logged out")
	}
}

func TestOfficeDayScenario(t *testing.T) {
	rig := newTestRig(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notices := rig.engine.Notices(ctx)
	rig.login(t)

	rig.feed.Push(fixAt(offsetNorth(DefaultOffice, 40)))
	waitFor(t, "first sample", func() bool {
		return rig.engine.MetricsSnapshot().Counters[MetricSampleReceived] == 1
	})
	if !rig.engine.State(ctx).LoggedIn() {
		t.Fatal("expected session kept inside the perimeter")
	}

	rig.feed.Push(fixAt(offsetNorth(DefaultOffice, 200)))
	n := nextNotice(t, notices)
	if n.Reason != ReasonOutsidePerimeter || n.Message != MessageAutoLogout {
		t.Fatalf("unexpected notice %+v", n)
	}

	waitFor(t, "monitor stop", func() bool { return !rig.engine.Monitor().Running() })
	if rig.engine.State(ctx).LoggedIn() {
		t.Fatal("expected logged out")
	}
	if got := rig.feed.ActiveRegistrations(); got != 0 {
		t.Fatalf("expected subscription released, got %d", got)
	}
	if got := rig.engine.MetricsSnapshot().Counters[MetricLogoutAutoOutsidePerimeter]; got != 1 {
		t.Fatalf("expected 1 outside-perimeter logout, got %d", got)
	}
}

func TestMissedSamplesLogOut(t *testing.T) {
	rig := newTestRig(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notices := rig.engine.Notices(ctx)
	rig.login(t)

	rig.feed.Push(nil)
	rig.feed.Push(nil)
	waitFor(t, "two missed samples", func() bool {
		return rig.engine.MetricsSnapshot().Counters[MetricSampleMissed] == 2
	})
	if !rig.engine.State(ctx).LoggedIn() {
		t.Fatal("expected session kept below the missed sample limit")
	}

	rig.feed.Push(nil)
	n := nextNotice(t, notices)
	if n.Reason != ReasonLocationUnavailable {
		t.Fatalf("unexpected notice %+v", n)
	}
}

func TestSingleMissedSampleLimitLogsOutImmediately(t *testing.T) {
	rig := newTestRig(t, func(c *Config) { c.Monitor.MaxMissedSamples = 1 })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notices := rig.engine.Notices(ctx)
	rig.login(t)

	rig.feed.Push(nil)
	n := nextNotice(t, notices)
	if n.Reason != ReasonLocationUnavailable {
		t.Fatalf("unexpected notice %+v", n)
	}
	if rig.engine.State(ctx).LoggedIn() {
		t.Fatal("expected logged out after the first missed sample")
	}
}

func TestFixResetsMissedSamples(t *testing.T) {
	rig := newTestRig(t, nil)
	ctx := context.Background()
	rig.login(t)

	rig.feed.Push(nil)
	rig.feed.Push(nil)
	rig.feed.Push(fixAt(DefaultOffice))
	rig.feed.Push(nil)
	rig.feed.Push(nil)
	waitFor(t, "five samples", func() bool {
		return rig.engine.MetricsSnapshot().Counters[MetricSampleReceived] == 5
	})
	if !rig.engine.State(ctx).LoggedIn() {
		t.Fatal("expected a fix to reset the missed sample count")
	}
}

func TestProviderEndLogsOut(t *testing.T) {
	rig := newTestRig(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notices := rig.engine.Notices(ctx)
	rig.login(t)

	rig.feed.Close()
	n := nextNotice(t, notices)
	if n.Reason != ReasonLocationUnavailable {
		t.Fatalf("unexpected notice %+v", n)
	}
	if rig.engine.State(ctx).LoggedIn() {
		t.Fatal("expected logged out")
	}
}

func TestAutoLogoutWhileLoggedOutIsNoop(t *testing.T) {
	rig := newTestRig(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notices := rig.engine.Notices(ctx)
	rig.engine.autoLogout(ctx, ReasonOutsidePerimeter, MonitoringSession{ID: "stale"})

	expectNoNotice(t, notices)
	if got := rig.engine.MetricsSnapshot().Counters[MetricLogoutAuto]; got != 0 {
		t.Fatalf("expected no auto logout, got %d", got)
	}
}

func TestAutoLogoutAbandonedWhenContextCancelled(t *testing.T) {
	rig := newTestRig(t, nil)
	rig.login(t)

	// hold the gate so the handler has to wait for it
	if err := rig.engine.acquire(context.Background()); err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		rig.engine.autoLogout(ctx, ReasonOutsidePerimeter, MonitoringSession{ID: "pending"})
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("autoLogout did not give up on cancellation")
	}
	rig.engine.release()

	if !rig.engine.State(context.Background()).LoggedIn() {
		t.Fatal("expected session untouched")
	}
}
