package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	geoAuth "github.com/MrEthical07/geoAuth"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeSource struct {
	snapshot        geoAuth.MetricsSnapshot
	dropped         uint64
	locationDropped uint64
}

func (f fakeSource) MetricsSnapshot() geoAuth.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                     { return f.dropped }
func (f fakeSource) LocationDropped() uint64                  { return f.locationDropped }

func TestCollectorDisabledExportsOnlyDropped(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: geoAuth.MetricsSnapshot{
			Counters:   map[geoAuth.MetricID]uint64{},
			Histograms: map[geoAuth.MetricID][]uint64{},
		},
	})

	if got := testutil.CollectAndCount(c); got != 2 {
		t.Fatalf("expected 2 series, got %d", got)
	}
}

func TestCollectorCountersAndHistogram(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: geoAuth.MetricsSnapshot{
			Counters: map[geoAuth.MetricID]uint64{
				geoAuth.MetricLoginSuccess:               7,
				geoAuth.MetricLogoutAutoOutsidePerimeter: 2,
			},
			Histograms: map[geoAuth.MetricID][]uint64{
				geoAuth.MetricLoginLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped:         2,
		locationDropped: 5,
	})

	expected := `
# HELP geoauth_login_success_total Logins that created a session.
# TYPE geoauth_login_success_total counter
geoauth_login_success_total 7
# HELP geoauth_logout_auto_outside_perimeter_total Automatic logouts after leaving the perimeter.
# TYPE geoauth_logout_auto_outside_perimeter_total counter
geoauth_logout_auto_outside_perimeter_total 2
# HELP geoauth_audit_dropped_total Audit events dropped due to dispatcher backpressure.
# TYPE geoauth_audit_dropped_total counter
geoauth_audit_dropped_total 2
# HELP geoauth_location_dropped_total Location fixes dropped by the throttle or a full queue.
# TYPE geoauth_location_dropped_total counter
geoauth_location_dropped_total 5
`
	err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"geoauth_login_success_total",
		"geoauth_logout_auto_outside_perimeter_total",
		"geoauth_audit_dropped_total",
		"geoauth_location_dropped_total",
	)
	if err != nil {
		t.Fatalf("unexpected exposition: %v", err)
	}

	hist := `
# HELP geoauth_login_latency_seconds AttemptLogin latency.
# TYPE geoauth_login_latency_seconds histogram
geoauth_login_latency_seconds_bucket{le="0.005"} 1
geoauth_login_latency_seconds_bucket{le="0.01"} 3
geoauth_login_latency_seconds_bucket{le="0.025"} 6
geoauth_login_latency_seconds_bucket{le="0.05"} 10
geoauth_login_latency_seconds_bucket{le="0.1"} 15
geoauth_login_latency_seconds_bucket{le="0.25"} 21
geoauth_login_latency_seconds_bucket{le="0.5"} 28
geoauth_login_latency_seconds_bucket{le="+Inf"} 36
geoauth_login_latency_seconds_sum 0
geoauth_login_latency_seconds_count 36
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(hist), "geoauth_login_latency_seconds"); err != nil {
		t.Fatalf("unexpected histogram: %v", err)
	}
}

func TestCollectorRegistersCleanly(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	c := NewCollectorFromSource(fakeSource{
		snapshot: geoAuth.MetricsSnapshot{
			Counters: map[geoAuth.MetricID]uint64{geoAuth.MetricLoginSuccess: 1},
		},
	})
	if err := reg.Register(c); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := reg.Gather(); err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
}

func TestHandlerServesExposition(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: geoAuth.MetricsSnapshot{
			Counters: map[geoAuth.MetricID]uint64{geoAuth.MetricLoginSuccess: 1},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "geoauth_login_success_total 1") {
		t.Fatalf("expected login counter, got:\n%s", rec.Body.String())
	}
}
