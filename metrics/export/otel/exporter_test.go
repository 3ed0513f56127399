package otel

import (
	"context"
	"sync"
	"testing"

	geoAuth "github.com/MrEthical07/geoAuth"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot geoAuth.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() geoAuth.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := geoAuth.MetricsSnapshot{
		Counters:   make(map[geoAuth.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[geoAuth.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		next := make([]uint64, len(buckets))
		copy(next, buckets)
		out.Histograms[k] = next
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func (f *fakeSource) LocationDropped() uint64 {
	return 4
}

// findPoint returns the value of the data point of name whose attributes
// include key=value, or the first point when key is empty.
func findPoint(rm metricdata.ResourceMetrics, name, key, value string) (int64, bool) {
	match := func(set attribute.Set) bool {
		if key == "" {
			return true
		}
		v, ok := set.Value(attribute.Key(key))
		return ok && v.AsString() == value
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			var points []metricdata.DataPoint[int64]
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				points = data.DataPoints
			case metricdata.Gauge[int64]:
				points = data.DataPoints
			}
			for _, p := range points {
				if match(p.Attributes) {
					return p.Value, true
				}
			}
		}
	}
	return 0, false
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("geoauth-test")

	src := &fakeSource{
		snapshot: geoAuth.MetricsSnapshot{
			Counters: map[geoAuth.MetricID]uint64{
				geoAuth.MetricLoginSuccess:               3,
				geoAuth.MetricLogoutAuto:                 3,
				geoAuth.MetricLogoutAutoOutsidePerimeter: 2,
				geoAuth.MetricLogoutAutoServicesDisabled: 1,
			},
			Histograms: map[geoAuth.MetricID][]uint64{
				geoAuth.MetricLoginLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(rm.ScopeMetrics) == 0 {
		t.Fatal("expected collected metrics, got none")
	}

	tests := []struct {
		name, key, value string
		want             int64
	}{
		{name: "geoauth_login_success_total", want: 3},
		{name: "geoauth_logout_auto_total", want: 3},
		{name: "geoauth_logout_auto_by_reason_total", key: "reason", value: "outside_perimeter", want: 2},
		{name: "geoauth_logout_auto_by_reason_total", key: "reason", value: "services_disabled", want: 1},
		{name: "geoauth_logout_auto_by_reason_total", key: "reason", value: "permission_revoked", want: 0},
		{name: "geoauth_audit_dropped_total", want: 1},
		{name: "geoauth_location_dropped_total", want: 4},
		{name: "geoauth_login_latency_seconds_bucket", key: "le", value: "0.005", want: 1},
		{name: "geoauth_login_latency_seconds_bucket", key: "le", value: "0.1", want: 5},
		{name: "geoauth_login_latency_seconds_bucket", key: "le", value: "+Inf", want: 8},
		{name: "geoauth_login_latency_seconds_count", want: 8},
	}
	for _, tt := range tests {
		got, ok := findPoint(rm, tt.name, tt.key, tt.value)
		if !ok {
			t.Fatalf("metric %s{%s=%q} not collected", tt.name, tt.key, tt.value)
		}
		if got != tt.want {
			t.Fatalf("metric %s{%s=%q}: expected %d, got %d", tt.name, tt.key, tt.value, tt.want, got)
		}
	}
	if _, ok := findPoint(rm, "geoauth_logout_auto_outside_perimeter_total", "", ""); ok {
		t.Fatal("per-reason counters must only be exported with the reason attribute")
	}
}

func TestExporterRejectsNilSource(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("geoauth-test")

	if _, err := NewOTelExporterFromSource(meter, nil); err == nil {
		t.Fatal("expected error for nil source")
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("geoauth-test")

	src := &fakeSource{
		snapshot: geoAuth.MetricsSnapshot{
			Counters: map[geoAuth.MetricID]uint64{
				geoAuth.MetricLoginSuccess: 1,
			},
			Histograms: map[geoAuth.MetricID][]uint64{
				geoAuth.MetricLoginLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[geoAuth.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
