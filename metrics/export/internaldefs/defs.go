package internaldefs

import (
	"strconv"

	geoAuth "github.com/MrEthical07/geoAuth"
	"github.com/MrEthical07/geoAuth/internal/metrics"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   geoAuth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   geoAuth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: geoAuth.MetricLoginSuccess, Name: "geoauth_login_success_total", Help: "Logins that created a session."},
	{ID: geoAuth.MetricLoginRejected, Name: "geoauth_login_rejected_total", Help: "Login attempts refused by a permission, services, location or perimeter check."},
	{ID: geoAuth.MetricLoginFailure, Name: "geoauth_login_failure_total", Help: "Login attempts that passed every check but could not be persisted."},
	{ID: geoAuth.MetricLogoutManual, Name: "geoauth_logout_manual_total", Help: "User-initiated logouts."},
	{ID: geoAuth.MetricLogoutAuto, Name: "geoauth_logout_auto_total", Help: "Automatic logouts issued by the monitor."},
	{ID: geoAuth.MetricLogoutAutoOutsidePerimeter, Name: "geoauth_logout_auto_outside_perimeter_total", Help: "Automatic logouts after leaving the perimeter."},
	{ID: geoAuth.MetricLogoutAutoPermissionRevoked, Name: "geoauth_logout_auto_permission_revoked_total", Help: "Automatic logouts after a location permission was revoked."},
	{ID: geoAuth.MetricLogoutAutoServicesDisabled, Name: "geoauth_logout_auto_services_disabled_total", Help: "Automatic logouts after location services were turned off."},
	{ID: geoAuth.MetricLogoutAutoLocationUnavailable, Name: "geoauth_logout_auto_location_unavailable_total", Help: "Automatic logouts after the location feed went missing."},
	{ID: geoAuth.MetricLogoutFailure, Name: "geoauth_logout_failure_total", Help: "Logouts that could not be persisted."},
	{ID: geoAuth.MetricReconcileKept, Name: "geoauth_reconcile_kept_total", Help: "Persisted sessions kept at startup."},
	{ID: geoAuth.MetricReconcileLogout, Name: "geoauth_reconcile_logout_total", Help: "Persisted sessions ended at startup."},
	{ID: geoAuth.MetricMonitorStarted, Name: "geoauth_monitor_started_total", Help: "Monitoring sessions started."},
	{ID: geoAuth.MetricMonitorStopped, Name: "geoauth_monitor_stopped_total", Help: "Monitoring sessions stopped."},
	{ID: geoAuth.MetricSampleReceived, Name: "geoauth_sample_received_total", Help: "Location samples evaluated by the monitor."},
	{ID: geoAuth.MetricSampleMissed, Name: "geoauth_sample_missed_total", Help: "Location events without a fix."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: geoAuth.MetricLoginLatency, Name: "geoauth_login_latency_seconds", Help: "AttemptLogin latency."},
}

// Engine-level counters that are not part of the MetricID table.
const (
	AuditDroppedName    = "geoauth_audit_dropped_total"
	AuditDroppedHelp    = "Audit events dropped due to dispatcher backpressure."
	LocationDroppedName = "geoauth_location_dropped_total"
	LocationDroppedHelp = "Location fixes dropped by the throttle or a full queue."
)

// AutoLogoutReasonDef ties a per-reason automatic logout counter to its reason.
type AutoLogoutReasonDef struct {
	ID     geoAuth.MetricID
	Reason geoAuth.LogoutReason
}

// AutoLogoutReasons lists the per-reason automatic logout counters. Exporters
// with attribute support publish them as one instrument labelled by reason.
var AutoLogoutReasons = []AutoLogoutReasonDef{
	{ID: geoAuth.MetricLogoutAutoOutsidePerimeter, Reason: geoAuth.ReasonOutsidePerimeter},
	{ID: geoAuth.MetricLogoutAutoPermissionRevoked, Reason: geoAuth.ReasonPermissionRevoked},
	{ID: geoAuth.MetricLogoutAutoServicesDisabled, Reason: geoAuth.ReasonServicesDisabled},
	{ID: geoAuth.MetricLogoutAutoLocationUnavailable, Reason: geoAuth.ReasonLocationUnavailable},
}

const (
	AutoLogoutReasonName = "geoauth_logout_auto_by_reason_total"
	AutoLogoutReasonHelp = "Automatic logouts issued by the monitor, by reason."
)

// IsAutoLogoutReason reports whether id is one of [AutoLogoutReasons].
func IsAutoLogoutReason(id geoAuth.MetricID) bool {
	for _, def := range AutoLogoutReasons {
		if def.ID == id {
			return true
		}
	}
	return false
}

// BucketLabels returns the "le" label of each latency bucket in seconds, the
// last one being "+Inf".
func BucketLabels() [metrics.BucketCount]string {
	var out [metrics.BucketCount]string
	for i, b := range HistogramBounds() {
		out[i] = strconv.FormatFloat(b, 'g', -1, 64)
	}
	out[len(out)-1] = "+Inf"
	return out
}

// HistogramBounds returns the finite upper bounds in seconds.
func HistogramBounds() []float64 {
	out := make([]float64, len(metrics.BucketBounds))
	for i, d := range metrics.BucketBounds {
		out[i] = d.Seconds()
	}
	return out
}

// NormalizeBuckets copies raw into a fixed-size array, padding with zeros.
func NormalizeBuckets(raw []uint64) [metrics.BucketCount]uint64 {
	var out [metrics.BucketCount]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals. The last
// element is the total sample count.
func CumulativeBuckets(raw [metrics.BucketCount]uint64) [metrics.BucketCount]uint64 {
	var out [metrics.BucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
