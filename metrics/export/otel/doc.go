// Package otel binds engine counters to OpenTelemetry observable instruments.
//
// [NewOTelExporter] registers one Int64ObservableCounter per engine counter,
// except the per-reason automatic logout counters, which are published as
// geoauth_logout_auto_by_reason_total with a "reason" attribute. Login latency
// is exported as cumulative bucket gauges keyed by an "le" attribute. A single
// callback reads [geoAuth.Engine.MetricsSnapshot] on each collection cycle.
// Callers own the MeterProvider.
package otel
