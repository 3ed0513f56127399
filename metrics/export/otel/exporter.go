package otel

import (
	"context"
	"errors"
	"fmt"

	geoAuth "github.com/MrEthical07/geoAuth"
	"github.com/MrEthical07/geoAuth/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() geoAuth.MetricsSnapshot
	AuditDropped() uint64
	LocationDropped() uint64
}

type observedCounter struct {
	id         geoAuth.MetricID
	instrument metric.Int64ObservableCounter
}

type reasonPoint struct {
	id   geoAuth.MetricID
	attr metric.ObserveOption
}

type latencyGauge struct {
	id      geoAuth.MetricID
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

// OTelExporter publishes engine counters as OTel observable instruments.
//
// Per-reason automatic logouts share one counter with a "reason" attribute.
// The latency histogram becomes a cumulative "_bucket" gauge with an "le"
// attribute plus a "_count" gauge.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration

	counters        []observedCounter
	byReason        metric.Int64ObservableCounter
	reasons         []reasonPoint
	latency         []latencyGauge
	leAttrs         []metric.ObserveOption
	auditDropped    metric.Int64ObservableCounter
	locationDropped metric.Int64ObservableCounter
}

// NewOTelExporter registers instruments on meter that read from engine.
func NewOTelExporter(meter metric.Meter, engine *geoAuth.Engine) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, engine)
}

// NewOTelExporterFromSource is NewOTelExporter over any snapshot source.
func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{source: source}
	var observables []metric.Observable

	for _, def := range internaldefs.CounterDefs {
		if internaldefs.IsAutoLogoutReason(def.ID) {
			continue
		}
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, observedCounter{id: def.ID, instrument: ins})
		observables = append(observables, ins)
	}

	byReason, err := meter.Int64ObservableCounter(
		internaldefs.AutoLogoutReasonName,
		metric.WithDescription(internaldefs.AutoLogoutReasonHelp),
	)
	if err != nil {
		return nil, fmt.Errorf("create counter %s: %w", internaldefs.AutoLogoutReasonName, err)
	}
	e.byReason = byReason
	observables = append(observables, byReason)
	for _, def := range internaldefs.AutoLogoutReasons {
		e.reasons = append(e.reasons, reasonPoint{
			id:   def.ID,
			attr: metric.WithAttributes(attribute.String("reason", def.Reason.String())),
		})
	}

	for _, le := range internaldefs.BucketLabels() {
		e.leAttrs = append(e.leAttrs, metric.WithAttributes(attribute.String("le", le)))
	}
	for _, def := range internaldefs.HistogramDefs {
		buckets, err := meter.Int64ObservableGauge(def.Name+"_bucket",
			metric.WithDescription(def.Help+" Cumulative bucket counts."),
			metric.WithUnit("{login}"),
		)
		if err != nil {
			return nil, fmt.Errorf("create gauge %s_bucket: %w", def.Name, err)
		}
		count, err := meter.Int64ObservableGauge(def.Name+"_count",
			metric.WithDescription(def.Help+" Sample count."),
			metric.WithUnit("{login}"),
		)
		if err != nil {
			return nil, fmt.Errorf("create gauge %s_count: %w", def.Name, err)
		}
		e.latency = append(e.latency, latencyGauge{id: def.ID, buckets: buckets, count: count})
		observables = append(observables, buckets, count)
	}

	if e.auditDropped, err = meter.Int64ObservableCounter(
		internaldefs.AuditDroppedName,
		metric.WithDescription(internaldefs.AuditDroppedHelp),
	); err != nil {
		return nil, fmt.Errorf("create counter %s: %w", internaldefs.AuditDroppedName, err)
	}
	if e.locationDropped, err = meter.Int64ObservableCounter(
		internaldefs.LocationDroppedName,
		metric.WithDescription(internaldefs.LocationDroppedHelp),
	); err != nil {
		return nil, fmt.Errorf("create counter %s: %w", internaldefs.LocationDroppedName, err)
	}
	observables = append(observables, e.auditDropped, e.locationDropped)

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()
	for _, c := range e.counters {
		o.ObserveInt64(c.instrument, int64(snap.Counters[c.id]))
	}
	for _, r := range e.reasons {
		o.ObserveInt64(e.byReason, int64(snap.Counters[r.id]), r.attr)
	}
	for _, h := range e.latency {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snap.Histograms[h.id]))
		for i, v := range cumulative {
			o.ObserveInt64(h.buckets, int64(v), e.leAttrs[i])
		}
		o.ObserveInt64(h.count, int64(cumulative[len(cumulative)-1]))
	}
	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	o.ObserveInt64(e.locationDropped, int64(e.source.LocationDropped()))
	return nil
}

// Close unregisters the callback. The instruments stay on the meter.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
