package prometheus

import (
	"net/http"

	geoAuth "github.com/MrEthical07/geoAuth"
	"github.com/MrEthical07/geoAuth/metrics/export/internaldefs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsSource interface {
	MetricsSnapshot() geoAuth.MetricsSnapshot
	AuditDropped() uint64
	LocationDropped() uint64
}

type counterDesc struct {
	id   geoAuth.MetricID
	desc *prometheus.Desc
}

type histogramDesc struct {
	id   geoAuth.MetricID
	desc *prometheus.Desc
}

// Collector exposes engine counters as a prometheus.Collector. Values are read
// from the engine snapshot on every scrape.
type Collector struct {
	source     metricsSource
	counters   []counterDesc
	histograms []histogramDesc
	bounds     []float64

	auditDropped    *prometheus.Desc
	locationDropped *prometheus.Desc
}

// NewCollector creates a collector that reads from engine.
func NewCollector(engine *geoAuth.Engine) *Collector {
	return NewCollectorFromSource(engine)
}

// NewCollectorFromSource creates a collector over any snapshot source.
func NewCollectorFromSource(source metricsSource) *Collector {
	c := &Collector{
		source:          source,
		counters:        make([]counterDesc, 0, len(internaldefs.CounterDefs)),
		histograms:      make([]histogramDesc, 0, len(internaldefs.HistogramDefs)),
		bounds:          internaldefs.HistogramBounds(),
		auditDropped:    prometheus.NewDesc(internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, nil, nil),
		locationDropped: prometheus.NewDesc(internaldefs.LocationDroppedName, internaldefs.LocationDroppedHelp, nil, nil),
	}
	for _, def := range internaldefs.CounterDefs {
		c.counters = append(c.counters, counterDesc{
			id:   def.ID,
			desc: prometheus.NewDesc(def.Name, def.Help, nil, nil),
		})
	}
	for _, def := range internaldefs.HistogramDefs {
		c.histograms = append(c.histograms, histogramDesc{
			id:   def.ID,
			desc: prometheus.NewDesc(def.Name, def.Help, nil, nil),
		})
	}
	return c
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, cd := range c.counters {
		ch <- cd.desc
	}
	for _, hd := range c.histograms {
		ch <- hd.desc
	}
	ch <- c.auditDropped
	ch <- c.locationDropped
}

// Collect implements prometheus.Collector. A disabled metrics set exports
// nothing but the dropped counters.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c == nil || c.source == nil {
		return
	}

	snapshot := c.source.MetricsSnapshot()
	if len(snapshot.Counters) > 0 {
		for _, cd := range c.counters {
			ch <- prometheus.MustNewConstMetric(cd.desc, prometheus.CounterValue, float64(snapshot.Counters[cd.id]))
		}
	}

	for _, hd := range c.histograms {
		raw, ok := snapshot.Histograms[hd.id]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		buckets := make(map[float64]uint64, len(c.bounds))
		for i, le := range c.bounds {
			buckets[le] = cumulative[i]
		}
		// per-observation durations are not retained, so the sum is unknown
		ch <- prometheus.MustNewConstHistogram(hd.desc, cumulative[len(cumulative)-1], 0, buckets)
	}

	ch <- prometheus.MustNewConstMetric(c.auditDropped, prometheus.CounterValue, float64(c.source.AuditDropped()))
	ch <- prometheus.MustNewConstMetric(c.locationDropped, prometheus.CounterValue, float64(c.source.LocationDropped()))
}

// Handler serves the collector from a dedicated registry.
func (c *Collector) Handler() http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(c)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
