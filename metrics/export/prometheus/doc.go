// Package prometheus exports engine metrics through the Prometheus client
// library. Register a [Collector] with an existing registry, or mount
// [Collector.Handler] on its own endpoint.
package prometheus
