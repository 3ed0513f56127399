// Package internal holds the building blocks behind the public geoAuth API.
//
// # Sub-packages
//
//   - audit — async event dispatch (Dispatcher + Sink implementations)
//   - flows — pure-function flow orchestrators for login, logout and reconcile
//   - metrics — lock-free counters and latency histograms
//   - notify — unbounded in-order fan-out for state and notice subscribers
//
// # What this package must NOT do
//
//   - Export types that appear in the public geoAuth API.
//   - Be imported by any package outside the geoAuth module.
package internal
