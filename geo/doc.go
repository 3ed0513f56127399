// Package geo provides the coordinate model and great-circle distance math used to
// decide perimeter membership.
//
// # Architecture boundaries
//
// This package is pure: no I/O, no logging, no shared state. It does NOT know about
// sessions, permissions or location providers.
//
// # What this package must NOT do
//
//   - Special-case NaN or infinite inputs (they propagate to the result).
//   - Import any other geoAuth package.
package geo
