// Package geoAuth provides a perimeter-gated session engine: a user may only log
// in while physically inside one office perimeter, and a background monitor keeps
// re-validating that decision for as long as the session lasts.
//
// The package is designed for long-running hosts: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// geoAuth is the public surface. It exposes [Engine], [Builder], [Config],
// [Monitor], and value types (State, Notice, LoginResult, MetricsSnapshot).
// Decision logic lives in internal/flows; audit dispatch and metric storage live
// under internal/ and are never exported. Session persistence, location, and
// permissions are leaf packages the engine is wired to at build time.
//
// # What this package must NOT do
//
//   - Render UI or show permission prompts itself.
//   - Watch location while the session is logged out.
//   - Run more than one monitoring subscription per Engine.
//   - Import any sub-package that re-imports geoAuth (no import cycles).
package geoAuth
