// Package permission models the platform permissions the session engine depends on
// as a compact grant mask, with a synchronous check and an asynchronous request.
//
// # Kinds
//
// Three kinds are known: foreground location, background location, and
// notifications. A [Set] is a bitmask over those kinds, one bit per kind.
//
// # Architecture boundaries
//
// This package owns the [Capability] abstraction and an in-memory implementation
// ([Grants]). It does NOT show prompts; prompting is delegated to a host-supplied
// [Prompter] whose delay is unbounded and controlled only by the caller's context.
//
// # What this package must NOT do
//
//   - Import geoAuth, session, or location.
//   - Impose timeouts on permission requests.
package permission
