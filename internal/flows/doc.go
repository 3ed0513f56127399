// Package flows contains the pure decision logic behind every Engine operation.
//
// Each flow function (RunLogin, RunManualLogout, RunAutoLogout, RunReconcile)
// accepts a typed dependency struct and returns results without side-effects
// beyond those dependencies. The per-sample monitor decision lives in
// [PresenceCheck], which holds no state between calls.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the session store, the monitor, audit,
// and metrics. They do NOT own any of these resources; ownership stays with the
// Engine. Serialisation of store read-modify-write sequences is also the
// Engine's job: flows assume they run under the engine gate.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import geoAuth (to avoid import cycles).
//   - Perform I/O directly; all I/O is mediated through dependency functions.
package flows
