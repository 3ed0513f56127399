// Package session persists the single authenticated-session flag together with the
// coordinate at which the user logged in.
//
// # Layout
//
// All state lives in one named region with three fields: is_logged_in,
// user_latitude and user_longitude. Coordinate fields exist only while logged in.
//
// # Backends
//
// [RedisStore] keeps the region in a Redis hash and fans changes out over Redis
// pub/sub, so observers in other processes (the background monitor host) see them.
// [SQLiteStore] keeps the region in an on-device SQLite table and serves observers
// in-process.
//
// # Failure semantics
//
// Reads fail safe: a read error is logged and reported as "logged out" / no
// coordinate. Writes are all-or-nothing and return an error wrapping
// [ErrStoreUnavailable].
//
// # What this package must NOT do
//
//   - Decide whether a login is allowed (that belongs to the engine).
//   - Import geoAuth or location.
package session
