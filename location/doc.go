// Package location turns raw device fixes into a stream of samples.
//
// A [Source] wraps an external [Provider] and hands out [Stream] values. Each
// stream owns exactly one provider registration, forwards deliveries through a
// bounded queue on a single goroutine and releases the registration
// synchronously on Close. Absence of a fix is represented by a nil *Sample; the
// stream never raises errors to its consumer.
//
// [FeedProvider] is an in-memory Provider for hosts that receive fixes from
// somewhere else, such as an HTTP endpoint or a recorded track.
package location
