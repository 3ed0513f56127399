// Package notify provides an in-process fan-out used to push session changes and
// logout notices to any number of observers without blocking the publisher.
package notify
