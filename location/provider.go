package location

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrProviderClosed is returned by providers that no longer accept registrations.
var ErrProviderClosed = errors.New("location provider closed")

// Provider is the device location API.
type Provider interface {
	// RequestUpdates registers deliver for periodic fixes. deliver receives nil
	// when the provider produced an event without a fix. deliver must not block
	// and is never called concurrently for one registration.
	RequestUpdates(req Request, deliver func(*Fix)) (Registration, error)
	// LastLocation returns the cached fix, or nil when there is none.
	LastLocation(ctx context.Context) (*Fix, error)
}

// Registration is one active RequestUpdates subscription.
type Registration interface {
	// Remove unregisters the callback. When Remove returns no further
	// deliveries happen.
	Remove()
	// Done is closed when the provider ends the registration on its own.
	Done() <-chan struct{}
}

// ServiceChecker reports whether the system-wide location service is on.
type ServiceChecker interface {
	Enabled() bool
}

// ServiceSwitch is a settable [ServiceChecker].
type ServiceSwitch struct {
	on atomic.Bool
}

// NewServiceSwitch returns a switch in the given position.
func NewServiceSwitch(enabled bool) *ServiceSwitch {
	s := &ServiceSwitch{}
	s.on.Store(enabled)
	return s
}

// Enabled implements ServiceChecker.
func (s *ServiceSwitch) Enabled() bool {
	return s.on.Load()
}

// Set flips the switch.
func (s *ServiceSwitch) Set(enabled bool) {
	s.on.Store(enabled)
}
