package location

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/geoAuth/permission"
	"golang.org/x/time/rate"
)

// Config tunes a [Source].
type Config struct {
	Request Request
	// QueueSize bounds the number of undelivered samples per stream. Deliveries
	// arriving while the queue is full are dropped.
	QueueSize int
}

// DefaultConfig returns the default request and queue size.
func DefaultConfig() Config {
	return Config{Request: DefaultRequest(), QueueSize: DefaultQueueSize}
}

// Source produces location streams gated on the foreground location permission.
type Source struct {
	provider Provider
	perms    permission.Checker
	cfg      Config
	logger   *slog.Logger

	dropped atomic.Uint64
}

// NewSource creates a [Source]. A nil logger discards output.
func NewSource(provider Provider, perms permission.Checker, cfg Config, logger *slog.Logger) *Source {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Source{
		provider: provider,
		perms:    perms,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "location")),
	}
}

// Dropped reports how many deliveries were discarded by the throttle or a full queue.
func (s *Source) Dropped() uint64 {
	return s.dropped.Load()
}

// LastKnown returns the provider's cached fix. It returns nil when the
// foreground permission is missing, no fix is cached, or the provider fails.
func (s *Source) LastKnown(ctx context.Context) *Sample {
	if !s.perms.Granted(permission.ForegroundLocation) {
		return nil
	}
	fix, err := s.provider.LastLocation(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "last known location failed", slog.Any("error", err))
		return nil
	}
	return fix.sample()
}

// Stream opens a new location stream. Without the foreground permission, or when
// the provider refuses the registration, the stream yields a single nil and
// closes. The stream is closed when ctx ends or Close is called.
func (s *Source) Stream(ctx context.Context) *Stream {
	st := &Stream{
		out:      make(chan *Sample),
		queue:    make(chan *Sample, s.cfg.QueueSize),
		stop:     make(chan struct{}),
		finished: make(chan struct{}),
		ended:    make(chan struct{}),
		limiter:  newThrottle(s.cfg.Request.FastestInterval),
		dropped:  &s.dropped,
	}

	var providerDone <-chan struct{}
	if !s.perms.Granted(permission.ForegroundLocation) {
		s.logger.DebugContext(ctx, "location stream without permission")
		st.endWithNil()
	} else if reg, err := s.provider.RequestUpdates(s.cfg.Request, st.deliver); err != nil {
		s.logger.WarnContext(ctx, "location updates request failed", slog.Any("error", err))
		st.endWithNil()
	} else {
		st.reg = reg
		providerDone = reg.Done()
	}

	go st.forward(providerDone)
	stop := context.AfterFunc(ctx, st.Close)
	st.mu.Lock()
	st.release = stop
	st.mu.Unlock()
	return st
}

func newThrottle(fastest time.Duration) *rate.Limiter {
	if fastest <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(fastest), 1)
}

// Stream is one live provider registration.
type Stream struct {
	out      chan *Sample
	queue    chan *Sample
	stop     chan struct{}
	finished chan struct{}
	ended    chan struct{}

	reg Registration

	mu      sync.Mutex
	release func() bool
	limiter *rate.Limiter
	dropped *atomic.Uint64

	endOnce   sync.Once
	closeOnce sync.Once
}

// Samples returns the delivery channel. It is closed when the stream ends.
func (st *Stream) Samples() <-chan *Sample {
	return st.out
}

// Done is closed once the stream has delivered its last sample.
func (st *Stream) Done() <-chan struct{} {
	return st.finished
}

// Close removes the provider registration and stops forwarding. No sample is
// delivered after Close returns. Close is idempotent.
func (st *Stream) Close() {
	st.closeOnce.Do(func() {
		st.mu.Lock()
		release := st.release
		st.mu.Unlock()
		if release != nil {
			release()
		}
		if st.reg != nil {
			st.reg.Remove()
		}
		close(st.stop)
	})
	<-st.finished
}

func (st *Stream) endWithNil() {
	st.queue <- nil
	st.endOnce.Do(func() { close(st.ended) })
}

// deliver is the provider callback. It never blocks.
func (st *Stream) deliver(fix *Fix) {
	if fix != nil {
		at := fix.Time
		if at.IsZero() {
			at = time.Now()
		}
		if !st.limiter.AllowN(at, 1) {
			st.dropped.Add(1)
			return
		}
	}
	select {
	case st.queue <- fix.sample():
	default:
		st.dropped.Add(1)
	}
}

func (st *Stream) forward(providerDone <-chan struct{}) {
	defer close(st.finished)
	defer close(st.out)

	for {
		select {
		case <-st.stop:
			return
		case smp := <-st.queue:
			if !st.send(smp) {
				return
			}
		case <-providerDone:
			providerDone = nil
			st.endOnce.Do(func() { close(st.ended) })
		case <-st.ended:
			st.drain()
			return
		}
	}
}

func (st *Stream) send(smp *Sample) bool {
	select {
	case st.out <- smp:
		return true
	case <-st.stop:
		return false
	}
}

func (st *Stream) drain() {
	for {
		select {
		case smp := <-st.queue:
			if !st.send(smp) {
				return
			}
		default:
			return
		}
	}
}
