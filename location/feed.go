package location

import (
	"context"
	"sync"
	"time"
)

// FeedProvider is an in-memory [Provider]. Fixes pushed into it are delivered
// to every active registration in push order.
type FeedProvider struct {
	mu      sync.Mutex
	regs    map[uint64]*feedRegistration
	nextID  uint64
	total   int
	request Request
	last    *Fix
	err     error
	closed  bool
	deliver sync.Mutex
}

// NewFeedProvider returns an empty provider.
func NewFeedProvider() *FeedProvider {
	return &FeedProvider{regs: make(map[uint64]*feedRegistration)}
}

type feedRegistration struct {
	p    *FeedProvider
	id   uint64
	fn   func(*Fix)
	done chan struct{}
	once sync.Once
}

func (r *feedRegistration) Remove() {
	r.p.mu.Lock()
	delete(r.p.regs, r.id)
	r.p.mu.Unlock()
	// wait out an in-flight Push
	r.p.deliver.Lock()
	r.p.deliver.Unlock()
}

func (r *feedRegistration) Done() <-chan struct{} {
	return r.done
}

func (r *feedRegistration) end() {
	r.once.Do(func() { close(r.done) })
}

// RequestUpdates implements Provider.
func (p *FeedProvider) RequestUpdates(req Request, deliver func(*Fix)) (Registration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrProviderClosed
	}
	if p.err != nil {
		return nil, p.err
	}
	reg := &feedRegistration{p: p, id: p.nextID, fn: deliver, done: make(chan struct{})}
	p.request = req
	p.nextID++
	p.total++
	p.regs[reg.id] = reg
	return reg, nil
}

// LastLocation implements Provider.
func (p *FeedProvider) LastLocation(ctx context.Context) (*Fix, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	if p.last == nil {
		return nil, nil
	}
	cp := *p.last
	return &cp, nil
}

// Push delivers fix to every active registration. A nil fix models a provider
// event without a location. A fix with a zero Time is stamped with the current
// time. Non-nil fixes become the cached last location.
func (p *FeedProvider) Push(fix *Fix) {
	if fix != nil {
		cp := *fix
		if cp.Time.IsZero() {
			cp.Time = time.Now()
		}
		fix = &cp
	}

	p.deliver.Lock()
	defer p.deliver.Unlock()

	p.mu.Lock()
	if fix != nil {
		p.last = fix
	}
	targets := make([]*feedRegistration, 0, len(p.regs))
	for _, r := range p.regs {
		targets = append(targets, r)
	}
	p.mu.Unlock()

	for _, r := range targets {
		var f *Fix
		if fix != nil {
			cp := *fix
			f = &cp
		}
		r.fn(f)
	}
}

// SetLast replaces the cached last location without delivering it.
func (p *FeedProvider) SetLast(fix *Fix) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if fix == nil {
		p.last = nil
		return
	}
	cp := *fix
	p.last = &cp
}

// SetError makes RequestUpdates and LastLocation fail with err. A nil err clears it.
func (p *FeedProvider) SetError(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

// ActiveRegistrations reports the registrations not yet removed.
func (p *FeedProvider) ActiveRegistrations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.regs)
}

// Registrations reports how many registrations were ever made.
func (p *FeedProvider) Registrations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}

// LastRequest returns the request of the most recent registration.
func (p *FeedProvider) LastRequest() Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.request
}

// Close ends every active registration and rejects new ones.
func (p *FeedProvider) Close() {
	p.mu.Lock()
	p.closed = true
	regs := p.regs
	p.regs = make(map[uint64]*feedRegistration)
	p.mu.Unlock()

	for _, r := range regs {
		r.end()
	}
}
