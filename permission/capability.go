package permission

import (
	"context"
	"sync"
	"sync/atomic"
)

// Checker answers whether a permission is currently granted. Implementations must
// be cheap and safe for concurrent use; they are queried on every location sample.
type Checker interface {
	Granted(k Kind) bool
}

// Capability is a [Checker] that can also ask the user for missing permissions.
//
// Request blocks until the user answers or ctx ends, and returns the subset of
// kinds that are granted afterwards.
type Capability interface {
	Checker
	Request(ctx context.Context, kinds ...Kind) (Set, error)
}

// Prompter shows the platform permission prompt for kinds and reports what the
// user granted. It may block for as long as the user takes.
type Prompter func(ctx context.Context, kinds []Kind) (Set, error)

// Grants is an in-memory [Capability]. The grant mask is updated atomically so
// checks never block behind an outstanding prompt.
type Grants struct {
	mask   atomic.Uint64
	prompt Prompter
	// one prompt on screen at a time
	promptMu sync.Mutex
}

// NewGrants creates a [Grants] holding initial. prompt may be nil, in which case
// Request only reports the current state.
func NewGrants(initial Set, prompt Prompter) *Grants {
	g := &Grants{prompt: prompt}
	g.mask.Store(uint64(initial))
	return g
}

// Granted reports whether k is currently granted.
func (g *Grants) Granted(k Kind) bool {
	if g == nil {
		return false
	}
	return Set(g.mask.Load()).Has(k)
}

// Snapshot returns the full grant mask.
func (g *Grants) Snapshot() Set {
	if g == nil {
		return 0
	}
	return Set(g.mask.Load())
}

// Grant marks kinds as granted, e.g. after the user flips them in system settings.
func (g *Grants) Grant(kinds ...Kind) {
	g.mask.Or(uint64(SetOf(kinds...)))
}

// Revoke marks kinds as denied.
func (g *Grants) Revoke(kinds ...Kind) {
	g.mask.And(^uint64(SetOf(kinds...)))
}

// Request prompts for the kinds in kinds that are not yet granted. Kinds the
// prompter reports as granted are recorded; the rest keep their current state.
func (g *Grants) Request(ctx context.Context, kinds ...Kind) (Set, error) {
	requested := SetOf(kinds...)
	current := g.Snapshot()

	var missing []Kind
	for _, k := range requested.Kinds() {
		if !current.Has(k) {
			missing = append(missing, k)
		}
	}
	if len(missing) == 0 || g.prompt == nil {
		return current & requested, nil
	}

	g.promptMu.Lock()
	defer g.promptMu.Unlock()

	if err := ctx.Err(); err != nil {
		return g.Snapshot() & requested, err
	}

	answered, err := g.prompt(ctx, missing)
	if err != nil {
		return g.Snapshot() & requested, err
	}
	g.mask.Or(uint64(answered & SetOf(missing...)))

	return g.Snapshot() & requested, nil
}
