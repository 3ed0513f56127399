package notify

import (
	"context"
	"sync"
)

// Broadcaster delivers every published value, in order, to every subscriber.
// Publish never blocks: each subscriber has its own unbounded mailbox drained by a
// dedicated goroutine.
type Broadcaster[T any] struct {
	mu     sync.Mutex
	subs   map[uint64]*subscriber[T]
	nextID uint64
	closed bool
}

type subscriber[T any] struct {
	mu      sync.Mutex
	pending []T
	signal  chan struct{}
	quit    chan struct{}
	out     chan T
}

// New creates an empty [Broadcaster].
func New[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{subs: make(map[uint64]*subscriber[T])}
}

// Subscribe registers a new observer. The returned channel receives values
// published after this call and is closed when ctx ends or the broadcaster closes.
func (b *Broadcaster[T]) Subscribe(ctx context.Context) <-chan T {
	sub := &subscriber[T]{
		signal: make(chan struct{}, 1),
		quit:   make(chan struct{}),
		out:    make(chan T),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.out)
		return sub.out
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	go b.run(ctx, id, sub)
	return sub.out
}

// Publish queues v for every current subscriber.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		sub.mu.Lock()
		sub.pending = append(sub.pending, v)
		sub.mu.Unlock()
		select {
		case sub.signal <- struct{}{}:
		default:
		}
	}
}

// Len returns the number of live subscribers.
func (b *Broadcaster[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close detaches all subscribers and closes their channels. Undelivered values are
// dropped. Close is idempotent.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		close(sub.quit)
		delete(b.subs, id)
	}
}

func (b *Broadcaster[T]) remove(id uint64) {
	b.mu.Lock()
	delete(b.subs, id)
	b.mu.Unlock()
}

func (b *Broadcaster[T]) run(ctx context.Context, id uint64, sub *subscriber[T]) {
	defer close(sub.out)
	defer b.remove(id)

	for {
		sub.mu.Lock()
		if len(sub.pending) == 0 {
			sub.mu.Unlock()
			select {
			case <-sub.signal:
				continue
			case <-sub.quit:
				return
			case <-ctx.Done():
				return
			}
		}
		v := sub.pending[0]
		var zero T
		sub.pending[0] = zero
		sub.pending = sub.pending[1:]
		sub.mu.Unlock()

		select {
		case sub.out <- v:
		case <-sub.quit:
			return
		case <-ctx.Done():
			return
		}
	}
}
