package notify

import (
	"context"
	"testing"
	"time"
)

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatal("channel closed unexpectedly")
		}
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for value")
	}
	var zero T
	return zero
}

func TestBroadcasterFanOutPreservesOrder(t *testing.T) {
	b := New[int]()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := b.Subscribe(ctx)
	c := b.Subscribe(ctx)

	for i := 0; i < 100; i++ {
		b.Publish(i)
	}
	for i := 0; i < 100; i++ {
		if got := recv(t, a); got != i {
			t.Fatalf("subscriber a: got %d want %d", got, i)
		}
		if got := recv(t, c); got != i {
			t.Fatalf("subscriber c: got %d want %d", got, i)
		}
	}
}

func TestBroadcasterSubscriberOnlySeesLaterValues(t *testing.T) {
	b := New[string]()
	b.Publish("before")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := b.Subscribe(ctx)
	b.Publish("after")

	if got := recv(t, ch); got != "after" {
		t.Fatalf("got %q", got)
	}
}

func TestBroadcasterContextCancelDetaches(t *testing.T) {
	b := New[int]()
	ctx, cancel := context.WithCancel(context.Background())
	ch := b.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber channel not closed after cancel")
	}

	deadline := time.Now().Add(time.Second)
	for b.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected subscriber removal, have %d", b.Len())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestBroadcasterCloseClosesSubscribers(t *testing.T) {
	b := New[int]()
	ch := b.Subscribe(context.Background())
	b.Close()
	b.Close()
	b.Publish(1)

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}

	late := b.Subscribe(context.Background())
	if _, ok := <-late; ok {
		t.Fatal("subscribe after close must return a closed channel")
	}
}
