package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrEthical07/geoAuth/geo"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var office = geo.Coordinate{Latitude: 22.6990, Longitude: 88.6885}

type backend struct {
	name string
	open func(t *testing.T) Store
}

func newRedisStoreTest(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return NewRedisStore(rdb, "geo", "", nil), mr
}

func newSQLiteStoreTest(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "session.db"), "", nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func backends() []backend {
	return []backend{
		{"redis", func(t *testing.T) Store { s, _ := newRedisStoreTest(t); return s }},
		{"sqlite", func(t *testing.T) Store { return newSQLiteStoreTest(t) }},
	}
}

func next(t *testing.T, ch <-chan bool) bool {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatal("observer closed unexpectedly")
		}
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for observer value")
	}
	return false
}

func TestStoreDefaultsToLoggedOut(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			store := b.open(t)
			ctx := context.Background()
			if store.LoggedIn(ctx) {
				t.Fatal("fresh store must report logged out")
			}
			if c := store.LastKnownCoordinate(ctx); c != nil {
				t.Fatalf("fresh store must have no coordinate, got %v", c)
			}
		})
	}
}

func TestStoreLoginLogoutRoundTrip(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			store := b.open(t)
			ctx := context.Background()

			if err := store.Login(ctx, office); err != nil {
				t.Fatalf("login: %v", err)
			}
			st := store.State(ctx)
			if !st.LoggedIn || st.Coordinate == nil || *st.Coordinate != office {
				t.Fatalf("unexpected state after login: %+v", st)
			}

			if err := store.Logout(ctx); err != nil {
				t.Fatalf("logout: %v", err)
			}
			if store.LoggedIn(ctx) {
				t.Fatal("expected logged out")
			}
			if c := store.LastKnownCoordinate(ctx); c != nil {
				t.Fatalf("coordinate must be cleared on logout, got %v", c)
			}
		})
	}
}

func TestStoreRejectsInvalidCoordinate(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			store := b.open(t)
			err := store.Login(context.Background(), geo.Coordinate{Latitude: 120})
			if !errors.Is(err, ErrInvalidCoordinate) {
				t.Fatalf("expected ErrInvalidCoordinate, got %v", err)
			}
			if store.LoggedIn(context.Background()) {
				t.Fatal("rejected login must not set the flag")
			}
		})
	}
}

func TestStoreObserverSeesCurrentThenChanges(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			store := b.open(t)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			obs := store.ObserveLoggedIn(ctx)
			if next(t, obs) {
				t.Fatal("first value must be the current flag (false)")
			}

			if err := store.Login(ctx, office); err != nil {
				t.Fatalf("login: %v", err)
			}
			if !next(t, obs) {
				t.Fatal("expected true after login")
			}
			if err := store.Logout(ctx); err != nil {
				t.Fatalf("logout: %v", err)
			}
			if next(t, obs) {
				t.Fatal("expected false after logout")
			}

			// a late observer starts from the current value
			late := store.ObserveLoggedIn(ctx)
			if next(t, late) {
				t.Fatal("late observer must start from false")
			}
		})
	}
}

func TestStoreObserverCollapsesDuplicates(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			store := b.open(t)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			obs := store.ObserveLoggedIn(ctx)
			next(t, obs)

			for i := 0; i < 3; i++ {
				if err := store.Logout(ctx); err != nil {
					t.Fatalf("logout: %v", err)
				}
			}
			if err := store.Login(ctx, office); err != nil {
				t.Fatalf("login: %v", err)
			}
			if !next(t, obs) {
				t.Fatal("repeated logouts must be collapsed; expected true next")
			}
		})
	}
}

func TestStoreObserverClosesOnCancel(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			store := b.open(t)
			ctx, cancel := context.WithCancel(context.Background())
			obs := store.ObserveLoggedIn(ctx)
			next(t, obs)
			cancel()

			deadline := time.After(2 * time.Second)
			for {
				select {
				case _, ok := <-obs:
					if !ok {
						return
					}
				case <-deadline:
					t.Fatal("observer not closed after cancel")
				}
			}
		})
	}
}

func TestRedisStoreWriteFailureLeavesStateIntact(t *testing.T) {
	store, mr := newRedisStoreTest(t)
	ctx := context.Background()

	mr.SetError("READONLY simulated failure")
	err := store.Login(ctx, office)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	mr.SetError("")

	if store.LoggedIn(ctx) {
		t.Fatal("failed login must not leave the flag set")
	}
	if mr.Exists(store.Key()) {
		t.Fatal("failed login must not write any field")
	}
}

func TestRedisStoreReadFailureFailsSafe(t *testing.T) {
	store, mr := newRedisStoreTest(t)
	ctx := context.Background()
	if err := store.Login(ctx, office); err != nil {
		t.Fatalf("login: %v", err)
	}

	mr.SetError("simulated outage")
	defer mr.SetError("")
	if store.LoggedIn(ctx) {
		t.Fatal("read failure must report logged out")
	}
	if store.LastKnownCoordinate(ctx) != nil {
		t.Fatal("read failure must report no coordinate")
	}
}

func TestRedisStoreFieldLayout(t *testing.T) {
	store, mr := newRedisStoreTest(t)
	ctx := context.Background()
	if err := store.Login(ctx, office); err != nil {
		t.Fatalf("login: %v", err)
	}
	if got := mr.HGet("geo:settings", FieldLoggedIn); got != "1" {
		t.Fatalf("is_logged_in = %q", got)
	}
	if got := mr.HGet("geo:settings", FieldLatitude); got != "22.699" {
		t.Fatalf("user_latitude = %q", got)
	}
	if err := store.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	keys, err := mr.HKeys("geo:settings")
	if err != nil {
		t.Fatalf("hkeys: %v", err)
	}
	if len(keys) != 1 || keys[0] != FieldLoggedIn {
		t.Fatalf("expected only is_logged_in after logout, got %v", keys)
	}
}

func TestRedisStoreObserverAcrossClients(t *testing.T) {
	writer, mr := newRedisStoreTest(t)
	other := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer other.Close()
	reader := NewRedisStore(other, "geo", "", nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	obs := reader.ObserveLoggedIn(ctx)
	next(t, obs)

	if err := writer.Login(ctx, office); err != nil {
		t.Fatalf("login: %v", err)
	}
	if !next(t, obs) {
		t.Fatal("observer on another connection must see the login")
	}
}

func TestSQLiteStoreWriteFailureAfterClose(t *testing.T) {
	store := newSQLiteStoreTest(t)
	ctx := context.Background()
	if err := store.db.Close(); err != nil {
		t.Fatalf("close db: %v", err)
	}
	if err := store.Login(ctx, office); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if store.LoggedIn(ctx) {
		t.Fatal("read on closed db must fail safe")
	}
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	ctx := context.Background()

	first, err := OpenSQLite(ctx, path, "", nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := first.Login(ctx, office); err != nil {
		t.Fatalf("login: %v", err)
	}
	first.Close()

	second, err := OpenSQLite(ctx, path, "", nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	st := second.State(ctx)
	if !st.LoggedIn || st.Coordinate == nil || *st.Coordinate != office {
		t.Fatalf("state did not survive reopen: %+v", st)
	}
}
