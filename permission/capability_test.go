package permission

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSetOperations(t *testing.T) {
	s := SetOf(ForegroundLocation, Notifications)
	if !s.Has(ForegroundLocation) || !s.Has(Notifications) {
		t.Fatalf("expected foreground and notifications in %v", s)
	}
	if s.Has(BackgroundLocation) {
		t.Fatalf("did not expect background in %v", s)
	}
	if s.HasAll(LocationKinds(true)...) {
		t.Fatal("expected HasAll to fail without background")
	}
	s = s.With(BackgroundLocation).Without(Notifications)
	if got := s.String(); got != "[foreground_location background_location]" {
		t.Fatalf("unexpected String(): %q", got)
	}
	if s.Has(Kind(42)) || s.With(Kind(42)) != s {
		t.Fatal("unknown kinds must be ignored")
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range AllKinds() {
		got, err := ParseKind(k.String())
		if err != nil || got != k {
			t.Fatalf("ParseKind(%q) = %v, %v", k.String(), got, err)
		}
	}
	if got, err := ParseKind(" Background-Location "); err != nil || got != BackgroundLocation {
		t.Fatalf("expected lenient parse, got %v, %v", got, err)
	}
	if _, err := ParseKind("camera"); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestGrantsGrantRevoke(t *testing.T) {
	g := NewGrants(SetOf(ForegroundLocation), nil)
	if !g.Granted(ForegroundLocation) {
		t.Fatal("expected initial grant")
	}
	g.Grant(BackgroundLocation, Notifications)
	if !g.Snapshot().HasAll(AllKinds()...) {
		t.Fatalf("expected all kinds, got %v", g.Snapshot())
	}
	g.Revoke(ForegroundLocation)
	if g.Granted(ForegroundLocation) {
		t.Fatal("expected foreground revoked")
	}
	if !g.Granted(BackgroundLocation) {
		t.Fatal("revoke must not touch other kinds")
	}
}

func TestGrantsRequestWithoutPrompterReportsState(t *testing.T) {
	g := NewGrants(SetOf(Notifications), nil)
	got, err := g.Request(context.Background(), ForegroundLocation, Notifications)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if got != SetOf(Notifications) {
		t.Fatalf("expected only notifications, got %v", got)
	}
}

func TestGrantsRequestPromptsOnlyMissing(t *testing.T) {
	var asked []Kind
	g := NewGrants(SetOf(ForegroundLocation), func(_ context.Context, kinds []Kind) (Set, error) {
		asked = append(asked, kinds...)
		// user allows background but denies notifications
		return SetOf(BackgroundLocation), nil
	})

	got, err := g.Request(context.Background(), AllKinds()...)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if len(asked) != 2 || asked[0] != BackgroundLocation || asked[1] != Notifications {
		t.Fatalf("unexpected prompted kinds: %v", asked)
	}
	if got != SetOf(ForegroundLocation, BackgroundLocation) {
		t.Fatalf("unexpected result: %v", got)
	}
	if g.Granted(Notifications) {
		t.Fatal("denied kind must stay denied")
	}
}

func TestGrantsRequestIgnoresUnrequestedAnswers(t *testing.T) {
	g := NewGrants(0, func(context.Context, []Kind) (Set, error) {
		return SetOf(AllKinds()...), nil
	})
	if _, err := g.Request(context.Background(), ForegroundLocation); err != nil {
		t.Fatalf("Request: %v", err)
	}
	if g.Granted(BackgroundLocation) {
		t.Fatal("prompter cannot grant kinds that were not requested")
	}
}

func TestGrantsRequestHonoursContext(t *testing.T) {
	g := NewGrants(0, func(ctx context.Context, _ []Kind) (Set, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	got, err := g.Request(ctx, ForegroundLocation)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if got != 0 {
		t.Fatalf("expected empty set, got %v", got)
	}
}
