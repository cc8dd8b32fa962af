package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"gacha-card-system/models"
	"gacha-card-system/store"

	"github.com/rs/zerolog"
)

// fakeClock is a settable clock shared by the gate tests.
type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestGate() (*Gate, *store.MemoryLedger, *fakeClock) {
	ledger := store.NewMemoryLedger()
	clock := &fakeClock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	return NewGate(ledger, clock, zerolog.Nop()), ledger, clock
}

func TestCooldownGate(t *testing.T) {
	gate, _, clock := newTestGate()
	ctx := context.Background()
	policy := Policy{Kind: CooldownSince, Cooldown: 24 * time.Hour}

	d, err := gate.CheckAndConsume(ctx, "daily_token:a1", policy)
	if err != nil || !d.Allowed {
		t.Fatalf("first claim: allowed=%v err=%v", d.Allowed, err)
	}

	// One minute short of the cooldown.
	clock.Advance(23*time.Hour + 59*time.Minute)
	d, err = gate.CheckAndConsume(ctx, "daily_token:a1", policy)
	if err != nil {
		t.Fatal(err)
	}
	if d.Allowed {
		t.Fatal("claim allowed inside cooldown")
	}
	if d.RetryAfter != time.Minute {
		t.Errorf("RetryAfter = %v, want 1m", d.RetryAfter)
	}

	clock.Advance(2 * time.Minute)
	d, err = gate.CheckAndConsume(ctx, "daily_token:a1", policy)
	if err != nil || !d.Allowed {
		t.Fatalf("claim after cooldown: allowed=%v err=%v", d.Allowed, err)
	}
}

func TestCalendarDayGate(t *testing.T) {
	gate, _, clock := newTestGate()
	ctx := context.Background()
	policy := Policy{Kind: CalendarDay, MaxPerDay: 5}

	for i := 0; i < 5; i++ {
		d, err := gate.CheckAndConsume(ctx, "battle_limit:a1", policy)
		if err != nil || !d.Allowed {
			t.Fatalf("use %d: allowed=%v err=%v", i+1, d.Allowed, err)
		}
	}

	d, err := gate.CheckAndConsume(ctx, "battle_limit:a1", policy)
	if err != nil {
		t.Fatal(err)
	}
	if d.Allowed {
		t.Fatal("sixth use allowed")
	}
	if want := 12 * time.Hour; d.RetryAfter != want {
		t.Errorf("RetryAfter = %v, want %v (until UTC midnight)", d.RetryAfter, want)
	}

	// Crossing midnight resets the counter even though the row persists.
	clock.Advance(13 * time.Hour)
	d, err = gate.CheckAndConsume(ctx, "battle_limit:a1", policy)
	if err != nil || !d.Allowed {
		t.Fatalf("next day: allowed=%v err=%v", d.Allowed, err)
	}
}

func TestAbsoluteWindowGate(t *testing.T) {
	gate, ledger, clock := newTestGate()
	ctx := context.Background()

	starts := clock.Now().Add(-time.Hour)
	ends := clock.Now().Add(time.Hour)
	if err := ledger.CreateWindow(ctx, &models.TimeWindow{
		Key:      "discount:regular",
		IsActive: true,
		StartsAt: &starts,
		EndsAt:   &ends,
	}); err != nil {
		t.Fatal(err)
	}

	d, err := gate.Peek(ctx, "discount:regular", Policy{Kind: AbsoluteWindow})
	if err != nil || !d.Allowed {
		t.Fatalf("inside window: allowed=%v err=%v", d.Allowed, err)
	}

	clock.Advance(2 * time.Hour)
	d, err = gate.Peek(ctx, "discount:regular", Policy{Kind: AbsoluteWindow})
	if err != nil {
		t.Fatal(err)
	}
	if d.Allowed {
		t.Fatal("expired window still allowed")
	}

	// The expired window self-heals to inactive on read.
	win, err := ledger.GetWindow(ctx, "discount:regular")
	if err != nil {
		t.Fatal(err)
	}
	if win.IsActive {
		t.Error("expired window not deactivated")
	}
}

func TestAbsoluteWindowNotYetStarted(t *testing.T) {
	gate, ledger, clock := newTestGate()
	ctx := context.Background()

	starts := clock.Now().Add(30 * time.Minute)
	ends := clock.Now().Add(2 * time.Hour)
	if err := ledger.CreateWindow(ctx, &models.TimeWindow{
		Key:      "discount:god",
		IsActive: true,
		StartsAt: &starts,
		EndsAt:   &ends,
	}); err != nil {
		t.Fatal(err)
	}

	d, err := gate.Peek(ctx, "discount:god", Policy{Kind: AbsoluteWindow})
	if err != nil {
		t.Fatal(err)
	}
	if d.Allowed {
		t.Fatal("window allowed before StartsAt")
	}
	if d.RetryAfter != 30*time.Minute {
		t.Errorf("RetryAfter = %v, want 30m", d.RetryAfter)
	}
}

func TestAbsoluteWindowMissingRowIsClosed(t *testing.T) {
	gate, ledger, _ := newTestGate()
	ctx := context.Background()

	// No window row exists: the gate is closed, not open by default.
	d, err := gate.Peek(ctx, "discount:regular", Policy{Kind: AbsoluteWindow})
	if err != nil {
		t.Fatal(err)
	}
	if d.Allowed {
		t.Fatal("unconfigured absolute window allowed")
	}

	d, err = gate.CheckAndConsume(ctx, "discount:regular", Policy{Kind: AbsoluteWindow})
	if err != nil {
		t.Fatal(err)
	}
	if d.Allowed {
		t.Fatal("unconfigured absolute window consumed")
	}

	// The closed verdict fabricated no row.
	if _, err := ledger.GetWindow(ctx, "discount:regular"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetWindow = %v, want ErrNotFound", err)
	}

	// A policy that carries its own bounds still works without a row.
	starts := time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC)
	ends := starts.Add(2 * time.Hour)
	d, err = gate.Peek(ctx, "event:launch", Policy{Kind: AbsoluteWindow, StartsAt: &starts, EndsAt: &ends})
	if err != nil || !d.Allowed {
		t.Fatalf("policy-bounded window: allowed=%v err=%v", d.Allowed, err)
	}
}

func TestGatePersistsAcrossInstances(t *testing.T) {
	ledger := store.NewMemoryLedger()
	clock := &fakeClock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	ctx := context.Background()
	policy := Policy{Kind: CooldownSince, Cooldown: time.Hour}

	first := NewGate(ledger, clock, zerolog.Nop())
	if d, err := first.CheckAndConsume(ctx, "k", policy); err != nil || !d.Allowed {
		t.Fatalf("first: allowed=%v err=%v", d.Allowed, err)
	}

	// A fresh gate over the same ledger sees the consumed state.
	second := NewGate(ledger, clock, zerolog.Nop())
	d, err := second.CheckAndConsume(ctx, "k", policy)
	if err != nil {
		t.Fatal(err)
	}
	if d.Allowed {
		t.Fatal("cooldown state not persisted")
	}
}
