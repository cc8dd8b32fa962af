package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"gacha-card-system/models"
	"gacha-card-system/store"

	"github.com/rs/zerolog"
)

func newTestTracker(t *testing.T) (*MissionTracker, *store.MemoryLedger, *fakeClock, string) {
	t.Helper()
	ledger := store.NewMemoryLedger()
	clock := &fakeClock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	tracker := NewMissionTracker(ledger, clock, zerolog.Nop())

	acct := &models.Account{Username: "miner", Level: 1}
	if err := ledger.CreateAccount(context.Background(), acct); err != nil {
		t.Fatal(err)
	}
	return tracker, ledger, clock, acct.ID
}

func TestMissionProgressCompletes(t *testing.T) {
	tracker, _, _, accountID := newTestTracker(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		mp, err := tracker.RecordEvent(ctx, accountID, "daily_draws", 1)
		if err != nil {
			t.Fatal(err)
		}
		if mp.Completed {
			t.Fatalf("completed at progress %d, goal is 5", mp.Progress)
		}
	}

	mp, err := tracker.RecordEvent(ctx, accountID, "daily_draws", 1)
	if err != nil {
		t.Fatal(err)
	}
	if !mp.Completed || mp.Progress != 5 {
		t.Fatalf("progress=%d completed=%v, want 5/completed", mp.Progress, mp.Completed)
	}

	// Overshoot keeps Completed set.
	mp, err = tracker.RecordEvent(ctx, accountID, "daily_draws", 3)
	if err != nil {
		t.Fatal(err)
	}
	if !mp.Completed || mp.Progress != 8 {
		t.Fatalf("progress=%d completed=%v after overshoot", mp.Progress, mp.Completed)
	}
}

func TestMissionClaimOneShot(t *testing.T) {
	tracker, ledger, _, accountID := newTestTracker(t)
	ctx := context.Background()

	// Not complete yet: no grant, no balance change.
	if _, err := tracker.RecordEvent(ctx, accountID, "daily_battles", 2); err != nil {
		t.Fatal(err)
	}
	result, err := tracker.Claim(ctx, accountID, "daily_battles")
	if err != nil {
		t.Fatal(err)
	}
	if result.Granted {
		t.Fatal("granted before completion")
	}

	if _, err := tracker.RecordEvent(ctx, accountID, "daily_battles", 1); err != nil {
		t.Fatal(err)
	}

	result, err = tracker.Claim(ctx, accountID, "daily_battles")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Granted {
		t.Fatal("completed mission not granted")
	}
	if result.Reward.Coins != 50 {
		t.Errorf("reward coins = %d, want 50", result.Reward.Coins)
	}
	if result.NewBalances.Coins != 50 {
		t.Errorf("balance coins = %d, want 50", result.NewBalances.Coins)
	}

	// Second claim in the same period pays nothing.
	result, err = tracker.Claim(ctx, accountID, "daily_battles")
	if err != nil {
		t.Fatal(err)
	}
	if result.Granted {
		t.Fatal("second claim granted")
	}
	acct, err := ledger.GetAccount(ctx, accountID)
	if err != nil {
		t.Fatal(err)
	}
	if acct.Coins != 50 {
		t.Errorf("coins after double claim = %d, want 50", acct.Coins)
	}
}

func TestMissionDailyPeriodRollover(t *testing.T) {
	tracker, _, clock, accountID := newTestTracker(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := tracker.RecordEvent(ctx, accountID, "daily_draws", 1); err != nil {
			t.Fatal(err)
		}
	}
	if result, err := tracker.Claim(ctx, accountID, "daily_draws"); err != nil || !result.Granted {
		t.Fatalf("day one claim: granted=%v err=%v", result.Granted, err)
	}

	// Next UTC day: progress starts over and the claim is available again.
	clock.Advance(24 * time.Hour)
	status, err := tracker.StatusFor(ctx, accountID)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range status {
		if s.Key == "daily_draws" {
			if s.Progress != 0 || s.Completed || s.Claimed {
				t.Errorf("day two status = %+v, want fresh", s)
			}
		}
	}
}

func TestMissionStatusJoinsClaims(t *testing.T) {
	tracker, _, _, accountID := newTestTracker(t)
	ctx := context.Background()

	if _, err := tracker.RecordEvent(ctx, accountID, "daily_draws", 5); err != nil {
		t.Fatal(err)
	}
	if _, err := tracker.Claim(ctx, accountID, "daily_draws"); err != nil {
		t.Fatal(err)
	}

	status, err := tracker.StatusFor(ctx, accountID)
	if err != nil {
		t.Fatal(err)
	}
	if len(status) != len(models.MissionDefinitions) {
		t.Fatalf("status rows = %d, want %d", len(status), len(models.MissionDefinitions))
	}
	for _, s := range status {
		switch s.Key {
		case "daily_draws":
			if !s.Completed || !s.Claimed {
				t.Errorf("daily_draws = %+v, want completed and claimed", s)
			}
		default:
			if s.Progress != 0 || s.Claimed {
				t.Errorf("%s = %+v, want untouched", s.Key, s)
			}
		}
	}
}

func TestMissionConcurrentFirstEvents(t *testing.T) {
	tracker, _, _, accountID := newTestTracker(t)
	ctx := context.Background()

	// Concurrent first events for the same period must not drop increments.
	const events = 20
	var wg sync.WaitGroup
	for i := 0; i < events; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := tracker.RecordEvent(ctx, accountID, "clan_donations", 1); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	status, err := tracker.StatusFor(ctx, accountID)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range status {
		if s.Key == "clan_donations" && s.Progress != events {
			t.Errorf("progress = %d, want %d", s.Progress, events)
		}
	}
}

func TestMissionClaimReleasedWhenGrantFails(t *testing.T) {
	tracker, ledger, _, _ := newTestTracker(t)
	ctx := context.Background()

	// Progress rows can exist before the account does; the grant then fails.
	const ghostID = "not-yet-created"
	if _, err := tracker.RecordEvent(ctx, ghostID, "daily_draws", 5); err != nil {
		t.Fatal(err)
	}
	if _, err := tracker.Claim(ctx, ghostID, "daily_draws"); err == nil {
		t.Fatal("claim succeeded without an account to pay")
	}

	// The failed claim did not burn the one-shot: once the account exists,
	// the reward is still claimable.
	if err := ledger.CreateAccount(ctx, &models.Account{ID: ghostID, Username: "late", Level: 1}); err != nil {
		t.Fatal(err)
	}
	result, err := tracker.Claim(ctx, ghostID, "daily_draws")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Granted {
		t.Fatal("claim not granted after the earlier grant failure")
	}
}

func TestMissionUnknownKey(t *testing.T) {
	tracker, _, _, accountID := newTestTracker(t)
	ctx := context.Background()

	if _, err := tracker.RecordEvent(ctx, accountID, "nope", 1); err == nil {
		t.Error("unknown mission accepted by RecordEvent")
	}
	if _, err := tracker.Claim(ctx, accountID, "nope"); err == nil {
		t.Error("unknown mission accepted by Claim")
	}
}
