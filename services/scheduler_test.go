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

func TestMaintenanceSweepPurgesStaleRows(t *testing.T) {
	ledger := store.NewMemoryLedger()
	clock := &fakeClock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	svc := NewMaintenanceService(ledger, clock, zerolog.Nop())
	ctx := context.Background()

	expired := clock.Now().Add(-time.Hour)
	if err := ledger.CreateWindow(ctx, &models.TimeWindow{Key: "discount:old", EndsAt: &expired}); err != nil {
		t.Fatal(err)
	}
	if _, err := ledger.UpsertMissionProgress(ctx, "a1", "daily_draws", "2026-03-09", 3, 5); err != nil {
		t.Fatal(err)
	}
	if _, err := ledger.UpsertMissionProgress(ctx, "a1", "daily_draws", "2026-03-10", 1, 5); err != nil {
		t.Fatal(err)
	}

	svc.Sweep(ctx)

	if _, err := ledger.GetWindow(ctx, "discount:old"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expired window after sweep: %v, want ErrNotFound", err)
	}
	stale, err := ledger.ListMissionProgress(ctx, "a1", "2026-03-09")
	if err != nil {
		t.Fatal(err)
	}
	if len(stale) != 0 {
		t.Errorf("stale mission rows after sweep = %d, want 0", len(stale))
	}
	today, err := ledger.ListMissionProgress(ctx, "a1", "2026-03-10")
	if err != nil {
		t.Fatal(err)
	}
	if len(today) != 1 {
		t.Errorf("current-period rows after sweep = %d, want 1", len(today))
	}
}
