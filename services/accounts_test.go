package services

import (
	"context"
	"testing"
	"time"

	"gacha-card-system/models"
	"gacha-card-system/store"

	"github.com/rs/zerolog"
)

func newTestAccounts(t *testing.T) (*AccountService, *store.MemoryLedger, *fakeClock) {
	t.Helper()
	ledger := store.NewMemoryLedger()
	clock := &fakeClock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	return NewAccountService(ledger, clock, zerolog.Nop()), ledger, clock
}

func TestEnsureAccountCreatesWithStartingBalances(t *testing.T) {
	svc, _, _ := newTestAccounts(t)

	acct, err := svc.EnsureAccount(context.Background(), "newbie")
	if err != nil {
		t.Fatal(err)
	}
	if acct.Tickets != 5 || acct.Coins != 200 {
		t.Errorf("starting balances tickets=%d coins=%d, want 5/200", acct.Tickets, acct.Coins)
	}
	if acct.Level != 1 {
		t.Errorf("starting level = %d, want 1", acct.Level)
	}
	if acct.LastLoginAt == nil {
		t.Error("LastLoginAt not stamped")
	}
}

func TestEnsureAccountIsIdempotent(t *testing.T) {
	svc, _, clock := newTestAccounts(t)
	ctx := context.Background()

	first, err := svc.EnsureAccount(ctx, "repeat")
	if err != nil {
		t.Fatal(err)
	}

	clock.Advance(time.Hour)
	second, err := svc.EnsureAccount(ctx, "repeat")
	if err != nil {
		t.Fatal(err)
	}
	if second.ID != first.ID {
		t.Fatalf("second signup created a new account")
	}
	if second.LastLoginAt == nil || !second.LastLoginAt.Equal(clock.Now()) {
		t.Errorf("LastLoginAt = %v, want refreshed to %v", second.LastLoginAt, clock.Now())
	}
}

func TestEnsureAccountRejectsEmptyUsername(t *testing.T) {
	svc, _, _ := newTestAccounts(t)
	if _, err := svc.EnsureAccount(context.Background(), ""); err == nil {
		t.Error("empty username accepted")
	}
}

func TestLevelUpCardMergesCopies(t *testing.T) {
	svc, ledger, _ := newTestAccounts(t)
	ctx := context.Background()

	acct, err := svc.EnsureAccount(ctx, "collector")
	if err != nil {
		t.Fatal(err)
	}
	cards := []models.Card{{Name: "Ace", Slug: "ace", Rarity: models.RarityRare, PullWeight: 1}}
	if err := ledger.CreateCards(ctx, cards); err != nil {
		t.Fatal(err)
	}
	cardID := cards[0].ID
	if err := ledger.GrantCards(ctx, acct.ID, []string{cardID, cardID}); err != nil {
		t.Fatal(err)
	}

	upgraded, err := svc.LevelUpCard(ctx, acct.ID, cardID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if upgraded.Level != 2 || upgraded.Quantity != 1 {
		t.Errorf("upgraded = level %d x%d, want level 2 x1", upgraded.Level, upgraded.Quantity)
	}

	base, err := ledger.GetUserCard(ctx, acct.ID, cardID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if base.Quantity != 0 {
		t.Errorf("level 1 copies = %d, want 0", base.Quantity)
	}

	// Leveling grants the progression score bonus.
	after, _ := ledger.GetAccount(ctx, acct.ID)
	if after.Score != ScoreForLevelUp {
		t.Errorf("score = %d, want %d", after.Score, ScoreForLevelUp)
	}
}

func TestLevelUpCardValidation(t *testing.T) {
	svc, ledger, _ := newTestAccounts(t)
	ctx := context.Background()

	acct, err := svc.EnsureAccount(ctx, "sparse")
	if err != nil {
		t.Fatal(err)
	}
	cards := []models.Card{{Name: "Solo", Slug: "solo", Rarity: models.RarityCommon, PullWeight: 1}}
	if err := ledger.CreateCards(ctx, cards); err != nil {
		t.Fatal(err)
	}
	if err := ledger.GrantCards(ctx, acct.ID, []string{cards[0].ID}); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.LevelUpCard(ctx, acct.ID, cards[0].ID, 1); err == nil {
		t.Error("level-up with one copy accepted")
	}
	if _, err := svc.LevelUpCard(ctx, acct.ID, cards[0].ID, 0); err == nil {
		t.Error("level below minimum accepted")
	}
	if _, err := svc.LevelUpCard(ctx, acct.ID, cards[0].ID, models.CardLevelMax); err == nil {
		t.Error("level-up at max level accepted")
	}
	if _, err := svc.LevelUpCard(ctx, acct.ID, "unknown-card", 1); err == nil {
		t.Error("unowned card accepted")
	}
}
