package services

import (
	"context"
	"testing"
	"time"

	"gacha-card-system/models"
	"gacha-card-system/store"
	"gacha-card-system/utils"

	"github.com/rs/zerolog"
)

func TestCatalogSeedIsIdempotent(t *testing.T) {
	ledger := store.NewMemoryLedger()
	svc := NewCatalogService(ledger, nil, zerolog.Nop())
	ctx := context.Background()

	if err := svc.Seed(ctx); err != nil {
		t.Fatal(err)
	}
	first, err := ledger.CountCards(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if first == 0 {
		t.Fatal("seed inserted nothing")
	}

	if err := svc.Seed(ctx); err != nil {
		t.Fatal(err)
	}
	second, _ := ledger.CountCards(ctx)
	if second != first {
		t.Errorf("second seed changed count: %d -> %d", first, second)
	}
}

func TestCatalogSeedCoversEveryRarity(t *testing.T) {
	ledger := store.NewMemoryLedger()
	svc := NewCatalogService(ledger, nil, zerolog.Nop())
	ctx := context.Background()

	if err := svc.Seed(ctx); err != nil {
		t.Fatal(err)
	}
	for _, rarity := range models.Rarities {
		cards, err := svc.CardsByRarity(ctx, rarity)
		if err != nil {
			t.Fatal(err)
		}
		if len(cards) == 0 {
			t.Errorf("no seeded cards for rarity %s", rarity)
		}
	}
}

func TestCatalogCachesBuckets(t *testing.T) {
	ledger := store.NewMemoryLedger()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	cache := utils.NewTTLCache(CatalogTTL, func() time.Time { return now })
	svc := NewCatalogService(ledger, cache, zerolog.Nop())
	ctx := context.Background()

	if err := ledger.CreateCards(ctx, []models.Card{
		{Name: "Only One", Slug: "only-one", Rarity: models.RarityRare, PullWeight: 1},
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.CardsByRarity(ctx, models.RarityRare); err != nil {
		t.Fatal(err)
	}

	// A card added behind the cache stays invisible until the TTL lapses.
	if err := ledger.CreateCards(ctx, []models.Card{
		{Name: "Late Arrival", Slug: "late-arrival", Rarity: models.RarityRare, PullWeight: 1},
	}); err != nil {
		t.Fatal(err)
	}
	cards, err := svc.CardsByRarity(ctx, models.RarityRare)
	if err != nil {
		t.Fatal(err)
	}
	if len(cards) != 1 {
		t.Errorf("cached bucket = %d cards, want 1", len(cards))
	}

	now = now.Add(CatalogTTL + time.Second)
	cards, err = svc.CardsByRarity(ctx, models.RarityRare)
	if err != nil {
		t.Fatal(err)
	}
	if len(cards) != 2 {
		t.Errorf("refreshed bucket = %d cards, want 2", len(cards))
	}
}
