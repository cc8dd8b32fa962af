package services

import (
	"context"
	"time"

	"gacha-card-system/models"
	"gacha-card-system/store"
	"gacha-card-system/utils"

	"github.com/gosimple/slug"
	"github.com/rs/zerolog"
)

// CatalogTTL bounds how stale a cached rarity bucket may get. The catalog
// is read-mostly; there is no push invalidation.
const CatalogTTL = 5 * time.Minute

// CatalogService serves card lookups through a process-wide TTL cache.
type CatalogService struct {
	ledger store.Ledger
	cache  *utils.TTLCache
	logger zerolog.Logger
}

func NewCatalogService(ledger store.Ledger, cache *utils.TTLCache, logger zerolog.Logger) *CatalogService {
	if cache == nil {
		cache = utils.NewTTLCache(CatalogTTL, nil)
	}
	return &CatalogService{ledger: ledger, cache: cache, logger: logger}
}

func (s *CatalogService) CardsByRarity(ctx context.Context, rarity models.Rarity) ([]models.Card, error) {
	cacheKey := "cards:" + string(rarity)
	if v, ok := s.cache.Get(cacheKey); ok {
		return v.([]models.Card), nil
	}

	cards, err := s.ledger.CardsByRarity(ctx, rarity)
	if err != nil {
		return nil, err
	}
	s.cache.Set(cacheKey, cards)
	return cards, nil
}

// Seed inserts the base card set when the catalog is empty.
func (s *CatalogService) Seed(ctx context.Context) error {
	n, err := s.ledger.CountCards(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	cards := make([]models.Card, 0, len(seedCards))
	for _, sc := range seedCards {
		cards = append(cards, models.Card{
			Name:       sc.name,
			Slug:       slug.Make(sc.name),
			Character:  sc.character,
			Rarity:     sc.rarity,
			PullWeight: sc.pullWeight,
		})
	}
	if err := s.ledger.CreateCards(ctx, cards); err != nil {
		return err
	}
	s.logger.Info().Int("cards", len(cards)).Msg("seeded card catalog")
	return nil
}

var seedCards = []struct {
	name       string
	character  string
	rarity     models.Rarity
	pullWeight int
}{
	{"Street Striker", "Rook", models.RarityCommon, 1},
	{"Back-Alley Brawler", "Rook", models.RarityCommon, 1},
	{"Night Courier", "Wisp", models.RarityCommon, 1},
	{"Dock Worker", "Brick", models.RarityCommon, 1},
	{"Subway Busker", "Echo", models.RarityCommon, 2},
	{"Neon Duelist", "Wisp", models.RarityRare, 1},
	{"Rooftop Runner", "Echo", models.RarityRare, 1},
	{"Circuit Breaker", "Volt", models.RarityRare, 1},
	{"Iron Warden", "Brick", models.RarityRare, 2},
	{"Storm Herald", "Volt", models.RarityEpic, 1},
	{"Phantom Blade", "Wisp", models.RarityEpic, 1},
	{"Colossus", "Brick", models.RarityEpic, 1},
	{"Golden Sovereign", "Aurum", models.RarityLegendary, 1},
	{"Eclipse Empress", "Nyx", models.RarityLegendary, 1},
}
