package services

import (
	"context"
	cryptoRand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"

	"gacha-card-system/models"
)

// RandomSource abstracts the draw randomness so tests can seed it.
type RandomSource interface {
	Float64() float64 // [0, 1)
}

// cryptoRNG is the default source: 53 random bits from crypto/rand.
type cryptoRNG struct{}

func (cryptoRNG) Float64() float64 {
	var buf [8]byte
	if _, err := cryptoRand.Read(buf[:]); err != nil {
		return rand.Float64()
	}
	u := binary.BigEndian.Uint64(buf[:]) >> 11 // 53 bits
	return float64(u) / (1 << 53)
}

func DefaultRNG() RandomSource { return cryptoRNG{} }

// seededRNG is replicable; used by tests and simulations.
type seededRNG struct{ r *rand.Rand }

func NewSeededRNG(seed uint64) RandomSource {
	return &seededRNG{r: rand.New(rand.NewPCG(seed, 0))}
}

func (s *seededRNG) Float64() float64 { return s.r.Float64() }

// Pack tiers and their rarity weight tables. A weight of zero excludes the
// rarity from the pack entirely.
const (
	PackRegular = "regular"
	PackGod     = "god"
	PackIcon    = "icon"
)

var packWeights = map[string]map[models.Rarity]float64{
	PackRegular: {
		models.RarityCommon:    0.60,
		models.RarityRare:      0.25,
		models.RarityEpic:      0.12,
		models.RarityLegendary: 0.03,
	},
	// God packs never drop below epic.
	PackGod: {
		models.RarityEpic:      0.70,
		models.RarityLegendary: 0.30,
	},
	// Icon packs skew rare-and-up.
	PackIcon: {
		models.RarityRare:      0.50,
		models.RarityEpic:      0.35,
		models.RarityLegendary: 0.15,
	},
}

func KnownPackType(packType string) bool {
	_, ok := packWeights[packType]
	return ok
}

// CardSource is the read-only catalog collaborator the resolver samples from.
type CardSource interface {
	CardsByRarity(ctx context.Context, rarity models.Rarity) ([]models.Card, error)
}

// DrawResult is the ordered outcome of one resolution call. It is never
// persisted directly; it drives ownership grants and mission increments.
type DrawResult struct {
	Items []models.Card `json:"items"`
}

// Resolver turns a pack-opening request into awarded cards by sampling the
// pack's rarity distribution and then a pull-weighted card within that
// rarity. Pure over a catalog snapshot plus the injected random source —
// no pity state is carried between draws.
type Resolver struct {
	catalog CardSource
	rng     RandomSource
}

func NewResolver(catalog CardSource, rng RandomSource) *Resolver {
	if rng == nil {
		rng = DefaultRNG()
	}
	return &Resolver{catalog: catalog, rng: rng}
}

func (r *Resolver) Resolve(ctx context.Context, packType string, count int) (*DrawResult, error) {
	weights, ok := packWeights[packType]
	if !ok {
		return nil, ErrInvalid("unknown pack type: " + packType)
	}
	if count < 1 {
		return nil, ErrInvalid("draw count must be at least 1")
	}

	result := &DrawResult{Items: make([]models.Card, 0, count)}
	for i := 0; i < count; i++ {
		card, err := r.drawOne(ctx, weights)
		if err != nil {
			return nil, err
		}
		result.Items = append(result.Items, card)
	}
	return result, nil
}

// drawOne samples a rarity, then a card. An empty rarity bucket falls back
// to resampling among the remaining rarities rather than failing the draw;
// only a fully empty catalog is an error.
func (r *Resolver) drawOne(ctx context.Context, weights map[models.Rarity]float64) (models.Card, error) {
	remaining := make(map[models.Rarity]float64, len(weights))
	for rarity, w := range weights {
		if w > 0 {
			remaining[rarity] = w
		}
	}

	for len(remaining) > 0 {
		rarity := sampleRarity(remaining, r.rng.Float64())
		cards, err := r.catalog.CardsByRarity(ctx, rarity)
		if err != nil {
			return models.Card{}, err
		}
		if len(cards) > 0 {
			return pickWeighted(cards, r.rng.Float64()), nil
		}
		delete(remaining, rarity)
	}
	return models.Card{}, ErrCatalogEmpty()
}

// sampleRarity walks the weight table in canonical rarity order so a given
// roll is deterministic for a given table.
func sampleRarity(weights map[models.Rarity]float64, roll float64) models.Rarity {
	var total float64
	for _, w := range weights {
		total += w
	}

	target := roll * total
	var acc float64
	var last models.Rarity
	for _, rarity := range models.Rarities {
		w, ok := weights[rarity]
		if !ok {
			continue
		}
		acc += w
		last = rarity
		if target < acc {
			return rarity
		}
	}
	return last
}

// pickWeighted selects a card by PullWeight; weight <= 0 counts as 1.
func pickWeighted(cards []models.Card, roll float64) models.Card {
	var total int64
	for _, c := range cards {
		total += pullWeight(c)
	}

	target := int64(roll * float64(total))
	var acc int64
	for _, c := range cards {
		acc += pullWeight(c)
		if target < acc {
			return c
		}
	}
	return cards[len(cards)-1]
}

func pullWeight(c models.Card) int64 {
	if c.PullWeight <= 0 {
		return 1
	}
	return int64(c.PullWeight)
}
