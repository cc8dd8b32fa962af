package services

import (
	"math"

	"gacha-card-system/models"
)

// Pure progression arithmetic. Every function here is total and does no
// I/O, so the transaction layer can re-run them freely on CAS retries.

// Score values per card rarity.
const (
	ScoreLegendary = 100
	ScoreEpic      = 40
	ScoreRare      = 25
	ScoreCommon    = 5

	// ScoreForLevelUp is granted once per account level gained.
	ScoreForLevelUp = 100

	baseLevelExp = 100
	expGrowth    = 1.5
)

// Default prestige deltas, overridable per battle mode.
const (
	DefaultWinnerDelta = 20
	DefaultLoserDelta  = -10
	DefaultDrawDelta   = 0
)

func ScoreForRarity(rarity models.Rarity) int64 {
	switch rarity {
	case models.RarityLegendary:
		return ScoreLegendary
	case models.RarityEpic:
		return ScoreEpic
	case models.RarityRare:
		return ScoreRare
	case models.RarityCommon:
		return ScoreCommon
	default:
		return 0
	}
}

// NextLevelExp returns the experience needed to clear the given level:
// floor(100 * 1.5^(level-1)). Level 1 -> 100, 2 -> 150, 3 -> 225, ...
func NextLevelExp(level int) int64 {
	if level < 1 {
		level = 1
	}
	return int64(math.Floor(baseLevelExp * math.Pow(expGrowth, float64(level-1))))
}

// ApplyExperience folds gained experience into (exp, level) by repeated
// subtraction of each level's threshold. The remainder is never negative
// and the level never decreases.
func ApplyExperience(currentExp int64, currentLevel int, gained int64) (int64, int) {
	if currentLevel < 1 {
		currentLevel = 1
	}
	exp := currentExp + gained
	level := currentLevel
	for exp >= NextLevelExp(level) {
		exp -= NextLevelExp(level)
		level++
	}
	return exp, level
}

// ExpansionResult reports whether a clan capacity tier unlocked.
type ExpansionResult struct {
	Unlocked  bool  `json:"unlocked"`
	NewMax    int   `json:"new_max"`
	NewCost   int64 `json:"new_cost"`
	Remaining int64 `json:"remaining,omitempty"`
}

// expansionTiers: (member capacity, cumulative donation cost to unlock).
var expansionTiers = []struct {
	Max  int
	Cost int64
}{
	{30, 0},
	{40, 50},
	{50, 70},
	{60, 90},
	{70, 110},
}

// ExpansionTier evaluates whether cumulative donations unlock the next
// capacity tier above the current one. On unlock, the new cost is the tier
// after that; at the top tier nothing further unlocks.
func ExpansionTier(currentMaxMembers int, totalDonated int64) ExpansionResult {
	idx := -1
	for i, tier := range expansionTiers {
		if tier.Max == currentMaxMembers {
			idx = i
			break
		}
	}
	if idx == -1 || idx == len(expansionTiers)-1 {
		return ExpansionResult{Unlocked: false, NewMax: currentMaxMembers}
	}

	next := expansionTiers[idx+1]
	if totalDonated < next.Cost {
		return ExpansionResult{
			Unlocked:  false,
			NewMax:    currentMaxMembers,
			NewCost:   next.Cost,
			Remaining: next.Cost - totalDonated,
		}
	}

	result := ExpansionResult{Unlocked: true, NewMax: next.Max}
	if idx+2 < len(expansionTiers) {
		result.NewCost = expansionTiers[idx+2].Cost
	}
	return result
}

// PrestigeDeltas for one battle from the winner/loser perspective.
type PrestigeDeltas struct {
	Winner int64
	Loser  int64
	Draw   int64
}

var defaultPrestige = PrestigeDeltas{
	Winner: DefaultWinnerDelta,
	Loser:  DefaultLoserDelta,
	Draw:   DefaultDrawDelta,
}

// PrestigeDelta resolves the deltas for a battle mode; a nil config means
// the default policy.
func PrestigeDelta(cfg *models.BattleModeConfig) PrestigeDeltas {
	if cfg == nil {
		return defaultPrestige
	}
	return PrestigeDeltas{Winner: cfg.WinnerDelta, Loser: cfg.LoserDelta, Draw: cfg.DrawDelta}
}
