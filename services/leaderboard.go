package services

import (
	"context"
	"errors"

	"gacha-card-system/store"
)

const defaultLeaderboardSize = 50

// LeaderboardService serves the score and prestige rankings.
type LeaderboardService struct {
	ledger store.Ledger
}

func NewLeaderboardService(ledger store.Ledger) *LeaderboardService {
	return &LeaderboardService{ledger: ledger}
}

// ScoreEntry is one leaderboard row; only public fields are exposed.
type ScoreEntry struct {
	Rank     int    `json:"rank"`
	Username string `json:"username"`
	Score    int64  `json:"score"`
	Level    int    `json:"level"`
}

func (s *LeaderboardService) TopScore(ctx context.Context, limit int) ([]ScoreEntry, error) {
	if limit < 1 || limit > 100 {
		limit = defaultLeaderboardSize
	}
	accounts, err := s.ledger.TopAccountsByScore(ctx, limit)
	if err != nil {
		return nil, err
	}
	entries := make([]ScoreEntry, len(accounts))
	for i, acct := range accounts {
		entries[i] = ScoreEntry{
			Rank:     i + 1,
			Username: acct.Username,
			Score:    acct.Score,
			Level:    acct.Level,
		}
	}
	return entries, nil
}

// AroundScore returns the score ranking slice centered on one account:
// up to radius entries above and below plus the account itself.
func (s *LeaderboardService) AroundScore(ctx context.Context, accountID string, radius int) ([]ScoreEntry, error) {
	if radius < 1 || radius > 25 {
		radius = 5
	}
	rank, err := s.ledger.ScoreRank(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrMissing("account not found")
		}
		return nil, err
	}

	start := rank - int64(radius)
	if start < 0 {
		start = 0
	}
	accounts, err := s.ledger.AccountsByScoreRange(ctx, int(start), 2*radius+1)
	if err != nil {
		return nil, err
	}
	entries := make([]ScoreEntry, len(accounts))
	for i, acct := range accounts {
		entries[i] = ScoreEntry{
			Rank:     int(start) + i + 1,
			Username: acct.Username,
			Score:    acct.Score,
			Level:    acct.Level,
		}
	}
	return entries, nil
}

// PrestigeEntry is one PvP ranking row.
type PrestigeEntry struct {
	Rank      int    `json:"rank"`
	AccountID string `json:"account_id"`
	Points    int64  `json:"points"`
}

func (s *LeaderboardService) TopPrestige(ctx context.Context, limit int) ([]PrestigeEntry, error) {
	if limit < 1 || limit > 100 {
		limit = defaultLeaderboardSize
	}
	recs, err := s.ledger.TopPrestige(ctx, limit)
	if err != nil {
		return nil, err
	}
	entries := make([]PrestigeEntry, len(recs))
	for i, rec := range recs {
		entries[i] = PrestigeEntry{Rank: i + 1, AccountID: rec.AccountID, Points: rec.Points}
	}
	return entries, nil
}
