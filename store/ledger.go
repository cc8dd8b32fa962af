package store

import (
	"context"
	"errors"
	"time"

	"gacha-card-system/models"
)

// Sentinel errors every Ledger implementation maps its backend failures to.
// Nothing above the store layer sees driver-specific errors.
var (
	ErrNotFound        = errors.New("store: record not found")
	ErrVersionConflict = errors.New("store: version conflict")
	ErrTimeout         = errors.New("store: operation timed out")
)

// Clock is injectable so time-window logic is testable.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func RealClock() Clock { return realClock{} }

// Ledger is the durable record store the economy engine runs on. All
// balance and counter mutations go through conditional updates (version
// compare-and-swap) or atomic increments — never read-modify-write across
// two calls.
type Ledger interface {
	// Accounts. UpdateAccount is a CAS on Account.Version: it fails with
	// ErrVersionConflict if the row changed since the read, and bumps the
	// in-memory Version on success.
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*models.Account, error)
	CreateAccount(ctx context.Context, acct *models.Account) error
	UpdateAccount(ctx context.Context, acct *models.Account) error

	// Card catalog (read-mostly; callers cache).
	CardsByRarity(ctx context.Context, rarity models.Rarity) ([]models.Card, error)
	CountCards(ctx context.Context) (int64, error)
	CreateCards(ctx context.Context, cards []models.Card) error

	// Ownership. GrantCards is an upsert-increment at level 1; LevelUpCard
	// atomically consumes copies at one level and produces one at the next.
	GrantCards(ctx context.Context, accountID string, cardIDs []string) error
	GetUserCards(ctx context.Context, accountID string) ([]models.UserCard, error)
	GetUserCard(ctx context.Context, accountID, cardID string, level int) (*models.UserCard, error)
	LevelUpCard(ctx context.Context, accountID, cardID string, level int) error

	// Time windows. UpdateWindow is a CAS like UpdateAccount; CreateWindow
	// fails with ErrVersionConflict when the key already exists.
	GetWindow(ctx context.Context, key string) (*models.TimeWindow, error)
	CreateWindow(ctx context.Context, win *models.TimeWindow) error
	UpdateWindow(ctx context.Context, win *models.TimeWindow) error
	PurgeExpiredWindows(ctx context.Context, now time.Time) (int64, error)

	// Missions. UpsertMissionProgress is an atomic insert-or-increment so
	// concurrent first-events in the same period cannot race. Claim inserts
	// are one-shot via the unique (scope, mission, period) key.
	UpsertMissionProgress(ctx context.Context, scopeID, missionKey, periodKey string, inc, goal int64) (*models.MissionProgress, error)
	ListMissionProgress(ctx context.Context, scopeID, periodKey string) ([]models.MissionProgress, error)
	InsertMissionClaim(ctx context.Context, scopeID, missionKey, periodKey string) error
	DeleteMissionClaim(ctx context.Context, scopeID, missionKey, periodKey string) error
	ListMissionClaims(ctx context.Context, scopeID, periodKey string) ([]models.MissionClaim, error)
	PurgeStaleMissions(ctx context.Context, currentPeriodKey string) (int64, error)

	// Clans.
	GetClan(ctx context.Context, id string) (*models.Clan, error)
	CreateClan(ctx context.Context, clan *models.Clan) error
	UpdateClan(ctx context.Context, clan *models.Clan) error

	// Prestige: atomic increment floored at zero.
	AdjustPrestige(ctx context.Context, accountID string, delta int64) (*models.PrestigeRecord, error)
	GetPrestige(ctx context.Context, accountID string) (*models.PrestigeRecord, error)
	GetBattleMode(ctx context.Context, mode string) (*models.BattleModeConfig, error)

	// Idempotency receipts. PutReceipt fails with ErrVersionConflict when
	// the key was already recorded.
	GetReceipt(ctx context.Context, idempotencyKey string) (*models.ActionReceipt, error)
	PutReceipt(ctx context.Context, receipt *models.ActionReceipt) error

	// Audit appends (best-effort from the caller's point of view).
	AppendDonationLog(ctx context.Context, entry *models.DonationLog) error
	AppendPurchaseLog(ctx context.Context, entry *models.PurchaseLog) error
	AppendBattleLog(ctx context.Context, entry *models.BattleLog) error

	// Leaderboards. ScoreRank is zero-based: the number of accounts with a
	// strictly higher score.
	TopAccountsByScore(ctx context.Context, limit int) ([]models.Account, error)
	AccountsByScoreRange(ctx context.Context, offset, limit int) ([]models.Account, error)
	ScoreRank(ctx context.Context, accountID string) (int64, error)
	TopPrestige(ctx context.Context, limit int) ([]models.PrestigeRecord, error)
}
