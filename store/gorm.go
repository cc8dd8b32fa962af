package store

import (
	"context"
	"errors"
	"time"

	"gacha-card-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormLedger is the production Ledger backed by postgres. Requires the DB
// to be opened with TranslateError so unique violations surface as
// gorm.ErrDuplicatedKey.
type GormLedger struct {
	db *gorm.DB
}

func NewGormLedger(db *gorm.DB) *GormLedger {
	return &GormLedger{db: db}
}

// mapErr keeps driver errors from leaking past the store layer.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrVersionConflict
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	default:
		return err
	}
}

// --- Accounts ---

func (l *GormLedger) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	var acct models.Account
	if err := l.db.WithContext(ctx).First(&acct, "id = ?", id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &acct, nil
}

func (l *GormLedger) GetAccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	var acct models.Account
	if err := l.db.WithContext(ctx).First(&acct, "username = ?", username).Error; err != nil {
		return nil, mapErr(err)
	}
	return &acct, nil
}

func (l *GormLedger) CreateAccount(ctx context.Context, acct *models.Account) error {
	if acct.ID == "" {
		acct.ID = uuid.NewString()
	}
	return mapErr(l.db.WithContext(ctx).Create(acct).Error)
}

func (l *GormLedger) UpdateAccount(ctx context.Context, acct *models.Account) error {
	res := l.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ? AND version = ?", acct.ID, acct.Version).
		Updates(map[string]interface{}{
			"tickets":               acct.Tickets,
			"legendary_tickets":     acct.LegendaryTickets,
			"icon_tickets":          acct.IconTickets,
			"coins":                 acct.Coins,
			"score":                 acct.Score,
			"experience":            acct.Experience,
			"level":                 acct.Level,
			"prestige_points":       acct.PrestigePoints,
			"clan_id":               acct.ClanID,
			"token_last_claimed_at": acct.TokenLastClaimedAt,
			"last_login_at":         acct.LastLoginAt,
			"last_level_up_at":      acct.LastLevelUpAt,
			"version":               acct.Version + 1,
		})
	if res.Error != nil {
		return mapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	acct.Version++
	return nil
}

// --- Catalog ---

func (l *GormLedger) CardsByRarity(ctx context.Context, rarity models.Rarity) ([]models.Card, error) {
	var cards []models.Card
	err := l.db.WithContext(ctx).Where("rarity = ?", rarity).Order("slug ASC").Find(&cards).Error
	return cards, mapErr(err)
}

func (l *GormLedger) CountCards(ctx context.Context) (int64, error) {
	var n int64
	err := l.db.WithContext(ctx).Model(&models.Card{}).Count(&n).Error
	return n, mapErr(err)
}

func (l *GormLedger) CreateCards(ctx context.Context, cards []models.Card) error {
	return mapErr(l.db.WithContext(ctx).Create(&cards).Error)
}

// --- Ownership ---

func (l *GormLedger) GrantCards(ctx context.Context, accountID string, cardIDs []string) error {
	return mapErr(l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, cardID := range cardIDs {
			uc := models.UserCard{
				ID:        uuid.NewString(),
				AccountID: accountID,
				CardID:    cardID,
				Level:     models.CardLevelMin,
				Quantity:  1,
			}
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "account_id"}, {Name: "card_id"}, {Name: "level"}},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"quantity":   gorm.Expr("user_cards.quantity + 1"),
					"updated_at": time.Now(),
				}),
			}).Create(&uc).Error
			if err != nil {
				return err
			}
		}
		return nil
	}))
}

func (l *GormLedger) GetUserCards(ctx context.Context, accountID string) ([]models.UserCard, error) {
	var cards []models.UserCard
	err := l.db.WithContext(ctx).Where("account_id = ? AND quantity > 0", accountID).
		Preload("Card").
		Order("level DESC, updated_at DESC").
		Find(&cards).Error
	return cards, mapErr(err)
}

func (l *GormLedger) GetUserCard(ctx context.Context, accountID, cardID string, level int) (*models.UserCard, error) {
	var uc models.UserCard
	err := l.db.WithContext(ctx).
		Where("account_id = ? AND card_id = ? AND level = ?", accountID, cardID, level).
		First(&uc).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return &uc, nil
}

// LevelUpCard consumes the copies and produces the next-level copy in one
// transaction. The quantity guard in the WHERE clause is what makes two
// concurrent level-ups of the same card safe.
func (l *GormLedger) LevelUpCard(ctx context.Context, accountID, cardID string, level int) error {
	return mapErr(l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.UserCard{}).
			Where("account_id = ? AND card_id = ? AND level = ? AND quantity >= ?",
				accountID, cardID, level, models.CardLevelUpCopies).
			Update("quantity", gorm.Expr("quantity - ?", models.CardLevelUpCopies))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrVersionConflict
		}

		next := models.UserCard{
			ID:        uuid.NewString(),
			AccountID: accountID,
			CardID:    cardID,
			Level:     level + 1,
			Quantity:  1,
		}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "account_id"}, {Name: "card_id"}, {Name: "level"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"quantity":   gorm.Expr("user_cards.quantity + 1"),
				"updated_at": time.Now(),
			}),
		}).Create(&next).Error
	}))
}

// --- Time windows ---

func (l *GormLedger) GetWindow(ctx context.Context, key string) (*models.TimeWindow, error) {
	var win models.TimeWindow
	if err := l.db.WithContext(ctx).First(&win, "key = ?", key).Error; err != nil {
		return nil, mapErr(err)
	}
	return &win, nil
}

func (l *GormLedger) CreateWindow(ctx context.Context, win *models.TimeWindow) error {
	if win.ID == "" {
		win.ID = uuid.NewString()
	}
	return mapErr(l.db.WithContext(ctx).Create(win).Error)
}

func (l *GormLedger) UpdateWindow(ctx context.Context, win *models.TimeWindow) error {
	res := l.db.WithContext(ctx).Model(&models.TimeWindow{}).
		Where("id = ? AND version = ?", win.ID, win.Version).
		Updates(map[string]interface{}{
			"starts_at":      win.StartsAt,
			"ends_at":        win.EndsAt,
			"is_active":      win.IsActive,
			"max_per_period": win.MaxPerPeriod,
			"counter":        win.Counter,
			"period_key":     win.PeriodKey,
			"last_used_at":   win.LastUsedAt,
			"version":        win.Version + 1,
		})
	if res.Error != nil {
		return mapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	win.Version++
	return nil
}

func (l *GormLedger) PurgeExpiredWindows(ctx context.Context, now time.Time) (int64, error) {
	res := l.db.WithContext(ctx).
		Where("ends_at IS NOT NULL AND ends_at < ?", now).
		Delete(&models.TimeWindow{})
	return res.RowsAffected, mapErr(res.Error)
}

// --- Missions ---

func (l *GormLedger) UpsertMissionProgress(ctx context.Context, scopeID, missionKey, periodKey string, inc, goal int64) (*models.MissionProgress, error) {
	mp := models.MissionProgress{
		ID:         uuid.NewString(),
		ScopeID:    scopeID,
		MissionKey: missionKey,
		PeriodKey:  periodKey,
		Progress:   inc,
		Goal:       goal,
		Completed:  inc >= goal,
	}
	// Insert-or-increment in one statement; completed can only flip false
	// to true because progress never decreases.
	err := l.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "scope_id"}, {Name: "mission_key"}, {Name: "period_key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"progress":   gorm.Expr("mission_progresses.progress + ?", inc),
			"completed":  gorm.Expr("mission_progresses.progress + ? >= mission_progresses.goal", inc),
			"updated_at": time.Now(),
		}),
	}).Create(&mp).Error
	if err != nil {
		return nil, mapErr(err)
	}

	var out models.MissionProgress
	err = l.db.WithContext(ctx).
		Where("scope_id = ? AND mission_key = ? AND period_key = ?", scopeID, missionKey, periodKey).
		First(&out).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return &out, nil
}

func (l *GormLedger) ListMissionProgress(ctx context.Context, scopeID, periodKey string) ([]models.MissionProgress, error) {
	var rows []models.MissionProgress
	err := l.db.WithContext(ctx).
		Where("scope_id = ? AND period_key = ?", scopeID, periodKey).
		Find(&rows).Error
	return rows, mapErr(err)
}

func (l *GormLedger) InsertMissionClaim(ctx context.Context, scopeID, missionKey, periodKey string) error {
	claim := models.MissionClaim{
		ID:         uuid.NewString(),
		ScopeID:    scopeID,
		MissionKey: missionKey,
		PeriodKey:  periodKey,
	}
	return mapErr(l.db.WithContext(ctx).Create(&claim).Error)
}

func (l *GormLedger) DeleteMissionClaim(ctx context.Context, scopeID, missionKey, periodKey string) error {
	err := l.db.WithContext(ctx).
		Where("scope_id = ? AND mission_key = ? AND period_key = ?", scopeID, missionKey, periodKey).
		Delete(&models.MissionClaim{}).Error
	return mapErr(err)
}

func (l *GormLedger) ListMissionClaims(ctx context.Context, scopeID, periodKey string) ([]models.MissionClaim, error) {
	var rows []models.MissionClaim
	err := l.db.WithContext(ctx).
		Where("scope_id = ? AND period_key = ?", scopeID, periodKey).
		Find(&rows).Error
	return rows, mapErr(err)
}

func (l *GormLedger) PurgeStaleMissions(ctx context.Context, currentPeriodKey string) (int64, error) {
	var purged int64
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("period_key <> ?", currentPeriodKey).Delete(&models.MissionProgress{})
		if res.Error != nil {
			return res.Error
		}
		purged = res.RowsAffected
		return tx.Where("period_key <> ?", currentPeriodKey).Delete(&models.MissionClaim{}).Error
	})
	return purged, mapErr(err)
}

// --- Clans ---

func (l *GormLedger) GetClan(ctx context.Context, id string) (*models.Clan, error) {
	var clan models.Clan
	if err := l.db.WithContext(ctx).First(&clan, "id = ?", id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &clan, nil
}

func (l *GormLedger) CreateClan(ctx context.Context, clan *models.Clan) error {
	if clan.ID == "" {
		clan.ID = uuid.NewString()
	}
	return mapErr(l.db.WithContext(ctx).Create(clan).Error)
}

func (l *GormLedger) UpdateClan(ctx context.Context, clan *models.Clan) error {
	res := l.db.WithContext(ctx).Model(&models.Clan{}).
		Where("id = ? AND version = ?", clan.ID, clan.Version).
		Updates(map[string]interface{}{
			"name":                clan.Name,
			"level":               clan.Level,
			"xp":                  clan.XP,
			"max_members":         clan.MaxMembers,
			"member_count":        clan.MemberCount,
			"total_donated":       clan.TotalDonated,
			"next_expansion_cost": clan.NextExpansionCost,
			"version":             clan.Version + 1,
		})
	if res.Error != nil {
		return mapErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	clan.Version++
	return nil
}

// --- Prestige ---

func (l *GormLedger) AdjustPrestige(ctx context.Context, accountID string, delta int64) (*models.PrestigeRecord, error) {
	initial := delta
	if initial < 0 {
		initial = 0
	}
	rec := models.PrestigeRecord{AccountID: accountID, Points: initial}
	err := l.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "account_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"points":     gorm.Expr("GREATEST(prestige_records.points + ?, 0)", delta),
			"updated_at": time.Now(),
		}),
	}).Create(&rec).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return l.GetPrestige(ctx, accountID)
}

func (l *GormLedger) GetPrestige(ctx context.Context, accountID string) (*models.PrestigeRecord, error) {
	var rec models.PrestigeRecord
	if err := l.db.WithContext(ctx).First(&rec, "account_id = ?", accountID).Error; err != nil {
		return nil, mapErr(err)
	}
	return &rec, nil
}

func (l *GormLedger) GetBattleMode(ctx context.Context, mode string) (*models.BattleModeConfig, error) {
	var cfg models.BattleModeConfig
	if err := l.db.WithContext(ctx).First(&cfg, "mode = ?", mode).Error; err != nil {
		return nil, mapErr(err)
	}
	return &cfg, nil
}

// --- Idempotency receipts ---

func (l *GormLedger) GetReceipt(ctx context.Context, idempotencyKey string) (*models.ActionReceipt, error) {
	var r models.ActionReceipt
	if err := l.db.WithContext(ctx).First(&r, "idempotency_key = ?", idempotencyKey).Error; err != nil {
		return nil, mapErr(err)
	}
	return &r, nil
}

func (l *GormLedger) PutReceipt(ctx context.Context, receipt *models.ActionReceipt) error {
	if receipt.ID == "" {
		receipt.ID = uuid.NewString()
	}
	return mapErr(l.db.WithContext(ctx).Create(receipt).Error)
}

// --- Audit ---

func (l *GormLedger) AppendDonationLog(ctx context.Context, entry *models.DonationLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	return mapErr(l.db.WithContext(ctx).Create(entry).Error)
}

func (l *GormLedger) AppendPurchaseLog(ctx context.Context, entry *models.PurchaseLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	return mapErr(l.db.WithContext(ctx).Create(entry).Error)
}

func (l *GormLedger) AppendBattleLog(ctx context.Context, entry *models.BattleLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	return mapErr(l.db.WithContext(ctx).Create(entry).Error)
}

// --- Leaderboards ---

func (l *GormLedger) TopAccountsByScore(ctx context.Context, limit int) ([]models.Account, error) {
	var accounts []models.Account
	err := l.db.WithContext(ctx).
		Order("score DESC").
		Limit(limit).
		Find(&accounts).Error
	return accounts, mapErr(err)
}

func (l *GormLedger) AccountsByScoreRange(ctx context.Context, offset, limit int) ([]models.Account, error) {
	var accounts []models.Account
	err := l.db.WithContext(ctx).
		Order("score DESC").
		Offset(offset).
		Limit(limit).
		Find(&accounts).Error
	return accounts, mapErr(err)
}

func (l *GormLedger) ScoreRank(ctx context.Context, accountID string) (int64, error) {
	acct, err := l.GetAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	var higher int64
	err = l.db.WithContext(ctx).Model(&models.Account{}).
		Where("score > ?", acct.Score).
		Count(&higher).Error
	return higher, mapErr(err)
}

func (l *GormLedger) TopPrestige(ctx context.Context, limit int) ([]models.PrestigeRecord, error) {
	var recs []models.PrestigeRecord
	err := l.db.WithContext(ctx).
		Order("points DESC").
		Limit(limit).
		Find(&recs).Error
	return recs, mapErr(err)
}
