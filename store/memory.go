package store

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"gacha-card-system/models"

	"github.com/google/uuid"
)

// MemoryLedger is a mutex-guarded in-memory Ledger with the same CAS and
// upsert semantics as GormLedger. Concurrency property tests run against it.
type MemoryLedger struct {
	mu sync.Mutex

	accounts  map[string]*models.Account
	cards     map[string]*models.Card
	userCards map[string]*models.UserCard // accountID|cardID|level
	windows   map[string]*models.TimeWindow
	missions  map[string]*models.MissionProgress // scope|key|period
	claims    map[string]*models.MissionClaim
	clans     map[string]*models.Clan
	prestige  map[string]*models.PrestigeRecord
	modes     map[string]*models.BattleModeConfig
	receipts  map[string]*models.ActionReceipt

	donationLogs []models.DonationLog
	purchaseLogs []models.PurchaseLog
	battleLogs   []models.BattleLog
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		accounts:  make(map[string]*models.Account),
		cards:     make(map[string]*models.Card),
		userCards: make(map[string]*models.UserCard),
		windows:   make(map[string]*models.TimeWindow),
		missions:  make(map[string]*models.MissionProgress),
		claims:    make(map[string]*models.MissionClaim),
		clans:     make(map[string]*models.Clan),
		prestige:  make(map[string]*models.PrestigeRecord),
		modes:     make(map[string]*models.BattleModeConfig),
		receipts:  make(map[string]*models.ActionReceipt),
	}
}

func compositeKey(parts ...string) string { return strings.Join(parts, "|") }

func ucKey(accountID, cardID string, level int) string {
	return compositeKey(accountID, cardID, strconv.Itoa(level))
}

// --- Accounts ---

func (m *MemoryLedger) GetAccount(_ context.Context, id string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *acct
	return &cp, nil
}

func (m *MemoryLedger) GetAccountByUsername(_ context.Context, username string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, acct := range m.accounts {
		if acct.Username == username {
			cp := *acct
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryLedger) CreateAccount(_ context.Context, acct *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if acct.ID == "" {
		acct.ID = uuid.NewString()
	}
	if _, exists := m.accounts[acct.ID]; exists {
		return ErrVersionConflict
	}
	if acct.Level == 0 {
		acct.Level = 1
	}
	cp := *acct
	m.accounts[acct.ID] = &cp
	return nil
}

func (m *MemoryLedger) UpdateAccount(_ context.Context, acct *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.accounts[acct.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Version != acct.Version {
		return ErrVersionConflict
	}
	acct.Version++
	cp := *acct
	m.accounts[acct.ID] = &cp
	return nil
}

// --- Catalog ---

func (m *MemoryLedger) CardsByRarity(_ context.Context, rarity models.Rarity) ([]models.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Card
	for _, c := range m.cards {
		if c.Rarity == rarity {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

func (m *MemoryLedger) CountCards(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.cards)), nil
}

func (m *MemoryLedger) CreateCards(_ context.Context, cards []models.Card) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range cards {
		c := cards[i]
		if c.ID == "" {
			c.ID = uuid.NewString()
			cards[i].ID = c.ID
		}
		m.cards[c.ID] = &c
	}
	return nil
}

// --- Ownership ---

func (m *MemoryLedger) GrantCards(_ context.Context, accountID string, cardIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cardID := range cardIDs {
		key := ucKey(accountID, cardID, models.CardLevelMin)
		if uc, ok := m.userCards[key]; ok {
			uc.Quantity++
			continue
		}
		m.userCards[key] = &models.UserCard{
			ID:        uuid.NewString(),
			AccountID: accountID,
			CardID:    cardID,
			Level:     models.CardLevelMin,
			Quantity:  1,
		}
	}
	return nil
}

func (m *MemoryLedger) GetUserCards(_ context.Context, accountID string) ([]models.UserCard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.UserCard
	for _, uc := range m.userCards {
		if uc.AccountID == accountID && uc.Quantity > 0 {
			cp := *uc
			if card, ok := m.cards[uc.CardID]; ok {
				c := *card
				cp.Card = &c
			}
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Level > out[j].Level })
	return out, nil
}

func (m *MemoryLedger) GetUserCard(_ context.Context, accountID, cardID string, level int) (*models.UserCard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	uc, ok := m.userCards[ucKey(accountID, cardID, level)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *uc
	return &cp, nil
}

func (m *MemoryLedger) LevelUpCard(_ context.Context, accountID, cardID string, level int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	uc, ok := m.userCards[ucKey(accountID, cardID, level)]
	if !ok || uc.Quantity < models.CardLevelUpCopies {
		return ErrVersionConflict
	}
	uc.Quantity -= models.CardLevelUpCopies
	nextKey := ucKey(accountID, cardID, level+1)
	if next, ok := m.userCards[nextKey]; ok {
		next.Quantity++
	} else {
		m.userCards[nextKey] = &models.UserCard{
			ID:        uuid.NewString(),
			AccountID: accountID,
			CardID:    cardID,
			Level:     level + 1,
			Quantity:  1,
		}
	}
	return nil
}

// --- Time windows ---

func (m *MemoryLedger) GetWindow(_ context.Context, key string) (*models.TimeWindow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	win, ok := m.windows[key]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *win
	return &cp, nil
}

func (m *MemoryLedger) CreateWindow(_ context.Context, win *models.TimeWindow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.windows[win.Key]; exists {
		return ErrVersionConflict
	}
	if win.ID == "" {
		win.ID = uuid.NewString()
	}
	cp := *win
	m.windows[win.Key] = &cp
	return nil
}

func (m *MemoryLedger) UpdateWindow(_ context.Context, win *models.TimeWindow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.windows[win.Key]
	if !ok {
		return ErrNotFound
	}
	if cur.Version != win.Version {
		return ErrVersionConflict
	}
	win.Version++
	cp := *win
	m.windows[win.Key] = &cp
	return nil
}

func (m *MemoryLedger) PurgeExpiredWindows(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var purged int64
	for key, win := range m.windows {
		if win.EndsAt != nil && win.EndsAt.Before(now) {
			delete(m.windows, key)
			purged++
		}
	}
	return purged, nil
}

// --- Missions ---

func (m *MemoryLedger) UpsertMissionProgress(_ context.Context, scopeID, missionKey, periodKey string, inc, goal int64) (*models.MissionProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := compositeKey(scopeID, missionKey, periodKey)
	mp, ok := m.missions[key]
	if !ok {
		mp = &models.MissionProgress{
			ID:         uuid.NewString(),
			ScopeID:    scopeID,
			MissionKey: missionKey,
			PeriodKey:  periodKey,
			Goal:       goal,
		}
		m.missions[key] = mp
	}
	mp.Progress += inc
	if mp.Progress >= mp.Goal {
		mp.Completed = true
	}
	cp := *mp
	return &cp, nil
}

func (m *MemoryLedger) ListMissionProgress(_ context.Context, scopeID, periodKey string) ([]models.MissionProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.MissionProgress
	for _, mp := range m.missions {
		if mp.ScopeID == scopeID && mp.PeriodKey == periodKey {
			out = append(out, *mp)
		}
	}
	return out, nil
}

func (m *MemoryLedger) InsertMissionClaim(_ context.Context, scopeID, missionKey, periodKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := compositeKey(scopeID, missionKey, periodKey)
	if _, exists := m.claims[key]; exists {
		return ErrVersionConflict
	}
	m.claims[key] = &models.MissionClaim{
		ID:         uuid.NewString(),
		ScopeID:    scopeID,
		MissionKey: missionKey,
		PeriodKey:  periodKey,
		ClaimedAt:  time.Now(),
	}
	return nil
}

func (m *MemoryLedger) DeleteMissionClaim(_ context.Context, scopeID, missionKey, periodKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claims, compositeKey(scopeID, missionKey, periodKey))
	return nil
}

func (m *MemoryLedger) ListMissionClaims(_ context.Context, scopeID, periodKey string) ([]models.MissionClaim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.MissionClaim
	for _, c := range m.claims {
		if c.ScopeID == scopeID && c.PeriodKey == periodKey {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *MemoryLedger) PurgeStaleMissions(_ context.Context, currentPeriodKey string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var purged int64
	for key, mp := range m.missions {
		if mp.PeriodKey != currentPeriodKey {
			delete(m.missions, key)
			purged++
		}
	}
	for key, c := range m.claims {
		if c.PeriodKey != currentPeriodKey {
			delete(m.claims, key)
		}
	}
	return purged, nil
}

// --- Clans ---

func (m *MemoryLedger) GetClan(_ context.Context, id string) (*models.Clan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clan, ok := m.clans[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *clan
	return &cp, nil
}

func (m *MemoryLedger) CreateClan(_ context.Context, clan *models.Clan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if clan.ID == "" {
		clan.ID = uuid.NewString()
	}
	if _, exists := m.clans[clan.ID]; exists {
		return ErrVersionConflict
	}
	cp := *clan
	m.clans[clan.ID] = &cp
	return nil
}

func (m *MemoryLedger) UpdateClan(_ context.Context, clan *models.Clan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.clans[clan.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Version != clan.Version {
		return ErrVersionConflict
	}
	clan.Version++
	cp := *clan
	m.clans[clan.ID] = &cp
	return nil
}

// --- Prestige ---

func (m *MemoryLedger) AdjustPrestige(_ context.Context, accountID string, delta int64) (*models.PrestigeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.prestige[accountID]
	if !ok {
		rec = &models.PrestigeRecord{AccountID: accountID}
		m.prestige[accountID] = rec
	}
	rec.Points += delta
	if rec.Points < 0 {
		rec.Points = 0
	}
	rec.UpdatedAt = time.Now()
	cp := *rec
	return &cp, nil
}

func (m *MemoryLedger) GetPrestige(_ context.Context, accountID string) (*models.PrestigeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.prestige[accountID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MemoryLedger) GetBattleMode(_ context.Context, mode string) (*models.BattleModeConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.modes[mode]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *cfg
	return &cp, nil
}

// SetBattleMode seeds a mode config (test helper).
func (m *MemoryLedger) SetBattleMode(cfg models.BattleModeConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modes[cfg.Mode] = &cfg
}

// --- Idempotency receipts ---

func (m *MemoryLedger) GetReceipt(_ context.Context, idempotencyKey string) (*models.ActionReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.receipts[idempotencyKey]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MemoryLedger) PutReceipt(_ context.Context, receipt *models.ActionReceipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.receipts[receipt.IdempotencyKey]; exists {
		return ErrVersionConflict
	}
	if receipt.ID == "" {
		receipt.ID = uuid.NewString()
	}
	cp := *receipt
	m.receipts[receipt.IdempotencyKey] = &cp
	return nil
}

// --- Audit ---

func (m *MemoryLedger) AppendDonationLog(_ context.Context, entry *models.DonationLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.donationLogs = append(m.donationLogs, *entry)
	return nil
}

func (m *MemoryLedger) AppendPurchaseLog(_ context.Context, entry *models.PurchaseLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purchaseLogs = append(m.purchaseLogs, *entry)
	return nil
}

func (m *MemoryLedger) AppendBattleLog(_ context.Context, entry *models.BattleLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.battleLogs = append(m.battleLogs, *entry)
	return nil
}

// PurchaseLogCount reports appended purchase audit rows (test helper).
func (m *MemoryLedger) PurchaseLogCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.purchaseLogs)
}

// --- Leaderboards ---

func (m *MemoryLedger) TopAccountsByScore(_ context.Context, limit int) ([]models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Account
	for _, acct := range m.accounts {
		out = append(out, *acct)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryLedger) AccountsByScoreRange(_ context.Context, offset, limit int) ([]models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Account
	for _, acct := range m.accounts {
		out = append(out, *acct)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryLedger) ScoreRank(_ context.Context, accountID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.accounts[accountID]
	if !ok {
		return 0, ErrNotFound
	}
	var higher int64
	for _, other := range m.accounts {
		if other.Score > acct.Score {
			higher++
		}
	}
	return higher, nil
}

func (m *MemoryLedger) TopPrestige(_ context.Context, limit int) ([]models.PrestigeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.PrestigeRecord
	for _, rec := range m.prestige {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Points > out[j].Points })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
