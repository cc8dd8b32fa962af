package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gacha-card-system/models"
	"gacha-card-system/store"

	"github.com/rs/zerolog"
)

// ActionType discriminates the user-facing economy actions.
type ActionType string

const (
	ActionDraw            ActionType = "draw"
	ActionClaimDailyToken ActionType = "claim_daily_token"
	ActionDonate          ActionType = "donate"
	ActionBattleResult    ActionType = "battle_result"
	ActionPurchasePack    ActionType = "purchase_pack"
)

// ActionSpec is one logical user action. The idempotency key, when set,
// dedupes client retries of the same request.
type ActionSpec struct {
	Type           ActionType           `json:"type"`
	PackType       string               `json:"pack_type,omitempty"`
	Count          int                  `json:"count,omitempty"`
	ClanID         string               `json:"clan_id,omitempty"`
	Amount         int64                `json:"amount,omitempty"`
	OpponentID     string               `json:"opponent_id,omitempty"`
	Outcome        models.BattleOutcome `json:"outcome,omitempty"`
	Mode           string               `json:"mode,omitempty"`
	IdempotencyKey string               `json:"idempotency_key,omitempty"`
}

// ActionResult is what a successful Execute returns (and what a receipt
// replay reproduces).
type ActionResult struct {
	Action         ActionType       `json:"action"`
	Items          []models.Card    `json:"items,omitempty"`
	NewBalances    models.Balances  `json:"new_balances"`
	Granted        bool             `json:"granted,omitempty"`
	NextEligibleAt *time.Time       `json:"next_eligible_at,omitempty"`
	Expansion      *ExpansionResult `json:"expansion,omitempty"`
	PrestigePoints *int64           `json:"prestige_points,omitempty"`
	Replayed       bool             `json:"replayed,omitempty"`
}

// Engine tunables.
const (
	applyRetries = 3
	maxDrawCount = 10

	DailyTokenCooldown = 24 * time.Hour
	BattleLimitPerDay  = 5

	// XP granted to a battle winner.
	battleWinXP = 25

	// Discount windows halve the pack price while active.
	discountFactor = 2
)

// Pack purchase prices in coins and the cards a purchase yields.
var packPrices = map[string]int64{
	PackRegular: 100,
	PackGod:     500,
	PackIcon:    300,
}

var packPurchaseYield = map[string]int{
	PackRegular: 3,
	PackGod:     1,
	PackIcon:    1,
}

// Economy orchestrates each user action as one logical unit: validate
// preconditions, resolve the intended effect, apply ledger deltas under
// optimistic concurrency, then record audit state. Audit failures are
// logged, never rolled back — balance correctness outranks audit
// completeness.
type Economy struct {
	ledger   store.Ledger
	resolver *Resolver
	gate     *Gate
	missions *MissionTracker
	bans     BanPolicy
	clock    store.Clock
	logger   zerolog.Logger
}

func NewEconomy(ledger store.Ledger, resolver *Resolver, gate *Gate, missions *MissionTracker, bans BanPolicy, clock store.Clock, logger zerolog.Logger) *Economy {
	if clock == nil {
		clock = store.RealClock()
	}
	return &Economy{
		ledger:   ledger,
		resolver: resolver,
		gate:     gate,
		missions: missions,
		bans:     bans,
		clock:    clock,
		logger:   logger,
	}
}

// Execute runs the full Validated -> Resolved -> Applied -> Recorded chain
// for one action. A replayed idempotency key short-circuits to the stored
// result without re-applying anything.
func (e *Economy) Execute(ctx context.Context, accountID string, spec ActionSpec) (*ActionResult, error) {
	if spec.IdempotencyKey != "" {
		if receipt, err := e.ledger.GetReceipt(ctx, spec.IdempotencyKey); err == nil {
			var result ActionResult
			if jsonErr := json.Unmarshal([]byte(receipt.ResultJSON), &result); jsonErr == nil {
				result.Replayed = true
				return &result, nil
			}
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	acct, err := e.ledger.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalid("account not found")
		}
		return nil, err
	}

	var result *ActionResult
	switch spec.Type {
	case ActionDraw:
		result, err = e.executeDraw(ctx, acct, spec)
	case ActionClaimDailyToken:
		result, err = e.executeClaimDailyToken(ctx, acct)
	case ActionDonate:
		result, err = e.executeDonate(ctx, acct, spec)
	case ActionBattleResult:
		result, err = e.executeBattleResult(ctx, acct, spec)
	case ActionPurchasePack:
		result, err = e.executePurchasePack(ctx, acct, spec)
	default:
		return nil, ErrInvalid("unknown action type")
	}
	if err != nil {
		return nil, err
	}

	if spec.IdempotencyKey != "" {
		e.storeReceipt(ctx, accountID, spec, result)
	}
	return result, nil
}

// --- Draw ---

func (e *Economy) executeDraw(ctx context.Context, acct *models.Account, spec ActionSpec) (*ActionResult, error) {
	if e.bans.IsBanned(acct.Username) {
		return nil, ErrInvalid("account is not allowed to draw")
	}
	if !KnownPackType(spec.PackType) {
		return nil, ErrInvalid("unknown pack type: " + spec.PackType)
	}
	if spec.Count < 1 || spec.Count > maxDrawCount {
		return nil, ErrInvalid("draw count must be between 1 and 10")
	}

	// Resolve runs inside the CAS loop: a lost write re-rolls the draw
	// rather than re-applying a stale one.
	cost := int64(spec.Count)
	var draw *DrawResult
	updated, err := applyAccount(ctx, e.ledger, acct.ID, func(a *models.Account) error {
		d, err := e.resolver.Resolve(ctx, spec.PackType, spec.Count)
		if err != nil {
			return err
		}
		draw = d
		if err := chargeTickets(a, spec.PackType, cost); err != nil {
			return err
		}
		scoreGain := int64(0)
		for _, card := range draw.Items {
			scoreGain += ScoreForRarity(card.Rarity)
		}
		applyProgress(a, scoreGain, scoreGain, e.clock.Now())
		return nil
	})
	if err != nil {
		return nil, err
	}

	cardIDs := make([]string, len(draw.Items))
	for i, card := range draw.Items {
		cardIDs[i] = card.ID
	}
	if err := e.ledger.GrantCards(ctx, updated.ID, cardIDs); err != nil {
		// Tickets are spent at this point; a failed grant is a real loss
		// and must be surfaced loudly.
		e.logger.Error().Err(err).Str("account_id", updated.ID).Msg("card grant failed after charge")
		return nil, ErrConflict("card grant failed")
	}

	e.record(ctx, func() error {
		return e.ledger.AppendPurchaseLog(ctx, &models.PurchaseLog{
			AccountID: updated.ID,
			PackType:  spec.PackType,
			Count:     spec.Count,
			CostPaid:  cost,
			Currency:  ticketCurrency(spec.PackType),
		})
	})
	e.trackMission(ctx, updated.ID, "daily_draws", int64(spec.Count))

	return &ActionResult{
		Action:      ActionDraw,
		Items:       draw.Items,
		NewBalances: updated.Balances(),
	}, nil
}

// --- Daily token claim ---

func (e *Economy) executeClaimDailyToken(ctx context.Context, acct *models.Account) (*ActionResult, error) {
	decision, err := e.gate.CheckAndConsume(ctx, "daily_token:"+acct.ID, Policy{
		Kind:     CooldownSince,
		Cooldown: DailyTokenCooldown,
	})
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, ErrRateLimited(decision.RetryAfter)
	}

	now := e.clock.Now()
	updated, err := applyAccount(ctx, e.ledger, acct.ID, func(a *models.Account) error {
		a.Tickets++
		a.TokenLastClaimedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	next := now.Add(DailyTokenCooldown)
	return &ActionResult{
		Action:         ActionClaimDailyToken,
		Granted:        true,
		NewBalances:    updated.Balances(),
		NextEligibleAt: &next,
	}, nil
}

// --- Donation ---

func (e *Economy) executeDonate(ctx context.Context, acct *models.Account, spec ActionSpec) (*ActionResult, error) {
	if spec.Amount < 1 {
		return nil, ErrInvalid("donation amount must be positive")
	}
	if acct.ClanID == nil || *acct.ClanID != spec.ClanID {
		return nil, ErrInvalid("account is not a member of this clan")
	}
	if _, err := e.ledger.GetClan(ctx, spec.ClanID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrMissing("clan not found")
		}
		return nil, err
	}

	// Coins first: the member balance is the source of truth. The clan
	// credit below is retried under its own CAS.
	updated, err := applyAccount(ctx, e.ledger, acct.ID, func(a *models.Account) error {
		if a.Coins < spec.Amount {
			return ErrInvalid("insufficient coins")
		}
		a.Coins -= spec.Amount
		return nil
	})
	if err != nil {
		return nil, err
	}

	var expansion ExpansionResult
	err = retryConflict(func() error {
		clan, err := e.ledger.GetClan(ctx, spec.ClanID)
		if err != nil {
			return err
		}
		clan.TotalDonated += spec.Amount
		clan.XP += spec.Amount
		expansion = ExpansionTier(clan.MaxMembers, clan.TotalDonated)
		if expansion.Unlocked {
			clan.MaxMembers = expansion.NewMax
			clan.NextExpansionCost = expansion.NewCost
			clan.Level++
		} else if expansion.NewCost > 0 {
			clan.NextExpansionCost = expansion.NewCost
		}
		return e.ledger.UpdateClan(ctx, clan)
	})
	if err != nil {
		// Coins already left the account; this is the defined partial
		// failure, not a rollback point.
		e.logger.Error().Err(err).Str("clan_id", spec.ClanID).Msg("clan credit failed after coin deduction")
		return nil, ErrConflict("clan update contention")
	}

	e.record(ctx, func() error {
		return e.ledger.AppendDonationLog(ctx, &models.DonationLog{
			ClanID:    spec.ClanID,
			AccountID: acct.ID,
			Amount:    spec.Amount,
		})
	})
	e.trackMission(ctx, acct.ID, "clan_donations", spec.Amount)

	return &ActionResult{
		Action:      ActionDonate,
		NewBalances: updated.Balances(),
		Expansion:   &expansion,
	}, nil
}

// --- Battle result ---

func (e *Economy) executeBattleResult(ctx context.Context, acct *models.Account, spec ActionSpec) (*ActionResult, error) {
	if !spec.Outcome.Valid() {
		return nil, ErrInvalid("unknown battle outcome")
	}
	if spec.OpponentID == acct.ID {
		return nil, ErrInvalid("cannot battle yourself")
	}
	if _, err := e.ledger.GetAccount(ctx, spec.OpponentID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalid("opponent not found")
		}
		return nil, err
	}

	decision, err := e.gate.CheckAndConsume(ctx, "battle_limit:"+acct.ID, Policy{
		Kind:      CalendarDay,
		MaxPerDay: BattleLimitPerDay,
	})
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, ErrRateLimited(decision.RetryAfter)
	}

	deltas := defaultPrestige
	if cfg, err := e.ledger.GetBattleMode(ctx, spec.Mode); err == nil {
		deltas = PrestigeDelta(cfg)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	var selfDelta, oppDelta int64
	switch spec.Outcome {
	case models.BattleWin:
		selfDelta, oppDelta = deltas.Winner, deltas.Loser
	case models.BattleLoss:
		selfDelta, oppDelta = deltas.Loser, deltas.Winner
	case models.BattleDraw:
		selfDelta, oppDelta = deltas.Draw, deltas.Draw
	}

	rec, err := e.ledger.AdjustPrestige(ctx, acct.ID, selfDelta)
	if err != nil {
		return nil, err
	}
	if _, err := e.ledger.AdjustPrestige(ctx, spec.OpponentID, oppDelta); err != nil {
		return nil, err
	}

	updated, err := applyAccount(ctx, e.ledger, acct.ID, func(a *models.Account) error {
		a.PrestigePoints = rec.Points
		if spec.Outcome == models.BattleWin {
			applyProgress(a, 0, battleWinXP, e.clock.Now())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.record(ctx, func() error {
		return e.ledger.AppendBattleLog(ctx, &models.BattleLog{
			AccountID:   acct.ID,
			OpponentID:  spec.OpponentID,
			Mode:        spec.Mode,
			Outcome:     string(spec.Outcome),
			WinnerDelta: deltas.Winner,
			LoserDelta:  deltas.Loser,
		})
	})
	e.trackMission(ctx, acct.ID, "daily_battles", 1)

	points := rec.Points
	return &ActionResult{
		Action:         ActionBattleResult,
		NewBalances:    updated.Balances(),
		PrestigePoints: &points,
	}, nil
}

// --- Pack purchase ---

func (e *Economy) executePurchasePack(ctx context.Context, acct *models.Account, spec ActionSpec) (*ActionResult, error) {
	if e.bans.IsBanned(acct.Username) {
		return nil, ErrInvalid("account is not allowed to draw")
	}
	price, ok := packPrices[spec.PackType]
	if !ok {
		return nil, ErrInvalid("unknown pack type: " + spec.PackType)
	}

	// Discount windows are a non-consuming read; expiry self-heals there.
	discount, err := e.gate.Peek(ctx, "discount:"+spec.PackType, Policy{Kind: AbsoluteWindow})
	if err == nil && discount.Allowed {
		price /= discountFactor
	}

	yield := packPurchaseYield[spec.PackType]
	var draw *DrawResult
	updated, err := applyAccount(ctx, e.ledger, acct.ID, func(a *models.Account) error {
		d, err := e.resolver.Resolve(ctx, spec.PackType, yield)
		if err != nil {
			return err
		}
		draw = d
		if a.Coins < price {
			return ErrInvalid("insufficient coins")
		}
		a.Coins -= price
		scoreGain := int64(0)
		for _, card := range draw.Items {
			scoreGain += ScoreForRarity(card.Rarity)
		}
		applyProgress(a, scoreGain, scoreGain, e.clock.Now())
		return nil
	})
	if err != nil {
		return nil, err
	}

	cardIDs := make([]string, len(draw.Items))
	for i, card := range draw.Items {
		cardIDs[i] = card.ID
	}
	if err := e.ledger.GrantCards(ctx, updated.ID, cardIDs); err != nil {
		e.logger.Error().Err(err).Str("account_id", updated.ID).Msg("card grant failed after charge")
		return nil, ErrConflict("card grant failed")
	}

	e.record(ctx, func() error {
		return e.ledger.AppendPurchaseLog(ctx, &models.PurchaseLog{
			AccountID: updated.ID,
			PackType:  spec.PackType,
			Count:     yield,
			CostPaid:  price,
			Currency:  "coins",
		})
	})
	e.trackMission(ctx, updated.ID, "daily_draws", int64(yield))

	return &ActionResult{
		Action:      ActionPurchasePack,
		Items:       draw.Items,
		NewBalances: updated.Balances(),
	}, nil
}

// --- Shared helpers ---

// applyAccount runs a read-mutate-CAS loop against one account row. The
// mutate callback sees a fresh snapshot each attempt and may return an
// EconomyError to abort without retrying.
func applyAccount(ctx context.Context, ledger store.Ledger, accountID string, mutate func(*models.Account) error) (*models.Account, error) {
	for attempt := 0; attempt < applyRetries; attempt++ {
		acct, err := ledger.GetAccount(ctx, accountID)
		if err != nil {
			return nil, err
		}
		if err := mutate(acct); err != nil {
			return nil, err
		}
		err = ledger.UpdateAccount(ctx, acct)
		if err == nil {
			return acct, nil
		}
		if !errors.Is(err, store.ErrVersionConflict) {
			return nil, err
		}
	}
	return nil, ErrConflict("account update contention")
}

// retryConflict re-runs op on version conflicts, bounded like applyAccount.
func retryConflict(op func() error) error {
	var err error
	for attempt := 0; attempt < applyRetries; attempt++ {
		err = op()
		if err == nil || !errors.Is(err, store.ErrVersionConflict) {
			return err
		}
	}
	return err
}

// chargeTickets deducts the pack's ticket currency or rejects.
func chargeTickets(a *models.Account, packType string, cost int64) error {
	switch packType {
	case PackGod:
		if a.LegendaryTickets < cost {
			return ErrInvalid("insufficient legendary tickets")
		}
		a.LegendaryTickets -= cost
	case PackIcon:
		if a.IconTickets < cost {
			return ErrInvalid("insufficient icon tickets")
		}
		a.IconTickets -= cost
	default:
		if a.Tickets < cost {
			return ErrInvalid("insufficient tickets")
		}
		a.Tickets -= cost
	}
	return nil
}

func ticketCurrency(packType string) string {
	switch packType {
	case PackGod:
		return "legendary_tickets"
	case PackIcon:
		return "icon_tickets"
	default:
		return "tickets"
	}
}

// applyProgress adds score and folds experience into level-ups, granting
// the per-level score bonus.
func applyProgress(a *models.Account, scoreGain, xpGain int64, now time.Time) {
	a.Score += scoreGain
	if xpGain <= 0 {
		return
	}
	newExp, newLevel := ApplyExperience(a.Experience, a.Level, xpGain)
	if newLevel > a.Level {
		a.Score += int64(newLevel-a.Level) * ScoreForLevelUp
		a.LastLevelUpAt = &now
	}
	a.Experience = newExp
	a.Level = newLevel
}

// record performs a best-effort audit append: one retry, then a warning.
// Audit failures never undo an applied economic effect.
func (e *Economy) record(ctx context.Context, write func() error) {
	if err := write(); err == nil {
		return
	}
	if err := write(); err != nil {
		e.logger.Warn().Err(err).Msg("audit write dropped after retry")
	}
}

func (e *Economy) trackMission(ctx context.Context, accountID, missionKey string, inc int64) {
	if e.missions == nil {
		return
	}
	if _, err := e.missions.RecordEvent(ctx, accountID, missionKey, inc); err != nil {
		e.logger.Warn().Err(err).Str("mission", missionKey).Msg("mission update failed")
	}
}

func (e *Economy) storeReceipt(ctx context.Context, accountID string, spec ActionSpec, result *ActionResult) {
	payload, err := json.Marshal(result)
	if err != nil {
		e.logger.Warn().Err(err).Msg("receipt marshal failed")
		return
	}
	err = e.ledger.PutReceipt(ctx, &models.ActionReceipt{
		IdempotencyKey: spec.IdempotencyKey,
		AccountID:      accountID,
		Action:         string(spec.Type),
		ResultJSON:     string(payload),
	})
	if err != nil && !errors.Is(err, store.ErrVersionConflict) {
		e.logger.Warn().Err(err).Msg("receipt write failed")
	}
}
