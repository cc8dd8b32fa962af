package services

import (
	"context"
	"errors"

	"gacha-card-system/models"
	"gacha-card-system/store"

	"github.com/rs/zerolog"
)

// MissionTracker increments progress counters against goal thresholds and
// handles one-shot reward claims.
type MissionTracker struct {
	ledger store.Ledger
	clock  store.Clock
	logger zerolog.Logger
}

func NewMissionTracker(ledger store.Ledger, clock store.Clock, logger zerolog.Logger) *MissionTracker {
	if clock == nil {
		clock = store.RealClock()
	}
	return &MissionTracker{ledger: ledger, clock: clock, logger: logger}
}

func (t *MissionTracker) periodFor(def models.MissionDefinition) string {
	if def.Daily {
		return dayKey(t.clock.Now())
	}
	return "all"
}

// RecordEvent bumps a mission counter. The underlying upsert is atomic, so
// concurrent first-events in the same period cannot drop increments.
// Progress may exceed the goal; Completed flips once and stays set.
func (t *MissionTracker) RecordEvent(ctx context.Context, scopeID, missionKey string, inc int64) (*models.MissionProgress, error) {
	def, ok := models.MissionByKey(missionKey)
	if !ok {
		return nil, ErrInvalid("unknown mission: " + missionKey)
	}
	return t.ledger.UpsertMissionProgress(ctx, scopeID, missionKey, t.periodFor(def), inc, def.Goal)
}

// ClaimResult reports a claim attempt. Granted is false both for a mission
// that is not yet complete and for one already claimed this period.
type ClaimResult struct {
	Granted     bool                  `json:"granted"`
	Reward      *models.MissionReward `json:"reward,omitempty"`
	NewBalances *models.Balances      `json:"new_balances,omitempty"`
}

// Claim pays out a completed mission exactly once per (account, mission,
// period). The one-shot guarantee is the unique claim insert, not a
// read-then-check.
func (t *MissionTracker) Claim(ctx context.Context, accountID, missionKey string) (*ClaimResult, error) {
	def, ok := models.MissionByKey(missionKey)
	if !ok {
		return nil, ErrInvalid("unknown mission: " + missionKey)
	}
	period := t.periodFor(def)

	rows, err := t.ledger.ListMissionProgress(ctx, accountID, period)
	if err != nil {
		return nil, err
	}
	var progress *models.MissionProgress
	for i := range rows {
		if rows[i].MissionKey == missionKey {
			progress = &rows[i]
			break
		}
	}
	if progress == nil || !progress.Completed {
		return &ClaimResult{Granted: false}, nil
	}

	if err := t.ledger.InsertMissionClaim(ctx, accountID, missionKey, period); err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			// Second claim this period: no grant, balances untouched.
			return &ClaimResult{Granted: false}, nil
		}
		return nil, err
	}

	acct, err := applyAccount(ctx, t.ledger, accountID, func(a *models.Account) error {
		a.Tickets += def.Reward.Tickets
		a.Coins += def.Reward.Coins
		return nil
	})
	if err != nil {
		// Give the claim back so a retry can still pay out.
		if delErr := t.ledger.DeleteMissionClaim(ctx, accountID, missionKey, period); delErr != nil {
			t.logger.Error().Err(delErr).
				Str("account_id", accountID).
				Str("mission", missionKey).
				Msg("claim release failed after grant failure")
		}
		return nil, err
	}

	t.logger.Info().
		Str("account_id", accountID).
		Str("mission", missionKey).
		Str("period", period).
		Msg("mission reward claimed")

	balances := acct.Balances()
	reward := def.Reward
	return &ClaimResult{Granted: true, Reward: &reward, NewBalances: &balances}, nil
}

// MissionStatus is the per-mission view returned to clients.
type MissionStatus struct {
	models.MissionDefinition
	Progress  int64 `json:"progress"`
	Completed bool  `json:"completed"`
	Claimed   bool  `json:"claimed"`
}

// StatusFor joins the static definitions with the account's current-period
// progress and claim state. Reads filter by today's period key, so a stale
// row can never surface yesterday's completed state.
func (t *MissionTracker) StatusFor(ctx context.Context, accountID string) ([]MissionStatus, error) {
	out := make([]MissionStatus, 0, len(models.MissionDefinitions))
	for _, def := range models.MissionDefinitions {
		period := t.periodFor(def)

		rows, err := t.ledger.ListMissionProgress(ctx, accountID, period)
		if err != nil {
			return nil, err
		}
		claims, err := t.ledger.ListMissionClaims(ctx, accountID, period)
		if err != nil {
			return nil, err
		}

		status := MissionStatus{MissionDefinition: def}
		for _, row := range rows {
			if row.MissionKey == def.Key {
				status.Progress = row.Progress
				status.Completed = row.Completed
			}
		}
		for _, claim := range claims {
			if claim.MissionKey == def.Key {
				status.Claimed = true
			}
		}
		out = append(out, status)
	}
	return out, nil
}
