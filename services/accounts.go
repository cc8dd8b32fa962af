package services

import (
	"context"
	"errors"

	"gacha-card-system/models"
	"gacha-card-system/store"

	"github.com/rs/zerolog"
)

// Starting balances for new accounts.
const (
	signupTickets = 5
	signupCoins   = 200
)

// AccountService covers signup and profile reads.
type AccountService struct {
	ledger store.Ledger
	clock  store.Clock
	logger zerolog.Logger
}

func NewAccountService(ledger store.Ledger, clock store.Clock, logger zerolog.Logger) *AccountService {
	if clock == nil {
		clock = store.RealClock()
	}
	return &AccountService{ledger: ledger, clock: clock, logger: logger}
}

// EnsureAccount creates the account on first sight of a username
// (idempotent); later calls stamp LastLoginAt.
func (s *AccountService) EnsureAccount(ctx context.Context, username string) (*models.Account, error) {
	if username == "" {
		return nil, ErrInvalid("username is required")
	}

	acct, err := s.ledger.GetAccountByUsername(ctx, username)
	if err == nil {
		now := s.clock.Now()
		updated, err := applyAccount(ctx, s.ledger, acct.ID, func(a *models.Account) error {
			a.LastLoginAt = &now
			return nil
		})
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	now := s.clock.Now()
	acct = &models.Account{
		Username:    username,
		Tickets:     signupTickets,
		Coins:       signupCoins,
		Level:       1,
		LastLoginAt: &now,
	}
	if err := s.ledger.CreateAccount(ctx, acct); err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			// Lost a signup race; the row exists now.
			return s.ledger.GetAccountByUsername(ctx, username)
		}
		return nil, err
	}
	s.logger.Info().Str("account_id", acct.ID).Str("username", username).Msg("account created")
	return acct, nil
}

func (s *AccountService) Get(ctx context.Context, accountID string) (*models.Account, error) {
	acct, err := s.ledger.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrMissing("account not found")
		}
		return nil, err
	}
	return acct, nil
}

// Cards returns the owned collection with catalog rows preloaded.
func (s *AccountService) Cards(ctx context.Context, accountID string) ([]models.UserCard, error) {
	return s.ledger.GetUserCards(ctx, accountID)
}

// LevelUpCard merges two copies of a card at the given level into one copy
// at the next level. The quantity guard lives in the store, so concurrent
// level-ups cannot overdraw copies.
func (s *AccountService) LevelUpCard(ctx context.Context, accountID, cardID string, level int) (*models.UserCard, error) {
	if level < models.CardLevelMin || level >= models.CardLevelMax {
		return nil, ErrInvalid("card level out of range")
	}

	uc, err := s.ledger.GetUserCard(ctx, accountID, cardID, level)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrMissing("card not owned at this level")
		}
		return nil, err
	}
	if uc.Quantity < models.CardLevelUpCopies {
		return nil, ErrInvalid("need two copies to level up")
	}

	if err := s.ledger.LevelUpCard(ctx, accountID, cardID, level); err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			return nil, ErrConflict("card level-up contention")
		}
		return nil, err
	}

	// Leveling a card is a progression event worth score.
	if _, err := applyAccount(ctx, s.ledger, accountID, func(a *models.Account) error {
		a.Score += ScoreForLevelUp
		return nil
	}); err != nil {
		return nil, err
	}

	return s.ledger.GetUserCard(ctx, accountID, cardID, level+1)
}
