package services

import (
	"context"
	"errors"

	"gacha-card-system/models"
	"gacha-card-system/store"

	"github.com/gosimple/slug"
	"github.com/rs/zerolog"
)

const clanStartingMaxMembers = 30

// ClanService handles clan membership and lifecycle. Donations go through
// the Economy engine; this service owns create/join/leave.
type ClanService struct {
	ledger store.Ledger
	logger zerolog.Logger
}

func NewClanService(ledger store.Ledger, logger zerolog.Logger) *ClanService {
	return &ClanService{ledger: ledger, logger: logger}
}

func (s *ClanService) Create(ctx context.Context, founderID, name string) (*models.Clan, error) {
	if name == "" {
		return nil, ErrInvalid("clan name is required")
	}
	founder, err := s.ledger.GetAccount(ctx, founderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalid("account not found")
		}
		return nil, err
	}
	if founder.ClanID != nil {
		return nil, ErrInvalid("account already belongs to a clan")
	}

	clan := &models.Clan{
		Name:              name,
		Slug:              slug.Make(name),
		Level:             1,
		MaxMembers:        clanStartingMaxMembers,
		MemberCount:       1,
		NextExpansionCost: 50,
		FounderID:         founderID,
	}
	if err := s.ledger.CreateClan(ctx, clan); err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			return nil, ErrInvalid("a clan with this name already exists")
		}
		return nil, err
	}

	if _, err := applyAccount(ctx, s.ledger, founderID, func(a *models.Account) error {
		a.ClanID = &clan.ID
		return nil
	}); err != nil {
		return nil, err
	}

	s.logger.Info().Str("clan_id", clan.ID).Str("founder_id", founderID).Msg("clan created")
	return clan, nil
}

// Join adds a member. The capacity check and the member count bump share
// one CAS write on the clan row, so a full clan cannot be oversubscribed
// by concurrent joins.
func (s *ClanService) Join(ctx context.Context, accountID, clanID string) (*models.Clan, error) {
	acct, err := s.ledger.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalid("account not found")
		}
		return nil, err
	}
	if acct.ClanID != nil {
		return nil, ErrInvalid("account already belongs to a clan")
	}

	var joined *models.Clan
	err = retryConflict(func() error {
		clan, err := s.ledger.GetClan(ctx, clanID)
		if err != nil {
			return err
		}
		if clan.MemberCount >= clan.MaxMembers {
			return ErrInvalid("clan is full")
		}
		clan.MemberCount++
		if err := s.ledger.UpdateClan(ctx, clan); err != nil {
			return err
		}
		joined = clan
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrMissing("clan not found")
		}
		if errors.Is(err, store.ErrVersionConflict) {
			return nil, ErrConflict("clan membership contention")
		}
		return nil, err
	}

	if _, err := applyAccount(ctx, s.ledger, accountID, func(a *models.Account) error {
		a.ClanID = &clanID
		return nil
	}); err != nil {
		return nil, err
	}
	return joined, nil
}

func (s *ClanService) Leave(ctx context.Context, accountID string) error {
	acct, err := s.ledger.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalid("account not found")
		}
		return err
	}
	if acct.ClanID == nil {
		return ErrInvalid("account is not in a clan")
	}
	clanID := *acct.ClanID

	err = retryConflict(func() error {
		clan, err := s.ledger.GetClan(ctx, clanID)
		if err != nil {
			return err
		}
		if clan.MemberCount > 0 {
			clan.MemberCount--
		}
		return s.ledger.UpdateClan(ctx, clan)
	})
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}

	_, err = applyAccount(ctx, s.ledger, accountID, func(a *models.Account) error {
		a.ClanID = nil
		return nil
	})
	return err
}

// Get returns the clan plus its expansion outlook.
func (s *ClanService) Get(ctx context.Context, clanID string) (*models.Clan, *ExpansionResult, error) {
	clan, err := s.ledger.GetClan(ctx, clanID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrMissing("clan not found")
		}
		return nil, nil, err
	}
	expansion := ExpansionTier(clan.MaxMembers, clan.TotalDonated)
	return clan, &expansion, nil
}
