package service

import (
	"context"
	"fmt"
	"time"

	"refwallet/config"
	"refwallet/models"

	log "github.com/sirupsen/logrus"
)

const (
	defaultQueryLimit = 50
	maxQueryLimit     = 500
)

type queryService struct {
	uowFactory   UnitOfWorkFactory
	codeCache    CodeCache
	storeTimeout time.Duration
}

// NewQueryService creates a new query service. codeCache may be nil.
func NewQueryService(uowFactory UnitOfWorkFactory, codeCache CodeCache, cfg *config.Config) QueryService {
	return &queryService{
		uowFactory:   uowFactory,
		codeCache:    codeCache,
		storeTimeout: cfg.StoreTimeout,
	}
}

// CheckCode reports whether a referral code belongs to some user
func (s *queryService) CheckCode(ctx context.Context, req models.CheckCodeRequest) (*models.CheckCodeResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	// The cache lookup shares the store deadline
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	if s.codeCache != nil {
		hit, err := s.codeCache.Contains(ctx, req.Code)
		if err != nil {
			log.WithError(err).WithField("code", req.Code).Warn("Code cache lookup failed, falling back to store")
		} else if hit {
			return &models.CheckCodeResult{Valid: true}, nil
		}
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storeFailure("failed to begin transaction", err)
	}
	defer uow.Rollback()

	holder, err := uow.UserRepository().GetByReferralCode(ctx, req.Code)
	if err != nil {
		return nil, storeFailure("failed to look up referral code", err)
	}
	if holder == nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCode, req.Code)
	}

	if s.codeCache != nil {
		if err := s.codeCache.Add(ctx, req.Code); err != nil {
			log.WithError(err).WithField("code", req.Code).Warn("Failed to cache referral code")
		}
	}

	return &models.CheckCodeResult{Valid: true}, nil
}

// GetWalletHistory returns the most recent wallet history entries, newest first
func (s *queryService) GetWalletHistory(ctx context.Context, email string, limit int) ([]*models.WalletHistory, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storeFailure("failed to begin transaction", err)
	}
	defer uow.Rollback()

	if err := requireUser(ctx, uow.UserRepository(), email); err != nil {
		return nil, err
	}

	history, err := uow.WalletHistoryRepository().GetByUser(ctx, email, clampLimit(limit))
	if err != nil {
		return nil, storeFailure("failed to get wallet history", err)
	}
	return history, nil
}

// GetReferralsGiven returns the most recent referrals made with the user's code
func (s *queryService) GetReferralsGiven(ctx context.Context, email string, limit int) ([]*models.Referral, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storeFailure("failed to begin transaction", err)
	}
	defer uow.Rollback()

	if err := requireUser(ctx, uow.UserRepository(), email); err != nil {
		return nil, err
	}

	referrals, err := uow.ReferralRepository().GetByReferrer(ctx, email, clampLimit(limit))
	if err != nil {
		return nil, storeFailure("failed to get referrals", err)
	}
	return referrals, nil
}

func requireUser(ctx context.Context, users UserRepository, email string) error {
	user, err := users.GetByEmail(ctx, email)
	if err != nil {
		return storeFailure("failed to get user", err)
	}
	if user == nil {
		return fmt.Errorf("%w: %s", ErrUserNotFound, email)
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultQueryLimit
	}
	if limit > maxQueryLimit {
		return maxQueryLimit
	}
	return limit
}
