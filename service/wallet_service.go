package service

import (
	"context"
	"fmt"
	"time"

	"refwallet/config"
	"refwallet/events"
	"refwallet/models"

	log "github.com/sirupsen/logrus"
)

type walletService struct {
	uowFactory   UnitOfWorkFactory
	storeTimeout time.Duration
	now          func() time.Time
}

// NewWalletService creates a new wallet service
func NewWalletService(uowFactory UnitOfWorkFactory, cfg *config.Config) WalletService {
	return &walletService{
		uowFactory:   uowFactory,
		storeTimeout: cfg.StoreTimeout,
		now:          time.Now,
	}
}

// Redeem spends matured credit. The amount must be covered by both the wallet
// balance and the credit that has matured, consumed oldest unlock first.
func (s *walletService) Redeem(ctx context.Context, req models.RedeemRequest) (*models.RedeemResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if err := validateAmount("amount", req.Amount); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storeFailure("failed to begin transaction", err)
	}
	defer uow.Rollback() // No-op if already committed

	user, err := uow.UserRepository().GetByEmailForUpdate(ctx, req.Email)
	if err != nil {
		return nil, storeFailure("failed to get user", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, req.Email)
	}

	if req.Amount.GreaterThan(user.WalletBalance) {
		return nil, fmt.Errorf("%w: have %s, need %s",
			ErrInsufficientBalance, user.WalletBalance.StringFixed(2), req.Amount.StringFixed(2))
	}

	credits, err := uow.ReferralCreditRepository().GetByUser(ctx, req.Email)
	if err != nil {
		return nil, storeFailure("failed to get referral credits", err)
	}

	now := s.now().UTC()
	eligible := EligibleCredit(credits, now)
	if req.Amount.GreaterThan(eligible) {
		return nil, fmt.Errorf("%w: eligible %s, requested %s",
			ErrInsufficientEligibleCredit, eligible.StringFixed(2), req.Amount.StringFixed(2))
	}

	plan := PlanConsumption(credits, req.Amount, now)
	if err := uow.ReferralCreditRepository().Consume(ctx, plan); err != nil {
		return nil, storeFailure("failed to consume referral credits", err)
	}

	if err := uow.UserRepository().DeductBalance(ctx, req.Email, req.Amount); err != nil {
		return nil, storeFailure("failed to deduct balance", err)
	}

	newBalance := user.WalletBalance.Sub(req.Amount)
	if err := RecordBalanceChange(ctx, uow, &models.WalletHistory{
		Email:           req.Email,
		BalanceBefore:   user.WalletBalance,
		BalanceAfter:    newBalance,
		ChangeAmount:    req.Amount.Neg(),
		TransactionType: models.TransactionTypeRedemption,
		Description:     fmt.Sprintf("Redemption for %s", req.Sport),
		Sport:           req.Sport,
		TransactionMetadata: map[string]any{
			"credits_consumed": len(plan),
		},
	}); err != nil {
		return nil, storeFailure("failed to record redemption history", err)
	}

	uow.EventBus().Publish(events.CreditRedeemedEvent{
		Email:      req.Email,
		Amount:     req.Amount,
		Sport:      req.Sport,
		NewBalance: newBalance,
	})

	if err := uow.Commit(); err != nil {
		return nil, storeFailure("failed to commit transaction", err)
	}

	log.WithFields(log.Fields{
		"email":       req.Email,
		"amount":      req.Amount.String(),
		"new_balance": newBalance.String(),
		"sport":       req.Sport,
	}).Info("Credit redeemed")

	return &models.RedeemResult{
		RedeemedAmount: req.Amount,
		NewBalance:     newBalance,
	}, nil
}

// GetWallet returns a snapshot of the balance and the credit ledger totals
func (s *walletService) GetWallet(ctx context.Context, email string) (*models.WalletSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storeFailure("failed to begin transaction", err)
	}
	// Read-only, never committed
	defer uow.Rollback()

	user, err := uow.UserRepository().GetByEmail(ctx, email)
	if err != nil {
		return nil, storeFailure("failed to get user", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, email)
	}

	credits, err := uow.ReferralCreditRepository().GetByUser(ctx, email)
	if err != nil {
		return nil, storeFailure("failed to get referral credits", err)
	}

	now := s.now().UTC()
	return &models.WalletSummary{
		Email:          user.Email,
		ReferralCode:   user.ReferralCode,
		Balance:        user.WalletBalance,
		EligibleCredit: EligibleCredit(credits, now),
		PendingCredit:  PendingCredit(credits, now),
		NextUnlockAt:   NextUnlock(credits, now),
	}, nil
}
