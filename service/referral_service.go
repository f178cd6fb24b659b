package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"refwallet/config"
	"refwallet/events"
	"refwallet/models"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type referralService struct {
	uowFactory      UnitOfWorkFactory
	generator       CodeGenerator
	creditRate      decimal.Decimal
	lockPeriod      time.Duration
	maxCodeAttempts int
	storeTimeout    time.Duration
	now             func() time.Time
}

// NewReferralService creates a new referral service
func NewReferralService(uowFactory UnitOfWorkFactory, generator CodeGenerator, cfg *config.Config) ReferralService {
	return &referralService{
		uowFactory:      uowFactory,
		generator:       generator,
		creditRate:      cfg.CreditRate,
		lockPeriod:      cfg.CreditLockPeriod,
		maxCodeAttempts: cfg.CodeMaxAttempts,
		storeTimeout:    cfg.StoreTimeout,
		now:             time.Now,
	}
}

// AssignCode issues a referral code of the form PREFIX-XXXXX, at most once per user
func (s *referralService) AssignCode(ctx context.Context, req models.AssignCodeRequest) (*models.AssignCodeResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	prefix := CodePrefix(req.DisplayName)
	if prefix == "" {
		return nil, fmt.Errorf("%w: display name has no words", ErrInvalidRequest)
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
	if user.CodeChanged {
		return nil, ErrCodeAlreadySet
	}

	code, err := s.issueCode(ctx, uow.UserRepository(), req.Email, prefix)
	if err != nil {
		return nil, err
	}

	uow.EventBus().Publish(events.CodeAssignedEvent{
		Email: req.Email,
		Code:  code,
	})

	if err := uow.Commit(); err != nil {
		return nil, storeFailure("failed to commit transaction", err)
	}

	log.WithFields(log.Fields{
		"email": req.Email,
		"code":  code,
	}).Info("Referral code assigned")

	return &models.AssignCodeResult{Code: code}, nil
}

// issueCode generates candidates until one is free and stored, within the attempt budget
func (s *referralService) issueCode(ctx context.Context, users UserRepository, email, prefix string) (string, error) {
	for attempt := 1; attempt <= s.maxCodeAttempts; attempt++ {
		suffix, err := s.generator.Generate()
		if err != nil {
			return "", fmt.Errorf("failed to generate referral code: %w", err)
		}
		candidate := FormatCode(prefix, suffix)

		taken, err := IsTaken(ctx, users, candidate)
		if err != nil {
			return "", storeFailure("failed to check referral code", err)
		}
		if taken {
			log.WithFields(log.Fields{
				"candidate": candidate,
				"attempt":   attempt,
			}).Debug("Referral code collision, regenerating")
			continue
		}

		err = users.SetReferralCode(ctx, email, candidate)
		switch {
		case err == nil:
			return candidate, nil
		case errors.Is(err, ErrCodeTaken):
			// Claimed by a concurrent assignment after the check
			continue
		case errors.Is(err, ErrCodeAlreadySet):
			return "", err
		default:
			return "", storeFailure("failed to set referral code", err)
		}
	}

	log.WithFields(log.Fields{
		"email":    email,
		"attempts": s.maxCodeAttempts,
	}).Warn("Referral code space exhausted")
	return "", fmt.Errorf("%w after %d attempts", ErrCodeSpaceExhausted, s.maxCodeAttempts)
}

// ApplyReferral grants fee × rate to both sides: the referrer's balance grows now,
// the referred user receives a ledger entry and a discount history row only
func (s *referralService) ApplyReferral(ctx context.Context, req models.ApplyReferralRequest) (*models.ApplyReferralResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if err := validateAmount("competition_fees", req.FeeAmount); err != nil {
		return nil, err
	}
	creditAmount := req.FeeAmount.Mul(s.creditRate).Round(amountScale)
	if !creditAmount.IsPositive() {
		return nil, fmt.Errorf("%w: competition_fees %s is too small to earn credit", ErrInvalidRequest, req.FeeAmount)
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storeFailure("failed to begin transaction", err)
	}
	defer uow.Rollback() // No-op if already committed

	users := uow.UserRepository()

	referred, err := users.GetByEmail(ctx, req.ReferredEmail)
	if err != nil {
		return nil, storeFailure("failed to get referred user", err)
	}
	if referred == nil {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, req.ReferredEmail)
	}

	referrer, err := users.GetByReferralCode(ctx, req.Code)
	if err != nil {
		return nil, storeFailure("failed to get referrer", err)
	}
	if referrer == nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCode, req.Code)
	}
	if referrer.Email == referred.Email {
		return nil, ErrSelfReferral
	}

	locked, err := lockUsers(ctx, users, referred.Email, referrer.Email)
	if err != nil {
		return nil, err
	}
	referred, referrer = locked[referred.Email], locked[referrer.Email]

	now := s.now().UTC()
	unlockAt := UnlockTime(now, s.lockPeriod)

	// Referred side: ledger entry plus a discount record, balance untouched
	if err := uow.ReferralCreditRepository().Create(ctx, &models.ReferralCredit{
		Email:             referred.Email,
		Amount:            creditAmount,
		Redeemed:          decimal.Zero,
		UnlockAt:          unlockAt,
		Source:            models.CreditSourceReferred,
		CounterpartyEmail: referrer.Email,
		Sport:             req.Sport,
	}); err != nil {
		return nil, storeFailure("failed to record referred credit", err)
	}

	if err := RecordBalanceChange(ctx, uow, &models.WalletHistory{
		Email:           referred.Email,
		BalanceBefore:   referred.WalletBalance,
		BalanceAfter:    referred.WalletBalance,
		ChangeAmount:    creditAmount,
		TransactionType: models.TransactionTypeReferralDiscount,
		Description: fmt.Sprintf("Amount of %s is deducted from competition fees of %s from referral code %s",
			creditAmount.StringFixed(2), req.Sport, req.Code),
		Sport: req.Sport,
		TransactionMetadata: map[string]any{
			"referral_code":  req.Code,
			"referrer_email": referrer.Email,
			"fee_amount":     req.FeeAmount.String(),
		},
	}); err != nil {
		return nil, storeFailure("failed to record referred history", err)
	}

	// Referrer side: ledger entry, immediate balance credit, history, referral record
	if err := uow.ReferralCreditRepository().Create(ctx, &models.ReferralCredit{
		Email:             referrer.Email,
		Amount:            creditAmount,
		Redeemed:          decimal.Zero,
		UnlockAt:          unlockAt,
		Source:            models.CreditSourceReferrer,
		CounterpartyEmail: referred.Email,
		Sport:             req.Sport,
	}); err != nil {
		return nil, storeFailure("failed to record referrer credit", err)
	}

	if err := users.AddBalance(ctx, referrer.Email, creditAmount); err != nil {
		return nil, storeFailure("failed to credit referrer", err)
	}

	if err := RecordBalanceChange(ctx, uow, &models.WalletHistory{
		Email:           referrer.Email,
		BalanceBefore:   referrer.WalletBalance,
		BalanceAfter:    referrer.WalletBalance.Add(creditAmount),
		ChangeAmount:    creditAmount,
		TransactionType: models.TransactionTypeReferralCredit,
		Description:     fmt.Sprintf("Credit for referring %s", referred.Email),
		Sport:           req.Sport,
		TransactionMetadata: map[string]any{
			"referral_code":  req.Code,
			"referred_email": referred.Email,
			"fee_amount":     req.FeeAmount.String(),
		},
	}); err != nil {
		return nil, storeFailure("failed to record referrer history", err)
	}

	if err := uow.ReferralRepository().Create(ctx, &models.Referral{
		ReferrerEmail: referrer.Email,
		ReferredEmail: referred.Email,
		Code:          req.Code,
		Sport:         req.Sport,
		FeeAmount:     req.FeeAmount,
		CreditAmount:  creditAmount,
	}); err != nil {
		return nil, storeFailure("failed to record referral", err)
	}

	uow.EventBus().Publish(events.ReferralAppliedEvent{
		ReferrerEmail: referrer.Email,
		ReferredEmail: referred.Email,
		Code:          req.Code,
		Sport:         req.Sport,
		FeeAmount:     req.FeeAmount,
		CreditAmount:  creditAmount,
		UnlockAt:      unlockAt,
	})

	if err := uow.Commit(); err != nil {
		return nil, storeFailure("failed to commit transaction", err)
	}

	log.WithFields(log.Fields{
		"referrer": referrer.Email,
		"referred": referred.Email,
		"credit":   creditAmount.String(),
		"sport":    req.Sport,
	}).Info("Referral applied")

	return &models.ApplyReferralResult{
		CreditAmount:  creditAmount,
		UnlockAt:      unlockAt,
		ReferrerEmail: referrer.Email,
	}, nil
}

// lockUsers takes row locks in email order so two referrals between the same
// pair of users cannot deadlock
func lockUsers(ctx context.Context, users UserRepository, emails ...string) (map[string]*models.User, error) {
	ordered := append([]string(nil), emails...)
	sort.Strings(ordered)

	locked := make(map[string]*models.User, len(ordered))
	for _, email := range ordered {
		if _, ok := locked[email]; ok {
			continue
		}
		user, err := users.GetByEmailForUpdate(ctx, email)
		if err != nil {
			return nil, storeFailure("failed to lock user", err)
		}
		if user == nil {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, email)
		}
		locked[email] = user
	}
	return locked, nil
}
