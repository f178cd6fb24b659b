package service

import (
	"context"

	"refwallet/events"
	"refwallet/models"

	"github.com/shopspring/decimal"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// GetByEmail retrieves a user by email, returning nil if none exists
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// GetByEmailForUpdate retrieves a user and locks the row until the transaction ends
	GetByEmailForUpdate(ctx context.Context, email string) (*models.User, error)

	// GetByReferralCode retrieves the user holding a referral code, returning nil if none does
	GetByReferralCode(ctx context.Context, code string) (*models.User, error)

	// Create creates a new user with no referral code and a zero balance
	Create(ctx context.Context, email string, displayName string) (*models.User, error)

	// SetReferralCode sets the code and freezes it in one conditional update.
	// Returns ErrCodeAlreadySet if the code was already changed and ErrCodeTaken
	// if another user holds the code.
	SetReferralCode(ctx context.Context, email string, code string) error

	// AddBalance adds to a user's wallet balance atomically
	AddBalance(ctx context.Context, email string, amount decimal.Decimal) error

	// DeductBalance deducts from a user's wallet balance atomically, failing if insufficient funds
	DeductBalance(ctx context.Context, email string, amount decimal.Decimal) error
}

// ReferralCreditRepository defines the interface for the per-user credit ledger
type ReferralCreditRepository interface {
	// Create appends a credit entry
	Create(ctx context.Context, credit *models.ReferralCredit) error

	// GetByUser returns all credit entries for a user ordered by unlock time
	GetByUser(ctx context.Context, email string) ([]*models.ReferralCredit, error)

	// Consume marks portions of credit entries as redeemed
	Consume(ctx context.Context, consumptions []models.CreditConsumption) error
}

// WalletHistoryRepository defines the interface for the wallet audit trail
type WalletHistoryRepository interface {
	// Record creates a new wallet history entry
	Record(ctx context.Context, history *models.WalletHistory) error

	// GetByUser returns the most recent wallet history entries for a user
	GetByUser(ctx context.Context, email string, limit int) ([]*models.WalletHistory, error)
}

// ReferralRepository defines the interface for referrals given
type ReferralRepository interface {
	// Create records a successful referral
	Create(ctx context.Context, referral *models.Referral) error

	// GetByReferrer returns the most recent referrals made by a user
	GetByReferrer(ctx context.Context, referrerEmail string, limit int) ([]*models.Referral, error)
}

// UserService registers wallet holders
type UserService interface {
	// GetOrCreateUser returns the existing user or registers a new one with an empty wallet.
	// The boolean reports whether the user was created.
	GetOrCreateUser(ctx context.Context, req models.RegisterUserRequest) (*models.User, bool, error)
}

// ReferralService issues referral codes and applies them to fee payments
type ReferralService interface {
	// AssignCode issues the user's one and only referral code
	AssignCode(ctx context.Context, req models.AssignCodeRequest) (*models.AssignCodeResult, error)

	// ApplyReferral credits the referrer and the referred user for a fee payment
	ApplyReferral(ctx context.Context, req models.ApplyReferralRequest) (*models.ApplyReferralResult, error)
}

// WalletService computes credit maturation and redeems matured credit
type WalletService interface {
	// Redeem spends matured credit from the wallet balance
	Redeem(ctx context.Context, req models.RedeemRequest) (*models.RedeemResult, error)

	// GetWallet returns the balance and the matured and pending credit totals
	GetWallet(ctx context.Context, email string) (*models.WalletSummary, error)
}

// QueryService exposes read-only checks
type QueryService interface {
	// CheckCode reports a code as valid or fails with ErrInvalidCode
	CheckCode(ctx context.Context, req models.CheckCodeRequest) (*models.CheckCodeResult, error)

	// GetWalletHistory returns the most recent wallet history entries
	GetWalletHistory(ctx context.Context, email string, limit int) ([]*models.WalletHistory, error)

	// GetReferralsGiven returns the most recent referrals made by a user
	GetReferralsGiven(ctx context.Context, email string, limit int) ([]*models.Referral, error)
}

// CodeCache remembers referral codes known to exist
type CodeCache interface {
	// Contains reports whether the code is cached as valid
	Contains(ctx context.Context, code string) (bool, error)

	// Add caches the code as valid
	Add(ctx context.Context, code string) error
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Repository getters
	UserRepository() UserRepository
	ReferralCreditRepository() ReferralCreditRepository
	WalletHistoryRepository() WalletHistoryRepository
	ReferralRepository() ReferralRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory defines the interface for creating UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}
