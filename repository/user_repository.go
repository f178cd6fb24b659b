package repository

import (
	"context"
	"errors"
	"fmt"

	"refwallet/database"
	"refwallet/models"
	"refwallet/service"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const userColumns = `email, display_name, referral_code, code_changed, wallet_balance::text, created_at, updated_at`

// UserRepository implements the UserRepository interface
type UserRepository struct {
	q queryable
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{q: db.Pool}
}

// newUserRepositoryWithTx creates a new user repository with a transaction
func newUserRepositoryWithTx(tx queryable) *UserRepository {
	return &UserRepository{q: tx}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	var balance string
	err := row.Scan(
		&user.Email,
		&user.DisplayName,
		&user.ReferralCode,
		&user.CodeChanged,
		&balance,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.WalletBalance, err = parseDecimal("wallet_balance", balance)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(r.q.QueryRow(ctx, query, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", email, err)
	}
	return user, nil
}

// GetByEmailForUpdate retrieves a user and holds a row lock until the transaction ends
func (r *UserRepository) GetByEmailForUpdate(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 FOR UPDATE`

	user, err := scanUser(r.q.QueryRow(ctx, query, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock user %s: %w", email, err)
	}
	return user, nil
}

// GetByReferralCode retrieves the user holding a referral code
func (r *UserRepository) GetByReferralCode(ctx context.Context, code string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE referral_code = $1`

	user, err := scanUser(r.q.QueryRow(ctx, query, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by referral code %s: %w", code, err)
	}
	return user, nil
}

// Create creates a new user with no referral code and an empty wallet
func (r *UserRepository) Create(ctx context.Context, email string, displayName string) (*models.User, error) {
	query := `
		INSERT INTO users (email, display_name)
		VALUES ($1, $2)
		RETURNING ` + userColumns

	user, err := scanUser(r.q.QueryRow(ctx, query, email, displayName))
	if err != nil {
		return nil, fmt.Errorf("failed to create user %s: %w", email, err)
	}
	return user, nil
}

// SetReferralCode stores the code and freezes it. The update runs in a savepoint
// so a unique violation leaves the enclosing transaction usable for a retry.
func (r *UserRepository) SetReferralCode(ctx context.Context, email string, code string) error {
	sp, err := r.q.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to open savepoint: %w", err)
	}
	defer sp.Rollback(ctx)

	query := `
		UPDATE users
		SET referral_code = $1, code_changed = TRUE, updated_at = NOW()
		WHERE email = $2 AND code_changed = FALSE
	`

	result, err := sp.Exec(ctx, query, code, email)
	if isUniqueViolation(err, "users_referral_code_key") {
		return fmt.Errorf("%w: %s", service.ErrCodeTaken, code)
	}
	if err != nil {
		return fmt.Errorf("failed to set referral code for user %s: %w", email, err)
	}

	if result.RowsAffected() == 0 {
		var exists bool
		if err := sp.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check user %s: %w", email, err)
		}
		if !exists {
			return fmt.Errorf("%w: %s", service.ErrUserNotFound, email)
		}
		return service.ErrCodeAlreadySet
	}

	if err := sp.Commit(ctx); err != nil {
		return fmt.Errorf("failed to release savepoint: %w", err)
	}
	return nil
}

// AddBalance adds to a user's wallet balance atomically
func (r *UserRepository) AddBalance(ctx context.Context, email string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("amount must be positive")
	}

	query := `
		UPDATE users
		SET wallet_balance = wallet_balance + $1::numeric, updated_at = NOW()
		WHERE email = $2
	`

	result, err := r.q.Exec(ctx, query, amount.String(), email)
	if err != nil {
		return fmt.Errorf("failed to add balance for user %s: %w", email, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", service.ErrUserNotFound, email)
	}

	return nil
}

// DeductBalance deducts from a user's wallet balance atomically, failing if insufficient funds
func (r *UserRepository) DeductBalance(ctx context.Context, email string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("amount must be positive")
	}

	// Update only if the balance covers the amount
	query := `
		UPDATE users
		SET wallet_balance = wallet_balance - $1::numeric, updated_at = NOW()
		WHERE email = $2 AND wallet_balance >= $1::numeric
	`

	result, err := r.q.Exec(ctx, query, amount.String(), email)
	if err != nil {
		return fmt.Errorf("failed to deduct balance for user %s: %w", email, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: user %s cannot cover %s", service.ErrInsufficientBalance, email, amount)
	}

	return nil
}
