package repository

import (
	"context"
	"fmt"

	"refwallet/database"
	"refwallet/models"
)

// ReferralRepository implements the ReferralRepository interface
type ReferralRepository struct {
	q queryable
}

// NewReferralRepository creates a new referral repository
func NewReferralRepository(db *database.DB) *ReferralRepository {
	return &ReferralRepository{q: db.Pool}
}

func newReferralRepositoryWithTx(tx queryable) *ReferralRepository {
	return &ReferralRepository{q: tx}
}

// Create records a successful referral
func (r *ReferralRepository) Create(ctx context.Context, referral *models.Referral) error {
	query := `
		INSERT INTO referrals (referrer_email, referred_email, code, sport, fee_amount, credit_amount)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		referral.ReferrerEmail,
		referral.ReferredEmail,
		referral.Code,
		referral.Sport,
		referral.FeeAmount.String(),
		referral.CreditAmount.String(),
	).Scan(&referral.ID, &referral.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record referral by %s: %w", referral.ReferrerEmail, err)
	}

	return nil
}

// GetByReferrer returns the most recent referrals made by a user
func (r *ReferralRepository) GetByReferrer(ctx context.Context, referrerEmail string, limit int) ([]*models.Referral, error) {
	query := `
		SELECT id, referrer_email, referred_email, code, sport, fee_amount::text, credit_amount::text, created_at
		FROM referrals
		WHERE referrer_email = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, referrerEmail, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get referrals for user %s: %w", referrerEmail, err)
	}
	defer rows.Close()

	var referrals []*models.Referral
	for rows.Next() {
		var referral models.Referral
		var fee, credit string
		err := rows.Scan(
			&referral.ID,
			&referral.ReferrerEmail,
			&referral.ReferredEmail,
			&referral.Code,
			&referral.Sport,
			&fee,
			&credit,
			&referral.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan referral: %w", err)
		}

		if referral.FeeAmount, err = parseDecimal("fee_amount", fee); err != nil {
			return nil, err
		}
		if referral.CreditAmount, err = parseDecimal("credit_amount", credit); err != nil {
			return nil, err
		}

		referrals = append(referrals, &referral)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate referrals: %w", err)
	}

	return referrals, nil
}
