package repository

import (
	"context"
	"fmt"

	"refwallet/database"
	"refwallet/models"

	"github.com/jackc/pgx/v5"
)

// ReferralCreditRepository implements the ReferralCreditRepository interface
type ReferralCreditRepository struct {
	q queryable
}

// NewReferralCreditRepository creates a new referral credit repository
func NewReferralCreditRepository(db *database.DB) *ReferralCreditRepository {
	return &ReferralCreditRepository{q: db.Pool}
}

func newReferralCreditRepositoryWithTx(tx queryable) *ReferralCreditRepository {
	return &ReferralCreditRepository{q: tx}
}

// Create appends a credit entry to the user's ledger
func (r *ReferralCreditRepository) Create(ctx context.Context, credit *models.ReferralCredit) error {
	query := `
		INSERT INTO referral_credits
		(email, amount, redeemed, unlock_at, source, counterparty_email, sport)
		VALUES ($1, $2::numeric, $3::numeric, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		credit.Email,
		credit.Amount.String(),
		credit.Redeemed.String(),
		credit.UnlockAt,
		credit.Source,
		credit.CounterpartyEmail,
		credit.Sport,
	).Scan(&credit.ID, &credit.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create referral credit for user %s: %w", credit.Email, err)
	}

	return nil
}

// GetByUser returns every ledger entry for a user, earliest unlock first
func (r *ReferralCreditRepository) GetByUser(ctx context.Context, email string) ([]*models.ReferralCredit, error) {
	query := `
		SELECT id, email, amount::text, redeemed::text, unlock_at, source, counterparty_email, sport, created_at
		FROM referral_credits
		WHERE email = $1
		ORDER BY unlock_at, id
	`

	rows, err := r.q.Query(ctx, query, email)
	if err != nil {
		return nil, fmt.Errorf("failed to get referral credits for user %s: %w", email, err)
	}
	defer rows.Close()

	var credits []*models.ReferralCredit
	for rows.Next() {
		credit, err := scanReferralCredit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan referral credit: %w", err)
		}
		credits = append(credits, credit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate referral credits: %w", err)
	}

	return credits, nil
}

func scanReferralCredit(row pgx.Row) (*models.ReferralCredit, error) {
	var credit models.ReferralCredit
	var amount, redeemed string
	err := row.Scan(
		&credit.ID,
		&credit.Email,
		&amount,
		&redeemed,
		&credit.UnlockAt,
		&credit.Source,
		&credit.CounterpartyEmail,
		&credit.Sport,
		&credit.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if credit.Amount, err = parseDecimal("amount", amount); err != nil {
		return nil, err
	}
	if credit.Redeemed, err = parseDecimal("redeemed", redeemed); err != nil {
		return nil, err
	}
	return &credit, nil
}

// Consume adds to the redeemed part of each listed entry. An entry that would
// exceed its amount fails the whole batch.
func (r *ReferralCreditRepository) Consume(ctx context.Context, consumptions []models.CreditConsumption) error {
	if len(consumptions) == 0 {
		return nil
	}

	query := `
		UPDATE referral_credits
		SET redeemed = redeemed + $1::numeric
		WHERE id = $2 AND redeemed + $1::numeric <= amount
	`

	batch := &pgx.Batch{}
	for _, c := range consumptions {
		batch.Queue(query, c.Amount.String(), c.CreditID)
	}

	tx, err := r.q.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to open savepoint: %w", err)
	}
	defer tx.Rollback(ctx)

	results := tx.SendBatch(ctx, batch)
	for _, c := range consumptions {
		tag, err := results.Exec()
		if err != nil {
			results.Close()
			return fmt.Errorf("failed to consume referral credit %d: %w", c.CreditID, err)
		}
		if tag.RowsAffected() == 0 {
			results.Close()
			return fmt.Errorf("referral credit %d cannot cover %s", c.CreditID, c.Amount)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to release savepoint: %w", err)
	}
	return nil
}
