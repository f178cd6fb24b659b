package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"refwallet/database"
	"refwallet/models"
)

// WalletHistoryRepository implements the WalletHistoryRepository interface
type WalletHistoryRepository struct {
	q queryable
}

// NewWalletHistoryRepository creates a new wallet history repository
func NewWalletHistoryRepository(db *database.DB) *WalletHistoryRepository {
	return &WalletHistoryRepository{q: db.Pool}
}

// newWalletHistoryRepositoryWithTx creates a new wallet history repository with a transaction
func newWalletHistoryRepositoryWithTx(tx queryable) *WalletHistoryRepository {
	return &WalletHistoryRepository{q: tx}
}

// Record creates a new wallet history entry
func (r *WalletHistoryRepository) Record(ctx context.Context, history *models.WalletHistory) error {
	// Convert metadata to JSON
	metadataJSON, err := json.Marshal(history.TransactionMetadata)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction metadata: %w", err)
	}

	query := `
		INSERT INTO wallet_history
		(email, balance_before, balance_after, change_amount, transaction_type, description, sport, metadata)
		VALUES ($1, $2::numeric, $3::numeric, $4::numeric, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	err = r.q.QueryRow(ctx, query,
		history.Email,
		history.BalanceBefore.String(),
		history.BalanceAfter.String(),
		history.ChangeAmount.String(),
		history.TransactionType,
		history.Description,
		history.Sport,
		metadataJSON,
	).Scan(&history.ID, &history.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record wallet history for user %s: %w", history.Email, err)
	}

	return nil
}

// GetByUser returns the most recent wallet history entries for a user
func (r *WalletHistoryRepository) GetByUser(ctx context.Context, email string, limit int) ([]*models.WalletHistory, error) {
	query := `
		SELECT id, email, balance_before::text, balance_after::text, change_amount::text,
		       transaction_type, description, sport, metadata, created_at
		FROM wallet_history
		WHERE email = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, email, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet history for user %s: %w", email, err)
	}
	defer rows.Close()

	var histories []*models.WalletHistory
	for rows.Next() {
		var history models.WalletHistory
		var before, after, change string
		var metadataJSON []byte

		err := rows.Scan(
			&history.ID,
			&history.Email,
			&before,
			&after,
			&change,
			&history.TransactionType,
			&history.Description,
			&history.Sport,
			&metadataJSON,
			&history.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wallet history: %w", err)
		}

		if history.BalanceBefore, err = parseDecimal("balance_before", before); err != nil {
			return nil, err
		}
		if history.BalanceAfter, err = parseDecimal("balance_after", after); err != nil {
			return nil, err
		}
		if history.ChangeAmount, err = parseDecimal("change_amount", change); err != nil {
			return nil, err
		}

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &history.TransactionMetadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal transaction metadata: %w", err)
			}
		}

		histories = append(histories, &history)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate wallet history: %w", err)
	}

	return histories, nil
}
