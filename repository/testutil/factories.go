package testutil

import (
	"context"
	"testing"
	"time"

	"refwallet/database"
	"refwallet/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// InsertUser stores a user with the given wallet balance and optional referral code
func InsertUser(t *testing.T, db *database.DB, email string, balance string, code *string) *models.User {
	ctx := context.Background()

	_, err := db.Exec(ctx, `
		INSERT INTO users (email, display_name, referral_code, code_changed, wallet_balance)
		VALUES ($1, $2, $3, $4, $5::numeric)
	`, email, email, code, code != nil, balance)
	require.NoError(t, err)

	return &models.User{
		Email:         email,
		DisplayName:   email,
		ReferralCode:  code,
		CodeChanged:   code != nil,
		WalletBalance: decimal.RequireFromString(balance),
	}
}

// InsertCredit stores a ledger entry that unlocks at the given time
func InsertCredit(t *testing.T, db *database.DB, email string, amount string, unlockAt time.Time) int64 {
	var id int64
	err := db.QueryRow(context.Background(), `
		INSERT INTO referral_credits (email, amount, unlock_at, source, counterparty_email, sport)
		VALUES ($1, $2::numeric, $3, 'referrer', 'someone@example.com', 'cricket')
		RETURNING id
	`, email, amount, unlockAt).Scan(&id)
	require.NoError(t, err)
	return id
}

// CreateTestWalletHistory creates a test wallet history entry
func CreateTestWalletHistory(email string, transactionType models.TransactionType) *models.WalletHistory {
	return &models.WalletHistory{
		Email:           email,
		BalanceBefore:   decimal.RequireFromString("100"),
		BalanceAfter:    decimal.RequireFromString("90"),
		ChangeAmount:    decimal.RequireFromString("-10"),
		TransactionType: transactionType,
		Description:     "Redemption for cricket",
		Sport:           "cricket",
		TransactionMetadata: map[string]interface{}{
			"test": true,
		},
	}
}

// CreateTestReferral creates a test referral record
func CreateTestReferral(referrer, referred string) *models.Referral {
	return &models.Referral{
		ReferrerEmail: referrer,
		ReferredEmail: referred,
		Code:          "TEST-AAAAA",
		Sport:         "cricket",
		FeeAmount:     decimal.RequireFromString("100"),
		CreditAmount:  decimal.RequireFromString("5"),
	}
}

// StringPtr returns a pointer to s
func StringPtr(s string) *string {
	return &s
}
