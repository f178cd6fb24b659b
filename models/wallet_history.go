package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType represents the kind of wallet history entry
type TransactionType string

const (
	// TransactionTypeReferralCredit is the referrer's payout for a referral
	TransactionTypeReferralCredit TransactionType = "referral_credit"
	// TransactionTypeReferralDiscount is the referred user's fee discount; the balance is unchanged
	TransactionTypeReferralDiscount TransactionType = "referral_discount"
	// TransactionTypeRedemption is a debit of matured credit
	TransactionTypeRedemption TransactionType = "redemption"
)

// WalletHistory is an append-only audit entry of a wallet change
type WalletHistory struct {
	ID                  int64           `db:"id"`
	Email               string          `db:"email"`
	BalanceBefore       decimal.Decimal `db:"balance_before"`
	BalanceAfter        decimal.Decimal `db:"balance_after"`
	ChangeAmount        decimal.Decimal `db:"change_amount"`
	TransactionType     TransactionType `db:"transaction_type"`
	Description         string          `db:"description"`
	Sport               string          `db:"sport"`
	TransactionMetadata map[string]any  `db:"metadata"`
	CreatedAt           time.Time       `db:"created_at"`
}
