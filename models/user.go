package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents a registered player with a referral code and wallet
type User struct {
	Email         string          `db:"email"`
	DisplayName   string          `db:"display_name"`
	ReferralCode  *string         `db:"referral_code"`
	CodeChanged   bool            `db:"code_changed"`
	WalletBalance decimal.Decimal `db:"wallet_balance"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

// HasReferralCode reports whether a referral code has been assigned
func (u *User) HasReferralCode() bool {
	return u.ReferralCode != nil && *u.ReferralCode != ""
}
