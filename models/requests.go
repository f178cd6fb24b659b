package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AssignCodeRequest asks for a referral code derived from the display name
type AssignCodeRequest struct {
	Email       string `json:"email" validate:"required,email"`
	DisplayName string `json:"new_name" validate:"required"`
}

// AssignCodeResult carries the newly issued code
type AssignCodeResult struct {
	Code string
}

// ApplyReferralRequest attributes a competition fee payment to a referral code
type ApplyReferralRequest struct {
	ReferredEmail string          `json:"user_email" validate:"required,email"`
	Code          string          `json:"referral_code" validate:"required"`
	FeeAmount     decimal.Decimal `json:"competition_fees"`
	Sport         string          `json:"sport_referred_to" validate:"required"`
}

// ApplyReferralResult describes the credit granted to each side
type ApplyReferralResult struct {
	CreditAmount  decimal.Decimal
	UnlockAt      time.Time
	ReferrerEmail string
}

// RedeemRequest spends matured credit from the wallet
type RedeemRequest struct {
	Email  string          `json:"email" validate:"required,email"`
	Amount decimal.Decimal `json:"amount"`
	Sport  string          `json:"sport_redeemed_to" validate:"required"`
}

// RedeemResult is the outcome of a redemption
type RedeemResult struct {
	RedeemedAmount decimal.Decimal
	NewBalance     decimal.Decimal
}

// CheckCodeRequest asks whether a referral code exists
type CheckCodeRequest struct {
	Code string `json:"referral_code" validate:"required"`
}

// CheckCodeResult is returned only for valid codes
type CheckCodeResult struct {
	Valid bool
}

// WalletSummary is a read model of a user's wallet
type WalletSummary struct {
	Email          string
	ReferralCode   *string
	Balance        decimal.Decimal
	EligibleCredit decimal.Decimal
	PendingCredit  decimal.Decimal
	NextUnlockAt   *time.Time
}

// RegisterUserRequest creates a wallet holder
type RegisterUserRequest struct {
	Email       string `json:"email" validate:"required,email"`
	DisplayName string `json:"display_name" validate:"required"`
}
