package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreditSource identifies which side of a referral a credit entry belongs to
type CreditSource string

const (
	CreditSourceReferrer CreditSource = "referrer"
	CreditSourceReferred CreditSource = "referred"
)

// ReferralCredit is a time-locked credit grant in a user's ledger.
// Redeemed only grows; entries are never deleted.
type ReferralCredit struct {
	ID                int64           `db:"id"`
	Email             string          `db:"email"`
	Amount            decimal.Decimal `db:"amount"`
	Redeemed          decimal.Decimal `db:"redeemed"`
	UnlockAt          time.Time       `db:"unlock_at"`
	Source            CreditSource    `db:"source"`
	CounterpartyEmail string          `db:"counterparty_email"`
	Sport             string          `db:"sport"`
	CreatedAt         time.Time       `db:"created_at"`
}

// Remaining returns the part of the credit that has not been redeemed yet
func (c *ReferralCredit) Remaining() decimal.Decimal {
	return c.Amount.Sub(c.Redeemed)
}

// IsMaturedAt reports whether the credit is unlocked at the given instant
func (c *ReferralCredit) IsMaturedAt(now time.Time) bool {
	return !c.UnlockAt.After(now)
}

// CreditConsumption records how much is taken from a single credit entry
type CreditConsumption struct {
	CreditID int64
	Amount   decimal.Decimal
}
