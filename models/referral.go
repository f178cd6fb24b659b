package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Referral records a successful use of a referrer's code
type Referral struct {
	ID            int64           `db:"id"`
	ReferrerEmail string          `db:"referrer_email"`
	ReferredEmail string          `db:"referred_email"`
	Code          string          `db:"code"`
	Sport         string          `db:"sport"`
	FeeAmount     decimal.Decimal `db:"fee_amount"`
	CreditAmount  decimal.Decimal `db:"credit_amount"`
	CreatedAt     time.Time       `db:"created_at"`
}
