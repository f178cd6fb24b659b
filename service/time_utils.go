package service

import (
	"sort"
	"time"

	"refwallet/models"

	"github.com/shopspring/decimal"
)

// UnlockTime returns when a credit granted at now matures
func UnlockTime(now time.Time, lockPeriod time.Duration) time.Time {
	return now.UTC().Add(lockPeriod)
}

// EligibleCredit sums the unredeemed part of every credit matured at now
func EligibleCredit(credits []*models.ReferralCredit, now time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, c := range credits {
		if c.IsMaturedAt(now) {
			total = total.Add(c.Remaining())
		}
	}
	return total
}

// PendingCredit sums credit that has not matured yet
func PendingCredit(credits []*models.ReferralCredit, now time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, c := range credits {
		if !c.IsMaturedAt(now) {
			total = total.Add(c.Remaining())
		}
	}
	return total
}

// NextUnlock returns the earliest unlock time still in the future, or nil
func NextUnlock(credits []*models.ReferralCredit, now time.Time) *time.Time {
	var next *time.Time
	for _, c := range credits {
		if c.IsMaturedAt(now) || !c.Remaining().IsPositive() {
			continue
		}
		if next == nil || c.UnlockAt.Before(*next) {
			unlockAt := c.UnlockAt
			next = &unlockAt
		}
	}
	return next
}

// PlanConsumption picks matured credit oldest-unlock first until amount is covered.
// The caller must have checked that EligibleCredit covers amount.
func PlanConsumption(credits []*models.ReferralCredit, amount decimal.Decimal, now time.Time) []models.CreditConsumption {
	matured := make([]*models.ReferralCredit, 0, len(credits))
	for _, c := range credits {
		if c.IsMaturedAt(now) && c.Remaining().IsPositive() {
			matured = append(matured, c)
		}
	}
	sort.SliceStable(matured, func(i, j int) bool {
		if matured[i].UnlockAt.Equal(matured[j].UnlockAt) {
			return matured[i].ID < matured[j].ID
		}
		return matured[i].UnlockAt.Before(matured[j].UnlockAt)
	})

	remaining := amount
	var plan []models.CreditConsumption
	for _, c := range matured {
		if !remaining.IsPositive() {
			break
		}
		take := decimal.Min(c.Remaining(), remaining)
		plan = append(plan, models.CreditConsumption{CreditID: c.ID, Amount: take})
		remaining = remaining.Sub(take)
	}
	return plan
}
