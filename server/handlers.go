package server

import (
	"net/http"
	"strconv"
	"time"

	"refwallet/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

func (s *Server) fail(c *gin.Context, err error) {
	status, detail := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.WithError(err).WithField("request_id", c.GetString(requestIDKey)).Error("Request failed")
	}
	c.JSON(status, gin.H{"detail": detail})
}

func (s *Server) badBody(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid request body: " + err.Error()})
}

func (s *Server) health(c *gin.Context) {
	if s.deps.Store != nil {
		if err := s.deps.Store.Ping(c.Request.Context()); err != nil {
			log.WithError(err).Warn("Health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type userResponse struct {
	Email         string          `json:"email"`
	DisplayName   string          `json:"display_name"`
	ReferralCode  *string         `json:"referral_code"`
	WalletBalance decimal.Decimal `json:"wallet_balance"`
}

func (s *Server) registerUser(c *gin.Context) {
	var req models.RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badBody(c, err)
		return
	}

	user, created, err := s.deps.Users.GetOrCreateUser(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, userResponse{
		Email:         user.Email,
		DisplayName:   user.DisplayName,
		ReferralCode:  user.ReferralCode,
		WalletBalance: user.WalletBalance,
	})
}

func (s *Server) changeReferralCode(c *gin.Context) {
	var req models.AssignCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badBody(c, err)
		return
	}

	result, err := s.deps.Referrals.AssignCode(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":           "Referral code updated successfully",
		"new_referral_code": result.Code,
	})
}

func (s *Server) applyReferral(c *gin.Context) {
	var req models.ApplyReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badBody(c, err)
		return
	}

	result, err := s.deps.Referrals.ApplyReferral(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "Referral applied successfully",
		"credit_amount": result.CreditAmount,
		"unlock_at":     result.UnlockAt.Format(time.RFC3339),
	})
}

func (s *Server) redeemCoins(c *gin.Context) {
	var req models.RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badBody(c, err)
		return
	}

	result, err := s.deps.Wallets.Redeem(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":         "Coins redeemed successfully",
		"redeemed_amount": result.RedeemedAmount,
		"wallet_balance":  result.NewBalance,
	})
}

func (s *Server) checkReferralCode(c *gin.Context) {
	var req models.CheckCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badBody(c, err)
		return
	}

	if _, err := s.deps.Queries.CheckCode(c.Request.Context(), req); err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Referral code is valid"})
}

type walletResponse struct {
	Email          string          `json:"email"`
	ReferralCode   *string         `json:"referral_code"`
	WalletBalance  decimal.Decimal `json:"wallet_balance"`
	EligibleCredit decimal.Decimal `json:"eligible_credit"`
	PendingCredit  decimal.Decimal `json:"pending_credit"`
	NextUnlockAt   *time.Time      `json:"next_unlock_at,omitempty"`
}

func (s *Server) getWallet(c *gin.Context) {
	summary, err := s.deps.Wallets.GetWallet(c.Request.Context(), c.Param("email"))
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, walletResponse{
		Email:          summary.Email,
		ReferralCode:   summary.ReferralCode,
		WalletBalance:  summary.Balance,
		EligibleCredit: summary.EligibleCredit,
		PendingCredit:  summary.PendingCredit,
		NextUnlockAt:   summary.NextUnlockAt,
	})
}

type historyEntry struct {
	ID              int64           `json:"id"`
	TransactionType string          `json:"transaction_type"`
	BalanceBefore   decimal.Decimal `json:"balance_before"`
	BalanceAfter    decimal.Decimal `json:"balance_after"`
	ChangeAmount    decimal.Decimal `json:"change_amount"`
	Description     string          `json:"description"`
	Sport           string          `json:"sport,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

func (s *Server) getWalletHistory(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	entries, err := s.deps.Queries.GetWalletHistory(c.Request.Context(), c.Param("email"), limit)
	if err != nil {
		s.fail(c, err)
		return
	}

	out := make([]historyEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, historyEntry{
			ID:              e.ID,
			TransactionType: string(e.TransactionType),
			BalanceBefore:   e.BalanceBefore,
			BalanceAfter:    e.BalanceAfter,
			ChangeAmount:    e.ChangeAmount,
			Description:     e.Description,
			Sport:           e.Sport,
			CreatedAt:       e.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"history": out})
}

type referralEntry struct {
	ReferredEmail string          `json:"referred_email"`
	Code          string          `json:"referral_code"`
	Sport         string          `json:"sport"`
	FeeAmount     decimal.Decimal `json:"competition_fees"`
	CreditAmount  decimal.Decimal `json:"credit_amount"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (s *Server) getReferrals(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	referrals, err := s.deps.Queries.GetReferralsGiven(c.Request.Context(), c.Param("email"), limit)
	if err != nil {
		s.fail(c, err)
		return
	}

	out := make([]referralEntry, 0, len(referrals))
	for _, r := range referrals {
		out = append(out, referralEntry{
			ReferredEmail: r.ReferredEmail,
			Code:          r.Code,
			Sport:         r.Sport,
			FeeAmount:     r.FeeAmount,
			CreditAmount:  r.CreditAmount,
			CreatedAt:     r.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"referrals": out})
}

// parseLimit reads the optional limit query parameter, writing a 400 on garbage
func parseLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "limit must be a non-negative integer"})
		return 0, false
	}
	return limit, true
}
