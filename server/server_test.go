package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"refwallet/config"
	"refwallet/models"
	"refwallet/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockUserService struct {
	mock.Mock
}

func (m *mockUserService) GetOrCreateUser(ctx context.Context, req models.RegisterUserRequest) (*models.User, bool, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.User), args.Bool(1), args.Error(2)
}

type mockReferralService struct {
	mock.Mock
}

func (m *mockReferralService) AssignCode(ctx context.Context, req models.AssignCodeRequest) (*models.AssignCodeResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AssignCodeResult), args.Error(1)
}

func (m *mockReferralService) ApplyReferral(ctx context.Context, req models.ApplyReferralRequest) (*models.ApplyReferralResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ApplyReferralResult), args.Error(1)
}

type mockWalletService struct {
	mock.Mock
}

func (m *mockWalletService) Redeem(ctx context.Context, req models.RedeemRequest) (*models.RedeemResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RedeemResult), args.Error(1)
}

func (m *mockWalletService) GetWallet(ctx context.Context, email string) (*models.WalletSummary, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WalletSummary), args.Error(1)
}

type mockQueryService struct {
	mock.Mock
}

func (m *mockQueryService) CheckCode(ctx context.Context, req models.CheckCodeRequest) (*models.CheckCodeResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CheckCodeResult), args.Error(1)
}

func (m *mockQueryService) GetWalletHistory(ctx context.Context, email string, limit int) ([]*models.WalletHistory, error) {
	args := m.Called(ctx, email, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.WalletHistory), args.Error(1)
}

func (m *mockQueryService) GetReferralsGiven(ctx context.Context, email string, limit int) ([]*models.Referral, error) {
	args := m.Called(ctx, email, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Referral), args.Error(1)
}

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(context.Context) error { return p.err }

type testServer struct {
	users     *mockUserService
	referrals *mockReferralService
	wallets   *mockWalletService
	queries   *mockQueryService
	router    *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ts := &testServer{
		users:     new(mockUserService),
		referrals: new(mockReferralService),
		wallets:   new(mockWalletService),
		queries:   new(mockQueryService),
	}
	cfg := config.NewTestConfig()
	cfg.CORSAllowedOrigins = "https://app.example.com"

	srv := New(cfg, Dependencies{
		Users:     ts.users,
		Referrals: ts.referrals,
		Wallets:   ts.wallets,
		Queries:   ts.queries,
		Store:     stubPinger{},
	})
	ts.router = srv.Router()
	return ts
}

func (ts *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestRegisterUser(t *testing.T) {
	req := models.RegisterUserRequest{Email: "alice@example.com", DisplayName: "Alice"}
	user := &models.User{Email: "alice@example.com", DisplayName: "Alice", WalletBalance: decimal.Zero}

	ts := newTestServer(t)
	ts.users.On("GetOrCreateUser", mock.Anything, req).Return(user, true, nil).Once()
	ts.users.On("GetOrCreateUser", mock.Anything, req).Return(user, false, nil).Once()

	w := ts.do(http.MethodPost, "/users", req)
	assert.Equal(t, http.StatusCreated, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "alice@example.com", body["email"])
	assert.Nil(t, body["referral_code"])

	w = ts.do(http.MethodPost, "/users", req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestChangeReferralCode(t *testing.T) {
	ts := newTestServer(t)
	ts.referrals.On("AssignCode", mock.Anything, models.AssignCodeRequest{Email: "alice@example.com", DisplayName: "Alice"}).
		Return(&models.AssignCodeResult{Code: "ALICE-AB12C"}, nil)

	w := ts.do(http.MethodPost, "/change_referral_code", map[string]string{"email": "alice@example.com", "new_name": "Alice"})

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "Referral code updated successfully", body["message"])
	assert.Equal(t, "ALICE-AB12C", body["new_referral_code"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestChangeReferralCode_Errors(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedDetail string
	}{
		{"already set", service.ErrCodeAlreadySet, http.StatusBadRequest, "Referral code can only be changed once"},
		{"user not found", fmt.Errorf("%w: ghost@example.com", service.ErrUserNotFound), http.StatusNotFound, "User not found"},
		{"exhausted", service.ErrCodeSpaceExhausted, http.StatusConflict, "Could not generate a unique referral code, try again"},
		{"store down", fmt.Errorf("begin: %w", service.ErrStoreUnavailable), http.StatusServiceUnavailable, "Service temporarily unavailable"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.referrals.On("AssignCode", mock.Anything, mock.Anything).Return(nil, tt.err)

			w := ts.do(http.MethodPost, "/change_referral_code", map[string]string{"email": "alice@example.com", "new_name": "Alice"})

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectedDetail, decodeBody(t, w)["detail"])
		})
	}
}

func TestChangeReferralCode_MalformedBody(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/change_referral_code", "{not json")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	ts.referrals.AssertNotCalled(t, "AssignCode", mock.Anything, mock.Anything)
}

func TestApplyReferral(t *testing.T) {
	ts := newTestServer(t)
	unlockAt := time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)
	ts.referrals.On("ApplyReferral", mock.Anything, mock.MatchedBy(func(req models.ApplyReferralRequest) bool {
		return req.ReferredEmail == "bob@example.com" &&
			req.Code == "ALICE-AB12C" &&
			req.FeeAmount.Equal(decimal.RequireFromString("100")) &&
			req.Sport == "football"
	})).Return(&models.ApplyReferralResult{
		CreditAmount:  decimal.RequireFromString("5"),
		UnlockAt:      unlockAt,
		ReferrerEmail: "alice@example.com",
	}, nil)

	w := ts.do(http.MethodPost, "/apply_referral",
		`{"user_email":"bob@example.com","referral_code":"ALICE-AB12C","competition_fees":100,"sport_referred_to":"football"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "Referral applied successfully", body["message"])
	assert.Equal(t, "5", body["credit_amount"])
	assert.Equal(t, "2024-03-31T12:00:00Z", body["unlock_at"])
}

func TestApplyReferral_Errors(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedDetail string
	}{
		{"invalid code", service.ErrInvalidCode, http.StatusNotFound, "Invalid referral code"},
		{"self referral", service.ErrSelfReferral, http.StatusBadRequest, "Cannot apply your own referral code"},
		{"bad fee", fmt.Errorf("%w: competition_fees must be positive", service.ErrInvalidRequest), http.StatusBadRequest, "invalid request: competition_fees must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.referrals.On("ApplyReferral", mock.Anything, mock.Anything).Return(nil, tt.err)

			w := ts.do(http.MethodPost, "/apply_referral",
				`{"user_email":"bob@example.com","referral_code":"ALICE-AB12C","competition_fees":100,"sport_referred_to":"football"}`)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectedDetail, decodeBody(t, w)["detail"])
		})
	}
}

func TestRedeemCoins(t *testing.T) {
	ts := newTestServer(t)
	ts.wallets.On("Redeem", mock.Anything, mock.MatchedBy(func(req models.RedeemRequest) bool {
		return req.Email == "alice@example.com" && req.Amount.Equal(decimal.RequireFromString("12.5"))
	})).Return(&models.RedeemResult{
		RedeemedAmount: decimal.RequireFromString("12.5"),
		NewBalance:     decimal.RequireFromString("7.5"),
	}, nil)

	w := ts.do(http.MethodPost, "/redeem_coins", `{"email":"alice@example.com","amount":"12.5","sport_redeemed_to":"football"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "Coins redeemed successfully", body["message"])
	assert.Equal(t, "12.5", body["redeemed_amount"])
	assert.Equal(t, "7.5", body["wallet_balance"])
}

func TestRedeemCoins_Insufficient(t *testing.T) {
	tests := []struct {
		err            error
		expectedDetail string
	}{
		{service.ErrInsufficientBalance, "Insufficient wallet balance"},
		{service.ErrInsufficientEligibleCredit, "Insufficient eligible credits for redemption"},
	}

	for _, tt := range tests {
		t.Run(tt.expectedDetail, func(t *testing.T) {
			ts := newTestServer(t)
			ts.wallets.On("Redeem", mock.Anything, mock.Anything).Return(nil, tt.err)

			w := ts.do(http.MethodPost, "/redeem_coins", `{"email":"alice@example.com","amount":5,"sport_redeemed_to":"football"}`)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.expectedDetail, decodeBody(t, w)["detail"])
		})
	}
}

func TestCheckReferralCode(t *testing.T) {
	ts := newTestServer(t)
	ts.queries.On("CheckCode", mock.Anything, models.CheckCodeRequest{Code: "ALICE-AB12C"}).
		Return(&models.CheckCodeResult{Valid: true}, nil)
	ts.queries.On("CheckCode", mock.Anything, models.CheckCodeRequest{Code: "NOPE"}).
		Return(nil, service.ErrInvalidCode)

	w := ts.do(http.MethodPost, "/check_referral_code", map[string]string{"referral_code": "ALICE-AB12C"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Referral code is valid", decodeBody(t, w)["message"])

	w = ts.do(http.MethodPost, "/check_referral_code", map[string]string{"referral_code": "NOPE"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Invalid referral code", decodeBody(t, w)["detail"])
}

func TestGetWallet(t *testing.T) {
	ts := newTestServer(t)
	code := "ALICE-AB12C"
	next := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	ts.wallets.On("GetWallet", mock.Anything, "alice@example.com").Return(&models.WalletSummary{
		Email:          "alice@example.com",
		ReferralCode:   &code,
		Balance:        decimal.RequireFromString("15"),
		EligibleCredit: decimal.RequireFromString("7"),
		PendingCredit:  decimal.RequireFromString("8"),
		NextUnlockAt:   &next,
	}, nil)

	w := ts.do(http.MethodGet, "/wallet/alice@example.com", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "ALICE-AB12C", body["referral_code"])
	assert.Equal(t, "15", body["wallet_balance"])
	assert.Equal(t, "7", body["eligible_credit"])
	assert.Equal(t, "8", body["pending_credit"])
	assert.Equal(t, "2024-04-01T00:00:00Z", body["next_unlock_at"])
}

func TestGetWalletHistory_Limit(t *testing.T) {
	ts := newTestServer(t)
	ts.queries.On("GetWalletHistory", mock.Anything, "alice@example.com", 10).Return([]*models.WalletHistory{
		{ID: 3, TransactionType: models.TransactionTypeRedemption, ChangeAmount: decimal.RequireFromString("-2")},
	}, nil)

	w := ts.do(http.MethodGet, "/wallet/alice@example.com/history?limit=10", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	history := decodeBody(t, w)["history"].([]any)
	require.Len(t, history, 1)
	assert.Equal(t, "redemption", history[0].(map[string]any)["transaction_type"])

	w = ts.do(http.MethodGet, "/wallet/alice@example.com/history?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetReferrals_UserNotFound(t *testing.T) {
	ts := newTestServer(t)
	ts.queries.On("GetReferralsGiven", mock.Anything, "ghost@example.com", 0).Return(nil, service.ErrUserNotFound)

	w := ts.do(http.MethodGet, "/referrals/ghost@example.com", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "User not found", decodeBody(t, w)["detail"])
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	cfg := config.NewTestConfig()
	down := New(cfg, Dependencies{Store: stubPinger{err: errors.New("connection refused")}}).Router()
	w = httptest.NewRecorder()
	down.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCORS_AllowedOrigin(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/redeem_coins", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestID_Propagated(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
}
