package service

import (
	"context"
	"errors"
	"testing"

	"refwallet/config"
	"refwallet/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestQueryService_CheckCode_CacheHit(t *testing.T) {
	ctx := context.Background()
	m := newServiceMocks()
	cache := new(MockCodeCache)
	// Bounded by the store timeout like every store round trip
	cache.On("Contains", mock.MatchedBy(hasDeadline), "ALICE-AB12C").Return(true, nil)

	svc := NewQueryService(m.factory, cache, config.NewTestConfig())
	result, err := svc.CheckCode(ctx, models.CheckCodeRequest{Code: "ALICE-AB12C"})

	require.NoError(t, err)
	assert.True(t, result.Valid)
	// Served without touching the store
	m.factory.AssertNotCalled(t, "Create")
	cache.AssertExpectations(t)
}

func hasDeadline(ctx context.Context) bool {
	_, ok := ctx.Deadline()
	return ok
}

func TestQueryService_CheckCode_CacheMissPopulates(t *testing.T) {
	ctx := context.Background()
	m := newServiceMocks()
	m.expectTx(false)

	cache := new(MockCodeCache)
	cache.On("Contains", mock.Anything, "ALICE-AB12C").Return(false, nil)
	cache.On("Add", mock.Anything, "ALICE-AB12C").Return(nil)
	m.users.On("GetByReferralCode", mock.Anything, "ALICE-AB12C").Return(&models.User{Email: "alice@example.com"}, nil)

	svc := NewQueryService(m.factory, cache, config.NewTestConfig())
	result, err := svc.CheckCode(ctx, models.CheckCodeRequest{Code: "ALICE-AB12C"})

	require.NoError(t, err)
	assert.True(t, result.Valid)
	cache.AssertExpectations(t)
	m.assertExpectations(t)
}

func TestQueryService_CheckCode_Unknown(t *testing.T) {
	ctx := context.Background()
	m := newServiceMocks()
	m.expectTx(false)

	cache := new(MockCodeCache)
	cache.On("Contains", mock.Anything, "NOPE-00000").Return(false, nil)
	m.users.On("GetByReferralCode", mock.Anything, "NOPE-00000").Return(nil, nil)

	svc := NewQueryService(m.factory, cache, config.NewTestConfig())
	_, err := svc.CheckCode(ctx, models.CheckCodeRequest{Code: "NOPE-00000"})

	assert.ErrorIs(t, err, ErrInvalidCode)
	// Negative results are never cached
	cache.AssertNotCalled(t, "Add", mock.Anything, mock.Anything)
}

func TestQueryService_CheckCode_CacheErrorFallsBack(t *testing.T) {
	ctx := context.Background()
	m := newServiceMocks()
	m.expectTx(false)

	cache := new(MockCodeCache)
	cache.On("Contains", mock.Anything, "ALICE-AB12C").Return(false, errors.New("redis down"))
	cache.On("Add", mock.Anything, "ALICE-AB12C").Return(errors.New("redis down"))
	m.users.On("GetByReferralCode", mock.Anything, "ALICE-AB12C").Return(&models.User{Email: "alice@example.com"}, nil)

	svc := NewQueryService(m.factory, cache, config.NewTestConfig())
	result, err := svc.CheckCode(ctx, models.CheckCodeRequest{Code: "ALICE-AB12C"})

	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestQueryService_CheckCode_NoCache(t *testing.T) {
	ctx := context.Background()
	m := newServiceMocks()
	m.expectTx(false)

	m.users.On("GetByReferralCode", mock.Anything, "ALICE-AB12C").Return(nil, context.DeadlineExceeded)

	svc := NewQueryService(m.factory, nil, config.NewTestConfig())
	_, err := svc.CheckCode(ctx, models.CheckCodeRequest{Code: "ALICE-AB12C"})

	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestQueryService_CheckCode_EmptyCode(t *testing.T) {
	m := newServiceMocks()
	svc := NewQueryService(m.factory, nil, config.NewTestConfig())

	_, err := svc.CheckCode(context.Background(), models.CheckCodeRequest{})

	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestQueryService_GetWalletHistory(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name          string
		limit         int
		expectedLimit int
	}{
		{"default limit", 0, defaultQueryLimit},
		{"explicit limit", 10, 10},
		{"clamped limit", 10000, maxQueryLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newServiceMocks()
			m.expectTx(false)

			entries := []*models.WalletHistory{{ID: 1, Email: "alice@example.com"}}
			m.users.On("GetByEmail", mock.Anything, "alice@example.com").Return(&models.User{Email: "alice@example.com"}, nil)
			m.history.On("GetByUser", mock.Anything, "alice@example.com", tt.expectedLimit).Return(entries, nil)

			svc := NewQueryService(m.factory, nil, config.NewTestConfig())
			got, err := svc.GetWalletHistory(ctx, "alice@example.com", tt.limit)

			require.NoError(t, err)
			assert.Equal(t, entries, got)
			m.assertExpectations(t)
		})
	}
}

func TestQueryService_GetReferralsGiven(t *testing.T) {
	ctx := context.Background()
	m := newServiceMocks()
	m.expectTx(false)

	referrals := []*models.Referral{{ID: 1, ReferrerEmail: "alice@example.com", ReferredEmail: "bob@example.com"}}
	m.users.On("GetByEmail", mock.Anything, "alice@example.com").Return(&models.User{Email: "alice@example.com"}, nil)
	m.referrals.On("GetByReferrer", mock.Anything, "alice@example.com", 20).Return(referrals, nil)

	svc := NewQueryService(m.factory, nil, config.NewTestConfig())
	got, err := svc.GetReferralsGiven(ctx, "alice@example.com", 20)

	require.NoError(t, err)
	assert.Equal(t, referrals, got)
	m.assertExpectations(t)
}

func TestQueryService_GetReferralsGiven_UserNotFound(t *testing.T) {
	ctx := context.Background()
	m := newServiceMocks()
	m.expectTx(false)

	m.users.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, nil)

	svc := NewQueryService(m.factory, nil, config.NewTestConfig())
	_, err := svc.GetReferralsGiven(ctx, "ghost@example.com", 20)

	assert.ErrorIs(t, err, ErrUserNotFound)
	m.referrals.AssertNotCalled(t, "GetByReferrer", mock.Anything, mock.Anything, mock.Anything)
}
