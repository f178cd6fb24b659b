package repository

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"refwallet/events"
	"refwallet/repository/testutil"
	"refwallet/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitOfWork_CommitFlushesEvents(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	testutil.InsertUser(t, testDB.DB, "alice@example.com", "0", nil)

	bus := events.NewBus()
	var delivered atomic.Int32
	bus.Subscribe(events.EventTypeCodeAssigned, func(ctx context.Context, e events.Event) {
		delivered.Add(1)
	})

	uow := NewUnitOfWorkFactory(testDB.DB, bus).Create()
	require.NoError(t, uow.Begin(ctx))
	require.NoError(t, uow.UserRepository().SetReferralCode(ctx, "alice@example.com", "ALICE-AAAAA"))
	uow.EventBus().Publish(events.CodeAssignedEvent{Email: "alice@example.com", Code: "ALICE-AAAAA"})
	require.NoError(t, uow.Commit())
	// Rollback after commit is a no-op
	require.NoError(t, uow.Rollback())

	assert.Eventually(t, func() bool { return delivered.Load() == 1 }, time.Second, 10*time.Millisecond)

	user, err := NewUserRepository(testDB.DB).GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "ALICE-AAAAA", *user.ReferralCode)
}

func TestUnitOfWork_RollbackDiscardsEverything(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	testutil.InsertUser(t, testDB.DB, "alice@example.com", "10", nil)

	bus := events.NewBus()
	var delivered atomic.Int32
	bus.SubscribeAll(func(ctx context.Context, e events.Event) {
		delivered.Add(1)
	})

	uow := NewUnitOfWorkFactory(testDB.DB, bus).Create()
	require.NoError(t, uow.Begin(ctx))
	require.NoError(t, uow.UserRepository().AddBalance(ctx, "alice@example.com", decimal.NewFromInt(5)))
	uow.EventBus().Publish(events.CodeAssignedEvent{Email: "alice@example.com"})
	require.NoError(t, uow.Rollback())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), delivered.Load())

	user, err := NewUserRepository(testDB.DB).GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, user.WalletBalance.Equal(decimal.NewFromInt(10)))
}

func TestUnitOfWork_BeginWithExpiredContext(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	uow := NewUnitOfWorkFactory(testDB.DB, events.NewBus()).Create()
	err := uow.Begin(ctx)
	assert.ErrorIs(t, err, service.ErrStoreUnavailable)
}

func TestUnitOfWork_RepositoriesRequireBegin(t *testing.T) {
	uow := NewUnitOfWorkFactory(nil, events.NewBus()).Create()

	assert.Panics(t, func() { uow.UserRepository() })
	assert.Panics(t, func() { uow.ReferralCreditRepository() })
	assert.NotPanics(t, func() { uow.EventBus() })
}
