package service

import (
	"context"

	"refwallet/events"
	"refwallet/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmailForUpdate(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByReferralCode(ctx context.Context, code string) (*models.User, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, email string, displayName string) (*models.User, error) {
	args := m.Called(ctx, email, displayName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) SetReferralCode(ctx context.Context, email string, code string) error {
	args := m.Called(ctx, email, code)
	return args.Error(0)
}

func (m *MockUserRepository) AddBalance(ctx context.Context, email string, amount decimal.Decimal) error {
	args := m.Called(ctx, email, amount)
	return args.Error(0)
}

func (m *MockUserRepository) DeductBalance(ctx context.Context, email string, amount decimal.Decimal) error {
	args := m.Called(ctx, email, amount)
	return args.Error(0)
}

// MockReferralCreditRepository is a mock implementation of ReferralCreditRepository
type MockReferralCreditRepository struct {
	mock.Mock
}

func (m *MockReferralCreditRepository) Create(ctx context.Context, credit *models.ReferralCredit) error {
	args := m.Called(ctx, credit)
	return args.Error(0)
}

func (m *MockReferralCreditRepository) GetByUser(ctx context.Context, email string) ([]*models.ReferralCredit, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ReferralCredit), args.Error(1)
}

func (m *MockReferralCreditRepository) Consume(ctx context.Context, consumptions []models.CreditConsumption) error {
	args := m.Called(ctx, consumptions)
	return args.Error(0)
}

// MockWalletHistoryRepository is a mock implementation of WalletHistoryRepository
type MockWalletHistoryRepository struct {
	mock.Mock
}

func (m *MockWalletHistoryRepository) Record(ctx context.Context, history *models.WalletHistory) error {
	args := m.Called(ctx, history)
	return args.Error(0)
}

func (m *MockWalletHistoryRepository) GetByUser(ctx context.Context, email string, limit int) ([]*models.WalletHistory, error) {
	args := m.Called(ctx, email, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.WalletHistory), args.Error(1)
}

// MockReferralRepository is a mock implementation of ReferralRepository
type MockReferralRepository struct {
	mock.Mock
}

func (m *MockReferralRepository) Create(ctx context.Context, referral *models.Referral) error {
	args := m.Called(ctx, referral)
	return args.Error(0)
}

func (m *MockReferralRepository) GetByReferrer(ctx context.Context, referrerEmail string, limit int) ([]*models.Referral, error) {
	args := m.Called(ctx, referrerEmail, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Referral), args.Error(1)
}

// MockEventPublisher is a mock implementation of EventPublisher for testing
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.Called(event)
}

// MockUnitOfWork is a mock implementation of UnitOfWork
type MockUnitOfWork struct {
	mock.Mock

	userRepo     UserRepository
	creditRepo   ReferralCreditRepository
	historyRepo  WalletHistoryRepository
	referralRepo ReferralRepository
	eventBus     EventPublisher
}

// SetRepositories wires the repositories returned by the getters
func (m *MockUnitOfWork) SetRepositories(users UserRepository, credits ReferralCreditRepository, history WalletHistoryRepository, referrals ReferralRepository, bus EventPublisher) {
	m.userRepo = users
	m.creditRepo = credits
	m.historyRepo = history
	m.referralRepo = referrals
	m.eventBus = bus
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) UserRepository() UserRepository {
	return m.userRepo
}

func (m *MockUnitOfWork) ReferralCreditRepository() ReferralCreditRepository {
	return m.creditRepo
}

func (m *MockUnitOfWork) WalletHistoryRepository() WalletHistoryRepository {
	return m.historyRepo
}

func (m *MockUnitOfWork) ReferralRepository() ReferralRepository {
	return m.referralRepo
}

func (m *MockUnitOfWork) EventBus() EventPublisher {
	return m.eventBus
}

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}

// MockCodeGenerator is a mock implementation of CodeGenerator
type MockCodeGenerator struct {
	mock.Mock
}

func (m *MockCodeGenerator) Generate() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

// MockCodeCache is a mock implementation of CodeCache
type MockCodeCache struct {
	mock.Mock
}

func (m *MockCodeCache) Contains(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func (m *MockCodeCache) Add(ctx context.Context, code string) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}
