package service

import (
	"context"
	"strings"
	"time"

	"refwallet/config"
	"refwallet/models"

	log "github.com/sirupsen/logrus"
)

// userService implements the UserService interface
type userService struct {
	uowFactory   UnitOfWorkFactory
	storeTimeout time.Duration
}

// NewUserService creates a new user service
func NewUserService(uowFactory UnitOfWorkFactory, cfg *config.Config) UserService {
	return &userService{
		uowFactory:   uowFactory,
		storeTimeout: cfg.StoreTimeout,
	}
}

// GetOrCreateUser retrieves an existing user or creates a new one with an empty wallet
func (s *userService) GetOrCreateUser(ctx context.Context, req models.RegisterUserRequest) (*models.User, bool, error) {
	if err := validateRequest(req); err != nil {
		return nil, false, err
	}
	displayName := strings.TrimSpace(req.DisplayName)

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, false, storeFailure("failed to begin transaction", err)
	}
	defer uow.Rollback()

	// First try to get existing user
	user, err := uow.UserRepository().GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, false, storeFailure("failed to check existing user", err)
	}
	if user != nil {
		return user, false, nil
	}

	// The primary key on email prevents duplicate users
	user, err = uow.UserRepository().Create(ctx, req.Email, displayName)
	if err != nil {
		return nil, false, storeFailure("failed to create user", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, false, storeFailure("failed to commit transaction", err)
	}

	log.WithField("email", req.Email).Info("Registered user")
	return user, true, nil
}
