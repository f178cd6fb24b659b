package service

import (
	"context"
	"errors"
	"fmt"
)

// Error kinds surfaced to callers. Match with errors.Is.
var (
	ErrUserNotFound               = errors.New("user not found")
	ErrInvalidCode                = errors.New("invalid referral code")
	ErrCodeAlreadySet             = errors.New("referral code can only be changed once")
	ErrCodeSpaceExhausted         = errors.New("could not find a free referral code")
	ErrInsufficientBalance        = errors.New("insufficient wallet balance")
	ErrInsufficientEligibleCredit = errors.New("insufficient eligible credits for redemption")
	ErrStoreUnavailable           = errors.New("store unavailable")
	ErrSelfReferral               = errors.New("cannot apply your own referral code")
	ErrInvalidRequest             = errors.New("invalid request")
)

// ErrCodeTaken is returned by the store when a candidate code collides with an existing one
var ErrCodeTaken = errors.New("referral code already taken")

// storeFailure wraps a store error, classifying timeouts as ErrStoreUnavailable
func storeFailure(msg string, err error) error {
	if errors.Is(err, ErrStoreUnavailable) {
		return fmt.Errorf("%s: %w", msg, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %v", msg, ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
