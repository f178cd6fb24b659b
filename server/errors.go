package server

import (
	"errors"
	"net/http"

	"refwallet/service"
)

type errorMapping struct {
	target error
	status int
	detail string
}

// Ordered; the first matching sentinel wins
var errorMappings = []errorMapping{
	{service.ErrInvalidRequest, http.StatusBadRequest, ""},
	{service.ErrUserNotFound, http.StatusNotFound, "User not found"},
	{service.ErrInvalidCode, http.StatusNotFound, "Invalid referral code"},
	{service.ErrCodeAlreadySet, http.StatusBadRequest, "Referral code can only be changed once"},
	{service.ErrSelfReferral, http.StatusBadRequest, "Cannot apply your own referral code"},
	{service.ErrInsufficientBalance, http.StatusBadRequest, "Insufficient wallet balance"},
	{service.ErrInsufficientEligibleCredit, http.StatusBadRequest, "Insufficient eligible credits for redemption"},
	{service.ErrCodeSpaceExhausted, http.StatusConflict, "Could not generate a unique referral code, try again"},
	{service.ErrStoreUnavailable, http.StatusServiceUnavailable, "Service temporarily unavailable"},
}

// statusFor maps a service error to an HTTP status and a client-facing detail
func statusFor(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			if m.detail == "" {
				// Validation messages name the offending fields
				return m.status, err.Error()
			}
			return m.status, m.detail
		}
	}
	return http.StatusInternalServerError, "Internal server error"
}
