package service

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func requestValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// validateRequest checks the struct tags of a request value
func validateRequest(req any) error {
	if err := requestValidator().Struct(req); err != nil {
		var fields []string
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// amountScale is the number of decimal places amount columns store
const amountScale = 4

// maxAmount bounds amounts to the 16 integer digits of NUMERIC(20,4)
var maxAmount = decimal.New(1, 16)

// validateAmount checks that an amount is positive, storable without rounding and in range
func validateAmount(field string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s must be positive, got %s", ErrInvalidRequest, field, amount)
	}
	if !amount.Equal(amount.Truncate(amountScale)) {
		return fmt.Errorf("%w: %s allows at most %d decimal places, got %s", ErrInvalidRequest, field, amountScale, amount)
	}
	if amount.GreaterThanOrEqual(maxAmount) {
		return fmt.Errorf("%w: %s must be below %s, got %s", ErrInvalidRequest, field, maxAmount, amount)
	}
	return nil
}
