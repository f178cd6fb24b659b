package service

import (
	"context"
	"fmt"

	"refwallet/events"
	"refwallet/models"
)

// RecordBalanceChange records a wallet history entry and emits the matching event.
// This is the single entry point for wallet history writes.
func RecordBalanceChange(ctx context.Context, uow UnitOfWork, history *models.WalletHistory) error {
	if err := uow.WalletHistoryRepository().Record(ctx, history); err != nil {
		return fmt.Errorf("failed to record wallet history: %w", err)
	}

	// Discount entries leave the balance untouched and emit nothing
	if history.BalanceBefore.Equal(history.BalanceAfter) {
		return nil
	}

	// Flushed after the transaction commits
	uow.EventBus().Publish(events.BalanceChangeEvent{
		Email:           history.Email,
		OldBalance:      history.BalanceBefore,
		NewBalance:      history.BalanceAfter,
		TransactionType: history.TransactionType,
		ChangeAmount:    history.ChangeAmount,
	})

	return nil
}
