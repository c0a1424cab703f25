package repository

import (
	"context"

	"transit/internal/domain"
)

// AccountRepository defines the persistence operations for balance accounts.
type AccountRepository interface {
	// Create persists a new account.
	Create(ctx context.Context, account *domain.BalanceAccount) error

	// GetByUserID retrieves the user's account.
	GetByUserID(ctx context.Context, userID string) (*domain.BalanceAccount, error)

	// GetByUserIDForUpdate retrieves the user's account with the row locked
	// for the duration of the surrounding transaction. This lock serializes
	// all balance-touching operations for one user.
	GetByUserIDForUpdate(ctx context.Context, userID string) (*domain.BalanceAccount, error)

	// Update writes the account's balance and update time.
	Update(ctx context.Context, account *domain.BalanceAccount) error
}
