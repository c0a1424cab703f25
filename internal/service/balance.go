package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"transit/internal/domain"
	"transit/internal/repository"
)

// BalanceService is the ledger over prepaid accounts. Settlement and repay
// debit through the same account rows inside their own transactions; this
// service covers the standalone credit and read paths.
type BalanceService struct {
	store repository.Store
}

// NewBalanceService creates a new BalanceService.
func NewBalanceService(store repository.Store) *BalanceService {
	return &BalanceService{store: store}
}

// Topup credits the user's account, creating it on first use.
func (s *BalanceService) Topup(ctx context.Context, userID string, amount decimal.Decimal) (*domain.BalanceAccount, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var account *domain.BalanceAccount
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		now := time.Now()

		existing, err := tx.Accounts().GetByUserIDForUpdate(ctx, userID)
		if err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				return err
			}
			account = domain.NewBalanceAccount(userID, now)
			account.Credit(amount, now)
			return tx.Accounts().Create(ctx, account)
		}

		existing.Credit(amount, now)
		account = existing
		return tx.Accounts().Update(ctx, existing)
	})
	if err != nil {
		return nil, err
	}

	return account, nil
}

// Balance retrieves the user's account. A user who never topped up reads as
// an empty account; nothing is persisted.
func (s *BalanceService) Balance(ctx context.Context, userID string) (*domain.BalanceAccount, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}

	account, err := s.store.Accounts().GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.NewBalanceAccount(userID, time.Time{}), nil
		}
		return nil, err
	}

	return account, nil
}
