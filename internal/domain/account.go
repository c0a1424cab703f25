package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInsufficientBalance is returned when a debit would drive the balance
// below zero. The account is left unchanged.
var ErrInsufficientBalance = errors.New("insufficient balance")

// BalanceAccount is the prepaid monetary account for one user.
// Mutated only through Credit and Debit.
type BalanceAccount struct {
	UserID     string
	Balance    decimal.Decimal
	UpdateTime time.Time
}

// NewBalanceAccount creates an empty account for the user.
func NewBalanceAccount(userID string, now time.Time) *BalanceAccount {
	return &BalanceAccount{
		UserID:     userID,
		Balance:    decimal.Zero,
		UpdateTime: now,
	}
}

// Credit adds amount to the balance.
func (a *BalanceAccount) Credit(amount decimal.Decimal, now time.Time) {
	a.Balance = a.Balance.Add(amount)
	a.UpdateTime = now
}

// Debit subtracts amount from the balance. It fails closed: if the balance
// would become negative the account is untouched and ErrInsufficientBalance
// is returned.
func (a *BalanceAccount) Debit(amount decimal.Decimal, now time.Time) error {
	next := a.Balance.Sub(amount)
	if next.IsNegative() {
		return ErrInsufficientBalance
	}
	a.Balance = next
	a.UpdateTime = now
	return nil
}
