package postgres

import (
	"context"
	"database/sql"
	"errors"

	"transit/internal/domain"
	"transit/internal/repository"
)

// AccountRepository is a PostgreSQL implementation of repository.AccountRepository.
type AccountRepository struct {
	q Querier
}

// NewAccountRepository creates a new PostgreSQL account repository.
func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{q: db}
}

// NewAccountRepositoryWithTx creates an account repository using a transaction.
func NewAccountRepositoryWithTx(tx *sql.Tx) *AccountRepository {
	return &AccountRepository{q: tx}
}

// Create persists a new account.
func (r *AccountRepository) Create(ctx context.Context, account *domain.BalanceAccount) error {
	query := `
		INSERT INTO balance_accounts (user_id, balance, update_time)
		VALUES ($1, $2, $3)
	`

	_, err := r.q.ExecContext(ctx, query,
		account.UserID,
		account.Balance,
		account.UpdateTime,
	)

	return err
}

// GetByUserID retrieves the user's account.
func (r *AccountRepository) GetByUserID(ctx context.Context, userID string) (*domain.BalanceAccount, error) {
	return r.get(ctx, userID, false)
}

// GetByUserIDForUpdate retrieves the user's account and locks its row until
// the surrounding transaction ends.
func (r *AccountRepository) GetByUserIDForUpdate(ctx context.Context, userID string) (*domain.BalanceAccount, error) {
	return r.get(ctx, userID, true)
}

func (r *AccountRepository) get(ctx context.Context, userID string, forUpdate bool) (*domain.BalanceAccount, error) {
	query := `SELECT user_id, balance, update_time FROM balance_accounts WHERE user_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var account domain.BalanceAccount
	err := r.q.QueryRowContext(ctx, query, userID).Scan(
		&account.UserID,
		&account.Balance,
		&account.UpdateTime,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return &account, nil
}

// Update writes the account's balance and update time.
func (r *AccountRepository) Update(ctx context.Context, account *domain.BalanceAccount) error {
	query := `
		UPDATE balance_accounts
		SET balance = $1, update_time = $2
		WHERE user_id = $3
	`

	result, err := r.q.ExecContext(ctx, query,
		account.Balance,
		account.UpdateTime,
		account.UserID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Ensure AccountRepository implements repository.AccountRepository.
var _ repository.AccountRepository = (*AccountRepository)(nil)
