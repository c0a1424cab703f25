package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"transit/internal/repository"
)

// Store is a PostgreSQL implementation of repository.Store. The zero-value
// pattern mirrors the repositories: a Store built over *sql.DB runs each
// repository call on its own connection, while WithinTx rebinds all
// repositories to one transaction.
type Store struct {
	db       *sql.DB
	trips    repository.TripRepository
	accounts repository.AccountRepository
}

// NewStore creates a new PostgreSQL store.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:       db,
		trips:    NewTripRepository(db),
		accounts: NewAccountRepository(db),
	}
}

// Trips returns the trip repository.
func (s *Store) Trips() repository.TripRepository {
	return s.trips
}

// Accounts returns the account repository.
func (s *Store) Accounts() repository.AccountRepository {
	return s.accounts
}

// WithinTx runs fn against transaction-scoped repositories. The transaction
// commits when fn returns nil and rolls back otherwise, so no partial trip
// or balance mutation is ever observable.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	txStore := &txStore{
		trips:    NewTripRepositoryWithTx(sqlTx),
		accounts: NewAccountRepositoryWithTx(sqlTx),
	}

	if err := fn(txStore); err != nil {
		_ = sqlTx.Rollback()
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// txStore is a Store bound to a single open transaction. Nested WithinTx is
// not supported; the services keep one transaction per operation.
type txStore struct {
	trips    repository.TripRepository
	accounts repository.AccountRepository
}

func (s *txStore) Trips() repository.TripRepository {
	return s.trips
}

func (s *txStore) Accounts() repository.AccountRepository {
	return s.accounts
}

func (s *txStore) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return fn(s)
}

// Ensure both stores implement repository.Store.
var (
	_ repository.Store = (*Store)(nil)
	_ repository.Store = (*txStore)(nil)
)
