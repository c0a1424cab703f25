package repository

import "context"

// Store bundles the mutable repositories behind one transaction boundary.
// WithinTx runs fn against repositories scoped to a single transaction:
// every read and write inside fn commits atomically or not at all.
//
// Row locks taken inside fn are held until the transaction ends. Callers
// must acquire locks in a fixed order (trip row before balance row) so
// that concurrent settlements and repays cannot deadlock.
type Store interface {
	Trips() TripRepository
	Accounts() AccountRepository

	WithinTx(ctx context.Context, fn func(tx Store) error) error
}
