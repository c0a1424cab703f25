package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"transit/internal/domain"
	"transit/internal/repository"
)

// uniqueViolation is the PostgreSQL error code for unique-constraint
// violations. The trips table carries a partial unique index on (user_id)
// WHERE status = 'OPEN'; violating it means a concurrent entry won the race.
const uniqueViolation = "23505"

const tripColumns = `
	id, user_id, mode, entry_site_id, entry_device_id, entry_time,
	exit_site_id, exit_device_id, exit_time,
	fare_amount, discount_amount, actual_amount,
	status, failure_reason, settlement_transaction_id, cleared_at
`

// TripRepository is a PostgreSQL implementation of repository.TripRepository.
type TripRepository struct {
	q Querier
}

// NewTripRepository creates a new PostgreSQL trip repository.
func NewTripRepository(db *sql.DB) *TripRepository {
	return &TripRepository{q: db}
}

// NewTripRepositoryWithTx creates a trip repository using a transaction.
func NewTripRepositoryWithTx(tx *sql.Tx) *TripRepository {
	return &TripRepository{q: tx}
}

// Create persists a new trip.
func (r *TripRepository) Create(ctx context.Context, trip *domain.Trip) error {
	query := `
		INSERT INTO trips (` + tripColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := r.q.ExecContext(ctx, query,
		trip.ID,
		trip.UserID,
		trip.Mode,
		trip.EntrySiteID,
		nullString(trip.EntryDeviceID),
		trip.EntryTime,
		nullString(trip.ExitSiteID),
		nullString(trip.ExitDeviceID),
		nullTime(trip.ExitTime),
		nullDecimal(trip.FareAmount, fareRecorded(trip)),
		nullDecimal(trip.DiscountAmount, trip.Status == domain.TripStatusSettled),
		nullDecimal(trip.ActualAmount, trip.Status == domain.TripStatusSettled),
		trip.Status,
		nullString(trip.FailureReason),
		nullString(trip.SettlementTransactionID),
		nullTime(trip.ClearedAt),
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return repository.ErrDuplicateOpenTrip
		}
		return err
	}

	return nil
}

// GetByID retrieves a trip by ID.
func (r *TripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1`

	trip, err := scanTrip(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return trip, nil
}

// GetByIDForUpdate retrieves a trip by ID and locks its row until the
// surrounding transaction ends.
func (r *TripRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1 FOR UPDATE`

	trip, err := scanTrip(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return trip, nil
}

// GetOpenByUserID retrieves the user's OPEN trip.
// Returns nil if no open trip exists.
func (r *TripRepository) GetOpenByUserID(ctx context.Context, userID string) (*domain.Trip, error) {
	return r.openByUser(ctx, userID, false)
}

// GetOpenByUserIDForUpdate retrieves the user's OPEN trip and locks its row
// until the surrounding transaction ends.
func (r *TripRepository) GetOpenByUserIDForUpdate(ctx context.Context, userID string) (*domain.Trip, error) {
	return r.openByUser(ctx, userID, true)
}

func (r *TripRepository) openByUser(ctx context.Context, userID string, forUpdate bool) (*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE user_id = $1 AND status = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	trip, err := scanTrip(r.q.QueryRowContext(ctx, query, userID, domain.TripStatusOpen))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return trip, nil
}

// Update updates an existing trip.
func (r *TripRepository) Update(ctx context.Context, trip *domain.Trip) error {
	query := `
		UPDATE trips
		SET exit_site_id = $1, exit_device_id = $2, exit_time = $3,
		    fare_amount = $4, discount_amount = $5, actual_amount = $6,
		    status = $7, failure_reason = $8,
		    settlement_transaction_id = $9, cleared_at = $10
		WHERE id = $11
	`

	result, err := r.q.ExecContext(ctx, query,
		nullString(trip.ExitSiteID),
		nullString(trip.ExitDeviceID),
		nullTime(trip.ExitTime),
		nullDecimal(trip.FareAmount, fareRecorded(trip)),
		nullDecimal(trip.DiscountAmount, trip.Status == domain.TripStatusSettled),
		nullDecimal(trip.ActualAmount, trip.Status == domain.TripStatusSettled),
		trip.Status,
		nullString(trip.FailureReason),
		nullString(trip.SettlementTransactionID),
		nullTime(trip.ClearedAt),
		trip.ID,
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

// ListByUserID retrieves the user's trips, most recent entry first.
func (r *TripRepository) ListByUserID(ctx context.Context, userID string, limit int) ([]*domain.Trip, error) {
	query := `
		SELECT ` + tripColumns + `
		FROM trips WHERE user_id = $1
		ORDER BY entry_time DESC LIMIT $2
	`

	rows, err := r.q.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trips []*domain.Trip
	for rows.Next() {
		trip, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, trip)
	}

	return trips, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrip(row rowScanner) (*domain.Trip, error) {
	var trip domain.Trip
	var entryDeviceID, exitSiteID, exitDeviceID sql.NullString
	var failureReason, settlementTxID sql.NullString
	var exitTime, clearedAt sql.NullTime
	var fare, discount, actual decimal.NullDecimal

	err := row.Scan(
		&trip.ID,
		&trip.UserID,
		&trip.Mode,
		&trip.EntrySiteID,
		&entryDeviceID,
		&trip.EntryTime,
		&exitSiteID,
		&exitDeviceID,
		&exitTime,
		&fare,
		&discount,
		&actual,
		&trip.Status,
		&failureReason,
		&settlementTxID,
		&clearedAt,
	)
	if err != nil {
		return nil, err
	}

	trip.EntryDeviceID = entryDeviceID.String
	trip.ExitSiteID = exitSiteID.String
	trip.ExitDeviceID = exitDeviceID.String
	trip.FailureReason = failureReason.String
	trip.SettlementTransactionID = settlementTxID.String
	if exitTime.Valid {
		trip.ExitTime = exitTime.Time
	}
	if clearedAt.Valid {
		trip.ClearedAt = clearedAt.Time
	}
	trip.FareAmount = fare.Decimal
	trip.DiscountAmount = discount.Decimal
	trip.ActualAmount = actual.Decimal

	return &trip, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func nullDecimal(d decimal.Decimal, valid bool) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: valid}
}

// fareRecorded reports whether the trip carries a computed fare: settled
// trips and payment failures do, travel anomalies and open trips do not.
func fareRecorded(trip *domain.Trip) bool {
	return trip.Status == domain.TripStatusSettled || trip.Status == domain.TripStatusPaymentFailed
}

// Ensure TripRepository implements repository.TripRepository.
var _ repository.TripRepository = (*TripRepository)(nil)
