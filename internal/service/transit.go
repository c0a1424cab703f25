package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"transit/internal/domain"
	"transit/internal/fare"
	"transit/internal/redis"
	"transit/internal/repository"
)

// userLockTTL bounds how long a crashed request can shadow a user. The
// database locks remain the correctness guarantee; the Redis lock only sheds
// duplicate taps cheaply.
const userLockTTL = 10 * time.Second

// TransitService owns the trip lifecycle: tap-in, settlement at tap-out,
// and out-of-band repay of payment failures.
type TransitService struct {
	store repository.Store
	sites repository.SiteRegistry
	calc  *fare.Calculator
	locks redis.LockStoreInterface
}

// NewTransitService creates a new TransitService. locks may be nil, in which
// case per-user serialization relies on the database locks alone.
func NewTransitService(
	store repository.Store,
	sites repository.SiteRegistry,
	calc *fare.Calculator,
	locks redis.LockStoreInterface,
) *TransitService {
	return &TransitService{
		store: store,
		sites: sites,
		calc:  calc,
		locks: locks,
	}
}

// EntryRequest contains the parameters for a tap-in.
type EntryRequest struct {
	UserID   string
	Mode     string
	Station  string
	DeviceID string
	At       time.Time
}

// EntryResult contains the created trip and the resolved entry site.
type EntryResult struct {
	Trip *domain.Trip
	Site *domain.Site
}

// Entry records a tap-in and opens a new trip. At most one trip per user is
// open at any instant: the open-trip check and the insert run in one
// transaction, and the trips table's partial unique index rejects the loser
// of any race the check misses.
func (s *TransitService) Entry(ctx context.Context, req EntryRequest) (*EntryResult, error) {
	if err := validateTap(req.UserID, req.Mode, req.Station, req.At); err != nil {
		return nil, err
	}

	site, err := s.sites.GetByName(ctx, req.Station)
	if err != nil {
		return nil, err
	}
	if site == nil {
		return nil, ErrUnknownStation
	}

	unlock, err := s.lockUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	trip := &domain.Trip{
		ID:            uuid.New().String(),
		UserID:        req.UserID,
		Mode:          normalizeMode(req.Mode),
		EntrySiteID:   site.ID,
		EntryDeviceID: req.DeviceID,
		EntryTime:     req.At,
		Status:        domain.TripStatusOpen,
	}

	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		existing, err := tx.Trips().GetOpenByUserID(ctx, req.UserID)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrOpenTripConflict
		}

		return tx.Trips().Create(ctx, trip)
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateOpenTrip) {
			return nil, ErrOpenTripConflict
		}
		return nil, err
	}

	return &EntryResult{Trip: trip, Site: site}, nil
}

// ExitRequest contains the parameters for a tap-out.
type ExitRequest struct {
	UserID   string
	Mode     string
	Station  string
	DeviceID string
	At       time.Time
}

// SettlementResult is the outcome of a tap-out. Status distinguishes the
// three business outcomes; none of them is an error. Duration is reported
// whenever an open trip was found, whatever the outcome.
type SettlementResult struct {
	Trip          *domain.Trip
	Status        domain.TripStatus
	Reason        string
	Fare          decimal.Decimal
	Duration      time.Duration
	TransactionID string
}

// Exit settles the user's open trip. The open-trip read, fare computation,
// balance debit, and trip write share one transaction; the trip row lock is
// taken before the balance row lock. Travel anomalies short-circuit before
// any balance interaction.
func (s *TransitService) Exit(ctx context.Context, req ExitRequest) (*SettlementResult, error) {
	if err := validateTap(req.UserID, req.Mode, req.Station, req.At); err != nil {
		return nil, err
	}

	unlock, err := s.lockUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var result *SettlementResult
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		trip, err := tx.Trips().GetOpenByUserIDForUpdate(ctx, req.UserID)
		if err != nil {
			return err
		}
		if trip == nil {
			return ErrNoOpenTrip
		}

		trip.ExitDeviceID = req.DeviceID
		trip.ExitTime = req.At

		if normalizeMode(req.Mode) != trip.Mode {
			return s.closeAnomaly(ctx, tx, trip, domain.ReasonModeMismatch, &result)
		}

		if req.At.Before(trip.EntryTime) {
			return s.closeAnomaly(ctx, tx, trip, domain.ReasonExitBeforeEntry, &result)
		}

		exitSite, err := s.sites.GetByName(ctx, req.Station)
		if err != nil {
			return err
		}
		if exitSite == nil {
			// Rolls back: the trip stays open and the rider can retry
			// from a resolvable station.
			return ErrUnknownStation
		}

		entrySite, err := s.sites.GetByID(ctx, trip.EntrySiteID)
		if err != nil {
			return err
		}

		amount, err := s.calc.Fare(ctx, entrySite, exitSite, trip.Mode)
		if err != nil {
			return err
		}

		trip.ExitSiteID = exitSite.ID
		trip.FareAmount = amount

		if err := s.debit(ctx, tx, trip.UserID, amount); err != nil {
			if !errors.Is(err, domain.ErrInsufficientBalance) {
				return err
			}
			trip.Status = domain.TripStatusPaymentFailed
			trip.FailureReason = domain.ReasonInsufficientBalance
		} else {
			trip.Status = domain.TripStatusSettled
			trip.DiscountAmount = decimal.Zero
			trip.ActualAmount = amount
			trip.SettlementTransactionID = uuid.New().String()
		}

		if err := tx.Trips().Update(ctx, trip); err != nil {
			return err
		}

		result = &SettlementResult{
			Trip:          trip,
			Status:        trip.Status,
			Reason:        trip.FailureReason,
			Fare:          amount,
			Duration:      trip.Duration(),
			TransactionID: trip.SettlementTransactionID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// closeAnomaly writes the single terminal update for a travel anomaly.
// No fare is computed and the balance is never touched.
func (s *TransitService) closeAnomaly(ctx context.Context, tx repository.Store, trip *domain.Trip, reason string, result **SettlementResult) error {
	trip.Status = domain.TripStatusTravelAnomaly
	trip.FailureReason = reason

	if err := tx.Trips().Update(ctx, trip); err != nil {
		return err
	}

	*result = &SettlementResult{
		Trip:     trip,
		Status:   trip.Status,
		Reason:   reason,
		Duration: trip.Duration(),
	}
	return nil
}

// debit charges the user's balance inside the settlement transaction. A
// missing account debits like an empty one.
func (s *TransitService) debit(ctx context.Context, tx repository.Store, userID string, amount decimal.Decimal) error {
	account, err := tx.Accounts().GetByUserIDForUpdate(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrInsufficientBalance
		}
		return err
	}

	if err := account.Debit(amount, time.Now()); err != nil {
		return err
	}

	return tx.Accounts().Update(ctx, account)
}

// RepayRequest contains the parameters for settling a payment failure
// out-of-band. TransactionID optionally carries the external payment
// reference; when empty, a settlement transaction id is generated.
type RepayRequest struct {
	UserID        string
	TripID        string
	Amount        decimal.Decimal
	PayTime       time.Time
	TransactionID string
}

// RepayResult is the outcome of a successful repay.
type RepayResult struct {
	Trip          *domain.Trip
	TransactionID string
	ClearedAt     time.Time
}

// Repay settles a PAYMENT_FAILED trip once funds are available. The amount
// must equal the recorded fare exactly. A second repay of the same trip
// fails the status precondition; repay is not idempotent by design.
func (s *TransitService) Repay(ctx context.Context, req RepayRequest) (*RepayResult, error) {
	if req.UserID == "" {
		return nil, ErrInvalidUserID
	}
	if req.TripID == "" {
		return nil, ErrInvalidTripID
	}
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if req.PayTime.IsZero() {
		return nil, ErrInvalidTimestamp
	}

	unlock, err := s.lockUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var result *RepayResult
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		trip, err := tx.Trips().GetByIDForUpdate(ctx, req.TripID)
		if err != nil {
			return err
		}
		if trip.UserID != req.UserID {
			return ErrTripAccessDenied
		}
		if !trip.Repayable() {
			return ErrNotRepayable
		}
		if !req.Amount.Equal(trip.FareAmount) {
			return ErrRepayAmountMismatch
		}

		if err := s.debit(ctx, tx, trip.UserID, req.Amount); err != nil {
			return err
		}

		transactionID := req.TransactionID
		if transactionID == "" {
			transactionID = uuid.New().String()
		}

		trip.Status = domain.TripStatusSettled
		trip.FailureReason = ""
		trip.DiscountAmount = decimal.Zero
		trip.ActualAmount = req.Amount
		trip.SettlementTransactionID = transactionID
		trip.ClearedAt = req.PayTime

		if err := tx.Trips().Update(ctx, trip); err != nil {
			return err
		}

		result = &RepayResult{
			Trip:          trip,
			TransactionID: transactionID,
			ClearedAt:     req.PayTime,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Records retrieves the user's trips, most recent entry first.
func (s *TransitService) Records(ctx context.Context, userID string, limit int) ([]*domain.Trip, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}

	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	return s.store.Trips().ListByUserID(ctx, userID, limit)
}

// Detail retrieves one of the user's trips by ID.
func (s *TransitService) Detail(ctx context.Context, userID, tripID string) (*domain.Trip, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}
	if tripID == "" {
		return nil, ErrInvalidTripID
	}

	trip, err := s.store.Trips().GetByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if trip.UserID != userID {
		return nil, ErrTripAccessDenied
	}

	return trip, nil
}

// lockUser takes the per-user Redis lock when a lock store is configured.
// The returned func releases it and is safe to call unconditionally.
func (s *TransitService) lockUser(ctx context.Context, userID string) (func(), error) {
	if s.locks == nil {
		return func() {}, nil
	}

	ok, err := s.locks.AcquireUserLock(ctx, userID, userLockTTL)
	if err != nil {
		// Redis being down must not take tap processing with it.
		return func() {}, nil
	}
	if !ok {
		return func() {}, ErrUserBusy
	}

	return func() {
		_ = s.locks.ReleaseUserLock(context.WithoutCancel(ctx), userID)
	}, nil
}

func validateTap(userID, mode, station string, at time.Time) error {
	if userID == "" {
		return ErrInvalidUserID
	}
	if strings.TrimSpace(mode) == "" {
		return ErrInvalidMode
	}
	if strings.TrimSpace(station) == "" {
		return ErrInvalidStation
	}
	if at.IsZero() {
		return ErrInvalidTimestamp
	}
	return nil
}

func normalizeMode(mode string) string {
	return strings.ToUpper(strings.TrimSpace(mode))
}
