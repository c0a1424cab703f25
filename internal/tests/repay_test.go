package tests

import (
	"context"
	"errors"
	"testing"

	"transit/internal/domain"
	"transit/internal/service"
)

// failPayment walks user-1 through entry and a payment-failed exit and
// returns the trip id. The recorded fare is 3.50.
func failPayment(t *testing.T, f *fixture) string {
	t.Helper()
	f.seedBalance("user-1", "1.00")
	tripID := f.enter(t, "user-1", "SUBWAY", "L1-S5", at(9, 0))

	result, err := f.svc.Exit(context.Background(), service.ExitRequest{
		UserID:  "user-1",
		Mode:    "SUBWAY",
		Station: "L1-S8",
		At:      at(9, 20),
	})
	if err != nil {
		t.Fatalf("exit failed: %v", err)
	}
	if result.Status != domain.TripStatusPaymentFailed {
		t.Fatalf("expected PAYMENT_FAILED, got %s", result.Status)
	}
	return tripID
}

func TestRepay_SettlesFailedTrip(t *testing.T) {
	t.Parallel()

	f := newFixture()
	tripID := failPayment(t, f)

	// Rider tops up to 5.00 total.
	account := f.store.GetAccount("user-1")
	account.Credit(mustDecimal("4.00"), at(10, 0))
	f.store.SeedAccount(account)

	result, err := f.svc.Repay(context.Background(), service.RepayRequest{
		UserID:  "user-1",
		TripID:  tripID,
		Amount:  mustDecimal("3.50"),
		PayTime: at(10, 5),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Trip.Status != domain.TripStatusSettled {
		t.Errorf("expected SETTLED, got %s", result.Trip.Status)
	}
	if result.TransactionID == "" {
		t.Error("expected a transaction id")
	}
	if !result.ClearedAt.Equal(at(10, 5)) {
		t.Errorf("expected clearedAt %v, got %v", at(10, 5), result.ClearedAt)
	}

	trip := f.store.GetTrip(tripID)
	if trip.FailureReason != "" {
		t.Errorf("failure reason must be cleared, got %q", trip.FailureReason)
	}
	balance := f.store.GetAccount("user-1").Balance
	if !balance.Equal(mustDecimal("1.50")) {
		t.Errorf("expected balance 1.50, got %s", balance)
	}
}

func TestRepay_AmountMismatchRejected(t *testing.T) {
	t.Parallel()

	f := newFixture()
	tripID := failPayment(t, f)

	for _, amount := range []string{"3.49", "3.51", "0.01", "100.00"} {
		_, err := f.svc.Repay(context.Background(), service.RepayRequest{
			UserID:  "user-1",
			TripID:  tripID,
			Amount:  mustDecimal(amount),
			PayTime: at(10, 0),
		})
		if !errors.Is(err, service.ErrRepayAmountMismatch) {
			t.Errorf("amount %s: expected ErrRepayAmountMismatch, got %v", amount, err)
		}
	}

	// No state change.
	trip := f.store.GetTrip(tripID)
	if trip.Status != domain.TripStatusPaymentFailed {
		t.Errorf("trip must stay PAYMENT_FAILED, got %s", trip.Status)
	}
	balance := f.store.GetAccount("user-1").Balance
	if !balance.Equal(mustDecimal("1.00")) {
		t.Errorf("expected balance 1.00, got %s", balance)
	}
}

func TestRepay_StillInsufficient(t *testing.T) {
	t.Parallel()

	f := newFixture()
	tripID := failPayment(t, f)

	_, err := f.svc.Repay(context.Background(), service.RepayRequest{
		UserID:  "user-1",
		TripID:  tripID,
		Amount:  mustDecimal("3.50"),
		PayTime: at(10, 0),
	})
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	trip := f.store.GetTrip(tripID)
	if trip.Status != domain.TripStatusPaymentFailed {
		t.Errorf("trip must stay PAYMENT_FAILED, got %s", trip.Status)
	}
}

func TestRepay_NotRepayable(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.seedBalance("user-1", "10.00")
	tripID := f.enter(t, "user-1", "SUBWAY", "L1-S5", at(9, 0))

	// Open trip: not repayable.
	_, err := f.svc.Repay(context.Background(), service.RepayRequest{
		UserID:  "user-1",
		TripID:  tripID,
		Amount:  mustDecimal("3.50"),
		PayTime: at(10, 0),
	})
	if !errors.Is(err, service.ErrNotRepayable) {
		t.Fatalf("expected ErrNotRepayable for open trip, got %v", err)
	}

	// Settle it; a settled trip is not repayable either.
	if _, err := f.svc.Exit(context.Background(), service.ExitRequest{
		UserID:  "user-1",
		Mode:    "SUBWAY",
		Station: "L1-S8",
		At:      at(9, 20),
	}); err != nil {
		t.Fatalf("exit failed: %v", err)
	}

	_, err = f.svc.Repay(context.Background(), service.RepayRequest{
		UserID:  "user-1",
		TripID:  tripID,
		Amount:  mustDecimal("3.50"),
		PayTime: at(10, 0),
	})
	if !errors.Is(err, service.ErrNotRepayable) {
		t.Fatalf("expected ErrNotRepayable for settled trip, got %v", err)
	}
}

func TestRepay_SecondRepayRejected(t *testing.T) {
	t.Parallel()

	f := newFixture()
	tripID := failPayment(t, f)

	account := f.store.GetAccount("user-1")
	account.Credit(mustDecimal("9.00"), at(10, 0))
	f.store.SeedAccount(account)

	repay := service.RepayRequest{
		UserID:  "user-1",
		TripID:  tripID,
		Amount:  mustDecimal("3.50"),
		PayTime: at(10, 5),
	}

	if _, err := f.svc.Repay(context.Background(), repay); err != nil {
		t.Fatalf("first repay failed: %v", err)
	}

	// Repay is not idempotent: the status precondition rejects a replay.
	_, err := f.svc.Repay(context.Background(), repay)
	if !errors.Is(err, service.ErrNotRepayable) {
		t.Fatalf("expected ErrNotRepayable, got %v", err)
	}

	balance := f.store.GetAccount("user-1").Balance
	if !balance.Equal(mustDecimal("6.50")) {
		t.Errorf("expected single debit leaving 6.50, got %s", balance)
	}
}

func TestRepay_ForeignTripDenied(t *testing.T) {
	t.Parallel()

	f := newFixture()
	tripID := failPayment(t, f)

	_, err := f.svc.Repay(context.Background(), service.RepayRequest{
		UserID:  "user-2",
		TripID:  tripID,
		Amount:  mustDecimal("3.50"),
		PayTime: at(10, 0),
	})
	if !errors.Is(err, service.ErrTripAccessDenied) {
		t.Fatalf("expected ErrTripAccessDenied, got %v", err)
	}
}

func TestRepay_UsesProvidedTransactionID(t *testing.T) {
	t.Parallel()

	f := newFixture()
	tripID := failPayment(t, f)

	account := f.store.GetAccount("user-1")
	account.Credit(mustDecimal("4.00"), at(10, 0))
	f.store.SeedAccount(account)

	result, err := f.svc.Repay(context.Background(), service.RepayRequest{
		UserID:        "user-1",
		TripID:        tripID,
		Amount:        mustDecimal("3.50"),
		PayTime:       at(10, 5),
		TransactionID: "ext-pay-42",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TransactionID != "ext-pay-42" {
		t.Errorf("expected external reference kept, got %s", result.TransactionID)
	}
}

func TestRepay_UnknownTrip(t *testing.T) {
	t.Parallel()

	f := newFixture()

	_, err := f.svc.Repay(context.Background(), service.RepayRequest{
		UserID:  "user-1",
		TripID:  "no-such-trip",
		Amount:  mustDecimal("3.50"),
		PayTime: at(10, 0),
	})
	if err == nil {
		t.Fatal("expected an error for an unknown trip")
	}
}
