package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"transit/internal/domain"
	"transit/internal/service"
)

// enter opens a trip for the user and returns its id.
func (f *fixture) enter(t *testing.T, userID, mode, station string, when time.Time) string {
	t.Helper()
	result, err := f.svc.Entry(context.Background(), service.EntryRequest{
		UserID:  userID,
		Mode:    mode,
		Station: station,
		At:      when,
	})
	if err != nil {
		t.Fatalf("entry failed: %v", err)
	}
	return result.Trip.ID
}

func TestExit_Settles(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.seedBalance("user-1", "10.00")
	tripID := f.enter(t, "user-1", "SUBWAY", "L1-S5", at(9, 0))

	result, err := f.svc.Exit(context.Background(), service.ExitRequest{
		UserID:  "user-1",
		Mode:    "SUBWAY",
		Station: "L1-S8",
		At:      at(9, 20),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 3 stations on the same line: 2.00 + 0.5*3.
	if !result.Fare.Equal(mustDecimal("3.50")) {
		t.Errorf("expected fare 3.50, got %s", result.Fare)
	}
	if result.Status != domain.TripStatusSettled {
		t.Errorf("expected SETTLED, got %s", result.Status)
	}
	if result.Duration != 20*time.Minute {
		t.Errorf("expected 20m duration, got %s", result.Duration)
	}
	if result.TransactionID == "" {
		t.Error("expected a settlement transaction id")
	}

	account := f.store.GetAccount("user-1")
	if !account.Balance.Equal(mustDecimal("6.50")) {
		t.Errorf("expected balance 6.50, got %s", account.Balance)
	}

	trip := f.store.GetTrip(tripID)
	if trip.Status != domain.TripStatusSettled {
		t.Errorf("expected persisted SETTLED, got %s", trip.Status)
	}
	if trip.ExitSiteID != "site-l1-8" {
		t.Errorf("expected exit site site-l1-8, got %s", trip.ExitSiteID)
	}
	if !trip.ActualAmount.Equal(mustDecimal("3.50")) {
		t.Errorf("expected actual amount 3.50, got %s", trip.ActualAmount)
	}
}

func TestExit_InsufficientBalance(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.seedBalance("user-1", "1.00")
	tripID := f.enter(t, "user-1", "SUBWAY", "L1-S5", at(9, 0))

	result, err := f.svc.Exit(context.Background(), service.ExitRequest{
		UserID:  "user-1",
		Mode:    "SUBWAY",
		Station: "L1-S8",
		At:      at(9, 20),
	})
	if err != nil {
		t.Fatalf("insufficient balance is a business outcome, not an error: %v", err)
	}

	if result.Status != domain.TripStatusPaymentFailed {
		t.Errorf("expected PAYMENT_FAILED, got %s", result.Status)
	}
	if result.Reason != domain.ReasonInsufficientBalance {
		t.Errorf("expected reason %q, got %q", domain.ReasonInsufficientBalance, result.Reason)
	}
	if !result.Fare.Equal(mustDecimal("3.50")) {
		t.Errorf("expected reported fee 3.50, got %s", result.Fare)
	}

	// Balance untouched, fare recorded for later repay.
	account := f.store.GetAccount("user-1")
	if !account.Balance.Equal(mustDecimal("1.00")) {
		t.Errorf("expected balance 1.00, got %s", account.Balance)
	}
	trip := f.store.GetTrip(tripID)
	if !trip.FareAmount.Equal(mustDecimal("3.50")) {
		t.Errorf("expected recorded fare 3.50, got %s", trip.FareAmount)
	}
	if trip.SettlementTransactionID != "" {
		t.Error("no transaction id without a debit")
	}
}

func TestExit_MissingAccountIsPaymentFailure(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.enter(t, "user-1", "SUBWAY", "L1-S5", at(9, 0))

	result, err := f.svc.Exit(context.Background(), service.ExitRequest{
		UserID:  "user-1",
		Mode:    "SUBWAY",
		Station: "L1-S8",
		At:      at(9, 20),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != domain.TripStatusPaymentFailed {
		t.Errorf("expected PAYMENT_FAILED, got %s", result.Status)
	}
}

func TestExit_ModeMismatch(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.seedBalance("user-1", "50.00")
	tripID := f.enter(t, "user-1", "SUBWAY", "L1-S5", at(9, 0))

	result, err := f.svc.Exit(context.Background(), service.ExitRequest{
		UserID:  "user-1",
		Mode:    "BUS",
		Station: "B-S1",
		At:      at(9, 20),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Status != domain.TripStatusTravelAnomaly {
		t.Errorf("expected TRAVEL_ANOMALY, got %s", result.Status)
	}
	if result.Reason != domain.ReasonModeMismatch {
		t.Errorf("expected reason %q, got %q", domain.ReasonModeMismatch, result.Reason)
	}
	if result.Duration != 20*time.Minute {
		t.Errorf("duration must be reported for anomalies, got %s", result.Duration)
	}

	// Anomalies never charge, even with plenty of balance.
	account := f.store.GetAccount("user-1")
	if !account.Balance.Equal(mustDecimal("50.00")) {
		t.Errorf("expected balance 50.00, got %s", account.Balance)
	}
	trip := f.store.GetTrip(tripID)
	if !trip.FareAmount.IsZero() {
		t.Errorf("no fare should be computed, got %s", trip.FareAmount)
	}
}

func TestExit_ExitBeforeEntry(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.seedBalance("user-1", "50.00")
	f.enter(t, "user-1", "SUBWAY", "L1-S5", at(9, 0))

	result, err := f.svc.Exit(context.Background(), service.ExitRequest{
		UserID:  "user-1",
		Mode:    "SUBWAY",
		Station: "L1-S8",
		At:      at(8, 59),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Status != domain.TripStatusTravelAnomaly {
		t.Errorf("expected TRAVEL_ANOMALY, got %s", result.Status)
	}
	if result.Reason != domain.ReasonExitBeforeEntry {
		t.Errorf("expected reason %q, got %q", domain.ReasonExitBeforeEntry, result.Reason)
	}
	if result.Duration != -time.Minute {
		t.Errorf("expected -1m duration, got %s", result.Duration)
	}

	account := f.store.GetAccount("user-1")
	if !account.Balance.Equal(mustDecimal("50.00")) {
		t.Errorf("expected balance unchanged, got %s", account.Balance)
	}
}

func TestExit_NoOpenTrip(t *testing.T) {
	t.Parallel()

	f := newFixture()

	_, err := f.svc.Exit(context.Background(), service.ExitRequest{
		UserID:  "user-1",
		Mode:    "SUBWAY",
		Station: "L1-S8",
		At:      at(9, 20),
	})
	if !errors.Is(err, service.ErrNoOpenTrip) {
		t.Fatalf("expected ErrNoOpenTrip, got %v", err)
	}
}

func TestExit_UnknownStationLeavesTripOpen(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.seedBalance("user-1", "10.00")
	tripID := f.enter(t, "user-1", "SUBWAY", "L1-S5", at(9, 0))

	_, err := f.svc.Exit(context.Background(), service.ExitRequest{
		UserID:  "user-1",
		Mode:    "SUBWAY",
		Station: "NOWHERE",
		At:      at(9, 20),
	})
	if !errors.Is(err, service.ErrUnknownStation) {
		t.Fatalf("expected ErrUnknownStation, got %v", err)
	}

	// Nothing persisted; the rider retries from a resolvable station.
	trip := f.store.GetTrip(tripID)
	if trip.Status != domain.TripStatusOpen {
		t.Errorf("trip must stay OPEN, got %s", trip.Status)
	}
	if !trip.ExitTime.IsZero() {
		t.Error("no exit time should be recorded")
	}

	result, err := f.svc.Exit(context.Background(), service.ExitRequest{
		UserID:  "user-1",
		Mode:    "SUBWAY",
		Station: "L1-S8",
		At:      at(9, 25),
	})
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if result.Status != domain.TripStatusSettled {
		t.Errorf("expected SETTLED on retry, got %s", result.Status)
	}
}

func TestExit_StationCapBoundsFare(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.seedBalance("user-1", "20.00")
	f.enter(t, "user-1", "SUBWAY", "L1-S1", at(9, 0))

	// 25 stations apart on the same line: capped at 2.00 + 0.5*20.
	result, err := f.svc.Exit(context.Background(), service.ExitRequest{
		UserID:  "user-1",
		Mode:    "SUBWAY",
		Station: "L1-S26",
		At:      at(10, 0),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Fare.Equal(mustDecimal("12.00")) {
		t.Errorf("expected capped fare 12.00, got %s", result.Fare)
	}
}

func TestExit_CrossLineTransferSurcharge(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.seedBalance("user-1", "20.00")
	f.enter(t, "user-1", "SUBWAY", "L1-S1", at(9, 0))

	// Different lines: flat 2.00 + 2.00, independent of distance.
	result, err := f.svc.Exit(context.Background(), service.ExitRequest{
		UserID:  "user-1",
		Mode:    "SUBWAY",
		Station: "L2-S1",
		At:      at(9, 40),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Fare.Equal(mustDecimal("4.00")) {
		t.Errorf("expected transfer fare 4.00, got %s", result.Fare)
	}
}

func TestExit_ExplicitFareRuleWins(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.seedBalance("user-1", "20.00")
	f.rules.AddRule(&domain.FareRule{
		OriginSiteID:      "site-l1-5",
		DestinationSiteID: "site-l1-8",
		Mode:              "SUBWAY",
		BaseFare:          mustDecimal("7.25"),
		StationCount:      3,
		Active:            true,
	})
	f.enter(t, "user-1", "SUBWAY", "L1-S5", at(9, 0))

	result, err := f.svc.Exit(context.Background(), service.ExitRequest{
		UserID:  "user-1",
		Mode:    "SUBWAY",
		Station: "L1-S8",
		At:      at(9, 20),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Fare.Equal(mustDecimal("7.25")) {
		t.Errorf("expected rule fare 7.25, got %s", result.Fare)
	}

	account := f.store.GetAccount("user-1")
	if !account.Balance.Equal(mustDecimal("12.75")) {
		t.Errorf("expected balance 12.75, got %s", account.Balance)
	}
}

func TestExit_StorageFailureLeavesNoPartialState(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.seedBalance("user-1", "10.00")
	tripID := f.enter(t, "user-1", "SUBWAY", "L1-S5", at(9, 0))

	f.store.TripUpdateError = errors.New("storage unavailable")

	_, err := f.svc.Exit(context.Background(), service.ExitRequest{
		UserID:  "user-1",
		Mode:    "SUBWAY",
		Station: "L1-S8",
		At:      at(9, 20),
	})
	if err == nil {
		t.Fatal("expected a storage error")
	}

	// The debit rolled back with the failed trip write.
	account := f.store.GetAccount("user-1")
	if !account.Balance.Equal(mustDecimal("10.00")) {
		t.Errorf("expected balance 10.00 after rollback, got %s", account.Balance)
	}
	trip := f.store.GetTrip(tripID)
	if trip.Status != domain.TripStatusOpen {
		t.Errorf("trip must stay OPEN after rollback, got %s", trip.Status)
	}
}

func TestExit_FareDeterminism(t *testing.T) {
	t.Parallel()

	f := newFixture()
	ctx := context.Background()

	var fares []decimal.Decimal
	for i := 0; i < 3; i++ {
		f.seedBalance("user-1", "10.00")
		f.enter(t, "user-1", "SUBWAY", "L1-S5", at(9, 0))
		result, err := f.svc.Exit(ctx, service.ExitRequest{
			UserID:  "user-1",
			Mode:    "SUBWAY",
			Station: "L1-S8",
			At:      at(9, 20),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		fares = append(fares, result.Fare)
	}

	for _, fareAmount := range fares[1:] {
		if !fareAmount.Equal(fares[0]) {
			t.Errorf("fare not deterministic: %s vs %s", fareAmount, fares[0])
		}
	}
}
