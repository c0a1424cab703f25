package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TripStatus represents the current status of a trip.
type TripStatus string

const (
	TripStatusOpen          TripStatus = "OPEN"
	TripStatusSettled       TripStatus = "SETTLED"
	TripStatusPaymentFailed TripStatus = "PAYMENT_FAILED"
	TripStatusTravelAnomaly TripStatus = "TRAVEL_ANOMALY"
)

// Failure reasons recorded on trips that did not settle normally.
const (
	ReasonModeMismatch        = "mode mismatch"
	ReasonExitBeforeEntry     = "exit before entry"
	ReasonInsufficientBalance = "insufficient balance"
)

// Trip represents one tap-in-to-tap-out journey attempt.
// Entry fields are immutable after creation; exit and settlement fields are
// written exactly once when the trip leaves the OPEN state. A PAYMENT_FAILED
// trip may be written once more by repay, moving it to SETTLED.
type Trip struct {
	ID            string
	UserID        string
	Mode          string
	EntrySiteID   string
	EntryDeviceID string
	EntryTime     time.Time

	ExitSiteID   string
	ExitDeviceID string
	ExitTime     time.Time

	FareAmount     decimal.Decimal
	DiscountAmount decimal.Decimal
	ActualAmount   decimal.Decimal

	Status        TripStatus
	FailureReason string

	// SettlementTransactionID is set only when a balance debit occurred.
	SettlementTransactionID string
	ClearedAt               time.Time
}

// Open reports whether the trip has no exit recorded yet.
func (t *Trip) Open() bool {
	return t.Status == TripStatusOpen
}

// Repayable reports whether the trip is eligible for out-of-band repay.
func (t *Trip) Repayable() bool {
	return t.Status == TripStatusPaymentFailed
}

// Duration returns exit time minus entry time. It is meaningful for any
// closed trip, including anomalies, and may be negative for an
// exit-before-entry anomaly.
func (t *Trip) Duration() time.Duration {
	return t.ExitTime.Sub(t.EntryTime)
}
