package service

import "errors"

var (
	// ErrInvalidUserID is returned when the caller identity is empty.
	ErrInvalidUserID = errors.New("invalid user id")

	// ErrInvalidMode is returned when the travel mode is empty.
	ErrInvalidMode = errors.New("invalid travel mode")

	// ErrInvalidStation is returned when the station name is empty.
	ErrInvalidStation = errors.New("invalid station name")

	// ErrUnknownStation is returned when a station name does not resolve to
	// a site in the registry.
	ErrUnknownStation = errors.New("unknown station")

	// ErrInvalidTimestamp is returned when a tap timestamp is missing.
	ErrInvalidTimestamp = errors.New("invalid timestamp")

	// ErrOpenTripConflict is returned when the user already has an open
	// trip. The existing trip is untouched; the rider must exit first.
	ErrOpenTripConflict = errors.New("user already has an open trip")

	// ErrNoOpenTrip is returned when exit finds no open trip for the user.
	ErrNoOpenTrip = errors.New("no open trip for user")

	// ErrInvalidTripID is returned when trip ID is empty.
	ErrInvalidTripID = errors.New("invalid trip id")

	// ErrInvalidAmount is returned when a monetary amount is not positive.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrNotRepayable is returned when repay targets a trip that is not in
	// the PAYMENT_FAILED state.
	ErrNotRepayable = errors.New("trip is not repayable")

	// ErrRepayAmountMismatch is returned when the repay amount differs from
	// the recorded fare. Partial and over-payments are rejected.
	ErrRepayAmountMismatch = errors.New("repay amount does not match recorded fare")

	// ErrTripAccessDenied is returned when a trip belongs to another user.
	ErrTripAccessDenied = errors.New("trip belongs to another user")

	// ErrUserBusy is returned when another request for the same user is
	// already in flight.
	ErrUserBusy = errors.New("another request for this user is in flight")
)
