package repository

import (
	"context"

	"transit/internal/domain"
)

// TripRepository defines the persistence operations for trips.
// Trips are never deleted.
type TripRepository interface {
	// Create persists a new trip. Returns ErrDuplicateOpenTrip if the user
	// already has an OPEN trip.
	Create(ctx context.Context, trip *domain.Trip) error

	// GetByID retrieves a trip by ID.
	GetByID(ctx context.Context, id string) (*domain.Trip, error)

	// GetOpenByUserID retrieves the user's OPEN trip.
	// Returns nil if no open trip exists.
	GetOpenByUserID(ctx context.Context, userID string) (*domain.Trip, error)

	// GetOpenByUserIDForUpdate is GetOpenByUserID with the row locked for
	// the duration of the surrounding transaction.
	GetOpenByUserIDForUpdate(ctx context.Context, userID string) (*domain.Trip, error)

	// GetByIDForUpdate retrieves a trip by ID with the row locked for the
	// duration of the surrounding transaction.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Trip, error)

	// Update updates an existing trip.
	Update(ctx context.Context, trip *domain.Trip) error

	// ListByUserID retrieves the user's trips, most recent entry first.
	ListByUserID(ctx context.Context, userID string, limit int) ([]*domain.Trip, error)
}
