package repository

import (
	"context"

	"transit/internal/domain"
)

// SiteRegistry is the read-only lookup into the external site registry.
type SiteRegistry interface {
	// GetByName resolves a station name to a site.
	// Returns nil if no such station exists.
	GetByName(ctx context.Context, name string) (*domain.Site, error)

	// GetByID retrieves a site by ID.
	GetByID(ctx context.Context, id string) (*domain.Site, error)
}

// FareRuleRegistry is the read-only lookup into the authoritative fare table.
type FareRuleRegistry interface {
	// GetActiveRule retrieves the active fare rule for the exact
	// (origin, destination, mode) tuple. Returns nil if none exists.
	GetActiveRule(ctx context.Context, originSiteID, destinationSiteID, mode string) (*domain.FareRule, error)
}
