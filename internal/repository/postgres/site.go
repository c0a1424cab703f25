package postgres

import (
	"context"
	"database/sql"
	"errors"

	"transit/internal/domain"
	"transit/internal/repository"
)

// SiteRegistry is a PostgreSQL implementation of repository.SiteRegistry.
// Sites and fare rules are reference data owned by an external registry;
// this service only ever reads them.
type SiteRegistry struct {
	q Querier
}

// NewSiteRegistry creates a new PostgreSQL site registry.
func NewSiteRegistry(db *sql.DB) *SiteRegistry {
	return &SiteRegistry{q: db}
}

// GetByName resolves a station name to a site.
// Returns nil if no such station exists.
func (r *SiteRegistry) GetByName(ctx context.Context, name string) (*domain.Site, error) {
	query := `
		SELECT id, name, line, mode, station_index
		FROM sites WHERE name = $1
	`

	site, err := r.scan(r.q.QueryRowContext(ctx, query, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return site, nil
}

// GetByID retrieves a site by ID.
func (r *SiteRegistry) GetByID(ctx context.Context, id string) (*domain.Site, error) {
	query := `
		SELECT id, name, line, mode, station_index
		FROM sites WHERE id = $1
	`

	site, err := r.scan(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return site, nil
}

func (r *SiteRegistry) scan(row rowScanner) (*domain.Site, error) {
	var site domain.Site
	if err := row.Scan(
		&site.ID,
		&site.Name,
		&site.Line,
		&site.Mode,
		&site.StationIndex,
	); err != nil {
		return nil, err
	}
	return &site, nil
}

// FareRuleRegistry is a PostgreSQL implementation of repository.FareRuleRegistry.
type FareRuleRegistry struct {
	q Querier
}

// NewFareRuleRegistry creates a new PostgreSQL fare rule registry.
func NewFareRuleRegistry(db *sql.DB) *FareRuleRegistry {
	return &FareRuleRegistry{q: db}
}

// GetActiveRule retrieves the active fare rule for the exact
// (origin, destination, mode) tuple. Returns nil if none exists.
func (r *FareRuleRegistry) GetActiveRule(ctx context.Context, originSiteID, destinationSiteID, mode string) (*domain.FareRule, error) {
	query := `
		SELECT origin_site_id, destination_site_id, mode, base_fare, distance, station_count, active
		FROM fare_rules
		WHERE origin_site_id = $1 AND destination_site_id = $2 AND mode = $3 AND active = TRUE
	`

	var rule domain.FareRule
	err := r.q.QueryRowContext(ctx, query, originSiteID, destinationSiteID, mode).Scan(
		&rule.OriginSiteID,
		&rule.DestinationSiteID,
		&rule.Mode,
		&rule.BaseFare,
		&rule.Distance,
		&rule.StationCount,
		&rule.Active,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &rule, nil
}

// Ensure the registries implement their repository interfaces.
var (
	_ repository.SiteRegistry     = (*SiteRegistry)(nil)
	_ repository.FareRuleRegistry = (*FareRuleRegistry)(nil)
)
