package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"transit/internal/domain"
	"transit/internal/repository"
)

// Site reference data changes rarely; a longer TTL keeps the tap-in hot
// path off Postgres.
const siteCacheTTL = 5 * time.Minute

const (
	siteNamePrefix = "cache:site:name:"
	siteIDPrefix   = "cache:site:id:"
)

// cachedSite is the cache representation of a site.
type cachedSite struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Line         string `json:"line"`
	Mode         string `json:"mode"`
	StationIndex int    `json:"station_index"`
}

// CachedSiteRegistry is a read-through cache in front of the site registry.
// Cache failures degrade to direct lookups, never to request failures.
type CachedSiteRegistry struct {
	client *redis.Client
	next   repository.SiteRegistry
}

// NewCachedSiteRegistry creates a new cached site registry.
func NewCachedSiteRegistry(client *redis.Client, next repository.SiteRegistry) *CachedSiteRegistry {
	return &CachedSiteRegistry{client: client, next: next}
}

// GetByName resolves a station name to a site.
// Returns nil if no such station exists.
func (r *CachedSiteRegistry) GetByName(ctx context.Context, name string) (*domain.Site, error) {
	if site := r.cached(ctx, siteNamePrefix+name); site != nil {
		return site, nil
	}

	site, err := r.next.GetByName(ctx, name)
	if err != nil || site == nil {
		return site, err
	}

	r.store(ctx, site)
	return site, nil
}

// GetByID retrieves a site by ID.
func (r *CachedSiteRegistry) GetByID(ctx context.Context, id string) (*domain.Site, error) {
	if site := r.cached(ctx, siteIDPrefix+id); site != nil {
		return site, nil
	}

	site, err := r.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.store(ctx, site)
	return site, nil
}

func (r *CachedSiteRegistry) cached(ctx context.Context, key string) *domain.Site {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		// Cache miss and cache outage look the same to callers.
		return nil
	}

	var cached cachedSite
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil
	}

	return &domain.Site{
		ID:           cached.ID,
		Name:         cached.Name,
		Line:         cached.Line,
		Mode:         cached.Mode,
		StationIndex: cached.StationIndex,
	}
}

func (r *CachedSiteRegistry) store(ctx context.Context, site *domain.Site) {
	data, err := json.Marshal(cachedSite{
		ID:           site.ID,
		Name:         site.Name,
		Line:         site.Line,
		Mode:         site.Mode,
		StationIndex: site.StationIndex,
	})
	if err != nil {
		return
	}

	_ = r.client.Set(ctx, siteNamePrefix+site.Name, data, siteCacheTTL).Err()
	_ = r.client.Set(ctx, siteIDPrefix+site.ID, data, siteCacheTTL).Err()
}

// Ensure CachedSiteRegistry implements repository.SiteRegistry.
var _ repository.SiteRegistry = (*CachedSiteRegistry)(nil)
