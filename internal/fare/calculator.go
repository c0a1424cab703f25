package fare

import (
	"context"

	"github.com/shopspring/decimal"

	"transit/internal/config"
	"transit/internal/domain"
	"transit/internal/repository"
)

// Calculator computes the fare for a settled station pair. The authoritative
// fare table wins when it has an active rule for the exact pair; otherwise
// the deterministic fallback formula applies. Both paths are side-effect-free
// and total for any pair of resolved sites.
type Calculator struct {
	rules repository.FareRuleRegistry
	cfg   config.FareConfig
}

// NewCalculator creates a new fare calculator.
func NewCalculator(rules repository.FareRuleRegistry, cfg config.FareConfig) *Calculator {
	return &Calculator{rules: rules, cfg: cfg}
}

// Fare returns the amount to charge for a journey from entry to exit.
// Unresolvable stations never reach this function; settlement rejects them
// before computing a fare.
func (c *Calculator) Fare(ctx context.Context, entry, exit *domain.Site, mode string) (decimal.Decimal, error) {
	rule, err := c.rules.GetActiveRule(ctx, entry.ID, exit.ID, mode)
	if err != nil {
		return decimal.Zero, err
	}

	if rule != nil {
		return rule.BaseFare, nil
	}

	return c.Fallback(entry, exit), nil
}

// Fallback is the deterministic formula applied when no explicit rule
// covers the pair: base fare plus a per-station amount capped at StationCap
// stations for same-line journeys, or a flat transfer surcharge for
// cross-line journeys.
func (c *Calculator) Fallback(entry, exit *domain.Site) decimal.Decimal {
	if !entry.SameLine(exit) {
		return c.cfg.BaseFare.Add(c.cfg.TransferSurcharge)
	}

	stations := entry.StationIndex - exit.StationIndex
	if stations < 0 {
		stations = -stations
	}
	if stations > c.cfg.StationCap {
		stations = c.cfg.StationCap
	}

	return c.cfg.BaseFare.Add(c.cfg.PerStationRate.Mul(decimal.NewFromInt(int64(stations))))
}
