package tests

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"transit/internal/config"
	"transit/internal/domain"
	"transit/internal/fare"
	"transit/internal/service"
)

// testFareConfig mirrors the production defaults: base 2.00, 0.50 per
// station capped at 20 stations, 2.00 transfer surcharge.
func testFareConfig() config.FareConfig {
	return config.FareConfig{
		BaseFare:          decimal.RequireFromString("2.00"),
		PerStationRate:    decimal.RequireFromString("0.50"),
		StationCap:        20,
		TransferSurcharge: decimal.RequireFromString("2.00"),
	}
}

// newSiteRegistry builds a registry with thirty line-1 subway stations, a
// line-2 station, and one bus stop.
func newSiteRegistry() *MockSiteRegistry {
	sites := NewMockSiteRegistry()
	for i := 1; i <= 30; i++ {
		sites.AddSite(&domain.Site{
			ID:           fmt.Sprintf("site-l1-%d", i),
			Name:         fmt.Sprintf("L1-S%d", i),
			Line:         "line-1",
			Mode:         "SUBWAY",
			StationIndex: i,
		})
	}
	sites.AddSite(&domain.Site{
		ID:           "site-l2-1",
		Name:         "L2-S1",
		Line:         "line-2",
		Mode:         "SUBWAY",
		StationIndex: 1,
	})
	sites.AddSite(&domain.Site{
		ID:           "site-bus-1",
		Name:         "B-S1",
		Line:         "bus-7",
		Mode:         "BUS",
		StationIndex: 1,
	})
	return sites
}

// userLockHoldTime is long enough that an armed lock stays held for the
// duration of a test.
const userLockHoldTime = time.Minute

func newCalculator() *fare.Calculator {
	return fare.NewCalculator(NewMockFareRuleRegistry(), testFareConfig())
}

// fixture bundles the co-operating fakes behind one TransitService.
type fixture struct {
	store *MemoryStore
	sites *MockSiteRegistry
	rules *MockFareRuleRegistry
	svc   *service.TransitService
}

func newFixture() *fixture {
	store := NewMemoryStore()
	sites := newSiteRegistry()
	rules := NewMockFareRuleRegistry()
	calc := fare.NewCalculator(rules, testFareConfig())
	return &fixture{
		store: store,
		sites: sites,
		rules: rules,
		svc:   service.NewTransitService(store, sites, calc, nil),
	}
}

func (f *fixture) seedBalance(userID, balance string) {
	f.store.SeedAccount(&domain.BalanceAccount{
		UserID:     userID,
		Balance:    decimal.RequireFromString(balance),
		UpdateTime: time.Now(),
	})
}

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func at(hour, minute int) time.Time {
	return time.Date(2025, time.March, 14, hour, minute, 0, 0, time.UTC)
}
