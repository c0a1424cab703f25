package fare

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"transit/internal/config"
	"transit/internal/domain"
)

type staticRules struct {
	rule *domain.FareRule
}

func (s *staticRules) GetActiveRule(ctx context.Context, origin, destination, mode string) (*domain.FareRule, error) {
	if s.rule != nil && s.rule.OriginSiteID == origin && s.rule.DestinationSiteID == destination && s.rule.Mode == mode {
		return s.rule, nil
	}
	return nil, nil
}

func testConfig() config.FareConfig {
	return config.FareConfig{
		BaseFare:          decimal.RequireFromString("2.00"),
		PerStationRate:    decimal.RequireFromString("0.50"),
		StationCap:        20,
		TransferSurcharge: decimal.RequireFromString("2.00"),
	}
}

func site(id, line string, index int) *domain.Site {
	return &domain.Site{ID: id, Name: id, Line: line, Mode: "SUBWAY", StationIndex: index}
}

func TestFallback_SameLine(t *testing.T) {
	calc := NewCalculator(&staticRules{}, testConfig())

	cases := []struct {
		name  string
		entry *domain.Site
		exit  *domain.Site
		want  string
	}{
		{"three stations", site("a", "line-1", 5), site("b", "line-1", 8), "3.50"},
		{"reverse direction", site("a", "line-1", 8), site("b", "line-1", 5), "3.50"},
		{"same station", site("a", "line-1", 5), site("b", "line-1", 5), "2.00"},
		{"capped at twenty", site("a", "line-1", 1), site("b", "line-1", 26), "12.00"},
		{"exactly at cap", site("a", "line-1", 1), site("b", "line-1", 21), "12.00"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := calc.Fallback(tc.entry, tc.exit)
			if !got.Equal(decimal.RequireFromString(tc.want)) {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestFallback_CrossLineFlatSurcharge(t *testing.T) {
	calc := NewCalculator(&staticRules{}, testConfig())

	near := calc.Fallback(site("a", "line-1", 1), site("b", "line-2", 2))
	far := calc.Fallback(site("a", "line-1", 1), site("c", "line-2", 40))

	want := decimal.RequireFromString("4.00")
	if !near.Equal(want) || !far.Equal(want) {
		t.Errorf("transfer fare must be flat 4.00, got %s and %s", near, far)
	}
}

func TestFare_RuleTakesPrecedence(t *testing.T) {
	rules := &staticRules{rule: &domain.FareRule{
		OriginSiteID:      "a",
		DestinationSiteID: "b",
		Mode:              "SUBWAY",
		BaseFare:          decimal.RequireFromString("9.99"),
		Active:            true,
	}}
	calc := NewCalculator(rules, testConfig())

	got, err := calc.Fare(context.Background(), site("a", "line-1", 1), site("b", "line-1", 2), "SUBWAY")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("9.99")) {
		t.Errorf("expected rule fare 9.99, got %s", got)
	}

	// A rule for another mode does not apply.
	got, err = calc.Fare(context.Background(), site("a", "line-1", 1), site("b", "line-1", 2), "BUS")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("2.50")) {
		t.Errorf("expected fallback fare 2.50, got %s", got)
	}
}

func TestFare_Deterministic(t *testing.T) {
	calc := NewCalculator(&staticRules{}, testConfig())
	entry := site("a", "line-1", 3)
	exit := site("b", "line-1", 11)

	first, err := calc.Fare(context.Background(), entry, exit, "SUBWAY")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := calc.Fare(context.Background(), entry, exit, "SUBWAY")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !again.Equal(first) {
			t.Fatalf("fare changed between calls: %s vs %s", again, first)
		}
	}
}
