package domain

import "github.com/shopspring/decimal"

// Site is one station in the network, owned by the external site registry
// and read-only here. StationIndex is the station's ordinal position on its
// line; the fallback fare formula uses it instead of parsing the site code.
type Site struct {
	ID           string
	Name         string
	Line         string
	Mode         string
	StationIndex int
}

// SameLine reports whether both sites sit on the same line.
func (s *Site) SameLine(other *Site) bool {
	return s.Line == other.Line
}

// FareRule is the authoritative price for a specific station pair and mode.
// Owned by the external fare registry, read-only here.
type FareRule struct {
	OriginSiteID      string
	DestinationSiteID string
	Mode              string
	BaseFare          decimal.Decimal
	Distance          decimal.Decimal
	StationCount      int
	Active            bool
}
