package geo

import (
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// MaxMindProvider looks addresses up in a GeoLite2/GeoIP2 City database.
type MaxMindProvider struct {
	db       *geoip2.Reader
	language string
}

// OpenMaxMind opens the City database at path.
func OpenMaxMind(path string) (*MaxMindProvider, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database %s: %w", path, err)
	}
	return &MaxMindProvider{db: db, language: "en"}, nil
}

// Lookup implements Provider. Addresses the database has no data for
// (private ranges, unassigned space) are reported as ErrNotFound so the
// resolver can fall back to the prefix table.
func (p *MaxMindProvider) Lookup(ip string) (Location, error) {
	addr := net.ParseIP(ip)
	if addr == nil {
		return Location{}, fmt.Errorf("invalid address %q", ip)
	}
	rec, err := p.db.City(addr)
	if err != nil {
		return Location{}, fmt.Errorf("city lookup %s: %w", ip, err)
	}
	loc := Location{
		Lat:       rec.Location.Latitude,
		Lon:       rec.Location.Longitude,
		City:      rec.City.Names[p.language],
		Country:   rec.Country.Names[p.language],
		Continent: rec.Continent.Names[p.language],
	}
	// The most specific subdivision is the last one.
	if n := len(rec.Subdivisions); n > 0 {
		loc.Region = rec.Subdivisions[n-1].Names[p.language]
	}
	if loc == (Location{}) {
		return Location{}, ErrNotFound
	}
	return loc, nil
}

// Close releases the database.
func (p *MaxMindProvider) Close() error {
	return p.db.Close()
}
