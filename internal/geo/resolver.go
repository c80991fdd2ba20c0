// Package geo resolves source addresses to approximate coordinates and place
// names. Resolution degrades from an optional precise provider, to a static
// prefix table, to the Unknown sentinel, and never fails.
package geo

import (
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/invisible-tech/alertmap/internal/types"
)

// ErrNotFound is returned by providers that have no record for an address.
var ErrNotFound = errors.New("geo: address not found")

// Location is the geo-enrichment attached to an event.
type Location struct {
	Lat       float64
	Lon       float64
	City      string
	Country   string
	Region    string
	Continent string
}

// UnknownLocation is returned when nothing matches.
var UnknownLocation = Location{
	City:      types.Unknown,
	Country:   types.Unknown,
	Region:    types.Unknown,
	Continent: types.Unknown,
}

// withDefaults fills empty place names with the Unknown sentinel.
func (l Location) withDefaults() Location {
	if l.City == "" {
		l.City = types.Unknown
	}
	if l.Country == "" {
		l.Country = types.Unknown
	}
	if l.Region == "" {
		l.Region = types.Unknown
	}
	if l.Continent == "" {
		l.Continent = types.Unknown
	}
	return l
}

// Provider is a precise geolocation capability (city database, online API).
type Provider interface {
	Lookup(ip string) (Location, error)
}

// Rule maps every address starting with Prefix to a fixed Location.
type Rule struct {
	Prefix string
	Location
}

// Resolver walks the fallback chain.
type Resolver struct {
	provider Provider
	rules    []Rule
	log      *logrus.Logger
}

// NewResolver returns a resolver over the given rules. provider may be nil,
// which selects fallback-only resolution.
func NewResolver(provider Provider, rules []Rule, log *logrus.Logger) *Resolver {
	return &Resolver{provider: provider, rules: rules, log: log}
}

// NewFallbackResolver returns a fallback-only resolver over DefaultRules.
func NewFallbackResolver(log *logrus.Logger) *Resolver {
	return NewResolver(nil, DefaultRules(), log)
}

// Precise reports whether a precise provider is configured.
func (r *Resolver) Precise() bool {
	return r.provider != nil
}

// Resolve returns the best-effort location for ip.
func (r *Resolver) Resolve(ip string) Location {
	if r.provider != nil {
		loc, err := r.provider.Lookup(ip)
		if err == nil {
			return loc.withDefaults()
		}
		if r.log != nil {
			r.log.WithError(err).WithField("ip", ip).Debug("Precise geo lookup failed, using fallback table")
		}
	}
	return r.Fallback(ip)
}

// Fallback scans the prefix table; the first literal prefix match wins.
func (r *Resolver) Fallback(ip string) Location {
	for _, rule := range r.rules {
		if strings.HasPrefix(ip, rule.Prefix) {
			return rule.Location.withDefaults()
		}
	}
	return UnknownLocation
}
