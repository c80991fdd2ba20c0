package geo

import (
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/invisible-tech/alertmap/internal/types"
)

type stubProvider struct {
	loc   Location
	err   error
	calls int
}

func (s *stubProvider) Lookup(ip string) (Location, error) {
	s.calls++
	return s.loc, s.err
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestResolver_FallbackOnly(t *testing.T) {
	r := NewFallbackResolver(quietLogger())
	if r.Precise() {
		t.Error("fallback resolver should not report a precise provider")
	}
	tests := []struct {
		ip      string
		city    string
		country string
	}{
		{"129.25.10.254", "DeLand, FL", "United States"},
		{"10.77.1.1", "DeLand, FL", "United States"},
		{"10.0.3.4", "Orlando, FL", "United States"},
		{"172.31.2.3", "Tokyo, JP", "Japan"},
		{"10.205.60.7", "Berlin, DE", "Germany"},
		{"185.200.51.6", "London, UK", "United Kingdom"},
	}
	for _, tt := range tests {
		loc := r.Resolve(tt.ip)
		if loc.City != tt.city || loc.Country != tt.country {
			t.Errorf("Resolve(%q) = %+v, want city=%q country=%q", tt.ip, loc, tt.city, tt.country)
		}
	}
}

func TestResolver_UnknownSentinel(t *testing.T) {
	r := NewFallbackResolver(quietLogger())
	for _, ip := range []string{"8.8.8.8", "185.220.101.182", "", "not-an-ip"} {
		loc := r.Resolve(ip)
		if loc != UnknownLocation {
			t.Errorf("Resolve(%q) = %+v, want Unknown sentinel", ip, loc)
		}
	}
	if UnknownLocation.Lat != 0 || UnknownLocation.City != types.Unknown || UnknownLocation.Continent != types.Unknown {
		t.Errorf("UnknownLocation = %+v", UnknownLocation)
	}
}

func TestResolver_FirstMatchWins(t *testing.T) {
	rules := []Rule{
		{"10.", Location{City: "first"}},
		{"10.1.", Location{City: "second"}},
	}
	r := NewResolver(nil, rules, quietLogger())
	if got := r.Resolve("10.1.2.3").City; got != "first" {
		t.Errorf("first match: got %q", got)
	}
}

func TestResolver_PreciseProvider(t *testing.T) {
	p := &stubProvider{loc: Location{Lat: 48.85, Lon: 2.35, City: "Paris", Country: "France", Continent: "Europe"}}
	r := NewResolver(p, DefaultRules(), quietLogger())
	if !r.Precise() {
		t.Error("expected precise provider")
	}
	loc := r.Resolve("129.25.10.254")
	if loc.City != "Paris" || loc.Lat != 48.85 {
		t.Errorf("precise result not used: %+v", loc)
	}
	if loc.Region != types.Unknown {
		t.Errorf("missing region should become Unknown, got %q", loc.Region)
	}
	if p.calls != 1 {
		t.Errorf("provider calls = %d", p.calls)
	}
}

func TestResolver_PreciseProviderFailureFallsBack(t *testing.T) {
	p := &stubProvider{err: errors.New("database closed")}
	r := NewResolver(p, DefaultRules(), quietLogger())
	if got := r.Resolve("172.16.4.4").City; got != "New York, NY" {
		t.Errorf("fallback after provider error: got %q", got)
	}
	p.err = ErrNotFound
	if got := r.Resolve("1.1.1.1"); got != UnknownLocation {
		t.Errorf("fallback to Unknown: got %+v", got)
	}
}

func TestOpenMaxMind_MissingFile(t *testing.T) {
	if _, err := OpenMaxMind("/nonexistent/GeoLite2-City.mmdb"); err == nil {
		t.Error("expected error for missing database")
	}
}
