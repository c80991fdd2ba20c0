// Package types defines the normalized alert event and the query and summary
// shapes shared by the store, the aggregation engines and the HTTP API.
package types

import (
	"strings"
	"time"
)

// TimestampLayout is the canonical event timestamp: UTC, second precision, Z suffix.
// Timestamps in this layout sort lexicographically in time order.
const TimestampLayout = "2006-01-02T15:04:05Z"

const (
	ActionAllowed = "allowed"
	ActionBlocked = "blocked"

	// Unknown is the place-name sentinel used when no geo source matches.
	Unknown = "Unknown"
	// ZeroAddress is stored when a record carries no address.
	ZeroAddress = "0.0.0.0"
)

// ThreatLevel is the qualitative classification of a risk score.
type ThreatLevel string

const (
	ThreatLow    ThreatLevel = "Low"
	ThreatMedium ThreatLevel = "Medium"
	ThreatHigh   ThreatLevel = "High"
)

// Event is one normalized intrusion-detection alert. Events are values; the
// store hands out copies and never mutates an event after insertion.
type Event struct {
	ID          string      `json:"id,omitempty"`
	Timestamp   string      `json:"timestamp"`
	SrcIP       string      `json:"src_ip"`
	SrcPort     int         `json:"src_port"`
	DestIP      string      `json:"dest_ip"`
	DestPort    int         `json:"dest_port"`
	Proto       string      `json:"proto"`
	Action      string      `json:"action"`
	Signature   string      `json:"signature"`
	SignatureID int64       `json:"signature_id,omitempty"`
	Severity    int         `json:"severity"`
	Lat         float64     `json:"lat"`
	Lon         float64     `json:"lon"`
	City        string      `json:"city"`
	Country     string      `json:"country"`
	Region      string      `json:"region"`
	Continent   string      `json:"continent"`
	RiskScore   int         `json:"risk_score"`
	ThreatLevel ThreatLevel `json:"threat_level"`
}

// Allowed reports whether the sensor let the flow through.
func (e Event) Allowed() bool {
	return e.Action == ActionAllowed
}

// Blocked reports whether the event counts as blocked. Any action other than
// "allowed" is treated as blocked.
func (e Event) Blocked() bool {
	return !e.Allowed()
}

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Cutoff returns the timestamp string for now minus window. Events whose
// timestamp compares below it are outside the window.
func Cutoff(now time.Time, window time.Duration) string {
	return FormatTimestamp(now.Add(-window))
}

// Granularity is the geographic grouping level of a query.
type Granularity string

const (
	GranularityContinent Granularity = "continent"
	GranularityRegion    Granularity = "region"
	GranularityCountry   Granularity = "country"
	GranularityCity      Granularity = "city"
	GranularityPoint     Granularity = "point"
)

// ParseGranularity maps a query value to a Granularity, defaulting to continent.
func ParseGranularity(s string) Granularity {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(s))); g {
	case GranularityContinent, GranularityRegion, GranularityCountry, GranularityCity, GranularityPoint:
		return g
	default:
		return GranularityContinent
	}
}

// StatusFilter restricts a query to allowed or blocked events.
type StatusFilter string

const (
	StatusAll     StatusFilter = "all"
	StatusAllowed StatusFilter = "allowed"
	StatusBlocked StatusFilter = "blocked"
)

// ParseStatus maps a query value to a StatusFilter, defaulting to all.
func ParseStatus(s string) StatusFilter {
	switch f := StatusFilter(strings.ToLower(strings.TrimSpace(s))); f {
	case StatusAllowed, StatusBlocked:
		return f
	default:
		return StatusAll
	}
}

// Match reports whether ev passes the filter. Filtering compares the stored
// action verbatim.
func (f StatusFilter) Match(ev Event) bool {
	if f == StatusAll || f == "" {
		return true
	}
	return ev.Action == string(f)
}

// Query carries the already-defaulted parameters of an aggregation request.
type Query struct {
	WindowMinutes int
	Granularity   Granularity
	Status        StatusFilter
	TopK          int
	IP            string
}

// Clamped returns q with out-of-range values pulled back into range.
func (q Query) Clamped() Query {
	if q.WindowMinutes < 0 {
		q.WindowMinutes = 0
	}
	if q.TopK < 1 {
		q.TopK = 1
	}
	if q.Granularity == "" {
		q.Granularity = GranularityContinent
	}
	if q.Status == "" {
		q.Status = StatusAll
	}
	return q
}

// Window returns the query window as a duration.
func (q Query) Window() time.Duration {
	return time.Duration(q.WindowMinutes) * time.Minute
}
