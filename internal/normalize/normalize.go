// Package normalize converts raw Suricata-style alert records of varying shape
// into canonical, geo-enriched events.
package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/invisible-tech/alertmap/internal/geo"
	"github.com/invisible-tech/alertmap/internal/types"
)

// ErrInvalidPayload is returned when an ingest body is absent, not JSON, or
// carries no records at all.
var ErrInvalidPayload = errors.New("invalid or empty JSON")

// ErrMalformedRecord wraps per-record failures; the record is skipped.
var ErrMalformedRecord = errors.New("malformed record")

// Resolver is the geo-enrichment dependency.
type Resolver interface {
	Resolve(ip string) geo.Location
}

// RecordError identifies a skipped record within a batch.
type RecordError struct {
	Index int
	Err   error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d: %v", e.Index, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// Normalizer turns raw records into events.
type Normalizer struct {
	resolver Resolver
	now      func() time.Time
	newID    func() string
}

// New creates a Normalizer that enriches through resolver.
func New(resolver Resolver) *Normalizer {
	return &Normalizer{resolver: resolver, now: time.Now, newID: uuid.NewString}
}

// ParsePayload decodes an ingest body. A JSON object is a batch of one; an
// array is a batch whose non-object elements are kept so they count as
// malformed. Anything else, including {} and [], is ErrInvalidPayload.
func ParsePayload(body []byte) ([]any, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, ErrInvalidPayload
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	switch p := payload.(type) {
	case map[string]any:
		if len(p) == 0 {
			return nil, ErrInvalidPayload
		}
		return []any{p}, nil
	case []any:
		if len(p) == 0 {
			return nil, ErrInvalidPayload
		}
		return p, nil
	default:
		return nil, ErrInvalidPayload
	}
}

// Batch normalizes every record, returning the events that succeeded in input
// order and one RecordError per skipped record.
func (n *Normalizer) Batch(records []any) ([]types.Event, []error) {
	events := make([]types.Event, 0, len(records))
	var errs []error
	for i, rec := range records {
		ev, err := n.Normalize(rec)
		if err != nil {
			errs = append(errs, &RecordError{Index: i, Err: err})
			continue
		}
		events = append(events, ev)
	}
	return events, errs
}

// Normalize converts one raw record. Missing fields take defaults; fields of
// the wrong type make the record malformed.
func (n *Normalizer) Normalize(raw any) (types.Event, error) {
	rec, ok := raw.(map[string]any)
	if !ok {
		return types.Event{}, fmt.Errorf("%w: expected object, got %T", ErrMalformedRecord, raw)
	}
	flow, err := object(rec, "flow")
	if err != nil {
		return types.Event{}, err
	}
	alert, err := object(rec, "alert")
	if err != nil {
		return types.Event{}, err
	}
	// Exported events carry the alert fields at the top level.
	alertSrc := alert
	if alertSrc == nil {
		alertSrc = rec
	}

	ev := types.Event{ID: n.newID(), ThreatLevel: types.ThreatLow}

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	var s string
	var i int64

	s, err = firstString(field(rec, "src_ip"), field(flow, "src_ip"))
	collect(err)
	ev.SrcIP = orDefault(s, types.ZeroAddress)

	s, err = firstString(field(rec, "dest_ip"), field(flow, "dest_ip"))
	collect(err)
	ev.DestIP = orDefault(s, types.ZeroAddress)

	i, err = firstInt(field(rec, "src_port"), field(flow, "src_port"))
	collect(err)
	ev.SrcPort = int(i)

	i, err = firstInt(field(rec, "dest_port"), field(flow, "dest_port"))
	collect(err)
	ev.DestPort = int(i)

	s, err = firstString(field(rec, "proto"))
	collect(err)
	ev.Proto = orDefault(s, "N/A")

	s, err = firstString(field(alertSrc, "action"))
	collect(err)
	ev.Action = strings.ToLower(orDefault(s, types.ActionBlocked))

	s, err = firstString(field(alertSrc, "signature"))
	collect(err)
	ev.Signature = s

	i, err = identifier(field(alertSrc, "signature_id"))
	collect(err)
	ev.SignatureID = i

	i, err = firstInt(field(alertSrc, "severity"))
	collect(err)
	ev.Severity = int(i)

	if len(errs) > 0 {
		return types.Event{}, fmt.Errorf("%w: %v", ErrMalformedRecord, errors.Join(errs...))
	}

	ev.Timestamp = n.timestamp(rec["timestamp"])

	loc := n.resolver.Resolve(ev.SrcIP)
	ev.Lat, ev.Lon = loc.Lat, loc.Lon
	ev.City, ev.Country, ev.Region, ev.Continent = loc.City, loc.Country, loc.Region, loc.Continent
	return ev, nil
}

// timestamp returns the canonical form of a caller-provided timestamp, or now
// when it is absent or cannot be parsed.
func (n *Normalizer) timestamp(v any) string {
	if s, ok := v.(string); ok && s != "" {
		if ts, ok := Canonicalize(s); ok {
			return ts
		}
	}
	return types.FormatTimestamp(n.now())
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999-0700", // Suricata eve.json
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// Canonicalize parses an ISO-8601 timestamp and renders it in
// types.TimestampLayout. Inputs without a zone are taken as UTC.
func Canonicalize(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return types.FormatTimestamp(t), true
		}
	}
	return "", false
}
