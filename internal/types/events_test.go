package types

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEvent_JSONRoundTrip(t *testing.T) {
	ev := Event{
		ID:          "ev-1",
		Timestamp:   "2026-01-02T03:04:05Z",
		SrcIP:       "185.220.101.182",
		SrcPort:     51515,
		DestIP:      "129.25.10.254",
		DestPort:    22,
		Proto:       "TCP",
		Action:      ActionBlocked,
		Signature:   "SSH brute force attempt",
		SignatureID: 1002001,
		Severity:    4,
		City:        Unknown,
		Country:     Unknown,
		Region:      Unknown,
		Continent:   Unknown,
		ThreatLevel: ThreatLow,
	}
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got Event
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got != ev {
		t.Errorf("round trip: got %+v, want %+v", got, ev)
	}
}

func TestEvent_Blocked(t *testing.T) {
	tests := []struct {
		action string
		want   bool
	}{
		{ActionAllowed, false},
		{ActionBlocked, true},
		{"drop", true},
		{"", true},
	}
	for _, tt := range tests {
		if got := (Event{Action: tt.action}).Blocked(); got != tt.want {
			t.Errorf("Blocked(%q) = %v, want %v", tt.action, got, tt.want)
		}
	}
}

func TestFormatTimestamp_SortsLikeTime(t *testing.T) {
	base := time.Date(2026, 3, 9, 23, 59, 59, 0, time.FixedZone("EST", -5*3600))
	a := FormatTimestamp(base)
	b := FormatTimestamp(base.Add(time.Second))
	if a != "2026-03-10T04:59:59Z" {
		t.Errorf("FormatTimestamp = %q", a)
	}
	if !(a < b) {
		t.Errorf("expected %q < %q", a, b)
	}
	if got := Cutoff(base.Add(time.Minute), time.Minute); got != a {
		t.Errorf("Cutoff = %q, want %q", got, a)
	}
}

func TestParseGranularity(t *testing.T) {
	tests := map[string]Granularity{
		"continent": GranularityContinent,
		"Region":    GranularityRegion,
		" country ": GranularityCountry,
		"city":      GranularityCity,
		"point":     GranularityPoint,
		"planet":    GranularityContinent,
		"":          GranularityContinent,
	}
	for in, want := range tests {
		if got := ParseGranularity(in); got != want {
			t.Errorf("ParseGranularity(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStatusFilter_Match(t *testing.T) {
	allowed := Event{Action: ActionAllowed}
	blocked := Event{Action: ActionBlocked}
	if !ParseStatus("all").Match(allowed) || !ParseStatus("").Match(blocked) {
		t.Error("all should match everything")
	}
	if !ParseStatus("ALLOWED").Match(allowed) || ParseStatus("allowed").Match(blocked) {
		t.Error("allowed filter mismatch")
	}
	if ParseStatus("blocked").Match(allowed) || !ParseStatus("blocked").Match(blocked) {
		t.Error("blocked filter mismatch")
	}
}

func TestQuery_Clamped(t *testing.T) {
	q := Query{WindowMinutes: -5, TopK: 0}.Clamped()
	if q.WindowMinutes != 0 || q.TopK != 1 {
		t.Errorf("Clamped: %+v", q)
	}
	if q.Granularity != GranularityContinent || q.Status != StatusAll {
		t.Errorf("Clamped defaults: %+v", q)
	}
	if (Query{WindowMinutes: 15}).Window() != 15*time.Minute {
		t.Error("Window() mismatch")
	}
}
