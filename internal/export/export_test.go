package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/invisible-tech/alertmap/internal/types"
)

var now = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

func sample() []types.Event {
	return []types.Event{
		{
			ID: "a", Timestamp: "2026-10-16T11:59:00Z", SrcIP: "185.220.101.182", SrcPort: 40000,
			DestIP: "129.25.20.10", DestPort: 22, Proto: "TCP", Action: "blocked",
			Signature: "SSH brute force attempt, variant 2", SignatureID: 1002001, Severity: 4,
			Lat: 52.52, Lon: 13.405, City: "Berlin, DE", Country: "Germany", Region: "Berlin", Continent: "Europe",
			RiskScore: 90, ThreatLevel: types.ThreatHigh,
		},
		{ID: "b", Timestamp: "2026-10-16T11:59:30Z", SrcIP: "129.25.1.1", Action: "allowed", ThreatLevel: types.ThreatLow},
	}
}

func TestParseFormat(t *testing.T) {
	if ParseFormat("CSV") != FormatCSV || ParseFormat("") != FormatJSON || ParseFormat("xml") != FormatJSON {
		t.Error("ParseFormat mismatch")
	}
	if FormatCSV.Filename(60) != "security_alerts_60min.csv" || FormatJSON.ContentType() != "application/json" {
		t.Error("format metadata mismatch")
	}
}

func TestWrite_JSONDocument(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatJSON, sample(), 60, now); err != nil {
		t.Fatalf("Write: %v", err)
	}
	var doc Document
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if doc.ExportTimestamp != "2026-10-16T12:00:00Z" || doc.TimeframeMinutes != 60 || doc.TotalEvents != 2 {
		t.Errorf("envelope = %+v", doc)
	}
	if doc.Events[0] != sample()[0] {
		t.Errorf("event changed: %+v", doc.Events[0])
	}

	buf.Reset()
	if err := Write(&buf, FormatJSON, nil, 15, now); err != nil {
		t.Fatalf("Write empty: %v", err)
	}
	if !strings.Contains(buf.String(), `"events": []`) {
		t.Errorf("empty export should carry an empty list: %s", buf.String())
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatCSV, sample(), 60, now); err != nil {
		t.Fatalf("Write: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d", len(rows))
	}
	if strings.Join(rows[0], ",") != strings.Join(CSVHeader, ",") {
		t.Errorf("header = %v", rows[0])
	}
	first := rows[1]
	if first[8] != "SSH brute force attempt, variant 2" || first[9] != "1002001" || first[11] != "52.52" || first[18] != "High" {
		t.Errorf("row = %v", first)
	}
	if rows[2][9] != "" {
		t.Errorf("absent signature id should be empty, got %q", rows[2][9])
	}

	buf.Reset()
	if err := WriteCSV(&buf, nil); err != nil || buf.Len() != 0 {
		t.Errorf("empty csv: err=%v len=%d", err, buf.Len())
	}
}

func TestDecode(t *testing.T) {
	arr, _ := json.Marshal(sample())
	var doc bytes.Buffer
	_ = Write(&doc, FormatJSON, sample(), 60, now)

	tests := []struct {
		name    string
		data    []byte
		want    int
		wantErr bool
	}{
		{"array", arr, 2, false},
		{"document", doc.Bytes(), 2, false},
		{"empty", []byte("  "), 0, false},
		{"garbage", []byte("{nope"), 0, true},
		{"bad array", []byte("[1,"), 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := Decode(tt.data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v", err)
			}
			if len(events) != tt.want {
				t.Errorf("events = %d, want %d", len(events), tt.want)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "restore.json")
	data, _ := json.Marshal(sample())
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	events, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(events) != 2 || events[1].ID != "b" {
		t.Errorf("events = %+v", events)
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
