// Package export renders windowed events as downloadable JSON or CSV and
// reads a previous JSON export back for bootstrapping the store.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/invisible-tech/alertmap/internal/types"
)

// Format is an export encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat maps a query value to a Format, defaulting to JSON.
func ParseFormat(s string) Format {
	if Format(strings.ToLower(strings.TrimSpace(s))) == FormatCSV {
		return FormatCSV
	}
	return FormatJSON
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv"
	}
	return "application/json"
}

// Filename returns the attachment name for an export of the given window.
func (f Format) Filename(minutes int) string {
	return fmt.Sprintf("security_alerts_%dmin.%s", minutes, f)
}

// Document is the JSON export envelope.
type Document struct {
	ExportTimestamp  string        `json:"export_timestamp"`
	TimeframeMinutes int           `json:"timeframe_minutes"`
	TotalEvents      int           `json:"total_events"`
	Events           []types.Event `json:"events"`
}

// NewDocument wraps events in the export envelope.
func NewDocument(events []types.Event, minutes int, now time.Time) Document {
	if events == nil {
		events = []types.Event{}
	}
	return Document{
		ExportTimestamp:  types.FormatTimestamp(now),
		TimeframeMinutes: minutes,
		TotalEvents:      len(events),
		Events:           events,
	}
}

// Write encodes events to w in format f.
func Write(w io.Writer, f Format, events []types.Event, minutes int, now time.Time) error {
	if f == FormatCSV {
		return WriteCSV(w, events)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(NewDocument(events, minutes, now))
}

// CSVHeader lists the exported columns in order.
var CSVHeader = []string{
	"id", "timestamp", "src_ip", "src_port", "dest_ip", "dest_port", "proto",
	"action", "signature", "signature_id", "severity",
	"lat", "lon", "city", "country", "region", "continent",
	"risk_score", "threat_level",
}

// WriteCSV writes a header row and one row per event. An empty export is an
// empty body.
func WriteCSV(w io.Writer, events []types.Event) error {
	if len(events) == 0 {
		return nil
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for i := range events {
		if err := cw.Write(csvRow(&events[i])); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvRow(ev *types.Event) []string {
	sigID := ""
	if ev.SignatureID != 0 {
		sigID = strconv.FormatInt(ev.SignatureID, 10)
	}
	return []string{
		ev.ID,
		ev.Timestamp,
		ev.SrcIP,
		strconv.Itoa(ev.SrcPort),
		ev.DestIP,
		strconv.Itoa(ev.DestPort),
		ev.Proto,
		ev.Action,
		ev.Signature,
		sigID,
		strconv.Itoa(ev.Severity),
		strconv.FormatFloat(ev.Lat, 'f', -1, 64),
		strconv.FormatFloat(ev.Lon, 'f', -1, 64),
		ev.City,
		ev.Country,
		ev.Region,
		ev.Continent,
		strconv.Itoa(ev.RiskScore),
		string(ev.ThreatLevel),
	}
}

// LoadFile reads a restore file: either a JSON array of events or a JSON
// export document. Events are returned in file order.
func LoadFile(path string) ([]types.Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read restore file: %w", err)
	}
	return Decode(data)
}

// Decode parses restore data; see LoadFile.
func Decode(data []byte) ([]types.Event, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var events []types.Event
		if err := json.Unmarshal(data, &events); err != nil {
			return nil, fmt.Errorf("decode events: %w", err)
		}
		return events, nil
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode export document: %w", err)
	}
	return doc.Events, nil
}
