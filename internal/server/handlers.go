package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/invisible-tech/alertmap/internal/aggregate"
	"github.com/invisible-tech/alertmap/internal/export"
	"github.com/invisible-tech/alertmap/internal/normalize"
	"github.com/invisible-tech/alertmap/internal/types"
	"github.com/invisible-tech/alertmap/internal/version"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// intParam returns the integer query parameter name, or def when it is
// absent or not an integer.
func intParam(r *http.Request, name string, def int) int {
	s := strings.TrimSpace(r.URL.Query().Get(name))
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	build := version.Get()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"version": build.String(),
		"build":   build,
		"events":  s.controller.EventCount(),
	})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxIngestBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}
	n, err := s.controller.Ingest(r.Context(), body)
	if errors.Is(err, normalize.ErrInvalidPayload) {
		writeError(w, http.StatusBadRequest, normalize.ErrInvalidPayload.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"ingested": n})
}

// Feature is a GeoJSON point feature carrying a group summary.
type Feature struct {
	Type       string             `json:"type"`
	Properties types.GroupSummary `json:"properties"`
	Geometry   Geometry           `json:"geometry"`
}

// Geometry is a GeoJSON point; coordinates are [lon, lat].
type Geometry struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// FeatureCollection is the /data response.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
	Meta     DataMeta  `json:"meta"`
}

// DataMeta echoes the effective query.
type DataMeta struct {
	Level   types.Granularity  `json:"level"`
	Minutes int                `json:"minutes"`
	TopK    int                `json:"top_k"`
	Status  types.StatusFilter `json:"status"`
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	q := types.Query{
		WindowMinutes: intParam(r, "minutes", 15),
		Granularity:   types.ParseGranularity(r.URL.Query().Get("level")),
		Status:        types.ParseStatus(r.URL.Query().Get("status")),
		TopK:          intParam(r, "top_k", 200),
	}.Clamped()

	groups := s.controller.GeoSummary(q)
	fc := FeatureCollection{
		Type:     "FeatureCollection",
		Features: make([]Feature, 0, len(groups)),
		Meta:     DataMeta{Level: q.Granularity, Minutes: q.WindowMinutes, TopK: q.TopK, Status: q.Status},
	}
	for _, g := range groups {
		fc.Features = append(fc.Features, Feature{
			Type:       "Feature",
			Properties: g,
			Geometry:   Geometry{Type: "Point", Coordinates: [2]float64{g.Lon, g.Lat}},
		})
	}
	writeJSON(w, http.StatusOK, fc)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	q := types.Query{
		WindowMinutes: intParam(r, "minutes", 15),
		TopK:          intParam(r, "limit", 200),
	}.Clamped()

	if r.URL.Query().Get("aggregate") == "ip" {
		writeJSON(w, http.StatusOK, map[string]any{"alerts": s.controller.IPSummary(q)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": s.controller.RecentAlerts(q)})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.Metrics(intParam(r, "minutes", 60)))
}

func (s *Server) handleVulnerabilities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.controller.Vulnerabilities(intParam(r, "minutes", 15)))
}

func (s *Server) handleIPInfo(w http.ResponseWriter, r *http.Request) {
	ip := strings.TrimSpace(r.URL.Query().Get("ip"))
	if ip == "" {
		writeError(w, http.StatusBadRequest, "IP parameter required")
		return
	}
	info, err := s.controller.IPInfo(r.Context(), ip)
	if errors.Is(err, aggregate.ErrIPNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := export.ParseFormat(r.URL.Query().Get("format"))
	minutes := intParam(r, "minutes", 60)
	if minutes < 0 {
		minutes = 0
	}
	events := s.controller.Export(minutes)

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", format.Filename(minutes)))
	if err := export.Write(w, format, events, minutes, time.Now()); err != nil {
		s.log.WithError(err).Error("Export failed")
	}
}
