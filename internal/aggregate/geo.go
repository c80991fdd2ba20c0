// Package aggregate turns store snapshots into the ranked, windowed views
// served by the API. Every function works on a caller-owned snapshot and
// never touches the store.
package aggregate

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/invisible-tech/alertmap/internal/types"
)

const (
	// KeySeparator joins the components of hierarchical group keys.
	KeySeparator = "||"

	// SuspiciousRatio and SuspiciousGroupBlocked mark a geographic group as suspicious.
	SuspiciousRatio        = 0.7
	SuspiciousGroupBlocked = 20

	topIPsPerGroup = 3
)

// Window returns the events of snapshot whose timestamp is at or after
// now minus window, in snapshot order.
func Window(snapshot []types.Event, now time.Time, window time.Duration) []types.Event {
	cutoff := types.Cutoff(now, window)
	out := make([]types.Event, 0, len(snapshot))
	for i := range snapshot {
		if snapshot[i].Timestamp >= cutoff {
			out = append(out, snapshot[i])
		}
	}
	return out
}

type group struct {
	key      string
	count    int
	allowed  int
	blocked  int
	lat, lon float64
	ips      map[string]int
}

// ByGeo groups windowed events at the query's granularity and returns the
// top_k groups ranked by count, ties broken by key.
func ByGeo(snapshot []types.Event, q types.Query, now time.Time) []types.GroupSummary {
	q = q.Clamped()
	cutoff := types.Cutoff(now, q.Window())

	groups := make(map[string]*group)
	for i := range snapshot {
		ev := &snapshot[i]
		if ev.Timestamp < cutoff || !q.Status.Match(*ev) {
			continue
		}
		key := GroupKey(*ev, q.Granularity)
		g, ok := groups[key]
		if !ok {
			g = &group{key: key, lat: ev.Lat, lon: ev.Lon, ips: make(map[string]int)}
			groups[key] = g
		}
		g.count++
		g.ips[ev.SrcIP]++
		if ev.Allowed() {
			g.allowed++
		} else {
			g.blocked++
		}
	}

	ranked := make([]*group, 0, len(groups))
	for _, g := range groups {
		ranked = append(ranked, g)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].key < ranked[j].key
	})
	if len(ranked) > q.TopK {
		ranked = ranked[:q.TopK]
	}

	out := make([]types.GroupSummary, 0, len(ranked))
	for i, g := range ranked {
		total := float64(g.count)
		score := float64(g.blocked) / total
		out = append(out, types.GroupSummary{
			Label:           g.key,
			Count:           g.count,
			Allowed:         g.allowed,
			Blocked:         g.blocked,
			AllowedRatio:    round(float64(g.allowed)/total, 3),
			SuspiciousScore: round(score, 3),
			Rank:            i + 1,
			TopIPs:          topIPs(g.ips, topIPsPerGroup),
			Suspicious:      score >= SuspiciousRatio || g.blocked >= SuspiciousGroupBlocked,
			Lat:             g.lat,
			Lon:             g.lon,
		})
	}
	return out
}

// GroupKey returns the grouping key of ev at level g.
func GroupKey(ev types.Event, g types.Granularity) string {
	switch g {
	case types.GranularityRegion:
		return strings.Join([]string{ev.Continent, ev.Region}, KeySeparator)
	case types.GranularityCountry:
		return strings.Join([]string{ev.Continent, ev.Region, ev.Country}, KeySeparator)
	case types.GranularityCity:
		return strings.Join([]string{ev.Continent, ev.Region, ev.Country, ev.City}, KeySeparator)
	case types.GranularityPoint:
		return formatCoord(ev.Lat) + KeySeparator + formatCoord(ev.Lon)
	default:
		return ev.Continent
	}
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(round(v, 4), 'f', -1, 64)
}

// topIPs returns up to n addresses by hit count, ties broken by address.
func topIPs(hits map[string]int, n int) []string {
	ips := make([]string, 0, len(hits))
	for ip := range hits {
		ips = append(ips, ip)
	}
	sort.Slice(ips, func(i, j int) bool {
		if hits[ips[i]] != hits[ips[j]] {
			return hits[ips[i]] > hits[ips[j]]
		}
		return ips[i] < ips[j]
	})
	if len(ips) > n {
		ips = ips[:n]
	}
	return ips
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
