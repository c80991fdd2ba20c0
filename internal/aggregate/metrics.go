package aggregate

import (
	"sort"
	"time"

	"github.com/invisible-tech/alertmap/internal/types"
)

const (
	MetricsTopSignatures = 5
	DefaultVulnLimit     = 10
)

// Metrics computes the dashboard KPIs over the window. Threat levels are
// counted once per distinct source address, assessed over the whole snapshot.
func Metrics(snapshot []types.Event, window time.Duration, now time.Time, eval Evaluator) types.Metrics {
	m := types.Metrics{
		ThreatLevels: map[types.ThreatLevel]int{
			types.ThreatLow:    0,
			types.ThreatMedium: 0,
			types.ThreatHigh:   0,
		},
	}
	if window < 0 {
		window = 0
	}
	recent := Window(snapshot, now, window)
	history := bySource(snapshot)
	bySig := make(map[string]int)
	seen := make(map[string]bool)
	for i := range recent {
		ev := &recent[i]
		m.TotalEvents++
		if ev.Blocked() {
			m.BlockedEvents++
		}
		if ev.Signature != "" {
			bySig[ev.Signature]++
		}
		if !seen[ev.SrcIP] {
			seen[ev.SrcIP] = true
			a := eval.Evaluate(history[ev.SrcIP], ev.SrcIP)
			m.ThreatLevels[a.Level]++
		}
	}
	m.UniqueSourceIPs = len(seen)
	m.TopSignatures = rankSignatures(bySig, MetricsTopSignatures)
	return m
}

// TopSignatures reports the most frequent signatures among blocked events in
// the window, with each one's share of all such events.
func TopSignatures(snapshot []types.Event, window time.Duration, now time.Time, limit int) types.Vulnerabilities {
	if window < 0 {
		window = 0
	}
	if limit < 1 {
		limit = DefaultVulnLimit
	}
	v := types.Vulnerabilities{
		Vulnerabilities:  []types.SignatureStat{},
		TimeframeMinutes: int(window / time.Minute),
	}
	bySig := make(map[string]int)
	for _, ev := range Window(snapshot, now, window) {
		if ev.Signature == "" || !ev.Blocked() {
			continue
		}
		bySig[ev.Signature]++
		v.TotalAttacks++
	}
	for _, sc := range rankSignatures(bySig, limit) {
		v.Vulnerabilities = append(v.Vulnerabilities, types.SignatureStat{
			Signature:  sc.Signature,
			Count:      sc.Count,
			Percentage: round(float64(sc.Count)/float64(v.TotalAttacks)*100, 1),
		})
	}
	return v
}

// rankSignatures orders signatures by count, ties broken by name.
func rankSignatures(counts map[string]int, n int) []types.SignatureCount {
	out := make([]types.SignatureCount, 0, len(counts))
	for sig, c := range counts {
		out = append(out, types.SignatureCount{Signature: sig, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Signature < out[j].Signature
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
