package aggregate

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/invisible-tech/alertmap/internal/risk"
	"github.com/invisible-tech/alertmap/internal/types"
)

// ErrIPNotFound is returned by IPInfo when the snapshot holds no event from the address.
var ErrIPNotFound = errors.New("no data found for this IP")

// SuspiciousIPBlocked marks a source address as suspicious regardless of ratio.
const SuspiciousIPBlocked = 10

// Evaluator scores a source address over a set of events.
type Evaluator interface {
	Evaluate(events []types.Event, ip string) risk.Assessment
}

// HostnameFunc resolves an address to a host name.
type HostnameFunc func(ip string) (string, error)

// bySource indexes events by source address, preserving order.
func bySource(events []types.Event) map[string][]types.Event {
	idx := make(map[string][]types.Event)
	for i := range events {
		idx[events[i].SrcIP] = append(idx[events[i].SrcIP], events[i])
	}
	return idx
}

// tail returns the last n rows of the windowed events.
func tail(events []types.Event, n int) []types.Event {
	if len(events) > n {
		return events[len(events)-n:]
	}
	return events
}

// ByIP groups the most recent top_k windowed events by source address. Risk
// is assessed over the whole snapshot, not just the window.
func ByIP(snapshot []types.Event, q types.Query, now time.Time, eval Evaluator) []types.IPSummary {
	q = q.Clamped()
	rows := tail(Window(snapshot, now, q.Window()), q.TopK)

	grouped := make(map[string]*types.IPSummary)
	var order []string
	for i := range rows {
		r := &rows[i]
		s, ok := grouped[r.SrcIP]
		if !ok {
			s = &types.IPSummary{IP: r.SrcIP, LastSeen: r.Timestamp, Lat: r.Lat, Lon: r.Lon, City: r.City}
			grouped[r.SrcIP] = s
			order = append(order, r.SrcIP)
		}
		s.Count++
		if r.Allowed() {
			s.Allowed++
		} else {
			s.Blocked++
		}
		if r.Timestamp > s.LastSeen {
			s.LastSeen = r.Timestamp
		}
	}

	history := bySource(snapshot)
	out := make([]types.IPSummary, 0, len(order))
	for _, ip := range order {
		s := grouped[ip]
		s.Suspicious = float64(s.Blocked)/float64(s.Count) >= SuspiciousRatio || s.Blocked >= SuspiciousIPBlocked
		a := eval.Evaluate(history[ip], ip)
		s.RiskScore, s.ThreatLevel = a.Score, a.Level
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].IP < out[j].IP
	})
	if len(out) > q.TopK {
		out = out[:q.TopK]
	}
	return out
}

// Recent returns the most recent top_k windowed events as copies whose risk
// fields are assessed over the whole snapshot.
func Recent(snapshot []types.Event, q types.Query, now time.Time, eval Evaluator) []types.Event {
	q = q.Clamped()
	rows := tail(Window(snapshot, now, q.Window()), q.TopK)

	history := bySource(snapshot)
	cache := make(map[string]risk.Assessment)
	for i := range rows {
		ip := rows[i].SrcIP
		a, ok := cache[ip]
		if !ok {
			a = eval.Evaluate(history[ip], ip)
			cache[ip] = a
		}
		rows[i].RiskScore, rows[i].ThreatLevel = a.Score, a.Level
	}
	return rows
}

type provider struct {
	prefixes []string
	isp      string
	asn      string
}

// providers is a coarse prefix table used in place of a WHOIS lookup.
var providers = []provider{
	{prefixes: []string{"129.25."}, isp: "Stetson University", asn: "AS7018 (STETSON-AS)"},
	{prefixes: []string{"185.", "93.", "109."}, isp: "European ISP", asn: "AS12345 (EU-PROVIDER)"},
	{prefixes: []string{"13.", "52.", "54."}, isp: "Amazon Web Services", asn: "AS16509 (AMAZON-02)"},
}

// Provider returns the ISP and ASN labels for ip.
func Provider(ip string) (isp, asn string) {
	for _, p := range providers {
		for _, prefix := range p.prefixes {
			if strings.HasPrefix(ip, prefix) {
				return p.isp, p.asn
			}
		}
	}
	return "Unknown ISP", "Unknown ASN"
}

// IPInfo builds the detail view of ip from every event it has in the
// snapshot. Geography comes from the latest event. hostname may be nil.
func IPInfo(snapshot []types.Event, ip string, eval Evaluator, hostname HostnameFunc) (types.IPInfo, error) {
	events := bySource(snapshot)[ip]
	if len(events) == 0 {
		return types.IPInfo{}, ErrIPNotFound
	}
	latest := events[len(events)-1]
	a := eval.Evaluate(events, ip)
	profile := risk.BuildProfile(events, ip)

	info := types.IPInfo{
		IP:           ip,
		Hostname:     types.Unknown,
		City:         latest.City,
		Region:       latest.Region,
		Country:      latest.Country,
		Latitude:     latest.Lat,
		Longitude:    latest.Lon,
		RiskScore:    a.Score,
		ThreatLevel:  a.Level,
		MatchedRules: a.MatchedRules,
		TotalEvents:  len(events),
		IsMalicious:  risk.IsMalicious(ip),
	}
	info.ISP, info.ASN = Provider(ip)
	if hostname != nil {
		if name, err := hostname(ip); err == nil && name != "" {
			info.Hostname = strings.TrimSuffix(name, ".")
		}
	}
	for i := range events {
		if events[i].Allowed() {
			info.EventSummary.Allowed++
		} else {
			info.EventSummary.Blocked++
		}
	}
	info.EventSummary.UniqueSignatures = profile.SignatureIDs.Len()
	return info, nil
}
