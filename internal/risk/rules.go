// Package risk scores source addresses from the events they produced and maps
// the score to a threat level.
package risk

import (
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/invisible-tech/alertmap/internal/types"
)

const (
	HighThreshold   = 70
	MediumThreshold = 35

	// FailedLoginThreshold is the number of blocked login-style alerts that
	// marks an address as a credential attacker.
	FailedLoginThreshold = 3
	// SignatureThreshold is the number of distinct signature IDs that marks an
	// address as probing broadly.
	SignatureThreshold = 3
)

// DomesticPrefixes are the address prefixes treated as local to the monitored network.
var DomesticPrefixes = []string{
	"129.25.",
	"172.16.", "172.17.", "172.18.", "172.19.", "172.20.", "172.21.",
	"192.168.",
	"10.",
}

// MaliciousIPs is the static list of known-bad sources (Tor exits and scanners).
var MaliciousIPs = sets.New[string](
	"185.220.101.182", "93.95.230.253", "104.244.72.115", "192.42.116.16",
	"198.98.51.189", "185.220.101.195", "109.70.100.24", "198.96.155.3",
	"185.220.102.8", "185.220.101.40", "185.220.101.186", "109.70.100.23",
)

var loginKeywords = []string{"ssh", "login", "brute"}

// Profile is what the rules see of one source address.
type Profile struct {
	IP           string
	Events       int
	FailedLogins int
	SignatureIDs sets.Set[int64]
}

// Rule is one additive scoring rule.
type Rule struct {
	ID        string
	Name      string
	Points    int
	Condition func(p *Profile) bool
}

// Engine evaluates profiles against rules. It holds no state between calls.
type Engine struct {
	rules []*Rule
}

// NewEngine creates an engine with the default rule set.
func NewEngine() *Engine {
	return &Engine{rules: defaultRules()}
}

// Rules returns the loaded rules (read-only).
func (e *Engine) Rules() []*Rule {
	return e.rules
}

// Assessment is the outcome of scoring one address.
type Assessment struct {
	Score        int
	Level        types.ThreatLevel
	MatchedRules []string
}

// Score returns the risk score and threat level of ip over events.
func (e *Engine) Score(events []types.Event, ip string) (int, types.ThreatLevel) {
	a := e.Evaluate(events, ip)
	return a.Score, a.Level
}

// Evaluate scores ip over events and reports which rules matched. Events from
// other sources are ignored; an address with no events scores 0/Low.
func (e *Engine) Evaluate(events []types.Event, ip string) Assessment {
	p := BuildProfile(events, ip)
	if p.Events == 0 {
		return Assessment{Level: types.ThreatLow}
	}
	var a Assessment
	for _, rule := range e.rules {
		if rule.Condition(p) {
			a.Score += rule.Points
			a.MatchedRules = append(a.MatchedRules, rule.ID)
		}
	}
	a.Level = Level(a.Score)
	return a
}

// BuildProfile collects the per-address features used by the rules.
func BuildProfile(events []types.Event, ip string) *Profile {
	p := &Profile{IP: ip, SignatureIDs: sets.New[int64]()}
	for i := range events {
		ev := &events[i]
		if ev.SrcIP != ip {
			continue
		}
		p.Events++
		if ev.Blocked() && isLoginSignature(ev.Signature) {
			p.FailedLogins++
		}
		if ev.SignatureID != 0 {
			p.SignatureIDs.Insert(ev.SignatureID)
		}
	}
	return p
}

// Level maps a score to its threat level.
func Level(score int) types.ThreatLevel {
	switch {
	case score >= HighThreshold:
		return types.ThreatHigh
	case score >= MediumThreshold:
		return types.ThreatMedium
	default:
		return types.ThreatLow
	}
}

// IsMalicious reports whether ip is on the known-bad list.
func IsMalicious(ip string) bool {
	return MaliciousIPs.Has(ip)
}

// IsDomestic reports whether ip starts with one of DomesticPrefixes.
func IsDomestic(ip string) bool {
	for _, prefix := range DomesticPrefixes {
		if strings.HasPrefix(ip, prefix) {
			return true
		}
	}
	return false
}

func isLoginSignature(sig string) bool {
	sig = strings.ToLower(sig)
	for _, kw := range loginKeywords {
		if strings.Contains(sig, kw) {
			return true
		}
	}
	return false
}

func defaultRules() []*Rule {
	return []*Rule{
		{
			ID:     "RISK-001",
			Name:   "Repeated Failed Logins",
			Points: 30,
			Condition: func(p *Profile) bool {
				return p.FailedLogins >= FailedLoginThreshold
			},
		},
		{
			ID:     "RISK-002",
			Name:   "International Source",
			Points: 20,
			Condition: func(p *Profile) bool {
				return !IsDomestic(p.IP)
			},
		},
		{
			ID:     "RISK-003",
			Name:   "Multiple Signatures",
			Points: 25,
			Condition: func(p *Profile) bool {
				return p.SignatureIDs.Len() >= SignatureThreshold
			},
		},
		{
			ID:     "RISK-004",
			Name:   "Known Malicious Address",
			Points: 40,
			Condition: func(p *Profile) bool {
				return IsMalicious(p.IP)
			},
		},
	}
}
