// Package trafficgen generates synthetic Suricata alert records for demos and
// load testing.
package trafficgen

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// Scenario selects the signature mix, block ratio and send rate.
type Scenario string

const (
	ScenarioNormal     Scenario = "normal"
	ScenarioBruteForce Scenario = "bruteforce"
	ScenarioWebExploit Scenario = "webexploit"
	ScenarioMalware    Scenario = "malware"
	// ScenarioDemo runs each attack scenario in turn, then normal traffic.
	ScenarioDemo Scenario = "demo"
)

// ParseScenario returns the scenario named s.
func ParseScenario(s string) (Scenario, error) {
	switch sc := Scenario(strings.ToLower(strings.TrimSpace(s))); sc {
	case ScenarioNormal, ScenarioBruteForce, ScenarioWebExploit, ScenarioMalware, ScenarioDemo:
		return sc, nil
	case "":
		return ScenarioNormal, nil
	default:
		return "", fmt.Errorf("unknown scenario %q (valid: normal, bruteforce, webexploit, malware, demo)", s)
	}
}

// Rate returns the default events per second.
func (s Scenario) Rate() float64 {
	switch s {
	case ScenarioBruteForce:
		return 5
	case ScenarioWebExploit:
		return 4
	case ScenarioMalware:
		return 2
	default:
		return 3
	}
}

// BlockRatio returns the probability that a generated alert is blocked.
func (s Scenario) BlockRatio() float64 {
	switch s {
	case ScenarioBruteForce:
		return 0.9
	case ScenarioMalware:
		return 0.7
	default:
		return 0.4
	}
}

// Signatures returns the signature set drawn from.
func (s Scenario) Signatures() []Signature {
	switch s {
	case ScenarioBruteForce:
		return sshBruteSignatures
	case ScenarioWebExploit:
		return webExploitSignatures
	case ScenarioMalware:
		return malwareSignatures
	default:
		all := make([]Signature, 0, len(sshBruteSignatures)+len(webExploitSignatures)+len(malwareSignatures)+len(generalSignatures))
		all = append(all, sshBruteSignatures...)
		all = append(all, webExploitSignatures...)
		all = append(all, malwareSignatures...)
		return append(all, generalSignatures...)
	}
}

// Step is one stage of a demo run.
type Step struct {
	Scenario Scenario
	Duration time.Duration
}

// DemoPlan returns the attack sequence played by ScenarioDemo.
func DemoPlan(step time.Duration) []Step {
	return []Step{
		{Scenario: ScenarioBruteForce, Duration: step},
		{Scenario: ScenarioWebExploit, Duration: step},
		{Scenario: ScenarioMalware, Duration: step},
	}
}

// Record is a Suricata eve.json alert record.
type Record struct {
	Timestamp string `json:"timestamp"`
	FlowID    int64  `json:"flow_id"`
	InIface   string `json:"in_iface"`
	EventType string `json:"event_type"`
	SrcIP     string `json:"src_ip"`
	SrcPort   int    `json:"src_port"`
	DestIP    string `json:"dest_ip"`
	DestPort  int    `json:"dest_port"`
	Proto     string `json:"proto"`
	PktSrc    string `json:"pkt_src"`
	Alert     Alert  `json:"alert"`
	Direction string `json:"direction"`
	Flow      Flow   `json:"flow"`
}

// Alert is the alert section of a Record.
type Alert struct {
	Action      string `json:"action"`
	GID         int    `json:"gid"`
	SignatureID int64  `json:"signature_id"`
	Rev         int    `json:"rev"`
	Signature   string `json:"signature"`
	Category    string `json:"category"`
	Severity    int    `json:"severity"`
}

// Flow is the flow section of a Record.
type Flow struct {
	PktsToServer  int    `json:"pkts_toserver"`
	PktsToClient  int    `json:"pkts_toclient"`
	BytesToServer int    `json:"bytes_toserver"`
	BytesToClient int    `json:"bytes_toclient"`
	Start         string `json:"start"`
	SrcIP         string `json:"src_ip"`
	DestIP        string `json:"dest_ip"`
	SrcPort       int    `json:"src_port"`
	DestPort      int    `json:"dest_port"`
}

// Generator produces records for the current scenario. It is safe for
// concurrent use.
type Generator struct {
	mu       sync.Mutex
	rng      *rand.Rand
	scenario Scenario
	now      func() time.Time
}

// NewGenerator returns a generator seeded with seed.
func NewGenerator(seed int64) *Generator {
	return &Generator{
		rng:      rand.New(rand.NewSource(seed)),
		scenario: ScenarioNormal,
		now:      time.Now,
	}
}

// SetScenario switches the scenario used by subsequent records.
func (g *Generator) SetScenario(s Scenario) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.scenario = s
}

// Scenario returns the current scenario.
func (g *Generator) Scenario() Scenario {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.scenario
}

// Batch returns n records.
func (g *Generator) Batch(n int) []Record {
	if n < 1 {
		n = 1
	}
	out := make([]Record, n)
	for i := range out {
		out[i] = g.Record()
	}
	return out
}

// Record returns one alert record.
func (g *Generator) Record() Record {
	g.mu.Lock()
	defer g.mu.Unlock()

	dest := g.destination()
	src := g.sourceIP()
	sigs := g.scenario.Signatures()
	sig := sigs[g.rng.Intn(len(sigs))]
	action := "allowed"
	if g.rng.Float64() < g.scenario.BlockRatio() {
		action = "blocked"
	}
	proto := "TCP"
	if g.rng.Intn(2) == 1 {
		proto = "UDP"
	}
	ts := g.now().UTC().Format("2006-01-02T15:04:05.000000-0700")

	return Record{
		Timestamp: ts,
		FlowID:    g.rng.Int63n(1<<48) + 1,
		InIface:   "br-demo",
		EventType: "alert",
		SrcIP:     src,
		SrcPort:   1024 + g.rng.Intn(60000-1024+1),
		DestIP:    dest.IP,
		DestPort:  dest.Port,
		Proto:     proto,
		PktSrc:    "wire/pcap",
		Alert: Alert{
			Action:      action,
			GID:         1,
			SignatureID: sig.ID,
			Rev:         1,
			Signature:   sig.Name,
			Severity:    sig.Severity,
		},
		Direction: "to_server",
		Flow: Flow{
			PktsToServer:  1,
			BytesToServer: 40 + g.rng.Intn(1500-40+1),
			Start:         ts,
			SrcIP:         src,
			DestIP:        dest.IP,
			SrcPort:       1024 + g.rng.Intn(60000-1024+1),
			DestPort:      dest.Port,
		},
	}
}

// destination picks a campus data center 70% of the time, a global one otherwise.
func (g *Generator) destination() Destination {
	if g.rng.Float64() < 0.7 {
		return campusDestinations[g.rng.Intn(len(campusDestinations))]
	}
	return globalDestinations[g.rng.Intn(len(globalDestinations))]
}

func (g *Generator) sourceIP() string {
	n := g.rng.Intn(totalPoolWeight)
	for _, p := range sourcePools {
		if n < p.Weight {
			return p.IPs[g.rng.Intn(len(p.IPs))]
		}
		n -= p.Weight
	}
	last := sourcePools[len(sourcePools)-1]
	return last.IPs[0]
}
