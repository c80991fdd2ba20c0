package trafficgen

import (
	"encoding/json"
	"net"
	"strings"
	"testing"
	"time"
)

func TestParseScenario(t *testing.T) {
	tests := []struct {
		in      string
		want    Scenario
		wantErr bool
	}{
		{"normal", ScenarioNormal, false},
		{" BruteForce ", ScenarioBruteForce, false},
		{"webexploit", ScenarioWebExploit, false},
		{"malware", ScenarioMalware, false},
		{"demo", ScenarioDemo, false},
		{"", ScenarioNormal, false},
		{"ddos", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseScenario(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseScenario(%q) err = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseScenario(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestScenarioSettings(t *testing.T) {
	tests := []struct {
		s     Scenario
		rate  float64
		block float64
		sigs  int
	}{
		{ScenarioNormal, 3, 0.4, 23},
		{ScenarioBruteForce, 5, 0.9, 5},
		{ScenarioWebExploit, 4, 0.4, 7},
		{ScenarioMalware, 2, 0.7, 6},
	}
	for _, tt := range tests {
		t.Run(string(tt.s), func(t *testing.T) {
			if tt.s.Rate() != tt.rate || tt.s.BlockRatio() != tt.block || len(tt.s.Signatures()) != tt.sigs {
				t.Errorf("%s: rate %v block %v sigs %d", tt.s, tt.s.Rate(), tt.s.BlockRatio(), len(tt.s.Signatures()))
			}
		})
	}
}

func TestDemoPlan(t *testing.T) {
	plan := DemoPlan(30 * time.Second)
	want := []Scenario{ScenarioBruteForce, ScenarioWebExploit, ScenarioMalware}
	if len(plan) != len(want) {
		t.Fatalf("plan = %+v", plan)
	}
	for i, step := range plan {
		if step.Scenario != want[i] || step.Duration != 30*time.Second {
			t.Errorf("step %d = %+v", i, step)
		}
	}
}

func TestSourcePools(t *testing.T) {
	if totalPoolWeight != 106 {
		t.Errorf("total weight = %d", totalPoolWeight)
	}
	if len(sourcePools[0].IPs) != 29 || sourcePools[0].IPs[0] != "129.25.1.101" {
		t.Errorf("stetson pool = %v", sourcePools[0].IPs)
	}
	for _, p := range sourcePools {
		for _, ip := range p.IPs {
			if net.ParseIP(ip) == nil {
				t.Errorf("pool %s: invalid ip %q", p.Name, ip)
			}
		}
	}
}

func TestGenerator_Record(t *testing.T) {
	g := NewGenerator(42)
	fixed := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return fixed }

	for i := 0; i < 200; i++ {
		r := g.Record()
		if r.EventType != "alert" || r.Timestamp != "2026-10-16T12:00:00.000000+0000" {
			t.Fatalf("record = %+v", r)
		}
		if r.Alert.Action != "allowed" && r.Alert.Action != "blocked" {
			t.Errorf("action = %q", r.Alert.Action)
		}
		if r.SrcPort < 1024 || r.SrcPort > 60000 || r.Flow.BytesToServer < 40 || r.Flow.BytesToServer > 1500 {
			t.Errorf("ranges: %+v", r)
		}
		if r.FlowID < 1 || r.Flow.SrcIP != r.SrcIP || r.Flow.DestPort != r.DestPort {
			t.Errorf("flow: %+v", r)
		}
	}
}

func TestGenerator_ScenarioShapesTraffic(t *testing.T) {
	g := NewGenerator(7)
	g.SetScenario(ScenarioBruteForce)
	if g.Scenario() != ScenarioBruteForce {
		t.Fatalf("Scenario = %q", g.Scenario())
	}

	blocked, campus := 0, 0
	const n = 2000
	for _, r := range g.Batch(n) {
		if !strings.HasPrefix(r.Alert.Signature, "SSH") {
			t.Fatalf("bruteforce produced %q", r.Alert.Signature)
		}
		if r.Alert.Action == "blocked" {
			blocked++
		}
		if strings.HasPrefix(r.DestIP, "129.25.") {
			campus++
		}
	}
	if ratio := float64(blocked) / n; ratio < 0.85 || ratio > 0.95 {
		t.Errorf("block ratio = %.3f", ratio)
	}
	if ratio := float64(campus) / n; ratio < 0.65 || ratio > 0.75 {
		t.Errorf("campus destination ratio = %.3f", ratio)
	}
}

func TestGenerator_BatchJSON(t *testing.T) {
	g := NewGenerator(1)
	if got := len(g.Batch(0)); got != 1 {
		t.Errorf("Batch(0) = %d records", got)
	}
	data, err := json.Marshal(g.Batch(3))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	alert, ok := raw[0]["alert"].(map[string]any)
	if len(raw) != 3 || !ok || alert["signature_id"] == nil || raw[0]["dest_ip"] == nil {
		t.Errorf("record json = %v", raw[0])
	}
}
