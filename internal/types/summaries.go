package types

// GroupSummary is one ranked geographic group.
type GroupSummary struct {
	Label           string   `json:"label"`
	Count           int      `json:"count"`
	Allowed         int      `json:"allowed"`
	Blocked         int      `json:"blocked"`
	AllowedRatio    float64  `json:"allowed_ratio"`
	SuspiciousScore float64  `json:"suspicious_score"`
	Rank            int      `json:"rank"`
	TopIPs          []string `json:"top_ips"`
	Suspicious      bool     `json:"suspicious"`
	Lat             float64  `json:"lat"`
	Lon             float64  `json:"lon"`
}

// IPSummary is one ranked source address with its risk assessment.
type IPSummary struct {
	IP          string      `json:"ip"`
	Count       int         `json:"count"`
	Blocked     int         `json:"blocked"`
	Allowed     int         `json:"allowed"`
	LastSeen    string      `json:"last_seen"`
	Lat         float64     `json:"lat"`
	Lon         float64     `json:"lon"`
	City        string      `json:"city"`
	Suspicious  bool        `json:"suspicious"`
	RiskScore   int         `json:"risk_score"`
	ThreatLevel ThreatLevel `json:"threat_level"`
}

// SignatureCount is a signature and how often it fired.
type SignatureCount struct {
	Signature string `json:"sig"`
	Count     int    `json:"count"`
}

// Metrics holds the dashboard KPIs for a window.
type Metrics struct {
	TotalEvents     int                 `json:"total_events"`
	BlockedEvents   int                 `json:"blocked_events"`
	UniqueSourceIPs int                 `json:"unique_source_ips"`
	ThreatLevels    map[ThreatLevel]int `json:"threat_levels"`
	TopSignatures   []SignatureCount    `json:"top_signatures"`
}

// SignatureStat is a blocked signature with its share of all blocked attacks.
type SignatureStat struct {
	Signature  string  `json:"signature"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Vulnerabilities is the top-signatures report for a window.
type Vulnerabilities struct {
	Vulnerabilities  []SignatureStat `json:"vulnerabilities"`
	TotalAttacks     int             `json:"total_attacks"`
	TimeframeMinutes int             `json:"timeframe_minutes"`
}

// EventSummary breaks down one address's events.
type EventSummary struct {
	Blocked          int `json:"blocked"`
	Allowed          int `json:"allowed"`
	UniqueSignatures int `json:"unique_signatures"`
}

// IPInfo is the detail view of a single source address.
type IPInfo struct {
	IP           string       `json:"ip"`
	Hostname     string       `json:"hostname"`
	ISP          string       `json:"isp"`
	ASN          string       `json:"asn"`
	City         string       `json:"city"`
	Region       string       `json:"region"`
	Country      string       `json:"country"`
	Latitude     float64      `json:"latitude"`
	Longitude    float64      `json:"longitude"`
	RiskScore    int          `json:"risk_score"`
	ThreatLevel  ThreatLevel  `json:"threat_level"`
	MatchedRules []string     `json:"matched_rules,omitempty"`
	TotalEvents  int          `json:"total_events"`
	IsMalicious  bool         `json:"is_malicious"`
	EventSummary EventSummary `json:"event_summary"`
}
