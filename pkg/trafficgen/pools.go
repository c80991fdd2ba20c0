package trafficgen

import "fmt"

// Signature is a Suricata rule the generator raises.
type Signature struct {
	ID       int64
	Name     string
	Severity int
}

var sshBruteSignatures = []Signature{
	{1002001, "SSH brute force attempt", 4},
	{1002002, "SSH login failure", 3},
	{1002003, "SSH multiple login attempts", 4},
	{1002004, "SSH dictionary attack", 5},
	{1002005, "SSH credential stuffing", 4},
}

var webExploitSignatures = []Signature{
	{1003001, "HTTP suspicious URI", 3},
	{1003002, "SQL injection attempt", 5},
	{1003003, "XSS attack detected", 4},
	{1003004, "Directory traversal attempt", 4},
	{1003005, "PHP code injection", 5},
	{1003006, "Apache Struts exploit", 5},
	{1003007, "WordPress vulnerability scan", 3},
}

var malwareSignatures = []Signature{
	{1007001, "Malware command and control", 5},
	{1007002, "Botnet communication", 5},
	{1007003, "Suspicious DNS query", 3},
	{1007004, "Data exfiltration attempt", 5},
	{1007005, "Cryptominer traffic", 4},
	{1007006, "Ransomware communication", 5},
}

var generalSignatures = []Signature{
	{1001002, "Cowrie probe to :2222", 3},
	{1004001, "Potential data exfiltration", 5},
	{1005001, "VPN connection anomaly", 3},
	{1006001, "Database query injection attempt", 4},
	{1008001, "Unusual network traffic pattern", 2},
}

// Destination is a protected data center.
type Destination struct {
	IP   string
	Port int
	Name string
}

var campusDestinations = []Destination{
	{"129.25.10.254", 2222, "Stetson University Main DC"},
	{"129.25.20.10", 22, "Stetson Business School DC"},
	{"129.25.30.5", 80, "Stetson Library DC"},
	{"129.25.40.77", 443, "Stetson Research DC"},
}

var globalDestinations = []Destination{
	{"185.199.108.10", 443, "London, UK"},
	{"13.107.42.14", 80, "Dublin, Ireland"},
	{"104.16.249.249", 443, "San Francisco, USA"},
	{"172.217.3.142", 443, "Mountain View, USA"},
	{"52.84.230.120", 80, "Virginia, USA"},
	{"13.35.23.75", 443, "Frankfurt, Germany"},
	{"54.230.87.200", 80, "Tokyo, Japan"},
	{"13.225.103.118", 443, "Sydney, Australia"},
	{"157.240.11.35", 443, "Singapore"},
	{"31.13.64.35", 80, "Stockholm, Sweden"},
}

// Pool is a weighted set of source addresses for one region.
type Pool struct {
	Name   string
	Weight int
	IPs    []string
}

func pool(name string, weight, n int, ip func(i int) string) Pool {
	p := Pool{Name: name, Weight: weight, IPs: make([]string, 0, n-1)}
	for i := 1; i < n; i++ {
		p.IPs = append(p.IPs, ip(i))
	}
	return p
}

// sourcePools favor domestic ranges; the private ranges stand in for regions
// the fallback geo table knows about.
var sourcePools = []Pool{
	pool("stetson", 20, 30, func(i int) string { return fmt.Sprintf("129.25.%d.%d", i%10, 100+i) }),
	pool("us_ny", 12, 15, func(i int) string { return fmt.Sprintf("172.16.%d.%d", i%50, 10+i) }),
	pool("us_ca", 12, 15, func(i int) string { return fmt.Sprintf("172.17.%d.%d", i%50, 10+i) }),
	pool("us_tx", 10, 15, func(i int) string { return fmt.Sprintf("172.18.%d.%d", i%50, 10+i) }),
	pool("us_wa", 8, 12, func(i int) string { return fmt.Sprintf("172.19.%d.%d", i%50, 10+i) }),
	pool("us_ill", 8, 12, func(i int) string { return fmt.Sprintf("172.20.%d.%d", i%50, 10+i) }),
	pool("us_ga", 8, 12, func(i int) string { return fmt.Sprintf("172.21.%d.%d", i%50, 10+i) }),
	pool("us_other", 10, 20, func(i int) string { return fmt.Sprintf("192.168.%d.%d", 100+i%30, 1+i) }),
	pool("canada", 3, 10, func(i int) string { return fmt.Sprintf("203.%d.%d.%d", i%50, 100+i%50, 5+i) }),
	pool("brazil", 2, 8, func(i int) string { return fmt.Sprintf("201.%d.%d.%d", i%40, 80+i%50, 10+i) }),
	pool("south_america", 2, 8, func(i int) string { return fmt.Sprintf("200.%d.%d.%d", i%50, 70+i%50, 15+i) }),
	pool("uk", 2, 8, func(i int) string { return fmt.Sprintf("185.%d.%d.%d", 200+i%30, 50+i%100, 5+i) }),
	pool("europe", 3, 20, func(i int) string { return fmt.Sprintf("10.%d.%d.%d", 200+i%10, 50+i%200, 5+i) }),
	pool("asia_india", 2, 8, func(i int) string { return fmt.Sprintf("172.30.%d.%d", i%50, 10+i) }),
	pool("asia_jp", 2, 8, func(i int) string { return fmt.Sprintf("172.31.%d.%d", i%50, 10+i) }),
	pool("asia_sg", 2, 8, func(i int) string { return fmt.Sprintf("180.%d.%d.%d", i%30, 100+i%50, 5+i) }),
}

var totalPoolWeight = func() int {
	total := 0
	for _, p := range sourcePools {
		total += p.Weight
	}
	return total
}()
