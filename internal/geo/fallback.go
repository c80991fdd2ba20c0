package geo

// DefaultRules returns the static prefix table for the campus deployment and
// the synthetic regional pools the simulator draws from. The first matching
// prefix wins.
func DefaultRules() []Rule {
	return []Rule{
		// Florida
		{"129.25.", Location{29.0283, -81.3031, "DeLand, FL", "United States", "Florida", "North America"}},
		{"10.77.", Location{29.0283, -81.3031, "DeLand, FL", "United States", "Florida", "North America"}},
		{"10.0.", Location{28.5383, -81.3792, "Orlando, FL", "United States", "Florida", "North America"}},
		{"192.168.", Location{27.9506, -82.4572, "Tampa, FL", "United States", "Florida", "North America"}},

		{"172.16.", Location{40.7128, -74.0060, "New York, NY", "United States", "New York", "North America"}},
		{"172.17.", Location{37.7749, -122.4194, "San Francisco, CA", "United States", "California", "North America"}},
		{"172.18.", Location{29.7604, -95.3698, "Houston, TX", "United States", "Texas", "North America"}},
		{"172.19.", Location{47.6062, -122.3321, "Seattle, WA", "United States", "Washington", "North America"}},
		{"172.20.", Location{41.8781, -87.6298, "Chicago, IL", "United States", "Illinois", "North America"}},
		{"172.21.", Location{33.7490, -84.3880, "Atlanta, GA", "United States", "Georgia", "North America"}},

		{"203.", Location{43.6532, -79.3832, "Toronto, ON", "Canada", "Ontario", "North America"}},

		{"201.", Location{-23.5505, -46.6333, "São Paulo, BR", "Brazil", "São Paulo", "South America"}},
		{"200.", Location{-12.0464, -77.0428, "Lima, PE", "Peru", "Lima", "South America"}},

		{"185.200.", Location{51.5074, -0.1278, "London, UK", "United Kingdom", "England", "Europe"}},
		{"10.20", Location{52.5200, 13.4050, "Berlin, DE", "Germany", "Berlin", "Europe"}},

		{"172.30.", Location{19.0760, 72.8777, "Mumbai, IN", "India", "Maharashtra", "Asia"}},
		{"172.31.", Location{35.6762, 139.6503, "Tokyo, JP", "Japan", "Tokyo", "Asia"}},
		{"180.", Location{1.3521, 103.8198, "Singapore, SG", "Singapore", "Singapore", "Asia"}},
	}
}
