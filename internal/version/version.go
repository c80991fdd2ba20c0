// Package version reports build information for the alertmap binaries.
// Values are set at build time via ldflags, e.g.
// -ldflags '-X github.com/invisible-tech/alertmap/internal/version.Version=1.2.3 -X github.com/invisible-tech/alertmap/internal/version.Commit=abc123'
package version

import "runtime"

var (
	// Version defaults to 0.1.0 for local builds.
	Version = "0.1.0"
	// Commit is the source revision, if known.
	Commit = "unknown"
	// BuildDate is the build timestamp, if known.
	BuildDate = "unknown"
)

// Info is the build information reported by /health.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// Get returns the current build information.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}
}

// String renders the version with its commit when one was stamped in.
func (i Info) String() string {
	if i.Commit == "" || i.Commit == "unknown" {
		return i.Version
	}
	return i.Version + "+" + i.Commit
}
