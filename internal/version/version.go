// Package version reports build metadata.
package version

import "fmt"

// These variables are set at build time via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// String returns the full version string.
func String() string {
	return fmt.Sprintf("apm %s (commit: %s, built: %s)", Version, shortCommit(), BuildTime)
}

// Short returns the version announced to MCP clients.
func Short() string {
	if Commit == "unknown" {
		return Version
	}
	return Version + "+" + shortCommit()
}

func shortCommit() string {
	if len(Commit) > 7 {
		return Commit[:7]
	}
	return Commit
}
