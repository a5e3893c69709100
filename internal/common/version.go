package common

import "fmt"

// Set via -ldflags at build time:
//
//	-X github.com/ternarybob/auspex/internal/common.Version=1.2.3
//	-X github.com/ternarybob/auspex/internal/common.Build=2026-08-31T10:00:00Z
//	-X github.com/ternarybob/auspex/internal/common.GitCommit=abc1234
var (
	Version   = "dev"
	Build     = "unknown"
	GitCommit = "unknown"
)

// GetVersion returns the bare version string.
func GetVersion() string {
	return Version
}

// GetFullVersion returns the version with build metadata for status
// endpoints and crash reports.
func GetFullVersion() string {
	return fmt.Sprintf("%s (build: %s, commit: %s)", Version, Build, GitCommit)
}
