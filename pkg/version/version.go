// Package version exposes build-time version information. The variables
// are overridden with -ldflags at release time.
package version

import "fmt"

var (
	// Version is the semantic version of the binary.
	Version = "dev"
	// Commit is the VCS revision the binary was built from.
	Commit = "unknown"
	// Date is the build timestamp.
	Date = "unknown"
)

// String formats the full version line printed by the version command.
func String() string {
	return fmt.Sprintf("revchurn %s (commit: %s, built: %s)", Version, Commit, Date)
}
