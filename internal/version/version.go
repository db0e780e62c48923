// Package version carries build metadata set with -ldflags, e.g.
// -X github.com/oukeidos/arcat/internal/version.Version=0.2.0
package version

import "fmt"

var (
	Version   = "0.1.0"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Info returns a multi-line version string for CLI output.
func Info() string {
	return fmt.Sprintf("arcat %s\ncommit: %s\nbuild: %s", Version, Commit, BuildDate)
}
