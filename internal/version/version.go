// Package version carries build metadata stamped via -ldflags.
package version

import "fmt"

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Get returns a single-line version string.
func Get() string {
	return fmt.Sprintf("scoresws %s (commit=%s date=%s)", version, commit, date)
}
