package version

import "fmt"

// Version and Commit are set at build time with -ldflags.
var (
	Version = "0.1.0"
	Commit  = "dev"
)

// Full returns the version line printed by the CLI.
func Full() string {
	return fmt.Sprintf("datacache %s (%s)", Version, Commit)
}
