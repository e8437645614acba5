package version

import "fmt"

// Version contains the application version information.
// This should be set via build-time ldflags in production:
// go build -ldflags "-X git.home.luguber.info/inful/pagebuilder/internal/version.Version=v0.3.0".
var Version = "dev"

// BuildInfo contains additional build metadata.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String renders the value printed by --version.
func String() string {
	return fmt.Sprintf("pagebuilder %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
