// Package version exposes shellqueue build metadata, shown by the version
// subcommand.
package version

import "runtime"

// Injected at build time via -ldflags="-X .../internal/version.Version=...".
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// GoVersion returns the Go runtime version string.
func GoVersion() string { return runtime.Version() }
