// Package version carries build identification for the door-audit binary.
package version

// Set via -ldflags "-X door-audit/internal/version.Version=..." at
// release build time.
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildTime = "unknown"
)
