// Package buildinfo exposes version information injected at build time.
package buildinfo

// These are set via -ldflags at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)
