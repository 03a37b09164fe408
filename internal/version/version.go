// Package version carries the build-time version string for --version.
package version

// Version is overridden at build time via -ldflags.
var Version = "dev"
