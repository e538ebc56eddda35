// Package version holds the build version, set with
// -ldflags "-X github.com/notwillk/optload/internal/version.Version=...".
package version

// Version is the optload release this binary was built from.
var Version = "dev"
