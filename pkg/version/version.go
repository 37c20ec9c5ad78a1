// Package version exposes the shardpack build version.
package version

// Version is the shardpack build version. It is overridden at release time
// via -ldflags "-X github.com/spicor/shardpack/pkg/version.Version=v1.2.3".
//
//nolint:gochecknoglobals // Set by the linker at build time.
var Version = "0.1.0-dev"

// GetVersion returns the current build version string.
func GetVersion() string {
	return Version
}
