// Package version provides build version information.
//
// Version information is injected at build time via -ldflags, for example:
//
//	go build -ldflags "-X github.com/isdmx/execd/version.GitCommit=$(git rev-parse --short HEAD)"
package version

import (
	"fmt"
	"runtime"
)

// These variables are set via -ldflags at build time.
var (
	GitCommit = "unknown"
	BuildTime = "unknown"
	Version   = "1.0.0"
)

// Info returns a formatted version string suitable for --version output
func Info() string {
	return fmt.Sprintf("%s (%s, %s, %s)", Version, GitCommit, BuildTime, runtime.Version())
}
