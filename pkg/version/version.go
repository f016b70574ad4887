// Package version carries the build identity of the sigmux binary.
package version

import "runtime"

// Stamped by the release build through -ldflags -X; the zero values
// identify a plain `go build` from a working tree.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
	GoVersion = runtime.Version()
)
