// Package buildinfo holds the version metadata of txthread binaries.
package buildinfo

import (
	"fmt"
	"runtime/debug"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// Commit is set at build time via -ldflags. When unset, the VCS revision
// recorded by the Go toolchain is used.
var Commit = "unknown"

// Date is set at build time via -ldflags.
var Date = "unknown"

var readBuildInfo = debug.ReadBuildInfo

// Short returns a compact build identifier for the UI and logs.
func Short() string {
	if Version != "" && Version != "dev" {
		return Version
	}
	if c := commit(); c != "unknown" {
		if len(c) > 7 {
			c = c[:7]
		}
		return c
	}
	return "dev"
}

// String is the full version line.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, commit(), Date)
}

func commit() string {
	if Commit != "" && Commit != "unknown" {
		return Commit
	}
	bi, ok := readBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			return s.Value
		}
	}
	return "unknown"
}
