// Package version reports the build identity of the gmpsched binary.
package version

import (
	"fmt"
	"runtime/debug"
)

// These variables are set at build time via ldflags. Binaries built with
// plain `go install` fall back to the VCS stamp in the build info.
var (
	Commit    = "unknown"
	BuildTime = "unknown"
)

var readBuildInfo = debug.ReadBuildInfo

// String returns the version string (commit-hash based, no semver)
func String() string {
	commit, built := stamp()
	return fmt.Sprintf("gmpsched dev (commit: %s, built: %s)", abbrev(commit), built)
}

// Short returns the abbreviated commit hash, used as the service version in
// logs and metrics.
func Short() string {
	commit, _ := stamp()
	return abbrev(commit)
}

func stamp() (commit, built string) {
	commit, built = Commit, BuildTime
	if commit != "unknown" {
		return commit, built
	}
	info, ok := readBuildInfo()
	if !ok {
		return commit, built
	}
	dirty := false
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			commit = s.Value
		case "vcs.time":
			if built == "unknown" {
				built = s.Value
			}
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if dirty && commit != "unknown" {
		commit = abbrev(commit) + "-dirty"
	}
	return commit, built
}

func abbrev(commit string) string {
	if len(commit) > 7 && commit[7] != '-' {
		return commit[:7]
	}
	return commit
}
