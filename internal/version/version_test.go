package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func stubBuildInfo(t *testing.T, settings ...debug.BuildSetting) {
	t.Helper()
	oldCommit, oldBuild, oldRead := Commit, BuildTime, readBuildInfo
	t.Cleanup(func() { Commit, BuildTime, readBuildInfo = oldCommit, oldBuild, oldRead })
	readBuildInfo = func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{Settings: settings}, true
	}
}

func TestStringFromLdflags(t *testing.T) {
	stubBuildInfo(t, debug.BuildSetting{Key: "vcs.revision", Value: "ffffffffffff"})
	Commit = "0123456789abcdef"
	BuildTime = "2026-01-02T03:04:05Z"

	if got := Short(); got != "0123456" {
		t.Errorf("Short() = %q, want 0123456", got)
	}
	s := String()
	if !strings.HasPrefix(s, "gmpsched dev") || !strings.Contains(s, "0123456") || !strings.Contains(s, BuildTime) {
		t.Errorf("unexpected version string %q", s)
	}

	Commit = "abc"
	if got := Short(); got != "abc" {
		t.Errorf("Short() = %q, want abc", got)
	}
}

func TestStringFromBuildInfo(t *testing.T) {
	tests := []struct {
		name     string
		settings []debug.BuildSetting
		short    string
		built    string
	}{
		{
			name: "clean checkout",
			settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "89abcdef01234567"},
				{Key: "vcs.time", Value: "2026-03-04T05:06:07Z"},
				{Key: "vcs.modified", Value: "false"},
			},
			short: "89abcde",
			built: "2026-03-04T05:06:07Z",
		},
		{
			name: "dirty tree",
			settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "89abcdef01234567"},
				{Key: "vcs.modified", Value: "true"},
			},
			short: "89abcde-dirty",
			built: "unknown",
		},
		{
			name:  "no vcs stamp",
			short: "unknown",
			built: "unknown",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubBuildInfo(t, tt.settings...)
			Commit, BuildTime = "unknown", "unknown"

			if got := Short(); got != tt.short {
				t.Errorf("Short() = %q, want %q", got, tt.short)
			}
			if s := String(); !strings.Contains(s, "built: "+tt.built) {
				t.Errorf("String() = %q, want build time %s", s, tt.built)
			}
		})
	}
}
