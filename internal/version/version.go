// Package version reports build information for the visualtree binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"time"
)

// Set at build time with -ldflags "-X".
var (
	Version   = "dev"
	GitCommit = "unknown"
	// BuildTime is RFC3339.
	BuildTime = "unknown"
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string    `json:"version" yaml:"version"`
	GitCommit string    `json:"git_commit" yaml:"git_commit"`
	BuildTime time.Time `json:"build_time" yaml:"build_time"`
	GoVersion string    `json:"go_version" yaml:"go_version"`
	Platform  string    `json:"platform" yaml:"platform"`
	Modified  bool      `json:"modified,omitempty" yaml:"modified,omitempty"`
}

// vcs holds the settings stamped by the go tool.
type vcs struct {
	module   string
	revision string
	time     string
	modified bool
}

var readVCS = sync.OnceValue(func() vcs {
	var v vcs
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return v
	}
	if info.Main.Version != "(devel)" {
		v.module = info.Main.Version
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			v.revision = s.Value
		case "vcs.time":
			v.time = s.Value
		case "vcs.modified":
			v.modified = s.Value == "true"
		}
	}
	return v
})

// GetBuildInfo returns the build information, preferring linker-set
// values over those stamped by the go tool.
func GetBuildInfo() *BuildInfo {
	v := readVCS()

	info := &BuildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: parseTime(BuildTime),
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		Modified:  v.modified,
	}

	if info.Version == "" || info.Version == "dev" {
		info.Version = "dev"
		if v.module != "" {
			info.Version = v.module
		}
	}
	if (info.GitCommit == "" || info.GitCommit == "unknown") && v.revision != "" {
		info.GitCommit = v.revision
	}
	if info.BuildTime.IsZero() {
		info.BuildTime = parseTime(v.time)
	}

	return info
}

// GetShortVersion returns "<version> (<commit>)", or "dev-<commit>" for
// development builds.
func GetShortVersion() string {
	info := GetBuildInfo()
	if len(info.GitCommit) < 7 || info.GitCommit == "unknown" {
		return info.Version
	}

	short := info.GitCommit[:7]
	if info.Modified {
		short += "-dirty"
	}
	if info.Version == "dev" {
		return "dev-" + short
	}
	return fmt.Sprintf("%s (%s)", info.Version, short)
}

// GetDetailedVersion returns one "Key: value" line per field.
func GetDetailedVersion() string {
	info := GetBuildInfo()

	lines := []string{"Version: " + info.Version}
	if info.GitCommit != "unknown" {
		lines = append(lines, "Commit: "+info.GitCommit)
	}
	if !info.BuildTime.IsZero() {
		lines = append(lines, "Built: "+info.BuildTime.Format(time.RFC3339))
	}
	lines = append(lines, "Go: "+info.GoVersion, "Platform: "+info.Platform)

	return strings.Join(lines, "\n")
}

// IsRelease reports whether this is a tagged build.
func IsRelease() bool {
	v := GetBuildInfo().Version
	return v != "dev" && !strings.HasPrefix(v, "dev-") && !strings.Contains(v, "devel")
}

func parseTime(s string) time.Time {
	if s == "" || s == "unknown" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
