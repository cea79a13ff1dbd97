// Package version provides version and build information.
package version

import (
	_ "embed"
	"fmt"
	"runtime/debug"
	"strings"
)

//go:embed VERSION
var versionFile string

// Linker-injected variables. Set via:
//
//	go build -ldflags "-X github.com/codegraphhq/codegraph/internal/version.gitCommit=VALUE"
var (
	gitCommit string
	buildDate string
)

// Info holds version and build information.
type Info struct {
	Version   string
	GitCommit string
	BuildDate string
}

// String formats Info for display.
func (i Info) String() string {
	return fmt.Sprintf("Version:    %s\nGit Commit: %s\nBuild Date: %s",
		i.Version, i.GitCommit, i.BuildDate)
}

// Get returns the populated version information.
func Get() Info {
	return Info{
		Version:   strings.TrimSpace(versionFile),
		GitCommit: resolveCommit(),
		BuildDate: resolveBuildDate(),
	}
}

// resolveCommit prefers the linker flag, falls back to VCS build info for
// go install builds.
func resolveCommit() string {
	if gitCommit != "" {
		return gitCommit
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}

	var revision string
	var dirty bool
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
			if len(revision) > 7 {
				revision = revision[:7]
			}
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	if revision == "" {
		return "unknown"
	}
	if dirty {
		return revision + "-dirty"
	}
	return revision
}

func resolveBuildDate() string {
	if buildDate != "" {
		return buildDate
	}
	return "unknown"
}
