// Package version reports how the running recordex binary was built.
//
// Release builds stamp the variables below with ldflags:
//
//	-X github.com/Aman-CERP/recordex/pkg/version.Version=$(VERSION)
//	-X github.com/Aman-CERP/recordex/pkg/version.Commit=$(git rev-parse --short HEAD)
//	-X github.com/Aman-CERP/recordex/pkg/version.Date=$(date -u +%FT%TZ)
//
// Unstamped builds fall back to the module and VCS data recorded by the Go
// toolchain, so `go install` binaries still report something useful.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// shortCommit is the length of an abbreviated commit hash.
const shortCommit = 12

// BuildInfo describes the build for JSON output.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// Get returns the build information. ldflags values win over toolchain data.
func Get() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		fillFromBuildInfo(&info, bi)
	}
	if info.Commit == "" {
		info.Commit = "unknown"
	}
	if info.Date == "" {
		info.Date = "unknown"
	}
	return info
}

func fillFromBuildInfo(info *BuildInfo, bi *debug.BuildInfo) {
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "" {
				info.Commit = s.Value
				if len(info.Commit) > shortCommit {
					info.Commit = info.Commit[:shortCommit]
				}
			}
		case "vcs.time":
			if info.Date == "" {
				info.Date = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
}

// String returns a one-line description of the build.
func String() string {
	i := Get()
	commit := i.Commit
	if i.Modified {
		commit += "-dirty"
	}
	return fmt.Sprintf("recordex %s (commit: %s, built: %s, %s %s/%s)",
		i.Version, commit, i.Date, i.GoVersion, i.OS, i.Arch)
}

// Short returns the version alone.
func Short() string {
	return Get().Version
}
