package contracts

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

const (
	// Version is the release version.
	Version = "0.4.0"

	// DataFormatVersion is bumped when the report JSON layout changes.
	DataFormatVersion = "v1"

	// APIVersion covers the HTTP and WebSocket API.
	APIVersion = "v1"
)

// Set with -ldflags "-X integralq/pkg/contracts.GitCommit=...". When left
// unset, the VCS stamp embedded by the Go toolchain is used instead.
var (
	BuildTime = ""
	GitCommit = ""
)

// VersionInfo is served by GET /api/version and `integralq version --json`.
type VersionInfo struct {
	Version      string `json:"version"`
	BuildTime    string `json:"build_time"`
	GitCommit    string `json:"git_commit"`
	Modified     bool   `json:"modified,omitempty"`
	GoVersion    string `json:"go_version"`
	OS           string `json:"os"`
	Architecture string `json:"architecture"`
	DataFormat   string `json:"data_format"`
	APIVersion   string `json:"api_version"`
}

// GetVersionInfo combines the ldflags values with the embedded build info.
func GetVersionInfo() VersionInfo {
	info := VersionInfo{
		Version:      Version,
		BuildTime:    BuildTime,
		GitCommit:    GitCommit,
		GoVersion:    runtime.Version(),
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		DataFormat:   DataFormatVersion,
		APIVersion:   APIVersion,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.GitCommit == "" {
					info.GitCommit = s.Value
				}
			case "vcs.time":
				if info.BuildTime == "" {
					info.BuildTime = s.Value
				}
			case "vcs.modified":
				info.Modified = s.Value == "true"
			}
		}
	}
	if info.GitCommit == "" {
		info.GitCommit = "unknown"
	}
	if info.BuildTime == "" {
		info.BuildTime = "unknown"
	}
	return info
}

// GetVersionString returns "integralq vX.Y.Z".
func GetVersionString() string {
	return "integralq v" + Version
}

// GetFullVersionString adds commit, build time and platform.
func GetFullVersionString() string {
	info := GetVersionInfo()
	commit := info.GitCommit
	if len(commit) > 12 {
		commit = commit[:12]
	}
	if info.Modified {
		commit += "-dirty"
	}
	return fmt.Sprintf("%s (commit %s, built %s, %s %s/%s)",
		GetVersionString(), commit, info.BuildTime, info.GoVersion, info.OS, info.Architecture)
}
