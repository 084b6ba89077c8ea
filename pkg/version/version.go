package version

import (
	"fmt"
	"runtime"
)

// Version information - using semantic versioning
const (
	Major      = 1
	Minor      = 0
	Patch      = 0
	PreRelease = "" // e.g., "alpha", "beta", "rc1"
	Name       = "UOMI Testnet Bot"
)

// Set at build time with -ldflags "-X github.com/uomi-testnet/uomi-bot/pkg/version.GitCommit=...".
var (
	GitCommit = ""
	BuildDate = ""
)

// Version returns the semantic version string
func Version() string {
	version := fmt.Sprintf("%d.%d.%d", Major, Minor, Patch)
	if PreRelease != "" {
		version += "-" + PreRelease
	}
	return version
}

// BuildInfo contains comprehensive build information
type BuildInfo struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	PreRelease string `json:"pre_release,omitempty"`
	GitCommit  string `json:"git_commit,omitempty"`
	BuildDate  string `json:"build_date,omitempty"`
	GoVersion  string `json:"go_version"`
	Platform   string `json:"platform"`
}

// GetBuildInfo returns complete build information
func GetBuildInfo() *BuildInfo {
	return &BuildInfo{
		Name:       Name,
		Version:    Version(),
		PreRelease: PreRelease,
		GitCommit:  GitCommit,
		BuildDate:  BuildDate,
		GoVersion:  runtime.Version(),
		Platform:   fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// GetVersionString returns a formatted version string
func GetVersionString() string {
	if len(GitCommit) >= 7 {
		return fmt.Sprintf("%s (%s)", Version(), GitCommit[:7])
	}
	return Version()
}

// GetFullVersionString returns a complete version string with build info
func GetFullVersionString() string {
	info := GetBuildInfo()
	result := fmt.Sprintf("%s v%s", info.Name, info.Version)

	if len(info.GitCommit) >= 7 {
		result += fmt.Sprintf(" (commit: %s)", info.GitCommit[:7])
	}
	if info.BuildDate != "" {
		result += fmt.Sprintf(" (built: %s)", info.BuildDate)
	}

	result += fmt.Sprintf(" (go: %s, platform: %s)", info.GoVersion, info.Platform)
	return result
}

// GetBanner returns the startup header
func GetBanner() string {
	title := fmt.Sprintf("%s v%s", Name, GetVersionString())
	line := "─────────────────────────────────────────────────"
	return fmt.Sprintf("┌%s┐\n│ %-47s │\n└%s┘", line, title, line)
}

// IsPreRelease returns true if this is a pre-release version
func IsPreRelease() bool {
	return PreRelease != ""
}
