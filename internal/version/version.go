// Package version reports the build identity of codeparser. Release builds
// set the variables below with -ldflags "-X <pkg>.Version=... -X <pkg>.Commit=...
// -X <pkg>.Date=..."; local builds fall back to the VCS stamp in the binary.
package version

import (
	"encoding/json"
	"fmt"
	"runtime"
	"runtime/debug"
)

const ApplicationName = "codeparser"

const unknown = "unknown"

var (
	Version = "0.0.0"
	Commit  = unknown
	Date    = unknown
)

func init() {
	if Commit != unknown {
		return
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			Commit = s.Value
		case "vcs.time":
			Date = s.Value
		}
	}
}

// Info is the machine-readable build identity.
type Info struct {
	Version   string   `json:"version"`
	Commit    string   `json:"commit"`
	CommitSHA string   `json:"commit_sha,omitempty"`
	Date      string   `json:"date"`
	GoVersion string   `json:"go_version"`
	Platform  string   `json:"platform"`
	Languages []string `json:"languages,omitempty"`
}

// shortCommit is the 8-character abbreviation, or "" when no commit is known.
func shortCommit() string {
	if Commit == unknown || len(Commit) < 8 {
		return ""
	}
	return Commit[:8]
}

func GetInfo() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		CommitSHA: shortCommit(),
		Date:      Date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String is the line printed by "codeparser version".
func String() string {
	info := GetInfo()
	details := info.GoVersion + ", " + info.Platform
	if info.CommitSHA != "" {
		details = fmt.Sprintf("commit: %s, built: %s, %s", info.CommitSHA, info.Date, details)
	}
	return fmt.Sprintf("%s version %s (%s)", ApplicationName, info.Version, details)
}

// Short is used for --version and as the MCP and HTTP server version.
func Short() string {
	if sha := shortCommit(); sha != "" {
		return Version + " (" + sha + ")"
	}
	return Version
}

// JSON renders Info with the languages the running engine supports.
func JSON(languages ...string) string {
	info := GetInfo()
	info.Languages = languages
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(data)
}
