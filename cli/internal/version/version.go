// Package version reports build information of the CLI.
package version

import (
	"fmt"
	"runtime"

	"github.com/satishbabariya/prisma-go-relations/schemafile"
)

var (
	// Version is the version of the CLI
	Version = "0.1.0"
	// BuildDate is the build date
	BuildDate = "unknown"
	// GitCommit is the git commit hash
	GitCommit = "unknown"
)

// Info holds version information
type Info struct {
	Version      string `json:"version"`
	BuildDate    string `json:"build_date"`
	GitCommit    string `json:"git_commit"`
	GoVersion    string `json:"go_version"`
	Platform     string `json:"platform"`
	FileVersions string `json:"relation_file_versions"`
}

// Get returns version information
func Get() Info {
	return Info{
		Version:      Version,
		BuildDate:    BuildDate,
		GitCommit:    GitCommit,
		GoVersion:    runtime.Version(),
		Platform:     fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		FileVersions: schemafile.SupportedVersions,
	}
}

// String returns a formatted version string
func (i Info) String() string {
	return fmt.Sprintf("prisma-relations version %s (%s %s)", i.Version, i.Platform, i.GoVersion)
}

// FullString returns a detailed version string
func (i Info) FullString() string {
	return fmt.Sprintf(`prisma-relations version %s
Build Date: %s
Git Commit: %s
Platform: %s
Go Version: %s
Relation files: %s`, i.Version, i.BuildDate, i.GitCommit, i.Platform, i.GoVersion, i.FileVersions)
}
