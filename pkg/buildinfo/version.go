// Package buildinfo provides build-time version information.
//
// Variables are set via ldflags during build:
//
//	go build -ldflags "-X github.com/matzehuels/inktex/pkg/buildinfo.Version=v1.0.0 \
//	    -X github.com/matzehuels/inktex/pkg/buildinfo.Commit=$(git rev-parse HEAD) \
//	    -X github.com/matzehuels/inktex/pkg/buildinfo.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)" \
//	    ./cmd/inktex
package buildinfo

import "fmt"

var (
	// Version is the semantic version (e.g., "v1.2.3").
	Version = "dev"

	// Commit is the git commit SHA.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// Set replaces the build information, for binaries that receive it some
// other way than ldflags on this package.
func Set(version, commit, date string) {
	Version = version
	Commit = commit
	Date = date
}

// Info is the build information in serialisable form.
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Current returns the build information.
func Current() Info {
	return Info{Version: Version, Commit: Commit, Date: Date}
}

// Template returns the version template string for cobra.
func Template(name string) string {
	return fmt.Sprintf("%s %s\ncommit: %s\nbuilt: %s\n", name, Version, Commit, Date)
}
