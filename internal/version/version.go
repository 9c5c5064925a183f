// Package version reports the analyst release version.
package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var versionContent string

// override is set at build time:
//
//	go build -ldflags "-X github.com/ShayCichocki/analyst/internal/version.override=1.2.3"
var override string

// Get returns the current version, with whitespace trimmed
func Get() string {
	if v := strings.TrimSpace(override); v != "" {
		return v
	}
	return strings.TrimSpace(versionContent)
}
