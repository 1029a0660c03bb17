// Package version reports the build version of the icubam binary.
package version

import (
	"strings"

	"golang.org/x/mod/semver"
)

// Set at link time:
//
//	go build -ldflags "-X github.com/icubam/icubam/internal/shared/version.Version=1.4.0 -X github.com/icubam/icubam/internal/shared/version.Commit=abc123"
var (
	Version = "dev"
	Commit  = ""
)

// Normalize ensures version string has "v" prefix for semver compatibility.
func Normalize(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

// String is the canonical release version, or the raw value for
// development builds, followed by the commit when known.
func String() string {
	v := Version
	if n := Normalize(v); semver.IsValid(n) {
		v = semver.Canonical(n)
	}
	if Commit != "" {
		v += " (" + Commit + ")"
	}
	return v
}
