package version

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/mod/semver"
)

// Version is the released version of habitsense.
// Override at build time:
//
//	go build -ldflags "-X github.com/hrygo/habitsense/internal/version.Version=v0.3.0"
var Version = "0.3.0"

// DevVersion is reported in dev and demo mode.
var DevVersion = Version + "-dev"

// GitCommit and BuildTime are injected with -ldflags -X.
var (
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// GetCurrentVersion returns the version reported for the given profile mode.
func GetCurrentVersion(mode string) string {
	switch mode {
	case "dev", "demo":
		return DevVersion
	default:
		return Version
	}
}

// canonical maps "0.3.0" to the "v0.3.0" form semver expects.
func canonical(v string) string {
	return "v" + strings.TrimPrefix(v, "v")
}

// IsValid reports whether v is a semantic version. The "v" prefix is optional.
func IsValid(v string) bool {
	return semver.IsValid(canonical(v))
}

// IsVersionGreaterOrEqualThan reports whether v >= target.
func IsVersionGreaterOrEqualThan(v, target string) bool {
	return semver.Compare(canonical(v), canonical(target)) >= 0
}

// IsVersionGreaterThan reports whether v > target.
func IsVersionGreaterThan(v, target string) bool {
	return semver.Compare(canonical(v), canonical(target)) > 0
}

// Sorted returns a copy of versions in ascending semantic order.
func Sorted(versions []string) []string {
	out := append([]string(nil), versions...)
	sort.SliceStable(out, func(i, j int) bool {
		return semver.Compare(canonical(out[i]), canonical(out[j])) < 0
	})
	return out
}

// Latest returns the highest of versions, or "" when there is none.
func Latest(versions []string) string {
	latest := ""
	for _, v := range versions {
		if latest == "" || IsVersionGreaterThan(v, latest) {
			latest = v
		}
	}
	return latest
}

// String is the version with the short commit hash, when known.
func String() string {
	if GitCommit == "" || GitCommit == "unknown" {
		return Version
	}
	commit := GitCommit
	if len(commit) > 8 {
		commit = commit[:8]
	}
	return Version + "-" + commit
}

// StringFull adds the build time to String.
func StringFull() string {
	s := "Version=" + String()
	if BuildTime != "" && BuildTime != "unknown" {
		s += fmt.Sprintf(" BuildTime=%s", BuildTime)
	}
	return s
}
