package semverutil

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// acceptAll are the range spellings that mean "every version satisfies".
var acceptAll = map[string]bool{
	"":    true,
	"*":   true,
	"any": true,
	"^*":  true,
	"~*":  true,
	"x":   true,
	"X":   true,
}

// PrefersPreReleases reports whether rangeStr is of the "~MAJOR.MINOR-TAG"
// shape that §4.1 calls out as implying prefer-pre-release ordering for
// query results, e.g. "~1.2-beta".
func PrefersPreReleases(rangeStr string) bool {
	r := strings.TrimSpace(rangeStr)
	if !strings.HasPrefix(r, "~") {
		return false
	}
	r = strings.TrimPrefix(r, "~")
	dash := strings.Index(r, "-")
	if dash < 0 {
		return false
	}
	core := r[:dash]
	tag := r[dash+1:]
	if tag == "" {
		return false
	}
	parts := strings.Split(core, ".")
	if len(parts) != 2 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
		for _, c := range p {
			if c < '0' || c > '9' {
				return false
			}
		}
	}
	return true
}

// Sat filters versions down to those satisfying rangeStr, per §4.1. Accepts
// the common ^, ~, >, >=, <, <=, =, ||, and hyphen-range operators via
// Masterminds/semver, and treats pre-releases as eligible to match even when
// the range itself names no pre-release tag.
func Sat(rangeStr string, versions []string) []string {
	r := strings.TrimSpace(rangeStr)
	if acceptAll[r] {
		out := make([]string, len(versions))
		copy(out, versions)
		return out
	}

	constraint, err := semver.NewConstraint(r)
	if err != nil {
		return nil
	}

	var out []string
	for _, v := range versions {
		coerced, ok := CoerceSemver(v)
		if !ok {
			continue
		}
		sv, err := semver.NewVersion(coerced)
		if err != nil {
			continue
		}
		if constraint.Check(sv) {
			out = append(out, v)
			continue
		}
		// Masterminds/semver excludes pre-releases from a range unless the
		// range itself carries a pre-release tag on a matching core version.
		// Per §4.1 "pre-releases are allowed when matching", retry against
		// the release core so a tagged build isn't rejected solely for
		// carrying a pre-release suffix.
		if sv.Prerelease() != "" {
			core, err := sv.SetPrerelease("")
			if err == nil && constraint.Check(&core) {
				out = append(out, v)
			}
		}
	}
	return out
}
