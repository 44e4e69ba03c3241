// Package semverutil classifies and orders the three version shapes a
// package's `version` field may take — SemVer, date-like, and opaque
// "other" strings — and coerces loose version strings into SemVer form.
package semverutil

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Kind partitions a version string into one of three buckets. Ordering
// between buckets is Other < Date < Semver.
type Kind int

const (
	Other Kind = iota
	Date
	Semver
)

const (
	semverPattern = `^(0|[1-9][0-9]*)\.(0|[1-9][0-9]*)\.(0|[1-9][0-9]*)(-[-a-zA-Z0-9_+.]+)?$`

	// semverCoercePattern loosely matches `name@`, optional `v`/`V`, 1-3
	// numeric components with leading zeros, and an optional `-TAG` suffix.
	semverCoercePattern = `^(.*@)?[vV]?(0*([0-9]+)(\.0*([0-9]+)(\.0*([0-9]+))?)?(-[-a-zA-Z0-9_+.]+)?)$`

	// datePattern matches `YYYY-MM-DD` (2- or 4-digit year) or `MM-DD-YYYY`,
	// with an optional `-TAG` suffix.
	datePattern = `^([0-9][0-9]([0-9][0-9])?-[01]?[0-9]-[0-9][0-9]?|` +
		`[0-9][0-9]?-[0-9][0-9]?-[0-9][0-9]([0-9][0-9])?)(-[-a-zA-Z0-9_+.]+)?$`
)

var (
	semverRE        = regexp.MustCompile(semverPattern)
	semverCoerceRE  = regexp.MustCompile(semverCoercePattern)
	dateRE          = regexp.MustCompile(datePattern)
	dateSplitYMDRE  = regexp.MustCompile(`^([0-9]{2,4})-([01]?[0-9])-([0-9]{1,2})(-.*)?$`)
	dateSplitMDYRE  = regexp.MustCompile(`^([0-9]{1,2})-([0-9]{1,2})-([0-9]{2,4})(-.*)?$`)
)

// IsSemver reports whether version is already a strict SemVer string.
func IsSemver(version string) bool {
	return semverRE.MatchString(version)
}

// IsDate reports whether version is a date-like string.
func IsDate(version string) bool {
	return dateRE.MatchString(version)
}

// IsCoercibleToSemver reports whether version can be coerced to a SemVer
// string. Dates are explicitly excluded.
func IsCoercibleToSemver(version string) bool {
	return !dateRE.MatchString(version) && semverCoerceRE.MatchString(version)
}

// KindOf classifies a version string.
func KindOf(version string) Kind {
	switch {
	case IsSemver(version):
		return Semver
	case IsDate(version):
		return Date
	default:
		return Other
	}
}

// CoerceSemver normalizes version into a three-component SemVer string
// with its pre-release tag preserved, returning ok=false when version is
// neither already SemVer nor coercible (including any date-like string).
func CoerceSemver(version string) (string, bool) {
	if semverRE.MatchString(version) {
		return version, true
	}
	if IsDate(version) {
		return "", false
	}
	match := semverCoerceRE.FindStringSubmatch(version)
	if match == nil {
		return "", false
	}
	// Groups: [0] full, [1] name@, [2] rest, [3] major, [4] .minor, [5] minor,
	// [6] .patch, [7] patch, [8] -tag
	major := match[3]
	minor := match[5]
	patch := match[7]
	tag := match[8]

	var b strings.Builder
	b.WriteString(stripLeadingZeros(major))
	b.WriteByte('.')
	if minor == "" {
		b.WriteString("0")
	} else {
		b.WriteString(stripLeadingZeros(minor))
	}
	b.WriteByte('.')
	if patch == "" {
		b.WriteString("0")
	} else {
		b.WriteString(stripLeadingZeros(patch))
	}
	b.WriteString(tag)
	return b.String(), true
}

func stripLeadingZeros(s string) string {
	n := strings.TrimLeft(s, "0")
	if n == "" {
		return "0"
	}
	return n
}

// semverParts holds the decomposed numeric/tag components of a coerced
// SemVer string, used for ordering without pulling in a full parser.
type semverParts struct {
	major, minor, patch int64
	tag                 string
}

func parseSemverParts(version string) semverParts {
	match := semverRE.FindStringSubmatch(version)
	var p semverParts
	if match == nil {
		return p
	}
	p.major, _ = strconv.ParseInt(match[1], 10, 64)
	p.minor, _ = strconv.ParseInt(match[2], 10, 64)
	p.patch, _ = strconv.ParseInt(match[3], 10, 64)
	p.tag = match[4]
	return p
}

// dateParts holds the decomposed year/month/day plus any trailing tag of a
// date-like version string.
type dateParts struct {
	year, month, day int
	rest             string
}

func parseDateParts(version string) dateParts {
	if m := dateSplitYMDRE.FindStringSubmatch(version); m != nil {
		y, mo, d := atoi(m[1]), atoi(m[2]), atoi(m[3])
		return dateParts{year: normalizeYear(y, len(m[1])), month: mo, day: d, rest: m[4]}
	}
	if m := dateSplitMDYRE.FindStringSubmatch(version); m != nil {
		mo, d, y := atoi(m[1]), atoi(m[2]), atoi(m[3])
		return dateParts{year: normalizeYear(y, len(m[3])), month: mo, day: d, rest: m[4]}
	}
	return dateParts{}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// normalizeYear applies the conventional two-digit year window (00-68 =>
// 2000s, 69-99 => 1900s), matching the C library `%y` behavior the
// original implementation relied on via strptime.
func normalizeYear(y, digits int) int {
	if digits >= 4 {
		return y
	}
	if y <= 68 {
		return 2000 + y
	}
	return 1900 + y
}

// CompareLT reports whether a orders strictly before b under §4.1's rules.
// Both strings are assumed well-formed for their respective Kind; callers
// that need a Kind check should call KindOf first.
func CompareLT(a, b string, preferPreReleases bool) bool {
	ka, kb := KindOf(a), KindOf(b)
	if ka != kb {
		return ka < kb
	}
	switch ka {
	case Semver:
		return compareSemverLT(a, b, preferPreReleases)
	case Date:
		return compareDateLT(a, b)
	default:
		return a < b
	}
}

func compareSemverLT(a, b string, preferPreReleases bool) bool {
	pa, pb := parseSemverParts(a), parseSemverParts(b)

	if pa.major != pb.major {
		return pa.major < pb.major
	}
	if pa.minor != pb.minor {
		return pa.minor < pb.minor
	}
	if pa.patch != pb.patch {
		return pa.patch < pb.patch
	}

	if !preferPreReleases {
		isPreA := pa.tag != ""
		isPreB := pb.tag != ""
		if isPreA != isPreB {
			// A pre-release of otherwise-equal core version sorts before a
			// release when pre-releases aren't preferred.
			return isPreA
		}
	}
	return pa.tag < pb.tag
}

// DateSortKey returns a zero-padded, lexicographically-sortable key for a
// date-like version string ("" and ok=false if version is not date-like),
// used where a caller needs to rank by date outside of CompareLT (e.g. a
// stable post-SQL tiebreaker).
func DateSortKey(version string) (string, bool) {
	if !IsDate(version) {
		return "", false
	}
	p := parseDateParts(version)
	return fmt.Sprintf("%04d-%02d-%02d%s", p.year, p.month, p.day, p.rest), true
}

func compareDateLT(a, b string) bool {
	da, db := parseDateParts(a), parseDateParts(b)
	if da.year != db.year {
		return da.year < db.year
	}
	if da.month != db.month {
		return da.month < db.month
	}
	if da.day != db.day {
		return da.day < db.day
	}
	return da.rest < db.rest
}
