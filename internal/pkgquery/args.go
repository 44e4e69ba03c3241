// Package pkgquery compiles a PkgQueryArgs into a ranked SQL query
// against v_PackagesSearch and executes it (§4.7).
package pkgquery

import (
	"runtime"
	"strings"

	"github.com/flox/pkgdb-sub000/internal/pkgdberr"
	"github.com/flox/pkgdb-sub000/internal/pkgmodel"
)

// defaultSystems is the closed set accepted in the `systems` filter;
// flox supports exactly these four platforms.
var defaultSystems = map[string]bool{
	"x86_64-linux": true, "aarch64-linux": true,
	"x86_64-darwin": true, "aarch64-darwin": true,
}

// HostSystem reports the current process's platform in flox's
// `<arch>-<os>` form, matching `nix::settings.thisSystem.get()`'s
// notion of "the system we're running on." It is the default `Args`
// falls back to when `Systems` is left unset.
func HostSystem() string {
	var arch string
	switch runtime.GOARCH {
	case "amd64":
		arch = "x86_64"
	case "arm64":
		arch = "aarch64"
	default:
		arch = runtime.GOARCH
	}

	var os string
	switch runtime.GOOS {
	case "darwin":
		os = "darwin"
	default:
		os = "linux"
	}

	return arch + "-" + os
}

// ValidStabilities is the closed set of catalog stabilities (§9 open
// question: validate exactly this set, do not guess at more).
var ValidStabilities = map[string]bool{"stable": true, "staging": true, "unstable": true}

// Args is the user-supplied search/filter/order specification (§4.7).
type Args struct {
	Name    string
	Pname   string
	Version string
	Semver  string

	Match string

	Licenses []string

	AllowBroken bool
	// DenyUnfree inverts the §3 default (`allow_unfree=true`): unfree rows
	// are included unless this is explicitly set, so the zero value of
	// Args matches the spec's default rather than excluding them.
	DenyUnfree bool

	Subtrees    []pkgmodel.Subtree
	Systems     []string
	Stabilities []string

	PreferPreReleases bool
}

// validate implements §4.7/§7's closed validation rules, surfacing the
// matching QuerySubKind on failure.
func (a *Args) validate() error {
	if a.Name != "" && (a.Pname != "" || a.Version != "" || a.Semver != "") {
		return pkgdberr.NewQueryArgsError(pkgdberr.MixName,
			"queries may not mix `name` with `pname`, `version`, or `semver`")
	}
	if a.Version != "" && a.Semver != "" {
		return pkgdberr.NewQueryArgsError(pkgdberr.MixVersionSemver,
			"queries may not mix `version` and `semver`")
	}
	for _, l := range a.Licenses {
		if strings.ContainsRune(l, '\'') {
			return pkgdberr.NewQueryArgsError(pkgdberr.InvalidLicense,
				"license %q contains invalid character \"'\"", l)
		}
	}
	for _, s := range a.Systems {
		if !defaultSystems[s] {
			return pkgdberr.NewQueryArgsError(pkgdberr.InvalidSystem, "unrecognized system %q", s)
		}
	}
	for _, s := range a.Stabilities {
		if !ValidStabilities[s] {
			return pkgdberr.NewQueryArgsError(pkgdberr.InvalidStability, "unrecognized stability %q", s)
		}
	}
	if len(a.Stabilities) > 0 {
		hasCatalog := false
		for _, s := range a.Subtrees {
			if s == pkgmodel.Catalog {
				hasCatalog = true
			}
		}
		if len(a.Subtrees) > 0 && !hasCatalog {
			return pkgdberr.NewQueryArgsError(pkgdberr.ConflictingSubtree,
				"`stabilities` may only be used with the `catalog` subtree")
		}
	}
	return nil
}
