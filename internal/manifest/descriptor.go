package manifest

import (
	"strings"

	"github.com/flox/pkgdb-sub000/internal/pkgdberr"
	"github.com/flox/pkgdb-sub000/internal/pkgmodel"
	"github.com/flox/pkgdb-sub000/internal/pkgquery"
)

// AbsPathGlob is a dot-separated absolute attribute path with its second
// element (the system position) treated as a glob when nil (§ SUPPLEMENTED
// FEATURES 3).
type AbsPathGlob []*string

// DescriptorRaw is one `install.<install-id>` entry, in its raw form.
type DescriptorRaw struct {
	Name              string      `json:"name,omitempty"`
	Version           string      `json:"version,omitempty"`
	Stability         string      `json:"stability,omitempty"`
	Path              []string    `json:"path,omitempty"`
	AbsPath           AbsPathGlob `json:"abs-path,omitempty"`
	Systems           []string    `json:"systems,omitempty"`
	Optional          bool        `json:"optional,omitempty"`
	Group             string      `json:"package-group,omitempty"`
	Priority          int         `json:"priority,omitempty"`
	PackageRepository string      `json:"package-repository,omitempty"`
	Input             string      `json:"input,omitempty"`
}

// check validates the structural rules §4.8 bullet 1 names for a single
// descriptor: a globbed absolute path has exactly a glob at index 1, and
// `packageRepository`/`input` are mutually exclusive.
func (d *DescriptorRaw) check() error {
	if d == nil {
		return nil
	}
	if d.PackageRepository != "" && d.Input != "" {
		return pkgdberr.New(pkgdberr.InvalidManifest, "`package-repository` may not be used with `input`")
	}
	if len(d.AbsPath) > 0 {
		if len(d.AbsPath) < 3 {
			return pkgdberr.New(pkgdberr.InvalidManifest, "`abs-path` must have at least three parts")
		}
		for i, part := range d.AbsPath {
			if i == 1 {
				continue
			}
			if part == nil {
				return pkgdberr.New(pkgdberr.InvalidManifest,
					"`abs-path` may only have a glob as its second element")
			}
		}
		if d.AbsPath[0] == nil {
			return pkgdberr.New(pkgdberr.InvalidManifest,
				"`abs-path` may only have a glob as its second element")
		}
		first := *d.AbsPath[0]
		if d.Stability != "" && first != pkgmodel.Catalog.String() {
			return pkgdberr.New(pkgdberr.InvalidManifest, "`stability` cannot be used with non-catalog paths")
		}
		if first == pkgmodel.Catalog.String() && len(d.AbsPath) < 4 {
			return pkgdberr.New(pkgdberr.InvalidManifest,
				"`abs-path` must have at least four parts for catalog paths")
		}
	}
	return nil
}

// Descriptor is the normalized form of a DescriptorRaw: `subtree`, `path`,
// `stability`, `systems`, and `input` have been derived from whichever
// raw fields were most specific (§4.8 bullet 2).
type Descriptor struct {
	InstallID string

	Name    string
	Version string
	Semver  string

	Optional bool
	Group    string
	Priority int

	Subtree    pkgmodel.Subtree
	HasSubtree bool
	Systems    []string
	Stability  string
	Path       []string

	Input string

	PreferPreReleases bool
}

// newDescriptor remaps raw's most-specific fields into a Descriptor,
// defaulting `name` to installID when no name/path/abs-path was given
// (§4.8 bullet 2's closing sentence).
func newDescriptor(installID string, raw *DescriptorRaw) (*Descriptor, error) {
	if err := raw.check(); err != nil {
		return nil, err
	}

	d := &Descriptor{
		InstallID: installID,
		Name:      raw.Name,
		Optional:  raw.Optional,
		Group:     raw.Group,
		Priority:  raw.Priority,
	}

	if raw.Version != "" {
		initVersion(d, raw.Version)
	}

	if len(raw.AbsPath) > 0 {
		if err := initAbsPath(d, raw); err != nil {
			return nil, err
		}
	} else if raw.Stability != "" {
		d.Subtree, d.HasSubtree = pkgmodel.Catalog, true
		d.Stability = raw.Stability
	}

	if len(d.Systems) == 0 && len(raw.Systems) > 0 {
		d.Systems = raw.Systems
	}

	if len(raw.Path) > 0 {
		if len(d.Path) > 0 && !pathsEqual(d.Path, raw.Path) {
			return nil, pkgdberr.New(pkgdberr.InvalidManifest, "`path` conflicts with `abs-path`")
		}
		if len(d.Path) == 0 {
			d.Path = raw.Path
		}
	}

	switch {
	case raw.PackageRepository != "":
		d.Input = raw.PackageRepository
	case raw.Input != "":
		d.Input = raw.Input
	}

	if d.Name == "" && len(d.Path) == 0 && len(raw.AbsPath) == 0 {
		d.Name = installID
	}

	return d, nil
}

// initVersion distinguishes an exact version from a SemVer range the way
// descriptor.cc's initManifestDescriptorVersion does: a leading `=` forces
// an exact match, a leading range operator or a non-SemVer string is a
// range, and PreferPreReleases follows a `~<version>-<tag>` range.
func initVersion(d *Descriptor, version string) {
	if version == "" {
		return
	}
	switch version[0] {
	case '=':
		d.Version = version[1:]
	case '*', '~', '^', '>', '<':
		d.Semver = version
		if version[0] == '~' && strings.Contains(version, "-") {
			d.PreferPreReleases = true
		}
	default:
		if looksLikeExactSemver(version) {
			d.Version = version
		} else {
			d.Semver = version
		}
	}
}

// looksLikeExactSemver reports whether version is a complete three-part
// SemVer string ("4.2.0"), as opposed to a partial one ("4.2") that is
// only meaningful as a range.
func looksLikeExactSemver(version string) bool {
	return strings.Count(version, ".") == 2
}

func initAbsPath(d *Descriptor, raw *DescriptorRaw) error {
	glob := raw.AbsPath
	first := *glob[0]
	subtree, ok := pkgmodel.ParseSubtree(first)
	if !ok {
		return pkgdberr.New(pkgdberr.InvalidManifest, "unrecognized subtree %q in `abs-path`", first)
	}
	d.Subtree, d.HasSubtree = subtree, true

	rest := glob[2:]
	if subtree == pkgmodel.Catalog {
		if glob[2] == nil {
			return pkgdberr.New(pkgdberr.InvalidManifest, "`abs-path` may only have a glob as its second element")
		}
		d.Stability = *glob[2]
		rest = glob[3:]
	}

	path := make([]string, 0, len(rest))
	for _, elem := range rest {
		if elem == nil {
			return pkgdberr.New(pkgdberr.InvalidManifest, "`abs-path` may only have a glob as its second element")
		}
		path = append(path, *elem)
	}
	d.Path = path

	if second := glob[1]; second != nil {
		d.Systems = []string{*second}
		if len(raw.Systems) > 0 && !(len(raw.Systems) == 1 && raw.Systems[0] == *second) {
			return pkgdberr.New(pkgdberr.InvalidManifest,
				"`systems` list conflicts with `abs-path` system specification")
		}
	}
	return nil
}

func pathsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// FillPkgQueryArgs applies d's normalized fields onto pqa, matching
// descriptor.cc's fillPkgQueryArgs: `name` becomes an exact-pname-biased
// match, `version`/`semver` are mutually exclusive, and subtree/system/
// stability restrict the search (§ SUPPLEMENTED FEATURES 3).
func (d *Descriptor) FillPkgQueryArgs(pqa *pkgquery.Args) {
	if d.Name != "" {
		pqa.Match = d.Name
	}
	if d.Version != "" {
		pqa.Version = d.Version
	} else if d.Semver != "" {
		pqa.Semver = d.Semver
		pqa.PreferPreReleases = d.PreferPreReleases
	}
	if d.HasSubtree {
		pqa.Subtrees = []pkgmodel.Subtree{d.Subtree}
	}
	if len(d.Systems) > 0 {
		pqa.Systems = d.Systems
	}
	if d.Stability != "" {
		pqa.Stabilities = []string{d.Stability}
	}
}
