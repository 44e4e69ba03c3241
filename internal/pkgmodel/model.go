// Package pkgmodel extracts the uniform Package record (§3, §4.3) from a
// cursor positioned at a confirmed derivation.
package pkgmodel

import (
	"fmt"

	"github.com/flox/pkgdb-sub000/internal/cursor"
	"github.com/flox/pkgdb-sub000/internal/pkgdberr"
	"github.com/flox/pkgdb-sub000/internal/semverutil"
)

// Subtree is the top-level output-tree category (§3).
type Subtree int

const (
	Packages Subtree = iota
	LegacyPackages
	Catalog
)

func (s Subtree) String() string {
	switch s {
	case Packages:
		return "packages"
	case LegacyPackages:
		return "legacyPackages"
	case Catalog:
		return "catalog"
	default:
		return "unknown"
	}
}

// ParseSubtree maps a path's first component to a Subtree.
func ParseSubtree(s string) (Subtree, bool) {
	switch s {
	case "packages":
		return Packages, true
	case "legacyPackages":
		return LegacyPackages, true
	case "catalog":
		return Catalog, true
	default:
		return 0, false
	}
}

// Package is the uniform record extracted from a derivation cursor (§3).
type Package struct {
	AttrName         string
	Name             string
	Pname            string
	Version          string // empty means absent
	Semver           string // empty means not coercible / absent
	License          string // empty means absent
	Broken           *bool
	Unfree           *bool
	Description      string // empty means absent
	Outputs          []string
	OutputsToInstall []string

	Path    []string
	Subtree Subtree
	System  string
}

// ExtractOptions controls the one behavior spec §4.5 varies by subtree:
// whether a missing `.type = "derivation"` is tolerated.
type ExtractOptions struct {
	CheckDerivation bool
}

// Extract builds a Package from c, which must be positioned at path.
// path must have at least 3 components for packages/legacyPackages, or 4
// for catalog (§4.3).
func Extract(c cursor.Cursor, path []string, opts ExtractOptions) (*Package, error) {
	if len(path) < 3 {
		return nil, pkgdberr.New(pkgdberr.EvalError,
			"package attribute paths must have at least 3 elements, got %v", path)
	}

	subtree, ok := ParseSubtree(path[0])
	if !ok {
		return nil, pkgdberr.New(pkgdberr.EvalError, "invalid subtree %q at path %v", path[0], path)
	}
	if subtree == Catalog && len(path) < 4 {
		return nil, pkgdberr.New(pkgdberr.EvalError,
			"catalog attribute paths must have at least 4 elements, got %v", path)
	}

	if opts.CheckDerivation {
		isDrv, err := c.IsDerivation()
		if err != nil {
			return nil, pkgdberr.Wrap(pkgdberr.EvalError, err, "checking derivation-ness at %v", path)
		}
		if !isDrv {
			return nil, pkgdberr.New(pkgdberr.EvalError,
				"attrset at %v does not set `.type = \"derivation\"`", path)
		}
	}

	name, err := c.GetString("name")
	if err != nil {
		return nil, pkgdberr.Wrap(pkgdberr.EvalError, err, "reading `name` at %v", path)
	}

	pkg := &Package{
		AttrName: path[len(path)-1],
		Name:     name,
		Path:     path,
		Subtree:  subtree,
		System:   path[1],
	}

	if pname, err := maybeString(c, "pname"); err != nil {
		return nil, err
	} else if pname != "" {
		pkg.Pname = pname
	} else {
		pkg.Pname, _ = SplitDrvName(name)
	}

	if version, err := maybeString(c, "version"); err != nil {
		return nil, err
	} else if version != "" {
		pkg.Version = version
	} else {
		_, pkg.Version = SplitDrvName(name)
	}

	if pkg.Version != "" {
		if sv, ok := semverutil.CoerceSemver(pkg.Version); ok {
			pkg.Semver = sv
		}
	}

	meta, err := c.MaybeGet("meta")
	if err != nil {
		return nil, pkgdberr.Wrap(pkgdberr.EvalError, err, "reading `meta` at %v", path)
	}
	if meta != nil {
		if license, err := extractLicense(meta); err != nil {
			return nil, err
		} else {
			pkg.License = license
		}
		if b, err := maybeBool(meta, "broken"); err != nil {
			return nil, err
		} else {
			pkg.Broken = b
		}
		if u, err := maybeBool(meta, "unfree"); err != nil {
			return nil, err
		} else {
			pkg.Unfree = u
		}
		if d, err := maybeString(meta, "description"); err != nil {
			return nil, err
		} else {
			pkg.Description = d
		}
	}

	outputs, err := maybeListOfStrings(c, "outputs")
	if err != nil {
		return nil, err
	}
	if len(outputs) == 0 {
		outputs = []string{"out"}
	}
	pkg.Outputs = outputs

	if meta != nil {
		outputsToInstall, err := maybeListOfStrings(meta, "outputsToInstall")
		if err != nil {
			return nil, err
		}
		if len(outputsToInstall) > 0 {
			pkg.OutputsToInstall = outputsToInstall
		}
	}
	if pkg.OutputsToInstall == nil {
		pkg.OutputsToInstall = prefixThroughOut(outputs)
	}

	return pkg, nil
}

func extractLicense(meta cursor.Cursor) (string, error) {
	lic, err := meta.MaybeGet("license")
	if err != nil {
		return "", pkgdberr.Wrap(pkgdberr.EvalError, err, "reading `meta.license`")
	}
	if lic == nil {
		return "", nil
	}
	return maybeString(lic, "spdxId")
}

func maybeString(c cursor.Cursor, field string) (string, error) {
	child, err := c.MaybeGet(field)
	if err != nil {
		return "", pkgdberr.Wrap(pkgdberr.EvalError, err, "checking field %q", field)
	}
	if child == nil {
		return "", nil
	}
	v, err := c.GetString(field)
	if err != nil {
		// A present-but-unevaluable optional field is tolerated: treat as
		// absent rather than failing the whole extraction.
		return "", nil
	}
	return v, nil
}

func maybeBool(c cursor.Cursor, field string) (*bool, error) {
	child, err := c.MaybeGet(field)
	if err != nil {
		return nil, pkgdberr.Wrap(pkgdberr.EvalError, err, "checking field %q", field)
	}
	if child == nil {
		return nil, nil
	}
	v, err := c.GetBool(field)
	if err != nil {
		return nil, nil
	}
	return &v, nil
}

func maybeListOfStrings(c cursor.Cursor, field string) ([]string, error) {
	child, err := c.MaybeGet(field)
	if err != nil {
		return nil, pkgdberr.Wrap(pkgdberr.EvalError, err, "checking field %q", field)
	}
	if child == nil {
		return nil, nil
	}
	v, err := c.GetListOfStrings(field)
	if err != nil {
		return nil, nil
	}
	return v, nil
}

func prefixThroughOut(outputs []string) []string {
	for i, o := range outputs {
		if o == "out" {
			cp := make([]string, i+1)
			copy(cp, outputs[:i+1])
			return cp
		}
	}
	cp := make([]string, len(outputs))
	copy(cp, outputs)
	return cp
}

// String implements fmt.Stringer for diagnostics.
func (p *Package) String() string {
	return fmt.Sprintf("%s@%s (%v)", p.Pname, p.Version, p.Path)
}
