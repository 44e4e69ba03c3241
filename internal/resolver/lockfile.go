// Package resolver implements Environment/Locker (§4.9): merging global,
// lockfile, and project manifests into effective options and a registry,
// then resolving each install group against the registry's inputs in
// priority order to produce a Lockfile.
package resolver

import (
	"github.com/flox/pkgdb-sub000/internal/manifest"
)

const lockfileVersion = 0

// PackageInfo is the compact `{pname, version, license, broken, unfree}`
// projection a locked package carries, stripped of the row-level fields
// (`id`, `description`, `subtree`, `system`, `relPath`) that don't survive
// into a lockfile (SUPPLEMENTED FEATURES item 6).
type PackageInfo struct {
	Pname   string `json:"pname,omitempty"`
	Version string `json:"version,omitempty"`
	License string `json:"license,omitempty"`
	Broken  *bool  `json:"broken,omitempty"`
	Unfree  *bool  `json:"unfree,omitempty"`
}

// LockedPackage is one resolved install entry (§3).
type LockedPackage struct {
	Input    manifest.LockedInput `json:"input"`
	AttrPath []string             `json:"attr-path"`
	Priority int                  `json:"priority"`
	Info     PackageInfo          `json:"info"`
}

// SystemPackages maps install-id to its locked package, or nil for a
// descriptor explicitly out of scope for this system (§3).
type SystemPackages map[string]*LockedPackage

// Lockfile is the fully-resolved environment (§3).
type Lockfile struct {
	Manifest        *manifest.ManifestRaw     `json:"manifest"`
	Registry        *manifest.LockedRegistry  `json:"registry"`
	Packages        map[string]SystemPackages `json:"packages"`
	LockfileVersion int                       `json:"lockfile-version"`
}

// Descriptors returns the project manifest's normalized descriptors,
// keyed by install-id, as captured at lock time — used by a subsequent
// Environment to decide which groups are already locked (§4.9 step 2).
func (l *Lockfile) Descriptors() (map[string]*manifest.Descriptor, error) {
	m, err := manifest.New(l.Manifest)
	if err != nil {
		return nil, err
	}
	return m.Install, nil
}
