package resolver

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/flox/pkgdb-sub000/internal/manifest"
	"github.com/flox/pkgdb-sub000/internal/pkgdberr"
	"github.com/flox/pkgdb-sub000/internal/pkgquery"
	"github.com/flox/pkgdb-sub000/internal/registry"
)

// Upgrades is the upgrade directive an Environment is locked with: either
// nothing is forced to relock, everything is, or a specific set of
// install-ids is (§4.9).
type Upgrades struct {
	All        bool
	InstallIDs []string
}

func (u Upgrades) forces(installID string) bool {
	if u.All {
		return true
	}
	for _, id := range u.InstallIDs {
		if id == installID {
			return true
		}
	}
	return false
}

// Environment ties a project manifest (required), an optional global
// manifest, an optional previous lockfile, and a set of already-open
// registry inputs together to produce a new Lockfile (§4.9).
type Environment struct {
	Global     *manifest.Manifest
	Project    *manifest.Manifest
	ProjectRaw *manifest.ManifestRaw
	Old        *Lockfile

	Upgrades Upgrades
	Systems  []string

	// Inputs are the registry's PkgDbInputs, already opened (and scraped
	// for Systems) by the caller, keyed by name.
	Inputs map[string]*registry.PkgDbInput

	Locker manifest.FlakeRefLocker
}

// effectiveOptions computes global ⊕ lockfile-manifest ⊕ project-manifest,
// each later value overriding the same field in the one before it (§4.9).
func (e *Environment) effectiveOptions() manifest.Options {
	var global, lockfileManifest, project manifest.Options
	if e.Global != nil {
		global = e.Global.Options
	}
	if e.Old != nil && e.Old.Manifest != nil {
		lockfileManifest = e.Old.Manifest.Options
	}
	if e.Project != nil {
		project = e.Project.Options
	}
	return manifest.Merge(global, lockfileManifest, project)
}

// effectiveRegistry computes the union of global and project-declared
// inputs, with project entries overriding global entries of the same
// name (§4.9).
func (e *Environment) effectiveRegistry() *registry.Registry {
	var global, project *registry.Registry
	if e.Global != nil {
		global = e.Global.Registry
	}
	if e.Project != nil {
		project = e.Project.Registry
	}
	return manifest.MergeRegistries(global, project)
}

// descriptorsEqualForLock reports whether a and b are structurally equal
// for the purpose of deciding whether a group may be reused verbatim from
// the previous lockfile, for system s (SUPPLEMENTED FEATURES item 4):
// every field but `priority` is compared, and `systems` is compared only
// by whether s is in-scope for both.
func descriptorsEqualForLock(a, b *manifest.Descriptor, s string) bool {
	if a.Name != b.Name || !pathsEqualStrict(a.Path, b.Path) ||
		a.Version != b.Version || a.Semver != b.Semver ||
		a.HasSubtree != b.HasSubtree || a.Subtree != b.Subtree ||
		a.Input != b.Input || a.Group != b.Group || a.Optional != b.Optional ||
		a.Stability != b.Stability {
		return false
	}
	return systemSkipped(s, a.Systems) == systemSkipped(s, b.Systems)
}

func pathsEqualStrict(a, b []string) bool {
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

// systemSkipped reports whether s is excluded by an explicit systems list
// (a nil/empty list means every system is in scope).
func systemSkipped(s string, systems []string) bool {
	if len(systems) == 0 {
		return false
	}
	for _, x := range systems {
		if x == s {
			return false
		}
	}
	return true
}

// groupIsLocked reports whether every descriptor in group is unchanged
// from the previous lockfile's manifest, not forced to relock by
// e.Upgrades, and already has a locked entry for system s (§4.9 step 2).
func (e *Environment) groupIsLocked(installIDs []string, system string) (bool, error) {
	if e.Old == nil {
		return false, nil
	}
	oldDescriptors, err := e.Old.Descriptors()
	if err != nil {
		return false, err
	}
	oldSystemPackages := e.Old.Packages[system]

	for _, iid := range installIDs {
		if e.Upgrades.forces(iid) {
			return false, nil
		}
		oldDesc, ok := oldDescriptors[iid]
		if !ok {
			return false, nil
		}
		if !descriptorsEqualForLock(e.Project.Install[iid], oldDesc, system) {
			return false, nil
		}
		if _, ok := oldSystemPackages[iid]; !ok {
			return false, nil
		}
	}
	return true, nil
}

// splitGroups partitions e.Project's groups into (unlocked, locked) for
// system, per §4.9 step 2 / SUPPLEMENTED FEATURES item 8's two-phase split.
func (e *Environment) splitGroups(system string) (unlocked, locked map[string][]string, err error) {
	unlocked = make(map[string][]string, len(e.Project.Groups))
	locked = make(map[string][]string, len(e.Project.Groups))

	names := make([]string, 0, len(e.Project.Groups))
	for name := range e.Project.Groups {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ids := e.Project.Groups[name]
		isLocked, err := e.groupIsLocked(ids, system)
		if err != nil {
			return nil, nil, err
		}
		if isLocked {
			locked[name] = ids
		} else {
			unlocked[name] = ids
		}
	}
	return unlocked, locked, nil
}

// tryResolveDescriptorIn attempts to resolve one descriptor against one
// input's database, restricted to system. ok is false (with no error) when
// the descriptor is out of scope for system or simply has no match.
func (e *Environment) tryResolveDescriptorIn(
	base pkgquery.Args, desc *manifest.Descriptor, prefs registry.InputPreferences,
	input *registry.PkgDbInput, system string,
) (id int64, ok bool, err error) {
	if systemSkipped(system, desc.Systems) {
		return 0, false, nil
	}

	args := base
	if len(prefs.Subtrees) > 0 {
		args.Subtrees = prefs.Subtrees
	}
	if len(prefs.Stabilities) > 0 {
		args.Stabilities = prefs.Stabilities
	}
	desc.FillPkgQueryArgs(&args)
	args.Systems = []string{system}

	db, err := input.GetDbReadOnly()
	if err != nil {
		return 0, false, err
	}

	ids, err := pkgquery.Execute(db.Conn(), &args)
	if err != nil {
		return 0, false, err
	}
	if len(ids) == 0 {
		return 0, false, nil
	}
	return ids[0], true, nil
}

// lockPackage projects a resolved package row into a LockedPackage,
// stripping the fields that don't survive into a lockfile
// (SUPPLEMENTED FEATURES item 6).
func lockPackage(lockedInput manifest.LockedInput, input *registry.PkgDbInput, rowID int64, priority int) (*LockedPackage, error) {
	db, err := input.GetDbReadOnly()
	if err != nil {
		return nil, err
	}
	row, err := db.GetPackage(rowID)
	if err != nil {
		return nil, err
	}
	path, err := db.GetPackagePath(rowID)
	if err != nil {
		return nil, err
	}

	return &LockedPackage{
		Input:    lockedInput,
		AttrPath: path,
		Priority: priority,
		Info: PackageInfo{
			Pname:   row.Pname.String,
			Version: row.Version.String,
			License: row.License.String,
			Broken:  nullBoolPtr(row.Broken),
			Unfree:  nullBoolPtr(row.Unfree),
		},
	}, nil
}

// tryResolveGroupIn attempts to resolve every descriptor of a group
// against one input, requiring every non-optional descriptor to resolve
// (§4.9 step 4). ok is false (with no error) when some required descriptor
// couldn't be resolved from this input.
func (e *Environment) tryResolveGroupIn(
	installIDs []string, base pkgquery.Args, lockedInput manifest.LockedInput,
	prefs registry.InputPreferences, input *registry.PkgDbInput, system string,
) (SystemPackages, bool, error) {
	type resolved struct {
		id       int64
		found    bool
		priority int
	}
	rows := make(map[string]resolved, len(installIDs))

	for _, iid := range installIDs {
		desc := e.Project.Install[iid]
		if systemSkipped(system, desc.Systems) {
			// Out of scope for this system: recorded as a nil entry.
			rows[iid] = resolved{priority: desc.Priority}
			continue
		}
		id, ok, err := e.tryResolveDescriptorIn(base, desc, prefs, input, system)
		if err != nil {
			return nil, false, err
		}
		if !ok && !desc.Optional {
			return nil, false, nil
		}
		rows[iid] = resolved{id: id, found: ok, priority: desc.Priority}
	}

	pkgs := make(SystemPackages, len(rows))
	for iid, r := range rows {
		if !r.found {
			pkgs[iid] = nil
			continue
		}
		pkg, err := lockPackage(lockedInput, input, r.id, r.priority)
		if err != nil {
			return nil, false, err
		}
		pkgs[iid] = pkg
	}
	return pkgs, true, nil
}

// lockSystem resolves every unlocked group for system, reuses locked
// groups' previous entries verbatim, and records the result on lockfile
// (§4.9 steps 2-5).
func (e *Environment) lockSystem(lockfile *Lockfile, locked *manifest.LockedRegistry, system string) error {
	unlocked, lockedGroups, err := e.splitGroups(system)
	if err != nil {
		return err
	}

	reg := e.effectiveRegistry()
	base := e.effectiveOptions().ToPkgQueryArgs()

	pkgs := make(SystemPackages)
	remaining := make(map[string][]string, len(unlocked))
	for name, ids := range unlocked {
		remaining[name] = ids
	}

	for _, name := range reg.OrderedNames() {
		input, ok := e.Inputs[name]
		if !ok {
			continue
		}
		prefs := reg.ResolvePreferences(name)
		lockedInput, ok := locked.Inputs[name]
		if !ok {
			continue
		}

		for groupName, ids := range remaining {
			resolvedPkgs, ok, err := e.tryResolveGroupIn(ids, base, lockedInput, prefs, input, system)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			for iid, pkg := range resolvedPkgs {
				pkgs[iid] = pkg
			}
			delete(remaining, groupName)
		}
	}

	if len(remaining) > 0 {
		return pkgdberr.New(pkgdberr.ResolutionFailure, "%s", resolutionFailureMessage(remaining))
	}

	if e.Old != nil {
		oldSystemPackages := e.Old.Packages[system]
		for _, ids := range lockedGroups {
			for _, iid := range ids {
				if pkg, ok := oldSystemPackages[iid]; ok {
					pkgs[iid] = pkg
				}
			}
		}
	}

	lockfile.Packages[system] = pkgs
	return nil
}

func resolutionFailureMessage(remaining map[string][]string) string {
	names := make([]string, 0, len(remaining))
	for name := range remaining {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("failed to resolve some package(s):")
	for _, name := range names {
		ids := append([]string(nil), remaining[name]...)
		sort.Strings(ids)
		fmt.Fprintf(&b, "\n  group %q failed to resolve: %s", name, strings.Join(ids, ", "))
	}
	return b.String()
}

func nullBoolPtr(b sql.NullBool) *bool {
	if !b.Valid {
		return nil
	}
	v := b.Bool
	return &v
}

// CreateLockfile resolves every system in e.Systems and returns the
// resulting Lockfile (§4.9).
func (e *Environment) CreateLockfile() (*Lockfile, error) {
	reg := e.effectiveRegistry()
	locked, err := manifest.LockRegistry(reg, e.Locker)
	if err != nil {
		return nil, err
	}

	lockfile := &Lockfile{
		Manifest:        e.ProjectRaw,
		Registry:        locked,
		Packages:        make(map[string]SystemPackages, len(e.Systems)),
		LockfileVersion: lockfileVersion,
	}

	for _, system := range e.Systems {
		if err := e.lockSystem(lockfile, locked, system); err != nil {
			return nil, err
		}
	}

	return lockfile, nil
}
