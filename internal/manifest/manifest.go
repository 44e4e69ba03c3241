// Package manifest builds a normalized Manifest from a ManifestRaw (§4.8):
// validating structural constraints, remapping each descriptor's
// most-specific fields into a uniform shape, and partitioning descriptors
// into groups.
package manifest

import (
	"sort"

	"github.com/flox/pkgdb-sub000/internal/pkgdberr"
	"github.com/flox/pkgdb-sub000/internal/pkgquery"
	"github.com/flox/pkgdb-sub000/internal/registry"
)

// DefaultGroup is the sentinel group name for descriptors that don't set
// `group` explicitly.
const DefaultGroup = "default"

// EnvBase names the base environment a manifest extends, in its raw form.
type EnvBase struct {
	Floxhub string `json:"floxhub,omitempty"`
	Dir     string `json:"dir,omitempty"`
}

func (e *EnvBase) check() error {
	if e == nil {
		return nil
	}
	if e.Floxhub != "" && e.Dir != "" {
		return pkgdberr.New(pkgdberr.InvalidManifest,
			"`env-base` may only define one of `floxhub` or `dir`")
	}
	return nil
}

// Hook is a lifecycle script, in its raw form.
type Hook struct {
	Script string `json:"script,omitempty"`
	File   string `json:"file,omitempty"`
}

func (h *Hook) check() error {
	if h == nil {
		return nil
	}
	if h.Script != "" && h.File != "" {
		return pkgdberr.New(pkgdberr.InvalidManifest, "`hook` may only define one of `script` or `file`")
	}
	return nil
}

// Allows is the `options.allow` block, in its raw form.
type Allows struct {
	Unfree   *bool    `json:"unfree,omitempty"`
	Broken   *bool    `json:"broken,omitempty"`
	Licenses []string `json:"licenses,omitempty"`
}

// Semver is the `options.semver` block, in its raw form.
type Semver struct {
	PreferPreReleases *bool `json:"prefer-pre-releases,omitempty"`
}

// Options are environment-wide query defaults (§4.9's "effective options").
type Options struct {
	Systems []string `json:"systems,omitempty"`
	Allow   *Allows  `json:"allow,omitempty"`
	Semver  *Semver  `json:"semver,omitempty"`
}

// ToPkgQueryArgs converts o into the base PkgQueryArgs every descriptor
// resolution starts from (manifest-raw.hh's `explicit operator
// PkgQueryArgs()`): systems and the broken/unfree/license/pre-release
// defaults, before any input- or descriptor-specific field is layered on.
func (o Options) ToPkgQueryArgs() pkgquery.Args {
	var args pkgquery.Args
	if len(o.Systems) > 0 {
		args.Systems = o.Systems
	}
	if o.Allow != nil {
		if o.Allow.Broken != nil {
			args.AllowBroken = *o.Allow.Broken
		}
		if o.Allow.Unfree != nil {
			args.DenyUnfree = !*o.Allow.Unfree
		}
		args.Licenses = o.Allow.Licenses
	}
	if o.Semver != nil && o.Semver.PreferPreReleases != nil {
		args.PreferPreReleases = *o.Semver.PreferPreReleases
	}
	return args
}

// merge overlays non-nil/non-empty fields from o2 onto a copy of o,
// matching manifest-raw.hh's `Options::merge` (later wins, field by field).
func (o Options) merge(o2 Options) Options {
	out := o
	if len(o2.Systems) > 0 {
		out.Systems = o2.Systems
	}
	if o2.Allow != nil {
		if out.Allow == nil {
			out.Allow = &Allows{}
		}
		merged := *out.Allow
		if o2.Allow.Unfree != nil {
			merged.Unfree = o2.Allow.Unfree
		}
		if o2.Allow.Broken != nil {
			merged.Broken = o2.Allow.Broken
		}
		if len(o2.Allow.Licenses) > 0 {
			merged.Licenses = o2.Allow.Licenses
		}
		out.Allow = &merged
	}
	if o2.Semver != nil {
		if out.Semver == nil {
			out.Semver = &Semver{}
		}
		merged := *out.Semver
		if o2.Semver.PreferPreReleases != nil {
			merged.PreferPreReleases = o2.Semver.PreferPreReleases
		}
		out.Semver = &merged
	}
	return out
}

// ManifestRaw is the JSON-serializable form a manifest file is parsed into,
// mirroring the on-disk shape before any field remapping or validation.
type ManifestRaw struct {
	Registry *registry.Registry        `json:"registry,omitempty"`
	Options  Options                   `json:"options,omitempty"`
	EnvBase  *EnvBase                  `json:"env-base,omitempty"`
	Install  map[string]*DescriptorRaw `json:"install,omitempty"`
	Vars     map[string]string         `json:"vars,omitempty"`
	Hook     *Hook                     `json:"hook,omitempty"`
}

// check validates ManifestRaw's structural constraints (§4.8 bullet 1),
// stopping at the first violation found in install-id sorted order so
// error messages are deterministic.
func (m *ManifestRaw) check() error {
	if err := m.EnvBase.check(); err != nil {
		return err
	}
	if err := m.Hook.check(); err != nil {
		return err
	}
	for _, id := range sortedKeys(m.Install) {
		d := m.Install[id]
		if d == nil {
			continue
		}
		if err := d.check(); err != nil {
			return err.(*pkgdberr.Error).WithContext("install_id", id)
		}
	}
	return nil
}

func sortedKeys(m map[string]*DescriptorRaw) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Manifest is the normalized, validated form of a ManifestRaw: every
// descriptor has been remapped to its most-specific fields and partitioned
// into its group.
type Manifest struct {
	Registry *registry.Registry
	Options  Options
	EnvBase  *EnvBase
	Install  map[string]*Descriptor
	Vars     map[string]string
	Hook     *Hook

	// Groups partitions Install's install-ids by group name (DefaultGroup
	// for descriptors that don't set one explicitly).
	Groups map[string][]string
}

// New builds a Manifest from raw, validating and normalizing every
// descriptor (§4.8).
func New(raw *ManifestRaw) (*Manifest, error) {
	if err := raw.check(); err != nil {
		return nil, err
	}

	m := &Manifest{
		Registry: raw.Registry,
		Options:  raw.Options,
		EnvBase:  raw.EnvBase,
		Vars:     raw.Vars,
		Hook:     raw.Hook,
		Install:  make(map[string]*Descriptor, len(raw.Install)),
		Groups:   make(map[string][]string),
	}

	for _, id := range sortedKeys(raw.Install) {
		raw := raw.Install[id]
		if raw == nil {
			continue
		}
		desc, err := newDescriptor(id, raw)
		if err != nil {
			return nil, err.(*pkgdberr.Error).WithContext("install_id", id)
		}
		m.Install[id] = desc

		group := desc.Group
		if group == "" {
			group = DefaultGroup
		}
		m.Groups[group] = append(m.Groups[group], id)
	}

	return m, nil
}

// Merge produces the effective Options for an environment per §4.9: global
// options, then lockfile-manifest options, then project-manifest options,
// each later value overriding the same field in the one before it.
func Merge(global, lockfileManifest, project Options) Options {
	return global.merge(lockfileManifest).merge(project)
}

// MergeRegistries produces the effective registry per §4.9: the union of
// global and manifest-declared inputs, with manifest entries overriding
// global entries of the same name.
func MergeRegistries(global, manifest *registry.Registry) *registry.Registry {
	if manifest == nil {
		return global
	}
	if global == nil {
		return manifest
	}

	merged := &registry.Registry{
		Inputs:   make(map[string]*registry.RegistryInput, len(global.Inputs)+len(manifest.Inputs)),
		Defaults: manifest.Defaults,
		Priority: manifest.Priority,
	}
	for name, in := range global.Inputs {
		merged.Inputs[name] = in
	}
	for name, in := range manifest.Inputs {
		merged.Inputs[name] = in
	}
	if len(merged.Priority) == 0 {
		merged.Priority = global.Priority
	}
	if merged.Defaults.Subtrees == nil && merged.Defaults.Stabilities == nil {
		merged.Defaults = global.Defaults
	}
	return merged
}
