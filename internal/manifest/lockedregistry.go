package manifest

import (
	"sort"

	"github.com/flox/pkgdb-sub000/internal/pkgdberr"
	"github.com/flox/pkgdb-sub000/internal/registry"
)

// LockedInput is one input's locked flake reference (§4.8 bullet 4):
// a content-addressed fingerprint plus the URI/attrs that produced it.
type LockedInput struct {
	Fingerprint string                 `json:"fingerprint"`
	URL         string                 `json:"url"`
	Attrs       map[string]interface{} `json:"attrs"`
}

// LockedRegistry is the fully-locked form of a Registry: every input's
// flake reference has been resolved to a fingerprint (§3's Lockfile.registry).
type LockedRegistry struct {
	Inputs   map[string]LockedInput `json:"inputs"`
	Priority []string               `json:"priority,omitempty"`
}

// FlakeRefLocker is the external "lock a flake reference" oracle (§4.8
// bullet 4): given an input's raw flake-ref attrs, it resolves a concrete,
// content-addressed fingerprint and canonical URL. In production this
// calls out to the Nix evaluator; tests supply a fake.
type FlakeRefLocker interface {
	LockFlakeRef(from map[string]interface{}) (fingerprint, url string, err error)
}

// LockRegistry calls locker once per input (in sorted-name order, for
// deterministic error reporting) and returns the fully-locked registry.
func LockRegistry(reg *registry.Registry, locker FlakeRefLocker) (*LockedRegistry, error) {
	if reg == nil {
		return &LockedRegistry{Inputs: map[string]LockedInput{}}, nil
	}

	locked := &LockedRegistry{
		Inputs:   make(map[string]LockedInput, len(reg.Inputs)),
		Priority: reg.Priority,
	}

	names := make([]string, 0, len(reg.Inputs))
	for name := range reg.Inputs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		in := reg.Inputs[name]
		fingerprint, url, err := locker.LockFlakeRef(in.From)
		if err != nil {
			return nil, pkgdberr.Wrap(pkgdberr.InvalidManifest, err,
				"locking flake reference for registry input %q", name).WithContext("input", name)
		}
		locked.Inputs[name] = LockedInput{Fingerprint: fingerprint, URL: url, Attrs: in.From}
	}

	return locked, nil
}
