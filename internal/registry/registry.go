// Package registry implements the Registry and PkgDbInput abstractions
// (§4.6): an ordered collection of flake inputs, each backed by its own
// PkgDb, scraped on demand.
package registry

import (
	"sort"

	"github.com/flox/pkgdb-sub000/internal/pkgmodel"
)

// InputPreferences is the subtree/stability search order for one input,
// or the registry-wide fallback when an input leaves them unset (§4.6).
type InputPreferences struct {
	Subtrees    []pkgmodel.Subtree `json:"subtrees,omitempty"`
	Stabilities []string           `json:"stabilities,omitempty"`
}

// RegistryInput is one named flake input plus its search preferences.
type RegistryInput struct {
	InputPreferences
	From map[string]interface{} `json:"from"` // flake reference attrs, passed through verbatim
}

// Registry is the full `{inputs, defaults, priority}` configuration
// object (§4.6).
type Registry struct {
	Inputs   map[string]*RegistryInput `json:"inputs,omitempty"`
	Defaults InputPreferences          `json:"defaults,omitempty"`
	Priority []string                  `json:"priority,omitempty"`
}

// OrderedNames returns every input name in effective iteration order:
// names in Priority first (in the order given, skipping any not present
// in Inputs), then the remaining names in stable lexicographic order.
func (r *Registry) OrderedNames() []string {
	seen := make(map[string]bool, len(r.Inputs))
	order := make([]string, 0, len(r.Inputs))

	for _, name := range r.Priority {
		if _, ok := r.Inputs[name]; !ok || seen[name] {
			continue
		}
		order = append(order, name)
		seen[name] = true
	}

	var rest []string
	for name := range r.Inputs {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)

	return append(order, rest...)
}

// ResolvePreferences applies r.Defaults to input wherever its own fields
// are unset, per §4.6 ("Defaults are applied to each input whose
// subtrees/stabilities are unset").
func (r *Registry) ResolvePreferences(name string) InputPreferences {
	input, ok := r.Inputs[name]
	if !ok {
		return r.Defaults
	}
	prefs := input.InputPreferences
	if prefs.Subtrees == nil {
		prefs.Subtrees = r.Defaults.Subtrees
	}
	if prefs.Stabilities == nil {
		prefs.Stabilities = r.Defaults.Stabilities
	}
	return prefs
}
