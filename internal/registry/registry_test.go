package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flox/pkgdb-sub000/internal/pkgmodel"
)

func TestOrderedNamesPrioritizesListedNamesFirst(t *testing.T) {
	r := &Registry{
		Inputs: map[string]*RegistryInput{
			"nixpkgs":  {},
			"floco":    {},
			"floxpkgs": {},
		},
		Priority: []string{"floxpkgs", "floco"},
	}
	assert.Equal(t, []string{"floxpkgs", "floco", "nixpkgs"}, r.OrderedNames())
}

func TestOrderedNamesIgnoresUnknownPriorityEntries(t *testing.T) {
	r := &Registry{
		Inputs:   map[string]*RegistryInput{"a": {}},
		Priority: []string{"ghost", "a"},
	}
	assert.Equal(t, []string{"a"}, r.OrderedNames())
}

func TestResolvePreferencesFallsBackToDefaults(t *testing.T) {
	r := &Registry{
		Inputs: map[string]*RegistryInput{
			"nixpkgs": {InputPreferences: InputPreferences{Subtrees: []pkgmodel.Subtree{pkgmodel.LegacyPackages}}},
		},
		Defaults: InputPreferences{Stabilities: []string{"stable"}},
	}
	prefs := r.ResolvePreferences("nixpkgs")
	assert.Equal(t, []pkgmodel.Subtree{pkgmodel.LegacyPackages}, prefs.Subtrees)
	assert.Equal(t, []string{"stable"}, prefs.Stabilities)
}

func TestResolvePreferencesUnknownInputUsesDefaults(t *testing.T) {
	r := &Registry{
		Inputs:   map[string]*RegistryInput{},
		Defaults: InputPreferences{Stabilities: []string{"staging"}},
	}
	prefs := r.ResolvePreferences("missing")
	assert.Equal(t, []string{"staging"}, prefs.Stabilities)
}
