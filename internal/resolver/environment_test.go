package resolver

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flox/pkgdb-sub000/internal/cursor/cursortest"
	"github.com/flox/pkgdb-sub000/internal/manifest"
	"github.com/flox/pkgdb-sub000/internal/registry"
)

type fakeLocker struct{}

func (fakeLocker) LockFlakeRef(from map[string]interface{}) (string, string, error) {
	owner, _ := from["owner"].(string)
	return "fingerprint-" + owner, "github:" + owner + "/nixpkgs", nil
}

func buildNixpkgsFixture() *cursortest.Node {
	hello := cursortest.Drv(map[string]*cursortest.Node{
		"name":    cursortest.Str("hello-2.12.1"),
		"outputs": cursortest.List("out"),
	})
	curl := cursortest.Drv(map[string]*cursortest.Node{
		"name":    cursortest.Str("curl-8.0.0"),
		"outputs": cursortest.List("out"),
	})
	system := cursortest.AttrSet(map[string]*cursortest.Node{
		"hello": hello, "curl": curl,
	}, "hello", "curl")
	packages := cursortest.AttrSet(map[string]*cursortest.Node{"x86_64-linux": system}, "x86_64-linux")
	return cursortest.AttrSet(map[string]*cursortest.Node{"packages": packages}, "packages")
}

func buildEnvironment(t *testing.T, install map[string]*manifest.DescriptorRaw) (*Environment, *manifest.ManifestRaw) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "nixpkgs.sqlite")
	root := cursortest.Root(buildNixpkgsFixture())
	in := registry.NewPkgDbInput("nixpkgs", dbPath, root, registry.InputPreferences{}, nil)
	require.NoError(t, in.ScrapeSystems([]string{"x86_64-linux"}))

	raw := &manifest.ManifestRaw{
		Registry: &registry.Registry{
			Inputs:   map[string]*registry.RegistryInput{"nixpkgs": {From: map[string]interface{}{"owner": "NixOS"}}},
			Priority: []string{"nixpkgs"},
		},
		Install: install,
	}
	m, err := manifest.New(raw)
	require.NoError(t, err)

	env := &Environment{
		Project:    m,
		ProjectRaw: raw,
		Systems:    []string{"x86_64-linux"},
		Inputs:     map[string]*registry.PkgDbInput{"nixpkgs": in},
		Locker:     fakeLocker{},
	}
	return env, raw
}

func TestCreateLockfileResolvesSimpleDescriptors(t *testing.T) {
	env, _ := buildEnvironment(t, map[string]*manifest.DescriptorRaw{
		"hello": {Name: "hello"},
		"curl":  {Name: "curl"},
	})

	lf, err := env.CreateLockfile()
	require.NoError(t, err)

	pkgs := lf.Packages["x86_64-linux"]
	require.NotNil(t, pkgs["hello"])
	assert.Equal(t, "hello", pkgs["hello"].Info.Pname)
	require.NotNil(t, pkgs["curl"])
	assert.Equal(t, "fingerprint-NixOS", pkgs["hello"].Input.Fingerprint)
}

func TestCreateLockfileFailsOnUnresolvableRequiredDescriptor(t *testing.T) {
	env, _ := buildEnvironment(t, map[string]*manifest.DescriptorRaw{
		"nonexistent": {Name: "nonexistent-package-xyz"},
	})

	_, err := env.CreateLockfile()
	assert.Error(t, err)
}

func TestCreateLockfileAllowsOptionalDescriptorToMiss(t *testing.T) {
	env, _ := buildEnvironment(t, map[string]*manifest.DescriptorRaw{
		"nonexistent": {Name: "nonexistent-package-xyz", Optional: true},
	})

	lf, err := env.CreateLockfile()
	require.NoError(t, err)
	assert.Nil(t, lf.Packages["x86_64-linux"]["nonexistent"])
}

func TestGroupIsLockedReusesUnchangedEntries(t *testing.T) {
	env, raw := buildEnvironment(t, map[string]*manifest.DescriptorRaw{
		"hello": {Name: "hello"},
	})

	first, err := env.CreateLockfile()
	require.NoError(t, err)

	env2, _ := buildEnvironment(t, nil)
	env2.ProjectRaw = raw
	m, err := manifest.New(raw)
	require.NoError(t, err)
	env2.Project = m
	env2.Old = first

	locked, err := env2.groupIsLocked([]string{"hello"}, "x86_64-linux")
	require.NoError(t, err)
	assert.True(t, locked)
}

func TestSystemSkipped(t *testing.T) {
	assert.False(t, systemSkipped("x86_64-linux", nil))
	assert.False(t, systemSkipped("x86_64-linux", []string{"x86_64-linux", "aarch64-linux"}))
	assert.True(t, systemSkipped("x86_64-darwin", []string{"x86_64-linux"}))
}
