package pkgmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flox/pkgdb-sub000/internal/cursor/cursortest"
)

func TestSplitDrvName(t *testing.T) {
	cases := []struct {
		name, pname, version string
	}{
		{"hello-2.12.1", "hello", "2.12.1"},
		{"hello", "hello", ""},
		{"go1.21-bin", "go1.21-bin", ""},
		{"rust-bin-1.70.0", "rust-bin", "1.70.0"},
	}
	for _, c := range cases {
		pname, version := SplitDrvName(c.name)
		assert.Equal(t, c.pname, pname, c.name)
		assert.Equal(t, c.version, version, c.name)
	}
}

func TestExtractFullPackage(t *testing.T) {
	node := cursortest.Drv(map[string]*cursortest.Node{
		"name":    cursortest.Str("hello-2.12.1"),
		"pname":   cursortest.Str("hello"),
		"version": cursortest.Str("2.12.1"),
		"outputs": cursortest.List("out", "man"),
		"meta": cursortest.AttrSet(map[string]*cursortest.Node{
			"description": cursortest.Str("friendly hello"),
			"broken":      cursortest.Bool(false),
			"unfree":      cursortest.Bool(false),
			"license":     cursortest.AttrSet(map[string]*cursortest.Node{"spdxId": cursortest.Str("GPL-3.0-or-later")}),
		}),
	})
	c := cursortest.Root(node)

	pkg, err := Extract(c, []string{"packages", "x86_64-linux", "hello"}, ExtractOptions{CheckDerivation: true})
	require.NoError(t, err)
	assert.Equal(t, "hello", pkg.Pname)
	assert.Equal(t, "2.12.1", pkg.Version)
	assert.Equal(t, "2.12.1", pkg.Semver)
	assert.Equal(t, "friendly hello", pkg.Description)
	assert.Equal(t, "GPL-3.0-or-later", pkg.License)
	require.NotNil(t, pkg.Broken)
	assert.False(t, *pkg.Broken)
	assert.Equal(t, []string{"out", "man"}, pkg.Outputs)
	assert.Equal(t, []string{"out"}, pkg.OutputsToInstall)
	assert.Equal(t, Packages, pkg.Subtree)
	assert.Equal(t, "x86_64-linux", pkg.System)
}

func TestExtractDerivesPnameAndVersionFromName(t *testing.T) {
	node := cursortest.Drv(map[string]*cursortest.Node{
		"name":    cursortest.Str("hello-2.12.1"),
		"outputs": cursortest.List("out"),
	})
	pkg, err := Extract(cursortest.Root(node), []string{"legacyPackages", "x86_64-linux", "hello"}, ExtractOptions{})
	require.NoError(t, err)
	assert.Equal(t, "hello", pkg.Pname)
	assert.Equal(t, "2.12.1", pkg.Version)
}

func TestExtractDefaultsOutputs(t *testing.T) {
	node := cursortest.Drv(map[string]*cursortest.Node{
		"name": cursortest.Str("hello-1.0.0"),
	})
	pkg, err := Extract(cursortest.Root(node), []string{"packages", "x86_64-linux", "hello"}, ExtractOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"out"}, pkg.Outputs)
	assert.Equal(t, []string{"out"}, pkg.OutputsToInstall)
}

func TestExtractRequiresName(t *testing.T) {
	node := cursortest.Drv(map[string]*cursortest.Node{})
	_, err := Extract(cursortest.Root(node), []string{"packages", "x86_64-linux", "hello"}, ExtractOptions{})
	assert.Error(t, err)
}

func TestExtractCatalogRequiresFourSegments(t *testing.T) {
	node := cursortest.Drv(map[string]*cursortest.Node{"name": cursortest.Str("hello-1.0")})
	_, err := Extract(cursortest.Root(node), []string{"catalog", "x86_64-linux", "hello"}, ExtractOptions{})
	assert.Error(t, err)
}

func TestExtractRejectsNonDerivationWhenChecked(t *testing.T) {
	node := cursortest.AttrSet(map[string]*cursortest.Node{"name": cursortest.Str("hello-1.0")})
	_, err := Extract(cursortest.Root(node), []string{"packages", "x86_64-linux", "hello"}, ExtractOptions{CheckDerivation: true})
	assert.Error(t, err)
}
