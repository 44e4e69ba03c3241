package registry

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flox/pkgdb-sub000/internal/cursor/cursortest"
	"github.com/flox/pkgdb-sub000/internal/pkgdberr"
)

func buildFixture() *cursortest.Node {
	hello := cursortest.Drv(map[string]*cursortest.Node{
		"name":    cursortest.Str("hello-2.12.1"),
		"outputs": cursortest.List("out"),
	})
	system := cursortest.AttrSet(map[string]*cursortest.Node{"hello": hello}, "hello")
	packages := cursortest.AttrSet(map[string]*cursortest.Node{"x86_64-linux": system}, "x86_64-linux")
	return cursortest.AttrSet(map[string]*cursortest.Node{"packages": packages}, "packages")
}

func TestScrapePrefixIsIdempotentAndCached(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nixpkgs.sqlite")
	root := cursortest.Root(buildFixture())
	in := NewPkgDbInput("nixpkgs", dbPath, root, InputPreferences{}, nil)

	require.NoError(t, in.ScrapePrefix([]string{"packages", "x86_64-linux"}))
	_, cached := in.attrSetCache.Get("packages.x86_64-linux")
	assert.True(t, cached)

	// Second call should short-circuit via the cache without reopening
	// a write handle.
	require.NoError(t, in.ScrapePrefix([]string{"packages", "x86_64-linux"}))

	ro, err := in.GetDbReadOnly()
	require.NoError(t, err)
	parent, err := ro.GetAttrSetID([]string{"packages", "x86_64-linux"})
	require.NoError(t, err)
	has, err := ro.HasPackage(parent, "hello")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestScrapeSystemsUsesDefaultSubtreesAndStability(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nixpkgs.sqlite")
	root := cursortest.Root(buildFixture())
	in := NewPkgDbInput("nixpkgs", dbPath, root, InputPreferences{}, nil)

	// Only the packages subtree exists in the fixture; legacyPackages and
	// catalog prefixes are simply absent from the evaluator, which the
	// scraper treats as a no-op rather than an error.
	require.NoError(t, in.ScrapeSystems([]string{"x86_64-linux"}))

	ro, err := in.GetDbReadOnly()
	require.NoError(t, err)
	done, err := ro.CompletedAttrSet([]string{"packages", "x86_64-linux"})
	require.NoError(t, err)
	assert.True(t, done)
}

func TestGetDbReadWriteIsRefcounted(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nixpkgs.sqlite")
	root := cursortest.Root(buildFixture())
	in := NewPkgDbInput("nixpkgs", dbPath, root, InputPreferences{}, nil)

	db1, err := in.GetDbReadWrite()
	require.NoError(t, err)
	db2, err := in.GetDbReadWrite()
	require.NoError(t, err)
	assert.Same(t, db1, db2)

	require.NoError(t, in.CloseDbReadWrite())
	// Still one outstanding reference; the connection must remain usable.
	_, err = db1.GetAttrSetID([]string{"packages"})
	// not created yet, but the handle itself is alive
	assert.True(t, pkgdberr.Is(err, pkgdberr.NoSuchEntity))
	require.NoError(t, in.CloseDbReadWrite())
}
