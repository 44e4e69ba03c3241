package scraper

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flox/pkgdb-sub000/internal/cursor/cursortest"
	"github.com/flox/pkgdb-sub000/internal/pkgdb"
)

func openTestDb(t *testing.T) *pkgdb.Db {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.sqlite")
	db, err := pkgdb.Open(path, pkgdb.ReadWrite, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func buildFixture() *cursortest.Node {
	hello := cursortest.Drv(map[string]*cursortest.Node{
		"name":    cursortest.Str("hello-2.12.1"),
		"outputs": cursortest.List("out"),
	})
	system := cursortest.AttrSet(map[string]*cursortest.Node{
		"hello": hello,
	}, "hello")
	packages := cursortest.AttrSet(map[string]*cursortest.Node{
		"x86_64-linux": system,
	}, "x86_64-linux")
	return cursortest.AttrSet(map[string]*cursortest.Node{
		"packages": packages,
	}, "packages")
}

func TestScrapeIndexesDerivations(t *testing.T) {
	db := openTestDb(t)
	root := cursortest.Root(buildFixture())

	err := Scrape(db, root, []string{"packages", "x86_64-linux"}, nil)
	require.NoError(t, err)

	parent, err := db.GetAttrSetID([]string{"packages", "x86_64-linux"})
	require.NoError(t, err)

	has, err := db.HasPackage(parent, "hello")
	require.NoError(t, err)
	assert.True(t, has)

	done, err := db.CompletedAttrSet([]string{"packages", "x86_64-linux"})
	require.NoError(t, err)
	assert.True(t, done)
}

func TestScrapeIsIdempotentWhenAlreadyDone(t *testing.T) {
	db := openTestDb(t)
	root := cursortest.Root(buildFixture())

	require.NoError(t, Scrape(db, root, []string{"packages", "x86_64-linux"}, nil))
	// Second scrape should short-circuit without error, regardless of
	// whether the evaluator is reachable.
	require.NoError(t, Scrape(db, root, []string{"packages", "x86_64-linux"}, nil))
}

func TestScrapeMissingPrefixIsNoop(t *testing.T) {
	db := openTestDb(t)
	root := cursortest.Root(buildFixture())

	err := Scrape(db, root, []string{"packages", "aarch64-darwin"}, nil)
	require.NoError(t, err)

	_, err = db.GetAttrSetID([]string{"packages", "aarch64-darwin"})
	assert.Error(t, err)
}

func TestScrapeRecursesIntoSubAttrSets(t *testing.T) {
	leaf := cursortest.Drv(map[string]*cursortest.Node{
		"name":    cursortest.Str("libfoo-1.0"),
		"outputs": cursortest.List("out"),
	})
	inner := cursortest.AttrSet(map[string]*cursortest.Node{
		"libfoo":                leaf,
		"recurseForDerivations": cursortest.Bool(true),
	}, "libfoo", "recurseForDerivations")
	system := cursortest.AttrSet(map[string]*cursortest.Node{
		"xorg": inner,
	}, "xorg")
	tree := cursortest.AttrSet(map[string]*cursortest.Node{
		"x86_64-linux": system,
	}, "x86_64-linux")
	root := cursortest.Root(cursortest.AttrSet(map[string]*cursortest.Node{
		"legacyPackages": tree,
	}, "legacyPackages"))

	db := openTestDb(t)
	require.NoError(t, Scrape(db, root, []string{"legacyPackages", "x86_64-linux"}, nil))

	xorgID, err := db.GetAttrSetID([]string{"legacyPackages", "x86_64-linux", "xorg"})
	require.NoError(t, err)
	has, err := db.HasPackage(xorgID, "libfoo")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestScrapeTreatsPackagesEvalErrorsAsFatal(t *testing.T) {
	bad := cursortest.AttrSet(map[string]*cursortest.Node{})
	system := cursortest.AttrSet(map[string]*cursortest.Node{
		"broken-thing": bad,
	}, "broken-thing")
	system.EvalErrorOn = map[string]bool{"broken-thing": true}
	tree := cursortest.AttrSet(map[string]*cursortest.Node{
		"x86_64-linux": system,
	}, "x86_64-linux")
	root := cursortest.Root(cursortest.AttrSet(map[string]*cursortest.Node{
		"packages": tree,
	}, "packages"))

	db := openTestDb(t)
	err := Scrape(db, root, []string{"packages", "x86_64-linux"}, nil)
	assert.Error(t, err)

	done, derr := db.CompletedAttrSet([]string{"packages", "x86_64-linux"})
	require.NoError(t, derr)
	assert.False(t, done, "a rolled-back scrape must leave no done mark")
}

func TestScrapeTreatsLegacyPackagesEvalErrorsAsTolerant(t *testing.T) {
	ok := cursortest.Drv(map[string]*cursortest.Node{
		"name":    cursortest.Str("ok-1.0"),
		"outputs": cursortest.List("out"),
	})
	system := cursortest.AttrSet(map[string]*cursortest.Node{
		"broken-thing": cursortest.AttrSet(map[string]*cursortest.Node{}),
		"ok":           ok,
	}, "broken-thing", "ok")
	system.EvalErrorOn = map[string]bool{"broken-thing": true}
	tree := cursortest.AttrSet(map[string]*cursortest.Node{
		"x86_64-linux": system,
	}, "x86_64-linux")
	root := cursortest.Root(cursortest.AttrSet(map[string]*cursortest.Node{
		"legacyPackages": tree,
	}, "legacyPackages"))

	db := openTestDb(t)
	err := Scrape(db, root, []string{"legacyPackages", "x86_64-linux"}, nil)
	require.NoError(t, err)

	parent, err := db.GetAttrSetID([]string{"legacyPackages", "x86_64-linux"})
	require.NoError(t, err)
	has, err := db.HasPackage(parent, "ok")
	require.NoError(t, err)
	assert.True(t, has)
}
