package pkgquery

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flox/pkgdb-sub000/internal/pkgdb"
	"github.com/flox/pkgdb-sub000/internal/pkgmodel"
)

func openTestDb(t *testing.T) *pkgdb.Db {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.sqlite")
	db, err := pkgdb.Open(path, pkgdb.ReadWrite, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedPackage(t *testing.T, db *pkgdb.Db, subtree, system, attrName string, pkg *pkgmodel.Package) int64 {
	t.Helper()
	parent, err := db.AddOrGetAttrSetIDByPath([]string{subtree, system})
	require.NoError(t, err)
	pkg.AttrName = attrName
	id, err := db.AddPackage(parent, pkg, pkgdb.AddPackageOptions{})
	require.NoError(t, err)
	return id
}

func TestValidateRejectsMixedNameAndPname(t *testing.T) {
	db := openTestDb(t)
	_, err := Execute(db.Conn(), &Args{Name: "hello", Pname: "hello"})
	assert.Error(t, err)
}

func TestValidateRejectsApostropheInLicense(t *testing.T) {
	db := openTestDb(t)
	_, err := Execute(db.Conn(), &Args{Licenses: []string{"GPL's License"}})
	assert.Error(t, err)
}

func TestValidateRejectsUnknownSystem(t *testing.T) {
	db := openTestDb(t)
	_, err := Execute(db.Conn(), &Args{Systems: []string{"ppc64-linux"}})
	assert.Error(t, err)
}

func TestExecuteMatchesByExactPname(t *testing.T) {
	db := openTestDb(t)
	seedPackage(t, db, "packages", "x86_64-linux", "hello",
		&pkgmodel.Package{Name: "hello-1.0", Pname: "hello", Outputs: []string{"out"}})
	seedPackage(t, db, "packages", "x86_64-linux", "hello-world",
		&pkgmodel.Package{Name: "hello-world-1.0", Pname: "hello-world", Outputs: []string{"out"}})

	ids, err := Execute(db.Conn(), &Args{Match: "hello"})
	require.NoError(t, err)
	require.Len(t, ids, 2)

	row, err := db.GetPackage(ids[0])
	require.NoError(t, err)
	assert.Equal(t, "hello", row.AttrName, "exact pname match ranks first")
}

func TestExecuteExcludesBrokenByDefault(t *testing.T) {
	db := openTestDb(t)
	broken := true
	seedPackage(t, db, "packages", "x86_64-linux", "broken-pkg",
		&pkgmodel.Package{Name: "broken-pkg-1.0", Pname: "broken-pkg", Broken: &broken, Outputs: []string{"out"}})

	ids, err := Execute(db.Conn(), &Args{Systems: []string{"x86_64-linux"}})
	require.NoError(t, err)
	assert.Empty(t, ids)

	ids, err = Execute(db.Conn(), &Args{Systems: []string{"x86_64-linux"}, AllowBroken: true})
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestExecuteFiltersBySemverRange(t *testing.T) {
	db := openTestDb(t)
	seedPackage(t, db, "packages", "x86_64-linux", "hello",
		&pkgmodel.Package{Name: "hello-1.0.0", Pname: "hello", Version: "1.0.0", Semver: "1.0.0", Outputs: []string{"out"}})

	parent, err := db.AddOrGetAttrSetIDByPath([]string{"packages", "x86_64-linux"})
	require.NoError(t, err)
	_, err = db.AddPackage(parent, &pkgmodel.Package{
		AttrName: "hello2", Name: "hello-2.0.0", Pname: "hello", Version: "2.0.0", Semver: "2.0.0", Outputs: []string{"out"},
	}, pkgdb.AddPackageOptions{})
	require.NoError(t, err)

	ids, err := Execute(db.Conn(), &Args{Pname: "hello", Semver: "^1.0.0"})
	require.NoError(t, err)
	require.Len(t, ids, 1)

	row, err := db.GetPackage(ids[0])
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", row.Version.String)
}

func TestExecuteAllowsUnfreeByDefault(t *testing.T) {
	db := openTestDb(t)
	unfree := true
	seedPackage(t, db, "packages", "x86_64-linux", "unfree-pkg",
		&pkgmodel.Package{Name: "unfree-pkg-1.0", Pname: "unfree-pkg", Unfree: &unfree, Outputs: []string{"out"}})

	ids, err := Execute(db.Conn(), &Args{Systems: []string{"x86_64-linux"}})
	require.NoError(t, err)
	assert.Len(t, ids, 1, "unfree packages are included unless DenyUnfree is set")

	ids, err = Execute(db.Conn(), &Args{Systems: []string{"x86_64-linux"}, DenyUnfree: true})
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestExecuteRejectsStabilityWithoutCatalogSubtree(t *testing.T) {
	db := openTestDb(t)
	_, err := Execute(db.Conn(), &Args{
		Subtrees:    []pkgmodel.Subtree{pkgmodel.Packages},
		Stabilities: []string{"stable"},
	})
	assert.Error(t, err)
}
