package pkgdb

import (
	"database/sql"
	"encoding/json"

	"github.com/flox/pkgdb-sub000/internal/pkgdberr"
)

// GetAttrSetID looks up the id of the AttrSets row at path, starting from
// the root (parent = 0), failing with NoSuchEntity if any component is
// missing.
func (db *Db) GetAttrSetID(path []string) (int64, error) {
	var parent int64
	for _, component := range path {
		var id int64
		row := db.conn.QueryRow(
			`SELECT id FROM AttrSets WHERE parent = ? AND attrName = ?`, parent, component)
		switch err := row.Scan(&id); err {
		case nil:
			parent = id
		case sql.ErrNoRows:
			return 0, pkgdberr.New(pkgdberr.NoSuchEntity, "no such attribute set: %s", joinPath(path))
		default:
			return 0, wrapSQLErr(err, db.Path, "looking up attribute set "+joinPath(path))
		}
	}
	return parent, nil
}

// GetAttrSetPath reconstructs the full attribute path for an AttrSets id
// by walking parent pointers to the root.
func (db *Db) GetAttrSetPath(id int64) ([]string, error) {
	var reversed []string
	for id != 0 {
		var attrName string
		var parent int64
		row := db.conn.QueryRow(`SELECT attrName, parent FROM AttrSets WHERE id = ?`, id)
		switch err := row.Scan(&attrName, &parent); err {
		case nil:
			reversed = append(reversed, attrName)
			id = parent
		case sql.ErrNoRows:
			return nil, pkgdberr.New(pkgdberr.NoSuchEntity, "no AttrSets row with id %d", id)
		default:
			return nil, wrapSQLErr(err, db.Path, "walking attribute set path")
		}
	}
	path := make([]string, len(reversed))
	for i, c := range reversed {
		path[len(reversed)-1-i] = c
	}
	return path, nil
}

// HasAttrSet reports whether an AttrSets row exists at path.
func (db *Db) HasAttrSet(path []string) (bool, error) {
	_, err := db.GetAttrSetID(path)
	if err == nil {
		return true, nil
	}
	if pkgdberr.Is(err, pkgdberr.NoSuchEntity) {
		return false, nil
	}
	return false, err
}

// CompletedAttrSet reports whether the AttrSets row at path (if any) is
// marked done, short-circuiting re-scrapes (§4.5).
func (db *Db) CompletedAttrSet(path []string) (bool, error) {
	id, err := db.GetAttrSetID(path)
	if pkgdberr.Is(err, pkgdberr.NoSuchEntity) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	var done bool
	row := db.conn.QueryRow(`SELECT done FROM AttrSets WHERE id = ?`, id)
	if err := row.Scan(&done); err != nil {
		return false, wrapSQLErr(err, db.Path, "reading done flag")
	}
	return done, nil
}

// GetDescendantAttrSets returns the ids of every descendant of id,
// breadth-first, excluding id itself.
func (db *Db) GetDescendantAttrSets(id int64) ([]int64, error) {
	const stmt = `
WITH RECURSIVE Descendants ( id, depth ) AS (
  SELECT id, 0 FROM AttrSets WHERE parent = ?
  UNION ALL
  SELECT AttrSets.id, Descendants.depth + 1
  FROM AttrSets JOIN Descendants ON AttrSets.parent = Descendants.id
)
SELECT id FROM Descendants ORDER BY depth, id`
	rows, err := db.conn.Query(stmt, id)
	if err != nil {
		return nil, wrapSQLErr(err, db.Path, "listing descendant attribute sets")
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var descID int64
		if err := rows.Scan(&descID); err != nil {
			return nil, wrapSQLErr(err, db.Path, "scanning descendant attribute set")
		}
		ids = append(ids, descID)
	}
	return ids, rows.Err()
}

// GetPackageID looks up the Packages row id for attrName under parentID.
func (db *Db) GetPackageID(parentID int64, attrName string) (int64, error) {
	var id int64
	row := db.conn.QueryRow(
		`SELECT id FROM Packages WHERE parentId = ? AND attrName = ?`, parentID, attrName)
	switch err := row.Scan(&id); err {
	case nil:
		return id, nil
	case sql.ErrNoRows:
		return 0, pkgdberr.New(pkgdberr.NoSuchEntity, "no such package: %s", attrName)
	default:
		return 0, wrapSQLErr(err, db.Path, "looking up package "+attrName)
	}
}

// GetPackagePath reconstructs the full attribute path of a Packages row.
func (db *Db) GetPackagePath(packageID int64) ([]string, error) {
	var parentID int64
	var attrName string
	row := db.conn.QueryRow(`SELECT parentId, attrName FROM Packages WHERE id = ?`, packageID)
	switch err := row.Scan(&parentID, &attrName); err {
	case nil:
	case sql.ErrNoRows:
		return nil, pkgdberr.New(pkgdberr.NoSuchEntity, "no Packages row with id %d", packageID)
	default:
		return nil, wrapSQLErr(err, db.Path, "reading package row")
	}
	parentPath, err := db.GetAttrSetPath(parentID)
	if err != nil {
		return nil, err
	}
	return append(parentPath, attrName), nil
}

// HasPackage reports whether a Packages row exists for attrName under
// parentID.
func (db *Db) HasPackage(parentID int64, attrName string) (bool, error) {
	_, err := db.GetPackageID(parentID, attrName)
	if err == nil {
		return true, nil
	}
	if pkgdberr.Is(err, pkgdberr.NoSuchEntity) {
		return false, nil
	}
	return false, err
}

// Row is the projection of a Packages row joined with its path, license,
// description and semver decomposition, as surfaced by v_PackagesSearch
// (§4.4) and consumed by PkgQuery results and lockfile construction.
type Row struct {
	ID               int64
	Subtree          string
	System           string
	Stability        sql.NullString
	AttrName         string
	Name             string
	Pname            sql.NullString
	Version          sql.NullString
	Semver           sql.NullString
	License          sql.NullString
	Outputs          []string
	OutputsToInstall []string
	Broken           sql.NullBool
	Unfree           sql.NullBool
	Description      sql.NullString
}

// GetPackage loads the full v_PackagesSearch projection for packageID.
func (db *Db) GetPackage(packageID int64) (*Row, error) {
	const stmt = `
SELECT id, subtree, system, stability, attrName, name, pname, version, semver
     , license, outputs, outputsToInstall, broken, unfree, description
FROM v_PackagesSearch WHERE id = ?`
	row := db.conn.QueryRow(stmt, packageID)
	return scanRow(row, db.Path)
}

func scanRow(row *sql.Row, path string) (*Row, error) {
	var r Row
	var outputsJSON string
	var outputsToInstallJSON sql.NullString
	err := row.Scan(
		&r.ID, &r.Subtree, &r.System, &r.Stability, &r.AttrName, &r.Name, &r.Pname, &r.Version,
		&r.Semver, &r.License, &outputsJSON, &outputsToInstallJSON, &r.Broken, &r.Unfree, &r.Description)
	switch err {
	case nil:
	case sql.ErrNoRows:
		return nil, pkgdberr.New(pkgdberr.NoSuchEntity, "no such package row")
	default:
		return nil, wrapSQLErr(err, path, "scanning package row")
	}

	if err := json.Unmarshal([]byte(outputsJSON), &r.Outputs); err != nil {
		return nil, pkgdberr.Wrap(pkgdberr.StoreWriteFailed, err, "decoding outputs")
	}
	if outputsToInstallJSON.Valid {
		if err := json.Unmarshal([]byte(outputsToInstallJSON.String), &r.OutputsToInstall); err != nil {
			return nil, pkgdberr.Wrap(pkgdberr.StoreWriteFailed, err, "decoding outputsToInstall")
		}
	}
	return &r, nil
}
