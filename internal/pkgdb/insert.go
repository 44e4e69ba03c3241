package pkgdb

import (
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/flox/pkgdb-sub000/internal/pkgdberr"
	"github.com/flox/pkgdb-sub000/internal/pkgmodel"
)

// querier is satisfied by both *sql.DB and *sql.Tx, so every insert/read
// primitive can run either standalone or inside the single transaction
// the scraper holds open for an entire scrape (§4.5 step 5).
type querier interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	QueryRow(query string, args ...interface{}) *sql.Row
	Query(query string, args ...interface{}) (*sql.Rows, error)
}

// Tx is a handle onto one transaction against a Db, exposing the same
// insert/read primitives as Db itself.
type Tx struct {
	Path string
	tx   *sql.Tx
}

// Begin starts a transaction. Callers must Commit or Rollback it.
func (db *Db) Begin() (*Tx, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return nil, wrapSQLErr(err, db.Path, "BEGIN")
	}
	return &Tx{Path: db.Path, tx: tx}, nil
}

func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return wrapSQLErr(err, t.Path, "COMMIT")
	}
	return nil
}

func (t *Tx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return wrapSQLErr(err, t.Path, "ROLLBACK")
	}
	return nil
}

func (db *Db) q() querier { return db.conn }
func (t *Tx) q() querier  { return t.tx }

// AddOrGetAttrSetID returns the id of the AttrSets row for (parentID,
// attrName), inserting it if absent.
func (db *Db) AddOrGetAttrSetID(parentID int64, attrName string) (int64, error) {
	return addOrGetAttrSetID(db.q(), db.Path, parentID, attrName)
}
func (t *Tx) AddOrGetAttrSetID(parentID int64, attrName string) (int64, error) {
	return addOrGetAttrSetID(t.q(), t.Path, parentID, attrName)
}

func addOrGetAttrSetID(q querier, path string, parentID int64, attrName string) (int64, error) {
	var id int64
	row := q.QueryRow(`SELECT id FROM AttrSets WHERE parent = ? AND attrName = ?`, parentID, attrName)
	switch err := row.Scan(&id); err {
	case nil:
		return id, nil
	case sql.ErrNoRows:
		res, err := q.Exec(`INSERT INTO AttrSets ( parent, attrName ) VALUES ( ?, ? )`, parentID, attrName)
		if err != nil {
			return 0, wrapSQLErr(err, path, "inserting AttrSets row")
		}
		return res.LastInsertId()
	default:
		return 0, wrapSQLErr(err, path, "looking up AttrSets row")
	}
}

// AddOrGetAttrSetIDByPath walks/creates a chain of AttrSets rows for each
// component of path, starting from the root (parent = 0), and returns the
// id of the final component.
func (db *Db) AddOrGetAttrSetIDByPath(path []string) (int64, error) {
	return addOrGetAttrSetIDByPath(db.q(), db.Path, path)
}
func (t *Tx) AddOrGetAttrSetIDByPath(path []string) (int64, error) {
	return addOrGetAttrSetIDByPath(t.q(), t.Path, path)
}

func addOrGetAttrSetIDByPath(q querier, dbPath string, path []string) (int64, error) {
	var parent int64
	for _, component := range path {
		id, err := addOrGetAttrSetID(q, dbPath, parent, component)
		if err != nil {
			return 0, err
		}
		parent = id
	}
	return parent, nil
}

// AddOrGetDescriptionID returns the id of the Descriptions row holding
// description, inserting it if absent.
func (db *Db) AddOrGetDescriptionID(description string) (int64, error) {
	return addOrGetDescriptionID(db.q(), db.Path, description)
}
func (t *Tx) AddOrGetDescriptionID(description string) (int64, error) {
	return addOrGetDescriptionID(t.q(), t.Path, description)
}

func addOrGetDescriptionID(q querier, path, description string) (int64, error) {
	var id int64
	row := q.QueryRow(`SELECT id FROM Descriptions WHERE description = ?`, description)
	switch err := row.Scan(&id); err {
	case nil:
		return id, nil
	case sql.ErrNoRows:
		res, err := q.Exec(`INSERT INTO Descriptions ( description ) VALUES ( ? )`, description)
		if err != nil {
			return 0, wrapSQLErr(err, path, "inserting Descriptions row")
		}
		return res.LastInsertId()
	default:
		return 0, wrapSQLErr(err, path, "looking up Descriptions row")
	}
}

// AddPackageOptions controls conflict handling for AddPackage (§4.4):
// Replace overwrites an existing row for the same (parentId, attrName);
// otherwise a conflict is silently ignored, matching the scraper's
// re-scrape idempotency requirement.
type AddPackageOptions struct {
	Replace bool
}

// AddPackage inserts pkg under the AttrSets row parentID, returning the
// new (or, on a non-Replace conflict, existing) Packages row id.
func (db *Db) AddPackage(parentID int64, pkg *pkgmodel.Package, opts AddPackageOptions) (int64, error) {
	return addPackage(db.q(), db.Path, parentID, pkg, opts)
}
func (t *Tx) AddPackage(parentID int64, pkg *pkgmodel.Package, opts AddPackageOptions) (int64, error) {
	return addPackage(t.q(), t.Path, parentID, pkg, opts)
}

func addPackage(q querier, path string, parentID int64, pkg *pkgmodel.Package, opts AddPackageOptions) (int64, error) {
	var descID sql.NullInt64
	if pkg.Description != "" {
		id, err := addOrGetDescriptionID(q, path, pkg.Description)
		if err != nil {
			return 0, err
		}
		descID = sql.NullInt64{Int64: id, Valid: true}
	}

	outputs, err := json.Marshal(pkg.Outputs)
	if err != nil {
		return 0, pkgdberr.Wrap(pkgdberr.StoreWriteFailed, err, "encoding outputs for %s", pkg.AttrName)
	}
	var outputsToInstall sql.NullString
	if len(pkg.OutputsToInstall) > 0 {
		b, err := json.Marshal(pkg.OutputsToInstall)
		if err != nil {
			return 0, pkgdberr.Wrap(pkgdberr.StoreWriteFailed, err, "encoding outputsToInstall for %s", pkg.AttrName)
		}
		outputsToInstall = sql.NullString{String: string(b), Valid: true}
	}

	verb := "INSERT OR IGNORE"
	if opts.Replace {
		verb = "INSERT OR REPLACE"
	}
	stmt := verb + ` INTO Packages
		( parentId, attrName, name, pname, version, semver, license
		, outputs, outputsToInstall, broken, unfree, descriptionId )
		VALUES ( ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ? )`

	res, err := q.Exec(stmt,
		parentID, pkg.AttrName, pkg.Name, nullIfEmpty(pkg.Pname), nullIfEmpty(pkg.Version),
		nullIfEmpty(pkg.Semver), nullIfEmpty(pkg.License),
		string(outputs), outputsToInstall, nullableBool(pkg.Broken), nullableBool(pkg.Unfree), descID)
	if err != nil {
		return 0, wrapSQLErr(err, path, "inserting Packages row for "+pkg.AttrName)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, wrapSQLErr(err, path, "reading inserted Packages row count")
	}
	if affected != 0 {
		id, err := res.LastInsertId()
		if err != nil {
			return 0, wrapSQLErr(err, path, "reading inserted Packages id")
		}
		return id, nil
	}

	// INSERT OR IGNORE hit the UC_Packages conflict: return the existing row.
	var existing int64
	row := q.QueryRow(`SELECT id FROM Packages WHERE parentId = ? AND attrName = ?`, parentID, pkg.AttrName)
	if err := row.Scan(&existing); err != nil {
		return 0, wrapSQLErr(err, path, "resolving existing Packages row for "+pkg.AttrName)
	}
	return existing, nil
}

// SetPrefixDone marks the AttrSets row at id, and every descendant of it,
// as fully scraped (§4.5), in a single recursive-CTE UPDATE.
func (db *Db) SetPrefixDone(id int64) error { return setPrefixDone(db.q(), db.Path, id) }
func (t *Tx) SetPrefixDone(id int64) error  { return setPrefixDone(t.q(), t.Path, id) }

func setPrefixDone(q querier, path string, id int64) error {
	const stmt = `
WITH RECURSIVE Descendants ( id ) AS (
  SELECT id FROM AttrSets WHERE id = ?
  UNION ALL
  SELECT AttrSets.id FROM AttrSets JOIN Descendants ON AttrSets.parent = Descendants.id
)
UPDATE AttrSets SET done = 1 WHERE id IN ( SELECT id FROM Descendants )`
	if _, err := q.Exec(stmt, id); err != nil {
		return wrapSQLErr(err, path, "marking prefix done")
	}
	return nil
}

// SetLockedFlake records the single LockedFlake row for this database
// (§4.4); a second distinct row is rejected by the IT_LockedFlake trigger.
func (db *Db) SetLockedFlake(fingerprint, lockedString string, attrs map[string]interface{}) error {
	return setLockedFlake(db.q(), db.Path, fingerprint, lockedString, attrs)
}

func setLockedFlake(q querier, path, fingerprint, lockedString string, attrs map[string]interface{}) error {
	attrsJSON, err := json.Marshal(attrs)
	if err != nil {
		return pkgdberr.Wrap(pkgdberr.StoreWriteFailed, err, "encoding locked flake attrs")
	}
	if _, err := q.Exec(
		`INSERT INTO LockedFlake ( fingerprint, string, attrs ) VALUES ( ?, ?, ? )`,
		fingerprint, lockedString, string(attrsJSON),
	); err != nil {
		return wrapSQLErr(err, path, "inserting LockedFlake row")
	}
	return nil
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullableBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

// joinPath formats an attribute path for diagnostics; the read
// primitives use it in their error messages.
func joinPath(path []string) string { return strings.Join(path, ".") }
