package pkgdb

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/theckman/go-flock"

	"github.com/flox/pkgdb-sub000/internal/cachedir"
	"github.com/flox/pkgdb-sub000/internal/loggingutil"
	"github.com/flox/pkgdb-sub000/internal/pkgdberr"
)

// Db is a scoped handle onto one PkgDb SQLite file (§5): at most one
// read-write handle may be active per file, enforced here with an
// OS-level advisory lock alongside the *sql.DB connection.
type Db struct {
	Path string

	conn   *sql.DB
	lock   *flock.Flock
	locked bool
	log    *loggingutil.Logger
}

// OpenMode selects whether Open acquires the exclusive write lock.
type OpenMode int

const (
	ReadOnly OpenMode = iota
	ReadWrite
)

// Open opens the PkgDb file at path, creating and migrating it as needed
// (§4.4). In ReadWrite mode it takes an exclusive advisory lock for the
// lifetime of the handle; Close releases it.
func Open(path string, mode OpenMode, log *loggingutil.Logger) (*Db, error) {
	if log == nil {
		log = loggingutil.Default()
	}
	db := &Db{Path: path, log: log.With("db", path)}

	if mode == ReadWrite {
		db.lock = flock.NewFlock(path + ".lock")
		locked, err := db.lock.TryLock()
		if err != nil {
			return nil, pkgdberr.Wrap(pkgdberr.StoreWriteFailed, err, "acquiring write lock on %q", path)
		}
		if !locked {
			return nil, pkgdberr.New(pkgdberr.StoreWriteFailed,
				"another process already holds the read-write handle for %q", path)
		}
		db.locked = true
	}

	conn, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		db.unlock()
		return nil, wrapSQLErr(err, path, "opening connection")
	}
	db.conn = conn

	if err := db.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// Conn exposes the underlying connection for read-only query packages
// (e.g. internal/pkgquery) that need to run arbitrary SELECTs against
// the views this package maintains.
func (db *Db) Conn() *sql.DB { return db.conn }

// Close releases the connection and, if held, the write lock.
func (db *Db) Close() error {
	var err error
	if db.conn != nil {
		err = db.conn.Close()
	}
	db.unlock()
	return err
}

func (db *Db) unlock() {
	if db.locked {
		_ = db.lock.Unlock()
		db.locked = false
	}
}

// migrate implements the version guard from §4.4: a tables-version
// mismatch forces a full delete-and-recreate (snapshotting the old file
// first); a views-only mismatch just drops and recreates the views.
func (db *Db) migrate() error {
	tablesVer, viewsVer, err := db.readVersions()
	if err != nil {
		return err
	}

	if tablesVer == "" {
		return db.createFresh()
	}

	if tablesVer != TablesVersion {
		if _, err := cachedir.Snapshot(db.Path); err != nil {
			return pkgdberr.Wrap(pkgdberr.SchemaIncompatible, err,
				"snapshotting %q before rebuild", db.Path)
		}
		if err := db.conn.Close(); err != nil {
			return wrapSQLErr(err, db.Path, "closing connection before rebuild")
		}
		if err := cachedir.RebuildEmpty(db.Path); err != nil {
			return pkgdberr.Wrap(pkgdberr.SchemaIncompatible, err, "rebuilding %q", db.Path)
		}
		if err := cachedir.RemoveSiblings(db.Path); err != nil {
			return pkgdberr.Wrap(pkgdberr.SchemaIncompatible, err, "cleaning siblings of %q", db.Path)
		}
		conn, err := sql.Open("sqlite3", db.Path+"?_foreign_keys=on")
		if err != nil {
			return wrapSQLErr(err, db.Path, "reopening after rebuild")
		}
		db.conn = conn
		return db.createFresh()
	}

	if viewsVer != ViewsVersion {
		if err := db.recreateViews(); err != nil {
			return err
		}
		if err := db.setVersion("pkgdb_views_schema", ViewsVersion); err != nil {
			return err
		}
	}

	tablesVer, viewsVer, err = db.readVersions()
	if err != nil {
		return err
	}
	if tablesVer != TablesVersion || viewsVer != ViewsVersion {
		return pkgdberr.New(pkgdberr.SchemaIncompatible,
			"%q has tables=%s views=%s after migration, want tables=%s views=%s",
			db.Path, tablesVer, viewsVer, TablesVersion, ViewsVersion)
	}
	return nil
}

func (db *Db) createFresh() error {
	tx, err := db.conn.Begin()
	if err != nil {
		return wrapSQLErr(err, db.Path, "BEGIN create")
	}
	defer tx.Rollback()

	for _, block := range allTableStatements {
		for _, stmt := range splitStatements(block) {
			if _, err := tx.Exec(stmt); err != nil {
				return wrapSQLErr(err, db.Path, stmt)
			}
		}
	}
	if err := execViews(tx); err != nil {
		return err
	}
	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO DbVersions ( name, version ) VALUES ( 'pkgdb', ? )`, AppVersion,
	); err != nil {
		return wrapSQLErr(err, db.Path, "recording pkgdb version")
	}
	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO DbVersions ( name, version ) VALUES ( 'pkgdb_tables_schema', ? )`, TablesVersion,
	); err != nil {
		return wrapSQLErr(err, db.Path, "recording tables schema version")
	}
	if _, err := tx.Exec(
		`INSERT OR REPLACE INTO DbVersions ( name, version ) VALUES ( 'pkgdb_views_schema', ? )`, ViewsVersion,
	); err != nil {
		return wrapSQLErr(err, db.Path, "recording views schema version")
	}

	if err := tx.Commit(); err != nil {
		return wrapSQLErr(err, db.Path, "COMMIT create")
	}
	return nil
}

func (db *Db) recreateViews() error {
	tx, err := db.conn.Begin()
	if err != nil {
		return wrapSQLErr(err, db.Path, "BEGIN recreate views")
	}
	defer tx.Rollback()

	for _, view := range []string{"v_PackagesSearch", "v_Semvers", "v_AttrPaths"} {
		if _, err := tx.Exec("DROP VIEW IF EXISTS " + view); err != nil {
			return wrapSQLErr(err, db.Path, "dropping view "+view)
		}
	}
	if err := execViews(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return wrapSQLErr(err, db.Path, "COMMIT recreate views")
	}
	return nil
}

// execViews runs sqlCreateViews statement-by-statement: database/sql
// drivers (including go-sqlite3) execute only the first statement of a
// multi-statement string via Exec.
func execViews(tx *sql.Tx) error {
	for _, stmt := range splitStatements(sqlCreateViews) {
		if _, err := tx.Exec(stmt); err != nil {
			return wrapSQLErr(err, "", stmt)
		}
	}
	return nil
}

func (db *Db) readVersions() (tables, views string, err error) {
	var exists int
	row := db.conn.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='DbVersions'`)
	if err := row.Scan(&exists); err != nil {
		return "", "", wrapSQLErr(err, db.Path, "checking for DbVersions table")
	}
	if exists == 0 {
		return "", "", nil
	}

	get := func(name string) string {
		var v string
		r := db.conn.QueryRow(`SELECT version FROM DbVersions WHERE name = ?`, name)
		if scanErr := r.Scan(&v); scanErr != nil {
			return ""
		}
		return v
	}
	return get("pkgdb_tables_schema"), get("pkgdb_views_schema"), nil
}

func (db *Db) setVersion(name, version string) error {
	if _, err := db.conn.Exec(
		`INSERT OR REPLACE INTO DbVersions ( name, version ) VALUES ( ?, ? )`, name, version,
	); err != nil {
		return wrapSQLErr(err, db.Path, "recording "+name+" version")
	}
	return nil
}

// wrapSQLErr wraps any SQLite error with the db path and the failing
// statement, per spec §4.4's closing sentence.
func wrapSQLErr(err error, path, stmt string) error {
	if err == nil {
		return nil
	}
	return pkgdberr.Wrap(pkgdberr.StoreWriteFailed, err,
		"sqlite error on %q: %s", path, fmt.Sprintf("%.120s", stmt))
}
