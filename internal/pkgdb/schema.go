package pkgdb

import "strings"

// Schema versions are tracked independently for tables and views (§4.4,
// §6): a tables-version mismatch forces a full rebuild, while a
// views-only mismatch only needs the views dropped and recreated.
const (
	TablesVersion = "1.0.0"
	ViewsVersion  = "1.0.0"
	AppVersion    = "0.1.0"
)

const sqlCreateVersionsTable = `
CREATE TABLE IF NOT EXISTS DbVersions (
  name     TEXT NOT NULL PRIMARY KEY
, version  TEXT NOT NULL
)`

const sqlCreateLockedFlakeTable = `
CREATE TABLE IF NOT EXISTS LockedFlake (
  fingerprint  TEXT  PRIMARY KEY
, string       TEXT  NOT NULL
, attrs        TEXT  NOT NULL
);

CREATE TRIGGER IF NOT EXISTS IT_LockedFlake AFTER INSERT ON LockedFlake
WHEN ( 1 < ( SELECT COUNT( fingerprint ) FROM LockedFlake ) )
BEGIN
  SELECT RAISE( ABORT, 'Cannot write conflicting LockedFlake info.' );
END;
`

const sqlCreateAttrSetsTable = `
CREATE TABLE IF NOT EXISTS AttrSets (
  id        INTEGER PRIMARY KEY
, parent    INTEGER NOT NULL DEFAULT 0
, attrName  VARCHAR(255) NOT NULL
, done      BOOLEAN NOT NULL DEFAULT 0
, CONSTRAINT UC_AttrSets UNIQUE ( parent, attrName )
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_AttrSets ON AttrSets ( parent, attrName );

CREATE TRIGGER IF NOT EXISTS IT_AttrSets AFTER INSERT ON AttrSets
WHEN
  ( NEW.id = NEW.parent )
  OR ( ( NEW.parent != 0 )
       AND ( ( SELECT COUNT( id ) FROM AttrSets WHERE ( NEW.parent = AttrSets.id ) ) < 1 ) )
BEGIN
  SELECT RAISE( ABORT, 'No such AttrSets.id for parent.' );
END;
`

const sqlCreatePackagesTables = `
CREATE TABLE IF NOT EXISTS Descriptions (
  id           INTEGER PRIMARY KEY
, description  TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS Packages (
  id                INTEGER PRIMARY KEY
, parentId          INTEGER NOT NULL
, attrName          VARCHAR(255) NOT NULL
, name              VARCHAR(255) NOT NULL
, pname             VARCHAR(255)
, version           VARCHAR(127)
, semver            VARCHAR(127)
, license           VARCHAR(255)
, outputs           TEXT NOT NULL
, outputsToInstall  TEXT
, broken            BOOLEAN
, unfree            BOOLEAN
, descriptionId     INTEGER
, FOREIGN KEY ( parentId ) REFERENCES AttrSets ( id )
, FOREIGN KEY ( descriptionId ) REFERENCES Descriptions ( id )
, CONSTRAINT UC_Packages UNIQUE ( parentId, attrName )
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_Packages ON Packages ( parentId, attrName );
`

// sqlCreateViews builds the three derived views (§4.4): v_AttrPaths
// reconstructs each AttrSet's full path via a recursive CTE, v_Semvers
// decomposes distinct semver strings for ORDER BY, and v_PackagesSearch
// joins everything PkgQuery needs. Unlike the original's FULL OUTER
// JOIN (unsupported by SQLite/go-sqlite3), descriptions and the semver
// decomposition are joined with LEFT JOIN since both are optional
// per-package (§3).
const sqlCreateViews = `
CREATE VIEW IF NOT EXISTS v_AttrPaths AS
WITH RECURSIVE Tree ( id, parent, attrName, subtree, system, stability, depth ) AS (
  SELECT id, parent, attrName, attrName, NULL, NULL, 1
  FROM AttrSets WHERE parent = 0
  UNION ALL
  SELECT O.id, O.parent, O.attrName, Parent.subtree
       , CASE WHEN Parent.system IS NULL THEN O.attrName ELSE Parent.system END
       , CASE
           WHEN Parent.subtree = 'catalog' AND Parent.system IS NOT NULL AND Parent.stability IS NULL
             THEN O.attrName
           ELSE Parent.stability
         END
       , Parent.depth + 1
  FROM AttrSets O JOIN Tree Parent ON Parent.id = O.parent
)
SELECT * FROM Tree;

CREATE VIEW IF NOT EXISTS v_Semvers AS
SELECT semver
     , CAST( substr( semver, 1, instr( semver, '.' ) - 1 ) AS INTEGER ) AS major
     , CAST( substr( rest1, 1, instr( rest1, '.' ) - 1 ) AS INTEGER ) AS minor
     , CAST( CASE WHEN instr( rest2, '-' ) = 0 THEN rest2
                  ELSE substr( rest2, 1, instr( rest2, '-' ) - 1 ) END AS INTEGER ) AS patch
     , CASE WHEN instr( rest2, '-' ) = 0 THEN NULL
            ELSE substr( rest2, instr( rest2, '-' ) + 1 ) END AS preTag
FROM (
  SELECT semver, rest1, substr( rest1, instr( rest1, '.' ) + 1 ) AS rest2
  FROM (
    SELECT semver, substr( semver, instr( semver, '.' ) + 1 ) AS rest1
    FROM ( SELECT DISTINCT semver FROM Packages WHERE semver IS NOT NULL )
  )
);

CREATE VIEW IF NOT EXISTS v_PackagesSearch AS
SELECT
  Packages.id                AS id
, v_AttrPaths.subtree         AS subtree
, v_AttrPaths.system          AS system
, v_AttrPaths.stability       AS stability
, Packages.attrName           AS attrName
, Packages.name               AS name
, Packages.pname              AS pname
, Packages.version            AS version
, Packages.semver             AS semver
, Packages.license            AS license
, Packages.outputs            AS outputs
, Packages.outputsToInstall   AS outputsToInstall
, Packages.broken             AS broken
, Packages.unfree             AS unfree
, Descriptions.description    AS description
, v_Semvers.major             AS major
, v_Semvers.minor             AS minor
, v_Semvers.patch             AS patch
, v_Semvers.preTag            AS preTag
FROM Packages
JOIN v_AttrPaths          ON Packages.parentId   = v_AttrPaths.id
LEFT JOIN Descriptions    ON Packages.descriptionId = Descriptions.id
LEFT JOIN v_Semvers       ON Packages.semver     = v_Semvers.semver;
`

var allTableStatements = []string{
	sqlCreateVersionsTable,
	sqlCreateLockedFlakeTable,
	sqlCreateAttrSetsTable,
	sqlCreatePackagesTables,
}

// splitStatements splits a semicolon-terminated block of DDL into
// individual statements, since database/sql drivers (including
// go-sqlite3) execute only the first statement of a multi-statement
// string passed to Exec.
func splitStatements(block string) []string {
	var out []string
	for _, stmt := range strings.Split(block, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
