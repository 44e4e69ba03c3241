package pkgquery

import (
	"database/sql"
	"sort"

	"github.com/flox/pkgdb-sub000/internal/pkgdberr"
	"github.com/flox/pkgdb-sub000/internal/semverutil"
)

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	Query(query string, args ...interface{}) (*sql.Rows, error)
}

type resultRow struct {
	id                                        int64
	version, semver                           sql.NullString
	matchStrength, subtreesRank, systemsRank  int64
	stabilitiesRank                           sql.NullInt64
	broken, unfree                            sql.NullBool
}

// Execute compiles args and runs the resulting query against db,
// returning matching Packages row ids in §4.7's order. A `semver` filter
// is applied as a post-SQL step via semverutil.Sat, preserving order.
func Execute(db queryer, args *Args) ([]int64, error) {
	query, binds, err := build(args)
	if err != nil {
		return nil, err
	}

	namedArgs := make([]interface{}, 0, len(binds))
	for name, v := range binds {
		namedArgs = append(namedArgs, sql.Named(name[1:], v))
	}

	rows, err := db.Query(query, namedArgs...)
	if err != nil {
		return nil, pkgdberr.Wrap(pkgdberr.StoreWriteFailed, err, "executing package query: %s", query)
	}
	defer rows.Close()

	var results []resultRow
	for rows.Next() {
		var r resultRow
		if err := rows.Scan(&r.id, &r.version, &r.semver, &r.matchStrength,
			&r.subtreesRank, &r.systemsRank, &r.stabilitiesRank, &r.broken, &r.unfree); err != nil {
			return nil, pkgdberr.Wrap(pkgdberr.StoreWriteFailed, err, "scanning package query row")
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgdberr.Wrap(pkgdberr.StoreWriteFailed, err, "iterating package query rows")
	}

	// SQL already ordered by matchStrength/subtreesRank/systemsRank/
	// stabilitiesRank/pname/major/minor/patch/preTag. A stable sort
	// applies the remaining tiebreakers (versionDate, lexicographic
	// version, broken, unfree) without disturbing ties resolved above.
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		di, oki := semverutil.DateSortKey(nullString(a.version))
		dj, okj := semverutil.DateSortKey(nullString(b.version))
		if oki != okj {
			return oki // a date-classified version outranks a non-date one
		}
		if oki && okj && di != dj {
			return di > dj // DESC
		}
		if nullString(a.version) != nullString(b.version) {
			return nullString(a.version) < nullString(b.version) // ASC, lexicographic fallback
		}
		ab, bb := boolRank(a.broken), boolRank(b.broken)
		if ab != bb {
			return ab < bb // false (0) before true (1)
		}
		au, bu := boolRank(a.unfree), boolRank(b.unfree)
		return au < bu
	})

	ids := make([]int64, len(results))
	for i, r := range results {
		ids[i] = r.id
	}

	if args.Semver == "" {
		return ids, nil
	}

	return filterBySemver(results, args.Semver), nil
}

// filterBySemver applies semverutil.Sat over the already-ordered result
// set, preserving order (§4.7's execute() post-processing step).
func filterBySemver(results []resultRow, rangeStr string) []int64 {
	versions := make([]string, 0, len(results))
	seen := map[string]bool{}
	for _, r := range results {
		v := nullString(r.semver)
		if v != "" && !seen[v] {
			versions = append(versions, v)
			seen[v] = true
		}
	}
	satisfying := make(map[string]bool, len(versions))
	for _, v := range semverutil.Sat(rangeStr, versions) {
		satisfying[v] = true
	}

	var ids []int64
	for _, r := range results {
		if satisfying[nullString(r.semver)] {
			ids = append(ids, r.id)
		}
	}
	return ids
}

func nullString(s sql.NullString) string {
	if !s.Valid {
		return ""
	}
	return s.String
}

func boolRank(b sql.NullBool) int {
	if b.Valid && b.Bool {
		return 1
	}
	return 0
}
