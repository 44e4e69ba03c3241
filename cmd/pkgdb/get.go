package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flox/pkgdb-sub000/internal/pkgdb"
	"github.com/flox/pkgdb-sub000/internal/pkgdberr"
)

var (
	getDbFlag   string
	getIDFlag   int64
	getPathFlag string
)

var getCmd = &cobra.Command{
	Use:   "get",
	Short: "Look up a single package row by id or attribute path",
	RunE:  runGet,
}

func init() {
	getCmd.Flags().StringVar(&getDbFlag, "db", "", "path to the PkgDb SQLite file (required)")
	getCmd.Flags().Int64Var(&getIDFlag, "id", 0, "package row id")
	getCmd.Flags().StringVar(&getPathFlag, "path", "", "dot-separated absolute attribute path, e.g. packages.x86_64-linux.hello")
	_ = getCmd.MarkFlagRequired("db")
}

func runGet(cmd *cobra.Command, args []string) error {
	log := rootLogger()
	db, err := pkgdb.Open(getDbFlag, pkgdb.ReadOnly, log)
	if err != nil {
		return err
	}
	defer db.Close()

	id := getIDFlag
	if getPathFlag != "" {
		id, err = resolvePackageID(db, strings.Split(getPathFlag, "."))
		if err != nil {
			return err
		}
	}
	if id == 0 {
		return pkgdberr.New(pkgdberr.NoSuchEntity, "one of --id or --path is required")
	}

	row, err := db.GetPackage(id)
	if err != nil {
		return err
	}
	path, err := db.GetPackagePath(id)
	if err != nil {
		return err
	}

	out := map[string]interface{}{
		"id":       row.ID,
		"attrPath": path,
		"name":     row.Name,
		"pname":    nullStringOr(row.Pname, ""),
		"version":  nullStringOr(row.Version, ""),
		"semver":   nullStringOr(row.Semver, ""),
		"license":  nullStringOr(row.License, ""),
		"outputs":  row.Outputs,
		"broken":   nullBoolOr(row.Broken, false),
		"unfree":   nullBoolOr(row.Unfree, false),
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return nil
}

// resolvePackageID walks path's attrset ancestry to the package row at
// its leaf, the way the scraper itself descends a cursor.
func resolvePackageID(db *pkgdb.Db, path []string) (int64, error) {
	if len(path) == 0 {
		return 0, pkgdberr.New(pkgdberr.NoSuchEntity, "--path must not be empty")
	}
	parentID, err := db.GetAttrSetID(path[:len(path)-1])
	if err != nil {
		return 0, err
	}
	return db.GetPackageID(parentID, path[len(path)-1])
}

func nullStringOr(v sql.NullString, fallback string) string {
	if !v.Valid {
		return fallback
	}
	return v.String
}

func nullBoolOr(v sql.NullBool, fallback bool) bool {
	if !v.Valid {
		return fallback
	}
	return v.Bool
}
