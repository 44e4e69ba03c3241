package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flox/pkgdb-sub000/internal/pkgdb"
	"github.com/flox/pkgdb-sub000/internal/pkgdberr"
	"github.com/flox/pkgdb-sub000/internal/pkgmodel"
	"github.com/flox/pkgdb-sub000/internal/pkgquery"
)

var (
	searchDbFlag          string
	searchNameFlag        string
	searchPnameFlag       string
	searchVersionFlag     string
	searchSemverFlag      string
	searchMatchFlag       string
	searchLicensesFlag    string
	searchSystemsFlag     string
	searchSubtreesFlag    string
	searchStabilitiesFlag string
	searchAllowBrokenFlag bool
	searchDenyUnfreeFlag  bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run a ranked package query against a PkgDb",
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchDbFlag, "db", "", "path to the PkgDb SQLite file (required)")
	searchCmd.Flags().StringVar(&searchNameFlag, "name", "", "exact derivation name")
	searchCmd.Flags().StringVar(&searchPnameFlag, "pname", "", "exact pname")
	searchCmd.Flags().StringVar(&searchVersionFlag, "version", "", "exact version")
	searchCmd.Flags().StringVar(&searchSemverFlag, "semver", "", "semver range")
	searchCmd.Flags().StringVar(&searchMatchFlag, "match", "", "free-text search term")
	searchCmd.Flags().StringVar(&searchLicensesFlag, "licenses", "", "comma-separated allowed licenses")
	searchCmd.Flags().StringVar(&searchSystemsFlag, "systems", "", "comma-separated systems, e.g. x86_64-linux,aarch64-darwin")
	searchCmd.Flags().StringVar(&searchSubtreesFlag, "subtrees", "", "comma-separated subtrees: packages,legacyPackages,catalog")
	searchCmd.Flags().StringVar(&searchStabilitiesFlag, "stabilities", "", "comma-separated catalog stabilities")
	searchCmd.Flags().BoolVar(&searchAllowBrokenFlag, "allow-broken", false, "include broken packages")
	searchCmd.Flags().BoolVar(&searchDenyUnfreeFlag, "deny-unfree", false, "exclude unfree packages")
	_ = searchCmd.MarkFlagRequired("db")
}

func runSearch(cmd *cobra.Command, args []string) error {
	subtrees, err := parseSubtrees(searchSubtreesFlag)
	if err != nil {
		return err
	}

	qargs := &pkgquery.Args{
		Name:        searchNameFlag,
		Pname:       searchPnameFlag,
		Version:     searchVersionFlag,
		Semver:      searchSemverFlag,
		Match:       searchMatchFlag,
		Licenses:    splitNonEmpty(searchLicensesFlag),
		AllowBroken: searchAllowBrokenFlag,
		DenyUnfree:  searchDenyUnfreeFlag,
		Subtrees:    subtrees,
		Systems:     splitNonEmpty(searchSystemsFlag),
		Stabilities: splitNonEmpty(searchStabilitiesFlag),
	}

	log := rootLogger()
	db, err := pkgdb.Open(searchDbFlag, pkgdb.ReadOnly, log)
	if err != nil {
		return err
	}
	defer db.Close()

	ids, err := pkgquery.Execute(db.Conn(), qargs)
	if err != nil {
		return err
	}

	rows := make([]map[string]interface{}, 0, len(ids))
	for _, id := range ids {
		row, err := db.GetPackage(id)
		if err != nil {
			return err
		}
		path, err := db.GetPackagePath(id)
		if err != nil {
			return err
		}
		rows = append(rows, map[string]interface{}{
			"id":       row.ID,
			"attrPath": path,
			"name":     row.Name,
			"pname":    nullStringOr(row.Pname, ""),
			"version":  nullStringOr(row.Version, ""),
		})
	}

	b, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return nil
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func parseSubtrees(s string) ([]pkgmodel.Subtree, error) {
	names := splitNonEmpty(s)
	if len(names) == 0 {
		return nil, nil
	}
	subtrees := make([]pkgmodel.Subtree, len(names))
	for i, name := range names {
		subtree, ok := pkgmodel.ParseSubtree(name)
		if !ok {
			return nil, pkgdberr.New(pkgdberr.InvalidQueryArgs, "unrecognized subtree %q", name)
		}
		subtrees[i] = subtree
	}
	return subtrees, nil
}
