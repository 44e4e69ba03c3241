package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flox/pkgdb-sub000/internal/cursorjson"
	"github.com/flox/pkgdb-sub000/internal/pkgdb"
	"github.com/flox/pkgdb-sub000/internal/scraper"
)

var (
	scrapeInputFlag  string
	scrapeDbFlag     string
	scrapePrefixFlag string
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape a flake's package tree into a PkgDb",
	Long: `Scrape evaluates the attribute tree rooted at --prefix and
inserts every derivation found into the SQLite database at --db,
creating it if necessary.

Since this core library never drives a live Nix evaluator itself
(§4.2's attribute-cursor contract is implemented by the host), --input
names a JSON document shaped like the tree a real evaluator would
expose: objects are attrsets, and an object carrying
"type": "derivation" is a package.`,
	RunE: runScrape,
}

func init() {
	scrapeCmd.Flags().StringVar(&scrapeInputFlag, "input", "", "path to the JSON attribute-tree fixture to scrape (required)")
	scrapeCmd.Flags().StringVar(&scrapeDbFlag, "db", "", "path to the PkgDb SQLite file (required)")
	scrapeCmd.Flags().StringVar(&scrapePrefixFlag, "prefix", "", "dot-separated attribute path to scrape, e.g. packages.x86_64-linux (required)")
	_ = scrapeCmd.MarkFlagRequired("input")
	_ = scrapeCmd.MarkFlagRequired("db")
	_ = scrapeCmd.MarkFlagRequired("prefix")
}

func runScrape(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(scrapeInputFlag)
	if err != nil {
		return fmt.Errorf("reading %s: %w", scrapeInputFlag, err)
	}
	root, err := cursorjson.Load(data)
	if err != nil {
		return err
	}

	log := rootLogger()
	db, err := pkgdb.Open(scrapeDbFlag, pkgdb.ReadWrite, log)
	if err != nil {
		return err
	}
	defer db.Close()

	prefix := strings.Split(scrapePrefixFlag, ".")

	if err := scraper.Scrape(db, root, prefix, log); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "scraped %s into %s\n", scrapePrefixFlag, scrapeDbFlag)
	return nil
}
