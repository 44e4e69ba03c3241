package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flox/pkgdb-sub000/internal/loggingutil"
	"github.com/flox/pkgdb-sub000/internal/pkgdberr"
)

var verboseFlag bool

var rootCmd = &cobra.Command{
	Use:   "pkgdb",
	Short: "Package-metadata indexer and query engine",
	Long: `pkgdb scrapes flake package trees into per-fingerprint SQLite
databases and answers ranked package queries, both for interactive
search and for locking an environment manifest.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(scrapeCmd, getCmd, searchCmd, lockCmd)
}

func rootLogger() *loggingutil.Logger {
	log := loggingutil.Default()
	log.SetDebug(verboseFlag)
	return log
}

// Execute runs the CLI and returns the process exit code: 0 on success,
// the matching §7 error kind otherwise mapped to a small positive code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "pkgdb:", err)
		return exitCodeFor(err)
	}
	return 0
}

// exitCodeFor maps a pkgdberr.Kind onto a process exit code; unrecognized
// errors (flag parsing, I/O) get the generic code 1.
func exitCodeFor(err error) int {
	var pdbErr *pkgdberr.Error
	if e, ok := err.(*pkgdberr.Error); ok {
		pdbErr = e
	}
	if pdbErr == nil {
		return 1
	}
	switch pdbErr.Kind {
	case pkgdberr.InvalidManifest, pkgdberr.InvalidLockfile, pkgdberr.InvalidQueryArgs:
		return 2
	case pkgdberr.ResolutionFailure:
		return 3
	case pkgdberr.NoSuchEntity:
		return 4
	default:
		return 1
	}
}
