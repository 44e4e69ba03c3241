// Command pkgdb is a thin CLI wrapper around the core library: it parses
// flags, wires a database/registry/environment, and delegates every
// actual operation to internal/pkgdb, internal/registry, internal/
// pkgquery, and internal/resolver.
package main

import "os"

func main() {
	os.Exit(Execute())
}
