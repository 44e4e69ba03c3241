// Package cachedir resolves and maintains the per-user cache directory
// that holds one SQLite file per flake fingerprint (§4.4, §6), mirroring
// the fallback-chain shape of golang-dep's context.go (NewContext
// resolving GOPATH from environment with a graceful fallback) but for
// PKGDB_CACHEDIR / XDG_CACHE_HOME / HOME instead.
package cachedir

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"
)

// SchemaMajor is the version number in the cache directory's name
// (pkgdb-v<SchemaMajor>), namespacing it so files of an incompatible
// layout never collide with a previous one's on disk. It is set here by
// hand and is not derived from pkgdb.TablesVersion.
const SchemaMajor = 0

// Root resolves the cache directory root, in priority order:
// $PKGDB_CACHEDIR, else $XDG_CACHE_HOME/flox/pkgdb-v<major>, else
// $HOME/.cache/flox/pkgdb-v<major>.
func Root() (string, error) {
	if dir := os.Getenv("PKGDB_CACHEDIR"); dir != "" {
		return dir, nil
	}

	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home := os.Getenv("HOME")
		if home == "" {
			return "", errors.New("cachedir: neither XDG_CACHE_HOME nor HOME is set")
		}
		base = filepath.Join(home, ".cache")
	}
	return filepath.Join(base, "flox", "pkgdb-v"+strconv.Itoa(SchemaMajor)), nil
}

// PathFor returns the canonical on-disk path for fingerprint's database
// within root, creating root if it does not yet exist.
func PathFor(root, fingerprint string) (string, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", errors.Wrapf(err, "cachedir: creating cache root %q", root)
	}
	return filepath.Join(root, fingerprint+".sqlite"), nil
}

// List enumerates the fingerprints of every PkgDb file already present
// under root (files ending in ".sqlite"; WAL/SHM siblings are not
// reported). The schema-mismatch rebuild path does not call it; that path
// clears journal siblings with RemoveSiblings.
func List(root string) ([]string, error) {
	var fingerprints []string
	err := godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				return nil
			}
			name := filepath.Base(path)
			ext := filepath.Ext(name)
			if ext != ".sqlite" {
				return nil
			}
			fingerprints = append(fingerprints, name[:len(name)-len(ext)])
			return nil
		},
		Unsorted:            false,
		FollowSymbolicLinks: false,
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "cachedir: listing %q", root)
	}
	return fingerprints, nil
}
