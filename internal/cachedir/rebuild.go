package cachedir

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	shutil "github.com/termie/go-shutil"
)

// RebuildEmpty replaces the file at path with a fresh, empty file,
// atomically: it builds the replacement alongside path and renames it
// into place, so a crash mid-rebuild never leaves a half-written database
// visible at the canonical path (§4.4 "delete the file and re-create
// empty" on a tables-version mismatch).
func RebuildEmpty(path string) error {
	tmp := path + ".rebuild-tmp"

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrapf(err, "cachedir: creating replacement for %q", path)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "cachedir: closing replacement for %q", path)
	}

	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, "cachedir: installing replacement for %q", path)
	}
	return nil
}

// Snapshot copies the PkgDb file at path into a sibling "<name>.bak" file,
// used before a schema-incompatible rebuild so an operator can recover the
// previous contents if the rebuild was unwanted.
func Snapshot(path string) (string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", nil
	}
	dst := path + ".bak"
	if err := shutil.CopyFile(path, dst, true); err != nil {
		return "", errors.Wrapf(err, "cachedir: snapshotting %q", path)
	}
	return dst, nil
}

// RemoveSiblings deletes any WAL/SHM journal files left beside path,
// confirming (per §4.4) that a rebuild leaves no stray journal state.
func RemoveSiblings(path string) error {
	for _, suffix := range []string{"-wal", "-shm", "-journal"} {
		sib := path + suffix
		if err := os.Remove(sib); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "cachedir: removing %q", filepath.Base(sib))
		}
	}
	return nil
}
