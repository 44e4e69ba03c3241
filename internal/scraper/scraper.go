// Package scraper implements the breadth-first, transactional walk that
// populates a PkgDb subtree from an AttrCursor (§4.5).
package scraper

import (
	"github.com/flox/pkgdb-sub000/internal/cursor"
	"github.com/flox/pkgdb-sub000/internal/loggingutil"
	"github.com/flox/pkgdb-sub000/internal/pkgdb"
	"github.com/flox/pkgdb-sub000/internal/pkgdberr"
	"github.com/flox/pkgdb-sub000/internal/pkgmodel"
)

// recurseSentinel is the attribute flox's eval convention uses to mark an
// attrset as a candidate subtree to descend into.
const recurseSentinel = "recurseForDerivations"

type workItem struct {
	path     []string
	cursor   cursor.Cursor
	parentID int64
}

// Scrape walks root (assumed positioned at the repository root) down to
// prefix, then indexes everything under prefix into db. It is a no-op if
// prefix is already marked done.
func Scrape(db *pkgdb.Db, root cursor.Cursor, prefix []string, log *loggingutil.Logger) error {
	if log == nil {
		log = loggingutil.Default()
	}
	log = log.With("prefix", joinPath(prefix))

	done, err := db.CompletedAttrSet(prefix)
	if err != nil {
		return err
	}
	if done {
		log.Debugf("prefix already scraped, skipping")
		return nil
	}

	start, err := navigate(root, prefix)
	if err != nil {
		return err
	}
	if start == nil {
		log.Debugf("prefix does not exist in evaluator, skipping")
		return nil
	}

	subtree, ok := pkgmodel.ParseSubtree(prefix[0])
	if !ok {
		return pkgdberr.New(pkgdberr.EvalError, "invalid subtree %q", prefix[0])
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	prefixID, err := tx.AddOrGetAttrSetIDByPath(prefix)
	if err != nil {
		return err
	}

	queue := []workItem{{path: prefix, cursor: start, parentID: prefixID}}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		childErr := item.cursor.Children(func(name string, child cursor.Cursor) error {
			if name == recurseSentinel {
				return nil
			}
			childPath := appendPath(item.path, name)

			if child == nil {
				return evalErrorFor(subtree, name, item.path, log)
			}

			isDrv, err := child.IsDerivation()
			if err != nil {
				return evalErrorFor(subtree, name, item.path, log)
			}

			if isDrv {
				pkg, err := pkgmodel.Extract(child, childPath, pkgmodel.ExtractOptions{CheckDerivation: false})
				if err != nil {
					return evalErrorFor(subtree, name, item.path, log)
				}
				if _, err := tx.AddPackage(item.parentID, pkg, pkgdb.AddPackageOptions{Replace: true}); err != nil {
					return err
				}
				return nil
			}

			recurse, err := child.GetBool(recurseSentinel)
			if err != nil || !recurse {
				return nil
			}

			childID, err := tx.AddOrGetAttrSetID(item.parentID, name)
			if err != nil {
				return err
			}
			queue = append(queue, workItem{path: childPath, cursor: child, parentID: childID})
			return nil
		})
		if childErr != nil {
			return childErr
		}
	}

	if err := tx.SetPrefixDone(prefixID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	log.Debugf("scrape complete")
	return nil
}

// evalErrorFor implements §4.5's per-subtree tolerance: packages subtree
// errors are fatal (every entry there must be a derivation); the other
// two subtrees tolerate evaluation-hostile attributes by logging and
// skipping.
func evalErrorFor(subtree pkgmodel.Subtree, name string, parentPath []string, log *loggingutil.Logger) error {
	if subtree == pkgmodel.Packages {
		return pkgdberr.New(pkgdberr.EvalError,
			"failed to evaluate %q under %v", name, parentPath)
	}
	log.Debugf("ignoring evaluation failure on %q under %v", name, parentPath)
	return nil
}

// navigate walks root down through each component of path, returning nil
// (not an error) if any component is absent, per §4.5 step 2.
func navigate(root cursor.Cursor, path []string) (cursor.Cursor, error) {
	c := root
	for _, component := range path {
		next, err := c.MaybeChild(component)
		if err != nil {
			return nil, pkgdberr.Wrap(pkgdberr.EvalError, err, "navigating to %q", component)
		}
		if next == nil {
			return nil, nil
		}
		c = next
	}
	return c, nil
}

func appendPath(path []string, name string) []string {
	cp := make([]string, len(path)+1)
	copy(cp, path)
	cp[len(path)] = name
	return cp
}

func joinPath(path []string) string {
	out := ""
	for i, p := range path {
		if i > 0 {
			out += "."
		}
		out += p
	}
	return out
}
