package registry

import (
	"strings"
	"sync"

	"github.com/armon/go-radix"

	"github.com/flox/pkgdb-sub000/internal/cachedir"
	"github.com/flox/pkgdb-sub000/internal/cursor"
	"github.com/flox/pkgdb-sub000/internal/loggingutil"
	"github.com/flox/pkgdb-sub000/internal/pkgdb"
	"github.com/flox/pkgdb-sub000/internal/pkgdberr"
	"github.com/flox/pkgdb-sub000/internal/pkgmodel"
	"github.com/flox/pkgdb-sub000/internal/scraper"
)

// ValidStabilities is the closed set of catalog stabilities (§9 open
// question: the source hardcodes exactly these three; do not guess).
var ValidStabilities = map[string]bool{"stable": true, "staging": true, "unstable": true}

// PkgDbInput wraps one flake input's evaluator root plus its PkgDb
// (§4.6): a read-only handle opened once and reused, and a refcounted
// scoped read-write handle opened on first write and closed when the
// last scrape finishes.
type PkgDbInput struct {
	Name   string
	Prefs  InputPreferences
	Root   cursor.Cursor
	DbPath string

	log *loggingutil.Logger

	mu     sync.Mutex
	ro     *pkgdb.Db
	rw     *pkgdb.Db
	rwRefs int

	// attrSetCache short-circuits repeated "is this prefix already
	// scraped" lookups within a single process run, keyed by the dotted
	// attribute path. A radix tree is used (rather than a plain map)
	// because attribute paths share long common prefixes
	// (`packages.x86_64-linux.*`), so a whole subtree's cache entries can
	// be invalidated in one DeletePrefix call after a rebuild.
	attrSetCache *radix.Tree
}

// NewPkgDbInput constructs a PkgDbInput for name, rooted at root with
// its PkgDb stored at dbPath.
func NewPkgDbInput(name, dbPath string, root cursor.Cursor, prefs InputPreferences, log *loggingutil.Logger) *PkgDbInput {
	if log == nil {
		log = loggingutil.Default()
	}
	return &PkgDbInput{
		Name:         name,
		Prefs:        prefs,
		Root:         root,
		DbPath:       dbPath,
		log:          log.With("input", name),
		attrSetCache: radix.New(),
	}
}

// GetDbReadOnly opens the read-only handle once and reuses it thereafter.
func (in *PkgDbInput) GetDbReadOnly() (*pkgdb.Db, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.ro != nil {
		return in.ro, nil
	}
	db, err := pkgdb.Open(in.DbPath, pkgdb.ReadOnly, in.log)
	if err != nil {
		return nil, err
	}
	in.ro = db
	return db, nil
}

// GetDbReadWrite is a scoped acquisition (§4.6): the first caller opens
// the handle; subsequent calls reuse it and bump a refcount.
// CloseDbReadWrite must be called once per GetDbReadWrite call.
func (in *PkgDbInput) GetDbReadWrite() (*pkgdb.Db, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.rw == nil {
		db, err := pkgdb.Open(in.DbPath, pkgdb.ReadWrite, in.log)
		if err != nil {
			return nil, err
		}
		in.rw = db
	}
	in.rwRefs++
	return in.rw, nil
}

// CloseDbReadWrite releases one reference to the read-write handle,
// closing the underlying connection once the last reference is released.
func (in *PkgDbInput) CloseDbReadWrite() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.rw == nil {
		return nil
	}
	in.rwRefs--
	if in.rwRefs > 0 {
		return nil
	}
	db := in.rw
	in.rw = nil
	in.rwRefs = 0
	return db.Close()
}

// ScrapePrefix delegates to the scraper, short-circuiting via the
// attr-set cache before ever opening a write handle.
func (in *PkgDbInput) ScrapePrefix(prefix []string) error {
	key := strings.Join(prefix, ".")
	if _, known := in.attrSetCache.Get(key); known {
		return nil
	}

	ro, err := in.GetDbReadOnly()
	if err != nil {
		return err
	}
	done, err := ro.CompletedAttrSet(prefix)
	if err != nil {
		return err
	}
	if done {
		in.attrSetCache.Insert(key, true)
		return nil
	}

	rw, err := in.GetDbReadWrite()
	if err != nil {
		return err
	}
	defer in.CloseDbReadWrite()

	if err := scraper.Scrape(rw, in.Root, prefix, in.log); err != nil {
		return err
	}
	in.attrSetCache.Insert(key, true)
	return nil
}

// ScrapeSystems scrapes every prefix implied by `(subtrees × systems ×
// stabilities)` for this input, applying the §4.6 default subtree order
// {packages, legacyPackages, catalog} and default stability {stable}
// when the input leaves them unset.
func (in *PkgDbInput) ScrapeSystems(systems []string) error {
	subtrees := in.Prefs.Subtrees
	if subtrees == nil {
		subtrees = []pkgmodel.Subtree{pkgmodel.Packages, pkgmodel.LegacyPackages, pkgmodel.Catalog}
	}
	stabilities := in.Prefs.Stabilities
	if stabilities == nil {
		stabilities = []string{"stable"}
	}

	for _, subtree := range subtrees {
		for _, system := range systems {
			prefix := []string{subtree.String(), system}
			if subtree != pkgmodel.Catalog {
				if err := in.ScrapePrefix(prefix); err != nil {
					return err
				}
				continue
			}
			for _, stability := range stabilities {
				if !ValidStabilities[stability] {
					return pkgdberr.NewQueryArgsError(pkgdberr.InvalidStability, "invalid stability %q", stability)
				}
				if err := in.ScrapePrefix(append(append([]string{}, prefix...), stability)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// InvalidateCache forgets every cached "already scraped" entry whose
// path starts with prefix, used after a schema rebuild replaces the
// underlying PkgDb file out from under a long-lived PkgDbInput.
func (in *PkgDbInput) InvalidateCache(prefix []string) {
	in.attrSetCache.DeletePrefix(strings.Join(prefix, "."))
}

// DefaultDbPath computes the canonical cache path for fingerprint under
// root, creating root if necessary.
func DefaultDbPath(root, fingerprint string) (string, error) {
	return cachedir.PathFor(root, fingerprint)
}
