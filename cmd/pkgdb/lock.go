package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flox/pkgdb-sub000/internal/cachedir"
	"github.com/flox/pkgdb-sub000/internal/cursorjson"
	"github.com/flox/pkgdb-sub000/internal/manifest"
	"github.com/flox/pkgdb-sub000/internal/pkgdberr"
	"github.com/flox/pkgdb-sub000/internal/registry"
	"github.com/flox/pkgdb-sub000/internal/resolver"

	"github.com/flox/pkgdb-sub000/format"
)

var (
	lockManifestFlag    string
	lockGlobalFlag      string
	lockOldFlag         string
	lockFixturesDirFlag string
	lockSystemsFlag     string
	lockOutFlag         string
	lockUpgradeFlag     bool
	lockUpgradePkgFlag  []string
)

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Resolve a manifest into a lockfile",
	Long: `Lock merges an optional global manifest, an optional prior
lockfile, and a project manifest, then resolves each install group
against the registry's inputs in priority order (§4.9).

Each registry input is scraped, for the requested systems, from a JSON
attribute-tree fixture named <fixtures-dir>/<input-name>.json — see
"scrape --help" for the fixture's shape.`,
	RunE: runLock,
}

func init() {
	lockCmd.Flags().StringVar(&lockManifestFlag, "manifest", "", "path to the project manifest (.toml/.yaml/.json, required)")
	lockCmd.Flags().StringVar(&lockGlobalFlag, "global-manifest", "", "path to an optional global manifest")
	lockCmd.Flags().StringVar(&lockOldFlag, "old-lockfile", "", "path to a prior lockfile.json, for group reuse")
	lockCmd.Flags().StringVar(&lockFixturesDirFlag, "fixtures-dir", "", "directory of <input-name>.json attribute-tree fixtures (required)")
	lockCmd.Flags().StringVar(&lockSystemsFlag, "systems", "", "comma-separated systems; defaults to the manifest's options.systems")
	lockCmd.Flags().StringVar(&lockOutFlag, "out", "", "output path for the resulting lockfile.json; defaults to stdout")
	lockCmd.Flags().BoolVar(&lockUpgradeFlag, "upgrade", false, "force every group to re-resolve, ignoring --old-lockfile reuse")
	lockCmd.Flags().StringSliceVar(&lockUpgradePkgFlag, "upgrade-package", nil, "force this install-id's group to re-resolve (repeatable)")
	_ = lockCmd.MarkFlagRequired("manifest")
	_ = lockCmd.MarkFlagRequired("fixtures-dir")
}

func runLock(cmd *cobra.Command, args []string) error {
	project, err := loadManifestRaw(lockManifestFlag)
	if err != nil {
		return err
	}
	projectManifest, err := manifest.New(project)
	if err != nil {
		return err
	}

	var globalManifest *manifest.Manifest
	if lockGlobalFlag != "" {
		globalRaw, err := loadManifestRaw(lockGlobalFlag)
		if err != nil {
			return err
		}
		globalManifest, err = manifest.New(globalRaw)
		if err != nil {
			return err
		}
	}

	var old *resolver.Lockfile
	if lockOldFlag != "" {
		data, err := os.ReadFile(lockOldFlag)
		if err != nil {
			return fmt.Errorf("reading %s: %w", lockOldFlag, err)
		}
		old, err = format.DecodeLockfile(data)
		if err != nil {
			return err
		}
	}

	systems := splitNonEmpty(lockSystemsFlag)
	if len(systems) == 0 {
		systems = projectManifest.Options.Systems
	}
	if len(systems) == 0 {
		return pkgdberr.New(pkgdberr.InvalidManifest, "no systems given: pass --systems or set options.systems")
	}

	reg := projectManifest.Registry
	if reg == nil {
		reg = &registry.Registry{}
	}
	inputs, err := scrapeInputsForLock(reg, systems)
	if err != nil {
		return err
	}

	env := &resolver.Environment{
		Global:     globalManifest,
		Project:    projectManifest,
		ProjectRaw: project,
		Old:        old,
		Upgrades:   resolver.Upgrades{All: lockUpgradeFlag, InstallIDs: lockUpgradePkgFlag},
		Systems:    systems,
		Inputs:     inputs,
		Locker:     offlineLocker{},
	}

	lockfile, err := env.CreateLockfile()
	if err != nil {
		return err
	}

	out, err := format.EncodeLockfile(lockfile)
	if err != nil {
		return err
	}
	if lockOutFlag == "" {
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	}
	return os.WriteFile(lockOutFlag, out, 0o644)
}

func loadManifestRaw(path string) (*manifest.ManifestRaw, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return format.DecodeManifest(format.KindFromPath(path), data)
}

// scrapeInputsForLock opens (creating if necessary) and scrapes, for
// systems, one PkgDbInput per registry input, reading each input's
// attribute tree from <fixtures-dir>/<name>.json.
func scrapeInputsForLock(reg *registry.Registry, systems []string) (map[string]*registry.PkgDbInput, error) {
	root, err := cachedir.Root()
	if err != nil {
		return nil, err
	}

	inputs := make(map[string]*registry.PkgDbInput, len(reg.Inputs))
	for _, name := range reg.OrderedNames() {
		in := reg.Inputs[name]

		fixturePath := filepath.Join(lockFixturesDirFlag, name+".json")
		data, err := os.ReadFile(fixturePath)
		if err != nil {
			return nil, fmt.Errorf("reading fixture for input %q: %w", name, err)
		}
		cur, err := cursorjson.Load(data)
		if err != nil {
			return nil, fmt.Errorf("loading fixture for input %q: %w", name, err)
		}

		dbPath, err := cachedir.PathFor(root, strings.ReplaceAll(name, "/", "_"))
		if err != nil {
			return nil, err
		}

		log := rootLogger().With("input", name)
		pkgIn := registry.NewPkgDbInput(name, dbPath, cur, in.InputPreferences, log)
		if err := pkgIn.ScrapeSystems(systems); err != nil {
			return nil, err
		}
		inputs[name] = pkgIn
	}
	return inputs, nil
}
