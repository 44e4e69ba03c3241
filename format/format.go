// Package format converts between the core's JSON-tagged ManifestRaw/
// Lockfile structs and the TOML or YAML bytes a user actually edits on
// disk (§1's "TOML/YAML/JSON manifest lexing" is explicitly out of core
// scope; this package is the ambient adapter layer that carries it).
//
// Decoding goes through a generic map so the struct's `json` tags stay
// the single source of truth for on-disk key names ("env-base",
// "package-group", ...) across all three formats, the same way the
// underlying resolver already treats JSON as its canonical wire shape.
package format

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v3"

	"github.com/flox/pkgdb-sub000/internal/pkgdberr"
)

// Kind is an on-disk manifest/lockfile encoding.
type Kind int

const (
	_ Kind = iota
	TOML
	YAML
	JSON
)

func (k Kind) String() string {
	switch k {
	case TOML:
		return "toml"
	case YAML:
		return "yaml"
	case JSON:
		return "json"
	default:
		return "unknown"
	}
}

// KindFromPath infers a Kind from path's extension, defaulting to TOML
// for the canonical `manifest.toml`/`.flox` layout when the extension is
// absent or unrecognized.
func KindFromPath(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML
	case ".json":
		return JSON
	default:
		return TOML
	}
}

// decode unmarshals data (in the on-disk encoding kind) into v, routing
// everything through encoding/json so v's `json` tags govern every
// format identically.
func decode(kind Kind, data []byte, v interface{}) error {
	switch kind {
	case JSON:
		if err := json.Unmarshal(data, v); err != nil {
			return pkgdberr.Wrap(pkgdberr.InvalidManifest, err, "decoding JSON")
		}
		return nil
	case YAML:
		var generic interface{}
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return pkgdberr.Wrap(pkgdberr.InvalidManifest, err, "decoding YAML")
		}
		return viaJSON(generic, v)
	case TOML:
		tree, err := toml.LoadBytes(data)
		if err != nil {
			return pkgdberr.Wrap(pkgdberr.InvalidManifest, err, "decoding TOML")
		}
		return viaJSON(tree.ToMap(), v)
	default:
		return pkgdberr.New(pkgdberr.InvalidManifest, "unsupported manifest format %q", kind)
	}
}

// encode marshals v (already `json`-tagged) into the on-disk bytes for
// kind.
func encode(kind Kind, v interface{}) ([]byte, error) {
	switch kind {
	case JSON:
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, pkgdberr.Wrap(pkgdberr.InvalidManifest, err, "encoding JSON")
		}
		return b, nil
	case YAML:
		generic, err := toGenericMap(v)
		if err != nil {
			return nil, err
		}
		b, err := yaml.Marshal(generic)
		if err != nil {
			return nil, pkgdberr.Wrap(pkgdberr.InvalidManifest, err, "encoding YAML")
		}
		return b, nil
	case TOML:
		generic, err := toGenericMap(v)
		if err != nil {
			return nil, err
		}
		tree, err := toml.TreeFromMap(generic)
		if err != nil {
			return nil, pkgdberr.Wrap(pkgdberr.InvalidManifest, err, "building TOML tree")
		}
		return []byte(tree.String()), nil
	default:
		return nil, pkgdberr.New(pkgdberr.InvalidManifest, "unsupported manifest format %q", kind)
	}
}

// viaJSON round-trips generic (as produced by a YAML/TOML decoder)
// through encoding/json into v, so v's struct tags apply uniformly.
func viaJSON(generic interface{}, v interface{}) error {
	b, err := json.Marshal(generic)
	if err != nil {
		return pkgdberr.Wrap(pkgdberr.InvalidManifest, err, "re-marshaling decoded document")
	}
	if err := json.Unmarshal(b, v); err != nil {
		return pkgdberr.Wrap(pkgdberr.InvalidManifest, err, "mapping decoded document onto target shape")
	}
	return nil
}

// toGenericMap marshals v to JSON and back into a map, the mirror image
// of viaJSON, so a TOML/YAML encoder sees a plain map[string]interface{}.
func toGenericMap(v interface{}) (map[string]interface{}, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, pkgdberr.Wrap(pkgdberr.InvalidManifest, err, "marshaling to intermediate JSON")
	}
	var generic map[string]interface{}
	if err := json.Unmarshal(b, &generic); err != nil {
		return nil, pkgdberr.Wrap(pkgdberr.InvalidManifest, err, "unmarshaling intermediate JSON")
	}
	return generic, nil
}
