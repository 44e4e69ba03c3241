package format

import "github.com/flox/pkgdb-sub000/internal/manifest"

// DecodeManifest parses data (TOML, YAML, or JSON, per kind) into a
// ManifestRaw, before any §4.8 validation or field remapping.
func DecodeManifest(kind Kind, data []byte) (*manifest.ManifestRaw, error) {
	raw := &manifest.ManifestRaw{}
	if err := decode(kind, data, raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// EncodeManifest serializes raw into the on-disk bytes for kind.
func EncodeManifest(kind Kind, raw *manifest.ManifestRaw) ([]byte, error) {
	return encode(kind, raw)
}
