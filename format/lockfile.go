package format

import "github.com/flox/pkgdb-sub000/internal/resolver"

// DecodeLockfile parses data as JSON into a Lockfile. Lockfiles are
// machine-generated and never hand-edited, so unlike manifests they
// have exactly one on-disk encoding.
func DecodeLockfile(data []byte) (*resolver.Lockfile, error) {
	lf := &resolver.Lockfile{}
	if err := decode(JSON, data, lf); err != nil {
		return nil, err
	}
	return lf, nil
}

// EncodeLockfile serializes lf as indented JSON.
func EncodeLockfile(lf *resolver.Lockfile) ([]byte, error) {
	return encode(JSON, lf)
}
