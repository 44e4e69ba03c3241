package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flox/pkgdb-sub000/internal/manifest"
	"github.com/flox/pkgdb-sub000/internal/resolver"
)

func exampleManifest() *manifest.ManifestRaw {
	return &manifest.ManifestRaw{
		Options: manifest.Options{Systems: []string{"x86_64-linux"}},
		Install: map[string]*manifest.DescriptorRaw{
			"hello": {Name: "hello", Version: "^1.0"},
			"curl":  {Name: "curl", Optional: true, Group: "net"},
		},
		Vars: map[string]string{"GREETING": "hi"},
	}
}

func TestKindFromPath(t *testing.T) {
	assert.Equal(t, TOML, KindFromPath("manifest.toml"))
	assert.Equal(t, YAML, KindFromPath("manifest.yaml"))
	assert.Equal(t, YAML, KindFromPath("manifest.yml"))
	assert.Equal(t, JSON, KindFromPath("manifest.json"))
	assert.Equal(t, TOML, KindFromPath("manifest"))
}

func TestManifestRoundTripsThroughTOML(t *testing.T) {
	want := exampleManifest()

	data, err := EncodeManifest(TOML, want)
	require.NoError(t, err)

	got, err := DecodeManifest(TOML, data)
	require.NoError(t, err)

	assert.Equal(t, want.Options.Systems, got.Options.Systems)
	assert.Equal(t, "hello", got.Install["hello"].Name)
	assert.Equal(t, "^1.0", got.Install["hello"].Version)
	assert.True(t, got.Install["curl"].Optional)
	assert.Equal(t, "net", got.Install["curl"].Group)
	assert.Equal(t, "hi", got.Vars["GREETING"])
}

func TestManifestRoundTripsThroughYAML(t *testing.T) {
	want := exampleManifest()

	data, err := EncodeManifest(YAML, want)
	require.NoError(t, err)

	got, err := DecodeManifest(YAML, data)
	require.NoError(t, err)

	assert.Equal(t, want.Options.Systems, got.Options.Systems)
	assert.Equal(t, "hello", got.Install["hello"].Name)
	assert.Equal(t, "^1.0", got.Install["hello"].Version)
	assert.True(t, got.Install["curl"].Optional)
}

func TestManifestRejectsMalformedTOML(t *testing.T) {
	_, err := DecodeManifest(TOML, []byte("not = [valid"))
	assert.Error(t, err)
}

func TestLockfileRoundTripsThroughJSON(t *testing.T) {
	want := &resolver.Lockfile{
		Registry: &manifest.LockedRegistry{
			Inputs: map[string]manifest.LockedInput{
				"nixpkgs": {Fingerprint: "abc123", URL: "github:NixOS/nixpkgs"},
			},
		},
		Packages: map[string]resolver.SystemPackages{
			"x86_64-linux": {
				"hello": &resolver.LockedPackage{
					Input:    manifest.LockedInput{Fingerprint: "abc123"},
					AttrPath: []string{"packages", "x86_64-linux", "hello"},
					Info:     resolver.PackageInfo{Pname: "hello", Version: "2.12.1"},
				},
			},
		},
	}

	data, err := EncodeLockfile(want)
	require.NoError(t, err)

	got, err := DecodeLockfile(data)
	require.NoError(t, err)

	assert.Equal(t, "abc123", got.Registry.Inputs["nixpkgs"].Fingerprint)
	require.NotNil(t, got.Packages["x86_64-linux"]["hello"])
	assert.Equal(t, "hello", got.Packages["x86_64-linux"]["hello"].Info.Pname)
}
